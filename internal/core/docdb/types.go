// Package docdb provides the document database type constants.
package docdb

// Type represents the type of document database.
type Type string

const (
	// TypeMongoDB represents a MongoDB database.
	TypeMongoDB Type = "mongodb"
	// TypeCosmosDB represents an Azure Cosmos DB database.
	TypeCosmosDB Type = "cosmosdb"
)

// SortOrder represents the sort direction.
type SortOrder string

const (
	// SortOrderAsc represents ascending order.
	SortOrderAsc SortOrder = "asc"
	// SortOrderDesc represents descending order.
	SortOrderDesc SortOrder = "desc"
)

// ListOptions contains pagination options shared by list queries.
type ListOptions struct {
	Limit   int64
	Skip    int64
	OrderBy SortOrder
}
