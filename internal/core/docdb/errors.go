package docdb

import (
	"errors"
	"fmt"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// ErrNotFound is returned by write operations whose target does not exist.
var ErrNotFound = errors.New("document not found")

// ConflictError reports a failed optimistic-concurrency precondition.
// Latest holds the stored conversation at the time of the conflict.
type ConflictError struct {
	ConversationID  string
	ExpectedVersion int64
	Latest          *models.Conversation
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	actual := int64(-1)
	if e.Latest != nil {
		actual = e.Latest.Version
	}
	return fmt.Sprintf("conversation %s version conflict: expected %d, stored %d", e.ConversationID, e.ExpectedVersion, actual)
}

// AsConflict extracts a ConflictError from err.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
