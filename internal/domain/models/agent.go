package models

import (
	"strings"
	"time"
)

// AgentStatus is the presence indicator shown next to an agent.
type AgentStatus string

const (
	// AgentStatusOnline marks an agent available for dispatch.
	AgentStatusOnline AgentStatus = "online"
	// AgentStatusBusy marks an agent that is currently answering.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusOffline marks an agent that is disabled.
	AgentStatusOffline AgentStatus = "offline"
)

// Valid reports whether s is a known status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusOnline, AgentStatusBusy, AgentStatusOffline:
		return true
	}
	return false
}

// Agent is a named persona bound to a completion credential.
//
// APIKey is never serialized to JSON. In the document store it holds the
// sealed form produced by the encryption package.
type Agent struct {
	ID           string      `json:"id" bson:"_id"`
	Name         string      `json:"name" bson:"name"`
	Role         string      `json:"role" bson:"role"`
	Introduction string      `json:"introduction,omitempty" bson:"introduction,omitempty"`
	Status       AgentStatus `json:"status" bson:"status"`
	Color        string      `json:"color" bson:"color"`
	APIKey       string      `json:"-" bson:"apiKey,omitempty"`
	BaseURL      string      `json:"baseUrl,omitempty" bson:"baseUrl,omitempty"`
	CreatedAt    time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// HasCredential reports whether the agent can be called.
func (a *Agent) HasCredential() bool {
	return a != nil && strings.TrimSpace(a.APIKey) != ""
}

// Redacted returns a copy without the credential.
func (a *Agent) Redacted() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.APIKey = ""
	return &cp
}

// AgentNames lists the display names of agents in order.
func AgentNames(agents []*Agent) []string {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	return names
}
