package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// GroupChat is a named room whose members are agents.
type GroupChat struct {
	ID          string     `json:"id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	Avatar      string     `json:"avatar" bson:"avatar"`
	AgentIDs    []AgentRef `json:"agentIds" bson:"agentIds"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// AgentRef is a group member reference that arrives either as a bare id or
// as an expanded agent object.
type AgentRef struct {
	id    string
	agent *Agent
}

// RefByID builds a reference holding only an id.
func RefByID(id string) AgentRef {
	return AgentRef{id: id}
}

// RefToAgent builds a reference holding an expanded agent.
func RefToAgent(agent *Agent) AgentRef {
	return AgentRef{id: agent.ID, agent: agent}
}

// ID returns the referenced agent id in either shape.
func (r AgentRef) ID() string {
	return r.id
}

// Agent returns the expanded agent, or nil for bare id references.
func (r AgentRef) Agent() *Agent {
	return r.agent
}

// Expanded reports whether the reference carries a full agent.
func (r AgentRef) Expanded() bool {
	return r.agent != nil
}

// MarshalJSON writes the expanded agent when present, otherwise the bare id.
func (r AgentRef) MarshalJSON() ([]byte, error) {
	if r.agent != nil {
		return json.Marshal(r.agent)
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts "id" or {"id": ..., ...}.
func (r *AgentRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("agent reference must not be null")
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("invalid agent reference: %w", err)
		}
		if id == "" {
			return fmt.Errorf("agent reference id must not be empty")
		}
		*r = RefByID(id)
		return nil
	}

	var agent Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return fmt.Errorf("invalid agent reference: %w", err)
	}
	if agent.ID == "" {
		return fmt.Errorf("expanded agent reference requires an id")
	}
	*r = RefToAgent(&agent)
	return nil
}

// MarshalBSONValue stores references as bare ids.
func (r AgentRef) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(r.id)
}

// UnmarshalBSONValue accepts a string id or an embedded agent document.
func (r *AgentRef) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.String:
		id, ok := raw.StringValueOK()
		if !ok || id == "" {
			return fmt.Errorf("invalid agent reference id")
		}
		*r = RefByID(id)
		return nil
	case bsontype.EmbeddedDocument:
		var agent Agent
		if err := raw.Unmarshal(&agent); err != nil {
			return fmt.Errorf("invalid agent reference document: %w", err)
		}
		*r = RefToAgent(&agent)
		return nil
	default:
		return fmt.Errorf("unsupported agent reference type %s", t)
	}
}

// GroupMessage is a message stored individually for a group chat.
type GroupMessage struct {
	ID         string    `json:"-" bson:"_id"`
	GroupID    string    `json:"groupId" bson:"groupId"`
	MessageID  string    `json:"messageId" bson:"messageId"`
	AgentName  string    `json:"agentName" bson:"agentName"`
	AgentColor string    `json:"agentColor" bson:"agentColor"`
	Content    string    `json:"content" bson:"content"`
	IsUser     bool      `json:"isUser" bson:"isUser"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

// NewGroupMessage wraps a finished message for storage in a group.
func NewGroupMessage(groupID string, m Message) *GroupMessage {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &GroupMessage{
		ID:         groupID + ":" + m.ID,
		GroupID:    groupID,
		MessageID:  m.ID,
		AgentName:  m.AgentName,
		AgentColor: m.AgentColor,
		Content:    m.Content,
		IsUser:     m.IsUser,
		Timestamp:  ts,
	}
}

// ToMessage converts the stored record back to a chat bubble.
func (g *GroupMessage) ToMessage() Message {
	return Message{
		ID:         g.MessageID,
		AgentName:  g.AgentName,
		AgentColor: g.AgentColor,
		Content:    g.Content,
		Timestamp:  g.Timestamp,
		IsUser:     g.IsUser,
	}
}
