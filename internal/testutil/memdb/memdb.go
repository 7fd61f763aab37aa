// Package memdb provides an in-memory docdb.Client for tests.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unifiedui/multiagent-service/internal/core/docdb"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

// Client is a goroutine-safe in-memory document store.
type Client struct {
	mu            sync.Mutex
	agents        map[string]*models.Agent
	conversations map[string]*models.Conversation
	groups        map[string]*models.GroupChat
	groupMessages map[string][]*models.GroupMessage

	// ReplaceHook runs before each ReplaceMessages call. Tests use it to
	// simulate a concurrent writer.
	ReplaceHook func(id string)

	// PingErr is returned by Ping when set.
	PingErr error
}

// New creates an empty store.
func New() *Client {
	return &Client{
		agents:        map[string]*models.Agent{},
		conversations: map[string]*models.Conversation{},
		groups:        map[string]*models.GroupChat{},
		groupMessages: map[string][]*models.GroupMessage{},
	}
}

// Agents returns the agent collection.
func (c *Client) Agents() docdb.AgentsCollection { return agentsColl{c} }

// Conversations returns the conversation collection.
func (c *Client) Conversations() docdb.ConversationsCollection { return conversationsColl{c} }

// GroupChats returns the group chat collection.
func (c *Client) GroupChats() docdb.GroupChatsCollection { return groupsColl{c} }

// GroupMessages returns the group message collection.
func (c *Client) GroupMessages() docdb.GroupMessagesCollection { return groupMessagesColl{c} }

// EnsureIndexes is a no-op.
func (c *Client) EnsureIndexes(context.Context) error { return nil }

// Ping returns PingErr.
func (c *Client) Ping(context.Context) error { return c.PingErr }

// Close is a no-op.
func (c *Client) Close(context.Context) error { return nil }

// PutConversation stores a conversation verbatim, bypassing version rules.
func (c *Client) PutConversation(conv *models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *conv
	cp.Messages = models.CloneMessages(conv.Messages)
	c.conversations[conv.ID] = &cp
}

type agentsColl struct{ c *Client }

func (a agentsColl) Create(_ context.Context, agent *models.Agent) error {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	if _, ok := a.c.agents[agent.ID]; ok {
		return fmt.Errorf("duplicate agent %s", agent.ID)
	}
	for _, existing := range a.c.agents {
		if existing.Name == agent.Name {
			return fmt.Errorf("duplicate agent name %s", agent.Name)
		}
	}
	agent.CreatedAt = time.Now().UTC()
	agent.UpdatedAt = agent.CreatedAt
	cp := *agent
	a.c.agents[agent.ID] = &cp
	return nil
}

func (a agentsColl) Get(_ context.Context, id string) (*models.Agent, error) {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	if agent, ok := a.c.agents[id]; ok {
		cp := *agent
		return &cp, nil
	}
	return nil, nil
}

func (a agentsColl) GetByName(_ context.Context, name string) (*models.Agent, error) {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	for _, agent := range a.c.agents {
		if agent.Name == name {
			cp := *agent
			return &cp, nil
		}
	}
	return nil, nil
}

func (a agentsColl) List(context.Context) ([]*models.Agent, error) {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	out := make([]*models.Agent, 0, len(a.c.agents))
	for _, agent := range a.c.agents {
		cp := *agent
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (a agentsColl) UpdateCredentials(_ context.Context, id, sealedAPIKey, baseURL string) error {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	agent, ok := a.c.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, docdb.ErrNotFound)
	}
	agent.APIKey = sealedAPIKey
	agent.BaseURL = baseURL
	agent.UpdatedAt = time.Now().UTC()
	return nil
}

func (a agentsColl) UpdateStatus(_ context.Context, id string, status models.AgentStatus) error {
	a.c.mu.Lock()
	defer a.c.mu.Unlock()
	agent, ok := a.c.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, docdb.ErrNotFound)
	}
	agent.Status = status
	agent.UpdatedAt = time.Now().UTC()
	return nil
}

func (a agentsColl) EnsureIndexes(context.Context) error { return nil }

type conversationsColl struct{ c *Client }

func (cc conversationsColl) Create(_ context.Context, conv *models.Conversation) error {
	cc.c.mu.Lock()
	defer cc.c.mu.Unlock()
	if _, ok := cc.c.conversations[conv.ID]; ok {
		return fmt.Errorf("duplicate conversation %s", conv.ID)
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.Version = 1
	cp := *conv
	cp.Messages = models.CloneMessages(conv.Messages)
	cc.c.conversations[conv.ID] = &cp
	return nil
}

func (cc conversationsColl) Get(_ context.Context, id string) (*models.Conversation, error) {
	cc.c.mu.Lock()
	defer cc.c.mu.Unlock()
	return cc.getLocked(id), nil
}

func (cc conversationsColl) getLocked(id string) *models.Conversation {
	conv, ok := cc.c.conversations[id]
	if !ok {
		return nil
	}
	cp := *conv
	cp.Messages = models.CloneMessages(conv.Messages)
	return &cp
}

func (cc conversationsColl) List(_ context.Context, opts *docdb.ListOptions) ([]*models.ConversationSummary, error) {
	cc.c.mu.Lock()
	defer cc.c.mu.Unlock()
	out := make([]*models.ConversationSummary, 0, len(cc.c.conversations))
	for _, conv := range cc.c.conversations {
		out = append(out, &models.ConversationSummary{
			ID: conv.ID, Title: conv.Title, Version: conv.Version,
			CreatedAt: conv.CreatedAt, UpdatedAt: conv.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if opts != nil && opts.Limit > 0 && int64(len(out)) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (cc conversationsColl) ReplaceMessages(_ context.Context, id string, expectedVersion int64, messages []models.Message) (*models.Conversation, error) {
	if hook := cc.c.ReplaceHook; hook != nil {
		hook(id)
	}

	cc.c.mu.Lock()
	defer cc.c.mu.Unlock()
	conv, ok := cc.c.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, docdb.ErrNotFound)
	}
	if conv.Version != expectedVersion {
		return nil, &docdb.ConflictError{ConversationID: id, ExpectedVersion: expectedVersion, Latest: cc.getLocked(id)}
	}
	conv.Messages = models.CloneMessages(messages)
	conv.Version++
	conv.UpdatedAt = time.Now().UTC()
	return cc.getLocked(id), nil
}

func (cc conversationsColl) Delete(_ context.Context, id string) error {
	cc.c.mu.Lock()
	defer cc.c.mu.Unlock()
	if _, ok := cc.c.conversations[id]; !ok {
		return fmt.Errorf("conversation %s: %w", id, docdb.ErrNotFound)
	}
	delete(cc.c.conversations, id)
	return nil
}

func (cc conversationsColl) EnsureIndexes(context.Context) error { return nil }

type groupsColl struct{ c *Client }

func (g groupsColl) Create(_ context.Context, group *models.GroupChat) error {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	if _, ok := g.c.groups[group.ID]; ok {
		return fmt.Errorf("duplicate group chat %s", group.ID)
	}
	group.CreatedAt = time.Now().UTC()
	group.UpdatedAt = group.CreatedAt
	cp := *group
	cp.AgentIDs = append([]models.AgentRef(nil), group.AgentIDs...)
	g.c.groups[group.ID] = &cp
	return nil
}

func (g groupsColl) Get(_ context.Context, id string) (*models.GroupChat, error) {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	if group, ok := g.c.groups[id]; ok {
		cp := *group
		return &cp, nil
	}
	return nil, nil
}

func (g groupsColl) List(context.Context) ([]*models.GroupChat, error) {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	out := make([]*models.GroupChat, 0, len(g.c.groups))
	for _, group := range g.c.groups {
		cp := *group
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (g groupsColl) EnsureIndexes(context.Context) error { return nil }

type groupMessagesColl struct{ c *Client }

func (g groupMessagesColl) Append(_ context.Context, message *models.GroupMessage) (bool, error) {
	if message.GroupID == "" || message.MessageID == "" {
		return false, fmt.Errorf("group ID and message ID are required")
	}
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	for _, existing := range g.c.groupMessages[message.GroupID] {
		if existing.MessageID == message.MessageID {
			return true, nil
		}
	}
	cp := *message
	if cp.ID == "" {
		cp.ID = cp.GroupID + ":" + cp.MessageID
	}
	g.c.groupMessages[message.GroupID] = append(g.c.groupMessages[message.GroupID], &cp)
	return false, nil
}

func (g groupMessagesColl) List(_ context.Context, groupID string, opts *docdb.ListOptions) ([]*models.GroupMessage, error) {
	g.c.mu.Lock()
	defer g.c.mu.Unlock()
	stored := g.c.groupMessages[groupID]
	out := make([]*models.GroupMessage, 0, len(stored))
	for _, m := range stored {
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if opts != nil && opts.Limit > 0 && int64(len(out)) > opts.Limit {
		if opts.OrderBy == docdb.SortOrderDesc {
			out = out[int64(len(out))-opts.Limit:]
		} else {
			out = out[:opts.Limit]
		}
	}
	return out, nil
}

func (g groupMessagesColl) EnsureIndexes(context.Context) error { return nil }
