package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
	"github.com/unifiedui/multiagent-service/internal/services/session"
	"github.com/unifiedui/multiagent-service/internal/testutil/memdb"
)

// script is the scripted behaviour of one agent credential.
type script struct {
	chunks []string
	err    error
	// readErr is returned after all chunks instead of io.EOF.
	readErr error
	// delay is waited before each chunk.
	delay time.Duration
	// started is signalled once when the stream is opened.
	started chan struct{}
	// release blocks the first Read until closed.
	release chan struct{}
}

type gatewayCall struct {
	apiKey  string
	chatID  string
	history []openai.ChatCompletionMessage
}

// fakeGateway implements gateway.Client with scripted streams keyed by API key.
type fakeGateway struct {
	mu       sync.Mutex
	scripts  map[string]*script
	calls    []gatewayCall
	dispatch func(req *gateway.CompletionRequest) (string, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{scripts: map[string]*script{}}
}

func (g *fakeGateway) on(apiKey string, s *script) *fakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[apiKey] = s
	return g
}

func (g *fakeGateway) streamCalls() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gatewayCall(nil), g.calls...)
}

func (g *fakeGateway) Complete(_ context.Context, _ gateway.Target, req *gateway.CompletionRequest) (*openai.ChatCompletionResponse, error) {
	if g.dispatch == nil {
		return nil, errors.New("no dispatch script")
	}
	content, err := g.dispatch(req)
	if err != nil {
		return nil, err
	}
	return &openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
	}}, nil
}

func (g *fakeGateway) Stream(ctx context.Context, target gateway.Target, req *gateway.CompletionRequest) (gateway.StreamReader, error) {
	g.mu.Lock()
	g.calls = append(g.calls, gatewayCall{apiKey: target.APIKey, chatID: req.ChatID, history: req.Messages})
	s, ok := g.scripts[target.APIKey]
	g.mu.Unlock()

	if !ok {
		return nil, &gateway.StatusError{StatusCode: 401}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	return &fakeStream{ctx: ctx, s: s}, nil
}

type fakeStream struct {
	ctx context.Context
	s   *script
	pos int
}

func (f *fakeStream) Read() (string, error) {
	if f.pos == 0 && f.s.release != nil {
		select {
		case <-f.s.release:
		case <-f.ctx.Done():
			return "", f.ctx.Err()
		}
	}
	if f.s.delay > 0 {
		select {
		case <-time.After(f.s.delay):
		case <-f.ctx.Done():
			return "", f.ctx.Err()
		}
	}
	if err := f.ctx.Err(); err != nil {
		return "", err
	}
	if f.pos >= len(f.s.chunks) {
		if f.s.readErr != nil {
			return "", f.s.readErr
		}
		return "", io.EOF
	}
	chunk := f.s.chunks[f.pos]
	f.pos++
	return chunk, nil
}

func (f *fakeStream) Close() error { return nil }

// fakeDispatcher answers dispatch requests with a function and counts calls.
type fakeDispatcher struct {
	mu       sync.Mutex
	requests []dispatch.Request
	fn       func(n int, req dispatch.Request) (*dispatch.Decision, error)
}

func (d *fakeDispatcher) Resolve(ctx context.Context, req dispatch.Request) (*dispatch.Decision, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	n := len(d.requests)
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.fn(n, req)
}

func (d *fakeDispatcher) calls() []dispatch.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch.Request(nil), d.requests...)
}

func pick(agents ...*models.Agent) func(int, dispatch.Request) (*dispatch.Decision, error) {
	return func(int, dispatch.Request) (*dispatch.Decision, error) {
		out := make([]models.Candidate, 0, len(agents))
		for _, a := range agents {
			out = append(out, models.Candidate{ID: a.ID, Name: a.Name})
		}
		return &dispatch.Decision{Candidates: out}, nil
	}
}

// fakeDirectory resolves agents from a fixed list. The first agent is the default.
type fakeDirectory struct {
	agents []*models.Agent
}

func (d *fakeDirectory) Default(context.Context) (*models.Agent, error) {
	return d.agents[0], nil
}

func (d *fakeDirectory) Resolve(ctx context.Context, c models.Candidate) (*models.Agent, error) {
	for _, a := range d.agents {
		if c.ID != "" && a.ID == c.ID {
			return a, nil
		}
	}
	for _, a := range d.agents {
		if c.Name != "" && a.Name == c.Name {
			return a, nil
		}
	}
	return d.Default(ctx)
}

func (d *fakeDirectory) List(context.Context) ([]*models.Agent, error) {
	return d.agents, nil
}

func (d *fakeDirectory) ResolveRefs(_ context.Context, refs []models.AgentRef) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, ref := range refs {
		for _, a := range d.agents {
			if a.ID == ref.ID() {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

// recorder is a Sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// recordingCallbacks counts conversation notifications.
type recordingCallbacks struct {
	mu      sync.Mutex
	created []*models.Conversation
	updated []*models.Conversation
}

func (c *recordingCallbacks) OnConversationCreated(_ context.Context, conv *models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, conv)
}

func (c *recordingCallbacks) OnConversationUpdated(_ context.Context, conv *models.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated = append(c.updated, conv)
}

var (
	travelAgent = &models.Agent{ID: "a-travel", Name: "旅行管家", Color: "#f60", APIKey: "key-travel"}
	doctorAgent = &models.Agent{ID: "a-doctor", Name: "医生", Color: "#0a0", APIKey: "key-doctor"}
	chefAgent   = &models.Agent{ID: "a-chef", Name: "厨师", Color: "#00f", APIKey: "key-chef"}
	mutedAgent  = &models.Agent{ID: "a-muted", Name: "哑巴", Color: "#999"}
)

type harness struct {
	store      *memdb.Client
	gateway    *fakeGateway
	dispatcher *fakeDispatcher
	directory  *fakeDirectory
	callbacks  *recordingCallbacks
	sessions   session.Service
	orch       *Orchestrator
}

func newHarness(agents ...*models.Agent) *harness {
	if len(agents) == 0 {
		agents = []*models.Agent{travelAgent, doctorAgent, chefAgent, mutedAgent}
	}
	h := &harness{
		store:      memdb.New(),
		gateway:    newFakeGateway(),
		dispatcher: &fakeDispatcher{fn: pick(agents[0])},
		directory:  &fakeDirectory{agents: agents},
		callbacks:  &recordingCallbacks{},
	}
	h.orch = h.build(h.dispatcher)
	return h
}

func (h *harness) build(d Dispatcher) *Orchestrator {
	o, err := New(&Config{
		Store:             h.store,
		Directory:         h.directory,
		Dispatcher:        d,
		Gateway:           h.gateway,
		Callbacks:         h.callbacks,
		Sessions:          h.sessions,
		SaveMaxRetries:    3,
		SaveRetryDelay:    time.Millisecond,
		MaxParallelAgents: 4,
		Logger:            zerolog.Nop(),
	})
	if err != nil {
		panic(err)
	}
	return o
}

func (h *harness) addGroup(id string, members ...*models.Agent) *models.GroupChat {
	refs := make([]models.AgentRef, 0, len(members))
	for _, m := range members {
		refs = append(refs, models.RefByID(m.ID))
	}
	group := &models.GroupChat{ID: id, Name: "群聊", AgentIDs: refs}
	if err := h.store.GroupChats().Create(context.Background(), group); err != nil {
		panic(err)
	}
	return group
}

func (h *harness) groupMessages(id string) []*models.GroupMessage {
	msgs, err := h.store.GroupMessages().List(context.Background(), id, nil)
	if err != nil {
		panic(err)
	}
	return msgs
}

// fakeSessions keeps discussion snapshots in a map.
type fakeSessions struct {
	mu     sync.Mutex
	states map[string]models.DiscussionState
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{states: map[string]models.DiscussionState{}}
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (*models.DiscussionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessions) SetSession(_ context.Context, state *models.DiscussionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.ID] = *state
	return nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, id)
	return nil
}

func (f *fakeSessions) BuildCacheKey(id string) string {
	return "discussion:" + id
}
