package handlers_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/api/handlers"
	"github.com/unifiedui/multiagent-service/internal/api/middleware"
	"github.com/unifiedui/multiagent-service/internal/api/routes"
	"github.com/unifiedui/multiagent-service/internal/domain/models"
	rediscache "github.com/unifiedui/multiagent-service/internal/infrastructure/cache/redis"
	dotenvvault "github.com/unifiedui/multiagent-service/internal/infrastructure/vault/dotenv"
	"github.com/unifiedui/multiagent-service/internal/pkg/encryption"
	"github.com/unifiedui/multiagent-service/internal/services/directory"
	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
	"github.com/unifiedui/multiagent-service/internal/services/orchestrator"
	"github.com/unifiedui/multiagent-service/internal/services/session"
	"github.com/unifiedui/multiagent-service/internal/testutil"
	"github.com/unifiedui/multiagent-service/internal/testutil/memdb"
)

const (
	travelID    = "travel"
	travelName  = "旅行管家"
	travelKey   = "key-travel"
	doctorID    = "doctor"
	doctorName  = "医生"
	doctorKey   = "key-doctor"
	dispatchKey = "key-dispatch"
)

// stubGateway plays both the dispatch center and the agents.
type stubGateway struct {
	mu          sync.Mutex
	dispatch    string
	dispatchErr error
	replies     map[string][]string
}

func (g *stubGateway) setDispatch(content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatch = content
}

func (g *stubGateway) setDispatchErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatchErr = err
}

func (g *stubGateway) Complete(_ context.Context, target gateway.Target, _ *gateway.CompletionRequest) (*openai.ChatCompletionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if target.APIKey != dispatchKey {
		return nil, &gateway.StatusError{StatusCode: 401}
	}
	if g.dispatchErr != nil {
		return nil, g.dispatchErr
	}
	return &openai.ChatCompletionResponse{
		ID: "cmpl-1",
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: g.dispatch},
		}},
	}, nil
}

func (g *stubGateway) Stream(ctx context.Context, target gateway.Target, _ *gateway.CompletionRequest) (gateway.StreamReader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	chunks, ok := g.replies[target.APIKey]
	if !ok {
		return nil, &gateway.StatusError{StatusCode: 401}
	}
	return &chunkReader{ctx: ctx, chunks: chunks}, nil
}

type chunkReader struct {
	ctx    context.Context
	chunks []string
	pos    int
}

func (r *chunkReader) Read() (string, error) {
	if err := r.ctx.Err(); err != nil {
		return "", err
	}
	if r.pos >= len(r.chunks) {
		return "", io.EOF
	}
	chunk := r.chunks[r.pos]
	r.pos++
	return chunk, nil
}

func (r *chunkReader) Close() error { return nil }

// env is a fully wired router over in-memory storage and miniredis.
type env struct {
	store     *memdb.Client
	redis     *miniredis.Miniredis
	cache     *rediscache.Client
	gateway   *stubGateway
	directory directory.Service
	orch      *orchestrator.Orchestrator
	router    *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	cacheClient, err := rediscache.NewClient(rediscache.Config{Host: host, Port: port, DefaultTTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheClient.Close() })

	store := memdb.New()
	encryptor := encryption.NewNoOpEncryptor()
	logger := zerolog.Nop()

	dir, err := directory.NewService(&directory.Config{
		Agents:         store.Agents(),
		CacheClient:    cacheClient,
		Encryptor:      encryptor,
		CacheTTL:       time.Minute,
		DefaultAgentID: travelID,
		Logger:         logger,
	})
	require.NoError(t, err)
	_, err = dir.Create(ctx, &models.Agent{ID: travelID, Name: travelName, Role: "旅行", APIKey: travelKey})
	require.NoError(t, err)
	_, err = dir.Create(ctx, &models.Agent{ID: doctorID, Name: doctorName, Role: "健康", APIKey: doctorKey})
	require.NoError(t, err)

	vaultClient, err := dotenvvault.NewClient()
	require.NoError(t, err)
	credentialURI, err := vaultClient.StoreSecret(ctx, "TEST_DISPATCH_API_KEY", dispatchKey)
	require.NoError(t, err)

	gw := &stubGateway{replies: map[string][]string{
		travelKey: {"你好，", "我是旅行管家"},
		doctorKey: {"注意休息"},
	}}
	resolver, err := dispatch.NewResolver(&dispatch.Config{
		Gateway:       gw,
		Directory:     dir,
		Vault:         vaultClient,
		CredentialURI: credentialURI,
		RetryDelay:    time.Millisecond,
		Logger:        logger,
	})
	require.NoError(t, err)

	sessions, err := session.NewService(&session.Config{CacheClient: cacheClient, Encryptor: encryptor, TTL: time.Hour})
	require.NoError(t, err)

	bus := cacheClient.Bus()
	orch, err := orchestrator.New(&orchestrator.Config{
		Store:          store,
		Directory:      dir,
		Dispatcher:     resolver,
		Gateway:        gw,
		Sessions:       sessions,
		Callbacks:      handlers.NewConversationPublisher(bus, logger),
		SaveRetryDelay: time.Millisecond,
		Logger:         logger,
	})
	require.NoError(t, err)

	router := testutil.SetupTestRouter()
	routes.SetupWithMiddleware(router, &routes.Config{
		HealthHandler: handlers.NewHealthHandler(cacheClient, store),
		AgentsHandler: handlers.NewAgentsHandler(dir),
		ChatsHandler:  handlers.NewChatsHandler(store, orch),
		GroupChatsHandler: handlers.NewGroupChatsHandler(&handlers.GroupChatsHandlerConfig{
			DocDBClient:  store,
			Directory:    dir,
			Orchestrator: orch,
			Bus:          bus,
		}),
		DiscussionsHandler: handlers.NewDiscussionsHandler(orch),
		DispatchHandler:    handlers.NewDispatchHandler(resolver),
	},
		middleware.DefaultCORSConfig(),
		middleware.NewLoggingMiddlewareWithLogger(logger),
		middleware.NewErrorMiddleware(),
	)

	return &env{
		store:     store,
		redis:     mr,
		cache:     cacheClient,
		gateway:   gw,
		directory: dir,
		orch:      orch,
		router:    router,
	}
}

func (e *env) addGroup(t *testing.T, id string, memberIDs ...string) {
	t.Helper()
	refs := make([]models.AgentRef, 0, len(memberIDs))
	for _, m := range memberIDs {
		refs = append(refs, models.RefByID(m))
	}
	require.NoError(t, e.store.GroupChats().Create(context.Background(), &models.GroupChat{ID: id, Name: id, AgentIDs: refs}))
}

func (e *env) groupMessages(t *testing.T, groupID string) []*models.GroupMessage {
	t.Helper()
	stored, err := e.store.GroupMessages().List(context.Background(), groupID, nil)
	require.NoError(t, err)
	return stored
}

func path(p string) string {
	return routes.BasePath + p
}
