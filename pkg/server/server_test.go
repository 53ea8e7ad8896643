package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heliox-hq/charon/internal/upstream"
	"heliox-hq/charon/pkg/bridge"
	"heliox-hq/charon/pkg/config"
	"heliox-hq/charon/pkg/egress"
	"heliox-hq/charon/pkg/failover"
	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/pool/storage"
	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/translate"
	"heliox-hq/charon/pkg/wire"
)

func testToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload, err := json.Marshal(map[string]any{"email": email, "exp": exp.Unix()})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			MaxRequestBytes: 1 << 20,
		},
		Models: config.ModelsConfig{
			Catalog: []string{"agent-large", "agent-small"},
			Default: "agent-large",
		},
		Dedup: config.DedupConfig{
			Enabled:    true,
			Window:     5 * time.Second,
			MaxEntries: 10,
		},
	}
}

type serverRig struct {
	server *Server
	mock   *upstream.MockUpstream
	store  *storage.SQLiteStore
}

func newServerRig(t *testing.T, cfg *config.Config, scripts ...upstream.Script) *serverRig {
	t.Helper()

	mock := upstream.NewMockUpstream(scripts...)
	t.Cleanup(mock.Close)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	refresh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := testToken(t, "refreshed@example.com", time.Now().Add(time.Hour))
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"rt-new"}`, tok)
	}))
	t.Cleanup(refresh.Close)

	idClient := identity.NewClient(identity.Config{RefreshURL: refresh.URL, APIKey: "test"})
	mgr := pool.NewManager(store, idClient, pool.Config{})

	rotator, err := egress.NewRotator(egress.Options{IncludeDirect: true})
	require.NoError(t, err)

	orch := failover.NewOrchestrator(mgr, rotator, failover.Config{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})

	br := bridge.New(orch, bridge.Config{URL: mock.URL()})

	return &serverRig{
		server: New(cfg, Deps{Pool: mgr, Bridge: br}),
		mock:   mock,
		store:  store,
	}
}

func (r *serverRig) addCredential(t *testing.T, email string) {
	t.Helper()
	rec := &storage.Record{
		Email:       email,
		AccessToken: testToken(t, email, time.Now().Add(2*time.Hour)),
	}
	require.NoError(t, r.store.Insert(context.Background(), rec))
}

func (r *serverRig) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.server.Handler().ServeHTTP(rec, req)
	return rec
}

func initEvent(conv, task string) *wire.Event {
	return &wire.Event{Init: &wire.InitEvent{ConversationID: conv, TaskID: task}}
}

func appendEvent(text string) *wire.Event {
	return &wire.Event{ClientActions: &wire.ClientActions{Actions: []wire.Action{
		{AppendContent: &wire.MessageUpdate{Message: wire.TaskMessage{
			AgentOutput: &wire.AgentOutput{Text: text},
		}}},
	}}}
}

func finishedEvent() *wire.Event {
	return &wire.Event{Finished: &wire.FinishedEvent{}}
}

func happyScript() upstream.Script {
	return upstream.Script{
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			appendEvent("Hello"),
			appendEvent(", world"),
			finishedEvent(),
		},
	}
}

func completionBody(messages ...api.ChatMessage) map[string]any {
	return map[string]any{
		"model":    "agent-large",
		"messages": messages,
	}
}

func TestChatCompletionsUnary(t *testing.T) {
	rig := newServerRig(t, testConfig(), happyScript())
	rig.addCredential(t, "a@example.com")

	rec := rig.do(t, http.MethodPost, "/v1/chat/completions",
		completionBody(msg("user", "hi")))

	require.Equal(t, http.StatusOK, rec.Code)
	var got translate.Completion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "chat.completion", got.Object)
	assert.Equal(t, "agent-large", got.Model)
	require.Len(t, got.Choices, 1)
	assert.Equal(t, "Hello, world", got.Choices[0].Message.Content)
	assert.Equal(t, translate.FinishStop, got.Choices[0].FinishReason)
}

func TestChatCompletionsUnaryDedup(t *testing.T) {
	rig := newServerRig(t, testConfig(), happyScript())
	rig.addCredential(t, "a@example.com")

	body := completionBody(msg("user", "hi"))
	first := rig.do(t, http.MethodPost, "/v1/chat/completions", body)
	second := rig.do(t, http.MethodPost, "/v1/chat/completions", body)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	// The duplicate is answered from cache without a second exchange.
	assert.Equal(t, 1, rig.mock.RequestCount())
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestChatCompletionsStreaming(t *testing.T) {
	rig := newServerRig(t, testConfig(), happyScript())
	rig.addCredential(t, "a@example.com")

	body := completionBody(msg("user", "hi"))
	body["stream"] = true
	rec := rig.do(t, http.MethodPost, "/v1/chat/completions", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	chunks, done := parseSSE(t, rec.Body.String())
	assert.True(t, done)
	require.GreaterOrEqual(t, len(chunks), 3)

	// Role preamble first, then content deltas, then the finish chunk.
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	var text strings.Builder
	for _, c := range chunks {
		text.WriteString(c.Choices[0].Delta.Content)
	}
	assert.Equal(t, "Hello, world", text.String())

	last := chunks[len(chunks)-1]
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, translate.FinishStop, *last.Choices[0].FinishReason)
}

func TestChatCompletionsNoCredentials(t *testing.T) {
	rig := newServerRig(t, testConfig(), happyScript())

	rec := rig.do(t, http.MethodPost, "/v1/chat/completions",
		completionBody(msg("user", "hi")))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, api.ErrorTypeServiceUnavailable, got.Error.Type)
}

func TestChatCompletionsStreamingFailureBeforeFirstEvent(t *testing.T) {
	// The upstream rejects every attempt; the response must be a JSON
	// error, not a half-open event stream.
	cfg := testConfig()
	rig := newServerRig(t, cfg,
		upstream.Script{StatusCode: 500, Body: "boom"},
	)
	rig.addCredential(t, "a@example.com")

	body := completionBody(msg("user", "hi"))
	body["stream"] = true
	rec := rig.do(t, http.MethodPost, "/v1/chat/completions", body)

	assert.NotEqual(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestChatCompletionsInvalidJSON(t *testing.T) {
	rig := newServerRig(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	rig.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var got api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, api.CodeInvalidJSON, got.Error.Code)
}

func TestChatCompletionsEmptyMessages(t *testing.T) {
	rig := newServerRig(t, testConfig())

	rec := rig.do(t, http.MethodPost, "/v1/chat/completions",
		map[string]any{"model": "agent-large", "messages": []any{}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCompletionsUnknownModelFallsBack(t *testing.T) {
	rig := newServerRig(t, testConfig(), happyScript())
	rig.addCredential(t, "a@example.com")

	body := completionBody(msg("user", "hi"))
	body["model"] = "gpt-4o"
	rec := rig.do(t, http.MethodPost, "/v1/chat/completions", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var got translate.Completion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "agent-large", got.Model)
}

func TestChatCompletionsMethodNotAllowed(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rec := rig.do(t, http.MethodGet, "/v1/chat/completions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLegacyCompletionsPath(t *testing.T) {
	rig := newServerRig(t, testConfig(), happyScript())
	rig.addCredential(t, "a@example.com")

	rec := rig.do(t, http.MethodPost, "/chat/completions",
		completionBody(msg("user", "hi")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModelsEndpoint(t *testing.T) {
	rig := newServerRig(t, testConfig())

	rec := rig.do(t, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got api.ModelList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "list", got.Object)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "agent-large", got.Data[0].ID)
}

func TestHealthz(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rec := rig.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAuthGuardsEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKey = "secret"
	rig := newServerRig(t, cfg)

	rec := rig.do(t, http.MethodGet, "/v1/models", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	ok := httptest.NewRecorder()
	rig.server.Handler().ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	// Health stays reachable without a key.
	health := rig.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestAccountsAllocateAndRelease(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rig.addCredential(t, "a@example.com")

	rec := rig.do(t, http.MethodPost, "/api/accounts/allocate", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var got allocateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.LeaseID)
	assert.Equal(t, "a@example.com", got.Email)
	assert.NotEmpty(t, got.Token)

	rel := rig.do(t, http.MethodPost, "/api/accounts/release",
		map[string]any{"lease_id": got.LeaseID})
	assert.Equal(t, http.StatusOK, rel.Code)
}

func TestAccountsAllocateEmptyPool(t *testing.T) {
	rig := newServerRig(t, testConfig())

	rec := rig.do(t, http.MethodPost, "/api/accounts/allocate", map[string]any{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAccountsListHidesTokens(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rig.addCredential(t, "a@example.com")
	rig.addCredential(t, "b@example.com")

	rec := rig.do(t, http.MethodGet, "/api/accounts/list?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), "a@example.com")
	assert.NotContains(t, rec.Body.String(), "access_token")
	assert.NotContains(t, rec.Body.String(), "eyJ")
}

func TestAccountsListPagination(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rig.addCredential(t, "a@example.com")
	rig.addCredential(t, "b@example.com")
	rig.addCredential(t, "c@example.com")

	rec := rig.do(t, http.MethodGet, "/api/accounts/list?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Accounts []accountView `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Accounts, 2)
}

func TestAccountsMarkBlocked(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rig.addCredential(t, "a@example.com")

	rec := rig.do(t, http.MethodPost, "/api/accounts/mark_blocked",
		map[string]any{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := rig.store.Get(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusBlocked, got.Status)
}

func TestAccountsMarkBlockedUnknown(t *testing.T) {
	rig := newServerRig(t, testConfig())

	rec := rig.do(t, http.MethodPost, "/api/accounts/mark_blocked",
		map[string]any{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	rig := newServerRig(t, testConfig())
	rig.addCredential(t, "a@example.com")

	rec := rig.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "active")
}

// parseSSE splits an event-stream body into decoded chunks and reports
// whether the [DONE] marker was seen.
func parseSSE(t *testing.T, body string) ([]translate.Chunk, bool) {
	t.Helper()
	var chunks []translate.Chunk
	done := false
	for _, line := range strings.Split(body, "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			done = true
			continue
		}
		var c translate.Chunk
		require.NoError(t, json.Unmarshal([]byte(payload), &c))
		chunks = append(chunks, c)
	}
	return chunks, done
}
