package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heliox-hq/charon/internal/upstream"
	"heliox-hq/charon/pkg/egress"
	"heliox-hq/charon/pkg/events"
	"heliox-hq/charon/pkg/failover"
	"heliox-hq/charon/pkg/identity"
	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/pool/storage"
	"heliox-hq/charon/pkg/wire"
)

func testToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload, err := json.Marshal(map[string]any{"email": email, "exp": exp.Unix()})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

type testRig struct {
	bridge *Bridge
	mock   *upstream.MockUpstream
	store  *storage.SQLiteStore
}

func newTestRig(t *testing.T, cfg Config, scripts ...upstream.Script) *testRig {
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

	cfg.URL = mock.URL()
	return &testRig{
		bridge: New(orch, cfg),
		mock:   mock,
		store:  store,
	}
}

func (r *testRig) addCredential(t *testing.T, email string) {
	t.Helper()
	rec := &storage.Record{
		Email:       email,
		AccessToken: testToken(t, email, time.Now().Add(2*time.Hour)),
	}
	require.NoError(t, r.store.Insert(context.Background(), rec))
}

func testPacket() *wire.ConversationPacket {
	return &wire.ConversationPacket{
		Input: wire.Input{
			UserInputs: []wire.UserInput{
				{UserQuery: &wire.UserQuery{Query: "hello"}},
			},
		},
		Settings: wire.Settings{Models: wire.ModelSelection{Base: "auto"}},
	}
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

func TestStreamDeliversOrderedEvents(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			appendEvent("a"),
			appendEvent("b"),
			finishedEvent(),
		},
	})
	rig.addCredential(t, "a@example.com")

	var got []events.Kind
	var text []string
	var state State
	err := rig.bridge.Stream(context.Background(), testPacket(), &state, func(ev *wire.Event) error {
		got = append(got, events.Classify(ev))
		if ev.ClientActions != nil {
			for _, a := range ev.ClientActions.Actions {
				text = append(text, events.DeltaText(&a))
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []events.Kind{events.KindInit, events.KindActions, events.KindActions, events.KindFinished}, got)
	assert.Equal(t, []string{"a", "b"}, text)
	assert.Equal(t, "conv-1", state.ConversationID)
	assert.Equal(t, "task-1", state.TaskID)
}

func TestStreamHexFrames(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{
		Hex: true,
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			finishedEvent(),
		},
	})
	rig.addCredential(t, "a@example.com")

	var state State
	evs, err := rig.bridge.Collect(context.Background(), testPacket(), &state)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "conv-1", state.ConversationID)
}

func TestStreamFragmentedPayload(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{
		FragmentAt: 5,
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			appendEvent("hello world"),
			finishedEvent(),
		},
	})
	rig.addCredential(t, "a@example.com")

	var state State
	evs, err := rig.bridge.Collect(context.Background(), testPacket(), &state)
	require.NoError(t, err)
	require.Len(t, evs, 3)
}

func TestStreamSkipsGarbageFrames(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{
		RawFrames: []string{"!!!not-a-frame!!!"},
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			finishedEvent(),
		},
	})
	rig.addCredential(t, "a@example.com")

	var state State
	evs, err := rig.bridge.Collect(context.Background(), testPacket(), &state)
	require.NoError(t, err)
	require.Len(t, evs, 2)
}

func TestStreamBanRotatesCredential(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, Config{},
		upstream.Script{StatusCode: 403, Body: "Your account has been blocked."},
		upstream.Script{Events: []*wire.Event{initEvent("c", "t"), finishedEvent()}},
	)
	rig.addCredential(t, "banned@example.com")
	rig.addCredential(t, "healthy@example.com")

	var state State
	_, err := rig.bridge.Collect(ctx, testPacket(), &state)
	require.NoError(t, err)
	assert.Equal(t, 2, rig.mock.RequestCount())

	rec, err := rig.store.Get(ctx, "banned@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusBlocked, rec.Status)
}

func TestStreamQuotaRotatesCredential(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, Config{},
		upstream.Script{StatusCode: 429, Body: "No remaining quota"},
		upstream.Script{Events: []*wire.Event{initEvent("c", "t"), finishedEvent()}},
	)
	rig.addCredential(t, "drained@example.com")
	rig.addCredential(t, "fresh@example.com")

	var state State
	_, err := rig.bridge.Collect(ctx, testPacket(), &state)
	require.NoError(t, err)
	assert.Equal(t, 2, rig.mock.RequestCount())

	// Drained credential stays active with a zeroed quota snapshot.
	rec, err := rig.store.Get(ctx, "drained@example.com")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusActive, rec.Status)
	require.NotNil(t, rec.Quota)
}

func TestStreamEmptyStreamIsFailure(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{})
	rig.addCredential(t, "a@example.com")

	var state State
	_, err := rig.bridge.Collect(context.Background(), testPacket(), &state)
	require.Error(t, err)
	var noEvents *failover.NoEventsError
	require.ErrorAs(t, err, &noEvents)
}

func TestStreamStallAfterEventsIsInBand(t *testing.T) {
	rig := newTestRig(t, Config{HeartbeatTimeout: 50 * time.Millisecond}, upstream.Script{
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			appendEvent("partial"),
		},
		Hang:     300 * time.Millisecond,
		OmitDone: true,
	})
	rig.addCredential(t, "a@example.com")

	var state State
	evs, err := rig.bridge.Collect(context.Background(), testPacket(), &state)

	// Output already reached the caller, so the failure is in-band, and
	// the events received before the stall are preserved.
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, 2, streamErr.Delivered)
	require.Len(t, evs, 2)
	var stall *StallError
	assert.ErrorAs(t, err, &stall)

	// No retry after output began.
	assert.Equal(t, 1, rig.mock.RequestCount())
}

func TestStreamHandlerAbortStops(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{
		Events: []*wire.Event{
			initEvent("conv-1", "task-1"),
			appendEvent("a"),
			finishedEvent(),
		},
	})
	rig.addCredential(t, "a@example.com")

	abort := errors.New("caller gone")
	var state State
	err := rig.bridge.Stream(context.Background(), testPacket(), &state, func(ev *wire.Event) error {
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.Equal(t, 1, rig.mock.RequestCount())
}

func TestStreamSendsProtocolHeaders(t *testing.T) {
	rig := newTestRig(t, Config{}, upstream.Script{
		Events: []*wire.Event{initEvent("c", "t"), finishedEvent()},
	})
	rig.addCredential(t, "a@example.com")

	var state State
	_, err := rig.bridge.Collect(context.Background(), testPacket(), &state)
	require.NoError(t, err)

	reqs := rig.mock.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Authorization, "Bearer ")
	assert.Equal(t, "application/x-protobuf", reqs[0].ContentType)
	assert.Equal(t, "text/event-stream", reqs[0].Accept)
	assert.Greater(t, reqs[0].Body, 0)
}

func TestObserveThreadsIdentifiers(t *testing.T) {
	var s State
	s.Observe(initEvent("conv-9", "task-9"))
	assert.Equal(t, "conv-9", s.ConversationID)
	assert.Equal(t, "task-9", s.TaskID)

	s.Observe(&wire.Event{ClientActions: &wire.ClientActions{Actions: []wire.Action{
		{CreateTask: &wire.CreateTask{Task: wire.Task{ID: "task-10"}}},
	}}})
	assert.Equal(t, "task-10", s.TaskID)

	// Empty identifiers never clobber captured ones.
	s.Observe(initEvent("", ""))
	assert.Equal(t, "conv-9", s.ConversationID)
}
