package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkernel/agent"
	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/capability"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/internal/testutil"
	"github.com/hupe1980/agentkernel/orchestrator"
	"github.com/hupe1980/agentkernel/task"
)

func newTestKernel(t *testing.T, capacity int) *orchestrator.Orchestrator {
	t.Helper()
	o := orchestrator.New(func(o *orchestrator.Options) {
		o.Bus = bus.New(capacity)
	})
	o.RegisterAgent(agent.NewFuncAgent(core.AgentMetadata{ID: "planner", Name: "Planner", Version: "1.0.0"}))
	o.Registry().Register(capability.NewFunction("echo", "echo args", nil, func(_ context.Context, args map[string]any) (any, error) {
		return args, nil
	}))
	o.Tracker().Track(testutil.NewTaskIn(t, "query", nil, task.Executing))
	_, err := o.Store().Store(context.Background(), "plan", "draft")
	require.NoError(t, err)
	return o
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestServer_Endpoints(t *testing.T) {
	o := newTestKernel(t, 16)
	ts := httptest.NewServer(New(o).Handler())
	defer ts.Close()

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	var agents []core.AgentMetadata
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/agents", &agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "planner", agents[0].ID)

	var tasks []map[string]any
	getJSON(t, ts.URL+"/api/tasks", &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, "executing", tasks[0]["phase"])

	var caps []core.CapabilityInfo
	getJSON(t, ts.URL+"/api/capabilities", &caps)
	require.Len(t, caps, 1)
	assert.Equal(t, "echo", caps[0].Name)

	var keys []string
	getJSON(t, ts.URL+"/api/keys", &keys)
	assert.Equal(t, []string{"plan"}, keys)

	var subs []bus.SubscriptionInfo
	getJSON(t, ts.URL+"/api/subscriptions", &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, "planner", subs[0].Name)

	var snap map[string]json.RawMessage
	getJSON(t, ts.URL+"/api/snapshot", &snap)
	for _, k := range []string{"agents", "subscriptions", "tasks", "capabilities", "keys", "passes"} {
		assert.Contains(t, snap, k)
	}
}

type failingSource struct{ *orchestrator.Orchestrator }

func (failingSource) Snapshot(context.Context) (orchestrator.Snapshot, error) {
	return orchestrator.Snapshot{}, errors.New("store down")
}

func TestServer_SnapshotError(t *testing.T) {
	ts := httptest.NewServer(New(failingSource{orchestrator.New()}).Handler())
	defer ts.Close()

	var body errorResponse
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/agents", &body))
	assert.Equal(t, "snapshot failed", body.Error)
}

func TestServer_Logs(t *testing.T) {
	sink := core.NewMemoryLogSink()
	for i := 0; i < 3; i++ {
		sink.Emit(core.NewLogEntry(core.LogLevelInfo, "kernel", fmt.Sprintf("entry %d", i)))
	}
	ts := httptest.NewServer(New(orchestrator.New(), func(o *Options) { o.Logs = sink }).Handler())
	defer ts.Close()

	var entries []core.LogEntry
	getJSON(t, ts.URL+"/api/logs", &entries)
	assert.Len(t, entries, 3)

	getJSON(t, ts.URL+"/api/logs?limit=1", &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "entry 2", entries[0].Message)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/logs?limit=x", nil))
}

func TestServer_LogsWithoutSink(t *testing.T) {
	ts := httptest.NewServer(New(orchestrator.New()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, "[]", string(raw))
}

func dialWS(t *testing.T, ts *httptest.Server, b *bus.Bus, want int) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.Subscribers() == want }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func TestServer_StreamsBusMessages(t *testing.T) {
	o := orchestrator.New()
	ts := httptest.NewServer(New(o).Handler())
	defer ts.Close()

	conn := dialWS(t, ts, o.Bus(), 1)
	defer conn.CloseNow()

	sent := testutil.NewMessageBuilder().ID("m-1").From("planner").To("worker").Intent(map[string]any{"prompt": "hi"}).Build()
	o.Bus().Publish(sent)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame Frame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, FrameMessage, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "m-1", frame.Message.ID)
	assert.Equal(t, "planner", frame.Message.Source)
	require.NotNil(t, frame.Message.Target)
	assert.Equal(t, "worker", *frame.Message.Target)
	assert.Equal(t, core.KindIntent, frame.Message.Kind)
}

func TestServer_StreamReportsLag(t *testing.T) {
	o := orchestrator.New(func(o *orchestrator.Options) { o.Bus = bus.New(2) })
	ts := httptest.NewServer(New(o).Handler())
	defer ts.Close()

	conn := dialWS(t, ts, o.Bus(), 1)
	defer conn.CloseNow()

	const total = 50
	for i := 0; i < total; i++ {
		o.Bus().Publish(testutil.NewMessageBuilder().ID(fmt.Sprintf("m-%d", i)).Build())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var received, missed uint64
	for {
		var frame Frame
		require.NoError(t, wsjson.Read(ctx, conn, &frame))
		if frame.Type == FrameLagged {
			missed += frame.Missed
			continue
		}
		received++
		if frame.Message.ID == fmt.Sprintf("m-%d", total-1) {
			break
		}
	}
	assert.Equal(t, uint64(total), received+missed)
	assert.NotZero(t, missed)
}

func TestServer_StreamUnsubscribesOnClose(t *testing.T) {
	o := orchestrator.New()
	ts := httptest.NewServer(New(o).Handler())
	defer ts.Close()

	conn := dialWS(t, ts, o.Bus(), 1)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	assert.Eventually(t, func() bool { return o.Bus().Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_StreamChecksOrigin(t *testing.T) {
	o := orchestrator.New()
	ts := httptest.NewServer(New(o, func(o *Options) { o.OriginPatterns = []string{"*.example.com"} }).Handler())
	defer ts.Close()

	dial := func(origin string) (*websocket.Conn, *http.Response, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{origin}},
		})
	}

	_, resp, err := dial("https://evil.example.org")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, o.Bus().Subscribers())

	for _, origin := range []string{"https://app.example.com", ts.URL} {
		conn, _, err := dial(origin)
		require.NoError(t, err, origin)
		require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	}
}

func TestServer_ListenAndServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(orchestrator.New(), func(o *Options) { o.Addr = "127.0.0.1:0" })

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
