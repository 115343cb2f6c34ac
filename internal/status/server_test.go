package status

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/liftoff-dev/liftoff/internal/state"
	"github.com/liftoff-dev/liftoff/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusEngine builds a two-step engine over an in-memory store.
func statusEngine(t *testing.T) *engine.Engine {
	t.Helper()
	root := t.TempDir()

	steps := []engine.Step{
		{Name: "frontend", Dir: filepath.Join(root, "frontend"), Entrypoint: "./build.sh"},
		{Name: "backend", Dir: filepath.Join(root, "backend"), Entrypoint: "./build.sh", Needs: []string{"frontend"}},
	}
	for _, s := range steps {
		require.NoError(t, os.MkdirAll(s.Dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(s.Dir, "build.sh"), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	}

	eng, err := engine.New(engine.Config{
		ProjectRoot: root,
		StatePath:   ":memory:",
		Environment: "dev",
		Steps:       steps,
		Launch:      &engine.LaunchSpec{Target: filepath.Join(root, "server"), Dir: root},
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return eng
}

func TestStatusEndpoint(t *testing.T) {
	eng := statusEngine(t)
	_, err := eng.Run(context.Background(), engine.RunOptions{})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(Config{Engine: eng}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	assert.Equal(t, "dev", doc.Environment)
	assert.Equal(t, []string{"frontend", "backend"}, doc.Order)
	require.Len(t, doc.Steps, 2)
	require.NotNil(t, doc.Launch)
	assert.False(t, doc.Launch.Elevate)

	require.NotNil(t, doc.LastRun)
	assert.Equal(t, state.RunStatusCompleted, doc.LastRun.Status)
	require.Len(t, doc.LastRun.Steps, 2)
	assert.Equal(t, state.StepStatusSuccess, doc.LastRun.Steps[0].Status)
}

func TestRunsEndpoint(t *testing.T) {
	eng := statusEngine(t)
	for i := 0; i < 3; i++ {
		_, err := eng.Run(context.Background(), engine.RunOptions{})
		require.NoError(t, err)
	}

	srv := httptest.NewServer(NewServer(Config{Engine: eng}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs?limit=2")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Runs []*runWithSteps `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Len(t, doc.Runs, 2)
}

func TestRunsEndpoint_InvalidLimit(t *testing.T) {
	eng := statusEngine(t)

	srv := httptest.NewServer(NewServer(Config{Engine: eng}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs?limit=zero")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsStream(t *testing.T) {
	eng := statusEngine(t)
	s := NewServer(Config{Engine: eng})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if len(line) > 7 && line[:7] == "event: " {
				return line[7 : len(line)-1]
			}
		}
	}

	assert.Equal(t, "connected", readEvent())

	// The subscription happens inside the handler; ping until the
	// rebuild event arrives.
	got := make(chan string, 1)
	go func() { got <- readEvent() }()
	for {
		s.Notifier().Broadcast()
		select {
		case ev := <-got:
			assert.Equal(t, "rebuild", ev)
			return
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("timed out waiting for rebuild event")
		}
	}
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()

	a := n.Subscribe()
	b := n.Subscribe()

	n.Broadcast()
	n.Broadcast() // second ping must not block on full channels

	for name, ch := range map[string]chan struct{}{"a": a, "b": b} {
		select {
		case <-ch:
		default:
			t.Fatalf("listener %s missed the ping", name)
		}
	}

	n.Unsubscribe(a)
	if _, open := <-a; open {
		t.Fatal("unsubscribed channel should be closed")
	}

	// Broadcasting after an unsubscribe only reaches live listeners.
	n.Broadcast()
	select {
	case <-b:
	default:
		t.Fatal("listener b missed the ping")
	}
}
