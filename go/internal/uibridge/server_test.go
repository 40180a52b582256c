package uibridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdev84/spyline/go/internal/session"
)

type staticProvider struct {
	state *session.SessionState
}

func (p *staticProvider) State() *session.SessionState { return p.state }

func newTestBridge(t *testing.T) (*httptest.Server, *ConnectionManager) {
	t.Helper()
	manager := NewConnectionManager(DefaultConnectionConfig())
	provider := &staticProvider{state: &session.SessionState{Version: 42, Feed: session.FeedStatusLive}}
	bridge := NewServer("127.0.0.1:0", provider, manager)

	srv := httptest.NewServer(bridge.httpSrv.Handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go manager.Start(ctx)

	return srv, manager
}

func TestStateEndpointServesSnapshot(t *testing.T) {
	srv, _ := newTestBridge(t)

	resp, err := http.Get(srv.URL + "/api/session/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var state session.SessionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, uint64(42), state.Version)
	assert.Equal(t, session.FeedStatusLive, state.Feed)
}

func TestStateEndpointRejectsNonGet(t *testing.T) {
	srv, _ := newTestBridge(t)

	resp, err := http.Post(srv.URL+"/api/session/state", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocketReceivesVersionPush(t *testing.T) {
	srv, manager := newTestBridge(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return manager.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	manager.NotifyStateChanged(7)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame struct {
		Type    string `json:"type"`
		Version uint64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "state_changed", frame.Type)
	assert.Equal(t, uint64(7), frame.Version)
}

func TestVersionBurstCollapsesToNewest(t *testing.T) {
	srv, manager := newTestBridge(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return manager.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	for v := uint64(1); v <= 50; v++ {
		manager.NotifyStateChanged(v)
	}

	// The client eventually sees the newest version; intermediate ones
	// may be collapsed away.
	deadline := time.Now().Add(2 * time.Second)
	var last uint64
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var frame struct {
			Version uint64 `json:"version"`
		}
		require.NoError(t, json.Unmarshal(data, &frame))
		last = frame.Version
		if last == 50 {
			break
		}
	}
	assert.Equal(t, uint64(50), last)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestBridge(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
