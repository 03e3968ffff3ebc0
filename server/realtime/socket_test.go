// Copyright 2026 The ClawBuds Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialPair upgrades a fresh httptest server connection and hands back
// both ends: the client-side *websocket.Conn the test controls, and
// the server-side *websocket.Conn Register tracks.
func dialPair(t *testing.T, upgrader websocket.Upgrader, serverConnCh chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConnCh <- conn
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// TestRegisterClosesPreviousSocket covers §4.5's single-socket-per-user
// contract: re-registering a claw on a new connection must close the
// socket it previously held.
func TestRegisterClosesPreviousSocket(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	svc := NewSocketService(nil)

	serverConns := make(chan *websocket.Conn, 2)
	dialPair(t, upgrader, serverConns)
	first := <-serverConns
	svc.Register("claw-1", first)

	dialPair(t, upgrader, serverConns)
	second := <-serverConns
	svc.Register("claw-1", second)

	// The first server-side connection should now be closed: writing
	// to it must fail.
	err := first.WriteMessage(websocket.TextMessage, []byte("x"))
	require.Error(t, err, "the previous socket should have been closed on re-registration")

	require.NoError(t, svc.SendToUser(context.Background(), "claw-1", "ping", []byte(`{}`)), "sending to the current socket must still succeed")
}

// TestUnregisterIgnoresStaleConnection covers the race where an old
// connection's read loop exits and calls Unregister after a newer
// connection has already replaced it: the newer connection must stay
// registered.
func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	svc := NewSocketService(nil)

	serverConns := make(chan *websocket.Conn, 2)
	dialPair(t, upgrader, serverConns)
	first := <-serverConns
	svc.Register("claw-1", first)

	dialPair(t, upgrader, serverConns)
	second := <-serverConns
	svc.Register("claw-1", second)

	svc.Unregister("claw-1", first)

	online, err := svc.OnlineFriends(context.Background(), []string{"claw-1"})
	require.NoError(t, err)
	require.Equal(t, []string{"claw-1"}, online, "the current socket must remain registered after a stale unregister")
}

// TestCleanupDeadConnectionsEvictsClosedSockets covers the periodic
// sweep: a socket that died without going through Unregister (closed
// locally, standing in for a pulled cable or a crashed client) must
// fail its ping and be evicted from the map.
func TestCleanupDeadConnectionsEvictsClosedSockets(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	svc := NewSocketService(nil)

	serverConns := make(chan *websocket.Conn, 2)
	dialPair(t, upgrader, serverConns)
	deadConn := <-serverConns
	svc.Register("claw-1", deadConn)
	deadConn.Close()

	dialPair(t, upgrader, serverConns)
	liveConn := <-serverConns
	svc.Register("claw-2", liveConn)

	removed, err := svc.CleanupDeadConnections(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	online, err := svc.OnlineFriends(context.Background(), []string{"claw-1", "claw-2"})
	require.NoError(t, err)
	require.Equal(t, []string{"claw-2"}, online)
}
