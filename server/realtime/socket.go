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
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// envelope is the wire shape pushed down every open connection.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// conn pairs a socket with the mutex every write to it must hold:
// gorilla/websocket forbids concurrent writers on one connection, and
// with a single socket per user now shared between SendToUsers and
// the cleanup sweep's ping, a plain map lock no longer serializes
// writes to the same underlying connection the way it did when each
// write only ever touched one element of a per-user set.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !deadline.IsZero() {
		if messageType == websocket.PingMessage {
			return c.ws.WriteControl(messageType, data, deadline)
		}
	}
	return c.ws.WriteMessage(messageType, data)
}

// SocketService is the single-node real-time backend: connections,
// room membership, and channel subscriptions all live in
// mutex-guarded maps local to this process — one map of at most one
// live connection per claw id, one map of room membership.
type SocketService struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*conn               // clawID -> the one open socket
	rooms map[string]map[string]struct{} // room -> clawIDs

	subMu     sync.RWMutex
	subs      map[string]map[int]func(payload []byte) // channel -> id -> handler
	nextSubID int
}

func NewSocketService(logger *zap.Logger) *SocketService {
	return &SocketService{
		logger: logger,
		conns:  make(map[string]*conn),
		rooms:  make(map[string]map[string]struct{}),
		subs:   make(map[string]map[int]func(payload []byte)),
	}
}

// Register tracks ws as clawID's one open socket until Unregister is
// called; the HTTP upgrade handler owns the connection's lifecycle and
// must call Unregister in its read-loop's exit path. Re-registering a
// claw on a new socket closes and evicts whatever socket it previously
// held, per the single-socket-per-user contract.
func (s *SocketService) Register(clawID string, ws *websocket.Conn) {
	c := &conn{ws: ws}
	s.mu.Lock()
	prev := s.conns[clawID]
	s.conns[clawID] = c
	s.mu.Unlock()
	if prev != nil && prev.ws != ws {
		prev.ws.Close()
	}
}

// Unregister clears clawID's socket only if ws is still the one on
// record, so a stale unregister from an already-replaced connection
// can't evict the socket that replaced it.
func (s *SocketService) Unregister(clawID string, ws *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conns[clawID]; ok && c.ws == ws {
		delete(s.conns, clawID)
	}
	for room, members := range s.rooms {
		delete(members, clawID)
		if len(members) == 0 {
			delete(s.rooms, room)
		}
	}
}

func (s *SocketService) SendToUser(ctx context.Context, clawID string, event string, payload []byte) error {
	return s.SendToUsers(ctx, []string{clawID}, event, payload)
}

func (s *SocketService) SendToUsers(ctx context.Context, clawIDs []string, event string, payload []byte) error {
	msg, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	s.mu.RLock()
	targets := make([]*conn, 0, len(clawIDs))
	ids := make([]string, 0, len(clawIDs))
	for _, clawID := range clawIDs {
		if c := s.conns[clawID]; c != nil {
			targets = append(targets, c)
			ids = append(ids, clawID)
		}
	}
	s.mu.RUnlock()

	for i, c := range targets {
		if err := c.write(websocket.TextMessage, msg, time.Time{}); err != nil && s.logger != nil {
			s.logger.Warn("dropped real-time send", zap.String("clawId", ids[i]), zap.Error(err))
		}
	}
	return nil
}

// CleanupDeadConnections pings every open socket and evicts any that
// fail to write, the periodic sweep the scheduler runs alongside the
// other maintenance jobs so a socket that died without a clean close
// frame (a pulled cable, a killed client) doesn't linger in the map.
func (s *SocketService) CleanupDeadConnections(ctx context.Context) (int, error) {
	s.mu.RLock()
	snapshot := make(map[string]*conn, len(s.conns))
	for clawID, c := range s.conns {
		snapshot[clawID] = c
	}
	s.mu.RUnlock()

	var dead []string
	for clawID, c := range snapshot {
		if err := c.write(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			dead = append(dead, clawID)
		}
	}
	if len(dead) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	for _, clawID := range dead {
		if s.conns[clawID] == snapshot[clawID] {
			delete(s.conns, clawID)
		}
	}
	s.mu.Unlock()

	for _, clawID := range dead {
		snapshot[clawID].ws.Close()
	}
	return len(dead), nil
}

func (s *SocketService) Broadcast(ctx context.Context, room string, event string, payload []byte) error {
	s.mu.RLock()
	members := make([]string, 0, len(s.rooms[room]))
	for clawID := range s.rooms[room] {
		members = append(members, clawID)
	}
	s.mu.RUnlock()
	return s.SendToUsers(ctx, members, event, payload)
}

func (s *SocketService) JoinRoom(ctx context.Context, room, clawID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[room] == nil {
		s.rooms[room] = make(map[string]struct{})
	}
	s.rooms[room][clawID] = struct{}{}
	return nil
}

func (s *SocketService) LeaveRoom(ctx context.Context, room, clawID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms[room], clawID)
	if len(s.rooms[room]) == 0 {
		delete(s.rooms, room)
	}
	return nil
}

func (s *SocketService) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (func(), error) {
	s.subMu.Lock()
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[int]func(payload []byte))
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[channel][id] = handler
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs[channel], id)
		if len(s.subs[channel]) == 0 {
			delete(s.subs, channel)
		}
		s.subMu.Unlock()
	}, nil
}

func (s *SocketService) Publish(ctx context.Context, channel string, payload []byte) error {
	s.subMu.RLock()
	handlers := make([]func(payload []byte), 0, len(s.subs[channel]))
	for _, h := range s.subs[channel] {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (s *SocketService) OnlineFriends(ctx context.Context, candidateIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var online []string
	for _, id := range candidateIDs {
		if s.conns[id] != nil {
			online = append(online, id)
		}
	}
	return online, nil
}

var _ Service = (*SocketService)(nil)
