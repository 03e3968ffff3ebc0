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

// Package realtime pushes events to connected claws over WebSocket
// and tracks which claws are currently online, room by room.
package realtime

import "context"

// Service is the capability every real-time backend (socket-local,
// broker-backed) implements identically, so callers never branch on
// which one is wired in.
type Service interface {
	// SendToUser delivers payload to every connection clawID currently
	// holds open. A disconnected clawID is a no-op, not an error.
	SendToUser(ctx context.Context, clawID string, event string, payload []byte) error
	SendToUsers(ctx context.Context, clawIDs []string, event string, payload []byte) error
	// Broadcast delivers payload to every claw currently joined to
	// room, exactly once each.
	Broadcast(ctx context.Context, room string, event string, payload []byte) error

	JoinRoom(ctx context.Context, room, clawID string) error
	LeaveRoom(ctx context.Context, room, clawID string) error

	// Subscribe registers handler against channel, returning an
	// unsubscribe func. After unsubscribe returns, handler is
	// guaranteed to receive no further Publish calls.
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (unsubscribe func(), err error)
	Publish(ctx context.Context, channel string, payload []byte) error

	// OnlineFriends reports which of candidateIDs currently hold an
	// open connection, backing the online-presence query endpoint.
	OnlineFriends(ctx context.Context, candidateIDs []string) ([]string, error)
}
