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
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const presenceLeaseTTL = 30 * time.Second

// EtcdService is the multi-node real-time backend: room membership
// and presence are shared state in etcd rather than a process-local
// map, and channel subscriptions are etcd Watch streams instead of an
// in-process fan-out list. Sends still need a local connection to
// write to, so EtcdService wraps a SocketService for the node it runs
// on and uses etcd only for the cross-node coordination a single
// socket-local map cannot provide.
type EtcdService struct {
	local  *SocketService
	client *clientv3.Client
	logger *zap.Logger
	nodeID string
}

func NewEtcdService(local *SocketService, client *clientv3.Client, logger *zap.Logger, nodeID string) *EtcdService {
	return &EtcdService{local: local, client: client, logger: logger, nodeID: nodeID}
}

func presenceKey(room, clawID, nodeID string) string {
	return fmt.Sprintf("/clawbuds/presence/%s/%s/%s", room, clawID, nodeID)
}

func presencePrefix(room string) string {
	return fmt.Sprintf("/clawbuds/presence/%s/", room)
}

func channelKey(channel string) string {
	return fmt.Sprintf("/clawbuds/channel/%s", channel)
}

// SendToUser and SendToUsers only reach connections held open on this
// node; cross-node delivery is the caller's responsibility via
// Publish on a per-claw channel, since a general-purpose send would
// need to know which node holds a claw's socket, which etcd's
// presence set already records via JoinRoom/room membership.
func (s *EtcdService) SendToUser(ctx context.Context, clawID string, event string, payload []byte) error {
	return s.local.SendToUser(ctx, clawID, event, payload)
}

func (s *EtcdService) SendToUsers(ctx context.Context, clawIDs []string, event string, payload []byte) error {
	return s.local.SendToUsers(ctx, clawIDs, event, payload)
}

// Broadcast delivers to every locally-connected member directly and
// publishes to the room's channel so sibling nodes deliver to their
// own local members exactly once each.
func (s *EtcdService) Broadcast(ctx context.Context, room string, event string, payload []byte) error {
	if err := s.local.Broadcast(ctx, room, event, payload); err != nil {
		return err
	}
	msg, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return s.Publish(ctx, "room:"+room, msg)
}

// JoinRoom records membership locally and in a lease-backed etcd key
// so other nodes' OnlineFriends/room queries see it; the lease is
// refreshed by KeepAlive until LeaveRoom or node death lets it expire.
func (s *EtcdService) JoinRoom(ctx context.Context, room, clawID string) error {
	if err := s.local.JoinRoom(ctx, room, clawID); err != nil {
		return err
	}
	lease, err := s.client.Grant(ctx, int64(presenceLeaseTTL.Seconds()))
	if err != nil {
		return fmt.Errorf("realtime: grant presence lease: %w", err)
	}
	if _, err := s.client.Put(ctx, presenceKey(room, clawID, s.nodeID), s.nodeID, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("realtime: put presence key: %w", err)
	}
	keepAlive, err := s.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("realtime: keepalive presence lease: %w", err)
	}
	go func() {
		for range keepAlive {
			// drain responses; lease renewal itself needs no action
		}
	}()
	return nil
}

func (s *EtcdService) LeaveRoom(ctx context.Context, room, clawID string) error {
	if err := s.local.LeaveRoom(ctx, room, clawID); err != nil {
		return err
	}
	_, err := s.client.Delete(ctx, presenceKey(room, clawID, s.nodeID))
	return err
}

// Subscribe watches channelKey(channel) and invokes handler for every
// put, forwarding its value as payload; delete events (used only for
// presence, not channels) are ignored here.
func (s *EtcdService) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	watch := s.client.Watch(watchCtx, channelKey(channel))
	go func() {
		for resp := range watch {
			for _, ev := range resp.Events {
				if ev.Type == clientv3.EventTypePut {
					handler(ev.Kv.Value)
				}
			}
		}
	}()
	return cancel, nil
}

func (s *EtcdService) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := s.client.Put(ctx, channelKey(channel), string(payload))
	return err
}

// OnlineFriends unions the locally-known set with whatever the
// presence prefix reports from every node, deduplicated, so a claw
// connected to a sibling node still counts as online.
func (s *EtcdService) OnlineFriends(ctx context.Context, candidateIDs []string) ([]string, error) {
	want := make(map[string]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		want[id] = struct{}{}
	}

	online := make(map[string]struct{})
	local, err := s.local.OnlineFriends(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range local {
		online[id] = struct{}{}
	}

	resp, err := s.client.Get(ctx, "/clawbuds/presence/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("realtime: list presence keys: %w", err)
	}
	for _, kv := range resp.Kvs {
		clawID := clawIDFromPresenceKey(string(kv.Key))
		if _, wanted := want[clawID]; wanted {
			online[clawID] = struct{}{}
		}
	}

	out := make([]string, 0, len(online))
	for id := range online {
		out = append(out, id)
	}
	return out, nil
}

// clawIDFromPresenceKey extracts the claw id segment from
// /clawbuds/presence/{room}/{clawId}/{nodeId}.
func clawIDFromPresenceKey(key string) string {
	parts := splitPath(key)
	if len(parts) >= 3 {
		return parts[len(parts)-2]
	}
	return ""
}

func splitPath(key string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			if i > start {
				parts = append(parts, key[start:i])
			}
			start = i + 1
		}
	}
	if start < len(key) {
		parts = append(parts, key[start:])
	}
	return parts
}

var _ Service = (*EtcdService)(nil)
