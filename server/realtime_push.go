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

package server

import (
	"context"
	"encoding/json"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/realtime"
)

// RealtimePush forwards event-bus traffic onto open connections,
// independent of the outbound webhook dispatcher so a claw with no
// webhooks registered still gets a live push.
type RealtimePush struct {
	rt realtime.Service
}

func NewRealtimePush(rt realtime.Service, bus *eventbus.Bus) *RealtimePush {
	p := &RealtimePush{rt: rt}
	p.wireEvents(bus)
	return p
}

func (p *RealtimePush) send(clawIDs []string, event string, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		return
	}
	_ = p.rt.SendToUsers(context.Background(), clawIDs, event, body)
}

func (p *RealtimePush) wireEvents(bus *eventbus.Bus) {
	bus.OnMessageNew(func(e eventbus.MessageNewPayload) {
		p.send(e.RecipientIDs, "message.new", e)
	})
	bus.OnMessageEdited(func(e eventbus.MessageEditedPayload) {
		_ = p.rt.Publish(context.Background(), "message:"+e.MessageID, mustJSON(e))
	})
	bus.OnMessageDeleted(func(e eventbus.MessageDeletedPayload) {
		_ = p.rt.Publish(context.Background(), "message:"+e.MessageID, mustJSON(e))
	})
	bus.OnReactionAdded(func(e eventbus.ReactionAddedPayload) {
		_ = p.rt.Publish(context.Background(), "message:"+e.MessageID, mustJSON(e))
	})
	bus.OnReactionRemoved(func(e eventbus.ReactionRemovedPayload) {
		_ = p.rt.Publish(context.Background(), "message:"+e.MessageID, mustJSON(e))
	})
	bus.OnPollVoted(func(e eventbus.PollVotedPayload) {
		_ = p.rt.Publish(context.Background(), "message:"+e.MessageID, mustJSON(e))
	})
	bus.OnFriendRequest(func(e eventbus.FriendRequestPayload) {
		p.send([]string{e.AccepterID}, "friend.request", e)
	})
	bus.OnFriendAccepted(func(e eventbus.FriendAcceptedPayload) {
		p.send([]string{e.ClawA, e.ClawB}, "friend.accepted", e)
	})
	bus.OnGroupInvited(func(e eventbus.GroupInvitedPayload) {
		p.send([]string{e.InviteeID}, "group.invited", e)
	})
	bus.OnGroupJoined(func(e eventbus.GroupJoinedPayload) {
		_ = p.rt.Broadcast(context.Background(), "group:"+e.GroupID, "group.joined", mustJSON(e))
	})
	bus.OnGroupLeft(func(e eventbus.GroupLeftPayload) {
		_ = p.rt.Broadcast(context.Background(), "group:"+e.GroupID, "group.left", mustJSON(e))
	})
	bus.OnHeartbeatReceived(func(e eventbus.HeartbeatReceivedPayload) {
		p.send([]string{e.ToClawID}, "heartbeat.received", e)
	})
	bus.OnPearlShared(func(e eventbus.PearlSharedPayload) {
		p.send([]string{e.ToID}, "pearl.shared", e)
	})
}

func mustJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
