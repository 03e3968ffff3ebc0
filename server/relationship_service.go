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
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// InteractionType is the event classification that drives the daily
// interaction boost.
type InteractionType string

const (
	InteractionMessage    InteractionType = "message"
	InteractionReaction   InteractionType = "reaction"
	InteractionHeartbeat  InteractionType = "heartbeat"
	InteractionPearlShare InteractionType = "pearl_share"
	InteractionPollVote   InteractionType = "poll_vote"
)

var interactionWeight = map[InteractionType]float64{
	InteractionMessage:    0.05,
	InteractionReaction:   0.02,
	InteractionHeartbeat:  0.005,
	InteractionPearlShare: 0.08,
	InteractionPollVote:   0.03,
}

var dunbarOrder = []struct {
	layer     storage.DunbarLayer
	threshold float64
	capacity  int // 0 means unbounded
}{
	{storage.LayerCore, 0.8, 5},
	{storage.LayerSympathy, 0.6, 15},
	{storage.LayerActive, 0.3, 50},
	{storage.LayerCasual, 0.0, 0},
}

// decay is the piecewise-linear daily multiplier, non-decreasing on
// [0, 0.8] and constant on [0.8, 1.0].
func decay(s float64) float64 {
	switch {
	case s < 0.3:
		return 0.95 + s*0.1
	case s < 0.6:
		return 0.98 + (s-0.3)*0.05
	case s < 0.8:
		return 0.995 + (s-0.6)*0.02
	default:
		return 0.999
	}
}

// RelationshipService runs the daily decay/reclassification pass and
// applies interaction boosts as events arrive.
type RelationshipService struct {
	relations storage.RelationshipRepository
	bus       *eventbus.Bus
	logger    *zap.Logger
	dailyCap  float64

	mu          sync.Mutex
	boostsToday map[string]float64 // key: claw|friend|yyyy-mm-dd
}

func NewRelationshipService(relations storage.RelationshipRepository, bus *eventbus.Bus, logger *zap.Logger, dailyCap float64) *RelationshipService {
	return &RelationshipService{
		relations:   relations,
		bus:         bus,
		logger:      logger,
		dailyCap:    dailyCap,
		boostsToday: make(map[string]float64),
	}
}

// boostPair applies the interaction boost to both ordered pairs for a
// two-party interaction, since each side's relationship record tracks
// its own belief about the other. A missing record (no RelationshipStrength
// yet for that pair, e.g. a non-friend public message recipient) is
// logged and skipped rather than treated as a fatal error.
func (s *RelationshipService) boostPair(ctx context.Context, a, b string, kind InteractionType) {
	for _, pair := range [2][2]string{{a, b}, {b, a}} {
		if err := s.ApplyInteraction(ctx, pair[0], pair[1], kind); err != nil && s.logger != nil {
			s.logger.Debug("interaction boost skipped", zap.String("claw", pair[0]), zap.String("friend", pair[1]), zap.Error(err))
		}
	}
}

// WireEvents subscribes the interaction-boost half of the engine
// (§4.7) to the event types that carry a boostable interaction:
// message.new, reaction.added, heartbeat.received, pearl.shared and
// poll.voted. messages resolves the owning claw for reaction/vote
// payloads, which only carry the message id.
func (s *RelationshipService) WireEvents(bus *eventbus.Bus, messages storage.MessageRepository) {
	messageOwner := func(messageID string) (string, bool) {
		msg, err := messages.Get(context.Background(), messageID)
		if err != nil {
			return "", false
		}
		return msg.FromClawID, true
	}

	bus.OnMessageNew(func(p eventbus.MessageNewPayload) {
		for _, recipientID := range p.RecipientIDs {
			s.boostPair(context.Background(), p.SenderID, recipientID, InteractionMessage)
		}
	})
	bus.OnReactionAdded(func(p eventbus.ReactionAddedPayload) {
		if owner, ok := messageOwner(p.MessageID); ok && owner != p.ClawID {
			s.boostPair(context.Background(), p.ClawID, owner, InteractionReaction)
		}
	})
	bus.OnHeartbeatReceived(func(p eventbus.HeartbeatReceivedPayload) {
		s.boostPair(context.Background(), p.FromClawID, p.ToClawID, InteractionHeartbeat)
	})
	bus.OnPearlShared(func(p eventbus.PearlSharedPayload) {
		s.boostPair(context.Background(), p.FromID, p.ToID, InteractionPearlShare)
	})
	bus.OnPollVoted(func(p eventbus.PollVotedPayload) {
		if owner, ok := messageOwner(p.MessageID); ok && owner != p.ClawID {
			s.boostPair(context.Background(), p.ClawID, owner, InteractionPollVote)
		}
	})
}

// ApplyInteraction adds the weight for kind to (clawID, friendID),
// capped per (claw, friend, UTC day), and touches lastInteractionAt
//. The per-process map is authoritative only
// within one node.
func (s *RelationshipService) ApplyInteraction(ctx context.Context, clawID, friendID string, kind InteractionType) error {
	weight, ok := interactionWeight[kind]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	dayKey := clawID + "|" + friendID + "|" + now.Format("2006-01-02")

	s.mu.Lock()
	used := s.boostsToday[dayKey]
	remaining := s.dailyCap - used
	if remaining <= 0 {
		s.mu.Unlock()
		return nil
	}
	applied := weight
	if applied > remaining {
		applied = remaining
	}
	s.boostsToday[dayKey] = used + applied
	s.mu.Unlock()

	rs, err := s.relations.Get(ctx, clawID, friendID)
	if err != nil {
		return err
	}
	newStrength := rs.Strength*decay(rs.Strength) + applied
	if newStrength > 1 {
		newStrength = 1
	}
	rs.Strength = newStrength
	rs.LastInteractionAt = now
	return s.relations.Upsert(ctx, rs)
}

// RunDailyDecay performs the idempotent per-claw daily job: decay
// every strength, then reclassify Dunbar layers by rank within
// capacity. Per-owner failures are isolated so one owner's error does
// not abort the pass for others.
func (s *RelationshipService) RunDailyDecay(ctx context.Context, ownerIDs []string) {
	for _, owner := range ownerIDs {
		if err := s.runDailyDecayForOwner(ctx, owner); err != nil && s.logger != nil {
			s.logger.Error("daily relationship decay failed for owner", zap.String("owner", owner), zap.Error(err))
		}
	}
}

func (s *RelationshipService) runDailyDecayForOwner(ctx context.Context, ownerID string) error {
	relationships, err := s.relations.ListByOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	for i := range relationships {
		rs := &relationships[i]
		rs.Strength = rs.Strength * decay(rs.Strength)
	}

	sort.SliceStable(relationships, func(i, j int) bool {
		return relationships[i].Strength > relationships[j].Strength
	})

	capacityUsed := map[storage.DunbarLayer]int{}
	for i := range relationships {
		rs := &relationships[i]
		oldLayer := rs.DunbarLayer
		if !rs.ManualOverride {
			rs.DunbarLayer = assignLayer(rs.Strength, capacityUsed)
		}
		capacityUsed[rs.DunbarLayer]++

		if err := s.relations.Upsert(ctx, rs); err != nil {
			return err
		}
		if rs.DunbarLayer != oldLayer {
			s.bus.PublishRelationshipLayerChanged(eventbus.RelationshipLayerChangedPayload{
				ClawID:   ownerID,
				FriendID: rs.FriendID,
				OldLayer: string(oldLayer),
				NewLayer: string(rs.DunbarLayer),
			})
		}
	}
	return nil
}

// assignLayer walks core -> sympathy -> active -> casual, assigning
// the first layer whose threshold and remaining capacity both admit
// strength s. Records are processed in descending-strength order by
// the caller so rank is implicit in call order.
func assignLayer(s float64, used map[storage.DunbarLayer]int) storage.DunbarLayer {
	for _, l := range dunbarOrder {
		if s < l.threshold {
			continue
		}
		if l.capacity > 0 && used[l.layer] >= l.capacity {
			continue
		}
		return l.layer
	}
	return storage.LayerCasual
}
