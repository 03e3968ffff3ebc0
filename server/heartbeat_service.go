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
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

const (
	expertiseFirstAppearance = 0.3
	expertisePersistStep     = 0.05
	expertiseAbsentStep      = 0.02
	expertisePruneThreshold  = 0.1
)

// HeartbeatService computes the outbound diff against the last sent
// heartbeat and persists/emits inbound ones.
type HeartbeatService struct {
	heartbeats storage.HeartbeatRepository
	models     storage.FriendModelRepository
	bus        *eventbus.Bus
}

func NewHeartbeatService(heartbeats storage.HeartbeatRepository, models storage.FriendModelRepository, bus *eventbus.Bus) *HeartbeatService {
	return &HeartbeatService{heartbeats: heartbeats, models: models, bus: bus}
}

// Send computes the diff of (interests, availability, recentTopics)
// against the last heartbeat sent from fromClawID to toClawID: if all
// three are unchanged, only a keepalive marker is stored; otherwise
// the full current state is stored as a non-keepalive record.
func (s *HeartbeatService) Send(ctx context.Context, fromClawID, toClawID string, interests []string, availability string, recentTopics []string) (*storage.Heartbeat, error) {
	last, err := s.heartbeats.GetLast(ctx, fromClawID, toClawID)
	if err != nil && err != storage.ErrNotFound {
		return nil, err
	}

	unchanged := last != nil && !last.IsKeepalive &&
		sameStringSet(last.Interests, interests) &&
		last.Availability == availability &&
		sameStringSet(last.RecentTopics, recentTopics)

	hb := &storage.Heartbeat{
		ID:         newRandomID(),
		FromClawID: fromClawID,
		ToClawID:   toClawID,
		CreatedAt:  time.Now().UTC(),
	}
	if unchanged {
		hb.IsKeepalive = true
	} else {
		hb.Interests = interests
		hb.Availability = availability
		hb.RecentTopics = recentTopics
	}

	if err := s.heartbeats.Save(ctx, hb); err != nil {
		return nil, err
	}
	return hb, nil
}

// Receive persists an inbound heartbeat, emits heartbeat.received, and
// folds it into the recipient's model of the sender.
func (s *HeartbeatService) Receive(ctx context.Context, hb *storage.Heartbeat) error {
	if err := s.heartbeats.Save(ctx, hb); err != nil {
		return err
	}
	s.bus.PublishHeartbeatReceived(eventbus.HeartbeatReceivedPayload{
		FromClawID: hb.FromClawID, ToClawID: hb.ToClawID, IsKeepalive: hb.IsKeepalive,
	})
	return s.updateFromHeartbeat(ctx, hb)
}

// updateFromHeartbeat folds one inbound heartbeat into the recipient's
// running model of the sender: expertise tags rise on appearance,
// decay on absence, and are pruned once they fall below threshold.
func (s *HeartbeatService) updateFromHeartbeat(ctx context.Context, hb *storage.Heartbeat) error {
	fm, err := s.models.Get(ctx, hb.ToClawID, hb.FromClawID)
	if err == storage.ErrNotFound {
		fm = &storage.FriendModel{ClawID: hb.ToClawID, FriendID: hb.FromClawID, ExpertiseTags: map[string]float64{}}
	} else if err != nil {
		return err
	}
	if fm.ExpertiseTags == nil {
		fm.ExpertiseTags = map[string]float64{}
	}

	fm.LastHeartbeatAt = hb.CreatedAt

	if hb.IsKeepalive {
		return s.models.Upsert(ctx, fm)
	}

	fm.InferredInterests = hb.Interests
	if len(hb.RecentTopics) > 0 {
		fm.LastKnownState = joinTopics(hb.RecentTopics)
	}
	fm.ExpertiseTags = evolveExpertise(fm.ExpertiseTags, hb.Interests)

	return s.models.Upsert(ctx, fm)
}

// evolveExpertise applies the first-appearance/persist/absent/prune
// rule to the tag confidence map.
func evolveExpertise(current map[string]float64, presentTags []string) map[string]float64 {
	present := make(map[string]struct{}, len(presentTags))
	for _, t := range presentTags {
		present[t] = struct{}{}
	}

	next := make(map[string]float64, len(current)+len(presentTags))
	for tag, score := range current {
		if _, ok := present[tag]; ok {
			score += expertisePersistStep
			if score > 1 {
				score = 1
			}
		} else {
			score -= expertiseAbsentStep
		}
		if score >= expertisePruneThreshold {
			next[tag] = score
		}
	}
	for tag := range present {
		if _, ok := current[tag]; !ok {
			next[tag] = expertiseFirstAppearance
		}
	}
	return next
}

func joinTopics(topics []string) string {
	sorted := append([]string(nil), topics...)
	sort.Strings(sorted)
	out := ""
	for i, t := range sorted {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]string(nil), a...), append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// InterestOverlap returns the non-empty intersection of two friend
// models' inferred interests, for clawID's models of friendA/friendB.
func (s *HeartbeatService) InterestOverlap(ctx context.Context, clawID, friendA, friendB string) ([]string, error) {
	ma, err := s.models.Get(ctx, clawID, friendA)
	if err != nil {
		return nil, err
	}
	mb, err := s.models.Get(ctx, clawID, friendB)
	if err != nil {
		return nil, err
	}
	setB := make(map[string]struct{}, len(mb.InferredInterests))
	for _, t := range mb.InferredInterests {
		setB[t] = struct{}{}
	}
	var overlap []string
	for _, t := range ma.InferredInterests {
		if _, ok := setB[t]; ok {
			overlap = append(overlap, t)
		}
	}
	return overlap, nil
}

func (s *HeartbeatService) GetFriendModel(ctx context.Context, clawID, friendID string) (*storage.FriendModel, error) {
	fm, err := s.models.Get(ctx, clawID, friendID)
	if err == storage.ErrNotFound {
		return nil, NewAPIError(KindNotFound, CodeNotFound, "no friend model on file", nil)
	}
	return fm, err
}
