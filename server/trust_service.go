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
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// trustCompositeWeight is the convex-combination weight applied to H
// (historical reliability) against Q (quality signal): composite =
// w*H + (1-w)*Q, both clamped to [0,1] before combining.
const trustCompositeWeight = 0.6

// overallDomain is the sentinel bucket used when a pearl carries no
// domain tags.
const overallDomain = "_overall"

const (
	trustPearlEndorsedHighQ = 0.1
	trustPearlEndorsedLowQ  = -0.1
)

// TrustService maintains per-domain (H, Q, composite) by reacting to
// friend.accepted, relationship.layer_changed, and pearl.endorsed.
type TrustService struct {
	trust  storage.TrustRepository
	pearls storage.PearlRepository
}

func NewTrustService(trust storage.TrustRepository, pearls storage.PearlRepository, bus *eventbus.Bus) *TrustService {
	s := &TrustService{trust: trust, pearls: pearls}
	bus.OnFriendAccepted(s.onFriendAccepted)
	bus.OnRelationshipLayerChanged(s.onLayerChanged)
	bus.OnPearlEndorsed(s.onPearlEndorsed)
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func composite(h, q float64) float64 {
	return trustCompositeWeight*clamp01(h) + (1-trustCompositeWeight)*clamp01(q)
}

// seedDefault returns the (owner, subject, domain) score, creating it
// at the default H=Q=0.5 if it does not exist yet.
func (s *TrustService) seedDefault(ctx context.Context, ownerID, subjectID, domain string) (*storage.TrustScore, error) {
	ts, err := s.trust.Get(ctx, ownerID, subjectID, domain)
	if err == storage.ErrNotFound {
		ts = &storage.TrustScore{OwnerID: ownerID, SubjectID: subjectID, Domain: domain, H: 0.5, Q: 0.5}
		ts.Composite = composite(ts.H, ts.Q)
		ts.UpdatedAt = time.Now().UTC()
		return ts, s.trust.Upsert(ctx, ts)
	}
	return ts, err
}

// onFriendAccepted seeds trust defaults in both directions; the
// directional RelationshipStrength records themselves are created by
// the friendship service.
func (s *TrustService) onFriendAccepted(p eventbus.FriendAcceptedPayload) {
	ctx := context.Background()
	_, _ = s.seedDefault(ctx, p.ClawA, p.ClawB, overallDomain)
	_, _ = s.seedDefault(ctx, p.ClawB, p.ClawA, overallDomain)
}

// onLayerChanged recomputes N, the normalization factor, for the
// (owner, friend) pair: each layer reassignment is one more observed
// data point about the relationship's trajectory.
func (s *TrustService) onLayerChanged(p eventbus.RelationshipLayerChangedPayload) {
	ctx := context.Background()
	ts, err := s.seedDefault(ctx, p.ClawID, p.FriendID, overallDomain)
	if err != nil {
		return
	}
	ts.N++
	ts.UpdatedAt = time.Now().UTC()
	_ = s.trust.Upsert(ctx, ts)
}

// onPearlEndorsed pushes pearl_endorsed_high/_low into Q for
// (ownerId, endorserId, domain), domain being the pearl's first
// domain tag or the _overall sentinel.
func (s *TrustService) onPearlEndorsed(p eventbus.PearlEndorsedPayload) {
	if p.Score >= 0.3 && p.Score <= 0.7 {
		return
	}
	ctx := context.Background()
	pearl, err := s.pearls.Get(ctx, p.PearlID)
	if err != nil {
		return
	}
	domain := overallDomain
	if len(pearl.DomainTags) > 0 {
		domain = pearl.DomainTags[0]
	}

	ts, err := s.seedDefault(ctx, pearl.OwnerID, p.EndorserID, domain)
	if err != nil {
		return
	}
	switch {
	case p.Score > 0.7:
		ts.Q = clamp01(ts.Q + trustPearlEndorsedHighQ)
	case p.Score < 0.3:
		ts.Q = clamp01(ts.Q + trustPearlEndorsedLowQ)
	default:
		return
	}
	ts.Composite = composite(ts.H, ts.Q)
	ts.N++
	ts.UpdatedAt = time.Now().UTC()
	_ = s.trust.Upsert(ctx, ts)
}

func (s *TrustService) Get(ctx context.Context, ownerID, subjectID, domain string) (*storage.TrustScore, error) {
	ts, err := s.trust.Get(ctx, ownerID, subjectID, domain)
	if err == storage.ErrNotFound {
		return &storage.TrustScore{OwnerID: ownerID, SubjectID: subjectID, Domain: domain, H: 0.5, Q: 0.5, Composite: composite(0.5, 0.5)}, nil
	}
	return ts, err
}
