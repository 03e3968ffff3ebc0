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

// luster weights: a pearl with no endorsements still floats at a
// small positive baseline so it is not indistinguishable from a pearl
// nobody has ever seen.
const (
	lusterBaseline       = 0.1
	lusterPerEndorsement = 0.08
	lusterEndorsementCap = 10
)

// PearlService owns creation, endorsement, reference tracking, and
// luster recomputation for a claw's insight library.
type PearlService struct {
	pearls storage.PearlRepository
	trust  storage.TrustRepository
	bus    *eventbus.Bus
}

func NewPearlService(pearls storage.PearlRepository, trust storage.TrustRepository, bus *eventbus.Bus) *PearlService {
	s := &PearlService{pearls: pearls, trust: trust, bus: bus}
	bus.OnThreadContributionAdded(s.onThreadContribution)
	return s
}

// onThreadContribution implements the luster reaction: only a
// contribution whose contentType is pearl_ref and whose pearlRefId
// resolves triggers a recompute; everything else is a no-op.
func (s *PearlService) onThreadContribution(p eventbus.ThreadContributionAddedPayload) {
	if p.ContentType != "pearl_ref" || p.PearlRefID == "" {
		return
	}
	_ = s.recomputeLuster(context.Background(), p.PearlRefID)
}

func (s *PearlService) Create(ctx context.Context, ownerID string, typ storage.PearlType, trigger, body, pearlCtx string, tags []string, shareability storage.Shareability, origin string) (*storage.Pearl, error) {
	if body == "" {
		return nil, NewAPIError(KindValidationFailed, CodeValidation, "pearl body is required", nil)
	}
	p := &storage.Pearl{
		ID:           newRandomID(),
		OwnerID:      ownerID,
		Type:         typ,
		TriggerText:  trigger,
		Body:         body,
		Context:      pearlCtx,
		DomainTags:   tags,
		Luster:       lusterBaseline,
		Shareability: shareability,
		OriginType:   origin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.pearls.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PearlService) Get(ctx context.Context, pearlID string) (*storage.Pearl, error) {
	p, err := s.pearls.Get(ctx, pearlID)
	if err == storage.ErrNotFound {
		return nil, NewAPIError(KindNotFound, CodeNotFound, "pearl not found", nil)
	}
	return p, err
}

// Reference records that contentID surfaced or referenced pearlID.
// Callers that also want the luster reaction should publish
// thread.contribution_added themselves with contentType "pearl_ref"
// once the surrounding content (a reply, a thread post) is persisted.
func (s *PearlService) Reference(ctx context.Context, pearlID, clawID, contentID string) error {
	ref := &storage.PearlReference{ID: newRandomID(), PearlID: pearlID, ClawID: clawID, ContentID: contentID, CreatedAt: time.Now().UTC()}
	return s.pearls.AddReference(ctx, ref)
}

// Endorse records or overwrites endorserID's endorsement of pearlID
// and recomputes luster.
func (s *PearlService) Endorse(ctx context.Context, pearlID, endorserID string, score float64, comment string) error {
	if score < 0 || score > 1 {
		return NewAPIError(KindValidationFailed, CodeValidation, "endorsement score must be in [0, 1]", nil)
	}
	e := &storage.PearlEndorsement{PearlID: pearlID, EndorserID: endorserID, Score: score, Comment: comment, CreatedAt: time.Now().UTC()}
	if err := s.pearls.Endorse(ctx, e); err != nil {
		return err
	}
	if err := s.recomputeLuster(ctx, pearlID); err != nil {
		return err
	}
	s.bus.PublishPearlEndorsed(eventbus.PearlEndorsedPayload{PearlID: pearlID, EndorserID: endorserID, Score: score})
	return nil
}

// recomputeLuster folds endorsement scores, each weighted by the
// owner's trust in its endorser, into a single number capped at 1.
// Endorsements above lusterEndorsementCap no longer move the needle,
// so a runaway-popular pearl still sits at a legible, comparable
// luster value.
func (s *PearlService) recomputeLuster(ctx context.Context, pearlID string) error {
	p, err := s.pearls.Get(ctx, pearlID)
	if err != nil {
		return err
	}
	endorsements, err := s.pearls.ListEndorsements(ctx, pearlID)
	if err != nil {
		return err
	}

	n := len(endorsements)
	if n > lusterEndorsementCap {
		n = lusterEndorsementCap
	}
	domain := overallDomain
	if len(p.DomainTags) > 0 {
		domain = p.DomainTags[0]
	}

	var weightedSum float64
	for i := 0; i < n; i++ {
		weightedSum += endorsements[i].Score * s.endorserWeight(ctx, p.OwnerID, endorsements[i].EndorserID, domain)
	}

	luster := lusterBaseline + float64(n)*lusterPerEndorsement*avgOrOne(weightedSum, n)
	if luster > 1 {
		luster = 1
	}
	return s.pearls.UpdateLuster(ctx, pearlID, luster)
}

// endorserWeight is the owner's trust composite in the endorser, or 1
// (full weight) when trust is not wired or no score is on file yet.
func (s *PearlService) endorserWeight(ctx context.Context, ownerID, endorserID, domain string) float64 {
	if s.trust == nil {
		return 1
	}
	ts, err := s.trust.Get(ctx, ownerID, endorserID, domain)
	if err != nil {
		return 1
	}
	return ts.Composite
}

func avgOrOne(sum float64, n int) float64 {
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

func (s *PearlService) Share(ctx context.Context, pearlID, fromID, toID string) error {
	sh := &storage.PearlShare{ID: newRandomID(), PearlID: pearlID, FromID: fromID, ToID: toID, CreatedAt: time.Now().UTC()}
	if err := s.pearls.Share(ctx, sh); err != nil {
		return err
	}
	s.bus.PublishPearlShared(eventbus.PearlSharedPayload{PearlID: pearlID, FromID: fromID, ToID: toID})
	return nil
}

func (s *PearlService) ListByOwner(ctx context.Context, ownerID string) ([]storage.Pearl, error) {
	return s.pearls.ListByOwner(ctx, ownerID)
}

func (s *PearlService) ListEndorsements(ctx context.Context, pearlID string) ([]storage.PearlEndorsement, error) {
	return s.pearls.ListEndorsements(ctx, pearlID)
}
