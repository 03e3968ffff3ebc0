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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/storage"
)

// BriefingService compiles the periodic daily/weekly summary a claw's
// owner reads.
type BriefingService struct {
	briefings storage.BriefingRepository
	relations storage.RelationshipRepository
	reflexes  *ReflexEngine
	logger    *zap.Logger
}

func NewBriefingService(briefings storage.BriefingRepository, relations storage.RelationshipRepository, reflexes *ReflexEngine, logger *zap.Logger) *BriefingService {
	return &BriefingService{briefings: briefings, relations: relations, reflexes: reflexes, logger: logger}
}

type briefingRawData struct {
	RelationshipCount int          `json:"relationshipCount"`
	Suggestions       []Suggestion `json:"suggestions"`
}

// Generate compiles and persists one briefing of typ for clawID.
// Per-claw failures are surfaced to the caller rather than silently
// swallowed; the scheduler is what isolates failures across claws.
func (s *BriefingService) Generate(ctx context.Context, clawID string, typ storage.BriefingType, pearls storage.PearlRepository) (*storage.Briefing, error) {
	rels, err := s.relations.ListByOwner(ctx, clawID)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.reflexes.Analyze(ctx, clawID, s.briefings, s.relations, pearls)
	if err != nil {
		return nil, err
	}

	raw := briefingRawData{RelationshipCount: len(rels), Suggestions: suggestions}
	rawBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	b := &storage.Briefing{
		ID:          newRandomID(),
		ClawID:      clawID,
		Type:        typ,
		Content:     fmt.Sprintf("%d relationships tracked, %d new suggestions", len(rels), len(suggestions)),
		RawData:     rawBytes,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.briefings.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BriefingService) Acknowledge(ctx context.Context, briefingID string) error {
	return s.briefings.Acknowledge(ctx, briefingID, time.Now().UTC())
}

func (s *BriefingService) ListByClaw(ctx context.Context, clawID string, limit int) ([]storage.Briefing, error) {
	return s.briefings.ListByClaw(ctx, clawID, limit)
}

// MicroMoltService turns high-confidence reflex suggestions into
// proposed reflex mutations a claw's owner can approve. Proposing
// never mutates a Reflex; Apply only ever disables one.
type MicroMoltService struct {
	reflexes storage.ReflexRepository
	engine   *ReflexEngine
	logger   *zap.Logger
}

func NewMicroMoltService(reflexes storage.ReflexRepository, engine *ReflexEngine, logger *zap.Logger) *MicroMoltService {
	return &MicroMoltService{reflexes: reflexes, engine: engine, logger: logger}
}

// ProposedMutation is a micro-molt's candidate change to a reflex,
// pending the owner's approval.
type ProposedMutation struct {
	ReflexName string
	Action     string // disable | retime | escalate | allow
	Confidence float64
	Rationale  string
}

// Propose runs the reflex engine's analyses and reframes each
// suggestion as a named mutation proposal.
func (s *MicroMoltService) Propose(ctx context.Context, clawID string, briefings storage.BriefingRepository, relations storage.RelationshipRepository, pearls storage.PearlRepository) ([]ProposedMutation, error) {
	suggestions, err := s.engine.Analyze(ctx, clawID, briefings, relations, pearls)
	if err != nil {
		return nil, err
	}
	out := make([]ProposedMutation, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, ProposedMutation{
			ReflexName: sg.ReflexName,
			Action:     sg.Kind,
			Confidence: sg.Confidence,
			Rationale:  sg.Detail,
		})
	}
	return out, nil
}

// Apply enacts a disable mutation; every other action kind requires
// owner-facing UI the core does not render and is a no-op here.
func (s *MicroMoltService) Apply(ctx context.Context, clawID string, m ProposedMutation) error {
	if m.Action != "disable" {
		return nil
	}
	rx, err := s.reflexes.Get(ctx, clawID, m.ReflexName)
	if err != nil {
		return err
	}
	rx.Enabled = false
	return s.reflexes.Update(ctx, rx)
}
