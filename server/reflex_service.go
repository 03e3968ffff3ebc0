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

	"github.com/chitinlabs/clawbuds/server/storage"
)

// ReflexService owns the CRUD surface over a claw's own reflexes; the
// matching/execution/analysis surface lives in ReflexEngine, which
// this service does not wrap so the two concerns stay independently
// testable.
type ReflexService struct {
	reflexes storage.ReflexRepository
}

func NewReflexService(reflexes storage.ReflexRepository) *ReflexService {
	return &ReflexService{reflexes: reflexes}
}

type CreateReflexRequest struct {
	Name          string
	ValueLayer    string
	Behavior      string
	TriggerLayer  storage.TriggerLayer
	TriggerConfig []byte
	Confidence    float64
}

func (s *ReflexService) Create(ctx context.Context, clawID string, req CreateReflexRequest) (*storage.Reflex, error) {
	rx := &storage.Reflex{
		ID:            newRandomID(),
		ClawID:        clawID,
		Name:          req.Name,
		ValueLayer:    req.ValueLayer,
		Behavior:      req.Behavior,
		TriggerLayer:  req.TriggerLayer,
		TriggerConfig: req.TriggerConfig,
		Enabled:       true,
		Confidence:    req.Confidence,
		Source:        storage.ReflexUser,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.reflexes.Create(ctx, rx); err != nil {
		if err == storage.ErrDuplicate {
			return nil, NewAPIError(KindConflict, CodeDuplicate, "a reflex with this name already exists", nil)
		}
		return nil, err
	}
	return rx, nil
}

func (s *ReflexService) ListEnabled(ctx context.Context, clawID string) ([]storage.Reflex, error) {
	return s.reflexes.ListEnabled(ctx, clawID)
}

// SetEnabled toggles a reflex's Enabled flag, the sole mutation the
// wire surface permits beyond creation.
func (s *ReflexService) SetEnabled(ctx context.Context, clawID, name string, enabled bool) (*storage.Reflex, error) {
	rx, err := s.reflexes.Get(ctx, clawID, name)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, NewAPIError(KindNotFound, CodeNotFound, "reflex not found", nil)
		}
		return nil, err
	}
	rx.Enabled = enabled
	if err := s.reflexes.Update(ctx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

func (s *ReflexService) ListExecutions(ctx context.Context, clawID string, since, until time.Time, result storage.ExecutionResult) ([]storage.ReflexExecution, error) {
	return s.reflexes.ListExecutions(ctx, clawID, since, until, result)
}

func (s *ReflexService) Stats(ctx context.Context, clawID string, since, until time.Time) (map[string]storage.ReflexStats, error) {
	return s.reflexes.Stats(ctx, clawID, since, until)
}
