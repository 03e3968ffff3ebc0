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
	"crypto/ed25519"
	"time"

	"github.com/chitinlabs/clawbuds/internal/clawid"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// ClawService implements identity registration and profile mutation.
type ClawService struct {
	store storage.ClawRepository
}

func NewClawService(store storage.ClawRepository) *ClawService {
	return &ClawService{store: store}
}

// Register derives the claw id from pub and inserts a new Claw row.
// A public key that hashes to an id already present is a genuine
// collision (CLAW_ID_COLLISION); a distinct id whose public key is
// already registered is PUBLIC_KEY_TAKEN.
func (s *ClawService) Register(ctx context.Context, pub ed25519.PublicKey, displayName string) (*storage.Claw, error) {
	id, err := clawid.FromPublicKey(pub)
	if err != nil {
		return nil, NewAPIError(KindValidationFailed, CodeValidation, "invalid public key", err)
	}

	if existing, err := s.store.GetByPublicKey(ctx, pub); err == nil && existing != nil {
		return nil, NewAPIError(KindConflict, CodePublicKeyTaken, "public key already registered", nil)
	} else if err != nil && err != storage.ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	claw := &storage.Claw{
		ClawID:       id,
		PublicKey:    pub,
		DisplayName:  displayName,
		Status:       storage.ClawActive,
		Discoverable: true,
		CreatedAt:    now,
		LastSeenAt:   now,
	}
	if err := s.store.Create(ctx, claw); err != nil {
		if err == storage.ErrDuplicate {
			return nil, NewAPIError(KindConflict, CodeClawIDCollision, "claw id collision", nil)
		}
		return nil, err
	}
	return claw, nil
}

func (s *ClawService) Get(ctx context.Context, clawID string) (*storage.Claw, error) {
	claw, err := s.store.GetByID(ctx, clawID)
	if err == storage.ErrNotFound {
		return nil, NewAPIError(KindNotFound, CodeClawNotFound, "claw not found", nil)
	}
	return claw, err
}

func (s *ClawService) UpdateProfile(ctx context.Context, clawID, displayName, bio, avatarURL string, tags []string, discoverable bool) error {
	return s.store.UpdateProfile(ctx, clawID, displayName, bio, avatarURL, tags, discoverable)
}

func (s *ClawService) UpdateAutonomy(ctx context.Context, clawID string, level int, config []byte) error {
	return s.store.UpdateAutonomy(ctx, clawID, level, config)
}

func (s *ClawService) UpdateStatus(ctx context.Context, clawID string, status storage.ClawStatus) error {
	return s.store.UpdateStatus(ctx, clawID, status)
}

func (s *ClawService) TouchLastSeen(ctx context.Context, clawID string) error {
	return s.store.TouchLastSeen(ctx, clawID, time.Now().UTC())
}
