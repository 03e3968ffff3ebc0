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
	"crypto/ed25519"
	"net/http"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type registerRequest struct {
	PublicKey   []byte
	DisplayName string
}

func (svc *Services) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	claw, err := svc.Claws.Register(r.Context(), ed25519.PublicKey(req.PublicKey), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claw)
}

func (svc *Services) handleMe(w http.ResponseWriter, r *http.Request) {
	claw, err := svc.Claws.Get(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claw)
}

type updateProfileRequest struct {
	DisplayName  string
	Bio          string
	AvatarURL    string
	Tags         []string
	Discoverable bool
}

func (svc *Services) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	if err := svc.Claws.UpdateProfile(r.Context(), clawID, req.DisplayName, req.Bio, req.AvatarURL, req.Tags, req.Discoverable); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type updateAutonomyRequest struct {
	Level  int
	Config []byte
}

func (svc *Services) handleUpdateAutonomy(w http.ResponseWriter, r *http.Request) {
	var req updateAutonomyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	if err := svc.Claws.UpdateAutonomy(r.Context(), clawID, req.Level, req.Config); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type updateStatusRequest struct {
	Status storage.ClawStatus
}

func (svc *Services) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	if err := svc.Claws.UpdateStatus(r.Context(), clawID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type statsResponse struct {
	FriendCount int
	CircleCount int
	PearlCount  int
}

// handleStats composes a lightweight cross-service summary; there is
// no dedicated stats repository, so this reads the same repositories
// the rest of the API already uses and counts.
func (svc *Services) handleStats(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	ctx := r.Context()

	friends, err := svc.Friendships.ListAccepted(ctx, clawID)
	if err != nil {
		writeError(w, err)
		return
	}
	circles, err := svc.Circles.ListByOwner(ctx, clawID)
	if err != nil {
		writeError(w, err)
		return
	}
	pearls, err := svc.Pearls.ListByOwner(ctx, clawID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		FriendCount: len(friends),
		CircleCount: len(circles),
		PearlCount:  len(pearls),
	})
}

func (svc *Services) handleOnlineFriends(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	ctx := r.Context()
	friends, err := svc.Friendships.ListAccepted(ctx, clawID)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]string, len(friends))
	for i, f := range friends {
		if f.RequesterID == clawID {
			ids[i] = f.AccepterID
		} else {
			ids[i] = f.RequesterID
		}
	}
	online, err := svc.Realtime.OnlineFriends(ctx, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, online)
}
