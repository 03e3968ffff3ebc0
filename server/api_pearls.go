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
	"net/http"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

type pearlCreateRequest struct {
	Type         storage.PearlType
	Trigger      string
	Body         string
	Context      string
	Tags         []string
	Shareability storage.Shareability
	Origin       string
}

func (svc *Services) handlePearlCreate(w http.ResponseWriter, r *http.Request) {
	var req pearlCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := svc.Pearls.Create(r.Context(), ClawIDFromContext(r.Context()), req.Type, req.Trigger, req.Body, req.Context, req.Tags, req.Shareability, req.Origin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (svc *Services) handlePearlList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Pearls.ListByOwner(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Services) handlePearlGet(w http.ResponseWriter, r *http.Request) {
	p, err := svc.Pearls.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type pearlEndorseRequest struct {
	Score   float64
	Comment string
}

func (svc *Services) handlePearlEndorse(w http.ResponseWriter, r *http.Request) {
	var req pearlEndorseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := svc.Pearls.Endorse(r.Context(), pathVar(r, "id"), ClawIDFromContext(r.Context()), req.Score, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handlePearlEndorsementsList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Pearls.ListEndorsements(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type pearlReferenceRequest struct {
	ContentID   string
	ContentType string // typically "pearl_ref" to trigger a luster recompute
	ThreadID    string
}

// handlePearlReference records that contentID surfaced pearlId and
// publishes the thread-contribution event for every reference;
// PearlService.onThreadContribution recomputes luster only when
// contentType is "pearl_ref".
func (svc *Services) handlePearlReference(w http.ResponseWriter, r *http.Request) {
	var req pearlReferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pearlID := pathVar(r, "id")
	clawID := ClawIDFromContext(r.Context())
	if err := svc.Pearls.Reference(r.Context(), pearlID, clawID, req.ContentID); err != nil {
		writeError(w, err)
		return
	}
	svc.Bus.PublishThreadContributionAdded(eventbus.ThreadContributionAddedPayload{
		ThreadID:    req.ThreadID,
		MessageID:   req.ContentID,
		ClawID:      clawID,
		ContentType: req.ContentType,
		PearlRefID:  pearlID,
	})
	writeJSON(w, http.StatusCreated, nil)
}

type pearlShareRequest struct{ ToID string }

func (svc *Services) handlePearlShare(w http.ResponseWriter, r *http.Request) {
	var req pearlShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := svc.Pearls.Share(r.Context(), pathVar(r, "id"), ClawIDFromContext(r.Context()), req.ToID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
