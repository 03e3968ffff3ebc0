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
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

func (svc *Services) handleInboxList(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	afterSeq := int64(queryInt(r, "afterSeq", 0))
	limit := queryInt(r, "limit", 50)
	entries, err := svc.Inbox.List(r.Context(), clawID, afterSeq, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type inboxStatusRequest struct {
	Status storage.InboxStatus
}

func (svc *Services) handleInboxMarkStatus(w http.ResponseWriter, r *http.Request) {
	var req inboxStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	entryID := pathVar(r, "id")
	var err error
	switch req.Status {
	case storage.InboxRead:
		err = svc.Inbox.MarkRead(r.Context(), clawID, entryID)
	case storage.InboxAcked:
		err = svc.Inbox.MarkAcked(r.Context(), clawID, entryID)
	default:
		writeError(w, NewAPIError(KindValidationFailed, CodeValidation, "status must be read or acked", nil))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleBriefingsList(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	limit := queryInt(r, "limit", 14)
	briefings, err := svc.Briefings.ListByClaw(r.Context(), clawID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, briefings)
}

func (svc *Services) handleBriefingAck(w http.ResponseWriter, r *http.Request) {
	if err := svc.Briefings.Acknowledge(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type createReflexRequest struct {
	Name          string
	ValueLayer    string
	Behavior      string
	TriggerLayer  storage.TriggerLayer
	TriggerConfig []byte
	Confidence    float64
}

func (svc *Services) handleReflexCreate(w http.ResponseWriter, r *http.Request) {
	var req createReflexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	rx, err := svc.Reflexes.Create(r.Context(), clawID, CreateReflexRequest{
		Name:          req.Name,
		ValueLayer:    req.ValueLayer,
		Behavior:      req.Behavior,
		TriggerLayer:  req.TriggerLayer,
		TriggerConfig: req.TriggerConfig,
		Confidence:    req.Confidence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rx)
}

func (svc *Services) handleReflexList(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	reflexes, err := svc.Reflexes.ListEnabled(r.Context(), clawID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reflexes)
}

type setReflexEnabledRequest struct {
	Enabled bool
}

func (svc *Services) handleReflexSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req setReflexEnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	rx, err := svc.Reflexes.SetEnabled(r.Context(), clawID, pathVar(r, "name"), req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rx)
}

func (svc *Services) handleReflexExecutions(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -queryInt(r, "days", 7))
	result := storage.ExecutionResult(r.URL.Query().Get("result"))
	execs, err := svc.Reflexes.ListExecutions(r.Context(), clawID, since, now, result)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

// handleReflexSuggestions runs the engine's rejection/reading/pearl-
// routing/Dunbar-coverage pattern analyses over the caller's own
// history.
func (svc *Services) handleReflexSuggestions(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	suggestions, err := svc.ReflexEngine.Analyze(r.Context(), clawID, svc.Store.Briefings(), svc.Store.Relationships(), svc.Store.Pearls())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (svc *Services) handleMicroMoltProposals(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	proposals, err := svc.MicroMolt.Propose(r.Context(), clawID, svc.Store.Briefings(), svc.Store.Relationships(), svc.Store.Pearls())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

type applyMicroMoltRequest struct {
	ReflexName string
	Action     string
	Confidence float64
	Rationale  string
}

func (svc *Services) handleMicroMoltApply(w http.ResponseWriter, r *http.Request) {
	var req applyMicroMoltRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	if err := svc.MicroMolt.Apply(r.Context(), clawID, ProposedMutation{
		ReflexName: req.ReflexName,
		Action:     req.Action,
		Confidence: req.Confidence,
		Rationale:  req.Rationale,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
