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
	"io"
	"net/http"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type webhookCreateRequest struct {
	Type   storage.WebhookType
	Name   string
	URL    string
	Events []string
}

func (svc *Services) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req webhookCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	hook, err := svc.Webhooks.Create(r.Context(), clawID, req.Type, req.Name, req.URL, req.Events)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

func (svc *Services) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Webhooks.ListByClaw(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Services) handleWebhookGet(w http.ResponseWriter, r *http.Request) {
	hook, err := svc.Webhooks.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

type webhookUpdateRequest struct {
	URL    *string
	Events []string
	Active *bool
}

func (svc *Services) handleWebhookUpdate(w http.ResponseWriter, r *http.Request) {
	hook, err := svc.Webhooks.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req webhookUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.URL != nil {
		hook.URL = *req.URL
	}
	if req.Events != nil {
		hook.Events = req.Events
	}
	if req.Active != nil {
		hook.Active = *req.Active
	}
	if err := svc.Webhooks.Update(r.Context(), hook); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hook)
}

func (svc *Services) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	if err := svc.Webhooks.Delete(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	list, err := svc.Webhooks.ListDeliveries(r.Context(), pathVar(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleInboundWebhook is unauthenticated by the claw signature scheme
// (the caller is an external system, not a claw) and instead verifies
// the HMAC signature WebhookService.ReceiveInbound checks against the
// webhook's own secret.
func (svc *Services) handleInboundWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, NewAPIError(KindValidationFailed, CodeValidation, "could not read request body", err))
		return
	}
	sig := r.Header.Get("X-Webhook-Signature")
	if err := svc.Webhooks.ReceiveInbound(r.Context(), pathVar(r, "id"), body, sig); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
