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

type groupCreateRequest struct {
	Name       string
	Type       storage.GroupType
	MaxMembers int
	Encrypted  bool
}

func (svc *Services) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	var req groupCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := svc.Groups.Create(r.Context(), ClawIDFromContext(r.Context()), req.Name, req.Type, req.MaxMembers, req.Encrypted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (svc *Services) handleGroupGet(w http.ResponseWriter, r *http.Request) {
	g, err := svc.Groups.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type groupUpdateRequest struct {
	Name       string
	MaxMembers int
}

func (svc *Services) handleGroupUpdate(w http.ResponseWriter, r *http.Request) {
	var req groupUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := svc.Groups.Update(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.Name, req.MaxMembers); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	if err := svc.Groups.Delete(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	members, err := svc.Groups.ListMembers(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type groupChangeRoleRequest struct{ Role storage.GroupRole }

func (svc *Services) handleGroupChangeRole(w http.ResponseWriter, r *http.Request) {
	var req groupChangeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := svc.Groups.ChangeRole(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), pathVar(r, "clawId"), req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleGroupRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := svc.Groups.RemoveMember(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), pathVar(r, "clawId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type groupInviteRequest struct{ ClawID string }

func (svc *Services) handleGroupInvite(w http.ResponseWriter, r *http.Request) {
	var req groupInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	inv, err := svc.Groups.Invite(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.ClawID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (svc *Services) handleGroupJoin(w http.ResponseWriter, r *http.Request) {
	if err := svc.Groups.Join(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleGroupLeave(w http.ResponseWriter, r *http.Request) {
	if err := svc.Groups.Leave(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleGroupRejectInvitation(w http.ResponseWriter, r *http.Request) {
	if err := svc.Groups.RejectInvitation(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleGroupInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Groups.ListInvitations(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Services) handleGroupMessagesPost(w http.ResponseWriter, r *http.Request) {
	var body messageSendRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := SendMessageRequest{
		Blocks:         decodeWireBlocks(body.Blocks),
		Visibility:     storage.VisibilityGroup,
		GroupID:        pathVar(r, "id"),
		ReplyTo:        body.ReplyTo,
		ContentWarning: body.ContentWarning,
	}
	result, err := svc.Messages.Send(r.Context(), ClawIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (svc *Services) handleGroupMessagesList(w http.ResponseWriter, r *http.Request) {
	before := time.Now().UTC()
	if v := r.URL.Query().Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			before = t
		}
	}
	limit := queryInt(r, "limit", 50)
	list, err := svc.Messages.ListGroupHistory(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), before, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	wire := make([]wireMessage, len(list))
	for i := range list {
		wire[i] = toWireMessage(&list[i])
	}
	writeJSON(w, http.StatusOK, wire)
}
