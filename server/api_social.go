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

import "net/http"

type friendRequestBody struct{ ClawID string }

func (svc *Services) handleFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req friendRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	fs, err := svc.Friendships.Request(r.Context(), ClawIDFromContext(r.Context()), req.ClawID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fs)
}

func (svc *Services) handleFriendAccept(w http.ResponseWriter, r *http.Request) {
	var req friendRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	fs, err := svc.Friendships.Accept(r.Context(), req.ClawID, ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (svc *Services) handleFriendReject(w http.ResponseWriter, r *http.Request) {
	var req friendRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := svc.Friendships.Reject(r.Context(), req.ClawID, ClawIDFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleFriendRequestsList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Friendships.ListIncomingRequests(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Services) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Friendships.ListAccepted(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Services) handleFriendRemove(w http.ResponseWriter, r *http.Request) {
	other := pathVar(r, "clawId")
	if err := svc.Friendships.Remove(r.Context(), ClawIDFromContext(r.Context()), other); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type circleCreateRequest struct{ Name string }

func (svc *Services) handleCircleCreate(w http.ResponseWriter, r *http.Request) {
	var req circleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := svc.Circles.Create(r.Context(), ClawIDFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (svc *Services) handleCircleList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Circles.ListByOwner(r.Context(), ClawIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Services) handleCircleDelete(w http.ResponseWriter, r *http.Request) {
	if err := svc.Circles.Delete(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type circleFriendRequest struct{ ClawID string }

func (svc *Services) handleCircleAddFriend(w http.ResponseWriter, r *http.Request) {
	var req circleFriendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := svc.Circles.AddFriend(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.ClawID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleCircleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	var req circleFriendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := svc.Circles.RemoveFriend(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.ClawID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleCircleListFriends(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Circles.ListMembers(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
