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

func (svc *Services) handleTrustGet(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	ts, err := svc.Trust.Get(r.Context(), clawID, pathVar(r, "subjectId"), pathVar(r, "domain"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

type heartbeatSendRequest struct {
	ToClawID     string
	Interests    []string
	Availability string
	RecentTopics []string
}

func (svc *Services) handleHeartbeatSend(w http.ResponseWriter, r *http.Request) {
	var req heartbeatSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clawID := ClawIDFromContext(r.Context())
	hb, err := svc.Heartbeats.Send(r.Context(), clawID, req.ToClawID, req.Interests, req.Availability, req.RecentTopics)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := svc.Heartbeats.Receive(r.Context(), hb); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hb)
}

func (svc *Services) handleFriendModelGet(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	fm, err := svc.Heartbeats.GetFriendModel(r.Context(), clawID, pathVar(r, "friendId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fm)
}
