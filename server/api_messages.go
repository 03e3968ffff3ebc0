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
	"encoding/json"
	"net/http"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

// wireBlock is the on-the-wire shape of one message block: "type"
// names the tag and everything else rides along as the block's opaque
// payload, re-marshaled whole into storage.Block.Data so every block
// kind (text, link, image, code, poll) round-trips without the core
// needing to know its shape.
type wireBlock struct {
	Type string `json:"type"`
}

func decodeWireBlocks(raw []json.RawMessage) []storage.Block {
	blocks := make([]storage.Block, 0, len(raw))
	for _, r := range raw {
		var hdr wireBlock
		if err := json.Unmarshal(r, &hdr); err != nil {
			continue
		}
		blocks = append(blocks, storage.Block{Tag: hdr.Type, Data: []byte(r)})
	}
	return blocks
}

func encodeWireBlocks(blocks []storage.Block) []json.RawMessage {
	out := make([]json.RawMessage, len(blocks))
	for i, b := range blocks {
		out[i] = json.RawMessage(b.Data)
	}
	return out
}

type messageSendRequest struct {
	Blocks         []json.RawMessage
	Visibility     storage.Visibility
	ToClawIDs      []string
	CircleNames    []string
	GroupID        string
	ReplyTo        string
	ContentWarning string
}

func (svc *Services) handleMessageSend(w http.ResponseWriter, r *http.Request) {
	var body messageSendRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	req := SendMessageRequest{
		Blocks:         decodeWireBlocks(body.Blocks),
		Visibility:     body.Visibility,
		ToClawIDs:      body.ToClawIDs,
		CircleNames:    body.CircleNames,
		GroupID:        body.GroupID,
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

// wireMessage mirrors storage.Message but carries its blocks as raw
// JSON instead of opaque bytes, so a client reads structured fields
// back out instead of a base64 blob.
type wireMessage struct {
	ID             string
	FromClawID     string
	Blocks         []json.RawMessage
	Visibility     storage.Visibility
	GroupID        string
	ReplyTo        string
	ContentWarning string
	CreatedAt      time.Time
	EditedAt       *time.Time
}

func toWireMessage(m *storage.Message) wireMessage {
	return wireMessage{
		ID:             m.ID,
		FromClawID:     m.FromClawID,
		Blocks:         encodeWireBlocks(m.Blocks),
		Visibility:     m.Visibility,
		GroupID:        m.GroupID,
		ReplyTo:        m.ReplyTo,
		ContentWarning: m.ContentWarning,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
	}
}

func (svc *Services) handleMessageGet(w http.ResponseWriter, r *http.Request) {
	msg, err := svc.Messages.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWireMessage(msg))
}

// messageEditWindow bounds how long after creation a sender may still
// edit a message's blocks.
const messageEditWindow = 15 * time.Minute

type messageEditRequest struct{ Blocks []json.RawMessage }

func (svc *Services) handleMessageEdit(w http.ResponseWriter, r *http.Request) {
	var req messageEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	blocks := decodeWireBlocks(req.Blocks)
	err := svc.Messages.Edit(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), blocks, messageEditWindow)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleMessageDelete(w http.ResponseWriter, r *http.Request) {
	if err := svc.Messages.Delete(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type reactionRequest struct{ Emoji string }

func (svc *Services) handleReactionAdd(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := svc.Reactions.Add(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleReactionRemove(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := svc.Reactions.Remove(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handleReactionList(w http.ResponseWriter, r *http.Request) {
	list, err := svc.Reactions.ListByMessage(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type pollVoteRequest struct{ OptionID string }

func (svc *Services) handlePollVote(w http.ResponseWriter, r *http.Request) {
	var req pollVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := svc.Reactions.Vote(r.Context(), ClawIDFromContext(r.Context()), pathVar(r, "id"), req.OptionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (svc *Services) handlePollTally(w http.ResponseWriter, r *http.Request) {
	tally, err := svc.Reactions.Tally(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}
