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
	"encoding/json"
	"sort"
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// SendMessageRequest mirrors the POST /api/v1/messages body.
type SendMessageRequest struct {
	Blocks         []storage.Block
	Visibility     storage.Visibility
	ToClawIDs      []string
	CircleNames    []string
	GroupID        string
	ReplyTo        string
	ContentWarning string
}

// SendMessageResult is the authoritative reply to the sender:
// {messageId, recipientCount, recipients}.
type SendMessageResult struct {
	MessageID      string
	RecipientCount int
	Recipients     []string
}

// MessageService implements the message & fan-out pipeline:
// validate visibility, resolve recipients, persist atomically, emit
// message.new.
type MessageService struct {
	messages    storage.MessageRepository
	friendships storage.FriendshipRepository
	circles     storage.CircleRepository
	groups      storage.GroupRepository
	bus         *eventbus.Bus
}

func NewMessageService(messages storage.MessageRepository, friendships storage.FriendshipRepository, circles storage.CircleRepository, groups storage.GroupRepository, bus *eventbus.Bus) *MessageService {
	return &MessageService{messages: messages, friendships: friendships, circles: circles, groups: groups, bus: bus}
}

func (s *MessageService) Send(ctx context.Context, senderID string, req SendMessageRequest) (*SendMessageResult, error) {
	recipients, err := s.resolveRecipients(ctx, senderID, req)
	if err != nil {
		return nil, err
	}

	msg := &storage.Message{
		ID:             newRandomID(),
		FromClawID:     senderID,
		Blocks:         req.Blocks,
		Visibility:     req.Visibility,
		GroupID:        req.GroupID,
		ReplyTo:        req.ReplyTo,
		ContentWarning: req.ContentWarning,
		CreatedAt:      time.Now().UTC(),
	}

	entries, err := s.messages.WriteWithInbox(ctx, msg, recipients)
	if err != nil {
		return nil, err
	}

	payloadBytes, _ := json.Marshal(req.Blocks)
	s.bus.PublishMessageNew(eventbus.MessageNewPayload{
		MessageID:    msg.ID,
		SenderID:     senderID,
		RecipientIDs: recipients,
		Payload:      payloadBytes,
	})

	return &SendMessageResult{MessageID: msg.ID, RecipientCount: len(entries), Recipients: recipients}, nil
}

// resolveRecipients validates the request against its visibility's
// own rules and then resolves the recipient set, deduplicating and
// always excluding the sender.
func (s *MessageService) resolveRecipients(ctx context.Context, senderID string, req SendMessageRequest) ([]string, error) {
	var recipients []string

	switch req.Visibility {
	case storage.VisibilityDirect:
		for _, id := range req.ToClawIDs {
			if id == senderID {
				continue
			}
			ok, err := s.friendships.AreFriends(ctx, senderID, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, NewAPIError(KindValidationFailed, CodeValidation, "direct messages require an accepted friendship", nil)
			}
			recipients = append(recipients, id)
		}

	case storage.VisibilityCircles:
		if len(req.CircleNames) == 0 {
			return nil, NewAPIError(KindValidationFailed, CodeValidation, "circles visibility requires at least one circle name", nil)
		}
		members, err := s.circles.MembersOfNames(ctx, senderID, req.CircleNames)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			if id == senderID {
				continue
			}
			ok, err := s.friendships.AreFriends(ctx, senderID, id)
			if err != nil {
				return nil, err
			}
			if ok {
				recipients = append(recipients, id)
			}
		}

	case storage.VisibilityGroup:
		if req.GroupID == "" {
			return nil, NewAPIError(KindValidationFailed, CodeValidation, "group visibility requires groupId", nil)
		}
		if _, err := s.groups.GetMember(ctx, req.GroupID, senderID); err != nil {
			if err == storage.ErrNotFound {
				return nil, NewAPIError(KindNotAuthorized, CodeNotMember, "not a member of this group", nil)
			}
			return nil, err
		}
		members, err := s.groups.ListMembers(ctx, req.GroupID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.ClawID != senderID {
				recipients = append(recipients, m.ClawID)
			}
		}

	case storage.VisibilityPublic:
		// public posts carry no direct recipient list in this core;
		// discovery/subscription happens on the read path, so
		// recipientCount for public sends is 0 — resolved open
		// question, see DESIGN.md.

	default:
		return nil, NewAPIError(KindValidationFailed, CodeValidation, "unknown visibility", nil)
	}

	return dedupe(recipients), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *MessageService) Get(ctx context.Context, messageID string) (*storage.Message, error) {
	m, err := s.messages.Get(ctx, messageID)
	if err == storage.ErrNotFound {
		return nil, NewAPIError(KindNotFound, CodeNotFound, "message not found", nil)
	}
	return m, err
}

// Edit is only permitted within the service's edit window and only by
// the original sender: messages are immutable except for a bounded
// edit window controlled by the service.
func (s *MessageService) Edit(ctx context.Context, callerID, messageID string, blocks []storage.Block, editWindow time.Duration) error {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.FromClawID != callerID {
		return NewAPIError(KindNotAuthorized, CodeInsufficientPerms, "only the sender may edit this message", nil)
	}
	if time.Since(msg.CreatedAt) > editWindow {
		return NewAPIError(KindValidationFailed, CodeValidation, "edit window has elapsed", nil)
	}
	now := time.Now().UTC()
	if err := s.messages.Edit(ctx, messageID, blocks, now); err != nil {
		return err
	}
	s.bus.PublishMessageEdited(eventbus.MessageEditedPayload{MessageID: messageID, EditedAt: now})
	return nil
}

func (s *MessageService) Delete(ctx context.Context, callerID, messageID string) error {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.FromClawID != callerID {
		return NewAPIError(KindNotAuthorized, CodeInsufficientPerms, "only the sender may delete this message", nil)
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return err
	}
	s.bus.PublishMessageDeleted(eventbus.MessageDeletedPayload{MessageID: messageID})
	return nil
}

// ListGroupHistory is visible only to current members.
func (s *MessageService) ListGroupHistory(ctx context.Context, callerID, groupID string, before time.Time, limit int) ([]storage.Message, error) {
	if _, err := s.groups.GetMember(ctx, groupID, callerID); err != nil {
		if err == storage.ErrNotFound {
			return nil, NewAPIError(KindNotAuthorized, CodeNotMember, "not a member of this group", nil)
		}
		return nil, err
	}
	return s.messages.ListGroupHistory(ctx, groupID, before, limit)
}
