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
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// ReactionService owns emoji reactions and poll votes on an existing
// message. Both are small per-(message, claw) records rather than
// mutations to the message's own block data, so a tally or a
// reaction list never races the message's own edit path.
type ReactionService struct {
	messages  storage.MessageRepository
	reactions storage.ReactionRepository
	polls     storage.PollRepository
	bus       *eventbus.Bus
}

func NewReactionService(messages storage.MessageRepository, reactions storage.ReactionRepository, polls storage.PollRepository, bus *eventbus.Bus) *ReactionService {
	return &ReactionService{messages: messages, reactions: reactions, polls: polls, bus: bus}
}

func (s *ReactionService) Add(ctx context.Context, clawID, messageID, emoji string) error {
	if _, err := s.messages.Get(ctx, messageID); err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotFound, CodeNotFound, "message not found", nil)
		}
		return err
	}
	if err := s.reactions.Add(ctx, &storage.Reaction{MessageID: messageID, ClawID: clawID, Emoji: emoji, CreatedAt: time.Now().UTC()}); err != nil {
		return err
	}
	s.bus.PublishReactionAdded(eventbus.ReactionAddedPayload{MessageID: messageID, ClawID: clawID, Emoji: emoji})
	return nil
}

func (s *ReactionService) Remove(ctx context.Context, clawID, messageID, emoji string) error {
	if err := s.reactions.Remove(ctx, messageID, clawID, emoji); err != nil {
		return err
	}
	s.bus.PublishReactionRemoved(eventbus.ReactionRemovedPayload{MessageID: messageID, ClawID: clawID, Emoji: emoji})
	return nil
}

func (s *ReactionService) ListByMessage(ctx context.Context, messageID string) ([]storage.Reaction, error) {
	return s.reactions.ListByMessage(ctx, messageID)
}

// Vote records or changes clawID's ballot on messageID's poll block.
// The caller is responsible for validating optionID against the
// poll's own block data before calling Vote; the repository layer
// has no notion of a poll's option set, only of ballots cast against
// a message id.
func (s *ReactionService) Vote(ctx context.Context, clawID, messageID, optionID string) error {
	if _, err := s.messages.Get(ctx, messageID); err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotFound, CodeNotFound, "message not found", nil)
		}
		return err
	}
	if err := s.polls.Vote(ctx, &storage.PollVote{MessageID: messageID, ClawID: clawID, OptionID: optionID, CreatedAt: time.Now().UTC()}); err != nil {
		return err
	}
	s.bus.PublishPollVoted(eventbus.PollVotedPayload{MessageID: messageID, ClawID: clawID, OptionID: optionID})
	return nil
}

func (s *ReactionService) Tally(ctx context.Context, messageID string) (map[string]int, error) {
	return s.polls.Tally(ctx, messageID)
}
