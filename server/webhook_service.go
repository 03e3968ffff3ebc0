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
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
	"github.com/chitinlabs/clawbuds/server/webhook"
)

// eventRouter is the subset of Dispatcher the service needs, letting
// tests substitute a recording fake without dragging in net/http.
type eventRouter interface {
	Route(ctx context.Context, subscriberIDs []string, eventName string, data interface{})
}

// WebhookService owns webhook registration and wires every event-bus
// topic to the outbound dispatcher, resolving the recipient set each
// event already carries into the subscriber claw ids the dispatcher
// routes on.
type WebhookService struct {
	webhooks   storage.WebhookRepository
	messages   storage.MessageRepository
	dispatcher eventRouter
}

func NewWebhookService(webhooks storage.WebhookRepository, messages storage.MessageRepository, dispatcher eventRouter, bus *eventbus.Bus) *WebhookService {
	s := &WebhookService{webhooks: webhooks, messages: messages, dispatcher: dispatcher}
	s.wireEvents(bus)
	return s
}

// messageOwner resolves the claw a reaction/poll-vote event's parent
// message belongs to, since those payloads only carry the message id.
func (s *WebhookService) messageOwner(messageID string) []string {
	msg, err := s.messages.Get(context.Background(), messageID)
	if err != nil {
		return nil
	}
	return []string{msg.FromClawID}
}

func (s *WebhookService) wireEvents(bus *eventbus.Bus) {
	bus.OnMessageNew(func(p eventbus.MessageNewPayload) {
		s.dispatcher.Route(context.Background(), p.RecipientIDs, "message.new", p)
	})
	bus.OnReactionAdded(func(p eventbus.ReactionAddedPayload) {
		s.dispatcher.Route(context.Background(), s.messageOwner(p.MessageID), "reaction.added", p)
	})
	bus.OnReactionRemoved(func(p eventbus.ReactionRemovedPayload) {
		s.dispatcher.Route(context.Background(), s.messageOwner(p.MessageID), "reaction.removed", p)
	})
	bus.OnPollVoted(func(p eventbus.PollVotedPayload) {
		s.dispatcher.Route(context.Background(), s.messageOwner(p.MessageID), "poll.voted", p)
	})
	bus.OnFriendRequest(func(p eventbus.FriendRequestPayload) {
		s.dispatcher.Route(context.Background(), []string{p.AccepterID}, "friend.request", p)
	})
	bus.OnFriendAccepted(func(p eventbus.FriendAcceptedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawA, p.ClawB}, "friend.accepted", p)
	})
	bus.OnGroupInvited(func(p eventbus.GroupInvitedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.InviteeID}, "group.invited", p)
	})
	bus.OnPearlShared(func(p eventbus.PearlSharedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ToID}, "pearl.shared", p)
	})
	bus.OnHeartbeatReceived(func(p eventbus.HeartbeatReceivedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ToClawID}, "heartbeat.received", p)
	})
	bus.OnRelationshipLayerChanged(func(p eventbus.RelationshipLayerChangedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawID}, "relationship.layer_changed", p)
	})
	bus.OnGroupJoined(func(p eventbus.GroupJoinedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawID}, "group.joined", p)
	})
	bus.OnGroupLeft(func(p eventbus.GroupLeftPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawID}, "group.left", p)
	})
	bus.OnGroupRemoved(func(p eventbus.GroupRemovedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawID}, "group.removed", p)
	})
	bus.OnE2EEKeyUpdated(func(p eventbus.E2EEKeyUpdatedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawID}, "e2ee.key_updated", p)
	})
	bus.OnPearlEndorsed(func(p eventbus.PearlEndorsedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.EndorserID}, "pearl.endorsed", p)
	})
	bus.OnThreadContributionAdded(func(p eventbus.ThreadContributionAddedPayload) {
		s.dispatcher.Route(context.Background(), []string{p.ClawID}, "thread.contribution_added", p)
	})
}

func (s *WebhookService) Create(ctx context.Context, clawID string, typ storage.WebhookType, name, rawURL string, events []string) (*storage.Webhook, error) {
	if typ == storage.WebhookOutgoing {
		if err := webhook.ValidateURL(rawURL); err != nil {
			return nil, NewAPIError(KindValidationFailed, CodeForbiddenURL, err.Error(), nil)
		}
	}
	w := &storage.Webhook{
		ID:        newRandomID(),
		ClawID:    clawID,
		Type:      typ,
		Name:      name,
		URL:       rawURL,
		Secret:    newSecret(),
		Events:    events,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.webhooks.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WebhookService) Update(ctx context.Context, w *storage.Webhook) error {
	if w.Type == storage.WebhookOutgoing {
		if err := webhook.ValidateURL(w.URL); err != nil {
			return NewAPIError(KindValidationFailed, CodeForbiddenURL, err.Error(), nil)
		}
	}
	return s.webhooks.Update(ctx, w)
}

func (s *WebhookService) Get(ctx context.Context, webhookID string) (*storage.Webhook, error) {
	w, err := s.webhooks.Get(ctx, webhookID)
	if err == storage.ErrNotFound {
		return nil, NewAPIError(KindNotFound, CodeNotFound, "webhook not found", nil)
	}
	return w, err
}

func (s *WebhookService) Delete(ctx context.Context, webhookID string) error {
	return s.webhooks.Delete(ctx, webhookID)
}

func (s *WebhookService) ListByClaw(ctx context.Context, clawID string) ([]storage.Webhook, error) {
	return s.webhooks.ListByClaw(ctx, clawID)
}

func (s *WebhookService) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]storage.WebhookDelivery, error) {
	return s.webhooks.ListDeliveries(ctx, webhookID, limit)
}

// ReceiveInbound verifies an inbound webhook's signature in constant
// time before a handler acts on the payload.
func (s *WebhookService) ReceiveInbound(ctx context.Context, webhookID string, body []byte, signatureHeader string) error {
	w, err := s.Get(ctx, webhookID)
	if err != nil {
		return err
	}
	if w.Type != storage.WebhookIncoming {
		return NewAPIError(KindValidationFailed, CodeValidation, "webhook is not configured for inbound receipt", nil)
	}
	if !webhook.VerifyInbound(w.Secret, body, signatureHeader) {
		return NewAPIError(KindAuthenticationFailed, CodeBadSignature, "inbound webhook signature mismatch", nil)
	}
	return nil
}

func newSecret() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
