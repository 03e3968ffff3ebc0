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

// Package webhook dispatches outbound event notifications to
// claw-registered HTTP endpoints and verifies inbound ones.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/storage"
)

const (
	deliveryTimeout    = 10 * time.Second
	maxResponseBody    = 1024
	maxRetries         = 3
	circuitBreakerTrip = 10
	maxConcurrentSends = 32
)

// retryOffsets are the delays after attempt 1 before attempts 2, 3,
// and 4 (maxRetries retries, four attempts total).
var retryOffsets = []time.Duration{10 * time.Second, 60 * time.Second, 300 * time.Second}

type envelope struct {
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Dispatcher delivers one event to every active outgoing webhook
// subscribed to it and records the circuit-breaker/delivery-log side
// effects of each attempt. Delivery stays fire-and-forget (the
// request path that triggered the event is never blocked on it), but
// the number of deliveries in flight at once is capped by a semaphore.
// Each delivery waiting for a slot still holds its own goroutine, so
// the number of waiting goroutines is not bounded.
type Dispatcher struct {
	webhooks storage.WebhookRepository
	client   *http.Client
	logger   *zap.Logger
	sem      chan struct{}
}

func NewDispatcher(webhooks storage.WebhookRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks: webhooks,
		client:   &http.Client{Timeout: deliveryTimeout},
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrentSends),
	}
}

// Route finds every active outgoing webhook owned by one of
// subscriberIDs subscribed to eventName and dispatches data to each.
// Each webhook's delivery runs independently; one failing webhook
// never blocks another. Queuing onto the bounded pool itself never
// blocks the caller: a full pool is handed off to its own goroutine
// that waits for a free slot, keeping Route's own latency independent
// of how many deliveries are currently in flight.
func (d *Dispatcher) Route(ctx context.Context, subscriberIDs []string, eventName string, data interface{}) {
	hooks, err := d.webhooks.ListActiveForEvent(ctx, subscriberIDs, eventName)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("failed to list webhooks for event", zap.String("event", eventName), zap.Error(err))
		}
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		return
	}
	for _, hook := range hooks {
		hook := hook
		go func() {
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
			d.deliverWithRetry(context.Background(), hook, eventName, body)
		}()
	}
}

// deliverWithRetry runs attempt 1 immediately, then sleeps the
// scheduled offset before each retry, re-reading the webhook's active
// state between attempts so a deactivated webhook stops retrying.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, hook storage.Webhook, eventName string, body []byte) {
	attempt := 0
	for {
		success := d.attempt(ctx, hook, eventName, body, attempt+1)
		if success || attempt >= maxRetries {
			return
		}

		current, err := d.webhooks.Get(ctx, hook.ID)
		if err != nil || !current.Active {
			return
		}
		hook = *current

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryOffsets[attempt]):
		}
		attempt++
	}
}

// attempt performs exactly one delivery and applies its circuit
// breaker / delivery-log side effects, returning whether it
// succeeded.
func (d *Dispatcher) attempt(ctx context.Context, hook storage.Webhook, eventName string, body []byte, attemptNum int) bool {
	if err := ValidateURL(hook.URL); err != nil {
		d.recordFailure(ctx, hook, eventName, attemptNum, 0, err.Error(), "")
		return false
	}

	env := envelope{Event: eventName, Timestamp: time.Now().UTC().Unix(), Data: json.RawMessage(body)}
	payload, err := json.Marshal(env)
	if err != nil {
		d.recordFailure(ctx, hook, eventName, attemptNum, 0, err.Error(), "")
		return false
	}

	attemptCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		d.recordFailure(ctx, hook, eventName, attemptNum, 0, err.Error(), "")
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ClawBuds-Event", eventName)
	req.Header.Set("X-ClawBuds-Signature", "sha256="+sign(hook.Secret, payload))
	req.Header.Set("X-ClawBuds-Delivery", newDeliveryID())
	req.Header.Set("X-ClawBuds-Timestamp", strconv.FormatInt(env.Timestamp, 10))

	resp, err := d.client.Do(req)
	if err != nil {
		d.recordFailure(ctx, hook, eventName, attemptNum, 0, err.Error(), "")
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.recordFailure(ctx, hook, eventName, attemptNum, resp.StatusCode, "", string(respBody))
		return false
	}

	d.recordSuccess(ctx, hook, eventName, attemptNum, resp.StatusCode, string(respBody))
	return true
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newDeliveryID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func (d *Dispatcher) recordSuccess(ctx context.Context, hook storage.Webhook, eventName string, attempt, statusCode int, respBody string) {
	now := time.Now().UTC()
	_ = d.webhooks.RecordDelivery(ctx, &storage.WebhookDelivery{
		ID: newDeliveryID(), WebhookID: hook.ID, Event: eventName, Attempt: attempt,
		Outcome: storage.DeliverySuccess, StatusCode: statusCode, ResponseBody: respBody, CreatedAt: now,
	})
	_ = d.webhooks.UpdateCircuitState(ctx, hook.ID, 0, true, statusCode, now)
}

func (d *Dispatcher) recordFailure(ctx context.Context, hook storage.Webhook, eventName string, attempt, statusCode int, errMsg, respBody string) {
	now := time.Now().UTC()
	_ = d.webhooks.RecordDelivery(ctx, &storage.WebhookDelivery{
		ID: newDeliveryID(), WebhookID: hook.ID, Event: eventName, Attempt: attempt,
		Outcome: storage.DeliveryFailure, StatusCode: statusCode, ResponseBody: respBody, Error: errMsg, CreatedAt: now,
	})

	failureCount := hook.FailureCount + 1
	active := failureCount < circuitBreakerTrip
	_ = d.webhooks.UpdateCircuitState(ctx, hook.ID, failureCount, active, statusCode, now)
}

// VerifyInbound checks an inbound webhook's signature in constant
// time, the way it must be checked to avoid a timing side channel on
// the comparison itself.
func VerifyInbound(secret string, body []byte, signatureHeader string) bool {
	const prefix = "sha256="
	if len(signatureHeader) <= len(prefix) || signatureHeader[:len(prefix)] != prefix {
		return false
	}
	given, err := hex.DecodeString(signatureHeader[len(prefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)
	return subtle.ConstantTimeCompare(given, expected) == 1
}
