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

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds/server/storage"
)

// fakeWebhookRepo is a single-webhook in-memory WebhookRepository, just
// enough of one to exercise the circuit breaker's Get/UpdateCircuitState
// round trip.
type fakeWebhookRepo struct {
	hook       storage.Webhook
	deliveries []storage.WebhookDelivery
}

func (f *fakeWebhookRepo) Create(ctx context.Context, w *storage.Webhook) error { return nil }
func (f *fakeWebhookRepo) Update(ctx context.Context, w *storage.Webhook) error { return nil }

func (f *fakeWebhookRepo) Get(ctx context.Context, webhookID string) (*storage.Webhook, error) {
	cp := f.hook
	return &cp, nil
}

func (f *fakeWebhookRepo) Delete(ctx context.Context, webhookID string) error { return nil }

func (f *fakeWebhookRepo) ListByClaw(ctx context.Context, clawID string) ([]storage.Webhook, error) {
	return []storage.Webhook{f.hook}, nil
}

func (f *fakeWebhookRepo) ListActiveForEvent(ctx context.Context, subscriberIDs []string, eventName string) ([]storage.Webhook, error) {
	if !f.hook.Active {
		return nil, nil
	}
	return []storage.Webhook{f.hook}, nil
}

func (f *fakeWebhookRepo) RecordDelivery(ctx context.Context, d *storage.WebhookDelivery) error {
	f.deliveries = append(f.deliveries, *d)
	return nil
}

func (f *fakeWebhookRepo) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]storage.WebhookDelivery, error) {
	return f.deliveries, nil
}

func (f *fakeWebhookRepo) UpdateCircuitState(ctx context.Context, webhookID string, failureCount int, active bool, lastStatusCode int, at time.Time) error {
	f.hook.FailureCount = failureCount
	f.hook.Active = active
	f.hook.LastStatusCode = lastStatusCode
	return nil
}

// TestCircuitBreakerTripsAfterTenFailuresAndResetsOnSuccess covers
// property 6: ten consecutive failed deliveries deactivate the
// webhook, and a later successful delivery resets failureCount to 0.
func TestCircuitBreakerTripsAfterTenFailuresAndResetsOnSuccess(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	repo := &fakeWebhookRepo{hook: storage.Webhook{
		ID: "wh1", URL: failing.URL, Secret: "s3cr3t", Active: true, Events: []string{"*"},
	}}
	d := NewDispatcher(repo, nil)
	ctx := context.Background()

	for i := 0; i < circuitBreakerTrip-1; i++ {
		ok := d.attempt(ctx, repo.hook, "message.sent", []byte(`{}`), 1)
		require.False(t, ok)
		require.True(t, repo.hook.Active, "webhook must stay active below the trip threshold")
	}
	require.Equal(t, circuitBreakerTrip-1, repo.hook.FailureCount)

	ok := d.attempt(ctx, repo.hook, "message.sent", []byte(`{}`), 1)
	require.False(t, ok)
	require.Equal(t, circuitBreakerTrip, repo.hook.FailureCount)
	require.False(t, repo.hook.Active, "the tenth consecutive failure must trip the breaker")

	// Reactivate (as an owner re-enabling the webhook would) and
	// confirm a subsequent success resets the failure count.
	repo.hook.Active = true
	succeeding := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer succeeding.Close()
	repo.hook.URL = succeeding.URL

	ok = d.attempt(ctx, repo.hook, "message.sent", []byte(`{}`), 1)
	require.True(t, ok)
	require.Equal(t, 0, repo.hook.FailureCount)
	require.True(t, repo.hook.Active)
}

// TestVerifyInboundRejectsTamperedOrMalformedSignatures covers
// property 7's functional half: VerifyInbound must accept only a
// signature matching the HMAC of the exact body under the configured
// secret, and reject missing prefixes, bad hex, and wrong secrets.
func TestVerifyInboundRejectsTamperedOrMalformedSignatures(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{"event":"message.sent"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	valid := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	require.True(t, VerifyInbound(secret, body, valid))
	require.False(t, VerifyInbound(secret, []byte(`{"event":"tampered"}`), valid))
	require.False(t, VerifyInbound("wrong-secret", body, valid))
	require.False(t, VerifyInbound(secret, body, "sha1="+valid[len("sha256="):]))
	require.False(t, VerifyInbound(secret, body, "sha256=not-hex-zz"))
	require.False(t, VerifyInbound(secret, body, ""))
}

// TestVerifyInboundRejectsMismatchAtEitherEnd checks that a signature
// differing only in its first hex digit and one differing only in its
// last hex digit are both rejected. It does not measure timing.
func TestVerifyInboundRejectsMismatchAtEitherEnd(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{"event":"message.sent"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)
	valid := hex.EncodeToString(sum)

	mismatchEarly := flipHexNibble(valid, 0)
	mismatchLate := flipHexNibble(valid, len(valid)-1)

	require.False(t, VerifyInbound(secret, body, "sha256="+mismatchEarly))
	require.False(t, VerifyInbound(secret, body, "sha256="+mismatchLate))
}

func flipHexNibble(hexStr string, i int) string {
	b := []byte(hexStr)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}
