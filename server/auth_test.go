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
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds/server/storage"
)

// fakeClawRepo implements just enough of storage.ClawRepository for
// the authenticator to resolve a registered public key by id.
type fakeClawRepo struct {
	byID map[string]*storage.Claw
}

func (f *fakeClawRepo) Create(ctx context.Context, claw *storage.Claw) error {
	f.byID[claw.ClawID] = claw
	return nil
}
func (f *fakeClawRepo) GetByID(ctx context.Context, clawID string) (*storage.Claw, error) {
	c, ok := f.byID[clawID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return c, nil
}
func (f *fakeClawRepo) GetByPublicKey(ctx context.Context, pub []byte) (*storage.Claw, error) {
	return nil, storage.ErrNotFound
}
func (f *fakeClawRepo) UpdateProfile(ctx context.Context, clawID, displayName, bio, avatarURL string, tags []string, discoverable bool) error {
	return nil
}
func (f *fakeClawRepo) UpdateAutonomy(ctx context.Context, clawID string, level int, config []byte) error {
	return nil
}
func (f *fakeClawRepo) UpdateStatus(ctx context.Context, clawID string, status storage.ClawStatus) error {
	return nil
}
func (f *fakeClawRepo) TouchLastSeen(ctx context.Context, clawID string, at time.Time) error {
	return nil
}
func (f *fakeClawRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	return ids, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func signRequest(t *testing.T, priv ed25519.PrivateKey, method, path string, ts time.Time, body []byte) (string, string) {
	t.Helper()
	tsHeader := strconv.FormatInt(ts.UnixMilli(), 10)
	msg := canonicalMessage(method, path, tsHeader, body)
	sig := ed25519.Sign(priv, msg)
	return tsHeader, base64.StdEncoding.EncodeToString(sig)
}

func newTestAuthenticator(t *testing.T, clawID string, pub ed25519.PublicKey, at time.Time) *Authenticator {
	t.Helper()
	repo := &fakeClawRepo{byID: map[string]*storage.Claw{
		clawID: {ClawID: clawID, PublicKey: pub},
	}}
	return &Authenticator{clock: fixedClock{at: at}, claw: repo, skew: 5 * time.Minute}
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	body := []byte(`{"hello":"world"}`)
	tsHeader, sigB64 := signRequest(t, priv, http.MethodPost, "/api/v1/messages", time.Now(), body)

	assert.True(t, verifySignature(pub, http.MethodPost, "/api/v1/messages", tsHeader, body, sigB64))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tsHeader, sigB64 := signRequest(t, priv, http.MethodPost, "/api/v1/messages", time.Now(), []byte("original"))

	assert.False(t, verifySignature(pub, http.MethodPost, "/api/v1/messages", tsHeader, []byte("tampered"), sigB64))
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	body := []byte("payload")
	tsHeader, sigB64 := signRequest(t, priv, http.MethodGet, "/api/v1/me", time.Now(), body)

	assert.False(t, verifySignature(otherPub, http.MethodGet, "/api/v1/me", tsHeader, body, sigB64))
}

func TestAuthenticatorMiddlewareAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	auth := newTestAuthenticator(t, "claw-1", pub, now)

	body := []byte(`{"x":1}`)
	tsHeader, sigB64 := signRequest(t, priv, http.MethodPost, "/api/v1/messages", now, body)

	var sawClawID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawClawID = ClawIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(string(body)))
	req.Header.Set(headerClawID, "claw-1")
	req.Header.Set(headerTimestamp, tsHeader)
	req.Header.Set(headerSignature, sigB64)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "claw-1", sawClawID)
}

func TestAuthenticatorMiddlewareRejectsStaleTimestamp(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signedAt := time.Now().Add(-time.Hour)
	auth := newTestAuthenticator(t, "claw-1", pub, time.Now())

	body := []byte("payload")
	tsHeader, sigB64 := signRequest(t, priv, http.MethodGet, "/api/v1/me", signedAt, body)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", strings.NewReader(string(body)))
	req.Header.Set(headerClawID, "claw-1")
	req.Header.Set(headerTimestamp, tsHeader)
	req.Header.Set(headerSignature, sigB64)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorMiddlewareRejectsUnknownClaw(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = pub

	now := time.Now()
	auth := newTestAuthenticator(t, "claw-1", pub, now)

	body := []byte("payload")
	tsHeader, sigB64 := signRequest(t, priv, http.MethodGet, "/api/v1/me", now, body)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", strings.NewReader(string(body)))
	req.Header.Set(headerClawID, "claw-ghost")
	req.Header.Set(headerTimestamp, tsHeader)
	req.Header.Set(headerSignature, sigB64)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
