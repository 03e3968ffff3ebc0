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
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chitinlabs/clawbuds/internal/ctxkeys"
	"github.com/chitinlabs/clawbuds/server/storage"
)

const (
	headerClawID     = "X-Claw-Id"
	headerTimestamp  = "X-Claw-Timestamp"
	headerSignature  = "X-Claw-Signature"
)

// Authenticator verifies the three-header signature scheme: the
// tuple (method, path, timestamp, body) is
// concatenated with "\n" and checked against an Ed25519 signature
// over the claw's registered public key.
type Authenticator struct {
	clock SkewClock
	claw  storage.ClawRepository
	skew  time.Duration
}

// SkewClock is the single method of time.Now the authenticator needs,
// broken out so tests can supply a fixed clock.
type SkewClock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewAuthenticator(claws storage.ClawRepository, skew time.Duration) *Authenticator {
	return &Authenticator{clock: realClock{}, claw: claws, skew: skew}
}

// Middleware rejects any request failing signature verification and,
// on success, stores the verified claw id, timestamp and a per-request
// id in the request context for downstream handlers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clawID := r.Header.Get(headerClawID)
		tsHeader := r.Header.Get(headerTimestamp)
		sigHeader := r.Header.Get(headerSignature)

		if clawID == "" || tsHeader == "" || sigHeader == "" {
			writeError(w, NewAPIError(KindAuthenticationFailed, CodeBadSignature, "missing authentication headers", nil))
			return
		}

		tsMillis, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			writeError(w, NewAPIError(KindAuthenticationFailed, CodeBadSignature, "malformed timestamp", err))
			return
		}
		ts := time.UnixMilli(tsMillis)
		if skew := a.clock.Now().Sub(ts); skew > a.skew || skew < -a.skew {
			writeError(w, NewAPIError(KindAuthenticationFailed, CodeTimestampSkew, "timestamp outside allowed skew", nil))
			return
		}

		claw, err := a.claw.GetByID(r.Context(), clawID)
		if err != nil {
			if err == storage.ErrNotFound {
				writeError(w, NewAPIError(KindAuthenticationFailed, CodeUnknownClaw, "unknown claw", nil))
				return
			}
			writeError(w, NewAPIError(KindInternal, "INTERNAL", "internal error", err))
			return
		}

		var body []byte
		if r.Body != nil {
			body, err = io.ReadAll(r.Body)
			if err != nil {
				writeError(w, NewAPIError(KindValidationFailed, CodeValidation, "could not read request body", err))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		if !verifySignature(claw.PublicKey, r.Method, r.URL.Path, tsHeader, body, sigHeader) {
			writeError(w, NewAPIError(KindAuthenticationFailed, CodeBadSignature, "signature verification failed", nil))
			return
		}

		ctx := context.WithValue(r.Context(), ctxkeys.ClawIDKey{}, clawID)
		ctx = context.WithValue(ctx, ctxkeys.TimestampKey{}, ts)
		ctx = context.WithValue(ctx, ctxkeys.RequestIDKey{}, newRandomID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// canonicalMessage builds the exact byte sequence that must be signed.
func canonicalMessage(method, path, timestamp string, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte('\n')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.WriteString(timestamp)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

func verifySignature(pub ed25519.PublicKey, method, path, timestamp string, body []byte, sigB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := canonicalMessage(method, path, timestamp, body)
	return ed25519.Verify(pub, msg, sig)
}

// ClawIDFromContext retrieves the authenticated claw id stashed by
// Middleware. Handlers reached through Middleware may call this
// unconditionally.
func ClawIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxkeys.ClawIDKey{}).(string)
	return id
}
