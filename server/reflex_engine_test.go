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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chitinlabs/clawbuds/server/storage"
)

// TestDecideLayer1AlwaysQueues covers Layer-1 reflexes deferring to
// the external assistant regardless of Behavior.
func TestDecideLayer1AlwaysQueues(t *testing.T) {
	e := NewReflexEngine(nil)
	rx := storage.Reflex{ID: "r1", ClawID: "alice", TriggerLayer: storage.TriggerLayer1, Behavior: "confirm"}
	assert.Equal(t, storage.ResultQueuedForL1, e.decide(rx, time.Now()))
}

// TestDecideConfirmBehaviorRecommends covers a Layer-0 reflex whose
// Behavior requires user confirmation before running.
func TestDecideConfirmBehaviorRecommends(t *testing.T) {
	e := NewReflexEngine(nil)
	rx := storage.Reflex{ID: "r2", ClawID: "alice", TriggerLayer: storage.TriggerLayer0, Behavior: behaviorConfirm}
	assert.Equal(t, storage.ResultRecommended, e.decide(rx, time.Now()))
}

// TestDecideDefaultBehaviorExecutes covers a plain Layer-0 reflex with
// no recognized Behavior convention.
func TestDecideDefaultBehaviorExecutes(t *testing.T) {
	e := NewReflexEngine(nil)
	rx := storage.Reflex{ID: "r3", ClawID: "alice", TriggerLayer: storage.TriggerLayer0, Behavior: "auto"}
	assert.Equal(t, storage.ResultExecuted, e.decide(rx, time.Now()))
}

// TestDecideRateLimitedBlocksPastQuota covers the rate-limited policy
// gate: the first N matches within a minute execute, the (N+1)th is
// blocked by the gate, and a new minute bucket resets the quota.
func TestDecideRateLimitedBlocksPastQuota(t *testing.T) {
	e := NewReflexEngine(nil)
	rx := storage.Reflex{ID: "r4", ClawID: "alice", TriggerLayer: storage.TriggerLayer0, Behavior: "rate_limited:2"}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, storage.ResultExecuted, e.decide(rx, now))
	assert.Equal(t, storage.ResultExecuted, e.decide(rx, now.Add(10*time.Second)))
	assert.Equal(t, storage.ResultBlocked, e.decide(rx, now.Add(20*time.Second)), "third match within the same minute should be blocked")

	next := now.Add(time.Minute)
	assert.Equal(t, storage.ResultExecuted, e.decide(rx, next), "a new minute bucket should reset the quota")
}

// TestDecideRateLimitIsPerClaw covers that the rate-limit quota is
// scoped per claw, not shared globally across a reflex definition.
func TestDecideRateLimitIsPerClaw(t *testing.T) {
	e := NewReflexEngine(nil)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	alice := storage.Reflex{ID: "r5", ClawID: "alice", TriggerLayer: storage.TriggerLayer0, Behavior: "rate_limited:1"}
	bob := storage.Reflex{ID: "r5", ClawID: "bob", TriggerLayer: storage.TriggerLayer0, Behavior: "rate_limited:1"}

	assert.Equal(t, storage.ResultExecuted, e.decide(alice, now))
	assert.Equal(t, storage.ResultBlocked, e.decide(alice, now.Add(time.Second)))
	assert.Equal(t, storage.ResultExecuted, e.decide(bob, now.Add(time.Second)), "bob's own quota is independent of alice's")
}
