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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// TestDecayIsNonDecreasing checks the piecewise multiplier never
// punishes a stronger relationship harder than a weaker one: a
// core-layer friendship should decay slower, not faster, than a
// barely-active one.
func TestDecayIsNonDecreasing(t *testing.T) {
	samples := []float64{0, 0.1, 0.29, 0.3, 0.45, 0.59, 0.6, 0.7, 0.79, 0.8, 0.9, 1.0}
	prev := decay(samples[0])
	for _, s := range samples[1:] {
		cur := decay(s)
		assert.GreaterOrEqualf(t, cur, prev, "decay(%v)=%v should be >= decay of a lower strength (%v)", s, cur, prev)
		prev = cur
	}
}

func TestDecayStaysWithinUnitMultiplier(t *testing.T) {
	for s := 0.0; s <= 1.0; s += 0.05 {
		m := decay(s)
		assert.GreaterOrEqual(t, m, 0.0)
		assert.LessOrEqual(t, m, 1.0)
	}
}

func TestDecayConstantAboveCoreThreshold(t *testing.T) {
	assert.Equal(t, decay(0.8), decay(0.95))
	assert.Equal(t, decay(0.8), decay(1.0))
}

// TestDecayMatchesScenarioS6 reproduces the worked example: decaying a
// strength of 0.35 yields 0.35 * (0.98 + 0.05*(0.35-0.3)) = 0.343875.
func TestDecayMatchesScenarioS6(t *testing.T) {
	got := 0.35 * decay(0.35)
	assert.InDelta(t, 0.343875, got, 1e-9)
}

// fakeRelationshipRepo is a minimal in-memory RelationshipRepository
// for exercising RunDailyDecay's reclassification pass without a
// database.
type fakeRelationshipRepo struct {
	byOwner map[string][]storage.RelationshipStrength
}

func (f *fakeRelationshipRepo) Get(ctx context.Context, clawID, friendID string) (*storage.RelationshipStrength, error) {
	for _, rs := range f.byOwner[clawID] {
		if rs.FriendID == friendID {
			cp := rs
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRelationshipRepo) CreateInitial(ctx context.Context, clawA, clawB string) error {
	return nil
}

func (f *fakeRelationshipRepo) Upsert(ctx context.Context, rs *storage.RelationshipStrength) error {
	list := f.byOwner[rs.ClawID]
	for i := range list {
		if list[i].FriendID == rs.FriendID {
			list[i] = *rs
			f.byOwner[rs.ClawID] = list
			return nil
		}
	}
	f.byOwner[rs.ClawID] = append(list, *rs)
	return nil
}

func (f *fakeRelationshipRepo) ListByOwner(ctx context.Context, ownerID string) ([]storage.RelationshipStrength, error) {
	out := make([]storage.RelationshipStrength, len(f.byOwner[ownerID]))
	copy(out, f.byOwner[ownerID])
	return out, nil
}

func (f *fakeRelationshipRepo) Delete(ctx context.Context, clawID, friendID string) error {
	return nil
}

// TestDunbarReclassificationRespectsCapacityAndManualOverride covers
// property 9: after reclassification, each layer's population never
// exceeds its capacity, and a manualOverride record keeps its stored
// layer regardless of rank.
func TestDunbarReclassificationRespectsCapacityAndManualOverride(t *testing.T) {
	repo := &fakeRelationshipRepo{byOwner: map[string][]storage.RelationshipStrength{}}

	const owner = "owner-1"
	var relationships []storage.RelationshipStrength
	// Eight friends strong enough for "core" (threshold 0.8), but core
	// only has 5 slots: three of them must spill into "sympathy".
	for i := 0; i < 8; i++ {
		relationships = append(relationships, storage.RelationshipStrength{
			ClawID: owner, FriendID: fmt.Sprintf("friend-%d", i), Strength: 0.99, DunbarLayer: storage.LayerCasual,
		})
	}
	// A manually overridden record with core-level strength but pinned
	// to "casual"; reclassification must leave it alone.
	relationships = append(relationships, storage.RelationshipStrength{
		ClawID: owner, FriendID: "manual-friend", Strength: 0.95, DunbarLayer: storage.LayerCasual, ManualOverride: true,
	})
	repo.byOwner[owner] = relationships

	svc := NewRelationshipService(repo, eventbus.New(zap.NewNop()), nil, 0.15)
	svc.RunDailyDecay(context.Background(), []string{owner})

	updated, err := repo.ListByOwner(context.Background(), owner)
	require.NoError(t, err)

	counts := map[storage.DunbarLayer]int{}
	for _, rs := range updated {
		if rs.FriendID == "manual-friend" {
			assert.Equal(t, storage.LayerCasual, rs.DunbarLayer, "manualOverride must keep its stored layer")
			continue
		}
		counts[rs.DunbarLayer]++
	}
	assert.LessOrEqual(t, counts[storage.LayerCore], 5)
	assert.LessOrEqual(t, counts[storage.LayerSympathy], 15)
	assert.LessOrEqual(t, counts[storage.LayerActive], 50)
	assert.Equal(t, 5, counts[storage.LayerCore], "exactly 5 of the 8 strong relationships should fill core")
	assert.Equal(t, 3, counts[storage.LayerSympathy], "the overflow should spill into sympathy")
}

// fakeMessageRepoOwner is the minimal MessageRepository RelationshipService.WireEvents
// needs: resolving a message id to its sender.
type fakeMessageRepoOwner struct {
	storage.MessageRepository
	owner string
}

func (f *fakeMessageRepoOwner) Get(ctx context.Context, messageID string) (*storage.Message, error) {
	return &storage.Message{ID: messageID, FromClawID: f.owner}, nil
}

// TestWireEventsBoostsBothOrderedPairsOnMessageNew covers the §4.7
// interaction-boost wiring: a published message.new event must raise
// both the sender's and the recipient's RelationshipStrength record
// for that pair, not just one side.
func TestWireEventsBoostsBothOrderedPairsOnMessageNew(t *testing.T) {
	repo := &fakeRelationshipRepo{byOwner: map[string][]storage.RelationshipStrength{
		"alice": {{ClawID: "alice", FriendID: "bob", Strength: 0.5}},
		"bob":   {{ClawID: "bob", FriendID: "alice", Strength: 0.5}},
	}}
	bus := eventbus.New(zap.NewNop())
	svc := NewRelationshipService(repo, bus, zap.NewNop(), 0.15)
	svc.WireEvents(bus, &fakeMessageRepoOwner{})

	bus.PublishMessageNew(eventbus.MessageNewPayload{
		MessageID: "m1", SenderID: "alice", RecipientIDs: []string{"bob"},
	})

	aliceSide, err := repo.Get(context.Background(), "alice", "bob")
	require.NoError(t, err)
	bobSide, err := repo.Get(context.Background(), "bob", "alice")
	require.NoError(t, err)

	assert.Greater(t, aliceSide.Strength, 0.5, "sender's view of the recipient should be boosted")
	assert.Greater(t, bobSide.Strength, 0.5, "recipient's view of the sender should also be boosted")
}

// TestWireEventsReactionResolvesMessageOwner covers the reaction.added
// path, which only carries a message id: the boost must land on
// (reactor, message-owner), and a self-reaction must not boost at all.
func TestWireEventsReactionResolvesMessageOwner(t *testing.T) {
	repo := &fakeRelationshipRepo{byOwner: map[string][]storage.RelationshipStrength{
		"carol": {{ClawID: "carol", FriendID: "dave", Strength: 0.5}},
		"dave":  {{ClawID: "dave", FriendID: "carol", Strength: 0.5}},
	}}
	bus := eventbus.New(zap.NewNop())
	svc := NewRelationshipService(repo, bus, zap.NewNop(), 0.15)
	svc.WireEvents(bus, &fakeMessageRepoOwner{owner: "dave"})

	bus.PublishReactionAdded(eventbus.ReactionAddedPayload{MessageID: "m2", ClawID: "carol", Emoji: "+1"})

	carolSide, err := repo.Get(context.Background(), "carol", "dave")
	require.NoError(t, err)
	assert.Greater(t, carolSide.Strength, 0.5)
}
