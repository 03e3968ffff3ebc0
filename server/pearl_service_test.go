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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// TestPearlEndorsementOverwritesAndLusterIsMonotone covers scenario S5
// and property 12's sibling: a repeat endorsement from the same
// endorser overwrites rather than duplicates (UNIQUE pearl+endorser),
// and luster rises monotonically with the endorsement score.
func TestPearlEndorsementOverwritesAndLusterIsMonotone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())

	claws := NewClawService(store.Claws())
	pearls := NewPearlService(store.Pearls(), store.Trust(), bus)

	alice := registerTestClaw(t, ctx, claws, "Alice")
	bob := registerTestClaw(t, ctx, claws, "Bob")

	p, err := pearls.Create(ctx, alice, storage.PearlInsight, "trigger", "body", "context", []string{"AI"}, storage.SharePublic, "user")
	require.NoError(t, err)

	require.NoError(t, pearls.Endorse(ctx, p.ID, bob, 0.2, "meh"))
	low, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, pearls.Endorse(ctx, p.ID, bob, 0.9, "love it"))
	high, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)

	require.Greater(t, high.Luster, low.Luster)

	endorsements, err := pearls.ListEndorsements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, endorsements, 1, "the second endorsement overwrites the first rather than duplicating it")
	require.Equal(t, 0.9, endorsements[0].Score)
}

// TestThreadContributionTriggersLusterOnlyForPearlRef covers property
// 12: a thread.contribution_added event recomputes luster exactly
// when contentType is pearl_ref and pearlRefId resolves; any other
// content type is a no-op.
func TestThreadContributionTriggersLusterOnlyForPearlRef(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())

	claws := NewClawService(store.Claws())
	pearls := NewPearlService(store.Pearls(), store.Trust(), bus)

	alice := registerTestClaw(t, ctx, claws, "Alice")
	bob := registerTestClaw(t, ctx, claws, "Bob")

	charlie := registerTestClaw(t, ctx, claws, "Charlie")

	p, err := pearls.Create(ctx, alice, storage.PearlInsight, "trigger", "body", "context", nil, storage.SharePublic, "user")
	require.NoError(t, err)
	require.NoError(t, pearls.Endorse(ctx, p.ID, bob, 0.9, ""))

	before, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)

	// Add a second endorsement directly at the repository layer,
	// bypassing PearlService.Endorse's own recompute, so the stored
	// luster value still reflects only the first endorsement until a
	// thread.contribution_added reaction (or another Endorse call)
	// recomputes it.
	require.NoError(t, store.Pearls().Endorse(ctx, &storage.PearlEndorsement{
		PearlID: p.ID, EndorserID: charlie, Score: 0.9,
	}))
	unchanged, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, before.Luster, unchanged.Luster, "a raw repo write must not itself trigger a recompute")

	// Irrelevant content type: no-op.
	bus.PublishThreadContributionAdded(eventbus.ThreadContributionAddedPayload{
		ThreadID: "t1", MessageID: "m1", ClawID: bob, ContentType: "text", PearlRefID: p.ID,
	})
	afterText, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, before.Luster, afterText.Luster)

	// pearl_ref with no resolvable id: no-op.
	bus.PublishThreadContributionAdded(eventbus.ThreadContributionAddedPayload{
		ThreadID: "t1", MessageID: "m2", ClawID: bob, ContentType: "pearl_ref", PearlRefID: "",
	})
	afterEmpty, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, before.Luster, afterEmpty.Luster)

	// pearl_ref with a resolvable id: triggers exactly the recompute
	// that folds in charlie's endorsement, so luster now moves.
	bus.PublishThreadContributionAdded(eventbus.ThreadContributionAddedPayload{
		ThreadID: "t1", MessageID: "m3", ClawID: bob, ContentType: "pearl_ref", PearlRefID: p.ID,
	})
	afterRef, err := pearls.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotEqual(t, before.Luster, afterRef.Luster)
}
