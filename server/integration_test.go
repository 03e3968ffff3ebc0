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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/migrations"
	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
	"github.com/chitinlabs/clawbuds/server/storage/litestore"
)

// newTestStore opens a fresh SQLite-backed storage.Store, migrated up,
// at a throwaway path under the test's temp directory. Two handles are
// opened against the same file exactly as main.go's openStore does:
// one raw *sql.DB for migrations.Up, one wrapped storage.Store for
// everything else.
func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	logger := zap.NewNop()
	dsn := filepath.Join(t.TempDir(), "clawbuds-test.db")
	ctx := context.Background()

	rawDB, err := litestore.OpenDB(ctx, logger, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	_, err = migrations.Up(logger, rawDB, "sqlite3")
	require.NoError(t, err)

	store, err := litestore.Open(ctx, logger, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// registerTestClaw mints a fresh Ed25519 identity and registers it,
// returning the assigned claw id.
func registerTestClaw(t *testing.T, ctx context.Context, claws *ClawService, name string) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	claw, err := claws.Register(ctx, pub, name)
	require.NoError(t, err)
	return claw.ClawID
}

// TestFriendshipRequestAcceptSymmetryAndRemoval covers scenario S1 and
// property 3: a reverse pending request auto-accepts, both sides then
// see each other in listFriends, and removal by either side severs
// the relationship for both.
func TestFriendshipRequestAcceptSymmetryAndRemoval(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())

	claws := NewClawService(store.Claws())
	friendships := NewFriendshipService(store.Friendships(), store.Relationships(), store.Circles(), store.FriendModels(), store.Claws(), bus)

	alice := registerTestClaw(t, ctx, claws, "Alice")
	bob := registerTestClaw(t, ctx, claws, "Bob")

	fs, err := friendships.Request(ctx, alice, bob)
	require.NoError(t, err)
	require.Equal(t, storage.FriendshipPending, fs.Status)

	fs, err = friendships.Request(ctx, bob, alice)
	require.NoError(t, err)
	require.Equal(t, storage.FriendshipAccepted, fs.Status)

	aliceFriends, err := friendships.ListAccepted(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)

	bobFriends, err := friendships.ListAccepted(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)

	require.NoError(t, friendships.Remove(ctx, alice, bob))

	aliceFriends, err = friendships.ListAccepted(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, aliceFriends)

	bobFriends, err = friendships.ListAccepted(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, bobFriends)
}

// TestCircleMessageFanOutUnionDedup covers scenario S2 and property 4:
// a circles-visibility message addressed to two overlapping circles is
// delivered to the deduplicated union of members intersected with
// accepted friends, exactly once each.
func TestCircleMessageFanOutUnionDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())

	claws := NewClawService(store.Claws())
	friendships := NewFriendshipService(store.Friendships(), store.Relationships(), store.Circles(), store.FriendModels(), store.Claws(), bus)
	circles := NewCircleService(store.Circles(), store.Friendships())
	messages := NewMessageService(store.Messages(), store.Friendships(), store.Circles(), store.Groups(), bus)

	alice := registerTestClaw(t, ctx, claws, "Alice")
	bob := registerTestClaw(t, ctx, claws, "Bob")
	charlie := registerTestClaw(t, ctx, claws, "Charlie")
	dave := registerTestClaw(t, ctx, claws, "Dave")

	for _, friend := range []string{bob, charlie, dave} {
		_, err := friendships.Request(ctx, alice, friend)
		require.NoError(t, err)
		_, err = friendships.Request(ctx, friend, alice)
		require.NoError(t, err)
	}

	layerA, err := circles.Create(ctx, alice, "layer-a")
	require.NoError(t, err)
	layerB, err := circles.Create(ctx, alice, "layer-b")
	require.NoError(t, err)

	require.NoError(t, circles.AddFriend(ctx, alice, layerA.ID, bob))
	require.NoError(t, circles.AddFriend(ctx, alice, layerA.ID, charlie))
	require.NoError(t, circles.AddFriend(ctx, alice, layerB.ID, charlie))
	require.NoError(t, circles.AddFriend(ctx, alice, layerB.ID, dave))

	result, err := messages.Send(ctx, alice, SendMessageRequest{
		Blocks:      []storage.Block{{Tag: "text", Data: []byte(`{"text":"Multi-layer!"}`)}},
		Visibility:  storage.VisibilityCircles,
		CircleNames: []string{"layer-a", "layer-b"},
	})
	require.NoError(t, err)

	require.Equal(t, 3, result.RecipientCount)
	require.ElementsMatch(t, []string{bob, charlie, dave}, result.Recipients)

	charlieInbox, err := store.Inbox().List(ctx, charlie, 0, 10)
	require.NoError(t, err)
	require.Len(t, charlieInbox, 1)
	require.Equal(t, result.MessageID, charlieInbox[0].MessageID)
}

// TestGroupJoinRespectsCapacity covers scenario S3: a public group at
// capacity rejects a further join with GROUP_FULL.
func TestGroupJoinRespectsCapacity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())

	claws := NewClawService(store.Claws())
	groups := NewGroupService(store.Groups(), bus)

	alice := registerTestClaw(t, ctx, claws, "Alice")
	bob := registerTestClaw(t, ctx, claws, "Bob")
	charlie := registerTestClaw(t, ctx, claws, "Charlie")
	dave := registerTestClaw(t, ctx, claws, "Dave")

	g, err := groups.Create(ctx, alice, "G", storage.GroupPublic, 3, false)
	require.NoError(t, err)

	require.NoError(t, groups.Join(ctx, bob, g.ID))
	require.NoError(t, groups.Join(ctx, charlie, g.ID))

	err = groups.Join(ctx, dave, g.ID)
	require.Error(t, err)
	apiErr, ok := err.(*apiError)
	require.True(t, ok)
	require.Equal(t, CodeGroupFull, apiErr.code)

	members, err := groups.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
}

// TestGroupOwnerInvariants covers property 5: the owner can never
// leave, be demoted, or be removed, while an admin may still remove a
// plain member.
func TestGroupOwnerInvariants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	bus := eventbus.New(zap.NewNop())

	claws := NewClawService(store.Claws())
	groups := NewGroupService(store.Groups(), bus)

	alice := registerTestClaw(t, ctx, claws, "Alice")
	bob := registerTestClaw(t, ctx, claws, "Bob")
	charlie := registerTestClaw(t, ctx, claws, "Charlie")

	g, err := groups.Create(ctx, alice, "G", storage.GroupPrivate, 10, false)
	require.NoError(t, err)

	_, err = groups.Invite(ctx, alice, g.ID, bob)
	require.NoError(t, err)
	require.NoError(t, groups.Join(ctx, bob, g.ID))

	_, err = groups.Invite(ctx, alice, g.ID, charlie)
	require.NoError(t, err)
	require.NoError(t, groups.Join(ctx, charlie, g.ID))

	require.NoError(t, groups.ChangeRole(ctx, alice, g.ID, bob, storage.RoleAdmin))

	err = groups.ChangeRole(ctx, bob, g.ID, alice, storage.RoleAdmin)
	require.Error(t, err)

	err = groups.RemoveMember(ctx, bob, g.ID, alice)
	require.Error(t, err)

	err = groups.Leave(ctx, alice, g.ID)
	require.Error(t, err)

	require.NoError(t, groups.RemoveMember(ctx, bob, g.ID, charlie))
	members, err := groups.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
}
