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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// TestExpertiseEvolutionFirstAppearancePersistAbsentPrune covers
// property 11: a tag starts at 0.3 on first appearance, rises by 0.05
// per subsequent tick up to 1.0, decays by 0.02 when absent, and is
// pruned once it falls below 0.1.
func TestExpertiseEvolutionFirstAppearancePersistAbsentPrune(t *testing.T) {
	tags := evolveExpertise(map[string]float64{}, []string{"go"})
	assert.InDelta(t, 0.3, tags["go"], 1e-9)

	tags = evolveExpertise(tags, []string{"go"})
	assert.InDelta(t, 0.35, tags["go"], 1e-9)

	// Absent for several ticks in a row: decays by 0.02 each time,
	// pruned once it drops below 0.1.
	for i := 0; i < 20 && len(tags) > 0; i++ {
		tags = evolveExpertise(tags, nil)
	}
	_, stillPresent := tags["go"]
	assert.False(t, stillPresent, "a long-absent tag must eventually be pruned")
}

func TestExpertiseEvolutionCapsAtOne(t *testing.T) {
	tags := map[string]float64{"go": 0.98}
	for i := 0; i < 10; i++ {
		tags = evolveExpertise(tags, []string{"go"})
	}
	assert.Equal(t, 1.0, tags["go"])
}

// fakeHeartbeatRepo and fakeFriendModelRepo back TestHeartbeatDiff*
// without a database: HeartbeatService.Send only needs GetLast/Save.
type fakeHeartbeatRepo struct {
	last map[string]*storage.Heartbeat // key: from|to
}

func (f *fakeHeartbeatRepo) Save(ctx context.Context, hb *storage.Heartbeat) error {
	if f.last == nil {
		f.last = map[string]*storage.Heartbeat{}
	}
	cp := *hb
	f.last[hb.FromClawID+"|"+hb.ToClawID] = &cp
	return nil
}

func (f *fakeHeartbeatRepo) GetLast(ctx context.Context, fromClawID, toClawID string) (*storage.Heartbeat, error) {
	hb, ok := f.last[fromClawID+"|"+toClawID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return hb, nil
}

func (f *fakeHeartbeatRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeFriendModelRepo struct {
	byPair map[string]*storage.FriendModel
}

func (f *fakeFriendModelRepo) Get(ctx context.Context, clawID, friendID string) (*storage.FriendModel, error) {
	fm, ok := f.byPair[clawID+"|"+friendID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return fm, nil
}

func (f *fakeFriendModelRepo) Upsert(ctx context.Context, fm *storage.FriendModel) error {
	if f.byPair == nil {
		f.byPair = map[string]*storage.FriendModel{}
	}
	cp := *fm
	f.byPair[fm.ClawID+"|"+fm.FriendID] = &cp
	return nil
}

func (f *fakeFriendModelRepo) Delete(ctx context.Context, clawID, friendID string) error {
	delete(f.byPair, clawID+"|"+friendID)
	return nil
}

// TestHeartbeatDiffEmitsKeepaliveOnlyWhenUnchanged covers property 10:
// a keepalive is stored iff none of interests/availability/recentTopics
// changed since the last non-keepalive heartbeat sent to that friend.
func TestHeartbeatDiffEmitsKeepaliveOnlyWhenUnchanged(t *testing.T) {
	repo := &fakeHeartbeatRepo{}
	models := &fakeFriendModelRepo{}
	bus := eventbus.New(nil)
	svc := NewHeartbeatService(repo, models, bus)
	ctx := context.Background()

	hb, err := svc.Send(ctx, "alice", "bob", []string{"go", "climbing"}, "busy", []string{"releases"})
	require.NoError(t, err)
	assert.False(t, hb.IsKeepalive, "the first heartbeat to a friend always carries full state")

	hb, err = svc.Send(ctx, "alice", "bob", []string{"go", "climbing"}, "busy", []string{"releases"})
	require.NoError(t, err)
	assert.True(t, hb.IsKeepalive, "identical state should collapse to a keepalive")

	hb, err = svc.Send(ctx, "alice", "bob", []string{"go", "climbing", "pottery"}, "busy", []string{"releases"})
	require.NoError(t, err)
	assert.False(t, hb.IsKeepalive, "a changed field should break the keepalive")
}
