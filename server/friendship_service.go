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

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// FriendshipService implements the friendship state machine,
// including the reverse-pending auto-accept rule and the bilateral
// removal guarantee.
type FriendshipService struct {
	friendships storage.FriendshipRepository
	relations   storage.RelationshipRepository
	circles     storage.CircleRepository
	friendModel storage.FriendModelRepository
	claws       storage.ClawRepository
	bus         *eventbus.Bus
}

func NewFriendshipService(friendships storage.FriendshipRepository, relations storage.RelationshipRepository, circles storage.CircleRepository, friendModel storage.FriendModelRepository, claws storage.ClawRepository, bus *eventbus.Bus) *FriendshipService {
	return &FriendshipService{friendships: friendships, relations: relations, circles: circles, friendModel: friendModel, claws: claws, bus: bus}
}

func (s *FriendshipService) Request(ctx context.Context, requesterID, accepterID string) (*storage.Friendship, error) {
	if requesterID == accepterID {
		return nil, NewAPIError(KindValidationFailed, CodeSelfRequest, "cannot friend request yourself", nil)
	}
	if _, err := s.claws.GetByID(ctx, accepterID); err != nil {
		if err == storage.ErrNotFound {
			return nil, NewAPIError(KindNotFound, CodeClawNotFound, "claw not found", nil)
		}
		return nil, err
	}

	existing, err := s.friendships.GetStatus(ctx, requesterID, accepterID)
	if err != nil && err != storage.ErrNotFound {
		return nil, err
	}
	if existing != nil && existing.Status == storage.FriendshipAccepted {
		return nil, NewAPIError(KindConflict, CodeAlreadyFriends, "already friends", nil)
	}

	fs, autoAccepted, err := s.friendships.CreateRequest(ctx, requesterID, accepterID)
	if err != nil {
		if err == storage.ErrDuplicate {
			return nil, NewAPIError(KindConflict, CodeDuplicateRequest, "a pending request already exists", nil)
		}
		return nil, err
	}

	if autoAccepted {
		s.onAccepted(ctx, fs.RequesterID, fs.AccepterID)
	} else {
		s.bus.PublishFriendRequest(eventbus.FriendRequestPayload{RequesterID: requesterID, AccepterID: accepterID})
	}
	return fs, nil
}

func (s *FriendshipService) Accept(ctx context.Context, requesterID, accepterID string) (*storage.Friendship, error) {
	fs, err := s.friendships.Accept(ctx, requesterID, accepterID)
	if err != nil {
		return nil, err
	}
	s.onAccepted(ctx, requesterID, accepterID)
	return fs, nil
}

// onAccepted seeds both directional RelationshipStrength rows and
// emits friend.accepted so TrustService can seed its own defaults.
func (s *FriendshipService) onAccepted(ctx context.Context, clawA, clawB string) {
	_ = s.relations.CreateInitial(ctx, clawA, clawB)
	s.bus.PublishFriendAccepted(eventbus.FriendAcceptedPayload{ClawA: clawA, ClawB: clawB})
}

func (s *FriendshipService) Reject(ctx context.Context, requesterID, accepterID string) error {
	return s.friendships.Reject(ctx, requesterID, accepterID)
}

// Remove deletes the friendship symmetrically and cleans up every
// owned-by-either-side derived record, property 3.
func (s *FriendshipService) Remove(ctx context.Context, clawA, clawB string) error {
	if err := s.friendships.Remove(ctx, clawA, clawB); err != nil {
		return err
	}
	_ = s.circles.RemoveFriendFromAllCircles(ctx, clawA, clawB)
	_ = s.circles.RemoveFriendFromAllCircles(ctx, clawB, clawA)
	_ = s.friendModel.Delete(ctx, clawA, clawB)
	_ = s.friendModel.Delete(ctx, clawB, clawA)
	_ = s.relations.Delete(ctx, clawA, clawB)
	_ = s.relations.Delete(ctx, clawB, clawA)
	return nil
}

func (s *FriendshipService) ListAccepted(ctx context.Context, clawID string) ([]storage.Friendship, error) {
	return s.friendships.ListAccepted(ctx, clawID)
}

func (s *FriendshipService) ListIncomingRequests(ctx context.Context, clawID string) ([]storage.Friendship, error) {
	return s.friendships.ListIncomingRequests(ctx, clawID)
}

func (s *FriendshipService) AreFriends(ctx context.Context, clawA, clawB string) (bool, error) {
	return s.friendships.AreFriends(ctx, clawA, clawB)
}
