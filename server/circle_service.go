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

	"github.com/chitinlabs/clawbuds/server/storage"
)

// CircleService wraps CircleRepository with the request-time
// validation the repository itself does not enforce (empty names,
// friendship membership before adding to a circle).
type CircleService struct {
	circles     storage.CircleRepository
	friendships storage.FriendshipRepository
}

func NewCircleService(circles storage.CircleRepository, friendships storage.FriendshipRepository) *CircleService {
	return &CircleService{circles: circles, friendships: friendships}
}

func (s *CircleService) Create(ctx context.Context, ownerID, name string) (*storage.Circle, error) {
	if name == "" {
		return nil, NewAPIError(KindValidationFailed, CodeValidation, "circle name is required", nil)
	}
	c, err := s.circles.Create(ctx, ownerID, name)
	if err == storage.ErrDuplicate {
		return nil, NewAPIError(KindConflict, CodeDuplicate, "circle name already in use or circle limit reached", nil)
	}
	return c, err
}

func (s *CircleService) Delete(ctx context.Context, ownerID, circleID string) error {
	return s.circles.Delete(ctx, ownerID, circleID)
}

func (s *CircleService) AddFriend(ctx context.Context, ownerID, circleID, friendID string) error {
	ok, err := s.friendships.AreFriends(ctx, ownerID, friendID)
	if err != nil {
		return err
	}
	if !ok {
		return NewAPIError(KindValidationFailed, CodeValidation, "can only add accepted friends to a circle", nil)
	}
	return s.circles.AddFriend(ctx, ownerID, circleID, friendID)
}

func (s *CircleService) RemoveFriend(ctx context.Context, ownerID, circleID, friendID string) error {
	return s.circles.RemoveFriend(ctx, ownerID, circleID, friendID)
}

func (s *CircleService) ListByOwner(ctx context.Context, ownerID string) ([]storage.Circle, error) {
	return s.circles.ListByOwner(ctx, ownerID)
}

func (s *CircleService) ListMembers(ctx context.Context, ownerID, circleID string) ([]string, error) {
	return s.circles.ListMembers(ctx, ownerID, circleID)
}
