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
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// GroupService enforces the membership and role invariants: exactly
// one immutable owner, public-join vs private-invite semantics,
// single-use invitations.
type GroupService struct {
	groups storage.GroupRepository
	bus    *eventbus.Bus
}

func NewGroupService(groups storage.GroupRepository, bus *eventbus.Bus) *GroupService {
	return &GroupService{groups: groups, bus: bus}
}

func (s *GroupService) Create(ctx context.Context, ownerID, name string, typ storage.GroupType, maxMembers int, encrypted bool) (*storage.Group, error) {
	if name == "" {
		return nil, NewAPIError(KindValidationFailed, CodeValidation, "group name is required", nil)
	}
	if maxMembers <= 0 {
		maxMembers = 250
	}
	g := &storage.Group{
		ID:         newRandomID(),
		Name:       name,
		Type:       typ,
		OwnerID:    ownerID,
		MaxMembers: maxMembers,
		Encrypted:  encrypted,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GroupService) Get(ctx context.Context, groupID string) (*storage.Group, error) {
	g, err := s.groups.Get(ctx, groupID)
	if err == storage.ErrNotFound {
		return nil, NewAPIError(KindNotFound, CodeNotFound, "group not found", nil)
	}
	return g, err
}

func (s *GroupService) Update(ctx context.Context, callerID, groupID, name string, maxMembers int) error {
	if err := s.requireOwner(ctx, callerID, groupID); err != nil {
		return err
	}
	return s.groups.Update(ctx, groupID, name, maxMembers)
}

func (s *GroupService) Delete(ctx context.Context, callerID, groupID string) error {
	if err := s.requireOwner(ctx, callerID, groupID); err != nil {
		return err
	}
	return s.groups.Delete(ctx, groupID)
}

func (s *GroupService) ListMembers(ctx context.Context, groupID string) ([]storage.GroupMember, error) {
	return s.groups.ListMembers(ctx, groupID)
}

// Join handles both public (no invitation required, capacity checked)
// and private (invitation required, consumed on success) groups.
func (s *GroupService) Join(ctx context.Context, clawID, groupID string) error {
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if _, err := s.groups.GetMember(ctx, groupID, clawID); err == nil {
		return nil // already a member, idempotent
	} else if err != storage.ErrNotFound {
		return err
	}

	if g.Type == storage.GroupPrivate {
		inv, err := s.groups.GetInvitation(ctx, groupID, clawID)
		if err != nil {
			if err == storage.ErrNotFound {
				return NewAPIError(KindNotFound, CodeNoInvitation, "no pending invitation for this group", nil)
			}
			return err
		}
		if err := s.addMemberWithCapacity(ctx, g, clawID, storage.RoleMember); err != nil {
			return err
		}
		return s.groups.ConsumeInvitation(ctx, inv.ID)
	}

	return s.addMemberWithCapacity(ctx, g, clawID, storage.RoleMember)
}

func (s *GroupService) addMemberWithCapacity(ctx context.Context, g *storage.Group, clawID string, role storage.GroupRole) error {
	count, err := s.groups.MemberCount(ctx, g.ID)
	if err != nil {
		return err
	}
	if count >= g.MaxMembers {
		return NewAPIError(KindConflict, CodeGroupFull, "group is at capacity", nil)
	}
	if err := s.groups.AddMember(ctx, g.ID, clawID, role); err != nil {
		if err == storage.ErrDuplicate {
			return nil
		}
		return err
	}
	s.bus.PublishGroupJoined(eventbus.GroupJoinedPayload{GroupID: g.ID, ClawID: clawID})
	return nil
}

// Invite requires the caller to be owner or admin: the handler stays
// thin and the role check lives here, in the service.
func (s *GroupService) Invite(ctx context.Context, callerID, groupID, inviteeID string) (*storage.GroupInvitation, error) {
	if err := s.requireOwnerOrAdmin(ctx, callerID, groupID); err != nil {
		return nil, err
	}
	inv, err := s.groups.CreateInvitation(ctx, groupID, callerID, inviteeID)
	if err != nil {
		return nil, err
	}
	s.bus.PublishGroupInvited(eventbus.GroupInvitedPayload{GroupID: groupID, InviterID: callerID, InviteeID: inviteeID})
	return inv, nil
}

func (s *GroupService) RejectInvitation(ctx context.Context, clawID, groupID string) error {
	inv, err := s.groups.GetInvitation(ctx, groupID, clawID)
	if err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotFound, CodeNoInvitation, "no pending invitation for this group", nil)
		}
		return err
	}
	return s.groups.ConsumeInvitation(ctx, inv.ID)
}

// Leave forbids the owner from leaving a group they own.
func (s *GroupService) Leave(ctx context.Context, clawID, groupID string) error {
	m, err := s.groups.GetMember(ctx, groupID, clawID)
	if err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotAuthorized, CodeNotMember, "not a member of this group", nil)
		}
		return err
	}
	if m.Role == storage.RoleOwner {
		return NewAPIError(KindValidationFailed, CodeValidation, "the owner cannot leave the group", nil)
	}
	if err := s.groups.RemoveMember(ctx, groupID, clawID); err != nil {
		return err
	}
	s.bus.PublishGroupLeft(eventbus.GroupLeftPayload{GroupID: groupID, ClawID: clawID})
	return nil
}

// RemoveMember requires the caller be owner or admin and forbids
// anyone from removing the owner.
func (s *GroupService) RemoveMember(ctx context.Context, callerID, groupID, targetID string) error {
	target, err := s.groups.GetMember(ctx, groupID, targetID)
	if err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotFound, CodeNotFound, "member not found", nil)
		}
		return err
	}
	if target.Role == storage.RoleOwner {
		return NewAPIError(KindNotAuthorized, CodeInsufficientPerms, "the owner cannot be removed", nil)
	}
	if err := s.requireOwnerOrAdmin(ctx, callerID, groupID); err != nil {
		return err
	}
	if err := s.groups.RemoveMember(ctx, groupID, targetID); err != nil {
		return err
	}
	s.bus.PublishGroupRemoved(eventbus.GroupRemovedPayload{GroupID: groupID, ClawID: targetID, ByID: callerID})
	return nil
}

// ChangeRole only the owner may promote/demote admins; the owner role
// itself is immutable.
func (s *GroupService) ChangeRole(ctx context.Context, callerID, groupID, targetID string, role storage.GroupRole) error {
	if role == storage.RoleOwner {
		return NewAPIError(KindValidationFailed, CodeValidation, "ownership cannot be transferred via role change", nil)
	}
	target, err := s.groups.GetMember(ctx, groupID, targetID)
	if err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotFound, CodeNotFound, "member not found", nil)
		}
		return err
	}
	if target.Role == storage.RoleOwner {
		return NewAPIError(KindNotAuthorized, CodeInsufficientPerms, "the owner's role cannot be changed", nil)
	}
	if err := s.requireOwner(ctx, callerID, groupID); err != nil {
		return err
	}
	return s.groups.ChangeRole(ctx, groupID, targetID, role)
}

func (s *GroupService) ListInvitations(ctx context.Context, clawID string) ([]storage.GroupInvitation, error) {
	return s.groups.ListInvitations(ctx, clawID)
}

func (s *GroupService) requireOwner(ctx context.Context, callerID, groupID string) error {
	m, err := s.groups.GetMember(ctx, groupID, callerID)
	if err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotAuthorized, CodeNotMember, "not a member of this group", nil)
		}
		return err
	}
	if m.Role != storage.RoleOwner {
		return NewAPIError(KindNotAuthorized, CodeInsufficientPerms, "owner privileges required", nil)
	}
	return nil
}

func (s *GroupService) requireOwnerOrAdmin(ctx context.Context, callerID, groupID string) error {
	m, err := s.groups.GetMember(ctx, groupID, callerID)
	if err != nil {
		if err == storage.ErrNotFound {
			return NewAPIError(KindNotAuthorized, CodeNotMember, "not a member of this group", nil)
		}
		return err
	}
	if m.Role != storage.RoleOwner && m.Role != storage.RoleAdmin {
		return NewAPIError(KindNotAuthorized, CodeInsufficientPerms, "admin or owner privileges required", nil)
	}
	return nil
}
