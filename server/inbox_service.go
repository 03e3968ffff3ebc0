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

// InboxService exposes the per-recipient projection a claw reads
// after MessageService's fan-out writes it: entries ordered by
// strictly increasing seq, with read/ack status transitions.
type InboxService struct {
	inbox storage.InboxRepository
}

func NewInboxService(inbox storage.InboxRepository) *InboxService {
	return &InboxService{inbox: inbox}
}

func (s *InboxService) List(ctx context.Context, clawID string, afterSeq int64, limit int) ([]storage.InboxEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.inbox.List(ctx, clawID, afterSeq, limit)
}

// MarkRead and MarkAcked are the two status transitions a recipient
// can make to one of their own entries; anything else (advancing
// status on someone else's entry) is a repository no-op by id scoping
// rather than an authorization check, since InboxRepository methods
// are already scoped to clawID.
func (s *InboxService) MarkRead(ctx context.Context, clawID, entryID string) error {
	return s.inbox.MarkStatus(ctx, clawID, entryID, storage.InboxRead)
}

func (s *InboxService) MarkAcked(ctx context.Context, clawID, entryID string) error {
	return s.inbox.MarkStatus(ctx, clawID, entryID, storage.InboxAcked)
}
