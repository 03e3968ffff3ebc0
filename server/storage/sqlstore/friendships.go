package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type friendshipRepo struct{ s *Store }

func scanFriendship(row *sql.Row) (*storage.Friendship, error) {
	f := &storage.Friendship{}
	var status string
	err := row.Scan(&f.ID, &f.RequesterID, &f.AccepterID, &status, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Status = storage.FriendshipStatus(status)
	return f, nil
}

// CreateRequest implements the reverse-pending auto-accept rule:
// if accepterID already has a pending request
// addressed to requesterID, this call accepts it instead of creating
// a second row, keeping "at most one non-terminal record per
// unordered pair" true by construction.
func (r friendshipRepo) CreateRequest(ctx context.Context, requesterID, accepterID string) (*storage.Friendship, bool, error) {
	tx, err := r.s.begin()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	row := r.s.txQueryRow(tx, `
SELECT id, requester_id, accepter_id, status, created_at, updated_at
FROM friendships WHERE requester_id = ? AND accepter_id = ? AND status = 'pending'`, accepterID, requesterID)
	existing, err := scanFriendship(row)
	now := nowUTC()

	if err == nil {
		if _, err := r.s.txExec(tx, `UPDATE friendships SET status = 'accepted', updated_at = ? WHERE id = ?`, now, existing.ID); err != nil {
			return nil, false, err
		}
		existing.Status = storage.FriendshipAccepted
		existing.UpdatedAt = now
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	if err != storage.ErrNotFound {
		return nil, false, err
	}

	id := newID()
	if _, err := r.s.txExec(tx, `
INSERT INTO friendships (id, requester_id, accepter_id, status, created_at, updated_at) VALUES (?, ?, ?, 'pending', ?, ?)`,
		id, requesterID, accepterID, now, now); err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return nil, false, storage.ErrDuplicate
		}
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &storage.Friendship{ID: id, RequesterID: requesterID, AccepterID: accepterID, Status: storage.FriendshipPending, CreatedAt: now, UpdatedAt: now}, false, nil
}

func (r friendshipRepo) Accept(ctx context.Context, requesterID, accepterID string) (*storage.Friendship, error) {
	now := nowUTC()
	res, err := r.s.exec(`UPDATE friendships SET status = 'accepted', updated_at = ? WHERE requester_id = ? AND accepter_id = ? AND status = 'pending'`,
		now, requesterID, accepterID)
	if err := checkUpdated(res, err); err != nil {
		return nil, err
	}
	return r.GetStatus(ctx, requesterID, accepterID)
}

func (r friendshipRepo) Reject(ctx context.Context, requesterID, accepterID string) error {
	res, err := r.s.exec(`UPDATE friendships SET status = 'rejected', updated_at = ? WHERE requester_id = ? AND accepter_id = ? AND status = 'pending'`,
		nowUTC(), requesterID, accepterID)
	return checkUpdated(res, err)
}

// Remove deletes the friendship record in either direction between
// clawA and clawB, satisfying the symmetry invariant regardless of
// which side calls it.
func (r friendshipRepo) Remove(ctx context.Context, clawA, clawB string) error {
	_, err := r.s.exec(`
DELETE FROM friendships
WHERE (requester_id = ? AND accepter_id = ?) OR (requester_id = ? AND accepter_id = ?)`,
		clawA, clawB, clawB, clawA)
	return err
}

func (r friendshipRepo) GetStatus(ctx context.Context, clawA, clawB string) (*storage.Friendship, error) {
	row := r.s.queryRow(`
SELECT id, requester_id, accepter_id, status, created_at, updated_at
FROM friendships
WHERE (requester_id = ? AND accepter_id = ?) OR (requester_id = ? AND accepter_id = ?)`,
		clawA, clawB, clawB, clawA)
	return scanFriendship(row)
}

func (r friendshipRepo) ListAccepted(ctx context.Context, clawID string) ([]storage.Friendship, error) {
	rows, err := r.s.query(`
SELECT id, requester_id, accepter_id, status, created_at, updated_at
FROM friendships WHERE (requester_id = ? OR accepter_id = ?) AND status = 'accepted'`, clawID, clawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Friendship
	for rows.Next() {
		var f storage.Friendship
		var status string
		if err := rows.Scan(&f.ID, &f.RequesterID, &f.AccepterID, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Status = storage.FriendshipStatus(status)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r friendshipRepo) ListIncomingRequests(ctx context.Context, clawID string) ([]storage.Friendship, error) {
	rows, err := r.s.query(`
SELECT id, requester_id, accepter_id, status, created_at, updated_at
FROM friendships WHERE accepter_id = ? AND status = 'pending'`, clawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Friendship
	for rows.Next() {
		var f storage.Friendship
		var status string
		if err := rows.Scan(&f.ID, &f.RequesterID, &f.AccepterID, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Status = storage.FriendshipStatus(status)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r friendshipRepo) AreFriends(ctx context.Context, clawA, clawB string) (bool, error) {
	f, err := r.GetStatus(ctx, clawA, clawB)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == storage.FriendshipAccepted, nil
}
