package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type circleRepo struct{ s *Store }

func (r circleRepo) Create(ctx context.Context, ownerID, name string) (*storage.Circle, error) {
	var count int
	if err := r.s.queryRow(`SELECT COUNT(*) FROM circles WHERE owner_id = ?`, ownerID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= 50 {
		return nil, storage.ErrDuplicate // service layer reports capacity overrun as the same conflict as a duplicate name
	}
	id := newID()
	now := nowUTC()
	_, err := r.s.exec(`INSERT INTO circles (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`, id, ownerID, name, now)
	if err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, err
	}
	return &storage.Circle{ID: id, OwnerID: ownerID, Name: name, CreatedAt: now}, nil
}

func (r circleRepo) Delete(ctx context.Context, ownerID, circleID string) error {
	res, err := r.s.exec(`DELETE FROM circles WHERE id = ? AND owner_id = ?`, circleID, ownerID)
	return checkUpdated(res, err)
}

func (r circleRepo) AddFriend(ctx context.Context, ownerID, circleID, friendID string) error {
	var owner string
	if err := r.s.queryRow(`SELECT owner_id FROM circles WHERE id = ?`, circleID).Scan(&owner); err != nil {
		if err == sql.ErrNoRows {
			return storage.ErrNotFound
		}
		return err
	}
	if owner != ownerID {
		return storage.ErrNotFound
	}
	_, err := r.s.exec(`INSERT INTO circle_members (circle_id, friend_id) VALUES (?, ?)`, circleID, friendID)
	if err != nil && r.s.dialect.IsUniqueViolation(err) {
		return nil // already a member is a no-op, not an error
	}
	return err
}

func (r circleRepo) RemoveFriend(ctx context.Context, ownerID, circleID, friendID string) error {
	_, err := r.s.exec(`
DELETE FROM circle_members WHERE circle_id = ? AND friend_id = ?
AND circle_id IN (SELECT id FROM circles WHERE owner_id = ?)`, circleID, friendID, ownerID)
	return err
}

func (r circleRepo) ListByOwner(ctx context.Context, ownerID string) ([]storage.Circle, error) {
	rows, err := r.s.query(`SELECT id, owner_id, name, created_at FROM circles WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Circle
	for rows.Next() {
		var c storage.Circle
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r circleRepo) ListMembers(ctx context.Context, ownerID, circleID string) ([]string, error) {
	rows, err := r.s.query(`
SELECT friend_id FROM circle_members
WHERE circle_id = ? AND circle_id IN (SELECT id FROM circles WHERE owner_id = ?)`, circleID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MembersOfNames resolves the deduplicated union of members across
// circles named in `names`, owned by ownerID.
func (r circleRepo) MembersOfNames(ctx context.Context, ownerID string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := []interface{}{ownerID}
	for i, n := range names {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, n)
	}
	rows, err := r.s.query(`
SELECT DISTINCT cm.friend_id
FROM circle_members cm
JOIN circles c ON c.id = cm.circle_id
WHERE c.owner_id = ? AND c.name IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r circleRepo) RemoveFriendFromAllCircles(ctx context.Context, ownerID, friendID string) error {
	_, err := r.s.exec(`
DELETE FROM circle_members WHERE friend_id = ?
AND circle_id IN (SELECT id FROM circles WHERE owner_id = ?)`, friendID, ownerID)
	return err
}
