package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type groupRepo struct{ s *Store }

func (r groupRepo) Create(ctx context.Context, g *storage.Group) error {
	tx, err := r.s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := r.s.txExec(tx, `
INSERT INTO groups (id, name, type, owner_id, max_members, encrypted, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(g.Type), g.OwnerID, g.MaxMembers, g.Encrypted, g.CreatedAt); err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return err
	}
	if _, err := r.s.txExec(tx, `INSERT INTO group_members (group_id, claw_id, role, joined_at) VALUES (?, ?, 'owner', ?)`,
		g.ID, g.OwnerID, g.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r groupRepo) Get(ctx context.Context, groupID string) (*storage.Group, error) {
	row := r.s.queryRow(`SELECT id, name, type, owner_id, max_members, encrypted, created_at FROM groups WHERE id = ?`, groupID)
	g := &storage.Group{}
	var typ string
	err := row.Scan(&g.ID, &g.Name, &typ, &g.OwnerID, &g.MaxMembers, &g.Encrypted, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Type = storage.GroupType(typ)
	return g, nil
}

func (r groupRepo) Update(ctx context.Context, groupID, name string, maxMembers int) error {
	res, err := r.s.exec(`UPDATE groups SET name = ?, max_members = ? WHERE id = ?`, name, maxMembers, groupID)
	return checkUpdated(res, err)
}

func (r groupRepo) Delete(ctx context.Context, groupID string) error {
	res, err := r.s.exec(`DELETE FROM groups WHERE id = ?`, groupID)
	return checkUpdated(res, err)
}

func (r groupRepo) ListMembers(ctx context.Context, groupID string) ([]storage.GroupMember, error) {
	rows, err := r.s.query(`SELECT group_id, claw_id, role, joined_at FROM group_members WHERE group_id = ? ORDER BY joined_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.GroupMember
	for rows.Next() {
		var m storage.GroupMember
		var role string
		if err := rows.Scan(&m.GroupID, &m.ClawID, &role, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.Role = storage.GroupRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r groupRepo) GetMember(ctx context.Context, groupID, clawID string) (*storage.GroupMember, error) {
	row := r.s.queryRow(`SELECT group_id, claw_id, role, joined_at FROM group_members WHERE group_id = ? AND claw_id = ?`, groupID, clawID)
	m := &storage.GroupMember{}
	var role string
	err := row.Scan(&m.GroupID, &m.ClawID, &role, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = storage.GroupRole(role)
	return m, nil
}

func (r groupRepo) MemberCount(ctx context.Context, groupID string) (int, error) {
	var n int
	err := r.s.queryRow(`SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}

func (r groupRepo) AddMember(ctx context.Context, groupID, clawID string, role storage.GroupRole) error {
	_, err := r.s.exec(`INSERT INTO group_members (group_id, claw_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		groupID, clawID, string(role), nowUTC())
	if err != nil && r.s.dialect.IsUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

func (r groupRepo) ChangeRole(ctx context.Context, groupID, clawID string, role storage.GroupRole) error {
	res, err := r.s.exec(`UPDATE group_members SET role = ? WHERE group_id = ? AND claw_id = ? AND role != 'owner'`,
		string(role), groupID, clawID)
	return checkUpdated(res, err)
}

func (r groupRepo) RemoveMember(ctx context.Context, groupID, clawID string) error {
	res, err := r.s.exec(`DELETE FROM group_members WHERE group_id = ? AND claw_id = ? AND role != 'owner'`, groupID, clawID)
	return checkUpdated(res, err)
}

func (r groupRepo) CreateInvitation(ctx context.Context, groupID, inviterID, inviteeID string) (*storage.GroupInvitation, error) {
	id := newID()
	now := nowUTC()
	_, err := r.s.exec(`INSERT INTO group_invitations (id, group_id, inviter_id, invitee_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, groupID, inviterID, inviteeID, now)
	if err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, err
	}
	return &storage.GroupInvitation{ID: id, GroupID: groupID, InviterID: inviterID, InviteeID: inviteeID, CreatedAt: now}, nil
}

func (r groupRepo) GetInvitation(ctx context.Context, groupID, inviteeID string) (*storage.GroupInvitation, error) {
	row := r.s.queryRow(`SELECT id, group_id, inviter_id, invitee_id, created_at FROM group_invitations WHERE group_id = ? AND invitee_id = ?`,
		groupID, inviteeID)
	inv := &storage.GroupInvitation{}
	err := row.Scan(&inv.ID, &inv.GroupID, &inv.InviterID, &inv.InviteeID, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ConsumeInvitation deletes the invitation so it is single-use,
// whether the caller is accepting or rejecting it.
func (r groupRepo) ConsumeInvitation(ctx context.Context, invitationID string) error {
	res, err := r.s.exec(`DELETE FROM group_invitations WHERE id = ?`, invitationID)
	return checkUpdated(res, err)
}

func (r groupRepo) ListInvitations(ctx context.Context, clawID string) ([]storage.GroupInvitation, error) {
	rows, err := r.s.query(`SELECT id, group_id, inviter_id, invitee_id, created_at FROM group_invitations WHERE invitee_id = ?`, clawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.GroupInvitation
	for rows.Next() {
		var inv storage.GroupInvitation
		if err := rows.Scan(&inv.ID, &inv.GroupID, &inv.InviterID, &inv.InviteeID, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
