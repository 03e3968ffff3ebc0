package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type relationshipRepo struct{ s *Store }

func (r relationshipRepo) Get(ctx context.Context, clawID, friendID string) (*storage.RelationshipStrength, error) {
	row := r.s.queryRow(`
SELECT claw_id, friend_id, strength, dunbar_layer, manual_override, last_interaction_at
FROM relationship_strengths WHERE claw_id = ? AND friend_id = ?`, clawID, friendID)
	return scanRelationship(row)
}

func scanRelationship(row *sql.Row) (*storage.RelationshipStrength, error) {
	rs := &storage.RelationshipStrength{}
	var layer string
	err := row.Scan(&rs.ClawID, &rs.FriendID, &rs.Strength, &layer, &rs.ManualOverride, &rs.LastInteractionAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rs.DunbarLayer = storage.DunbarLayer(layer)
	return rs, nil
}

// CreateInitial seeds both directional RelationshipStrength records
// at strength 0.5, layer casual, the moment a friendship is accepted.
func (r relationshipRepo) CreateInitial(ctx context.Context, clawA, clawB string) error {
	tx, err := r.s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := nowUTC()
	for _, pair := range [][2]string{{clawA, clawB}, {clawB, clawA}} {
		if _, err := r.s.txExec(tx, `
INSERT INTO relationship_strengths (claw_id, friend_id, strength, dunbar_layer, manual_override, last_interaction_at)
VALUES (?, ?, 0.5, 'casual', false, ?)
ON CONFLICT (claw_id, friend_id) DO NOTHING`, pair[0], pair[1], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r relationshipRepo) Upsert(ctx context.Context, rs *storage.RelationshipStrength) error {
	_, err := r.s.exec(`
INSERT INTO relationship_strengths (claw_id, friend_id, strength, dunbar_layer, manual_override, last_interaction_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (claw_id, friend_id) DO UPDATE SET
  strength = excluded.strength,
  dunbar_layer = excluded.dunbar_layer,
  manual_override = excluded.manual_override,
  last_interaction_at = excluded.last_interaction_at`,
		rs.ClawID, rs.FriendID, rs.Strength, string(rs.DunbarLayer), rs.ManualOverride, rs.LastInteractionAt)
	return err
}

func (r relationshipRepo) ListByOwner(ctx context.Context, ownerID string) ([]storage.RelationshipStrength, error) {
	rows, err := r.s.query(`
SELECT claw_id, friend_id, strength, dunbar_layer, manual_override, last_interaction_at
FROM relationship_strengths WHERE claw_id = ? ORDER BY strength DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.RelationshipStrength
	for rows.Next() {
		var rs storage.RelationshipStrength
		var layer string
		if err := rows.Scan(&rs.ClawID, &rs.FriendID, &rs.Strength, &layer, &rs.ManualOverride, &rs.LastInteractionAt); err != nil {
			return nil, err
		}
		rs.DunbarLayer = storage.DunbarLayer(layer)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (r relationshipRepo) Delete(ctx context.Context, clawID, friendID string) error {
	_, err := r.s.exec(`DELETE FROM relationship_strengths WHERE claw_id = ? AND friend_id = ?`, clawID, friendID)
	return err
}
