package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type carapaceRepo struct{ s *Store }

// AppendVersion allocates the next strictly increasing version number
// for clawID and inserts the new snapshot in one transaction, mirroring
// the seq allocation pattern used for inbox entries.
func (r carapaceRepo) AppendVersion(ctx context.Context, clawID string, content []byte) (*storage.CarapaceHistory, error) {
	tx, err := r.s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	row := r.s.txQueryRow(tx, `SELECT MAX(version) FROM carapace_history WHERE claw_id = ?`, clawID)
	if err := row.Scan(&maxVersion); err != nil {
		return nil, err
	}
	version := int64(1)
	if maxVersion.Valid {
		version = maxVersion.Int64 + 1
	}
	id := newID()
	now := nowUTC()
	if _, err := r.s.txExec(tx, `
INSERT INTO carapace_history (id, claw_id, version, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, clawID, version, content, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &storage.CarapaceHistory{ID: id, ClawID: clawID, Version: version, Content: content, CreatedAt: now}, nil
}

func (r carapaceRepo) ListVersions(ctx context.Context, clawID string, limit int) ([]storage.CarapaceHistory, error) {
	rows, err := r.s.query(`
SELECT id, claw_id, version, content, created_at FROM carapace_history
WHERE claw_id = ? ORDER BY version DESC LIMIT ?`, clawID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.CarapaceHistory
	for rows.Next() {
		var c storage.CarapaceHistory
		if err := rows.Scan(&c.ID, &c.ClawID, &c.Version, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneKeepNewest deletes every version for clawID except the `keep`
// most recent, returning the number of rows removed.
func (r carapaceRepo) PruneKeepNewest(ctx context.Context, clawID string, keep int) (int64, error) {
	res, err := r.s.exec(`
DELETE FROM carapace_history WHERE claw_id = ? AND id NOT IN (
  SELECT id FROM carapace_history WHERE claw_id = ? ORDER BY version DESC LIMIT ?
)`, clawID, clawID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
