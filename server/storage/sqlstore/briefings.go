package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type briefingRepo struct{ s *Store }

func (r briefingRepo) Create(ctx context.Context, b *storage.Briefing) error {
	_, err := r.s.exec(`
INSERT INTO briefings (id, claw_id, type, content, raw_data, generated_at, acknowledged_at)
VALUES (?, ?, ?, ?, ?, ?, NULL)`,
		b.ID, b.ClawID, string(b.Type), b.Content, b.RawData, b.GeneratedAt)
	return err
}

func (r briefingRepo) ListByClaw(ctx context.Context, clawID string, limit int) ([]storage.Briefing, error) {
	rows, err := r.s.query(`
SELECT id, claw_id, type, content, raw_data, generated_at, acknowledged_at
FROM briefings WHERE claw_id = ? ORDER BY generated_at DESC LIMIT ?`, clawID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Briefing
	for rows.Next() {
		var b storage.Briefing
		var typ string
		var ackAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.ClawID, &typ, &b.Content, &b.RawData, &b.GeneratedAt, &ackAt); err != nil {
			return nil, err
		}
		b.Type = storage.BriefingType(typ)
		if ackAt.Valid {
			t := ackAt.Time
			b.AcknowledgedAt = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r briefingRepo) Acknowledge(ctx context.Context, briefingID string, at time.Time) error {
	res, err := r.s.exec(`UPDATE briefings SET acknowledged_at = ? WHERE id = ?`, at, briefingID)
	return checkUpdated(res, err)
}
