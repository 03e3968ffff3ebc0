package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type heartbeatRepo struct{ s *Store }

func (r heartbeatRepo) Save(ctx context.Context, hb *storage.Heartbeat) error {
	_, err := r.s.exec(`
INSERT INTO heartbeats (id, from_claw_id, to_claw_id, interests, availability, recent_topics, is_keepalive, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		hb.ID, hb.FromClawID, hb.ToClawID, encodeStrings(hb.Interests), hb.Availability, encodeStrings(hb.RecentTopics), hb.IsKeepalive, hb.CreatedAt)
	return err
}

func (r heartbeatRepo) GetLast(ctx context.Context, fromClawID, toClawID string) (*storage.Heartbeat, error) {
	row := r.s.queryRow(`
SELECT id, from_claw_id, to_claw_id, interests, availability, recent_topics, is_keepalive, created_at
FROM heartbeats WHERE from_claw_id = ? AND to_claw_id = ? AND is_keepalive = ?
ORDER BY created_at DESC LIMIT 1`, fromClawID, toClawID, false)
	hb := &storage.Heartbeat{}
	var interests, topics string
	err := row.Scan(&hb.ID, &hb.FromClawID, &hb.ToClawID, &interests, &hb.Availability, &topics, &hb.IsKeepalive, &hb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	hb.Interests = decodeStrings(interests)
	hb.RecentTopics = decodeStrings(topics)
	return hb, nil
}

func (r heartbeatRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.s.exec(`DELETE FROM heartbeats WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
