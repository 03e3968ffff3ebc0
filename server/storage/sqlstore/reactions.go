package sqlstore

import (
	"context"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type reactionRepo struct{ s *Store }

func (r reactionRepo) Add(ctx context.Context, rx *storage.Reaction) error {
	now := nowUTC()
	_, err := r.s.exec(`
INSERT INTO reactions (message_id, claw_id, emoji, created_at) VALUES (?, ?, ?, ?)`,
		rx.MessageID, rx.ClawID, rx.Emoji, now)
	if err != nil && r.s.dialect.IsUniqueViolation(err) {
		return nil // already reacted with this emoji is a no-op
	}
	return err
}

func (r reactionRepo) Remove(ctx context.Context, messageID, clawID, emoji string) error {
	_, err := r.s.exec(`
DELETE FROM reactions WHERE message_id = ? AND claw_id = ? AND emoji = ?`, messageID, clawID, emoji)
	return err
}

func (r reactionRepo) ListByMessage(ctx context.Context, messageID string) ([]storage.Reaction, error) {
	rows, err := r.s.query(`
SELECT message_id, claw_id, emoji, created_at FROM reactions
WHERE message_id = ? ORDER BY created_at`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Reaction
	for rows.Next() {
		var rx storage.Reaction
		if err := rows.Scan(&rx.MessageID, &rx.ClawID, &rx.Emoji, &rx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rx)
	}
	return out, rows.Err()
}
