package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type pollRepo struct{ s *Store }

// Vote upserts the UNIQUE(message, claw) ballot, so re-voting changes
// the claw's chosen option instead of adding a second ballot.
func (r pollRepo) Vote(ctx context.Context, v *storage.PollVote) error {
	_, err := r.s.exec(`
INSERT INTO poll_votes (message_id, claw_id, option_id, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (message_id, claw_id) DO UPDATE SET option_id = excluded.option_id, created_at = excluded.created_at`,
		v.MessageID, v.ClawID, v.OptionID, v.CreatedAt)
	return err
}

func (r pollRepo) Tally(ctx context.Context, messageID string) (map[string]int, error) {
	rows, err := r.s.query(`
SELECT option_id, COUNT(*) FROM poll_votes WHERE message_id = ? GROUP BY option_id`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var opt string
		var count int
		if err := rows.Scan(&opt, &count); err != nil {
			return nil, err
		}
		out[opt] = count
	}
	return out, rows.Err()
}

func (r pollRepo) GetVote(ctx context.Context, messageID, clawID string) (*storage.PollVote, error) {
	row := r.s.queryRow(`
SELECT message_id, claw_id, option_id, created_at FROM poll_votes WHERE message_id = ? AND claw_id = ?`, messageID, clawID)
	v := &storage.PollVote{}
	err := row.Scan(&v.MessageID, &v.ClawID, &v.OptionID, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
