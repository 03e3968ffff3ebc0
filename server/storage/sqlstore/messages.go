package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type messageRepo struct{ s *Store }

// WriteWithInbox persists the message and one InboxEntry per
// recipient, with a freshly allocated per-recipient seq, inside a
// single transaction spanning both tables. Any failure (including a
// forced abort partway through the recipient loop) rolls back the
// message insert too, so no orphan Message is ever left behind.
func (r messageRepo) WriteWithInbox(ctx context.Context, msg *storage.Message, recipients []string) ([]storage.InboxEntry, error) {
	tx, err := r.s.begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := r.s.txExec(tx, `
INSERT INTO messages (id, from_claw_id, visibility, group_id, reply_to, content_warning, created_at, edited_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		msg.ID, msg.FromClawID, string(msg.Visibility), nullIfEmpty(msg.GroupID), nullIfEmpty(msg.ReplyTo), msg.ContentWarning, msg.CreatedAt); err != nil {
		return nil, err
	}
	for i, b := range msg.Blocks {
		if _, err := r.s.txExec(tx, `INSERT INTO message_blocks (message_id, position, tag, data) VALUES (?, ?, ?, ?)`,
			msg.ID, i, b.Tag, b.Data); err != nil {
			return nil, err
		}
	}

	entries := make([]storage.InboxEntry, 0, len(recipients))
	for _, recipientID := range recipients {
		var maxSeq sql.NullInt64
		row := r.s.txQueryRow(tx, `SELECT MAX(seq) FROM inbox_entries WHERE recipient_id = ?`, recipientID)
		if err := row.Scan(&maxSeq); err != nil {
			return nil, err
		}
		seq := int64(1)
		if maxSeq.Valid {
			seq = maxSeq.Int64 + 1
		}
		id := newID()
		now := nowUTC()
		if _, err := r.s.txExec(tx, `
INSERT INTO inbox_entries (id, recipient_id, message_id, seq, status, created_at) VALUES (?, ?, ?, ?, 'unread', ?)`,
			id, recipientID, msg.ID, seq, now); err != nil {
			return nil, err
		}
		entries = append(entries, storage.InboxEntry{ID: id, RecipientID: recipientID, MessageID: msg.ID, Seq: seq, Status: storage.InboxUnread, CreatedAt: now})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r messageRepo) Get(ctx context.Context, messageID string) (*storage.Message, error) {
	row := r.s.queryRow(`
SELECT id, from_claw_id, visibility, group_id, reply_to, content_warning, created_at, edited_at
FROM messages WHERE id = ?`, messageID)
	m := &storage.Message{}
	var visibility string
	var groupID, replyTo sql.NullString
	var editedAt sql.NullTime
	err := row.Scan(&m.ID, &m.FromClawID, &visibility, &groupID, &replyTo, &m.ContentWarning, &m.CreatedAt, &editedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Visibility = storage.Visibility(visibility)
	m.GroupID = groupID.String
	m.ReplyTo = replyTo.String
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	blocks, err := r.blocksFor(messageID)
	if err != nil {
		return nil, err
	}
	m.Blocks = blocks
	return m, nil
}

func (r messageRepo) blocksFor(messageID string) ([]storage.Block, error) {
	rows, err := r.s.query(`SELECT tag, data FROM message_blocks WHERE message_id = ? ORDER BY position`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Block
	for rows.Next() {
		var b storage.Block
		if err := rows.Scan(&b.Tag, &b.Data); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r messageRepo) Edit(ctx context.Context, messageID string, blocks []storage.Block, editedAt time.Time) error {
	tx, err := r.s.begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := r.s.txExec(tx, `DELETE FROM message_blocks WHERE message_id = ?`, messageID); err != nil {
		return err
	}
	for i, b := range blocks {
		if _, err := r.s.txExec(tx, `INSERT INTO message_blocks (message_id, position, tag, data) VALUES (?, ?, ?, ?)`,
			messageID, i, b.Tag, b.Data); err != nil {
			return err
		}
	}
	res, err := r.s.txExec(tx, `UPDATE messages SET edited_at = ? WHERE id = ?`, editedAt, messageID)
	if err := checkUpdated(res, err); err != nil {
		return err
	}
	return tx.Commit()
}

func (r messageRepo) Delete(ctx context.Context, messageID string) error {
	res, err := r.s.exec(`DELETE FROM messages WHERE id = ?`, messageID)
	return checkUpdated(res, err)
}

func (r messageRepo) ListGroupHistory(ctx context.Context, groupID string, before time.Time, limit int) ([]storage.Message, error) {
	rows, err := r.s.query(`
SELECT id FROM messages WHERE group_id = ? AND created_at < ? ORDER BY created_at DESC LIMIT ?`, groupID, before, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]storage.Message, 0, len(ids))
	for _, id := range ids {
		m, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type inboxRepo struct{ s *Store }

func (r inboxRepo) List(ctx context.Context, clawID string, afterSeq int64, limit int) ([]storage.InboxEntry, error) {
	rows, err := r.s.query(`
SELECT id, recipient_id, message_id, seq, status, created_at
FROM inbox_entries WHERE recipient_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`, clawID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.InboxEntry
	for rows.Next() {
		var e storage.InboxEntry
		var status string
		if err := rows.Scan(&e.ID, &e.RecipientID, &e.MessageID, &e.Seq, &status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = storage.InboxStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r inboxRepo) MarkStatus(ctx context.Context, clawID, entryID string, status storage.InboxStatus) error {
	res, err := r.s.exec(`UPDATE inbox_entries SET status = ? WHERE id = ? AND recipient_id = ?`, string(status), entryID, clawID)
	return checkUpdated(res, err)
}

func (r inboxRepo) MaxSeq(ctx context.Context, clawID string) (int64, error) {
	var max sql.NullInt64
	if err := r.s.queryRow(`SELECT MAX(seq) FROM inbox_entries WHERE recipient_id = ?`, clawID).Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64, nil
}
