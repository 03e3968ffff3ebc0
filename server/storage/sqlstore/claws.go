package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type clawRepo struct{ s *Store }

func (r clawRepo) Create(ctx context.Context, c *storage.Claw) error {
	_, err := r.s.exec(`
INSERT INTO claws (claw_id, public_key, display_name, bio, status, tags, discoverable, avatar_url, autonomy_level, autonomy_config, notification_preferences, created_at, last_seen_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ClawID, c.PublicKey, c.DisplayName, c.Bio, string(c.Status), encodeStrings(c.Tags), c.Discoverable,
		c.AvatarURL, c.AutonomyLevel, string(c.AutonomyConfig), string(c.NotificationPreferences), c.CreatedAt, c.LastSeenAt)
	if err != nil {
		if r.s.dialect.IsUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r clawRepo) scanClaw(row *sql.Row) (*storage.Claw, error) {
	c := &storage.Claw{}
	var status, tags string
	var autonomyConfig, notifPrefs []byte
	err := row.Scan(&c.ClawID, &c.PublicKey, &c.DisplayName, &c.Bio, &status, &tags, &c.Discoverable,
		&c.AvatarURL, &c.AutonomyLevel, &autonomyConfig, &notifPrefs, &c.CreatedAt, &c.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Status = storage.ClawStatus(status)
	c.Tags = decodeStrings(tags)
	c.AutonomyConfig = autonomyConfig
	c.NotificationPreferences = notifPrefs
	return c, nil
}

func (r clawRepo) GetByID(ctx context.Context, clawID string) (*storage.Claw, error) {
	row := r.s.queryRow(`
SELECT claw_id, public_key, display_name, bio, status, tags, discoverable, avatar_url, autonomy_level, autonomy_config, notification_preferences, created_at, last_seen_at
FROM claws WHERE claw_id = ?`, clawID)
	return r.scanClaw(row)
}

func (r clawRepo) GetByPublicKey(ctx context.Context, pub []byte) (*storage.Claw, error) {
	row := r.s.queryRow(`
SELECT claw_id, public_key, display_name, bio, status, tags, discoverable, avatar_url, autonomy_level, autonomy_config, notification_preferences, created_at, last_seen_at
FROM claws WHERE public_key = ?`, pub)
	return r.scanClaw(row)
}

func (r clawRepo) UpdateProfile(ctx context.Context, clawID, displayName, bio, avatarURL string, tags []string, discoverable bool) error {
	res, err := r.s.exec(`UPDATE claws SET display_name = ?, bio = ?, avatar_url = ?, tags = ?, discoverable = ? WHERE claw_id = ?`,
		displayName, bio, avatarURL, encodeStrings(tags), discoverable, clawID)
	return checkUpdated(res, err)
}

func (r clawRepo) UpdateAutonomy(ctx context.Context, clawID string, level int, config []byte) error {
	res, err := r.s.exec(`UPDATE claws SET autonomy_level = ?, autonomy_config = ? WHERE claw_id = ?`, level, string(config), clawID)
	return checkUpdated(res, err)
}

func (r clawRepo) UpdateStatus(ctx context.Context, clawID string, status storage.ClawStatus) error {
	res, err := r.s.exec(`UPDATE claws SET status = ? WHERE claw_id = ?`, string(status), clawID)
	return checkUpdated(res, err)
}

func (r clawRepo) TouchLastSeen(ctx context.Context, clawID string, at time.Time) error {
	res, err := r.s.exec(`UPDATE claws SET last_seen_at = ? WHERE claw_id = ?`, at, clawID)
	return checkUpdated(res, err)
}

func (r clawRepo) ListAllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.s.query(`SELECT claw_id FROM claws`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func checkUpdated(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
