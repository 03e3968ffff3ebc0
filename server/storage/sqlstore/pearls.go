package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type pearlRepo struct{ s *Store }

func (r pearlRepo) Create(ctx context.Context, p *storage.Pearl) error {
	_, err := r.s.exec(`
INSERT INTO pearls (id, owner_id, type, trigger_text, body, context, domain_tags, luster, shareability, origin_type, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, string(p.Type), p.TriggerText, p.Body, p.Context, encodeStrings(p.DomainTags), p.Luster, string(p.Shareability), p.OriginType, p.CreatedAt)
	return err
}

func (r pearlRepo) Get(ctx context.Context, pearlID string) (*storage.Pearl, error) {
	row := r.s.queryRow(`
SELECT id, owner_id, type, trigger_text, body, context, domain_tags, luster, shareability, origin_type, created_at
FROM pearls WHERE id = ?`, pearlID)
	p := &storage.Pearl{}
	var typ, share, tags string
	err := row.Scan(&p.ID, &p.OwnerID, &typ, &p.TriggerText, &p.Body, &p.Context, &tags, &p.Luster, &share, &p.OriginType, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Type = storage.PearlType(typ)
	p.Shareability = storage.Shareability(share)
	p.DomainTags = decodeStrings(tags)
	return p, nil
}

func (r pearlRepo) UpdateLuster(ctx context.Context, pearlID string, luster float64) error {
	res, err := r.s.exec(`UPDATE pearls SET luster = ? WHERE id = ?`, luster, pearlID)
	return checkUpdated(res, err)
}

func (r pearlRepo) AddReference(ctx context.Context, ref *storage.PearlReference) error {
	_, err := r.s.exec(`INSERT INTO pearl_references (id, pearl_id, claw_id, content_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		ref.ID, ref.PearlID, ref.ClawID, ref.ContentID, ref.CreatedAt)
	return err
}

// Endorse upserts the UNIQUE(pearl, endorser) row, so a second
// endorsement from the same claw overwrites the first rather than
// erroring.
func (r pearlRepo) Endorse(ctx context.Context, e *storage.PearlEndorsement) error {
	_, err := r.s.exec(`
INSERT INTO pearl_endorsements (pearl_id, endorser_id, score, comment, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (pearl_id, endorser_id) DO UPDATE SET score = excluded.score, comment = excluded.comment, created_at = excluded.created_at`,
		e.PearlID, e.EndorserID, e.Score, e.Comment, e.CreatedAt)
	return err
}

func (r pearlRepo) ListEndorsements(ctx context.Context, pearlID string) ([]storage.PearlEndorsement, error) {
	rows, err := r.s.query(`SELECT pearl_id, endorser_id, score, comment, created_at FROM pearl_endorsements WHERE pearl_id = ?`, pearlID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.PearlEndorsement
	for rows.Next() {
		var e storage.PearlEndorsement
		if err := rows.Scan(&e.PearlID, &e.EndorserID, &e.Score, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r pearlRepo) Share(ctx context.Context, s *storage.PearlShare) error {
	_, err := r.s.exec(`INSERT INTO pearl_shares (id, pearl_id, from_id, to_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.PearlID, s.FromID, s.ToID, s.CreatedAt)
	return err
}

func (r pearlRepo) ListByOwner(ctx context.Context, ownerID string) ([]storage.Pearl, error) {
	rows, err := r.s.query(`
SELECT id, owner_id, type, trigger_text, body, context, domain_tags, luster, shareability, origin_type, created_at
FROM pearls WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Pearl
	for rows.Next() {
		var p storage.Pearl
		var typ, share, tags string
		if err := rows.Scan(&p.ID, &p.OwnerID, &typ, &p.TriggerText, &p.Body, &p.Context, &tags, &p.Luster, &share, &p.OriginType, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Type = storage.PearlType(typ)
		p.Shareability = storage.Shareability(share)
		p.DomainTags = decodeStrings(tags)
		out = append(out, p)
	}
	return out, rows.Err()
}
