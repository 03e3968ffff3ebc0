package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type trustRepo struct{ s *Store }

func (r trustRepo) Get(ctx context.Context, ownerID, subjectID, domain string) (*storage.TrustScore, error) {
	row := r.s.queryRow(`
SELECT owner_id, subject_id, domain, h, q, composite, n, updated_at
FROM trust_scores WHERE owner_id = ? AND subject_id = ? AND domain = ?`, ownerID, subjectID, domain)
	ts := &storage.TrustScore{}
	err := row.Scan(&ts.OwnerID, &ts.SubjectID, &ts.Domain, &ts.H, &ts.Q, &ts.Composite, &ts.N, &ts.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ts, nil
}

func (r trustRepo) Upsert(ctx context.Context, ts *storage.TrustScore) error {
	_, err := r.s.exec(`
INSERT INTO trust_scores (owner_id, subject_id, domain, h, q, composite, n, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (owner_id, subject_id, domain) DO UPDATE SET
  h = excluded.h,
  q = excluded.q,
  composite = excluded.composite,
  n = excluded.n,
  updated_at = excluded.updated_at`,
		ts.OwnerID, ts.SubjectID, ts.Domain, ts.H, ts.Q, ts.Composite, ts.N, ts.UpdatedAt)
	return err
}
