package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type webhookRepo struct{ s *Store }

func (r webhookRepo) Create(ctx context.Context, w *storage.Webhook) error {
	_, err := r.s.exec(`
INSERT INTO webhooks (id, claw_id, type, name, url, secret, events, active, failure_count, last_status_code, last_triggered_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, NULL, ?)`,
		w.ID, w.ClawID, string(w.Type), w.Name, w.URL, w.Secret, encodeStrings(w.Events), w.Active, w.CreatedAt)
	return err
}

func (r webhookRepo) Update(ctx context.Context, w *storage.Webhook) error {
	res, err := r.s.exec(`
UPDATE webhooks SET name = ?, url = ?, secret = ?, events = ?, active = ? WHERE id = ?`,
		w.Name, w.URL, w.Secret, encodeStrings(w.Events), w.Active, w.ID)
	return checkUpdated(res, err)
}

func scanWebhook(row *sql.Row) (*storage.Webhook, error) {
	w := &storage.Webhook{}
	var typ, events string
	var lastTriggered sql.NullTime
	err := row.Scan(&w.ID, &w.ClawID, &typ, &w.Name, &w.URL, &w.Secret, &events, &w.Active, &w.FailureCount, &w.LastStatusCode, &lastTriggered, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.Type = storage.WebhookType(typ)
	w.Events = decodeStrings(events)
	if lastTriggered.Valid {
		t := lastTriggered.Time
		w.LastTriggeredAt = &t
	}
	return w, nil
}

func (r webhookRepo) Get(ctx context.Context, webhookID string) (*storage.Webhook, error) {
	row := r.s.queryRow(`
SELECT id, claw_id, type, name, url, secret, events, active, failure_count, last_status_code, last_triggered_at, created_at
FROM webhooks WHERE id = ?`, webhookID)
	return scanWebhook(row)
}

func (r webhookRepo) Delete(ctx context.Context, webhookID string) error {
	res, err := r.s.exec(`DELETE FROM webhooks WHERE id = ?`, webhookID)
	return checkUpdated(res, err)
}

func (r webhookRepo) ListByClaw(ctx context.Context, clawID string) ([]storage.Webhook, error) {
	rows, err := r.s.query(`
SELECT id, claw_id, type, name, url, secret, events, active, failure_count, last_status_code, last_triggered_at, created_at
FROM webhooks WHERE claw_id = ?`, clawID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWebhookRows(rows)
}

func scanWebhookRows(rows *sql.Rows) ([]storage.Webhook, error) {
	var out []storage.Webhook
	for rows.Next() {
		var w storage.Webhook
		var typ, events string
		var lastTriggered sql.NullTime
		if err := rows.Scan(&w.ID, &w.ClawID, &typ, &w.Name, &w.URL, &w.Secret, &events, &w.Active, &w.FailureCount, &w.LastStatusCode, &lastTriggered, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Type = storage.WebhookType(typ)
		w.Events = decodeStrings(events)
		if lastTriggered.Valid {
			t := lastTriggered.Time
			w.LastTriggeredAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListActiveForEvent fetches active outgoing webhooks owned by any of
// subscriberIDs and filters in Go for an events list containing
// eventName or the wildcard "*", since the events column is opaque
// JSON at the storage boundary.
func (r webhookRepo) ListActiveForEvent(ctx context.Context, subscriberIDs []string, eventName string) ([]storage.Webhook, error) {
	if len(subscriberIDs) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := []interface{}{}
	for i, id := range subscriberIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, id)
	}
	args = append(args, string(storage.WebhookOutgoing), true)
	rows, err := r.s.query(`
SELECT id, claw_id, type, name, url, secret, events, active, failure_count, last_status_code, last_triggered_at, created_at
FROM webhooks WHERE claw_id IN (`+placeholders+`) AND type = ? AND active = ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := scanWebhookRows(rows)
	if err != nil {
		return nil, err
	}
	var out []storage.Webhook
	for _, w := range all {
		for _, e := range w.Events {
			if e == eventName || e == "*" {
				out = append(out, w)
				break
			}
		}
	}
	return out, nil
}

func (r webhookRepo) RecordDelivery(ctx context.Context, d *storage.WebhookDelivery) error {
	_, err := r.s.exec(`
INSERT INTO webhook_deliveries (id, webhook_id, event, attempt, outcome, status_code, response_body, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.WebhookID, d.Event, d.Attempt, string(d.Outcome), d.StatusCode, d.ResponseBody, d.Error, d.CreatedAt)
	return err
}

func (r webhookRepo) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]storage.WebhookDelivery, error) {
	rows, err := r.s.query(`
SELECT id, webhook_id, event, attempt, outcome, status_code, response_body, error, created_at
FROM webhook_deliveries WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.WebhookDelivery
	for rows.Next() {
		var d storage.WebhookDelivery
		var outcome string
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Event, &d.Attempt, &outcome, &d.StatusCode, &d.ResponseBody, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Outcome = storage.DeliveryOutcome(outcome)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r webhookRepo) UpdateCircuitState(ctx context.Context, webhookID string, failureCount int, active bool, lastStatusCode int, at time.Time) error {
	res, err := r.s.exec(`
UPDATE webhooks SET failure_count = ?, active = ?, last_status_code = ?, last_triggered_at = ? WHERE id = ?`,
		failureCount, active, lastStatusCode, at, webhookID)
	return checkUpdated(res, err)
}
