package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type reflexRepo struct{ s *Store }

func (r reflexRepo) Create(ctx context.Context, rx *storage.Reflex) error {
	_, err := r.s.exec(`
INSERT INTO reflexes (id, claw_id, name, value_layer, behavior, trigger_layer, trigger_config, enabled, confidence, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rx.ID, rx.ClawID, rx.Name, rx.ValueLayer, rx.Behavior, int(rx.TriggerLayer), rx.TriggerConfig, rx.Enabled, rx.Confidence, string(rx.Source), rx.CreatedAt)
	return err
}

func scanReflex(row *sql.Row) (*storage.Reflex, error) {
	rx := &storage.Reflex{}
	var layer int8
	var source string
	err := row.Scan(&rx.ID, &rx.ClawID, &rx.Name, &rx.ValueLayer, &rx.Behavior, &layer, &rx.TriggerConfig, &rx.Enabled, &rx.Confidence, &source, &rx.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rx.TriggerLayer = storage.TriggerLayer(layer)
	rx.Source = storage.ReflexSource(source)
	return rx, nil
}

func (r reflexRepo) Get(ctx context.Context, clawID, name string) (*storage.Reflex, error) {
	row := r.s.queryRow(`
SELECT id, claw_id, name, value_layer, behavior, trigger_layer, trigger_config, enabled, confidence, source, created_at
FROM reflexes WHERE claw_id = ? AND name = ?`, clawID, name)
	return scanReflex(row)
}

func (r reflexRepo) Update(ctx context.Context, rx *storage.Reflex) error {
	res, err := r.s.exec(`
UPDATE reflexes SET value_layer = ?, behavior = ?, trigger_layer = ?, trigger_config = ?, enabled = ?, confidence = ?
WHERE id = ?`,
		rx.ValueLayer, rx.Behavior, int(rx.TriggerLayer), rx.TriggerConfig, rx.Enabled, rx.Confidence, rx.ID)
	return checkUpdated(res, err)
}

func (r reflexRepo) ListEnabled(ctx context.Context, clawID string) ([]storage.Reflex, error) {
	rows, err := r.s.query(`
SELECT id, claw_id, name, value_layer, behavior, trigger_layer, trigger_config, enabled, confidence, source, created_at
FROM reflexes WHERE claw_id = ? AND enabled = ?`, clawID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.Reflex
	for rows.Next() {
		var rx storage.Reflex
		var layer int8
		var source string
		if err := rows.Scan(&rx.ID, &rx.ClawID, &rx.Name, &rx.ValueLayer, &rx.Behavior, &layer, &rx.TriggerConfig, &rx.Enabled, &rx.Confidence, &source, &rx.CreatedAt); err != nil {
			return nil, err
		}
		rx.TriggerLayer = storage.TriggerLayer(layer)
		rx.Source = storage.ReflexSource(source)
		out = append(out, rx)
	}
	return out, rows.Err()
}

func (r reflexRepo) RecordExecution(ctx context.Context, e *storage.ReflexExecution) error {
	_, err := r.s.exec(`
INSERT INTO reflex_executions (id, reflex_id, claw_id, event_id, event_type, execution_result, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ReflexID, e.ClawID, e.EventID, e.EventType, string(e.ExecutionResult), e.Detail, e.CreatedAt)
	return err
}

func (r reflexRepo) ListExecutions(ctx context.Context, clawID string, since, until time.Time, result storage.ExecutionResult) ([]storage.ReflexExecution, error) {
	query := `
SELECT id, reflex_id, claw_id, event_id, event_type, execution_result, detail, created_at
FROM reflex_executions WHERE claw_id = ? AND created_at >= ? AND created_at < ?`
	args := []interface{}{clawID, since, until}
	if result != "" {
		query += ` AND execution_result = ?`
		args = append(args, string(result))
	}
	query += ` ORDER BY created_at ASC`
	rows, err := r.s.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []storage.ReflexExecution
	for rows.Next() {
		var e storage.ReflexExecution
		var res string
		if err := rows.Scan(&e.ID, &e.ReflexID, &e.ClawID, &e.EventID, &e.EventType, &res, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ExecutionResult = storage.ExecutionResult(res)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r reflexRepo) Stats(ctx context.Context, clawID string, since, until time.Time) (map[string]storage.ReflexStats, error) {
	rows, err := r.s.query(`
SELECT rx.name, ex.execution_result, COUNT(*)
FROM reflex_executions ex
JOIN reflexes rx ON rx.id = ex.reflex_id
WHERE ex.claw_id = ? AND ex.created_at >= ? AND ex.created_at < ?
GROUP BY rx.name, ex.execution_result`, clawID, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]storage.ReflexStats{}
	for rows.Next() {
		var name, result string
		var count int
		if err := rows.Scan(&name, &result, &count); err != nil {
			return nil, err
		}
		st := out[name]
		st.Total += count
		switch storage.ExecutionResult(result) {
		case storage.ResultExecuted:
			st.Executed += count
		case storage.ResultBlocked:
			st.Blocked += count
		case storage.ResultQueuedForL1:
			st.QueuedForL1 += count
		}
		out[name] = st
	}
	return out, rows.Err()
}
