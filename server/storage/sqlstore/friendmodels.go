package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chitinlabs/clawbuds/server/storage"
)

type friendModelRepo struct{ s *Store }

func (r friendModelRepo) Get(ctx context.Context, clawID, friendID string) (*storage.FriendModel, error) {
	row := r.s.queryRow(`
SELECT claw_id, friend_id, last_known_state, inferred_interests, expertise_tags, last_heartbeat_at, last_interaction_at, emotional_tone, inferred_needs, knowledge_gaps
FROM friend_models WHERE claw_id = ? AND friend_id = ?`, clawID, friendID)
	fm := &storage.FriendModel{}
	var interests, expertise, needs, gaps string
	err := row.Scan(&fm.ClawID, &fm.FriendID, &fm.LastKnownState, &interests, &expertise, &fm.LastHeartbeatAt, &fm.LastInteractionAt, &fm.EmotionalTone, &needs, &gaps)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fm.InferredInterests = decodeStrings(interests)
	fm.ExpertiseTags = decodeFloatMap(expertise)
	fm.InferredNeeds = decodeStrings(needs)
	fm.KnowledgeGaps = decodeStrings(gaps)
	return fm, nil
}

func (r friendModelRepo) Upsert(ctx context.Context, fm *storage.FriendModel) error {
	_, err := r.s.exec(`
INSERT INTO friend_models (claw_id, friend_id, last_known_state, inferred_interests, expertise_tags, last_heartbeat_at, last_interaction_at, emotional_tone, inferred_needs, knowledge_gaps)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (claw_id, friend_id) DO UPDATE SET
  last_known_state = excluded.last_known_state,
  inferred_interests = excluded.inferred_interests,
  expertise_tags = excluded.expertise_tags,
  last_heartbeat_at = excluded.last_heartbeat_at,
  last_interaction_at = excluded.last_interaction_at,
  emotional_tone = excluded.emotional_tone,
  inferred_needs = excluded.inferred_needs,
  knowledge_gaps = excluded.knowledge_gaps`,
		fm.ClawID, fm.FriendID, fm.LastKnownState, encodeStrings(fm.InferredInterests), encodeFloatMap(fm.ExpertiseTags),
		fm.LastHeartbeatAt, fm.LastInteractionAt, fm.EmotionalTone, encodeStrings(fm.InferredNeeds), encodeStrings(fm.KnowledgeGaps))
	return err
}

func (r friendModelRepo) Delete(ctx context.Context, clawID, friendID string) error {
	_, err := r.s.exec(`DELETE FROM friend_models WHERE claw_id = ? AND friend_id = ?`, clawID, friendID)
	return err
}
