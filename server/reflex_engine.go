// Copyright 2026 The ClawBuds Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// reflexTrigger is the decoded form of Reflex.TriggerConfig: a
// tag-based selector over the incoming event's type and data fields.
type reflexTrigger struct {
	EventType string            `json:"eventType"`
	DataMatch map[string]string `json:"dataMatch,omitempty"`
}

// ReflexEvent is the normalized shape every event-bus payload is
// reduced to before reaching the engine.
type ReflexEvent struct {
	ID     string
	Type   string
	ClawID string
	Data   map[string]string
}

// ReflexEngine matches incoming events against a claw's enabled
// reflexes and records one ReflexExecution per match.
type ReflexEngine struct {
	reflexes storage.ReflexRepository

	mu       sync.Mutex
	seen     map[string]struct{} // (eventID, reflexID) at-most-once guard
	rateUsed map[string]int      // claw|reflex|minute-bucket -> executions this minute
}

func NewReflexEngine(reflexes storage.ReflexRepository) *ReflexEngine {
	return &ReflexEngine{
		reflexes: reflexes,
		seen:     make(map[string]struct{}),
		rateUsed: make(map[string]int),
	}
}

// Handle enumerates ev.ClawID's enabled reflexes, matches triggers
// against ev, and records an execution per match.
func (e *ReflexEngine) Handle(ctx context.Context, ev ReflexEvent) error {
	enabled, err := e.reflexes.ListEnabled(ctx, ev.ClawID)
	if err != nil {
		return err
	}
	for _, rx := range enabled {
		var trig reflexTrigger
		if err := json.Unmarshal(rx.TriggerConfig, &trig); err != nil {
			continue
		}
		if !matches(trig, ev) {
			continue
		}
		if !e.claimOnce(ev.ID, rx.ID) {
			continue
		}
		result := e.decide(rx, time.Now().UTC())
		detail, _ := json.Marshal(ev.Data)
		exec := &storage.ReflexExecution{
			ID:              newRandomID(),
			ReflexID:        rx.ID,
			ClawID:          ev.ClawID,
			EventID:         ev.ID,
			EventType:       ev.Type,
			ExecutionResult: result,
			Detail:          detail,
			CreatedAt:       time.Now().UTC(),
		}
		if err := e.reflexes.RecordExecution(ctx, exec); err != nil {
			return err
		}
	}
	return nil
}

func matches(trig reflexTrigger, ev ReflexEvent) bool {
	if trig.EventType != "" && trig.EventType != ev.Type {
		return false
	}
	for k, v := range trig.DataMatch {
		if ev.Data[k] != v {
			return false
		}
	}
	return true
}

// claimOnce enforces at-most-once execution per (eventID, reflexID)
// within this process.
func (e *ReflexEngine) claimOnce(eventID, reflexID string) bool {
	key := eventID + "|" + reflexID
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.seen[key]; ok {
		return false
	}
	e.seen[key] = struct{}{}
	return true
}

// reflex Behavior conventions recognized by decide. A reflex authored
// without one of these prefixes behaves as "auto" (runs to
// completion). "confirm" reflexes never execute unattended; a
// "rate_limited:N" reflex executes up to N times per claw per minute
// and is blocked by the policy gate past that.
const (
	behaviorConfirm         = "confirm"
	behaviorRateLimitPrefix = "rate_limited:"
)

// decide maps a matched reflex to an outcome. Layer-1 reflexes always
// queue for the external assistant regardless of Behavior, since
// deferral to the assistant takes precedence over any local policy
// gate. Layer-0 reflexes then branch on Behavior: "confirm" reflexes
// require the user to confirm before running and are never executed
// unattended; "rate_limited:N" reflexes are executed up to N times per
// claw per minute and blocked by the policy gate past that; anything
// else runs to completion.
func (e *ReflexEngine) decide(rx storage.Reflex, now time.Time) storage.ExecutionResult {
	if rx.TriggerLayer == storage.TriggerLayer1 {
		return storage.ResultQueuedForL1
	}
	if rx.Behavior == behaviorConfirm {
		return storage.ResultRecommended
	}
	if limit, ok := rateLimitFromBehavior(rx.Behavior); ok {
		if e.claimRateSlot(rx.ClawID, rx.ID, now, limit) {
			return storage.ResultExecuted
		}
		return storage.ResultBlocked
	}
	return storage.ResultExecuted
}

// rateLimitFromBehavior parses the "rate_limited:N" convention.
func rateLimitFromBehavior(behavior string) (int, bool) {
	if !strings.HasPrefix(behavior, behaviorRateLimitPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(behavior, behaviorRateLimitPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// claimRateSlot reports whether (clawID, reflexID) has remaining
// quota in the current UTC minute bucket, consuming one slot if so.
func (e *ReflexEngine) claimRateSlot(clawID, reflexID string, now time.Time, limit int) bool {
	key := clawID + "|" + reflexID + "|" + now.Format("200601021504")
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rateUsed[key] >= limit {
		return false
	}
	e.rateUsed[key]++
	return true
}

// dispatch runs Handle for clawID in a fire-and-forget manner: reflex
// matching must never slow down or fail the request/event path that
// triggered it, so failures are logged-and-dropped the same way the
// outbound webhook dispatcher isolates delivery failures from the
// caller.
func (e *ReflexEngine) dispatch(ctx context.Context, eventID, eventType, clawID string, data map[string]string) {
	_ = e.Handle(ctx, ReflexEvent{ID: eventID, Type: eventType, ClawID: clawID, Data: data})
}

// WireEvents subscribes the engine to every event-bus topic whose
// payload names a claw id directly, so reflex matching never needs an
// extra storage lookup to resolve "whose reflexes does this concern".
// Events whose payload only carries an entity id (pearl.endorsed,
// thread.contribution_added's pearl owner) are left for a future pass
// that resolves the owning claw first, the same gap WebhookService's
// messageOwner lookup closes for reactions and poll votes.
func (e *ReflexEngine) WireEvents(bus *eventbus.Bus) {
	ctx := context.Background()
	bus.OnMessageNew(func(p eventbus.MessageNewPayload) {
		for _, recipient := range p.RecipientIDs {
			e.dispatch(ctx, "message.new:"+p.MessageID, "message.new", recipient, map[string]string{"senderId": p.SenderID})
		}
	})
	bus.OnFriendRequest(func(p eventbus.FriendRequestPayload) {
		e.dispatch(ctx, "friend.request:"+p.RequesterID+":"+p.AccepterID, "friend.request", p.AccepterID, map[string]string{"requesterId": p.RequesterID})
	})
	bus.OnFriendAccepted(func(p eventbus.FriendAcceptedPayload) {
		e.dispatch(ctx, "friend.accepted:"+p.ClawA+":"+p.ClawB, "friend.accepted", p.ClawA, map[string]string{"friendId": p.ClawB})
		e.dispatch(ctx, "friend.accepted:"+p.ClawB+":"+p.ClawA, "friend.accepted", p.ClawB, map[string]string{"friendId": p.ClawA})
	})
	bus.OnGroupInvited(func(p eventbus.GroupInvitedPayload) {
		e.dispatch(ctx, "group.invited:"+p.GroupID+":"+p.InviteeID, "group.invited", p.InviteeID, map[string]string{"groupId": p.GroupID, "inviterId": p.InviterID})
	})
	bus.OnHeartbeatReceived(func(p eventbus.HeartbeatReceivedPayload) {
		e.dispatch(ctx, "heartbeat.received:"+p.FromClawID+":"+p.ToClawID+":"+strconv.FormatBool(p.IsKeepalive), "heartbeat.received", p.ToClawID, map[string]string{"fromClawId": p.FromClawID, "isKeepalive": strconv.FormatBool(p.IsKeepalive)})
	})
	bus.OnRelationshipLayerChanged(func(p eventbus.RelationshipLayerChangedPayload) {
		e.dispatch(ctx, "relationship.layer_changed:"+p.ClawID+":"+p.FriendID, "relationship.layer_changed", p.ClawID, map[string]string{"friendId": p.FriendID, "newLayer": p.NewLayer})
	})
	bus.OnPearlShared(func(p eventbus.PearlSharedPayload) {
		e.dispatch(ctx, "pearl.shared:"+p.PearlID+":"+p.ToID, "pearl.shared", p.ToID, map[string]string{"pearlId": p.PearlID, "fromId": p.FromID})
	})
	bus.OnThreadContributionAdded(func(p eventbus.ThreadContributionAddedPayload) {
		e.dispatch(ctx, "thread.contribution_added:"+p.ThreadID+":"+p.MessageID, "thread.contribution_added", p.ClawID, map[string]string{"contentType": p.ContentType, "pearlRefId": p.PearlRefID})
	})
}

// Suggestion is the output of a pattern analysis: a recommendation a
// claw's owner may act on.
type Suggestion struct {
	ReflexName string
	Kind       string // disable | timing | escalate | allow
	Confidence float64
	Detail     string
}

const maxSuggestions = 3

// Analyze runs the rejection, reading, pearl-routing, and
// Dunbar-coverage pattern analyses over clawID's recent history and
// returns up to maxSuggestions, sorted by confidence descending. The
// grooming analysis needs a per-friend tagged-message count that the
// current message store does not retain and is not wired in here.
func (e *ReflexEngine) Analyze(ctx context.Context, clawID string, briefings storage.BriefingRepository, relations storage.RelationshipRepository, pearls storage.PearlRepository) ([]Suggestion, error) {
	now := time.Now().UTC()
	var out []Suggestion

	rejection, err := e.analyzeRejection(ctx, clawID, now)
	if err != nil {
		return nil, err
	}
	out = append(out, rejection...)

	reading, err := e.analyzeReading(ctx, clawID, briefings)
	if err != nil {
		return nil, err
	}
	out = append(out, reading...)

	routing, err := e.analyzePearlRouting(ctx, clawID, pearls)
	if err != nil {
		return nil, err
	}
	out = append(out, routing...)

	dunbar, err := e.analyzeDunbarCoverage(ctx, clawID, relations)
	if err != nil {
		return nil, err
	}
	out = append(out, dunbar...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, nil
}

// analyzePearlRouting proxies endorsement rate as luster: with at
// least 3 pearls, a mean luster >= 0.6 suggests routing more through
// this claw (allow); a mean luster < 0.2 suggests routing away
// (escalate).
func (e *ReflexEngine) analyzePearlRouting(ctx context.Context, clawID string, pearls storage.PearlRepository) ([]Suggestion, error) {
	owned, err := pearls.ListByOwner(ctx, clawID)
	if err != nil {
		return nil, err
	}
	if len(owned) < 3 {
		return nil, nil
	}
	var sum float64
	for _, p := range owned {
		sum += p.Luster
	}
	mean := sum / float64(len(owned))
	switch {
	case mean >= 0.6:
		return []Suggestion{{ReflexName: "pearl_routing", Kind: "allow", Confidence: mean, Detail: "high mean luster"}}, nil
	case mean < 0.2:
		return []Suggestion{{ReflexName: "pearl_routing", Kind: "escalate", Confidence: 1 - mean, Detail: "low mean luster"}}, nil
	default:
		return nil, nil
	}
}

// analyzeRejection: a reflex with >=5 total attempts in 7 days and a
// blocked rate > 80% suggests disabling it.
func (e *ReflexEngine) analyzeRejection(ctx context.Context, clawID string, now time.Time) ([]Suggestion, error) {
	stats, err := e.reflexes.Stats(ctx, clawID, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, err
	}
	var out []Suggestion
	for name, st := range stats {
		if st.Total < 5 {
			continue
		}
		blockedRate := float64(st.Blocked) / float64(st.Total)
		if blockedRate > 0.8 {
			conf := blockedRate
			if conf > 0.9 {
				conf = 0.9
			}
			out = append(out, Suggestion{ReflexName: name, Kind: "disable", Confidence: conf})
		}
	}
	return out, nil
}

// analyzeReading: across the last 14 daily briefings, if >=5 were
// acknowledged and the modal acknowledgement hour differs from 20:00
// by more than an hour, suggest retiming.
func (e *ReflexEngine) analyzeReading(ctx context.Context, clawID string, briefings storage.BriefingRepository) ([]Suggestion, error) {
	recent, err := briefings.ListByClaw(ctx, clawID, 14)
	if err != nil {
		return nil, err
	}
	hourCounts := map[int]int{}
	acked := 0
	for _, b := range recent {
		if b.AcknowledgedAt == nil {
			continue
		}
		acked++
		hourCounts[b.AcknowledgedAt.UTC().Hour()]++
	}
	if acked < 5 {
		return nil, nil
	}
	modalHour, modalCount := 20, 0
	for h, c := range hourCounts {
		if c > modalCount {
			modalHour, modalCount = h, c
		}
	}
	diff := modalHour - 20
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return nil, nil
	}
	conf := float64(modalCount) / float64(acked)
	return []Suggestion{{ReflexName: "briefing_timing", Kind: "timing", Confidence: conf, Detail: "preferred hour differs from default"}}, nil
}

// analyzeDunbarCoverage: a saturated core layer or an overlarge casual
// layer each surface an allow suggestion (accept the engine's own
// layer-management recommendation).
func (e *ReflexEngine) analyzeDunbarCoverage(ctx context.Context, clawID string, relations storage.RelationshipRepository) ([]Suggestion, error) {
	rels, err := relations.ListByOwner(ctx, clawID)
	if err != nil {
		return nil, err
	}
	var core, casual int
	for _, r := range rels {
		switch r.DunbarLayer {
		case storage.LayerCore:
			core++
		case storage.LayerCasual:
			casual++
		}
	}
	var out []Suggestion
	if core >= 5 {
		out = append(out, Suggestion{ReflexName: "dunbar_coverage", Kind: "allow", Confidence: 0.7, Detail: "core layer at capacity"})
	}
	if casual > 100 {
		out = append(out, Suggestion{ReflexName: "dunbar_coverage", Kind: "allow", Confidence: 0.7, Detail: "casual layer oversized"})
	}
	return out, nil
}
