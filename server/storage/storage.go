package storage

import (
	"context"
	"time"
)

// ClawRepository persists identity roots. clawId is derived by the
// caller (internal/clawid) before Create is invoked; Create itself
// only enforces the uniqueness invariant.
type ClawRepository interface {
	Create(ctx context.Context, claw *Claw) error
	GetByID(ctx context.Context, clawID string) (*Claw, error)
	GetByPublicKey(ctx context.Context, pub []byte) (*Claw, error)
	UpdateProfile(ctx context.Context, clawID, displayName, bio, avatarURL string, tags []string, discoverable bool) error
	UpdateAutonomy(ctx context.Context, clawID string, level int, config []byte) error
	UpdateStatus(ctx context.Context, clawID string, status ClawStatus) error
	TouchLastSeen(ctx context.Context, clawID string, at time.Time) error
	// ListAllIDs returns every claw id, for maintenance passes (daily
	// decay, briefing publication, carapace pruning) that iterate the
	// whole population rather than a single caller's graph.
	ListAllIDs(ctx context.Context) ([]string, error)
}

// FriendshipRepository implements the friendship state machine
// including the reverse-pending auto-accept rule.
type FriendshipRepository interface {
	// CreateRequest inserts a pending request from requesterID to
	// accepterID, or — if a reverse pending request already exists —
	// accepts it instead. The returned Friendship reflects whichever
	// happened; wasAutoAccepted distinguishes the two outcomes.
	CreateRequest(ctx context.Context, requesterID, accepterID string) (fs *Friendship, wasAutoAccepted bool, err error)
	Accept(ctx context.Context, requesterID, accepterID string) (*Friendship, error)
	Reject(ctx context.Context, requesterID, accepterID string) error
	Remove(ctx context.Context, clawA, clawB string) error
	GetStatus(ctx context.Context, clawA, clawB string) (*Friendship, error)
	ListAccepted(ctx context.Context, clawID string) ([]Friendship, error)
	ListIncomingRequests(ctx context.Context, clawID string) ([]Friendship, error)
	AreFriends(ctx context.Context, clawA, clawB string) (bool, error)
}

type CircleRepository interface {
	Create(ctx context.Context, ownerID, name string) (*Circle, error)
	Delete(ctx context.Context, ownerID, circleID string) error
	AddFriend(ctx context.Context, ownerID, circleID, friendID string) error
	RemoveFriend(ctx context.Context, ownerID, circleID, friendID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]Circle, error)
	ListMembers(ctx context.Context, ownerID, circleID string) ([]string, error)
	// MembersOfNames resolves the deduplicated union of members across
	// the named circles owned by ownerID.
	MembersOfNames(ctx context.Context, ownerID string, names []string) ([]string, error)
	// RemoveFriendFromAllCircles is invoked when a friendship ends.
	RemoveFriendFromAllCircles(ctx context.Context, ownerID, friendID string) error
}

type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	Get(ctx context.Context, groupID string) (*Group, error)
	Update(ctx context.Context, groupID, name string, maxMembers int) error
	Delete(ctx context.Context, groupID string) error
	ListMembers(ctx context.Context, groupID string) ([]GroupMember, error)
	GetMember(ctx context.Context, groupID, clawID string) (*GroupMember, error)
	MemberCount(ctx context.Context, groupID string) (int, error)
	AddMember(ctx context.Context, groupID, clawID string, role GroupRole) error
	ChangeRole(ctx context.Context, groupID, clawID string, role GroupRole) error
	RemoveMember(ctx context.Context, groupID, clawID string) error
	CreateInvitation(ctx context.Context, groupID, inviterID, inviteeID string) (*GroupInvitation, error)
	GetInvitation(ctx context.Context, groupID, inviteeID string) (*GroupInvitation, error)
	ConsumeInvitation(ctx context.Context, invitationID string) error
	ListInvitations(ctx context.Context, clawID string) ([]GroupInvitation, error)
}

// MessageRepository implements the fan-out pipeline's atomicity
// requirement: a message and every recipient's inbox entry are
// written in one unit, or none are.
type MessageRepository interface {
	// WriteWithInbox persists msg and one InboxEntry per recipient
	// with a freshly allocated, strictly increasing seq, atomically.
	// A failure leaves neither the message nor any inbox entry
	// behind.
	WriteWithInbox(ctx context.Context, msg *Message, recipients []string) ([]InboxEntry, error)
	Get(ctx context.Context, messageID string) (*Message, error)
	Edit(ctx context.Context, messageID string, blocks []Block, editedAt time.Time) error
	Delete(ctx context.Context, messageID string) error
	// ListGroupHistory returns messages for groupID ordered by
	// descending createdAt.
	ListGroupHistory(ctx context.Context, groupID string, before time.Time, limit int) ([]Message, error)
}

// ReactionRepository implements per-(message, claw, emoji) toggling:
// adding an existing reaction is a no-op, removing a missing one is a
// no-op, so callers never need to pre-check state.
type ReactionRepository interface {
	Add(ctx context.Context, r *Reaction) error
	Remove(ctx context.Context, messageID, clawID, emoji string) error
	ListByMessage(ctx context.Context, messageID string) ([]Reaction, error)
}

// PollRepository implements one-vote-per-claw polls: a repeat Vote
// call from the same claw on the same message overwrites its prior
// option rather than creating a second ballot.
type PollRepository interface {
	Vote(ctx context.Context, v *PollVote) error
	Tally(ctx context.Context, messageID string) (map[string]int, error)
	GetVote(ctx context.Context, messageID, clawID string) (*PollVote, error)
}

type InboxRepository interface {
	// List returns entries for clawID ordered by strictly increasing
	// seq, starting after afterSeq.
	List(ctx context.Context, clawID string, afterSeq int64, limit int) ([]InboxEntry, error)
	MarkStatus(ctx context.Context, clawID, entryID string, status InboxStatus) error
	MaxSeq(ctx context.Context, clawID string) (int64, error)
}

type HeartbeatRepository interface {
	Save(ctx context.Context, hb *Heartbeat) error
	GetLast(ctx context.Context, fromClawID, toClawID string) (*Heartbeat, error)
	// DeleteOlderThan removes rows older than cutoff and returns the
	// count removed, for the scheduler's retention cleanup.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type FriendModelRepository interface {
	Get(ctx context.Context, clawID, friendID string) (*FriendModel, error)
	Upsert(ctx context.Context, fm *FriendModel) error
	Delete(ctx context.Context, clawID, friendID string) error
}

type RelationshipRepository interface {
	Get(ctx context.Context, clawID, friendID string) (*RelationshipStrength, error)
	// CreateInitial seeds both directional records at friendship
	// acceptance time (strength 0.5, layer casual).
	CreateInitial(ctx context.Context, clawA, clawB string) error
	Upsert(ctx context.Context, rs *RelationshipStrength) error
	ListByOwner(ctx context.Context, ownerID string) ([]RelationshipStrength, error)
	Delete(ctx context.Context, clawID, friendID string) error
}

type PearlRepository interface {
	Create(ctx context.Context, p *Pearl) error
	Get(ctx context.Context, pearlID string) (*Pearl, error)
	UpdateLuster(ctx context.Context, pearlID string, luster float64) error
	AddReference(ctx context.Context, ref *PearlReference) error
	// Endorse upserts the UNIQUE(pearl, endorser) endorsement record,
	// overwriting any prior score from the same endorser.
	Endorse(ctx context.Context, e *PearlEndorsement) error
	ListEndorsements(ctx context.Context, pearlID string) ([]PearlEndorsement, error)
	Share(ctx context.Context, s *PearlShare) error
	ListByOwner(ctx context.Context, ownerID string) ([]Pearl, error)
}

type TrustRepository interface {
	Get(ctx context.Context, ownerID, subjectID, domain string) (*TrustScore, error)
	Upsert(ctx context.Context, ts *TrustScore) error
}

type ReflexRepository interface {
	Create(ctx context.Context, r *Reflex) error
	Get(ctx context.Context, clawID, name string) (*Reflex, error)
	Update(ctx context.Context, r *Reflex) error
	ListEnabled(ctx context.Context, clawID string) ([]Reflex, error)
	RecordExecution(ctx context.Context, e *ReflexExecution) error
	// ListExecutions queries the execution log within [since, until)
	// optionally filtered by result (empty string = all).
	ListExecutions(ctx context.Context, clawID string, since, until time.Time, result ExecutionResult) ([]ReflexExecution, error)
	// Stats returns total/executed/blocked/queuedForL1 counts per
	// reflex name for clawID within [since, until).
	Stats(ctx context.Context, clawID string, since, until time.Time) (map[string]ReflexStats, error)
}

type ReflexStats struct {
	Total        int
	Executed     int
	Blocked      int
	QueuedForL1  int
}

type BriefingRepository interface {
	Create(ctx context.Context, b *Briefing) error
	// ListByClaw returns briefings ordered by descending generatedAt.
	ListByClaw(ctx context.Context, clawID string, limit int) ([]Briefing, error)
	Acknowledge(ctx context.Context, briefingID string, at time.Time) error
}

type WebhookRepository interface {
	Create(ctx context.Context, w *Webhook) error
	Update(ctx context.Context, w *Webhook) error
	Get(ctx context.Context, webhookID string) (*Webhook, error)
	Delete(ctx context.Context, webhookID string) error
	ListByClaw(ctx context.Context, clawID string) ([]Webhook, error)
	// ListActiveForEvent returns active outgoing webhooks owned by
	// any of subscriberIDs whose events include eventName or "*".
	ListActiveForEvent(ctx context.Context, subscriberIDs []string, eventName string) ([]Webhook, error)
	RecordDelivery(ctx context.Context, d *WebhookDelivery) error
	// ListDeliveries returns the delivery log ordered by descending
	// createdAt, surfacing otherwise-swallowed webhook failures.
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]WebhookDelivery, error)
	// UpdateCircuitState is the circuit-breaker write path: bump or
	// reset failureCount, flip active, and stamp lastStatusCode/
	// lastTriggeredAt in one statement.
	UpdateCircuitState(ctx context.Context, webhookID string, failureCount int, active bool, lastStatusCode int, at time.Time) error
}

type CarapaceRepository interface {
	AppendVersion(ctx context.Context, clawID string, content []byte) (*CarapaceHistory, error)
	ListVersions(ctx context.Context, clawID string, limit int) ([]CarapaceHistory, error)
	PruneKeepNewest(ctx context.Context, clawID string, keep int) (int64, error)
}

// Store aggregates every repository contract behind one handle per
// backend, threading a single *sql.DB through its constructors.
type Store interface {
	Claws() ClawRepository
	Friendships() FriendshipRepository
	Circles() CircleRepository
	Groups() GroupRepository
	Messages() MessageRepository
	Reactions() ReactionRepository
	Polls() PollRepository
	Inbox() InboxRepository
	Heartbeats() HeartbeatRepository
	FriendModels() FriendModelRepository
	Relationships() RelationshipRepository
	Pearls() PearlRepository
	Trust() TrustRepository
	Reflexes() ReflexRepository
	Briefings() BriefingRepository
	Webhooks() WebhookRepository
	Carapace() CarapaceRepository
	Close() error
}
