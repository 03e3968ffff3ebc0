// Package eventbus is an in-process typed publish/subscribe bus, one
// method per event name rather than a single Subscribe(topic string,
// handler func(any)) — the generic "duck-typed listener" shape lets a
// handler registered for one event accidentally get called with
// another event's payload, which only surfaces when a live message
// happens to have the wrong shape. A method per event makes that a
// compile error instead.
package eventbus

import "time"

type MessageNewPayload struct {
	MessageID    string
	SenderID     string
	RecipientIDs []string
	Payload      []byte
}

type MessageEditedPayload struct {
	MessageID string
	EditedAt  time.Time
}

type MessageDeletedPayload struct {
	MessageID string
}

type ReactionAddedPayload struct {
	MessageID string
	ClawID    string
	Emoji     string
}

type ReactionRemovedPayload struct {
	MessageID string
	ClawID    string
	Emoji     string
}

type PollVotedPayload struct {
	MessageID string
	ClawID    string
	OptionID  string
}

type FriendRequestPayload struct {
	RequesterID string
	AccepterID  string
}

type FriendAcceptedPayload struct {
	ClawA string
	ClawB string
}

type GroupInvitedPayload struct {
	GroupID   string
	InviterID string
	InviteeID string
}

type GroupJoinedPayload struct {
	GroupID string
	ClawID  string
}

type GroupLeftPayload struct {
	GroupID string
	ClawID  string
}

type GroupRemovedPayload struct {
	GroupID string
	ClawID  string
	ByID    string
}

type E2EEKeyUpdatedPayload struct {
	ClawID    string
	KeyID     string
	UpdatedAt time.Time
}

type HeartbeatReceivedPayload struct {
	FromClawID  string
	ToClawID    string
	IsKeepalive bool
}

type RelationshipLayerChangedPayload struct {
	ClawID      string
	FriendID    string
	OldLayer    string
	NewLayer    string
}

type PearlEndorsedPayload struct {
	PearlID    string
	EndorserID string
	Score      float64
}

type PearlSharedPayload struct {
	PearlID string
	FromID  string
	ToID    string
}

// ThreadContributionAddedPayload fires for any reply/contribution to
// a thread. ContentType/PearlRefID let a subscriber decide whether the
// contribution references a pearl worth a luster recompute.
type ThreadContributionAddedPayload struct {
	ThreadID    string
	MessageID   string
	ClawID      string
	ContentType string
	PearlRefID  string
}
