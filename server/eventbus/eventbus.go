package eventbus

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// topic is a mutex-guarded list of handlers for one payload type T,
// generic over the event's payload so every event kind can share the
// same subscribe/publish bookkeeping.
type topic[T any] struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	handlers map[int]func(T)
	nextID   int
}

func newTopic[T any](logger *zap.Logger) *topic[T] {
	return &topic[T]{logger: logger, handlers: make(map[int]func(T))}
}

func (t *topic[T]) subscribe(h func(T)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers[id] = h
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.handlers, id)
		t.mu.Unlock()
	}
}

// publish invokes every handler synchronously and in subscription
// order, isolating each call with recover so one panicking subscriber
// cannot prevent its siblings from running.
func (t *topic[T]) publish(payload T) {
	t.mu.RLock()
	ids := make([]int, 0, len(t.handlers))
	for id := range t.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, t.handlers[id])
	}
	t.mu.RUnlock()

	for _, h := range handlers {
		t.runIsolated(h, payload)
	}
}

func (t *topic[T]) runIsolated(h func(T), payload T) {
	defer func() {
		if r := recover(); r != nil && t.logger != nil {
			t.logger.Error("event subscriber panicked", zap.Any("recover", r))
		}
	}()
	h(payload)
}

// Bus is the process-wide typed publisher. No durability: a restart
// drops whatever was mid-flight.
type Bus struct {
	messageNew               *topic[MessageNewPayload]
	messageEdited            *topic[MessageEditedPayload]
	messageDeleted           *topic[MessageDeletedPayload]
	reactionAdded            *topic[ReactionAddedPayload]
	reactionRemoved          *topic[ReactionRemovedPayload]
	pollVoted                *topic[PollVotedPayload]
	friendRequest            *topic[FriendRequestPayload]
	friendAccepted           *topic[FriendAcceptedPayload]
	groupInvited             *topic[GroupInvitedPayload]
	groupJoined              *topic[GroupJoinedPayload]
	groupLeft                *topic[GroupLeftPayload]
	groupRemoved             *topic[GroupRemovedPayload]
	e2eeKeyUpdated           *topic[E2EEKeyUpdatedPayload]
	heartbeatReceived        *topic[HeartbeatReceivedPayload]
	relationshipLayerChanged *topic[RelationshipLayerChangedPayload]
	pearlEndorsed            *topic[PearlEndorsedPayload]
	pearlShared              *topic[PearlSharedPayload]
	threadContributionAdded  *topic[ThreadContributionAddedPayload]
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		messageNew:               newTopic[MessageNewPayload](logger),
		messageEdited:            newTopic[MessageEditedPayload](logger),
		messageDeleted:           newTopic[MessageDeletedPayload](logger),
		reactionAdded:            newTopic[ReactionAddedPayload](logger),
		reactionRemoved:          newTopic[ReactionRemovedPayload](logger),
		pollVoted:                newTopic[PollVotedPayload](logger),
		friendRequest:            newTopic[FriendRequestPayload](logger),
		friendAccepted:           newTopic[FriendAcceptedPayload](logger),
		groupInvited:             newTopic[GroupInvitedPayload](logger),
		groupJoined:              newTopic[GroupJoinedPayload](logger),
		groupLeft:                newTopic[GroupLeftPayload](logger),
		groupRemoved:             newTopic[GroupRemovedPayload](logger),
		e2eeKeyUpdated:           newTopic[E2EEKeyUpdatedPayload](logger),
		heartbeatReceived:        newTopic[HeartbeatReceivedPayload](logger),
		relationshipLayerChanged: newTopic[RelationshipLayerChangedPayload](logger),
		pearlEndorsed:            newTopic[PearlEndorsedPayload](logger),
		pearlShared:              newTopic[PearlSharedPayload](logger),
		threadContributionAdded:  newTopic[ThreadContributionAddedPayload](logger),
	}
}

func (b *Bus) OnMessageNew(h func(MessageNewPayload)) (unsubscribe func()) { return b.messageNew.subscribe(h) }
func (b *Bus) PublishMessageNew(p MessageNewPayload)                      { b.messageNew.publish(p) }

func (b *Bus) OnMessageEdited(h func(MessageEditedPayload)) (unsubscribe func()) {
	return b.messageEdited.subscribe(h)
}
func (b *Bus) PublishMessageEdited(p MessageEditedPayload) { b.messageEdited.publish(p) }

func (b *Bus) OnMessageDeleted(h func(MessageDeletedPayload)) (unsubscribe func()) {
	return b.messageDeleted.subscribe(h)
}
func (b *Bus) PublishMessageDeleted(p MessageDeletedPayload) { b.messageDeleted.publish(p) }

func (b *Bus) OnReactionAdded(h func(ReactionAddedPayload)) (unsubscribe func()) {
	return b.reactionAdded.subscribe(h)
}
func (b *Bus) PublishReactionAdded(p ReactionAddedPayload) { b.reactionAdded.publish(p) }

func (b *Bus) OnReactionRemoved(h func(ReactionRemovedPayload)) (unsubscribe func()) {
	return b.reactionRemoved.subscribe(h)
}
func (b *Bus) PublishReactionRemoved(p ReactionRemovedPayload) { b.reactionRemoved.publish(p) }

func (b *Bus) OnPollVoted(h func(PollVotedPayload)) (unsubscribe func()) { return b.pollVoted.subscribe(h) }
func (b *Bus) PublishPollVoted(p PollVotedPayload)                      { b.pollVoted.publish(p) }

func (b *Bus) OnFriendRequest(h func(FriendRequestPayload)) (unsubscribe func()) {
	return b.friendRequest.subscribe(h)
}
func (b *Bus) PublishFriendRequest(p FriendRequestPayload) { b.friendRequest.publish(p) }

func (b *Bus) OnFriendAccepted(h func(FriendAcceptedPayload)) (unsubscribe func()) {
	return b.friendAccepted.subscribe(h)
}
func (b *Bus) PublishFriendAccepted(p FriendAcceptedPayload) { b.friendAccepted.publish(p) }

func (b *Bus) OnGroupInvited(h func(GroupInvitedPayload)) (unsubscribe func()) {
	return b.groupInvited.subscribe(h)
}
func (b *Bus) PublishGroupInvited(p GroupInvitedPayload) { b.groupInvited.publish(p) }

func (b *Bus) OnGroupJoined(h func(GroupJoinedPayload)) (unsubscribe func()) {
	return b.groupJoined.subscribe(h)
}
func (b *Bus) PublishGroupJoined(p GroupJoinedPayload) { b.groupJoined.publish(p) }

func (b *Bus) OnGroupLeft(h func(GroupLeftPayload)) (unsubscribe func()) { return b.groupLeft.subscribe(h) }
func (b *Bus) PublishGroupLeft(p GroupLeftPayload)                      { b.groupLeft.publish(p) }

func (b *Bus) OnGroupRemoved(h func(GroupRemovedPayload)) (unsubscribe func()) {
	return b.groupRemoved.subscribe(h)
}
func (b *Bus) PublishGroupRemoved(p GroupRemovedPayload) { b.groupRemoved.publish(p) }

func (b *Bus) OnE2EEKeyUpdated(h func(E2EEKeyUpdatedPayload)) (unsubscribe func()) {
	return b.e2eeKeyUpdated.subscribe(h)
}
func (b *Bus) PublishE2EEKeyUpdated(p E2EEKeyUpdatedPayload) { b.e2eeKeyUpdated.publish(p) }

func (b *Bus) OnHeartbeatReceived(h func(HeartbeatReceivedPayload)) (unsubscribe func()) {
	return b.heartbeatReceived.subscribe(h)
}
func (b *Bus) PublishHeartbeatReceived(p HeartbeatReceivedPayload) { b.heartbeatReceived.publish(p) }

func (b *Bus) OnRelationshipLayerChanged(h func(RelationshipLayerChangedPayload)) (unsubscribe func()) {
	return b.relationshipLayerChanged.subscribe(h)
}
func (b *Bus) PublishRelationshipLayerChanged(p RelationshipLayerChangedPayload) {
	b.relationshipLayerChanged.publish(p)
}

func (b *Bus) OnPearlEndorsed(h func(PearlEndorsedPayload)) (unsubscribe func()) {
	return b.pearlEndorsed.subscribe(h)
}
func (b *Bus) PublishPearlEndorsed(p PearlEndorsedPayload) { b.pearlEndorsed.publish(p) }

func (b *Bus) OnPearlShared(h func(PearlSharedPayload)) (unsubscribe func()) {
	return b.pearlShared.subscribe(h)
}
func (b *Bus) PublishPearlShared(p PearlSharedPayload) { b.pearlShared.publish(p) }

func (b *Bus) OnThreadContributionAdded(h func(ThreadContributionAddedPayload)) (unsubscribe func()) {
	return b.threadContributionAdded.subscribe(h)
}
func (b *Bus) PublishThreadContributionAdded(p ThreadContributionAddedPayload) {
	b.threadContributionAdded.publish(p)
}
