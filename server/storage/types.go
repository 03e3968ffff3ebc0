// Package storage defines the repository contracts every persistent
// backend (embedded sqlite, hosted Postgres) must satisfy with
// identical semantics.
package storage

import "time"

type ClawStatus string

const (
	ClawActive      ClawStatus = "active"
	ClawSuspended   ClawStatus = "suspended"
	ClawDeactivated ClawStatus = "deactivated"
)

type Claw struct {
	ClawID                   string
	PublicKey                []byte
	DisplayName              string
	Bio                      string
	Status                   ClawStatus
	Tags                     []string
	Discoverable             bool
	AvatarURL                string
	AutonomyLevel            int
	AutonomyConfig           []byte // opaque JSON, decoded at the consumer boundary
	NotificationPreferences  []byte
	CreatedAt                time.Time
	LastSeenAt               time.Time
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

type Friendship struct {
	ID          string
	RequesterID string
	AccepterID  string
	Status      FriendshipStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Circle struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

type GroupType string

const (
	GroupPrivate GroupType = "private"
	GroupPublic  GroupType = "public"
)

type GroupRole string

const (
	RoleOwner  GroupRole = "owner"
	RoleAdmin  GroupRole = "admin"
	RoleMember GroupRole = "member"
)

type Group struct {
	ID         string
	Name       string
	Type       GroupType
	OwnerID    string
	MaxMembers int
	Encrypted  bool
	CreatedAt  time.Time
}

type GroupMember struct {
	GroupID  string
	ClawID   string
	Role     GroupRole
	JoinedAt time.Time
}

type GroupInvitation struct {
	ID        string
	GroupID   string
	InviterID string
	InviteeID string
	CreatedAt time.Time
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityDirect  Visibility = "direct"
	VisibilityCircles Visibility = "circles"
	VisibilityGroup   Visibility = "group"
)

type Block struct {
	Tag  string // text|link|image|code|poll
	Data []byte // opaque JSON payload for the tag
}

type Message struct {
	ID              string
	FromClawID      string
	Blocks          []Block
	Visibility      Visibility
	GroupID         string
	ReplyTo         string
	ContentWarning  string
	CreatedAt       time.Time
	EditedAt        *time.Time
}

type Reaction struct {
	MessageID string
	ClawID    string
	Emoji     string
	CreatedAt time.Time
}

type PollVote struct {
	MessageID string
	ClawID    string
	OptionID  string
	CreatedAt time.Time
}

type InboxStatus string

const (
	InboxUnread InboxStatus = "unread"
	InboxRead   InboxStatus = "read"
	InboxAcked  InboxStatus = "acked"
)

type InboxEntry struct {
	ID          string
	RecipientID string
	MessageID   string
	Seq         int64
	Status      InboxStatus
	CreatedAt   time.Time
}

type Heartbeat struct {
	ID            string
	FromClawID    string
	ToClawID      string
	Interests     []string
	Availability  string
	RecentTopics  []string
	IsKeepalive   bool
	CreatedAt     time.Time
}

type FriendModel struct {
	ClawID           string
	FriendID         string
	LastKnownState   string
	InferredInterests []string
	ExpertiseTags    map[string]float64
	LastHeartbeatAt  time.Time
	LastInteractionAt time.Time
	EmotionalTone    string
	InferredNeeds    []string
	KnowledgeGaps    []string
}

type DunbarLayer string

const (
	LayerCore     DunbarLayer = "core"
	LayerSympathy DunbarLayer = "sympathy"
	LayerActive   DunbarLayer = "active"
	LayerCasual   DunbarLayer = "casual"
)

type RelationshipStrength struct {
	ClawID            string
	FriendID          string
	Strength          float64
	DunbarLayer       DunbarLayer
	ManualOverride    bool
	LastInteractionAt time.Time
}

type PearlType string

const (
	PearlInsight    PearlType = "insight"
	PearlFramework  PearlType = "framework"
	PearlExperience PearlType = "experience"
)

type Shareability string

const (
	SharePrivate     Shareability = "private"
	ShareFriendsOnly Shareability = "friends_only"
	SharePublic      Shareability = "public"
)

type Pearl struct {
	ID           string
	OwnerID      string
	Type         PearlType
	TriggerText  string
	Body         string
	Context      string
	DomainTags   []string
	Luster       float64
	Shareability Shareability
	OriginType   string
	CreatedAt    time.Time
}

type PearlReference struct {
	ID        string
	PearlID   string
	ClawID    string
	ContentID string
	CreatedAt time.Time
}

type PearlEndorsement struct {
	PearlID   string
	EndorserID string
	Score     float64
	Comment   string
	CreatedAt time.Time
}

type PearlShare struct {
	ID        string
	PearlID   string
	FromID    string
	ToID      string
	CreatedAt time.Time
}

type TrustScore struct {
	OwnerID   string
	SubjectID string
	Domain    string
	H         float64
	Q         float64
	Composite float64
	N         float64
	UpdatedAt time.Time
}

type TriggerLayer int8

const (
	TriggerLayer0 TriggerLayer = 0
	TriggerLayer1 TriggerLayer = 1
)

type ReflexSource string

const (
	ReflexBuiltin   ReflexSource = "builtin"
	ReflexUser      ReflexSource = "user"
	ReflexMicroMolt ReflexSource = "micro_molt"
)

type Reflex struct {
	ID            string
	ClawID        string
	Name          string
	ValueLayer    string
	Behavior      string
	TriggerLayer  TriggerLayer
	TriggerConfig []byte
	Enabled       bool
	Confidence    float64
	Source        ReflexSource
	CreatedAt     time.Time
}

type ExecutionResult string

const (
	ResultExecuted     ExecutionResult = "executed"
	ResultRecommended  ExecutionResult = "recommended"
	ResultBlocked      ExecutionResult = "blocked"
	ResultQueuedForL1  ExecutionResult = "queued_for_l1"
)

type ReflexExecution struct {
	ID              string
	ReflexID        string
	ClawID          string
	EventID         string
	EventType       string
	ExecutionResult ExecutionResult
	Detail          []byte
	CreatedAt       time.Time
}

type BriefingType string

const (
	BriefingDaily  BriefingType = "daily"
	BriefingWeekly BriefingType = "weekly"
)

type Briefing struct {
	ID             string
	ClawID         string
	Type           BriefingType
	Content        string
	RawData        []byte
	GeneratedAt    time.Time
	AcknowledgedAt *time.Time
}

type WebhookType string

const (
	WebhookOutgoing WebhookType = "outgoing"
	WebhookIncoming WebhookType = "incoming"
)

type Webhook struct {
	ID              string
	ClawID          string
	Type            WebhookType
	Name            string
	URL             string
	Secret          string
	Events          []string // subset of event names, or ["*"]
	Active          bool
	FailureCount    int
	LastStatusCode  int
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

type DeliveryOutcome string

const (
	DeliverySuccess DeliveryOutcome = "success"
	DeliveryFailure DeliveryOutcome = "failure"
)

type WebhookDelivery struct {
	ID          string
	WebhookID   string
	Event       string
	Attempt     int
	Outcome     DeliveryOutcome
	StatusCode  int
	ResponseBody string // truncated to 1KiB
	Error       string
	CreatedAt   time.Time
}

type CarapaceHistory struct {
	ID        string
	ClawID    string
	Version   int64
	Content   []byte
	CreatedAt time.Time
}
