package sqlstore

import (
	"database/sql"
	"time"

	"github.com/gofrs/uuid"

	"github.com/chitinlabs/clawbuds/server/storage"
)

// Store is the shared database/sql-backed implementation of
// storage.Store. Exactly one of the two constructors in pgstore or
// litestore is used per process; both produce a *Store differing
// only in db (driver) and dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wires db through every repository. db must already be open and
// reachable; pool sizing and migrations are the caller's concern
// (pgstore.Open / litestore.Open do both).
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Claws() storage.ClawRepository               { return clawRepo{s} }
func (s *Store) Friendships() storage.FriendshipRepository    { return friendshipRepo{s} }
func (s *Store) Circles() storage.CircleRepository            { return circleRepo{s} }
func (s *Store) Groups() storage.GroupRepository               { return groupRepo{s} }
func (s *Store) Messages() storage.MessageRepository           { return messageRepo{s} }
func (s *Store) Reactions() storage.ReactionRepository         { return reactionRepo{s} }
func (s *Store) Polls() storage.PollRepository                 { return pollRepo{s} }
func (s *Store) Inbox() storage.InboxRepository                { return inboxRepo{s} }
func (s *Store) Heartbeats() storage.HeartbeatRepository       { return heartbeatRepo{s} }
func (s *Store) FriendModels() storage.FriendModelRepository   { return friendModelRepo{s} }
func (s *Store) Relationships() storage.RelationshipRepository { return relationshipRepo{s} }
func (s *Store) Pearls() storage.PearlRepository               { return pearlRepo{s} }
func (s *Store) Trust() storage.TrustRepository                { return trustRepo{s} }
func (s *Store) Reflexes() storage.ReflexRepository            { return reflexRepo{s} }
func (s *Store) Briefings() storage.BriefingRepository         { return briefingRepo{s} }
func (s *Store) Webhooks() storage.WebhookRepository           { return webhookRepo{s} }
func (s *Store) Carapace() storage.CarapaceRepository          { return carapaceRepo{s} }

// exec/query thin wrappers that rebind "?" placeholders to the
// backend's native syntax before delegating to database/sql.
func (s *Store) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(s.dialect.Rebind(query), args...)
}

func (s *Store) query(query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.Query(s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(s.dialect.Rebind(query), args...)
}

func (s *Store) begin() (*sql.Tx, error) {
	return s.db.Begin()
}

func (s *Store) txExec(tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	return tx.Exec(s.dialect.Rebind(query), args...)
}

func (s *Store) txQueryRow(tx *sql.Tx, query string, args ...interface{}) *sql.Row {
	return tx.QueryRow(s.dialect.Rebind(query), args...)
}

func (s *Store) txQuery(tx *sql.Tx, query string, args ...interface{}) (*sql.Rows, error) {
	return tx.Query(s.dialect.Rebind(query), args...)
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
