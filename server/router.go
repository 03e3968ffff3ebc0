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
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/realtime"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// Services aggregates every domain service the router dispatches to.
// Built once at process startup and handed to NewRouter.
type Services struct {
	Claws         *ClawService
	Friendships   *FriendshipService
	Circles       *CircleService
	Groups        *GroupService
	Messages      *MessageService
	Reactions     *ReactionService
	Pearls        *PearlService
	Trust         *TrustService
	Relationships *RelationshipService
	Heartbeats    *HeartbeatService
	Webhooks      *WebhookService
	Inbox         *InboxService
	Reflexes      *ReflexService
	ReflexEngine  *ReflexEngine
	Briefings     *BriefingService
	MicroMolt     *MicroMoltService
	Realtime      realtime.Service
	Socket        *realtime.SocketService
	Store         storage.Store
	Bus           *eventbus.Bus
	Auth          *Authenticator
	Scope         tally.Scope
	Logger        *zap.Logger
}

// NewRouter builds the full gorilla/mux tree, wraps it in
// access-log/CORS middleware, and returns the single http.Handler the
// process listens with.
func NewRouter(svc *Services) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware(svc.Scope))

	public := r.NewRoute().Subrouter()
	public.HandleFunc("/api/v1/register", svc.handleRegister).Methods(http.MethodPost)
	public.HandleFunc("/api/v1/webhooks/incoming/{id}", svc.handleInboundWebhook).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(svc.Auth.Middleware)

	authed.HandleFunc("/api/v1/me", svc.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/me/profile", svc.handleUpdateProfile).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/me/autonomy", svc.handleUpdateAutonomy).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/me/status", svc.handleUpdateStatus).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/me/stats", svc.handleStats).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/me/online-friends", svc.handleOnlineFriends).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/friends/request", svc.handleFriendRequest).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/friends/accept", svc.handleFriendAccept).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/friends/reject", svc.handleFriendReject).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/friends/requests", svc.handleFriendRequestsList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/friends", svc.handleFriendsList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/friends/{clawId}", svc.handleFriendRemove).Methods(http.MethodDelete)

	authed.HandleFunc("/api/v1/circles", svc.handleCircleCreate).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/circles", svc.handleCircleList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/circles/{id}", svc.handleCircleDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/circles/{id}/friends", svc.handleCircleAddFriend).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/circles/{id}/friends", svc.handleCircleRemoveFriend).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/circles/{id}/friends", svc.handleCircleListFriends).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/groups", svc.handleGroupCreate).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/groups/{id}", svc.handleGroupGet).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/groups/{id}", svc.handleGroupUpdate).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/groups/{id}", svc.handleGroupDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/groups/{id}/members", svc.handleGroupMembers).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/groups/{id}/members/{clawId}", svc.handleGroupChangeRole).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/groups/{id}/members/{clawId}", svc.handleGroupRemoveMember).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/groups/{id}/invite", svc.handleGroupInvite).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/groups/{id}/join", svc.handleGroupJoin).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/groups/{id}/leave", svc.handleGroupLeave).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/groups/{id}/reject", svc.handleGroupRejectInvitation).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/groups/invitations", svc.handleGroupInvitations).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/groups/{id}/messages", svc.handleGroupMessagesPost).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/groups/{id}/messages", svc.handleGroupMessagesList).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/messages", svc.handleMessageSend).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/messages/{id}", svc.handleMessageGet).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/messages/{id}", svc.handleMessageEdit).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/messages/{id}", svc.handleMessageDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/messages/{id}/reactions", svc.handleReactionAdd).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/messages/{id}/reactions", svc.handleReactionRemove).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/messages/{id}/reactions", svc.handleReactionList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/messages/{id}/votes", svc.handlePollVote).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/messages/{id}/votes", svc.handlePollTally).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/pearls", svc.handlePearlCreate).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/pearls", svc.handlePearlList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/pearls/{id}", svc.handlePearlGet).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/pearls/{id}/endorsements", svc.handlePearlEndorse).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/pearls/{id}/endorsements", svc.handlePearlEndorsementsList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/pearls/{id}/share", svc.handlePearlShare).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/pearls/{id}/references", svc.handlePearlReference).Methods(http.MethodPost)

	authed.HandleFunc("/api/v1/trust/{subjectId}/{domain}", svc.handleTrustGet).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/heartbeats", svc.handleHeartbeatSend).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/heartbeats/{friendId}/model", svc.handleFriendModelGet).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/webhooks", svc.handleWebhookCreate).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/webhooks", svc.handleWebhookList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/webhooks/{id}", svc.handleWebhookGet).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/webhooks/{id}", svc.handleWebhookUpdate).Methods(http.MethodPatch)
	authed.HandleFunc("/api/v1/webhooks/{id}", svc.handleWebhookDelete).Methods(http.MethodDelete)
	authed.HandleFunc("/api/v1/webhooks/{id}/deliveries", svc.handleWebhookDeliveries).Methods(http.MethodGet)

	authed.HandleFunc("/api/v1/inbox", svc.handleInboxList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/inbox/{id}", svc.handleInboxMarkStatus).Methods(http.MethodPatch)

	authed.HandleFunc("/api/v1/briefings", svc.handleBriefingsList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/briefings/{id}/ack", svc.handleBriefingAck).Methods(http.MethodPost)

	authed.HandleFunc("/api/v1/reflexes", svc.handleReflexCreate).Methods(http.MethodPost)
	authed.HandleFunc("/api/v1/reflexes", svc.handleReflexList).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/reflexes/suggestions", svc.handleReflexSuggestions).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/reflexes/executions", svc.handleReflexExecutions).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/reflexes/{name}", svc.handleReflexSetEnabled).Methods(http.MethodPatch)

	authed.HandleFunc("/api/v1/micromolt/proposals", svc.handleMicroMoltProposals).Methods(http.MethodGet)
	authed.HandleFunc("/api/v1/micromolt/apply", svc.handleMicroMoltApply).Methods(http.MethodPost)

	authed.HandleFunc("/api/v1/realtime/ws", svc.handleWebSocket).Methods(http.MethodGet)

	corsHeaders := handlers.AllowedHeaders([]string{"Content-Type", headerClawID, headerTimestamp, headerSignature})
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete})
	return handlers.CombinedLoggingHandler(logWriter{svc.Logger}, handlers.CORS(corsHeaders, corsOrigins, corsMethods)(r))
}

// logWriter adapts *zap.Logger to the io.Writer CombinedLoggingHandler
// writes pre-formatted access log lines to.
type logWriter struct{ logger *zap.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}

func metricsMiddleware(scope tally.Scope) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if scope == nil {
				return
			}
			route := r.URL.Path
			if m := mux.CurrentRoute(r); m != nil {
				if tmpl, err := m.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			tagged := scope.Tagged(map[string]string{"route": route, "method": r.Method})
			tagged.Counter("requests").Inc(1)
			tagged.Timer("latency").Record(time.Since(start))
		})
	}
}

func pathVar(r *http.Request, name string) string { return mux.Vars(r)[name] }

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and registers it against
// the authenticated claw id until the read loop exits, at which point
// it unregisters so SendToUser/Broadcast stop targeting a dead socket.
func (svc *Services) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clawID := ClawIDFromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		svc.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	svc.Socket.Register(clawID, conn)
	defer func() {
		svc.Socket.Unregister(clawID, conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
