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

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/uber-go/tally/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/migrations"
	"github.com/chitinlabs/clawbuds/server"
	"github.com/chitinlabs/clawbuds/server/eventbus"
	"github.com/chitinlabs/clawbuds/server/realtime"
	"github.com/chitinlabs/clawbuds/server/scheduler"
	"github.com/chitinlabs/clawbuds/server/storage"
	"github.com/chitinlabs/clawbuds/server/storage/litestore"
	"github.com/chitinlabs/clawbuds/server/storage/pgstore"
	"github.com/chitinlabs/clawbuds/server/webhook"
)

var version = "dev"

func main() {
	var (
		dbDriver   string
		dbDSN      string
		listenAddr string
		logLevel   string
		logFile    string
		etcdHosts  string
		nodeName   string
	)

	flags := flag.NewFlagSet("clawbuds-server", flag.ExitOnError)
	flags.StringVar(&dbDriver, "db-driver", envOr("CLAWBUDS_DB_DRIVER", "sqlite"), "Storage backend: sqlite or postgres.")
	flags.StringVar(&dbDSN, "db-dsn", envOr("CLAWBUDS_DB_DSN", "clawbuds.db"), "sqlite file path, or postgres connection string.")
	flags.StringVar(&listenAddr, "listen", envOr("CLAWBUDS_LISTEN_ADDR", ":8080"), "HTTP listen address.")
	flags.StringVar(&logLevel, "log-level", envOr("CLAWBUDS_LOG_LEVEL", "info"), "debug|info|warn|error")
	flags.StringVar(&logFile, "log-file", envOr("CLAWBUDS_LOG_FILE", ""), "Optional rotating log file path.")
	flags.StringVar(&etcdHosts, "etcd-endpoints", envOr("CLAWBUDS_ETCD_ENDPOINTS", ""), "Comma-separated etcd endpoints; empty runs single-node realtime.")
	flags.StringVar(&nodeName, "node-name", envOr("CLAWBUDS_NODE_NAME", "clawbuds-1"), "This replica's identity for logs and etcd presence leases.")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := server.NewLogger(server.LoggerConfig{Level: logLevel, File: logFile, Stdout: logFile != ""})
	defer logger.Sync()

	cfg := server.DefaultConfig().LoadFromEnv()
	cfg.NodeName = nodeName

	logger.Info("clawbuds starting", zap.String("version", version), zap.String("node", cfg.NodeName), zap.String("dbDriver", dbDriver))

	ctx := context.Background()

	store, rawDB, dialect := openStore(ctx, logger, dbDriver, dbDSN)
	if _, err := migrations.Up(logger, rawDB, dialect); err != nil {
		logger.Fatal("failed applying migrations", zap.Error(err))
	}

	bus := eventbus.New(logger)

	claws := server.NewClawService(store.Claws())
	friendships := server.NewFriendshipService(store.Friendships(), store.Relationships(), store.Circles(), store.FriendModels(), store.Claws(), bus)
	circles := server.NewCircleService(store.Circles(), store.Friendships())
	groups := server.NewGroupService(store.Groups(), bus)
	messages := server.NewMessageService(store.Messages(), store.Friendships(), store.Circles(), store.Groups(), bus)
	reactions := server.NewReactionService(store.Messages(), store.Reactions(), store.Polls(), bus)
	pearls := server.NewPearlService(store.Pearls(), store.Trust(), bus)
	trust := server.NewTrustService(store.Trust(), store.Pearls(), bus)
	relationships := server.NewRelationshipService(store.Relationships(), bus, logger, cfg.DailyBoostCap)
	relationships.WireEvents(bus, store.Messages())
	heartbeats := server.NewHeartbeatService(store.Heartbeats(), store.FriendModels(), bus)
	inbox := server.NewInboxService(store.Inbox())

	reflexEngine := server.NewReflexEngine(store.Reflexes())
	reflexEngine.WireEvents(bus)
	reflexes := server.NewReflexService(store.Reflexes())
	briefings := server.NewBriefingService(store.Briefings(), store.Relationships(), reflexEngine, logger)
	microMolt := server.NewMicroMoltService(store.Reflexes(), reflexEngine, logger)

	dispatcher := webhook.NewDispatcher(store.Webhooks(), logger)
	webhooks := server.NewWebhookService(store.Webhooks(), store.Messages(), dispatcher, bus)

	rt, socket := newRealtimeService(ctx, logger, cfg, etcdHosts)
	server.NewRealtimePush(rt, bus)

	sched := scheduler.New(logger)
	for _, job := range server.MaintenanceJobs(cfg, store, relationships, briefings, socket, logger) {
		if err := sched.Register(job); err != nil {
			logger.Fatal("failed registering scheduled job", zap.String("job", job.Name), zap.Error(err))
		}
	}
	sched.Start()

	auth := server.NewAuthenticator(store.Claws(), cfg.RequestSignatureSkew)

	router := server.NewRouter(&server.Services{
		Claws:         claws,
		Friendships:   friendships,
		Circles:       circles,
		Groups:        groups,
		Messages:      messages,
		Reactions:     reactions,
		Pearls:        pearls,
		Trust:         trust,
		Relationships: relationships,
		Heartbeats:    heartbeats,
		Webhooks:      webhooks,
		Inbox:         inbox,
		Reflexes:      reflexes,
		ReflexEngine:  reflexEngine,
		Briefings:     briefings,
		MicroMolt:     microMolt,
		Realtime:      rt,
		Socket:        socket,
		Store:         store,
		Bus:           bus,
		Auth:          auth,
		Scope:         tally.NoopScope,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestDeadline,
	}

	go func() {
		logger.Info("listening", zap.String("addr", listenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
}

// openStore opens the configured backend and returns both the
// wrapped storage.Store and the raw *sql.DB migrations.Up needs,
// since repositories must never touch the database ahead of the
// migration pass.
func openStore(ctx context.Context, logger *zap.Logger, driver, dsn string) (storage.Store, *sql.DB, string) {
	switch driver {
	case "postgres", "pg", "postgresql":
		pgCfg := pgstore.DefaultConfig(dsn)
		rawDB, err := pgstore.OpenDB(ctx, logger, pgCfg)
		if err != nil {
			logger.Fatal("failed opening postgres", zap.Error(err))
		}
		store, err := pgstore.Open(ctx, logger, pgCfg)
		if err != nil {
			logger.Fatal("failed wiring postgres store", zap.Error(err))
		}
		return store, rawDB, "postgres"
	default:
		rawDB, err := litestore.OpenDB(ctx, logger, dsn)
		if err != nil {
			logger.Fatal("failed opening sqlite", zap.Error(err))
		}
		store, err := litestore.Open(ctx, logger, dsn)
		if err != nil {
			logger.Fatal("failed wiring sqlite store", zap.Error(err))
		}
		return store, rawDB, "sqlite3"
	}
}

// newRealtimeService builds the process-local socket service and, if
// etcdEndpoints names at least one host, wraps it in the cross-node
// EtcdService so presence and room pub/sub are shared across
// replicas instead of staying node-local.
func newRealtimeService(ctx context.Context, logger *zap.Logger, cfg *server.Config, etcdEndpoints string) (realtime.Service, *realtime.SocketService) {
	socket := realtime.NewSocketService(logger)
	if strings.TrimSpace(etcdEndpoints) == "" {
		return socket, socket
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(etcdEndpoints, ","),
		DialTimeout: 5 * time.Second,
		Context:     ctx,
	})
	if err != nil {
		logger.Fatal("failed connecting to etcd", zap.Error(err))
	}
	return realtime.NewEtcdService(socket, client, logger, cfg.NodeName), socket
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
