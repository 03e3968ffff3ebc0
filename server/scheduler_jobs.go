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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chitinlabs/clawbuds/server/realtime"
	"github.com/chitinlabs/clawbuds/server/scheduler"
	"github.com/chitinlabs/clawbuds/server/storage"
)

// MaintenanceJobs builds the scheduler.Job set the daily/periodic
// upkeep loops run as: relationship decay, briefing publication,
// heartbeat retention cleanup, carapace version pruning, and the
// real-time socket sweep. Each Job.Run iterates the full claw
// population (or connection set) itself and isolates per-claw
// failures, so the scheduler never aborts a pass partway through
// because one claw errored.
func MaintenanceJobs(cfg *Config, store storage.Store, relationships *RelationshipService, briefings *BriefingService, socket *realtime.SocketService, logger *zap.Logger) []scheduler.Job {
	return []scheduler.Job{
		dailyDecayJob(cfg, store, relationships),
		briefingJob(cfg, store, briefings, logger),
		heartbeatRetentionJob(cfg, store, logger),
		carapacePruneJob(cfg, store, logger),
		socketCleanupJob(socket, logger),
	}
}

func dailyDecayJob(cfg *Config, store storage.Store, relationships *RelationshipService) scheduler.Job {
	return scheduler.Job{
		Name:     "relationship-daily-decay",
		Schedule: fmt.Sprintf("0 %d * * *", cfg.DecayHourUTC),
		Run: func(ctx context.Context) error {
			ids, err := store.Claws().ListAllIDs(ctx)
			if err != nil {
				return err
			}
			relationships.RunDailyDecay(ctx, ids)
			return nil
		},
	}
}

// briefingJob publishes one daily briefing per claw. Failures are
// logged and skipped per claw rather than aborting the remaining
// population, matching RunDailyDecay's own isolation pattern.
func briefingJob(cfg *Config, store storage.Store, briefings *BriefingService, logger *zap.Logger) scheduler.Job {
	return scheduler.Job{
		Name:     "briefing-publish",
		Schedule: cfg.BriefingCron,
		Run: func(ctx context.Context) error {
			ids, err := store.Claws().ListAllIDs(ctx)
			if err != nil {
				return err
			}
			for _, clawID := range ids {
				if _, err := briefings.Generate(ctx, clawID, storage.BriefingDaily, store.Pearls()); err != nil {
					logger.Error("briefing generation failed for claw", zap.String("clawId", clawID), zap.Error(err))
				}
			}
			return nil
		},
	}
}

func heartbeatRetentionJob(cfg *Config, store storage.Store, logger *zap.Logger) scheduler.Job {
	return scheduler.Job{
		Name:     "heartbeat-retention-cleanup",
		Schedule: "30 2 * * *",
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.HeartbeatRetentionDays)
			removed, err := store.Heartbeats().DeleteOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			logger.Info("heartbeat retention cleanup removed rows", zap.Int64("removed", removed))
			return nil
		},
	}
}

// carapacePruneJob keeps only the CarapaceHistoryKeep newest versions
// per claw, logging and continuing past a single claw's prune error.
func carapacePruneJob(cfg *Config, store storage.Store, logger *zap.Logger) scheduler.Job {
	return scheduler.Job{
		Name:     "carapace-history-prune",
		Schedule: "45 2 * * *",
		Run: func(ctx context.Context) error {
			ids, err := store.Claws().ListAllIDs(ctx)
			if err != nil {
				return err
			}
			for _, clawID := range ids {
				if _, err := store.Carapace().PruneKeepNewest(ctx, clawID, cfg.CarapaceHistoryKeep); err != nil {
					logger.Error("carapace prune failed for claw", zap.String("clawId", clawID), zap.Error(err))
				}
			}
			return nil
		},
	}
}

// socketCleanupJob sweeps the socket-local real-time backend's
// connection map for dead sockets every five minutes, per §4.5's
// "periodic cleanup removes [dead sockets] from the map" requirement.
func socketCleanupJob(socket *realtime.SocketService, logger *zap.Logger) scheduler.Job {
	return scheduler.Job{
		Name:     "realtime-socket-cleanup",
		Schedule: "*/5 * * * *",
		Run: func(ctx context.Context) error {
			removed, err := socket.CleanupDeadConnections(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("realtime socket cleanup removed dead connections", zap.Int("removed", removed))
			}
			return nil
		},
	}
}
