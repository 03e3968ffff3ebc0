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

// Package scheduler drives the time-based maintenance loops: daily
// relationship decay, briefing publication, heartbeat retention
// cleanup, and carapace version pruning. Each registered job is
// wrapped in its own per-tenant failure boundary so one claw's
// failure never blocks the rest of the pass.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work; Run is expected to iterate its
// own tenants internally and isolate per-tenant failures itself (see
// server.RelationshipService.RunDailyDecay for the pattern).
type Job struct {
	Name     string
	Schedule string // standard 5-field cron expression
	Run      func(ctx context.Context) error
}

// Scheduler wraps a single cron.Cron instance, running every
// registered Job on its own goroutine per cron's own concurrency
// model, logging and continuing past a failing run rather than
// letting it take down the process.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds job to the schedule. Returns an error if job.Schedule
// does not parse as a valid 5-field cron expression.
func (s *Scheduler) Register(job Job) error {
	_, err := s.cron.AddFunc(job.Schedule, func() {
		if err := job.Run(s.ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", job.Name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job completed", zap.String("job", job.Name))
	})
	return err
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule, cancels the context passed to every job's
// Run, and waits for cron's in-flight entries to return.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	s.cancel()
	<-stopCtx.Done()
}
