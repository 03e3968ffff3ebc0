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
	"os"
	"strconv"
	"time"
)

// Config holds the tunables the core reads directly. Assembling this
// struct from flags, YAML, or a secrets manager is the job of the
// external bootstrap process; the core
// only documents and defaults the environment variables it reads.
type Config struct {
	// NodeName identifies this replica in logs and as the etcd lease
	// owner for the broker-backed realtime service.
	NodeName string

	// RequestSignatureSkew bounds how far a request timestamp may
	// drift from wall clock time before authentication rejects it.
	RequestSignatureSkew time.Duration

	// RequestDeadline is applied as the http.Server's WriteTimeout.
	// No context deadline is set on handlers from it, and no 504 is
	// written when it expires.
	RequestDeadline time.Duration

	// HeartbeatRetentionDays is how long heartbeat rows are kept
	// before the scheduler's cleanup task deletes them.
	HeartbeatRetentionDays int

	// DailyBoostCap bounds the relationship-strength interaction
	// boost a single (claw, friend) pair may accrue in one UTC day.
	DailyBoostCap float64

	// AtRiskMargin and AtRiskInactivityDays are the at-risk tuning
	// values (margin to a Dunbar boundary, days since last contact).
	// They are read from the environment, but no code path consults
	// them and no relationship is flagged at-risk.
	AtRiskMargin         float64
	AtRiskInactivityDays int

	// BriefingCron is the cron expression (robfig/cron syntax) the
	// scheduler uses to publish daily/weekly briefings.
	BriefingCron string

	// DecayHourUTC is the UTC hour at which the daily relationship
	// decay + Dunbar reclassification pass runs.
	DecayHourUTC int

	// MicroMoltMaxSuggestions is read from the environment but not
	// consulted: ReflexEngine.Analyze caps its output with its own
	// maxSuggestions constant.
	MicroMoltMaxSuggestions int

	// CarapaceHistoryKeep is how many carapace versions per claw the
	// scheduler's pruning task retains.
	CarapaceHistoryKeep int

	// WebhookRetryDelays, WebhookMaxFailures and WebhookTimeout carry
	// the webhook retry schedule, circuit-breaker threshold and
	// per-attempt timeout. The dispatcher does not read them; it uses
	// its own constants (retryOffsets, circuitBreakerTrip,
	// deliveryTimeout) with the same default values.
	WebhookRetryDelays []time.Duration

	WebhookMaxFailures int

	WebhookTimeout time.Duration

	// RealtimeNamespace is read from the environment but not used:
	// EtcdService keeps its keys under a fixed "/clawbuds/" prefix.
	RealtimeNamespace string
}

// DefaultConfig sets safe defaults for every tunable, including the
// values chosen for settings left unspecified elsewhere.
func DefaultConfig() *Config {
	return &Config{
		NodeName:                "clawbuds-1",
		RequestSignatureSkew:    5 * time.Minute,
		RequestDeadline:         30 * time.Second,
		HeartbeatRetentionDays:  7,
		DailyBoostCap:           0.15,
		AtRiskMargin:            0.05,
		AtRiskInactivityDays:    7,
		BriefingCron:            "0 8 * * *",
		DecayHourUTC:            3,
		MicroMoltMaxSuggestions: 3,
		CarapaceHistoryKeep:     20,
		WebhookRetryDelays:      []time.Duration{10 * time.Second, 60 * time.Second, 300 * time.Second},
		WebhookMaxFailures:      10,
		WebhookTimeout:          10 * time.Second,
		RealtimeNamespace:       "clawbuds",
	}
}

// LoadFromEnv overlays recognized environment variables onto a copy
// of cfg, leaving unset variables at their existing (default) values.
func (cfg Config) LoadFromEnv() *Config {
	out := cfg
	if v, ok := envInt("CLAWBUDS_HEARTBEAT_RETENTION_DAYS"); ok {
		out.HeartbeatRetentionDays = v
	}
	if v, ok := envFloat("CLAWBUDS_DAILY_BOOST_CAP"); ok {
		out.DailyBoostCap = v
	}
	if v, ok := envFloat("CLAWBUDS_AT_RISK_MARGIN"); ok {
		out.AtRiskMargin = v
	}
	if v, ok := envInt("CLAWBUDS_AT_RISK_INACTIVITY_DAYS"); ok {
		out.AtRiskInactivityDays = v
	}
	if v, ok := os.LookupEnv("CLAWBUDS_BRIEFING_CRON"); ok && v != "" {
		out.BriefingCron = v
	}
	if v, ok := envInt("CLAWBUDS_MICROMOLT_MAX_SUGGESTIONS"); ok {
		out.MicroMoltMaxSuggestions = v
	}
	if v, ok := os.LookupEnv("CLAWBUDS_NODE_NAME"); ok && v != "" {
		out.NodeName = v
	}
	return &out
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
