/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package procedure implements the Controller's named periodic health
// routines (spec.md 4.1 "Procedures"): monitors_stuck rescues monitors whose
// queued/running flags were left set by a lost enqueue, and the history/event
// pruner keeps MonitorExecution/Event tables bounded. Adapted from the
// teacher's internal/scheduler package (stuck.go, pruner.go), which ran the
// same shape of ticker-driven, mutex-guarded loop over Kubernetes Jobs
// instead of Sentinela Monitors.
package procedure

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinela-io/sentinela/internal/cronutil"
)

// Procedure is one named health routine the Runner schedules on its own
// cron (spec.md 4.1).
type Procedure interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduled pairs a Procedure with the cron expression and timezone it runs
// on, plus the tolerance beyond which a missed run is reported overdue on
// /status (spec.md "SUPPLEMENTED FEATURES": degraded definition).
type Scheduled struct {
	Procedure Procedure
	CronExpr  string
	Timezone  string
	Tolerance time.Duration
}

// Runner ticks over a fixed set of Scheduled procedures, running each one
// when its cron triggers relative to its own last run. Every invocation is
// isolated the same way taskmanager isolates tasks: a panic is recovered and
// logged, never propagated (spec.md §7: "The Controller Procedures layer
// uses the same isolator so a stuck-monitor sweep cannot crash the loop").
type Runner struct {
	log          zerolog.Logger
	tickInterval time.Duration
	procedures   []Scheduled

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewRunner builds a Runner that checks every procedure's cron every
// tickInterval.
func NewRunner(log zerolog.Logger, tickInterval time.Duration, procedures ...Scheduled) *Runner {
	return &Runner{
		log:          log.With().Str("component", "procedures").Logger(),
		tickInterval: tickInterval,
		procedures:   procedures,
		lastRun:      make(map[string]time.Time),
	}
}

// Run blocks until ctx is canceled, dispatching procedures as their crons
// trigger.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, time.Now())
		}
	}
}

func (r *Runner) tick(ctx context.Context, now time.Time) {
	for _, sp := range r.procedures {
		name := sp.Procedure.Name()

		r.mu.Lock()
		last, ok := r.lastRun[name]
		r.mu.Unlock()

		var lastPtr *time.Time
		if ok {
			lastPtr = &last
		}

		triggered, err := cronutil.IsTriggered(sp.CronExpr, sp.Timezone, lastPtr, now)
		if err != nil {
			r.log.Error().Err(err).Str("procedure", name).Msg("invalid procedure cron expression")
			continue
		}
		if !triggered {
			continue
		}

		r.runIsolated(ctx, sp.Procedure, now)
	}
}

func (r *Runner) runIsolated(ctx context.Context, p Procedure, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Str("procedure", p.Name()).Msg("procedure panicked, recovering")
		}
	}()

	if err := p.Run(ctx); err != nil {
		r.log.Error().Err(err).Str("procedure", p.Name()).Msg("procedure run failed")
	}

	r.mu.Lock()
	r.lastRun[p.Name()] = now
	r.mu.Unlock()
}

// Overdue reports the names of procedures that should already have run
// again, by tolerance, given their last run. A procedure is overdue when it
// was due (by its own cron) at least Tolerance ago and hasn't run since.
func (r *Runner) Overdue(now time.Time) []string {
	var overdue []string

	for _, sp := range r.procedures {
		if sp.Tolerance <= 0 {
			continue
		}
		name := sp.Procedure.Name()

		r.mu.Lock()
		last, ok := r.lastRun[name]
		r.mu.Unlock()

		var lastPtr *time.Time
		if ok {
			lastPtr = &last
		}

		triggered, err := cronutil.IsTriggered(sp.CronExpr, sp.Timezone, lastPtr, now.Add(-sp.Tolerance))
		if err != nil {
			overdue = append(overdue, name)
			continue
		}
		if triggered {
			overdue = append(overdue, name)
		}
	}

	return overdue
}
