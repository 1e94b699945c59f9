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

package procedure

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinela-io/sentinela/internal/store"
)

// MonitorsStuck finds Monitors whose queued_at or running_at predates its
// tolerance and clears both flags, rescuing a monitor left behind by a lost
// enqueue message (spec.md 4.1, scenario S4). Grounded on the teacher's
// StuckJobChecker (internal/scheduler/stuck.go), whose "find things running
// too long, log, recover" shape carries over even though it no longer kills
// a Kubernetes Job — it clears Store flags instead.
type MonitorsStuck struct {
	store     store.Store
	tolerance time.Duration
	log       zerolog.Logger
}

// NewMonitorsStuck builds the monitors_stuck procedure.
func NewMonitorsStuck(s store.Store, tolerance time.Duration, log zerolog.Logger) *MonitorsStuck {
	return &MonitorsStuck{
		store:     s,
		tolerance: tolerance,
		log:       log.With().Str("procedure", "monitors_stuck").Logger(),
	}
}

// Name implements Procedure.
func (p *MonitorsStuck) Name() string { return "monitors_stuck" }

// Run implements Procedure.
func (p *MonitorsStuck) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-p.tolerance)

	rescued, err := p.store.ClearStuckMonitors(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, m := range rescued {
		p.log.Warn().
			Int64("monitor_id", m.ID).
			Str("monitor", m.Name).
			Time("cutoff", cutoff).
			Msg("rescued stuck monitor, queued/running cleared")
	}

	return nil
}
