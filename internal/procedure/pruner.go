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

// HistoryPruner deletes MonitorExecution and Event rows older than its
// retention window, keeping both append-only tables bounded. Grounded on the
// teacher's HistoryPruner (internal/scheduler/pruner.go); this is a
// supplemented feature (spec.md leaves retention of MonitorExecution/Event
// history unspecified) built the same "ticker, prune, log count" way. It is
// the one consumer in this codebase of Store.ExecuteApplication, the raw-SQL
// escape hatch spec.md 4.7 reserves for the Procedures subsystem.
type HistoryPruner struct {
	store         store.Store
	retentionDays int
	log           zerolog.Logger
}

// NewHistoryPruner builds the history/event pruning procedure.
func NewHistoryPruner(s store.Store, retentionDays int, log zerolog.Logger) *HistoryPruner {
	return &HistoryPruner{
		store:         s,
		retentionDays: retentionDays,
		log:           log.With().Str("procedure", "history_prune").Logger(),
	}
}

// Name implements Procedure.
func (p *HistoryPruner) Name() string { return "history_prune" }

// Run implements Procedure.
func (p *HistoryPruner) Run(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -p.retentionDays)

	if err := p.store.ExecuteApplication(ctx, "DELETE FROM monitor_executions WHERE finished_at < ?", cutoff); err != nil {
		return err
	}
	if err := p.store.ExecuteApplication(ctx, "DELETE FROM events WHERE created_at < ?", cutoff); err != nil {
		return err
	}

	p.log.Info().Time("cutoff", cutoff).Msg("pruned monitor execution and event history")
	return nil
}
