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

package executor

import (
	"context"
	"time"

	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/store"
)

// evaluateAlert recomputes priority over a monitor's active Issues and
// drives the Alert state machine (spec.md 4.2.1 "Alert evaluation", 4.2.3).
// It always runs after search/update when alert_options is configured, even
// if neither task was part of this message's tasks list.
func (e *Executor) evaluateAlert(ctx context.Context, m *store.Monitor, opts monitor.Options) {
	if opts.Alert == nil {
		return
	}

	issues, err := e.store.GetActiveIssues(ctx, m.ID)
	if err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to load active issues for alert evaluation")
		return
	}

	now := time.Now()
	newPriority := monitor.CalculatePriority(opts.Alert.Rule, issues, now)

	existing, err := e.store.GetActiveAlert(ctx, m.ID)
	if err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to load active alert")
		return
	}

	if existing == nil {
		e.maybeCreateAlert(ctx, m, opts, issues, newPriority, now)
		return
	}

	e.recomputeAlert(ctx, m, opts, existing, issues, newPriority, now)
}

func (e *Executor) maybeCreateAlert(ctx context.Context, m *store.Monitor, opts monitor.Options, issues []store.Issue, newPriority *monitor.Priority, now time.Time) {
	if newPriority == nil || len(issues) == 0 {
		return
	}

	alert := &store.Alert{
		MonitorID: m.ID,
		Status:    store.AlertStatusActive,
		Priority:  string(*newPriority),
		CreatedAt: now,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to create alert")
		return
	}

	e.linkUnlinkedIssues(ctx, alert.ID, issues)

	if e.metrics != nil {
		e.metrics.SetMonitorPriority(m.Name, string(*newPriority))
		e.metrics.SetActiveAlerts(m.Name, 1)
	}
	e.emit(ctx, m, opts, eventAlertCreated, "alert", alert.ID, map[string]any{"priority": string(*newPriority)}, nil)
}

func (e *Executor) recomputeAlert(ctx context.Context, m *store.Monitor, opts monitor.Options, alert *store.Alert, issues []store.Issue, newPriority *monitor.Priority, now time.Time) {
	// New active Issues that haven't been attached to any Alert yet (e.g.
	// created by this same run's search) belong to the monitor's single
	// active Alert. This must happen before the solve check below: an Issue
	// discovered this same cycle is genuinely active even though it isn't
	// linked yet, and must not be mistaken for "nothing left to own".
	e.linkUnlinkedIssues(ctx, alert.ID, issues)

	linkedActive := 0
	for _, issue := range issues {
		if issue.AlertID == nil || *issue.AlertID == alert.ID {
			linkedActive++
		}
	}

	// Solve propagation: priority dropped to None, or every Issue this
	// Alert owns has since been solved/dropped (spec.md 4.2.1 "Solve
	// propagation", 4.2.3 row 2). Takes precedence over lock, since a lock
	// only suppresses escalation, not resolution.
	if newPriority == nil || linkedActive == 0 {
		if err := e.store.SolveAlert(ctx, alert.ID, now); err != nil {
			e.log.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to solve alert")
			return
		}
		if err := e.store.CloseNotificationsForAlert(ctx, alert.ID, now); err != nil {
			e.log.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to close notifications for solved alert")
		}
		if e.metrics != nil {
			e.metrics.SetMonitorPriority(m.Name, "")
			e.metrics.SetActiveAlerts(m.Name, 0)
		}
		e.emit(ctx, m, opts, eventAlertSolved, "alert", alert.ID, nil, nil)
		return
	}

	if alert.Locked {
		// Locked alerts ignore priority escalation until unlocked or solved
		// (spec.md 4.2.3).
		return
	}

	if string(*newPriority) == alert.Priority {
		return
	}

	if alert.Acknowledged && monitor.Priority(alert.AcknowledgePriority).Less(*newPriority) {
		// Re-escalation past acknowledge_priority clears acknowledged
		// (spec.md 4.2.1 S2).
		if err := e.store.UpdateAlertPriorityAndClearAcknowledgement(ctx, alert.ID, string(*newPriority)); err != nil {
			e.log.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to update alert priority")
			return
		}
	} else {
		if err := e.store.UpdateAlertPriority(ctx, alert.ID, string(*newPriority)); err != nil {
			e.log.Error().Err(err).Int64("alert_id", alert.ID).Msg("failed to update alert priority")
			return
		}
	}

	if e.metrics != nil {
		e.metrics.SetMonitorPriority(m.Name, string(*newPriority))
		e.metrics.SetActiveAlerts(m.Name, 1)
	}
	e.emit(ctx, m, opts, eventAlertUpdated, "alert", alert.ID, map[string]any{"priority": string(*newPriority)}, nil)
}

func (e *Executor) linkUnlinkedIssues(ctx context.Context, alertID int64, issues []store.Issue) {
	var unlinked []int64
	for _, issue := range issues {
		if issue.AlertID == nil {
			unlinked = append(unlinked, issue.ID)
		}
	}
	if len(unlinked) == 0 {
		return
	}
	if err := e.store.LinkIssuesToAlert(ctx, unlinked, alertID); err != nil {
		e.log.Error().Err(err).Int64("alert_id", alertID).Msg("failed to link issues to alert")
	}
}
