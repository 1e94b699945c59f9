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
	"fmt"
	"time"

	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
)

// handleRequest applies one action request (spec.md 4.2.2). Every path is
// idempotent: repeated delivery of the same action leaves state unchanged
// past the first successful application.
func (e *Executor) handleRequest(ctx context.Context, payload queue.RequestPayload) outcome {
	targetID, err := extractTargetID(payload.Params)
	if err != nil {
		e.log.Error().Err(err).Str("action", payload.Action).Msg("malformed request target_id, dropping")
		return outcomeDelete
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	var actionErr error
	switch payload.Action {
	case queue.ActionAlertAcknowledge:
		actionErr = e.handleAlertAcknowledge(reqCtx, targetID)
	case queue.ActionAlertLock:
		actionErr = e.handleAlertLock(reqCtx, targetID)
	case queue.ActionAlertSolve:
		actionErr = e.handleAlertSolve(reqCtx, targetID)
	case queue.ActionIssueDrop:
		actionErr = e.handleIssueDrop(reqCtx, targetID)
	default:
		// Plugin actions (e.g. "plugin.slack.resend_notifications") are
		// dispatched to a plugin handler the core does not implement
		// (spec.md 1: plugins are an external collaborator). With no
		// handler registered there is nothing useful to retry.
		e.log.Warn().Str("action", payload.Action).Int64("target_id", targetID).Msg("no handler registered for request action, dropping")
		return outcomeDelete
	}

	if actionErr != nil {
		e.log.Error().Err(actionErr).Str("action", payload.Action).Int64("target_id", targetID).Msg("request action failed")
		if e.metrics != nil {
			e.metrics.RecordEvent("request_failed")
		}
	}
	// Requests are never redelivery-worthy: the target either no longer
	// applies (already in the desired state) or a transient store error
	// occurred that an operator-visible log line is sufficient for —
	// redelivery of a malformed or already-applied action cannot help.
	return outcomeDelete
}

func extractTargetID(params map[string]any) (int64, error) {
	raw, ok := params["target_id"]
	if !ok {
		return 0, fmt.Errorf("missing target_id")
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("target_id has unexpected type %T", raw)
	}
}

// handleAlertAcknowledge implements spec.md 4.2.3 row "action
// alert_acknowledge": acknowledges an active, not-yet-acknowledged Alert.
func (e *Executor) handleAlertAcknowledge(ctx context.Context, alertID int64) error {
	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil || alert.Status != store.AlertStatusActive || alert.Acknowledged {
		return nil
	}

	if err := e.store.AcknowledgeAlert(ctx, alertID, alert.Priority); err != nil {
		return err
	}

	m, opts, err := e.loadMonitorOpts(ctx, alert.MonitorID)
	if err != nil || m == nil {
		return err
	}
	e.emit(ctx, m, opts, eventAlertAcknowledged, "alert", alertID, map[string]any{"priority": alert.Priority}, nil)
	return nil
}

// handleAlertLock implements spec.md 4.2.3 row "action alert_lock": locks
// an active, not-yet-locked Alert. Locked alerts ignore priority escalation
// (enforced in evaluateAlert) until unlocked or solved.
func (e *Executor) handleAlertLock(ctx context.Context, alertID int64) error {
	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil || alert.Status != store.AlertStatusActive || alert.Locked {
		return nil
	}

	if err := e.store.LockAlert(ctx, alertID); err != nil {
		return err
	}

	m, opts, err := e.loadMonitorOpts(ctx, alert.MonitorID)
	if err != nil || m == nil {
		return err
	}
	e.emit(ctx, m, opts, eventAlertLocked, "alert", alertID, nil, nil)
	return nil
}

// handleAlertSolve implements spec.md 4.2.3 row "action alert_solve":
// force-solves an Alert by dropping every linked active Issue.
func (e *Executor) handleAlertSolve(ctx context.Context, alertID int64) error {
	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if alert == nil || alert.Status != store.AlertStatusActive {
		return nil
	}

	m, opts, err := e.loadMonitorOpts(ctx, alert.MonitorID)
	if err != nil {
		return err
	}

	issues, err := e.store.GetActiveIssues(ctx, alert.MonitorID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, issue := range issues {
		if issue.AlertID == nil || *issue.AlertID != alertID {
			continue
		}
		if err := e.store.DropIssue(ctx, issue.ID, now); err != nil {
			return err
		}
		if m != nil {
			e.emit(ctx, m, opts, eventIssueDropped, "issue", issue.ID, issue.Data, nil)
		}
	}

	if err := e.store.SolveAlert(ctx, alertID, now); err != nil {
		return err
	}
	if err := e.store.CloseNotificationsForAlert(ctx, alertID, now); err != nil {
		e.log.Error().Err(err).Int64("alert_id", alertID).Msg("failed to close notifications for force-solved alert")
	}

	if m != nil {
		if e.metrics != nil {
			e.metrics.SetMonitorPriority(m.Name, "")
			e.metrics.SetActiveAlerts(m.Name, 0)
		}
		e.emit(ctx, m, opts, eventAlertSolved, "alert", alertID, nil, nil)
	}
	return nil
}

// handleIssueDrop implements spec.md 4.2.2's issue_drop action: drops the
// Issue, then re-evaluates its Alert (may cascade to Alert.solve via
// evaluateAlert's solve propagation).
func (e *Executor) handleIssueDrop(ctx context.Context, issueID int64) error {
	issue, err := e.store.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if issue == nil || issue.Status != store.IssueStatusActive {
		return nil
	}

	now := time.Now()
	if err := e.store.DropIssue(ctx, issueID, now); err != nil {
		return err
	}

	m, opts, err := e.loadMonitorOpts(ctx, issue.MonitorID)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	e.emit(ctx, m, opts, eventIssueDropped, "issue", issueID, issue.Data, nil)
	e.evaluateAlert(ctx, m, opts)
	return nil
}

// loadMonitorOpts loads a Monitor and its compiled Options by ID, returning
// (nil, zero, nil) if the monitor is unknown, and (m, zero, nil) if its
// implementation isn't registered (e.g. a stale Alert/Issue for a monitor
// that has since been removed from the compiled registry).
func (e *Executor) loadMonitorOpts(ctx context.Context, monitorID int64) (*store.Monitor, monitor.Options, error) {
	m, err := e.store.GetMonitor(ctx, monitorID)
	if err != nil {
		return nil, monitor.Options{}, err
	}
	if m == nil {
		return nil, monitor.Options{}, nil
	}
	_, opts, ok := e.registry.Get(m.Name)
	if !ok {
		return m, monitor.Options{}, nil
	}
	return m, opts, nil
}
