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
	"github.com/sentinela-io/sentinela/internal/taskmanager"
)

// Event names fed to the reaction dispatcher (spec.md 4.2.1).
const (
	eventIssueCreated      = "issue_created"
	eventIssueSolved       = "issue_solved"
	eventIssueDropped      = "issue_dropped"
	eventAlertCreated      = "alert_created"
	eventAlertUpdated      = "alert_updated"
	eventAlertAcknowledged = "alert_acknowledged"
	eventAlertLocked       = "alert_locked"
	eventAlertSolved       = "alert_solved"
)

func (e *Executor) processMonitor(ctx context.Context, payload queue.ProcessMonitorPayload) outcome {
	m, err := e.store.GetMonitor(ctx, payload.MonitorID)
	if err != nil {
		e.log.Error().Err(err).Int64("monitor_id", payload.MonitorID).Msg("failed to load monitor")
		return outcomeAbandon
	}
	if m == nil {
		e.log.Warn().Int64("monitor_id", payload.MonitorID).Msg("process_monitor for unknown monitor, dropping")
		return outcomeDelete
	}

	cm, err := e.store.GetCodeModule(ctx, m.ID)
	if err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to load code module")
		return outcomeAbandon
	}
	if cm == nil {
		e.log.Warn().Int64("monitor_id", m.ID).Str("monitor", m.Name).Msg("process_monitor for monitor with no registered code, dropping")
		return outcomeDelete
	}

	impl, opts, ok := e.registry.Get(m.Name)
	if !ok {
		e.log.Warn().Str("monitor", m.Name).Msg("process_monitor for monitor with no compiled implementation, dropping")
		return outcomeDelete
	}

	if m.Running {
		// Duplicate delivery inside the visibility window; queued/running
		// flags are the source of truth, not the Queue (spec.md 5, S5).
		e.log.Debug().Int64("monitor_id", m.ID).Msg("monitor already running, dropping duplicate message")
		return outcomeDelete
	}

	now := time.Now()
	if err := e.store.SetMonitorRunning(ctx, m.ID, true, &now); err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to set monitor running")
		return outcomeAbandon
	}

	e.runMonitorTasks(ctx, m, impl, opts, payload.Tasks)

	if err := e.store.SetMonitorRunning(ctx, m.ID, false, nil); err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to clear monitor running flag")
	}
	if err := e.store.SetMonitorQueued(ctx, m.ID, false, nil); err != nil {
		e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to clear monitor queued flag")
	}

	return outcomeDelete
}

// runMonitorTasks executes search/update in fixed order, each bounded by
// MonitorTimeout, keeps last_heartbeat fresh via a keepalive task canceled
// when this function returns, and always finishes with Alert evaluation.
func (e *Executor) runMonitorTasks(ctx context.Context, m *store.Monitor, impl monitor.Impl, opts monitor.Options, tasks []string) {
	keepaliveCtx, cancelKeepalive := context.WithCancel(ctx)
	defer cancelKeepalive()
	e.taskManager.CreateTask(keepaliveCtx, taskmanager.NoTask, func(taskCtx context.Context) {
		e.runKeepalive(taskCtx, m.ID)
	})

	mctx := monitor.NewStoreContext(e.store, m.ID)

	for _, task := range tasks {
		started := time.Now()
		var taskErr error

		taskCtx, cancelTask := context.WithTimeout(ctx, e.cfg.MonitorTimeout)
		switch task {
		case queue.TaskSearch:
			taskErr = e.runSearch(taskCtx, mctx, impl, m, opts)
		case queue.TaskUpdate:
			taskErr = e.runUpdate(taskCtx, mctx, impl, m, opts)
		default:
			cancelTask()
			continue
		}
		cancelTask()

		status := store.ExecutionStatusSuccess
		errType := ""
		if taskErr != nil {
			status = store.ExecutionStatusFailed
			errType = fmt.Sprintf("%T", taskErr)
			e.log.Error().Err(taskErr).Int64("monitor_id", m.ID).Str("task", task).Msg("monitor task failed")
		}

		if err := e.store.RecordExecution(ctx, &store.MonitorExecution{
			MonitorID:  m.ID,
			Task:       task,
			Status:     status,
			ErrorType:  errType,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}); err != nil {
			e.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to record monitor execution")
		}
		if e.metrics != nil {
			e.metrics.RecordMonitorExecution(m.Name, task, status)
		}

		if taskErr != nil {
			// executor_monitor_timeout and user-code errors both stop the
			// remaining tasks for this run (spec.md 7: "on timeout... the
			// monitor is broken").
			break
		}
	}

	e.evaluateAlert(ctx, m, opts)
}

func (e *Executor) runKeepalive(ctx context.Context, monitorID int64) {
	interval := e.cfg.MonitorHeartbeatTime
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.store.SetMonitorHeartbeat(ctx, monitorID, time.Now()); err != nil {
				e.log.Error().Err(err).Int64("monitor_id", monitorID).Msg("failed to record monitor heartbeat")
			}
		}
	}
}

// runSearch invokes the user search() and creates an Issue for every
// produced tuple whose model_id has no current active Issue (spec.md
// 4.2.1).
func (e *Executor) runSearch(ctx context.Context, mctx monitor.Context, impl monitor.Impl, m *store.Monitor, opts monitor.Options) error {
	results, err := impl.Search(ctx, mctx)
	if err != nil {
		return err
	}

	existing, err := e.store.GetActiveIssues(ctx, m.ID)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, issue := range existing {
		seen[issue.ModelID] = struct{}{}
	}

	created := 0
	for _, r := range results {
		if _, ok := seen[r.ModelID]; ok {
			continue
		}
		if e.cfg.MaxIssuesCreation > 0 && created >= e.cfg.MaxIssuesCreation {
			return fmt.Errorf("search produced more than max_issues_creation (%d) new issues", e.cfg.MaxIssuesCreation)
		}

		issue := &store.Issue{
			MonitorID: m.ID,
			ModelID:   r.ModelID,
			Status:    store.IssueStatusActive,
			Data:      r.Data,
			CreatedAt: time.Now(),
		}
		if err := e.store.CreateIssue(ctx, issue); err != nil {
			return err
		}
		seen[r.ModelID] = struct{}{}
		created++

		e.emit(ctx, m, opts, eventIssueCreated, "issue", issue.ID, issue.Data, nil)
	}

	return e.store.SetMonitorExecutedAt(ctx, m.ID, store.TaskSearch, time.Now())
}

// runUpdate re-evaluates every active Issue's data through update(), then
// is_solved(), bounded by the concurrency cap (spec.md 4.2.1).
func (e *Executor) runUpdate(ctx context.Context, mctx monitor.Context, impl monitor.Impl, m *store.Monitor, opts monitor.Options) error {
	issues, err := e.store.GetActiveIssues(ctx, m.ID)
	if err != nil {
		return err
	}

	items := make([]func(context.Context), 0, len(issues))
	for _, issue := range issues {
		issue := issue
		items = append(items, func(taskCtx context.Context) {
			newData, err := impl.Update(taskCtx, mctx, issue.Data)
			if err != nil {
				e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("monitor update failed for issue")
				return
			}
			if err := e.store.UpdateIssueData(taskCtx, issue.ID, newData); err != nil {
				e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("failed to persist updated issue data")
				return
			}
			if impl.IsSolved(newData) {
				now := time.Now()
				if err := e.store.SolveIssue(taskCtx, issue.ID, now); err != nil {
					e.log.Error().Err(err).Int64("issue_id", issue.ID).Msg("failed to solve issue")
					return
				}
				e.emit(taskCtx, m, opts, eventIssueSolved, "issue", issue.ID, newData, nil)
			}
		})
	}

	e.runBatch(ctx, e.cfg.Concurrency, e.cfg.MonitorTimeout, items)

	return e.store.SetMonitorExecutedAt(ctx, m.ID, store.TaskUpdate, time.Now())
}

// emit writes an idempotent Event row and, if it was newly created, fans
// out to every reaction registered for that event name (spec.md 4.2.1).
func (e *Executor) emit(ctx context.Context, m *store.Monitor, opts monitor.Options, eventType, model string, modelID int64, data map[string]any, extra map[string]any) {
	created, err := e.store.EmitEvent(ctx, &store.Event{
		EventType: eventType,
		Model:     model,
		ModelID:   modelID,
		Payload:   data,
		CreatedAt: time.Now(),
	})
	if err != nil {
		e.log.Error().Err(err).Str("event_type", eventType).Msg("failed to emit event")
		return
	}
	if e.metrics != nil {
		e.metrics.RecordEvent(eventType)
	}
	if !created {
		return
	}

	reactions := opts.Reaction[eventType]
	if len(reactions) == 0 {
		return
	}

	payload := monitor.ReactionPayload{
		EventSource:          model,
		EventSourceID:        modelID,
		EventSourceMonitorID: m.ID,
		EventName:            eventType,
		EventData:            data,
		ExtraPayload:         extra,
	}

	items := make([]func(context.Context), 0, len(reactions))
	for _, r := range reactions {
		r := r
		items = append(items, func(taskCtx context.Context) {
			rctx, cancel := context.WithTimeout(taskCtx, e.cfg.ReactionTimeout)
			defer cancel()

			status := "success"
			if err := r.Invoke(rctx, payload); err != nil {
				status = "failed"
				e.log.Error().Err(err).Str("reaction", r.Name()).Str("event_type", eventType).Msg("reaction invocation failed")
			}
			if e.metrics != nil {
				e.metrics.RecordReaction(r.Name(), status)
			}
		})
	}

	e.runBatch(ctx, e.cfg.Concurrency, e.cfg.ReactionTimeout+5*time.Second, items)
}
