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

// Package controller owns the trigger loop that decides when a Monitor is
// due to run, enqueues process_monitor messages, and runs the Procedures
// that keep the Monitor table healthy (spec.md 4.1). Action requests are
// validated and enqueued directly by internal/api's handlers against the
// Store; the Controller does not mediate them (see DESIGN.md).
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinela-io/sentinela/internal/api"
	"github.com/sentinela-io/sentinela/internal/cronutil"
	"github.com/sentinela-io/sentinela/internal/procedure"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
)

// pollInterval is how often the trigger loop wakes to check whether
// controller_process_schedule has triggered. It is independent of the
// configured schedule itself: the schedule gates the sweep, this just
// bounds how promptly a trigger is noticed.
const pollInterval = time.Second

// Controller implements the Controller role (spec.md 4.1).
type Controller struct {
	store      store.Store
	queue      queue.Queue
	procedures *procedure.Runner
	log        zerolog.Logger

	processSchedule string
	tolerance       time.Duration

	mu       sync.Mutex
	lastRun  time.Time
	lastErr  string
}

// New creates a Controller. processSchedule is controller_process_schedule;
// tolerance bounds how stale the trigger loop may be before Status reports
// degraded; procedures is the already-configured health-routine runner
// (monitors_stuck, history pruning).
func New(s store.Store, q queue.Queue, procedures *procedure.Runner, processSchedule string, tolerance time.Duration, log zerolog.Logger) *Controller {
	return &Controller{
		store:           s,
		queue:           q,
		procedures:      procedures,
		log:             log.With().Str("component", "controller").Logger(),
		processSchedule: processSchedule,
		tolerance:       tolerance,
	}
}

// Run blocks until ctx is canceled, driving the trigger loop and the
// Procedures runner concurrently.
func (c *Controller) Run(ctx context.Context) {
	go c.procedures.Run(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	now := time.Now()

	c.mu.Lock()
	last := c.lastRun
	c.mu.Unlock()

	var lastPtr *time.Time
	if !last.IsZero() {
		lastPtr = &last
	}

	triggered, err := cronutil.IsTriggered(c.processSchedule, "", lastPtr, now)
	if err != nil {
		c.log.Error().Err(err).Msg("invalid controller_process_schedule")
		c.setErr(err.Error())
		return
	}
	if !triggered {
		return
	}

	if err := c.sweep(ctx); err != nil {
		c.log.Error().Err(err).Msg("trigger loop sweep failed")
		c.setErr(err.Error())
		return
	}

	c.mu.Lock()
	c.lastRun = now
	c.lastErr = ""
	c.mu.Unlock()
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// sweep examines every enabled Monitor and enqueues a process_monitor
// message for each one due to run (spec.md 4.1's trigger conjunction).
func (c *Controller) sweep(ctx context.Context) error {
	monitors, err := c.store.ListEnabledMonitors(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, m := range monitors {
		if m.Queued || m.Running {
			continue
		}

		tasks, err := c.dueTasks(m, now)
		if err != nil {
			c.log.Error().Err(err).Int64("monitor_id", m.ID).Str("monitor", m.Name).Msg("invalid monitor cron expression")
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		payload := queue.ProcessMonitorPayload{MonitorID: m.ID, Tasks: tasks}
		if err := c.queue.SendMessage(ctx, queue.TypeProcessMonitor, payload); err != nil {
			c.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to enqueue process_monitor message")
			continue
		}

		if err := c.store.SetMonitorQueued(ctx, m.ID, true, &now); err != nil {
			// The message is already on the Queue; a lost flag-set here is
			// exactly the lost-update case spec.md 4.1 accepts and the
			// monitors_stuck procedure rescues.
			c.log.Error().Err(err).Int64("monitor_id", m.ID).Msg("failed to set monitor queued flag after enqueue")
		}
	}

	return nil
}

func (c *Controller) dueTasks(m store.Monitor, now time.Time) ([]string, error) {
	var tasks []string

	if m.SearchCron != "" {
		triggered, err := cronutil.IsTriggered(m.SearchCron, m.Timezone, m.SearchExecutedAt, now)
		if err != nil {
			return nil, err
		}
		if triggered {
			tasks = append(tasks, queue.TaskSearch)
		}
	}

	if m.UpdateCron != "" {
		triggered, err := cronutil.IsTriggered(m.UpdateCron, m.Timezone, m.UpdateExecutedAt, now)
		if err != nil {
			return nil, err
		}
		if triggered {
			tasks = append(tasks, queue.TaskUpdate)
		}
	}

	return tasks, nil
}

// Status implements api.ControllerStatus: the trigger loop is degraded if
// it hasn't completed a sweep within tolerance, or if a Procedure is
// overdue.
func (c *Controller) Status() api.ComponentStatus {
	c.mu.Lock()
	last := c.lastRun
	lastErr := c.lastErr
	c.mu.Unlock()

	var issues []string
	if lastErr != "" {
		issues = append(issues, lastErr)
	}
	if !last.IsZero() && time.Since(last) > c.tolerance {
		issues = append(issues, "trigger loop has not completed a sweep within tolerance")
	}
	for _, name := range c.procedures.Overdue(time.Now()) {
		issues = append(issues, "procedure overdue: "+name)
	}

	status := "ok"
	if len(issues) > 0 {
		status = "degraded"
	}
	return api.ComponentStatus{Status: status, Issues: issues}
}
