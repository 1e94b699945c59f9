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

// Package executor drains the Queue and applies the Issue/Alert/Reaction
// state machine (spec.md 4.2): a bounded pool of workers each pull one
// message at a time, dispatch by message type, and delete or abandon the
// message depending on how the handler classifies the outcome.
package executor

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinela-io/sentinela/internal/api"
	"github.com/sentinela-io/sentinela/internal/metrics"
	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
	"github.com/sentinela-io/sentinela/internal/taskmanager"
)

// outcome tells the worker loop what to do with a drained message once its
// handler returns (spec.md 4.2's error-handling table).
type outcome int

const (
	outcomeDelete outcome = iota
	outcomeAbandon
)

// Config bounds the Executor's concurrency and timeouts (spec.md 5).
type Config struct {
	Concurrency          int
	MonitorTimeout       time.Duration
	MonitorHeartbeatTime time.Duration
	ReactionTimeout       time.Duration
	RequestTimeout        time.Duration
	MaxIssuesCreation     int
}

// Executor implements the Executor role (spec.md 4.2).
type Executor struct {
	store       store.Store
	queue       queue.Queue
	registry    monitor.Registry
	taskManager *taskmanager.Manager
	metrics     *metrics.Registry
	log         zerolog.Logger
	cfg         Config

	mu       sync.Mutex
	lastPoll time.Time
	lastErr  string
	active   int64
}

// New creates an Executor.
func New(s store.Store, q queue.Queue, registry monitor.Registry, tm *taskmanager.Manager, m *metrics.Registry, cfg Config, log zerolog.Logger) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Executor{
		store:       s,
		queue:       q,
		registry:    registry,
		taskManager: tm,
		metrics:     m,
		cfg:         cfg,
		log:         log.With().Str("component", "executor").Logger(),
	}
}

// metricsSampleInterval bounds how often the Executor publishes the
// sentinela_queue_depth and sentinela_active_tasks gauges — frequent enough
// to be useful on a dashboard, loose enough that sampling never competes
// with the worker pool for Queue/API attention.
const metricsSampleInterval = 5 * time.Second

// Run blocks until ctx is canceled, running cfg.Concurrency worker
// goroutines that each drain the Queue independently, plus a goroutine that
// periodically publishes queue depth and active-task gauges.
func (e *Executor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.workerLoop(ctx)
		}()
	}

	if e.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.sampleMetrics(ctx)
		}()
	}

	wg.Wait()
}

// sampleMetrics periodically publishes the gauges the worker loop itself
// has no natural tick to update: how many tasks are in flight and roughly
// how deep the Queue is.
func (e *Executor) sampleMetrics(ctx context.Context) {
	ticker := time.NewTicker(metricsSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.metrics.SetActiveTasks(float64(atomic.LoadInt64(&e.active)))

			depth, err := e.queue.ApproximateDepth(ctx)
			if err != nil {
				e.log.Warn().Err(err).Msg("failed to sample queue depth")
				continue
			}
			e.metrics.SetQueueDepth(float64(depth))
		}
	}
}

func (e *Executor) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := e.queue.GetMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Error().Err(err).Msg("failed to get message from queue")
			e.recordErr(err.Error())
			continue
		}
		if msg == nil {
			e.recordPoll()
			continue
		}

		e.recordPoll()
		atomic.AddInt64(&e.active, 1)
		result := e.handle(ctx, msg)
		atomic.AddInt64(&e.active, -1)

		switch result {
		case outcomeDelete:
			if err := e.queue.DeleteMessage(ctx, msg); err != nil {
				e.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to delete processed message")
			}
		case outcomeAbandon:
			// Leave the message in place; the Queue's visibility timeout
			// will redeliver it.
		}
	}
}

func (e *Executor) handle(ctx context.Context, msg *queue.Message) outcome {
	switch msg.Type {
	case queue.TypeProcessMonitor:
		var payload queue.ProcessMonitorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			e.log.Error().Err(err).Msg("malformed process_monitor payload, dropping")
			return outcomeDelete
		}
		return e.processMonitor(ctx, payload)
	case queue.TypeRequest:
		var payload queue.RequestPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			e.log.Error().Err(err).Msg("malformed request payload, dropping")
			return outcomeDelete
		}
		return e.handleRequest(ctx, payload)
	default:
		e.log.Warn().Str("type", msg.Type).Msg("unknown message type, dropping")
		return outcomeDelete
	}
}

func (e *Executor) recordPoll() {
	e.mu.Lock()
	e.lastPoll = time.Now()
	e.mu.Unlock()
}

func (e *Executor) recordErr(msg string) {
	e.mu.Lock()
	e.lastErr = msg
	e.mu.Unlock()
}

// Status implements api.ExecutorStatus: degraded if no worker has polled
// the Queue recently (twice the long-poll window is a generous allowance)
// or the last GetMessage call errored.
func (e *Executor) Status() api.ComponentStatus {
	e.mu.Lock()
	last := e.lastPoll
	lastErr := e.lastErr
	e.mu.Unlock()

	var issues []string
	if lastErr != "" {
		issues = append(issues, lastErr)
	}
	stale := 2 * e.queue.WaitMessageTime()
	if !last.IsZero() && time.Since(last) > stale {
		issues = append(issues, "no worker has polled the queue recently")
	}

	status := "ok"
	if len(issues) > 0 {
		status = "degraded"
	}
	return api.ComponentStatus{Status: status, Issues: issues}
}
