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

// Package heartbeat detects blocking calls that starve the cooperative
// scheduler: a single loop wakes up every heartbeatTime, records its own
// wake timestamp in a ring buffer, and warns when the mean inter-wake
// latency drifts past tolerance (spec.md 4.4).
package heartbeat

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const ringSize = 10

// toleranceFactor is the multiplier applied to heartbeatTime beyond which
// the mean inter-wake latency is considered a scheduler stall.
const toleranceFactor = 1.05

// warnRateLimit caps stall warnings to one per 10 seconds so a sustained
// stall doesn't flood the logs.
const warnRateLimit = 10 * time.Second

// GaugePublisher receives the current mean inter-wake latency, in seconds,
// on every tick. internal/metrics implements this.
type GaugePublisher interface {
	SetHeartbeatLatency(seconds float64)
}

// Monitor runs the cooperative-scheduler heartbeat loop.
type Monitor struct {
	heartbeatTime time.Duration
	log           zerolog.Logger
	gauge         GaugePublisher
	limiter       *rate.Limiter

	ring     [ringSize]time.Time
	ringLen  int
	ringNext int
	lastWake time.Time
}

// New creates a Monitor that wakes every heartbeatTime and reports latency
// through gauge (pass nil to skip metrics publication, e.g. in tests).
func New(heartbeatTime time.Duration, log zerolog.Logger, gauge GaugePublisher) *Monitor {
	return &Monitor{
		heartbeatTime: heartbeatTime,
		log:           log.With().Str("component", "heartbeat").Logger(),
		gauge:         gauge,
		limiter:       rate.NewLimiter(rate.Every(warnRateLimit), 1),
	}
}

// Run ticks every heartbeatTime until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatTime)
	defer ticker.Stop()

	m.lastWake = time.Now()
	for {
		select {
		case <-ticker.C:
			m.wake(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) wake(now time.Time) {
	m.ring[m.ringNext] = now
	m.ringNext = (m.ringNext + 1) % ringSize
	if m.ringLen < ringSize {
		m.ringLen++
	}

	mean := m.meanLatency()
	if m.gauge != nil {
		m.gauge.SetHeartbeatLatency(mean.Seconds())
	}

	if mean > time.Duration(float64(m.heartbeatTime)*toleranceFactor) && m.limiter.Allow() {
		m.log.Warn().
			Dur("mean_latency", mean).
			Dur("expected", m.heartbeatTime).
			Msg("scheduler heartbeat latency exceeds tolerance, a task may be blocking the event loop")
	}
}

// meanLatency returns the mean interval between consecutive wake-ups
// currently in the ring buffer.
func (m *Monitor) meanLatency() time.Duration {
	if m.ringLen < 2 {
		return m.heartbeatTime
	}

	// Oldest sample is at ringNext when the buffer is full; otherwise it's
	// index 0, since the buffer fills forward from there.
	oldestIdx := 0
	if m.ringLen == ringSize {
		oldestIdx = m.ringNext
	}
	newestIdx := (m.ringNext - 1 + ringSize) % ringSize

	oldest := m.ring[oldestIdx]
	newest := m.ring[newestIdx]
	span := newest.Sub(oldest)
	intervals := m.ringLen - 1
	return span / time.Duration(intervals)
}
