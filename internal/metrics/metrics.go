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

// Package metrics defines Sentinela's Prometheus collectors: queue depth,
// active tasks, monitor priorities, alert counts and heartbeat latency
// (spec.md §6, GET /metrics).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is a private Prometheus registry rather than the global
// DefaultRegisterer, so a role process (controller or executor) only
// exposes the collectors it actually updates.
type Registry struct {
	registry *prometheus.Registry

	QueueDepth        prometheus.Gauge
	ActiveTasks       prometheus.Gauge
	HeartbeatLatency  prometheus.Gauge
	MonitorPriority   *prometheus.GaugeVec
	ActiveAlerts      *prometheus.GaugeVec
	MonitorExecutions *prometheus.CounterVec
	ReactionsTotal    *prometheus.CounterVec
	EventsTotal       *prometheus.CounterVec
}

// New builds a Registry with every collector registered against a fresh
// prometheus.Registry, mirroring the teacher's GaugeVec/CounterVec
// construction (internal/metrics/metrics.go) adapted to Sentinela's own
// entities instead of CronJobs/Alerts.
func New() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinela_queue_depth",
		Help: "Approximate number of in-flight messages on the Queue.",
	})
	r.ActiveTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinela_active_tasks",
		Help: "Number of tasks currently tracked by the TaskManager.",
	})
	r.HeartbeatLatency = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinela_heartbeat_latency_seconds",
		Help: "Mean inter-wake latency of the cooperative-scheduler heartbeat loop.",
	})
	r.MonitorPriority = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinela_monitor_alert_priority",
		Help: "Current alert priority per monitor, as an ordinal (0=informational .. 4=critical, -1=none).",
	}, []string{"monitor"})
	r.ActiveAlerts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinela_active_alerts",
		Help: "Number of currently active alerts per monitor.",
	}, []string{"monitor"})
	r.MonitorExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinela_monitor_executions_total",
		Help: "Total monitor task executions, by task and status.",
	}, []string{"monitor", "task", "status"})
	r.ReactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinela_reactions_total",
		Help: "Total reaction invocations, by reaction name and outcome.",
	}, []string{"reaction", "status"})
	r.EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinela_events_total",
		Help: "Total Events emitted, by event type.",
	}, []string{"event_type"})

	r.registry.MustRegister(
		r.QueueDepth,
		r.ActiveTasks,
		r.HeartbeatLatency,
		r.MonitorPriority,
		r.ActiveAlerts,
		r.MonitorExecutions,
		r.ReactionsTotal,
		r.EventsTotal,
	)

	return r
}

// Gatherer exposes the underlying registry for the /metrics HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// SetHeartbeatLatency implements heartbeat.GaugePublisher.
func (r *Registry) SetHeartbeatLatency(seconds float64) {
	r.HeartbeatLatency.Set(seconds)
}

// SetQueueDepth records the Queue's approximate depth.
func (r *Registry) SetQueueDepth(depth float64) {
	r.QueueDepth.Set(depth)
}

// SetActiveTasks records the TaskManager's current task count.
func (r *Registry) SetActiveTasks(count float64) {
	r.ActiveTasks.Set(count)
}

// RecordMonitorExecution increments the execution counter for a monitor
// task's outcome (spec.md 4.2.1 MonitorExecution rows).
func (r *Registry) RecordMonitorExecution(monitorName, task, status string) {
	r.MonitorExecutions.WithLabelValues(monitorName, task, status).Inc()
}

// RecordReaction increments the reaction counter for a reaction's outcome.
func (r *Registry) RecordReaction(reactionName, status string) {
	r.ReactionsTotal.WithLabelValues(reactionName, status).Inc()
}

// RecordEvent increments the events counter for an emitted event type.
func (r *Registry) RecordEvent(eventType string) {
	r.EventsTotal.WithLabelValues(eventType).Inc()
}

// priorityOrdinal maps a priority name to the ordinal the gauge exposes;
// used by internal/executor after Alert evaluation.
var priorityOrdinal = map[string]float64{
	"":             -1,
	"informational": 0,
	"low":           1,
	"moderate":      2,
	"high":          3,
	"critical":      4,
}

// SetMonitorPriority records a monitor's current Alert priority as an
// ordinal gauge value (-1 when there is no active Alert/priority).
func (r *Registry) SetMonitorPriority(monitorName, priority string) {
	ordinal, ok := priorityOrdinal[priority]
	if !ok {
		ordinal = -1
	}
	r.MonitorPriority.WithLabelValues(monitorName).Set(ordinal)
}

// SetActiveAlerts records the number of currently active alerts for a
// monitor (0 or 1 under spec.md 3's "at most one active Alert per monitor"
// invariant, but the gauge accepts any count for forward-compatibility).
func (r *Registry) SetActiveAlerts(monitorName string, count float64) {
	r.ActiveAlerts.WithLabelValues(monitorName).Set(count)
}
