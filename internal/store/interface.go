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

// Package store defines the persistence contract the core depends on and a
// GORM-backed reference implementation over SQLite, PostgreSQL or MySQL.
package store

import (
	"context"
	"time"
)

// Issue statuses.
const (
	IssueStatusActive  = "active"
	IssueStatusSolved  = "solved"
	IssueStatusDropped = "dropped"
)

// Alert statuses.
const (
	AlertStatusActive = "active"
	AlertStatusSolved = "solved"
)

// Notification statuses.
const (
	NotificationStatusActive = "active"
	NotificationStatusClosed = "closed"
)

// MonitorExecution statuses and tasks.
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"

	TaskSearch = "search"
	TaskUpdate = "update"
)

// Monitor identifies a registered user job.
type Monitor struct {
	ID               int64
	Name             string
	Enabled          bool
	Queued           bool
	Running          bool
	QueuedAt         *time.Time
	RunningAt        *time.Time
	SearchExecutedAt *time.Time
	UpdateExecutedAt *time.Time
	LastHeartbeat    *time.Time
	SearchCron       string
	UpdateCron       string
	Timezone         string
	// IssueOptionsJSON, AlertOptionsJSON and ReactionOptionsJSON carry the
	// declarative option blocks the monitor was registered with, serialized
	// by internal/loader. The Store never interprets them.
	IssueOptionsJSON    string
	AlertOptionsJSON    string
	ReactionOptionsJSON string
	CreatedAt           time.Time

	// ActiveIssues and ActiveAlert are not filled in by the Store, and no
	// caller in this codebase assigns them; the Executor reads a monitor's
	// active issues and alert through the Store's query methods instead.
	ActiveIssues []Issue
	ActiveAlert  *Alert
}

// CodeModule is the source and auxiliary files registered for a Monitor.
type CodeModule struct {
	MonitorID       int64
	Code            string
	AdditionalFiles map[string]string
	RegisteredAt    time.Time
}

// Issue is one observed problematic entity.
type Issue struct {
	ID        int64
	MonitorID int64
	AlertID   *int64
	ModelID   string
	Status    string
	Data      map[string]any
	CreatedAt time.Time
	SolvedAt  *time.Time
	DroppedAt *time.Time
}

// Alert is an aggregation of issues for a single monitor.
type Alert struct {
	ID                  int64
	MonitorID           int64
	Status              string
	Acknowledged        bool
	Locked              bool
	Priority            string
	AcknowledgePriority string
	CreatedAt           time.Time
	SolvedAt            *time.Time
}

// Notification is one delivery target attached to an Alert.
type Notification struct {
	ID        int64
	AlertID   int64
	Target    string
	Status    string
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// Variable is a named, per-monitor, mutable string.
type Variable struct {
	MonitorID int64
	Name      string
	Value     string
	UpdatedAt time.Time
}

// MonitorExecution is an audit row per search/update attempt.
type MonitorExecution struct {
	ID         int64
	MonitorID  int64
	Task       string
	Status     string
	ErrorType  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Event is an append-only log of state transitions, uniquely keyed by
// (EventType, Model, ModelID).
type Event struct {
	ID        int64
	EventType string
	Model     string
	ModelID   int64
	Payload   map[string]any
	CreatedAt time.Time
}

// StuckMonitor is one row rescued by the monitors_stuck procedure.
type StuckMonitor struct {
	ID   int64
	Name string
}

// Store defines the storage contract for all Sentinela entities (spec.md
// 4.7). Two algorithmic contracts beyond plain CRUD are load-bearing for the
// core: ClearStuckMonitors (backs the monitors_stuck procedure) and
// EmitEvent's idempotent-on-conflict semantics (backs invariant 4, spec.md
// 8: every event key appears at most once).
type Store interface {
	Init() error
	Close() error
	Health(ctx context.Context) error

	// Monitors

	CreateMonitor(ctx context.Context, m *Monitor) error
	GetMonitor(ctx context.Context, id int64) (*Monitor, error)
	GetMonitorByName(ctx context.Context, name string) (*Monitor, error)
	ListMonitors(ctx context.Context) ([]Monitor, error)
	ListEnabledMonitors(ctx context.Context) ([]Monitor, error)
	SetMonitorEnabled(ctx context.Context, id int64, enabled bool) error
	SetMonitorQueued(ctx context.Context, id int64, queued bool, at *time.Time) error
	SetMonitorRunning(ctx context.Context, id int64, running bool, at *time.Time) error
	SetMonitorHeartbeat(ctx context.Context, id int64, at time.Time) error
	SetMonitorExecutedAt(ctx context.Context, id int64, task string, at time.Time) error
	// ClearStuckMonitors clears queued/running on monitors whose queued_at or
	// running_at predate the cutoff, returning the affected monitors.
	ClearStuckMonitors(ctx context.Context, cutoff time.Time) ([]StuckMonitor, error)

	// Code modules

	UpsertCodeModule(ctx context.Context, cm *CodeModule) error
	GetCodeModule(ctx context.Context, monitorID int64) (*CodeModule, error)
	GetUpdatedCodeModules(ctx context.Context, monitorIDs []int64, since time.Time) ([]CodeModule, error)

	// Issues

	CreateIssue(ctx context.Context, issue *Issue) error
	GetIssue(ctx context.Context, id int64) (*Issue, error)
	GetActiveIssues(ctx context.Context, monitorID int64) ([]Issue, error)
	UpdateIssueData(ctx context.Context, id int64, data map[string]any) error
	SolveIssue(ctx context.Context, id int64, at time.Time) error
	DropIssue(ctx context.Context, id int64, at time.Time) error
	LinkIssuesToAlert(ctx context.Context, issueIDs []int64, alertID int64) error

	// Alerts

	CreateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id int64) (*Alert, error)
	GetActiveAlert(ctx context.Context, monitorID int64) (*Alert, error)
	UpdateAlertPriority(ctx context.Context, id int64, priority string) error
	// UpdateAlertPriorityAndClearAcknowledgement sets priority and clears
	// acknowledged, used when recomputed priority re-escalates past the
	// Alert's acknowledge_priority (spec.md 4.2.3: "re-escalation... clears
	// acknowledged").
	UpdateAlertPriorityAndClearAcknowledgement(ctx context.Context, id int64, priority string) error
	AcknowledgeAlert(ctx context.Context, id int64, priority string) error
	LockAlert(ctx context.Context, id int64) error
	SolveAlert(ctx context.Context, id int64, at time.Time) error

	// Notifications

	CreateNotification(ctx context.Context, n *Notification) error
	CloseNotificationsForAlert(ctx context.Context, alertID int64, at time.Time) error

	// Variables

	GetVariable(ctx context.Context, monitorID int64, name string) (string, bool, error)
	SetVariable(ctx context.Context, monitorID int64, name, value string) error

	// Monitor executions

	RecordExecution(ctx context.Context, e *MonitorExecution) error

	// Events. EmitEvent is idempotent: re-emitting the same
	// (EventType, Model, ModelID) key returns (false, nil) without error.
	EmitEvent(ctx context.Context, e *Event) (created bool, err error)

	// Procedures subsystem escape hatch (spec.md 4.7); used only there.
	ExecuteApplication(ctx context.Context, sql string, args ...any) error
	QueryApplication(ctx context.Context, dest any, sql string, args ...any) error
}
