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

// Package queue defines the durable, at-least-once-delivery message
// abstraction the Controller publishes to and the Executor drains (spec.md
// 4.5). Backends only need to guarantee visibility-timeout re-delivery;
// ordering and exactly-once delivery are explicitly not required.
package queue

import (
	"context"
	"time"
)

// Message types.
const (
	TypeProcessMonitor = "process_monitor"
	TypeRequest        = "request"
)

// Tasks carried in a process_monitor payload.
const (
	TaskSearch = "search"
	TaskUpdate = "update"
)

// Request actions carried in a request payload.
const (
	ActionAlertAcknowledge = "alert_acknowledge"
	ActionAlertLock        = "alert_lock"
	ActionAlertSolve       = "alert_solve"
	ActionIssueDrop        = "issue_drop"
)

// ProcessMonitorPayload is the payload of a process_monitor message.
type ProcessMonitorPayload struct {
	MonitorID int64    `json:"monitor_id"`
	Tasks     []string `json:"tasks"`
}

// RequestPayload is the payload of a request message.
type RequestPayload struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Message is one envelope read off the Queue. ReceiptHandle identifies this
// particular delivery to change_visibility/delete_message and is opaque to
// callers — backends that don't need one (the in-memory backend) may leave
// it empty.
type Message struct {
	ID            string
	Type          string
	Payload       []byte // JSON-encoded ProcessMonitorPayload or RequestPayload
	ReceiptHandle string
}

// Queue is the interface the Controller (producer) and Executor (consumer)
// depend on. Implementations must be safe for concurrent use by multiple
// workers.
type Queue interface {
	// Init idempotently brings up backend resources (e.g. creates the
	// in-memory channel, or verifies the configured SQS queue URL).
	Init(ctx context.Context) error

	// SendMessage enqueues a message of the given type with a JSON-encodable
	// payload.
	SendMessage(ctx context.Context, msgType string, payload any) error

	// GetMessage long-polls for up to WaitMessageTime and returns the next
	// available message, or nil if none arrived within that window.
	GetMessage(ctx context.Context) (*Message, error)

	// ChangeVisibility extends the invisibility window for a message that is
	// still being processed. Backends without a visibility window may treat
	// this as a no-op.
	ChangeVisibility(ctx context.Context, msg *Message, timeout time.Duration) error

	// DeleteMessage permanently removes a message so it is not redelivered.
	DeleteMessage(ctx context.Context, msg *Message) error

	// WaitMessageTime is the configured long-poll duration
	// (queue_wait_message_time).
	WaitMessageTime() time.Duration

	// ApproximateDepth reports the current number of in-flight messages, for
	// the sentinela_queue_depth gauge (spec.md §6 /metrics). "Approximate"
	// because durable ordering/exact counts are not required of a backend
	// (spec.md 4.5) — SQS's own attribute is itself an estimate.
	ApproximateDepth(ctx context.Context) (int, error)
}
