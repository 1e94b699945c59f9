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

// Package monitor defines the contract a registered monitor implements
// (search/update/is_solved plus declarative option blocks) and the priority
// rule variants Alert evaluation uses (spec.md 3, 4.2.1).
package monitor

import "context"

// IssueOptions is the declarative scheduling block every monitor carries:
// when its search and update tasks are due, and in which timezone.
type IssueOptions struct {
	SearchCron string
	UpdateCron string
	Timezone   string
}

// AlertOptions, when present, turns on Alert aggregation for a monitor.
type AlertOptions struct {
	Rule Rule
}

// ReactionPayload is the structured argument every reaction callable
// receives (spec.md 4.2.1).
type ReactionPayload struct {
	EventSource          string
	EventSourceID        int64
	EventSourceMonitorID int64
	EventName            string
	EventData            map[string]any
	ExtraPayload         map[string]any
}

// Reaction is one callable attached to an event name via ReactionOptions.
// internal/reaction provides the concrete implementations (webhook, Slack,
// email, PagerDuty); internal/monitor only knows the shape.
type Reaction interface {
	Name() string
	Invoke(ctx context.Context, payload ReactionPayload) error
}

// ReactionOptions maps an event name (e.g. "issue_created", "alert_solved")
// to the reactions that fire when it occurs. A monitor with no
// ReactionOptions dispatches nothing.
type ReactionOptions map[string][]Reaction

// Options bundles every declarative block a registered monitor carries.
// Alert is nil when the monitor has no alert_options.
type Options struct {
	Issue    IssueOptions
	Alert    *AlertOptions
	Reaction ReactionOptions
}
