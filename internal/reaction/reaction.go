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

// Package reaction provides the concrete monitor.Reaction implementations
// (webhook, Slack, email, PagerDuty) dispatched when an Event fires
// (spec.md 4.2.1). Each channel is independently rate limited; a channel
// exceeding its rate is a per-reaction failure, logged by the caller and
// never propagated to sibling reactions (spec.md 4.2.1, 4.3).
package reaction

import (
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"golang.org/x/time/rate"

	"github.com/sentinela-io/sentinela/internal/monitor"
)

// NewRateLimiter builds the per-channel limiter from an hourly budget and
// burst size, matching the teacher's channel constructors
// (internal/alerting/{webhook,slack,email,pagerduty}.go).
func NewRateLimiter(maxPerHour, burst int) *rate.Limiter {
	if maxPerHour <= 0 {
		maxPerHour = 100
	}
	if burst <= 0 {
		burst = 10
	}
	return rate.NewLimiter(rate.Limit(float64(maxPerHour)/3600), burst)
}

// templateFuncs mirrors the teacher's text/template helper set
// (internal/alerting/dispatcher.go's templateFuncs), adapted to operate on
// monitor.ReactionPayload fields instead of Alert/CronJob fields.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time, layout string) string {
		switch layout {
		case "RFC3339":
			return t.Format(time.RFC3339)
		default:
			return t.Format(layout)
		}
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"toJSON": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return "null"
		}
		return string(b)
	},
}

func parseTemplate(name, tmplStr, fallback string) (*template.Template, error) {
	if strings.TrimSpace(tmplStr) == "" {
		tmplStr = fallback
	}
	return template.New(name).Funcs(templateFuncs).Parse(tmplStr)
}

// eventSeverity maps an event name to a coarse severity label, used by the
// PagerDuty channel; the email channel does not use it. Mirrors the teacher's
// Alert.Severity field, derived here instead of carried on the payload
// since ReactionPayload (spec.md 4.2.1) has no severity field of its own.
func eventSeverity(eventName string) string {
	switch {
	case strings.Contains(eventName, "solved"):
		return "info"
	case strings.Contains(eventName, "created"):
		return "critical"
	default:
		return "warning"
	}
}

var _ monitor.Reaction = (*WebhookReaction)(nil)
