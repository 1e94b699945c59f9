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

package reaction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/sentinela-io/sentinela/internal/monitor"
)

// pagerDutyEventsURL is PagerDuty's Events API v2 ingestion endpoint,
// unchanged from the teacher's internal/alerting/pagerduty.go.
const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyReaction triggers a PagerDuty Events API v2 incident.
type PagerDutyReaction struct {
	name        string
	routingKey  string
	severity    string
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	eventsURL   string
}

// NewPagerDutyReaction mirrors the teacher's NewPagerDutyChannel
// (internal/alerting/pagerduty.go), with the routing key passed directly
// instead of resolved from a Kubernetes Secret. An empty severity derives
// one from the event name (eventSeverity).
func NewPagerDutyReaction(name, routingKey, severity string, maxPerHour, burst int) *PagerDutyReaction {
	return &PagerDutyReaction{
		name:        name,
		routingKey:  routingKey,
		severity:    severity,
		rateLimiter: NewRateLimiter(maxPerHour, burst),
		httpClient:  http.DefaultClient,
		eventsURL:   pagerDutyEventsURL,
	}
}

func (p *PagerDutyReaction) Name() string { return p.name }

func (p *PagerDutyReaction) Invoke(ctx context.Context, payload monitor.ReactionPayload) error {
	if !p.rateLimiter.Allow() {
		return fmt.Errorf("rate limit exceeded for pagerduty reaction %s", p.name)
	}

	severity := p.severity
	if severity == "" {
		severity = eventSeverity(payload.EventName)
	}

	event := map[string]any{
		"routing_key":  p.routingKey,
		"event_action": "trigger",
		"dedup_key":    fmt.Sprintf("sentinela:%s:%d", payload.EventSource, payload.EventSourceID),
		"payload": map[string]any{
			"summary":  fmt.Sprintf("%s: %s #%d", payload.EventName, payload.EventSource, payload.EventSourceID),
			"source":   "sentinela",
			"severity": severity,
			"custom_details": map[string]any{
				"monitor_id": payload.EventSourceMonitorID,
				"data":       payload.EventData,
			},
		},
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode pagerduty event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.eventsURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send pagerduty event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pagerduty returned status %d", resp.StatusCode)
	}
	return nil
}
