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
	"text/template"

	"golang.org/x/time/rate"

	"github.com/sentinela-io/sentinela/internal/monitor"
)

const defaultSlackTemplate = `:rotating_light: *{{ .EventName }}*
Monitor: {{ .EventSourceMonitorID }}
{{ .EventSource }} #{{ .EventSourceID }}
{{ toJSON .EventData }}`

// SlackReaction posts a rendered message to a Slack incoming webhook URL.
type SlackReaction struct {
	name        string
	webhookURL  string
	channel     string
	template    *template.Template
	rateLimiter *rate.Limiter
	httpClient  *http.Client
}

// NewSlackReaction mirrors the teacher's NewSlackChannel
// (internal/alerting/slack.go), with the webhook URL passed directly
// instead of resolved from a Kubernetes Secret.
func NewSlackReaction(name, webhookURL, channel, messageTemplate string, maxPerHour, burst int) (*SlackReaction, error) {
	tmpl, err := parseTemplate("slack", messageTemplate, defaultSlackTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid slack template: %w", err)
	}
	return &SlackReaction{
		name:        name,
		webhookURL:  webhookURL,
		channel:     channel,
		template:    tmpl,
		rateLimiter: NewRateLimiter(maxPerHour, burst),
		httpClient:  http.DefaultClient,
	}, nil
}

func (s *SlackReaction) Name() string { return s.name }

func (s *SlackReaction) Invoke(ctx context.Context, payload monitor.ReactionPayload) error {
	if !s.rateLimiter.Allow() {
		return fmt.Errorf("rate limit exceeded for slack reaction %s", s.name)
	}

	var text bytes.Buffer
	if err := s.template.Execute(&text, templatePayload(payload)); err != nil {
		return fmt.Errorf("failed to render slack template: %w", err)
	}

	body := map[string]any{"text": text.String()}
	if s.channel != "" {
		body["channel"] = s.channel
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
