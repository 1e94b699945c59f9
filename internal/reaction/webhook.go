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
	"fmt"
	"net/http"
	"text/template"

	"golang.org/x/time/rate"

	"github.com/sentinela-io/sentinela/internal/monitor"
)

const defaultWebhookTemplate = `{
  "event_name": "{{ .EventName }}",
  "event_source": "{{ .EventSource }}",
  "event_source_id": {{ .EventSourceID }},
  "monitor_id": {{ .EventSourceMonitorID }},
  "data": {{ toJSON .EventData }}
}`

// WebhookReaction POSTs a rendered JSON payload to an arbitrary URL.
type WebhookReaction struct {
	name        string
	url         string
	method      string
	headers     map[string]string
	template    *template.Template
	rateLimiter *rate.Limiter
	httpClient  *http.Client
}

// NewWebhookReaction mirrors the teacher's NewWebhookChannel
// (internal/alerting/webhook.go), with the URL passed directly instead of
// resolved from a Kubernetes Secret.
func NewWebhookReaction(name, url, method, payloadTemplate string, headers map[string]string, maxPerHour, burst int) (*WebhookReaction, error) {
	if method == "" {
		method = http.MethodPost
	}
	tmpl, err := parseTemplate("webhook", payloadTemplate, defaultWebhookTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook template: %w", err)
	}
	return &WebhookReaction{
		name:        name,
		url:         url,
		method:      method,
		headers:     headers,
		template:    tmpl,
		rateLimiter: NewRateLimiter(maxPerHour, burst),
		httpClient:  http.DefaultClient,
	}, nil
}

func (w *WebhookReaction) Name() string { return w.name }

func (w *WebhookReaction) Invoke(ctx context.Context, payload monitor.ReactionPayload) error {
	if !w.rateLimiter.Allow() {
		return fmt.Errorf("rate limit exceeded for webhook reaction %s", w.name)
	}

	var buf bytes.Buffer
	if err := w.template.Execute(&buf, templatePayload(payload)); err != nil {
		return fmt.Errorf("failed to render webhook template: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, w.method, w.url, &buf)
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// templatePayloadView is the shape every reaction's text/template sees —
// EventData rendered through {{.EventData}} as a Go value rather than
// pre-marshaled JSON, matching text/template's normal field access.
type templatePayloadView struct {
	monitor.ReactionPayload
}

func templatePayload(p monitor.ReactionPayload) templatePayloadView {
	return templatePayloadView{p}
}
