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
	"net/smtp"
	"strings"
	"text/template"

	"golang.org/x/time/rate"

	"github.com/sentinela-io/sentinela/internal/monitor"
)

const (
	defaultEmailSubjectTemplate = `[Sentinela] {{ .EventName }} (monitor {{ .EventSourceMonitorID }})`
	defaultEmailBodyTemplate    = `Event: {{ .EventName }}
Source: {{ .EventSource }} #{{ .EventSourceID }}
Monitor: {{ .EventSourceMonitorID }}

{{ toJSON .EventData }}`
)

// SMTPConfig holds SMTP connection details, mirroring the teacher's
// SMTPConfig (internal/alerting/email.go), minus the Kubernetes Secret
// indirection — values are supplied directly from Sentinela's own config.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// EmailReaction sends a rendered email via SMTP.
type EmailReaction struct {
	name            string
	smtp            SMTPConfig
	from            string
	to              []string
	subjectTemplate *template.Template
	bodyTemplate    *template.Template
	rateLimiter     *rate.Limiter
	sendFunc        func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailReaction mirrors the teacher's NewEmailChannel
// (internal/alerting/email.go).
func NewEmailReaction(name string, smtpCfg SMTPConfig, from string, to []string, subjectTemplate, bodyTemplate string, maxPerHour, burst int) (*EmailReaction, error) {
	subjectTmpl, err := parseTemplate("subject", subjectTemplate, defaultEmailSubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid email subject template: %w", err)
	}
	bodyTmpl, err := parseTemplate("body", bodyTemplate, defaultEmailBodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid email body template: %w", err)
	}
	return &EmailReaction{
		name:            name,
		smtp:            smtpCfg,
		from:            from,
		to:              to,
		subjectTemplate: subjectTmpl,
		bodyTemplate:    bodyTmpl,
		rateLimiter:     NewRateLimiter(maxPerHour, burst),
		sendFunc:        smtp.SendMail,
	}, nil
}

func (e *EmailReaction) Name() string { return e.name }

func (e *EmailReaction) Invoke(ctx context.Context, payload monitor.ReactionPayload) error {
	if !e.rateLimiter.Allow() {
		return fmt.Errorf("rate limit exceeded for email reaction %s", e.name)
	}

	view := templatePayload(payload)

	var subject bytes.Buffer
	if err := e.subjectTemplate.Execute(&subject, view); err != nil {
		return fmt.Errorf("failed to render email subject: %w", err)
	}
	var body bytes.Buffer
	if err := e.bodyTemplate.Execute(&body, view); err != nil {
		return fmt.Errorf("failed to render email body: %w", err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.from, strings.Join(e.to, ", "), subject.String(), body.String())

	var auth smtp.Auth
	if e.smtp.Username != "" {
		auth = smtp.PlainAuth("", e.smtp.Username, e.smtp.Password, e.smtp.Host)
	}
	addr := fmt.Sprintf("%s:%s", e.smtp.Host, e.smtp.Port)

	if err := e.sendFunc(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
