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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-io/sentinela/internal/monitor"
)

func samplePayload() monitor.ReactionPayload {
	return monitor.ReactionPayload{
		EventSource:          "issue",
		EventSourceID:        42,
		EventSourceMonitorID: 7,
		EventName:            "issue_created",
		EventData:            map[string]any{"id": 42, "reason": "disk full"},
	}
}

func TestWebhookReaction_SendsRenderedPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh, err := NewWebhookReaction("wh1", srv.URL, "", "", nil, 100, 10)
	require.NoError(t, err)

	err = wh.Invoke(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "issue_created", received["event_name"])
	assert.EqualValues(t, 42, received["event_source_id"])
}

func TestWebhookReaction_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh, err := NewWebhookReaction("wh1", srv.URL, "", "", nil, 100, 10)
	require.NoError(t, err)

	err = wh.Invoke(context.Background(), samplePayload())
	assert.Error(t, err)
}

func TestWebhookReaction_RateLimitExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh, err := NewWebhookReaction("wh1", srv.URL, "", "", nil, 1, 1)
	require.NoError(t, err)

	require.NoError(t, wh.Invoke(context.Background(), samplePayload()))
	err = wh.Invoke(context.Background(), samplePayload())
	assert.Error(t, err)
}

func TestSlackReaction_SendsMessage(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sr, err := NewSlackReaction("slack1", srv.URL, "#alerts", "", 100, 10)
	require.NoError(t, err)

	err = sr.Invoke(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "#alerts", received["channel"])
	assert.Contains(t, received["text"], "issue_created")
}

func TestPagerDutyReaction_TriggersIncident(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	pd := NewPagerDutyReaction("pd1", "routing-key", "", 100, 10)
	pd.eventsURL = srv.URL

	err := pd.Invoke(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "routing-key", received["routing_key"])
	assert.Equal(t, "trigger", received["event_action"])
	payload := received["payload"].(map[string]any)
	assert.Equal(t, "critical", payload["severity"])
}

func TestEventSeverity(t *testing.T) {
	assert.Equal(t, "critical", eventSeverity("issue_created"))
	assert.Equal(t, "info", eventSeverity("alert_solved"))
	assert.Equal(t, "warning", eventSeverity("alert_updated"))
}

func TestEmailReaction_SendsViaSMTP(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	er, err := NewEmailReaction("email1", SMTPConfig{Host: "smtp.example.com", Port: "587"}, "from@example.com", []string{"to@example.com"}, "", "", 100, 10)
	require.NoError(t, err)
	er.sendFunc = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = msg
		return nil
	}

	err = er.Invoke(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "from@example.com", gotFrom)
	assert.Equal(t, []string{"to@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "issue_created")
}

func TestEmailReaction_RateLimitExceeded(t *testing.T) {
	er, err := NewEmailReaction("email1", SMTPConfig{Host: "smtp.example.com", Port: "587"}, "from@example.com", []string{"to@example.com"}, "", "", 1, 1)
	require.NoError(t, err)
	er.sendFunc = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error { return nil }

	require.NoError(t, er.Invoke(context.Background(), samplePayload()))
	err = er.Invoke(context.Background(), samplePayload())
	assert.Error(t, err)
}
