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

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/sentinela-io/sentinela/internal/metrics"
	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
	"github.com/sentinela-io/sentinela/internal/taskmanager"
)

// fakeImpl is a trivial monitor.Impl that never itself creates work; tests
// drive Issues/Alerts directly through the Store and exercise evaluateAlert
// and the request handlers in isolation.
type fakeImpl struct{}

func (fakeImpl) Search(ctx context.Context, mctx monitor.Context) ([]monitor.SearchResult, error) {
	return nil, nil
}
func (fakeImpl) Update(ctx context.Context, mctx monitor.Context, data map[string]any) (map[string]any, error) {
	return data, nil
}
func (fakeImpl) IsSolved(data map[string]any) bool { return false }

// ExecutorTestSuite exercises the Alert state machine and request handlers
// against a real in-memory SQLite store, matching internal/store's own test
// idiom (suite.Suite over a real GormStore, not a mock).
type ExecutorTestSuite struct {
	suite.Suite
	store *store.GormStore
	exec  *Executor
	ctx   context.Context
}

func (s *ExecutorTestSuite) SetupTest() {
	var err error
	s.store, err = store.NewGormStore("sqlite", "file::memory:?cache=shared")
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.store.Init())

	registry := monitor.NewStaticRegistry()
	q := queue.NewMemoryQueue(time.Second, 16)
	tm := taskmanager.New(zerolog.Nop(), time.Minute)
	s.exec = New(s.store, q, registry, tm, metrics.New(), Config{
		Concurrency:          4,
		MonitorTimeout:       time.Minute,
		MonitorHeartbeatTime: time.Minute,
		ReactionTimeout:      time.Second,
		RequestTimeout:       time.Second,
		MaxIssuesCreation:    100,
	}, zerolog.Nop())
	s.ctx = context.Background()
}

func (s *ExecutorTestSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorTestSuite))
}

func (s *ExecutorTestSuite) createMonitor(name string) *store.Monitor {
	m := &store.Monitor{Name: name, Enabled: true, SearchCron: "* * * * *", UpdateCron: "* * * * *", Timezone: "UTC"}
	require.NoError(s.T(), s.store.CreateMonitor(s.ctx, m))
	return m
}

func (s *ExecutorTestSuite) createIssue(monitorID int64) *store.Issue {
	issue := &store.Issue{MonitorID: monitorID, ModelID: "m", Status: store.IssueStatusActive, CreatedAt: time.Now()}
	require.NoError(s.T(), s.store.CreateIssue(s.ctx, issue))
	return issue
}

func countRuleOpts() monitor.Options {
	return monitor.Options{
		Alert: &monitor.AlertOptions{
			Rule: monitor.CountRule{
				Levels: monitor.PriorityLevels{
					monitor.PriorityLow:      0,
					monitor.PriorityCritical: 3,
				},
			},
		},
	}
}

// TestAlertCreatedWhenThresholdCrossed covers spec.md S1: a CountRule
// crossing its low threshold creates an Alert at "low" priority.
func (s *ExecutorTestSuite) TestAlertCreatedWhenThresholdCrossed() {
	m := s.createMonitor("count-rule-monitor")
	s.createIssue(m.ID)

	opts := countRuleOpts()
	s.exec.evaluateAlert(s.ctx, m, opts)

	alert, err := s.store.GetActiveAlert(s.ctx, m.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), alert)
	s.Equal(string(monitor.PriorityLow), alert.Priority)
}

// TestAlertEscalatesAndClearsAcknowledgement covers spec.md S2:
// re-escalation past acknowledge_priority clears the acknowledged flag.
func (s *ExecutorTestSuite) TestAlertEscalatesAndClearsAcknowledgement() {
	m := s.createMonitor("escalation-monitor")
	s.createIssue(m.ID)

	opts := countRuleOpts()
	s.exec.evaluateAlert(s.ctx, m, opts)
	alert, err := s.store.GetActiveAlert(s.ctx, m.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), alert)

	require.NoError(s.T(), s.store.AcknowledgeAlert(s.ctx, alert.ID, alert.Priority))

	for i := 0; i < 3; i++ {
		s.createIssue(m.ID)
	}

	s.exec.evaluateAlert(s.ctx, m, opts)

	updated, err := s.store.GetAlert(s.ctx, alert.ID)
	require.NoError(s.T(), err)
	s.Equal(string(monitor.PriorityCritical), updated.Priority)
	s.False(updated.Acknowledged)
}

// TestLockSuppressesEscalationButNotSolve covers spec.md 4.2.3: a locked
// Alert never escalates, but still solves when its Issues clear.
func (s *ExecutorTestSuite) TestLockSuppressesEscalationButNotSolve() {
	m := s.createMonitor("lock-monitor")
	s.createIssue(m.ID)

	opts := countRuleOpts()
	s.exec.evaluateAlert(s.ctx, m, opts)
	alert, err := s.store.GetActiveAlert(s.ctx, m.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), alert)

	require.NoError(s.T(), s.store.LockAlert(s.ctx, alert.ID))

	for i := 0; i < 3; i++ {
		s.createIssue(m.ID)
	}
	s.exec.evaluateAlert(s.ctx, m, opts)

	locked, err := s.store.GetAlert(s.ctx, alert.ID)
	require.NoError(s.T(), err)
	s.Equal(string(monitor.PriorityLow), locked.Priority, "locked alert must not escalate")

	issues, err := s.store.GetActiveIssues(s.ctx, m.ID)
	require.NoError(s.T(), err)
	for _, i := range issues {
		require.NoError(s.T(), s.store.DropIssue(s.ctx, i.ID, time.Now()))
	}

	s.exec.evaluateAlert(s.ctx, m, opts)

	solved, err := s.store.GetAlert(s.ctx, alert.ID)
	require.NoError(s.T(), err)
	s.Equal(store.AlertStatusSolved, solved.Status, "locked alert must still solve once issues clear")
}

// TestHandleAlertSolveDropsLinkedIssues covers spec.md S3: alert_solve
// force-drops every active Issue the Alert owns and solves the Alert.
func (s *ExecutorTestSuite) TestHandleAlertSolveDropsLinkedIssues() {
	m := s.createMonitor("force-solve-monitor")
	s.createIssue(m.ID)

	opts := countRuleOpts()
	s.exec.evaluateAlert(s.ctx, m, opts)
	alert, err := s.store.GetActiveAlert(s.ctx, m.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), alert)

	require.NoError(s.T(), s.exec.handleAlertSolve(s.ctx, alert.ID))

	solved, err := s.store.GetAlert(s.ctx, alert.ID)
	require.NoError(s.T(), err)
	s.Equal(store.AlertStatusSolved, solved.Status)

	issues, err := s.store.GetActiveIssues(s.ctx, m.ID)
	require.NoError(s.T(), err)
	s.Empty(issues)
}

// TestHandleRequestIsIdempotent covers spec.md 4.2.2: repeated delivery of
// the same action request leaves state unchanged past the first apply.
func (s *ExecutorTestSuite) TestHandleRequestIsIdempotent() {
	m := s.createMonitor("idempotent-monitor")
	s.createIssue(m.ID)

	opts := countRuleOpts()
	s.exec.evaluateAlert(s.ctx, m, opts)
	alert, err := s.store.GetActiveAlert(s.ctx, m.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), alert)

	payload := queue.RequestPayload{
		Action: queue.ActionAlertAcknowledge,
		Params: map[string]any{"target_id": float64(alert.ID)},
	}

	s.Equal(outcomeDelete, s.exec.handleRequest(s.ctx, payload))
	s.Equal(outcomeDelete, s.exec.handleRequest(s.ctx, payload))

	acked, err := s.store.GetAlert(s.ctx, alert.ID)
	require.NoError(s.T(), err)
	s.True(acked.Acknowledged)
}

// TestHandleIssueDropCascadesToSolve covers the issue_drop action cascading
// through evaluateAlert's solve propagation when it was the Alert's last
// active Issue.
func (s *ExecutorTestSuite) TestHandleIssueDropCascadesToSolve() {
	m := s.createMonitor("issue-drop-monitor")
	issue := s.createIssue(m.ID)

	opts := countRuleOpts()
	s.exec.evaluateAlert(s.ctx, m, opts)
	alert, err := s.store.GetActiveAlert(s.ctx, m.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), alert)

	registry := s.exec.registry.(*monitor.StaticRegistry)
	registry.Register(m.Name, fakeImpl{}, opts)

	require.NoError(s.T(), s.exec.handleIssueDrop(s.ctx, issue.ID))

	solved, err := s.store.GetAlert(s.ctx, alert.ID)
	require.NoError(s.T(), err)
	s.Equal(store.AlertStatusSolved, solved.Status)
}

// TestHandleRequestUnknownActionDrops covers the out-of-core plugin-action
// path: an unrecognized action is logged and dropped, never retried.
func (s *ExecutorTestSuite) TestHandleRequestUnknownActionDrops() {
	outcome := s.exec.handleRequest(s.ctx, queue.RequestPayload{
		Action: "plugin.slack.resend_notifications",
		Params: map[string]any{"target_id": float64(1)},
	})
	s.Equal(outcomeDelete, outcome)
}
