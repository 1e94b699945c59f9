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

package loader

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/store"
)

type fakeImpl struct{}

func (fakeImpl) Search(ctx context.Context, mctx monitor.Context) ([]monitor.SearchResult, error) {
	return nil, nil
}
func (fakeImpl) Update(ctx context.Context, mctx monitor.Context, data map[string]any) (map[string]any, error) {
	return data, nil
}
func (fakeImpl) IsSolved(data map[string]any) bool { return false }

type fakeReaction struct{ name string }

func (r fakeReaction) Name() string { return r.name }
func (r fakeReaction) Invoke(ctx context.Context, payload monitor.ReactionPayload) error { return nil }

type entry struct {
	impl monitor.Impl
	opts monitor.Options
}

type registry struct {
	entries map[string]entry
}

func newRegistry() *registry { return &registry{entries: make(map[string]entry)} }

func (r *registry) Get(name string) (monitor.Impl, monitor.Options, bool) {
	e, ok := r.entries[name]
	return e.impl, e.opts, ok
}

func (r *registry) Register(name string, impl monitor.Impl, opts monitor.Options) {
	r.entries[name] = entry{impl, opts}
}

func (r *registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	return names
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewGormStore("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCheckMonitor_UnknownNameFails(t *testing.T) {
	reg := newRegistry()
	l := New(newTestStore(t), reg, zerolog.Nop(), time.Hour)

	err := l.CheckMonitor("unregistered", "some code")
	require.Error(t, err)
	var verr *monitor.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCheckMonitor_EmptyCodeFails(t *testing.T) {
	reg := newRegistry()
	reg.Register("m1", fakeImpl{}, monitor.Options{})
	l := New(newTestStore(t), reg, zerolog.Nop(), time.Hour)

	err := l.CheckMonitor("m1", "   ")
	assert.Error(t, err)
}

func TestCheckMonitor_ValidPasses(t *testing.T) {
	reg := newRegistry()
	reg.Register("m1", fakeImpl{}, monitor.Options{})
	l := New(newTestStore(t), reg, zerolog.Nop(), time.Hour)

	assert.NoError(t, l.CheckMonitor("m1", "def search(): ..."))
}

func TestRegisterMonitor_CreatesMonitorAndCodeModule(t *testing.T) {
	s := newTestStore(t)
	reg := newRegistry()
	reg.Register("m1", fakeImpl{}, monitor.Options{
		Issue: monitor.IssueOptions{SearchCron: "*/5 * * * *", UpdateCron: "0 * * * *", Timezone: "UTC"},
		Alert: &monitor.AlertOptions{Rule: monitor.CountRule{Levels: monitor.PriorityLevels{monitor.PriorityCritical: 10}}},
		Reaction: monitor.ReactionOptions{
			"issue_created": {fakeReaction{name: "slack"}},
		},
	})
	l := New(s, reg, zerolog.Nop(), time.Hour)

	m, err := l.RegisterMonitor(context.Background(), "m1", "def search(): ...", map[string]string{"helpers.py": "x = 1"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NotZero(t, m.ID)
	assert.Equal(t, "*/5 * * * *", m.SearchCron)
	assert.Contains(t, m.AlertOptionsJSON, "count")
	assert.Contains(t, m.ReactionOptionsJSON, "slack")

	cm, err := s.GetCodeModule(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(t, "def search(): ...", cm.Code)
	assert.Equal(t, "x = 1", cm.AdditionalFiles["helpers.py"])
}

func TestRegisterMonitor_IsIdempotentOnName(t *testing.T) {
	s := newTestStore(t)
	reg := newRegistry()
	reg.Register("m1", fakeImpl{}, monitor.Options{Issue: monitor.IssueOptions{SearchCron: "* * * * *"}})
	l := New(s, reg, zerolog.Nop(), time.Hour)

	ctx := context.Background()
	first, err := l.RegisterMonitor(ctx, "m1", "v1", nil)
	require.NoError(t, err)

	second, err := l.RegisterMonitor(ctx, "m1", "v2", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	cm, err := s.GetCodeModule(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", cm.Code)
}

func TestRegisterMonitor_UnknownNameFails(t *testing.T) {
	l := New(newTestStore(t), newRegistry(), zerolog.Nop(), time.Hour)
	_, err := l.RegisterMonitor(context.Background(), "nope", "code", nil)
	assert.Error(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestStore(t)
	reg := newRegistry()
	l := New(s, reg, zerolog.Nop(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRun_ZeroIntervalReturnsImmediately(t *testing.T) {
	l := New(newTestStore(t), newRegistry(), zerolog.Nop(), 0)
	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run with zero interval should return immediately")
	}
}
