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

package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinela-io/sentinela/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewGormStore("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContext_GetSetVariable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMonitor(ctx, &store.Monitor{Name: "m1", Enabled: true}))
	m, err := s.GetMonitorByName(ctx, "m1")
	require.NoError(t, err)

	mctx := NewStoreContext(s, m.ID)

	_, ok, err := mctx.GetVariable(ctx, "cursor")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mctx.SetVariable(ctx, "cursor", "42"))

	value, ok, err := mctx.GetVariable(ctx, "cursor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", value)
}

func TestNeverSolved(t *testing.T) {
	assert.False(t, NeverSolved(map[string]any{"anything": true}))
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Name: "m1", Reasons: []string{"missing search()"}}
	assert.Contains(t, err.Error(), "m1")
	assert.Contains(t, err.Error(), "missing search()")
}

type fakeImpl struct{}

func (fakeImpl) Search(ctx context.Context, mctx Context) ([]SearchResult, error) { return nil, nil }
func (fakeImpl) Update(ctx context.Context, mctx Context, data map[string]any) (map[string]any, error) {
	return data, nil
}
func (fakeImpl) IsSolved(data map[string]any) bool { return false }

type staticRegistry struct {
	entries map[string]struct {
		impl Impl
		opts Options
	}
}

func newStaticRegistry() *staticRegistry {
	return &staticRegistry{entries: make(map[string]struct {
		impl Impl
		opts Options
	})}
}

func (r *staticRegistry) Get(name string) (Impl, Options, bool) {
	e, ok := r.entries[name]
	return e.impl, e.opts, ok
}

func (r *staticRegistry) Register(name string, impl Impl, opts Options) {
	r.entries[name] = struct {
		impl Impl
		opts Options
	}{impl, opts}
}

func (r *staticRegistry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

func TestRegistry_ContractIsSatisfiableByASimpleImplementation(t *testing.T) {
	var reg Registry = newStaticRegistry()
	reg.Register("m1", fakeImpl{}, Options{Issue: IssueOptions{SearchCron: "* * * * *"}})

	impl, opts, ok := reg.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "* * * * *", opts.Issue.SearchCron)

	results, err := impl.Search(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)

	_, _, ok = reg.Get("missing")
	assert.False(t, ok)
}
