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
	"fmt"

	"github.com/sentinela-io/sentinela/internal/store"
)

// SearchResult is one (model_id, data) tuple produced by Search.
type SearchResult struct {
	ModelID string
	Data    map[string]any
}

// Context is the per-task handle a monitor's code receives, giving it
// access to its own named Variables (spec.md 4.6).
type Context interface {
	GetVariable(ctx context.Context, name string) (string, bool, error)
	SetVariable(ctx context.Context, name, value string) error
}

// Impl is the code a registered monitor provides: Search discovers problem
// rows, Update re-evaluates a known one, IsSolved decides when it's
// resolved. IsSolved is a required method: Registry stores an Impl as
// given and supplies no default for it.
type Impl interface {
	Search(ctx context.Context, mctx Context) ([]SearchResult, error)
	Update(ctx context.Context, mctx Context, data map[string]any) (map[string]any, error)
	IsSolved(data map[string]any) bool
}

// Registry resolves a monitor's name to its code and declarative options.
// StaticRegistry in this package is the reference, in-process implementation.
type Registry interface {
	Get(name string) (Impl, Options, bool)
	Register(name string, impl Impl, opts Options)
	Names() []string
}

// storeContext is the default Context, backed directly by a Store.
type storeContext struct {
	store     store.Store
	monitorID int64
}

// NewStoreContext builds the Context the Executor hands to monitor code
// during a process_monitor task.
func NewStoreContext(s store.Store, monitorID int64) Context {
	return &storeContext{store: s, monitorID: monitorID}
}

func (c *storeContext) GetVariable(ctx context.Context, name string) (string, bool, error) {
	return c.store.GetVariable(ctx, c.monitorID, name)
}

func (c *storeContext) SetVariable(ctx context.Context, name, value string) error {
	return c.store.SetVariable(ctx, c.monitorID, name, value)
}

// NeverSolved is the default IsSolved behavior for monitors that don't
// define one: an issue is never automatically solved by data alone.
func NeverSolved(map[string]any) bool { return false }

// ValidationError is returned by a MonitorLoader when code fails to check
// (syntax, missing required symbols, type errors) — surfaced as HTTP 400
// per spec.md §7.
type ValidationError struct {
	Name    string
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("monitor %q failed validation: %v", e.Name, e.Reasons)
}
