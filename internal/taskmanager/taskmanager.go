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

// Package taskmanager tracks every goroutine spawned by the Executor and
// Controller (keepalives, reactions, request handlers) so none are ever
// leaked: every started task is either awaited or canceled during shutdown,
// and a parent task's completion recursively cancels any children still
// running (spec.md 4.3).
package taskmanager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TaskID identifies a task scheduled via CreateTask. The zero value, NoTask,
// designates "no parent" — a root-level task.
type TaskID int64

// NoTask is the parent value for a task with no parent.
const NoTask TaskID = 0

type task struct {
	id     TaskID
	parent TaskID
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is a parent/child task tracker, safe for concurrent use.
type Manager struct {
	log           zerolog.Logger
	purgeInterval time.Duration

	mu       sync.Mutex
	nextID   int64
	tasks    map[TaskID]*task
	children map[TaskID][]TaskID
}

// New creates a Manager. purgeInterval controls how often Run() sweeps
// completed tasks out of the tracking tables.
func New(log zerolog.Logger, purgeInterval time.Duration) *Manager {
	return &Manager{
		log:           log.With().Str("component", "taskmanager").Logger(),
		purgeInterval: purgeInterval,
		tasks:         make(map[TaskID]*task),
		children:      make(map[TaskID][]TaskID),
	}
}

// CreateTask schedules fn to run in its own goroutine with exception
// isolation: a panic inside fn is recovered and logged, never propagated to
// siblings or the caller. If parent is non-zero and later completes (fn
// returns or panics), any of its children still running are canceled
// through the context passed to them.
func (m *Manager) CreateTask(ctx context.Context, parent TaskID, fn func(ctx context.Context)) TaskID {
	taskCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.nextID++
	id := TaskID(m.nextID)
	t := &task{id: id, parent: parent, cancel: cancel, done: make(chan struct{})}
	m.tasks[id] = t
	m.children[parent] = append(m.children[parent], id)
	m.mu.Unlock()

	go func() {
		defer m.finish(id)
		defer m.isolate(id)
		fn(taskCtx)
	}()

	return id
}

func (m *Manager) isolate(id TaskID) {
	if r := recover(); r != nil {
		m.log.Error().Interface("panic", r).Int64("task_id", int64(id)).Msg("task panicked, recovering")
	}
}

func (m *Manager) finish(id TaskID) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	close(t.done)
	childIDs := append([]TaskID(nil), m.children[id]...)
	m.mu.Unlock()

	for _, childID := range childIDs {
		m.cancelTask(childID)
	}
}

func (m *Manager) cancelTask(id TaskID) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	var childIDs []TaskID
	if ok {
		childIDs = append([]TaskID(nil), m.children[id]...)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	for _, childID := range childIDs {
		m.cancelTask(childID)
	}
}

// WaitForTasks awaits every child of parent. If timeout is zero it waits
// indefinitely. On timeout it returns false (canceling all children first
// if cancelOnTimeout is set); otherwise it returns true once every child has
// finished.
func (m *Manager) WaitForTasks(parent TaskID, timeout time.Duration, cancelOnTimeout bool) bool {
	m.mu.Lock()
	dones := make([]chan struct{}, 0, len(m.children[parent]))
	for _, id := range m.children[parent] {
		if t, ok := m.tasks[id]; ok {
			dones = append(dones, t.done)
		}
	}
	m.mu.Unlock()

	allDone := make(chan struct{})
	go func() {
		for _, d := range dones {
			<-d
		}
		close(allDone)
	}()

	if timeout <= 0 {
		<-allDone
		return true
	}

	select {
	case <-allDone:
		return true
	case <-time.After(timeout):
		if cancelOnTimeout {
			for _, id := range m.snapshotChildren(parent) {
				m.cancelTask(id)
			}
		}
		return false
	}
}

func (m *Manager) snapshotChildren(parent TaskID) []TaskID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TaskID(nil), m.children[parent]...)
}

func (m *Manager) purgeCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.tasks {
		select {
		case <-t.done:
			delete(m.tasks, id)
			delete(m.children, id)
			if siblings, ok := m.children[t.parent]; ok {
				filtered := siblings[:0]
				for _, sibling := range siblings {
					if sibling != id {
						filtered = append(filtered, sibling)
					}
				}
				m.children[t.parent] = filtered
			}
		default:
		}
	}
}

// Run purges completed tasks on purgeInterval until ctx is canceled, then
// cancels every remaining task and blocks until all of them have finished
// before returning. Callers use this as the shutdown gate for a role
// process.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.purgeCompleted()
		case <-ctx.Done():
			m.shutdown()
			return
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	all := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		all = append(all, t)
	}
	m.mu.Unlock()

	for _, t := range all {
		t.cancel()
	}
	for _, t := range all {
		<-t.done
	}

	m.log.Debug().Int("task_count", len(all)).Msg("all tasks drained")
}
