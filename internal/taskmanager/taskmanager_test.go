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

package taskmanager

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCreateTask_RunsAndCompletes(t *testing.T) {
	m := New(zerolog.Nop(), time.Hour)
	var ran atomic.Bool

	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		ran.Store(true)
	})

	ok := m.WaitForTasks(NoTask, time.Second, false)
	assert.True(t, ok)
	assert.True(t, ran.Load())
}

func TestCreateTask_PanicIsIsolated(t *testing.T) {
	m := New(zerolog.Nop(), time.Hour)
	var siblingRan atomic.Bool

	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		panic("boom")
	})
	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		siblingRan.Store(true)
	})

	ok := m.WaitForTasks(NoTask, time.Second, false)
	assert.True(t, ok)
	assert.True(t, siblingRan.Load())
}

func TestParentCompletionCancelsChildren(t *testing.T) {
	m := New(zerolog.Nop(), time.Hour)
	childCanceled := make(chan struct{})

	parent := m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		// parent returns immediately
	})

	m.CreateTask(context.Background(), parent, func(ctx context.Context) {
		<-ctx.Done()
		close(childCanceled)
	})

	select {
	case <-childCanceled:
	case <-time.After(time.Second):
		t.Fatal("child was not canceled after parent completed")
	}
}

func TestWaitForTasks_TimeoutWithoutCancel(t *testing.T) {
	m := New(zerolog.Nop(), time.Hour)
	release := make(chan struct{})

	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		<-release
	})

	ok := m.WaitForTasks(NoTask, 20*time.Millisecond, false)
	assert.False(t, ok)
	close(release)
}

func TestWaitForTasks_TimeoutWithCancel(t *testing.T) {
	m := New(zerolog.Nop(), time.Hour)
	canceled := make(chan struct{})

	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	})

	ok := m.WaitForTasks(NoTask, 20*time.Millisecond, true)
	assert.False(t, ok)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("task was not canceled on timeout")
	}
}

func TestRun_PurgesCompletedTasks(t *testing.T) {
	m := New(zerolog.Nop(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {})

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	m.mu.Lock()
	taskCount := len(m.tasks)
	m.mu.Unlock()
	assert.Equal(t, 0, taskCount)

	cancel()
	<-done
}

func TestRun_ShutdownCancelsAndDrainsRemainingTasks(t *testing.T) {
	m := New(zerolog.Nop(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Bool

	m.CreateTask(context.Background(), NoTask, func(ctx context.Context) {
		<-ctx.Done()
		finished.Store(true)
	})

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown")
	}
	assert.True(t, finished.Load())
}
