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

package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_SendAndGet(t *testing.T) {
	q := NewMemoryQueue(50*time.Millisecond, 10)
	ctx := context.Background()
	require.NoError(t, q.Init(ctx))

	err := q.SendMessage(ctx, TypeProcessMonitor, ProcessMonitorPayload{MonitorID: 42, Tasks: []string{TaskSearch}})
	require.NoError(t, err)

	msg, err := q.GetMessage(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, TypeProcessMonitor, msg.Type)

	var payload ProcessMonitorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, int64(42), payload.MonitorID)
	assert.Equal(t, []string{TaskSearch}, payload.Tasks)
}

func TestMemoryQueue_GetMessage_TimesOutWhenEmpty(t *testing.T) {
	q := NewMemoryQueue(20*time.Millisecond, 10)
	ctx := context.Background()
	require.NoError(t, q.Init(ctx))

	start := time.Now()
	msg, err := q.GetMessage(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryQueue_GetMessage_RespectsContextCancellation(t *testing.T) {
	q := NewMemoryQueue(time.Second, 10)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Init(ctx))

	cancel()
	_, err := q.GetMessage(ctx)
	assert.Error(t, err)
}

func TestMemoryQueue_DeleteAndChangeVisibilityAreNoops(t *testing.T) {
	q := NewMemoryQueue(10*time.Millisecond, 10)
	ctx := context.Background()
	require.NoError(t, q.Init(ctx))

	require.NoError(t, q.SendMessage(ctx, TypeRequest, RequestPayload{Action: ActionAlertSolve, Params: map[string]any{"target_id": 7}}))
	msg, err := q.GetMessage(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.NoError(t, q.ChangeVisibility(ctx, msg, 30*time.Second))
	assert.NoError(t, q.DeleteMessage(ctx, msg))
}

func TestMemoryQueue_WaitMessageTime(t *testing.T) {
	q := NewMemoryQueue(250*time.Millisecond, 1)
	assert.Equal(t, 250*time.Millisecond, q.WaitMessageTime())
}

func TestMemoryQueue_FIFOIsNotGuaranteedButDeliveryIs(t *testing.T) {
	q := NewMemoryQueue(20*time.Millisecond, 10)
	ctx := context.Background()
	require.NoError(t, q.Init(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, q.SendMessage(ctx, TypeProcessMonitor, ProcessMonitorPayload{MonitorID: int64(i)}))
	}

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		msg, err := q.GetMessage(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg)
		var payload ProcessMonitorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		seen[payload.MonitorID] = true
	}
	assert.Len(t, seen, 5)
}
