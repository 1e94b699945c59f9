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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue backend for single-binary deployments
// and tests. Messages are held in a buffered channel; redelivery is not
// governed by a true visibility timeout since there is only one process to
// deliver to — change_visibility/delete_message are no-ops as permitted by
// spec.md 4.5.
type MemoryQueue struct {
	waitMessageTime time.Duration
	capacity        int

	mu sync.Mutex
	ch chan Message
}

// NewMemoryQueue creates an in-memory Queue. capacity bounds the number of
// in-flight messages before SendMessage blocks.
func NewMemoryQueue(waitMessageTime time.Duration, capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		waitMessageTime: waitMessageTime,
		capacity:        capacity,
	}
}

func (q *MemoryQueue) Init(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch == nil {
		q.ch = make(chan Message, q.capacity)
	}
	return nil
}

func (q *MemoryQueue) SendMessage(ctx context.Context, msgType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: body}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) GetMessage(ctx context.Context) (*Message, error) {
	timer := time.NewTimer(q.waitMessageTime)
	defer timer.Stop()

	select {
	case msg := <-q.ch:
		return &msg, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ChangeVisibility is a no-op: a single-process queue has nothing to hide
// the message from.
func (q *MemoryQueue) ChangeVisibility(ctx context.Context, msg *Message, timeout time.Duration) error {
	return nil
}

// DeleteMessage is a no-op: once received, a memory-queue message is already
// gone from the channel and cannot be redelivered.
func (q *MemoryQueue) DeleteMessage(ctx context.Context, msg *Message) error {
	return nil
}

func (q *MemoryQueue) WaitMessageTime() time.Duration {
	return q.waitMessageTime
}

// ApproximateDepth returns the number of messages currently buffered in the
// channel. Exact for this backend, unlike SQS's estimate.
func (q *MemoryQueue) ApproximateDepth(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch), nil
}
