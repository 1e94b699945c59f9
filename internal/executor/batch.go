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
	"time"

	"github.com/sentinela-io/sentinela/internal/taskmanager"
)

// runBatch runs items concurrently, bounded by concurrency, through the
// TaskManager for panic isolation, and waits up to timeout for all of them
// to finish (spec.md 4.2.1's "bounded concurrency executor_concurrency" for
// Issue updates and Reaction dispatch). It returns false if the batch timed
// out, in which case any items still running were canceled.
func (e *Executor) runBatch(ctx context.Context, concurrency int, timeout time.Duration, items []func(context.Context)) bool {
	if len(items) == 0 {
		return true
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	batchCtx, cancelBatch := context.WithCancel(ctx)
	defer cancelBatch()

	batchID := e.taskManager.CreateTask(batchCtx, taskmanager.NoTask, func(taskCtx context.Context) {
		<-taskCtx.Done()
	})

	sem := make(chan struct{}, concurrency)
	for _, item := range items {
		item := item
		e.taskManager.CreateTask(ctx, batchID, func(taskCtx context.Context) {
			select {
			case sem <- struct{}{}:
			case <-taskCtx.Done():
				return
			}
			defer func() { <-sem }()
			item(taskCtx)
		})
	}

	return e.taskManager.WaitForTasks(batchID, timeout, true)
}
