// Copyright 2024 Ahmad Sameh(asmsh)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutorRunsEnqueuedTasks(t *testing.T) {
	e := New()
	defer e.Close()

	done := make(chan struct{})
	e.Enqueue(TaskFunc(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestExecutorUrgentRunsAheadOfNormal(t *testing.T) {
	e := New()
	defer e.Close()

	// Block the worker goroutine so both queues build up before either drains.
	block := make(chan struct{})
	e.Enqueue(TaskFunc(func() { <-block }))

	var mu sync.Mutex
	var order []string
	normalDone := make(chan struct{})
	urgentDone := make(chan struct{})

	e.Enqueue(TaskFunc(func() {
		mu.Lock()
		order = append(order, "normal")
		mu.Unlock()
		close(normalDone)
	}))
	e.EnqueueUrgent(TaskFunc(func() {
		mu.Lock()
		order = append(order, "urgent")
		mu.Unlock()
		close(urgentDone)
	}))

	close(block)
	<-normalDone
	<-urgentDone

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"urgent", "normal"}, order)
}

func TestNeedPreemptReflectsQueueDepth(t *testing.T) {
	e := New()
	defer e.Close()

	old := PreemptThreshold
	PreemptThreshold = 2
	defer func() { PreemptThreshold = old }()

	require.False(t, e.NeedPreempt())

	block := make(chan struct{})
	e.Enqueue(TaskFunc(func() { <-block }))
	e.Enqueue(TaskFunc(func() {}))
	e.Enqueue(TaskFunc(func() {}))

	require.Eventually(t, func() bool {
		return e.NeedPreempt()
	}, time.Second, time.Millisecond)

	close(block)
}

func TestWithExecutorAndFromContext(t *testing.T) {
	require.Same(t, Default, FromContext(context.Background()))

	e := New()
	defer e.Close()
	ctx := WithExecutor(context.Background(), e)
	require.Same(t, e, FromContext(ctx))
}

func TestCloseStopsWorker(t *testing.T) {
	e := New()
	e.Close()
	e.Close() // idempotent

	// enqueue after close is a silent no-op, not a panic or a hang.
	e.Enqueue(TaskFunc(func() {}))
	e.EnqueueUrgent(TaskFunc(func() {}))
}
