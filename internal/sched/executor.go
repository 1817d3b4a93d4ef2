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

// Package sched is the task scheduler collaborator the core consumes:
// Enqueue, EnqueueUrgent, and NeedPreempt. It is a minimal single-threaded
// cooperative executor, not a general purpose work-stealing scheduler;
// its only job is to run continuations in order and let the core decide,
// via NeedPreempt, when it's safe to run one inline instead.
package sched

import (
	"container/list"
	"context"
	"sync"
)

// Task is a unit of work the Executor runs. Continuations attached to
// a Future are Tasks.
type Task interface {
	Run()
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func()

// Run implements Task.
func (f TaskFunc) Run() { f() }

// PreemptThreshold is the queue depth at which NeedPreempt starts
// reporting true, so long inline chains stop starving queued work.
// It's a package variable, not a constant, so tests can shrink it to
// exercise the non-inline path deterministically.
var PreemptThreshold = 8

// Executor is a single worker goroutine draining two FIFOs: normal and
// urgent. Urgent tasks are serviced ahead of normal ones, but that
// ordering is an optimization, not a correctness requirement: a task
// enqueued normally still runs, just not necessarily next.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	normal list.List
	urgent list.List
	closed bool
}

// New starts a new Executor and its worker goroutine. Call Close to
// stop it: already-queued tasks still run to completion, but any
// Enqueue/EnqueueUrgent made after Close is a silent no-op.
func New() *Executor {
	e := &Executor{}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

func (e *Executor) run() {
	for {
		e.mu.Lock()
		for e.urgent.Len() == 0 && e.normal.Len() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed && e.urgent.Len() == 0 && e.normal.Len() == 0 {
			e.mu.Unlock()
			return
		}
		var t Task
		if el := e.urgent.Front(); el != nil {
			t = e.urgent.Remove(el).(Task)
		} else {
			el := e.normal.Front()
			t = e.normal.Remove(el).(Task)
		}
		e.mu.Unlock()
		t.Run()
	}
}

// Enqueue appends task to the normal FIFO.
func (e *Executor) Enqueue(t Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.normal.PushBack(t)
	e.cond.Signal()
}

// EnqueueUrgent places task ahead of queued normal work.
func (e *Executor) EnqueueUrgent(t Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.urgent.PushBack(t)
	e.cond.Signal()
}

// NeedPreempt reports whether at least PreemptThreshold tasks are
// queued (urgent and normal together), so the caller should not run an
// arbitrarily long inline chain right now. A shorter queue reports false.
func (e *Executor) NeedPreempt() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.normal.Len()+e.urgent.Len() >= PreemptThreshold
}

// Close stops the worker goroutine once its queues drain. Safe to call
// more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Default is the package-level Executor used when callers don't build
// their own.
var Default = New()

// ctxKey is used to carry a non-default Executor through a context.Context.
type ctxKey struct{}

// WithExecutor returns a context carrying exec, overriding Default for
// any corofuture call that reads it via FromContext.
func WithExecutor(ctx context.Context, exec *Executor) context.Context {
	return context.WithValue(ctx, ctxKey{}, exec)
}

// FromContext returns the Executor carried by ctx, or Default.
func FromContext(ctx context.Context) *Executor {
	if ctx != nil {
		if e, ok := ctx.Value(ctxKey{}).(*Executor); ok {
			return e
		}
	}
	return Default
}
