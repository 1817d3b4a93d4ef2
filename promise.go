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

package corofuture

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/asmsh/corofuture/internal/sched"
	"github.com/asmsh/corofuture/internal/state"
)

// Promise is the producer side of a single value/failure hand-off. It
// holds the Value Cell until either the cell is fulfilled or the
// Promise is discarded, and (once DetachFuture is called) a back
// pointer to its Future, needed to detect a broken promise and to
// receive a continuation the Future side attaches.
type Promise[T any] struct {
	id   string
	mu   sync.Mutex
	cell *state.Cell[T]
	exec *sched.Executor

	future    *Future[T]
	cont      sched.Task
	detached  bool
	discarded bool
}

// NewPromise returns a new, pending Promise. The Executor used to run
// any continuation later attached to it is read from ctx (sched.Default
// if ctx carries none). Each Promise gets a random id, used only to
// make the I5/I6 diagnostics below traceable across a process with
// many promises in flight at once.
func NewPromise[T any](ctx context.Context) *Promise[T] {
	p := &Promise[T]{
		id:   uuid.NewString(),
		cell: state.NewPending[T](),
		exec: sched.FromContext(ctx),
	}
	runtime.SetFinalizer(p, func(pp *Promise[T]) { pp.Discard() })
	return p
}

// ID returns the random id assigned to p at creation, for correlating
// log lines (dropped-failure, broken-promise) back to a specific
// promise/future pair.
func (p *Promise[T]) ID() string { return p.id }

// DetachFuture returns the Future linked to p. It may be called at
// most once per Promise.
func (p *Promise[T]) DetachFuture() *Future[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached {
		panic("corofuture: DetachFuture called more than once on the same promise")
	}
	p.detached = true
	f := &Future[T]{id: p.id, cell: p.cell, promise: p, exec: p.exec}
	p.future = f
	runtime.SetFinalizer(f, func(ff *Future[T]) { ff.checkDropped() })
	return f
}

// SetValue fulfills the promise with v. Precondition: not yet resolved.
func (p *Promise[T]) SetValue(v T) {
	p.resolve(v, nil, false, false)
}

// SetFailure fulfills the promise with f. Precondition: not yet resolved.
func (p *Promise[T]) SetFailure(f *Failure) {
	p.resolve(zeroOf[T](), f, true, false)
}

func (p *Promise[T]) setValueUrgent(v T) {
	p.resolve(v, nil, false, true)
}

func (p *Promise[T]) setFailureUrgent(f *Failure) {
	p.resolve(zeroOf[T](), f, true, true)
}

// resolve writes the terminal outcome into the cell and, if a
// continuation was already attached, hands the cell to it via the
// scheduler: EnqueueUrgent when urgent fulfillment is requested and
// the scheduler reports no other work pending, Enqueue otherwise.
func (p *Promise[T]) resolve(v T, f *Failure, failed, urgent bool) {
	if failed {
		p.cell.SetFailure(f)
	} else {
		p.cell.SetValue(v)
	}

	p.mu.Lock()
	cont := p.cont
	p.cont = nil
	p.mu.Unlock()

	if cont == nil {
		return
	}
	p.cell.SetOwner(state.OwnerContinuation)
	if urgent && !p.exec.NeedPreempt() {
		p.exec.EnqueueUrgent(cont)
	} else {
		p.exec.Enqueue(cont)
	}
}

// attachContinuation attaches task to run once p resolves. It reports
// false, attaching nothing, if the cell has already become available
// by the time the attempt is made (the caller must then handle the
// available cell itself, as if it had been available all along).
func (p *Promise[T]) attachContinuation(task sched.Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cell.Available() {
		return false
	}
	if p.cont != nil {
		panic("corofuture: internal: at most one continuation may be attached to a future")
	}
	p.cont = task
	return true
}

// detachContinuation removes task from p if it is still the attached
// continuation (i.e. the cell hasn't resolved and handed it to the
// scheduler yet). Called when a fiber gives up waiting on task before
// it ran, so a later wait can attach a fresh one. A no-op if task has
// already been claimed by resolve.
func (p *Promise[T]) detachContinuation(task sched.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cont == task {
		p.cont = nil
	}
}

// Discard marks p as no longer needed. If it is still pending and has
// a linked Future, the Future is resolved to a broken-promise failure
// (I6). Safe to call more than once; also installed as a finalizer, so
// a Promise dropped by the garbage collector without being explicitly
// discarded still honors I6.
func (p *Promise[T]) Discard() {
	p.mu.Lock()
	if p.discarded {
		p.mu.Unlock()
		return
	}
	p.discarded = true
	pending := p.cell.Load() == state.Pending
	hasFuture := p.future != nil
	p.mu.Unlock()

	if pending && hasFuture {
		msg := fmt.Sprintf("%s (promise %s)", ErrBrokenPromise.message, p.id)
		p.resolve(zeroOf[T](), NewFailure(KindBrokenPromise, msg), true, false)
	}
}

func zeroOf[T any]() T {
	var z T
	return z
}
