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
	"os"
	"runtime"
	"sync"

	"github.com/asmsh/corofuture/internal/fiberx"
	"github.com/asmsh/corofuture/internal/sched"
	"github.com/asmsh/corofuture/internal/state"
)

// Future is the consumer side of a single value/failure hand-off.
// Every method that reads or composes its result is terminal: a
// Future may be consumed by at most one of Get, Then, ThenAsync,
// ThenWrapped, Finally, HandleFailure, HandleFailureOfKind, ForwardTo
// or Ignore. Available and Failed are the exception: they are plain
// observers and may be called any number of times before a terminal
// operation fires.
type Future[T any] struct {
	id      string // empty for a Future born already-resolved; see Promise.ID
	cell    *state.Cell[T]
	promise *Promise[T] // nil for a Future born already-resolved (ReadyValue/ReadyFailure/Lift*)
	exec    *sched.Executor

	mu       sync.Mutex
	consumed bool
	ignored  bool
	observed bool
}

// ReadyValue returns a Future already fulfilled with v.
func ReadyValue[T any](v T) *Future[T] {
	c := state.NewPending[T]()
	c.SetValue(v)
	f := &Future[T]{cell: c, exec: sched.Default}
	runtime.SetFinalizer(f, func(ff *Future[T]) { ff.checkDropped() })
	return f
}

// ReadyFailure returns a Future already resolved to f.
func ReadyFailure[T any](f *Failure) *Future[T] {
	c := state.NewPending[T]()
	c.SetFailure(f)
	nf := &Future[T]{cell: c, exec: sched.Default}
	runtime.SetFinalizer(nf, func(ff *Future[T]) { ff.checkDropped() })
	return nf
}

// ReadyFailureOf is a convenience wrapper around ReadyFailure that
// builds the Failure from a kind and message.
func ReadyFailureOf[T any](kind FailureKind, msg string) *Future[T] {
	return ReadyFailure[T](NewFailure(kind, msg))
}

// Available reports whether the future has settled, without consuming
// it.
func (f *Future[T]) Available() bool { return f.cell.Available() }

// Failed reports whether the future settled to a failure, without
// consuming it.
func (f *Future[T]) Failed() bool { return f.cell.Failed() }

func (f *Future[T]) markConsumed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumed {
		panic("corofuture: future already consumed (at most one terminal operation per future)")
	}
	f.consumed = true
}

// dispatch runs task inline if f is already available and the
// scheduler reports no other work pending; otherwise it attaches task
// as f's continuation, falling back to the same available-path
// decision if the cell becomes available before the attach completes
// (or if there's no promise to attach to).
func dispatch[T any](f *Future[T], task func()) {
	if f.cell.Available() {
		runOrEnqueue(f, task)
		return
	}
	if f.promise == nil || !f.promise.attachContinuation(sched.TaskFunc(task)) {
		runOrEnqueue(f, task)
	}
}

// runOrEnqueue runs task inline unless the executor reports other work
// pending, in which case it enqueues task instead of running it on the
// calling goroutine — so a long inline chain over already-ready
// futures still yields to other queued work, the same way the
// scheduled path would.
func runOrEnqueue[T any](f *Future[T], task func()) {
	if f.exec.NeedPreempt() {
		f.exec.Enqueue(sched.TaskFunc(task))
		return
	}
	task()
}

// chain is the shared engine behind Then, ThenAsync, ThenWrapped,
// Finally, HandleFailure and HandleFailureOfKind. transform receives
// this future's outcome and returns the Future its result should come
// from; chain forwards that Future's outcome into the new Promise it
// hands back, reusing ForwardTo's own inline-vs-scheduled dispatch so
// nested, not-yet-ready futures compose correctly.
func (f *Future[T]) chain(ctx context.Context, transform func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T]) *Future[T] {
	f.markConsumed()
	np := NewPromise[T](ctx)
	nf := np.DetachFuture()
	run := func() {
		v, fv, failed := f.cell.Take()
		var fail *Failure
		if failed {
			fail, _ = fv.(*Failure)
		}
		inner := transform(ctx, v, fail, failed)
		inner.ForwardTo(np)
	}
	dispatch(f, run)
	return nf
}

// Then chains cb to run once f is fulfilled with a value; a failure
// skips cb and is forwarded unchanged.
func (f *Future[T]) Then(ctx context.Context, cb func(ctx context.Context, v T) (T, error)) *Future[T] {
	return f.chain(ctx, func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T] {
		if failed {
			return ReadyFailure[T](fail)
		}
		return LiftValueArgs(func(v T) (T, error) { return cb(ctx, v) }, v)
	})
}

// ThenAsync is Then for a cb that itself returns a Future, i.e. the
// Lifter's already-async row applied at the call site: the returned
// Future's own outcome becomes this chain's outcome, without forcing
// cb to block for it.
func (f *Future[T]) ThenAsync(ctx context.Context, cb func(ctx context.Context, v T) (*Future[T], error)) *Future[T] {
	return f.chain(ctx, func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T] {
		if failed {
			return ReadyFailure[T](fail)
		}
		return LiftAsyncArgs(func(v T) (*Future[T], error) { return cb(ctx, v) }, v)
	})
}

// ThenWrapped chains cb to run unconditionally, receiving the value,
// the failure and a failed flag, whichever of the two settled.
func (f *Future[T]) ThenWrapped(ctx context.Context, cb func(ctx context.Context, v T, fail *Failure, failed bool) (T, error)) *Future[T] {
	type wrappedArgs struct {
		v      T
		fail   *Failure
		failed bool
	}
	return f.chain(ctx, func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T] {
		a := wrappedArgs{v, fail, failed}
		return LiftValueArgs(func(a wrappedArgs) (T, error) { return cb(ctx, a.v, a.fail, a.failed) }, a)
	})
}

// Finally runs cb unconditionally for its side effect alone. If cb
// fails, that failure takes precedence and carries the original
// outcome's failure (if any) as its cause; if cb succeeds, the
// original outcome is forwarded unchanged.
func (f *Future[T]) Finally(ctx context.Context, cb func(ctx context.Context) error) *Future[T] {
	return f.chain(ctx, func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T] {
		r := LiftEmptyArgs(func(ctx context.Context) error { return cb(ctx) }, ctx)
		if r.cell.Failed() {
			_, cfv, _ := r.cell.Take()
			cfail, _ := cfv.(*Failure)
			if failed {
				return ReadyFailure[T](cfail.WithCause(fail))
			}
			return ReadyFailure[T](cfail)
		}
		if failed {
			return ReadyFailure[T](fail)
		}
		return ReadyValue(v)
	})
}

// HandleFailure chains cb to run only if f fails, producing a
// replacement value/error for the downstream future; a fulfilled f is
// forwarded unchanged.
func (f *Future[T]) HandleFailure(ctx context.Context, cb func(ctx context.Context, fail *Failure) (T, error)) *Future[T] {
	return f.chain(ctx, func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T] {
		if !failed {
			return ReadyValue(v)
		}
		return LiftValueArgs(func(fail *Failure) (T, error) { return cb(ctx, fail) }, fail)
	})
}

// HandleFailureOfKind is HandleFailure restricted to failures of kind;
// any other outcome, including a failure of a different kind, is
// forwarded unchanged.
func (f *Future[T]) HandleFailureOfKind(ctx context.Context, kind FailureKind, cb func(ctx context.Context, fail *Failure) (T, error)) *Future[T] {
	return f.chain(ctx, func(ctx context.Context, v T, fail *Failure, failed bool) *Future[T] {
		if !failed {
			return ReadyValue(v)
		}
		if fail.Kind() != kind {
			return ReadyFailure[T](fail)
		}
		return LiftValueArgs(func(fail *Failure) (T, error) { return cb(ctx, fail) }, fail)
	})
}

// ForwardTo satisfies p with f's outcome. If f is already available
// and the scheduler reports no other work pending, p is resolved
// through the urgent path; otherwise f's eventual outcome is relayed
// to p once it settles.
func (f *Future[T]) ForwardTo(p *Promise[T]) {
	f.mu.Lock()
	alreadyConsumed := f.consumed
	f.consumed = true
	f.observed = true
	f.mu.Unlock()
	if alreadyConsumed {
		panic("corofuture: future already consumed (at most one terminal operation per future)")
	}

	run := func() {
		v, fv, failed := f.cell.Take()
		if failed {
			fail, _ := fv.(*Failure)
			p.setFailureUrgent(fail)
			return
		}
		p.setValueUrgent(v)
	}
	dispatch(f, run)
}

// wakeTask resumes the fiber parked on a doWait call. It's a named
// pointer type rather than a sched.TaskFunc closure so detachContinuation
// can compare it back by identity (func-typed interface values aren't
// comparable with ==).
type wakeTask struct {
	fiber *fiberx.Fiber
}

func (t *wakeTask) Run() { t.fiber.SwitchIn() }

// doWait implements the blocking-wait bridge: if f is already
// available it returns immediately; otherwise it obtains the fiber
// bound to ctx (failing with ErrNoFiber if none is bound), attaches a
// continuation that resumes the fiber, and switches the fiber out
// until that continuation runs.
func (f *Future[T]) doWait(ctx context.Context) error {
	if f.cell.Available() {
		return nil
	}
	fiber := fiberx.FromContext(ctx)
	if fiber == nil {
		return ErrNoFiber
	}
	if f.promise == nil {
		// No promise is linked and the cell is still pending: this can
		// only happen for a future born disconnected, which is always
		// born available, so this path is unreachable in practice; treat
		// it as a broken promise rather than hanging the fiber forever.
		f.cell.SetFailure(NewFailure(KindBrokenPromise, ErrBrokenPromise.message))
		return nil
	}
	task := &wakeTask{fiber: fiber}
	if !f.promise.attachContinuation(task) {
		return nil // lost the race: the cell settled before we attached
	}
	if err := fiber.SwitchOutCtx(ctx); err != nil {
		// The fiber gave up before the continuation ran: pull it back off
		// the promise so a later Wait/Get on the same Future can attach
		// its own continuation instead of tripping the at-most-one check.
		// If the cell resolved in the meantime anyway, this is a no-op.
		f.promise.detachContinuation(task)
		if err == context.DeadlineExceeded {
			return NewFailure(KindTimeout, err.Error())
		}
		return NewFailure(KindCanceled, err.Error())
	}
	return nil
}

// Get blocks (via the bound fiber) until f settles, then consumes it.
// If the wait itself fails (no fiber bound to ctx, or ctx done first),
// f is left unconsumed, so a later Get, Wait or Ignore may still follow.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	f.markConsumed()
	if err := f.doWait(ctx); err != nil {
		f.mu.Lock()
		f.consumed = false
		f.mu.Unlock()
		return zeroOf[T](), err
	}
	v, fv, failed := f.cell.Take()
	f.mu.Lock()
	f.observed = true
	f.mu.Unlock()
	if failed {
		fail, _ := fv.(*Failure)
		return zeroOf[T](), fail
	}
	return v, nil
}

// Wait blocks (via the bound fiber) until f settles, without consuming
// it; Available/Failed/Get remain usable afterward. Calling Wait from
// more than one goroutine concurrently on the same Future is not
// supported.
func (f *Future[T]) Wait(ctx context.Context) error {
	if f.cell.Available() {
		return nil
	}
	return f.doWait(ctx)
}

// Ignore consumes f, suppressing the I5 dropped-failure diagnostic
// that would otherwise fire if f settles to a failure nobody reads.
func (f *Future[T]) Ignore() {
	f.markConsumed()
	f.mu.Lock()
	f.ignored = true
	f.mu.Unlock()
	if f.cell.Available() {
		f.cell.Drop()
	}
}

func (f *Future[T]) checkDropped() {
	f.mu.Lock()
	ignored := f.ignored
	observed := f.observed
	f.mu.Unlock()
	if ignored || observed {
		return
	}
	if !f.cell.Failed() {
		return
	}
	_, fv, failed := f.cell.Observe()
	if !failed {
		return
	}
	if fail, ok := fv.(*Failure); ok {
		if f.id != "" {
			fail = NewFailure(fail.Kind(), fmt.Sprintf("%s (dropped from future %s)", fail.Error(), f.id)).WithCause(fail)
		}
		reportDroppedFailure(fail)
	}
}

// DiscardValue collapses f's value into Unit, keeping its failure
// outcome intact. It is a package-level function, not a method,
// because a Go method cannot introduce a type parameter distinct from
// its receiver's.
func DiscardValue[T any](f *Future[T]) *Future[Unit] {
	np := NewPromise[Unit](context.Background())
	nf := np.DetachFuture()
	run := func() {
		_, fv, failed := f.cell.Take()
		if failed {
			fail, _ := fv.(*Failure)
			np.SetFailure(fail)
			return
		}
		np.SetValue(Unit{})
	}
	f.markConsumed()
	dispatch(f, run)
	return nf
}

// TerminateFunc is invoked by OrTerminate when the wrapped future
// fails. The default implementation logs the failure and exits the
// process, matching a fatal, unrecoverable I/O setup failure; tests
// that need to observe the outcome instead of exiting should supply
// their own via OrTerminate's variadic parameter.
type TerminateFunc func(f *Failure)

var defaultTerminate TerminateFunc = func(f *Failure) {
	fmt.Fprintf(os.Stderr, "corofuture: or_terminate: %+v\n", f)
	os.Exit(1)
}

// OrTerminate consumes f: on success it resolves to Unit; on failure
// it invokes term (or the process-exiting default) and, if term
// returns instead of exiting, resolves to the same failure.
func OrTerminate[T any](f *Future[T], term ...TerminateFunc) *Future[Unit] {
	t := defaultTerminate
	if len(term) > 0 && term[0] != nil {
		t = term[0]
	}
	np := NewPromise[Unit](context.Background())
	nf := np.DetachFuture()
	run := func() {
		_, fv, failed := f.cell.Take()
		if !failed {
			np.SetValue(Unit{})
			return
		}
		fail, _ := fv.(*Failure)
		t(fail)
		np.SetFailure(fail)
	}
	f.markConsumed()
	dispatch(f, run)
	return nf
}

// Spawn runs fn in its own fiber-bound goroutine and blocks the
// calling goroutine until fn returns, the way a test or a top-level
// caller bridges into fiber-bearing code that calls Get/Wait.
func Spawn(ctx context.Context, fn func(ctx context.Context)) {
	fiberx.Spawn(ctx, fn)
}
