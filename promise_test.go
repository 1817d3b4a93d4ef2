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
	"runtime"
	"testing"
	"time"

	"github.com/asmsh/corofuture/internal/sched"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDetachFutureTwicePanics(t *testing.T) {
	p := NewPromise[int](context.Background())
	p.DetachFuture()
	require.Panics(t, func() { p.DetachFuture() })
}

func TestSetValueThenGet(t *testing.T) {
	ctx := context.Background()
	p := NewPromise[int](ctx)
	f := p.DetachFuture()
	p.SetValue(7)

	v, err := f.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestSetValueTwicePanics(t *testing.T) {
	p := NewPromise[int](context.Background())
	p.DetachFuture()
	p.SetValue(1)
	require.Panics(t, func() { p.SetValue(2) })
}

func TestDiscardWhilePendingBreaksPromise(t *testing.T) {
	ctx := context.Background()
	p := NewPromise[int](ctx)
	f := p.DetachFuture()

	p.Discard()

	require.True(t, f.Available())
	require.True(t, f.Failed())

	_, err := f.Get(ctx)
	require.Error(t, err)
	var fail *Failure
	require.ErrorAs(t, err, &fail)
	require.Equal(t, KindBrokenPromise, fail.Kind())
}

func TestDiscardAfterFulfillmentIsANoop(t *testing.T) {
	ctx := context.Background()
	p := NewPromise[int](ctx)
	f := p.DetachFuture()
	p.SetValue(9)
	p.Discard()
	p.Discard() // idempotent

	v, err := f.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 9, v)
}

func TestDiscardWithNoLinkedFutureDoesNothing(t *testing.T) {
	p := NewPromise[int](context.Background())
	require.NotPanics(t, func() { p.Discard() })
}

// TestFinalizerBreaksAbandonedPromise exercises the GC-triggered
// backstop for I6: a Promise dropped without an explicit Discard call
// still resolves its linked Future to a broken-promise failure.
func TestFinalizerBreaksAbandonedPromise(t *testing.T) {
	ctx := context.Background()
	var f *Future[int]
	func() {
		p := NewPromise[int](ctx)
		f = p.DetachFuture()
		// p becomes unreachable once this closure returns.
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return f.Available()
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, f.Failed())
	f.Ignore()
}

func TestPromiseNoGoroutineLeak(t *testing.T) {
	// Snapshot the goroutines already running (notably sched.Default's
	// worker, which lives for the whole test binary) so the later check
	// only sees what this test itself left behind.
	ignoreExisting := goleak.IgnoreCurrent()

	exec := sched.New()
	ctx := sched.WithExecutor(context.Background(), exec)

	p := NewPromise[int](ctx)
	f := p.DetachFuture()
	p.SetValue(1)
	_, _ = f.Get(ctx)

	exec.Close()
	goleak.VerifyNone(t, ignoreExisting)
}
