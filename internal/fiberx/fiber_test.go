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

package fiberx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromContextNoneBound(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
	require.Nil(t, FromContext(nil))
}

func TestWithFiberRoundTrip(t *testing.T) {
	f := New()
	ctx := WithFiber(context.Background(), f)
	require.Same(t, f, FromContext(ctx))
}

func TestSwitchOutResumesOnSwitchIn(t *testing.T) {
	f := New()
	resumed := make(chan struct{})

	go func() {
		f.SwitchOut()
		close(resumed)
	}()

	time.Sleep(10 * time.Millisecond) // give the goroutine a chance to park
	f.SwitchIn()

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("fiber never resumed")
	}
}

func TestSwitchInBeforeSwitchOutIsNotLost(t *testing.T) {
	f := New()
	f.SwitchIn() // arrives before anyone is parked

	done := make(chan struct{})
	go func() {
		f.SwitchOut() // must not block forever
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("buffered wake was lost")
	}
}

func TestSwitchOutCtxTimesOut(t *testing.T) {
	f := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := f.SwitchOutCtx(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSwitchOutCtxResumesBeforeTimeout(t *testing.T) {
	f := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(5 * time.Millisecond)
		f.SwitchIn()
	}()

	require.NoError(t, f.SwitchOutCtx(ctx))
}

func TestSpawnBindsFiberAndBlocksUntilDone(t *testing.T) {
	var boundFiber *Fiber
	Spawn(context.Background(), func(ctx context.Context) {
		boundFiber = FromContext(ctx)
	})
	require.NotNil(t, boundFiber)
}
