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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFailureCapturesStack(t *testing.T) {
	f := NewFailure(KindIOError, "disk full")
	require.Equal(t, KindIOError, f.Kind())
	require.Contains(t, f.Error(), "disk full")
	require.NotEmpty(t, f.StackTrace())
}

func TestFailureFromErrorWrapsPlainError(t *testing.T) {
	base := errors.New("boom")
	f := FailureFromError(base)
	require.Equal(t, KindUnspecified, f.Kind())
	require.Equal(t, base, f.Unwrap())
}

func TestFailureFromErrorPassesThroughFailure(t *testing.T) {
	orig := NewFailure(KindTimeout, "too slow")
	require.Same(t, orig, FailureFromError(orig))
}

func TestWithCauseChainsAndRootCause(t *testing.T) {
	root := NewFailure(KindIOError, "disk full")
	mid := NewFailure(KindUnspecified, "write failed").WithCause(root)
	top := NewFailure(KindUnspecified, "flush failed").WithCause(mid)

	require.Same(t, root, top.RootCause())
	require.ErrorIs(t, top, root)
}

func TestDroppedFailureLoggerOverride(t *testing.T) {
	var got *Failure
	SetDroppedFailureLogger(DroppedFailureLoggerFunc(func(f *Failure) { got = f }))
	defer SetDroppedFailureLogger(nil)

	f := NewFailure(KindUnspecified, "leaked")
	reportDroppedFailure(f)
	require.Same(t, f, got)
}
