/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package y holds small utilities shared by every package in the module:
// assertions, a leveled logger interface and an off-heap scratch buffer.
// None of it is domain-specific; it exists so the sstable, cache and vfs
// packages don't each reinvent the same handful of helpers.
package y

import (
	"context"
	"fmt"

	"golang.org/x/net/trace"
)

// EmptySlice is a shared zero-length byte slice, handed out instead of nil
// where callers might otherwise write `[]byte{}` in a hot loop.
var EmptySlice = []byte{}

// Trace attaches a lazily-formatted event to the trace.Trace found in
// ctx, if any. Used on the read path to record table opens, cache misses
// and filter rejections without paying formatting cost when nobody's
// watching.
func Trace(ctx context.Context, format string, args ...interface{}) {
	tr, ok := trace.FromContext(ctx)
	if !ok {
		return
	}
	tr.LazyPrintf(format, args...)
}

// AssertTrue panics if b is false. Reserved for invariants that must never
// be violated by correct callers (a programmer error), never for data or
// I/O errors, which must be returned instead.
func AssertTrue(b bool) {
	if !b {
		panic("Assert failed")
	}
}

// AssertTruef is AssertTrue with a formatted panic message.
func AssertTruef(b bool, format string, args ...interface{}) {
	if !b {
		panic(fmt.Sprintf("Assert failed: "+format, args...))
	}
}

// Check panics on a non-nil error. Reserved for paths that are truly
// unreachable in a correctly operating system (e.g. writing to an
// in-memory buffer); anything that can fail in production must return
// its error instead.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}

// Check2 discards its first argument and Checks the error, for chaining
// onto calls returning (T, error) where T isn't needed.
func Check2(_ interface{}, err error) {
	Check(err)
}
