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

// Package cache is the shared block cache every open table reads through.
// A Cache instance is safe to share across tables and goroutines; each
// table gets its own cache ID from NewID so its cache keys never collide
// with another table's, even though they share one underlying store.
package cache

// Handle is an opaque reference to a cached entry. It stays valid, and
// keeps its Value reachable, until Release is called on it exactly once.
type Handle interface{}

// Cache is the capability table.Reader needs from a block cache: an ID
// allocator so distinct tables sharing one cache never collide, and the
// usual insert/lookup/release trio.
type Cache interface {
	// NewID returns a cache ID unique to this Cache instance, for a table
	// to fold into every cache key it constructs.
	NewID() uint64
	// Insert adds value under key with the given charge against the
	// cache's capacity. deleter, if non-nil, runs when the entry is
	// finally evicted or overwritten, after every outstanding handle to
	// it has been released.
	Insert(key []byte, value interface{}, charge int64, deleter func(key []byte, value interface{})) Handle
	// Lookup returns the handle for key, or nil if it isn't cached.
	Lookup(key []byte) Handle
	// Value returns the value associated with handle. handle must have
	// come from Insert or Lookup on this Cache and must not have been
	// released yet.
	Value(handle Handle) interface{}
	// Release drops the caller's reference to handle. Must be called
	// exactly once per handle returned by Insert or Lookup.
	Release(handle Handle)
}
