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

package cache

import "sync/atomic"

// disabledCache never retains anything: Insert hands back a handle whose
// Value is readable until Release, Release runs the deleter, and Lookup
// always misses. Used when Options.BlockCacheCapacity is zero or less, so
// table.Reader can go through the same Cache-shaped code path without a
// cache actually behind it.
type disabledCache struct {
	nextID uint64
}

// NewDisabledCache returns a Cache that performs no caching at all.
func NewDisabledCache() Cache { return &disabledCache{} }

func (c *disabledCache) NewID() uint64 { return atomic.AddUint64(&c.nextID, 1) }

type disabledHandle struct {
	key     []byte
	value   interface{}
	deleter func(key []byte, value interface{})
}

func (c *disabledCache) Insert(
	key []byte, value interface{}, charge int64, deleter func(key []byte, value interface{}),
) Handle {
	return &disabledHandle{key: key, value: value, deleter: deleter}
}

func (c *disabledCache) Lookup(key []byte) Handle { return nil }

func (c *disabledCache) Value(handle Handle) interface{} {
	h, ok := handle.(*disabledHandle)
	if !ok || h == nil {
		return nil
	}
	return h.value
}

func (c *disabledCache) Release(handle Handle) {
	h, ok := handle.(*disabledHandle)
	if !ok || h == nil {
		return
	}
	if h.deleter != nil {
		h.deleter(h.key, h.value)
	}
}
