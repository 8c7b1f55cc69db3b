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

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// entry is what actually lives inside the ristretto store. Its own
// refcount lets Release run a deleter only once every outstanding Handle
// (including ristretto's own internal reference) has let go, matching
// the block cache handle contract iterators depend on to keep a block
// alive across a Seek that might otherwise evict it.
type entry struct {
	key     []byte
	value   interface{}
	deleter func(key []byte, value interface{})

	mu       sync.Mutex
	refs     int32
	released bool
}

func (e *entry) retain() { atomic.AddInt32(&e.refs, 1) }

func (e *entry) release() {
	if atomic.AddInt32(&e.refs, -1) > 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	if e.deleter != nil {
		e.deleter(e.key, e.value)
	}
}

type ristrettoCache struct {
	store  *ristretto.Cache[uint64, *entry]
	nextID uint64
}

// NewRistrettoCache wraps a ristretto.Cache sized for maxCost total
// charge units (typically bytes) into a Cache. It's the block cache
// implementation table.Reader uses whenever Options.BlockCacheCapacity is
// positive.
func NewRistrettoCache(maxCost int64) (Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[uint64, *entry]{
		NumCounters: maxCost / 32 * 10, // ~10 counters per expected entry
		MaxCost:     maxCost,
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item[*entry]) {
			item.Value.release()
		},
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoCache{store: store}, nil
}

func (c *ristrettoCache) NewID() uint64 {
	return atomic.AddUint64(&c.nextID, 1)
}

func hashKey(key []byte) uint64 { return xxhash.Sum64(key) }

func (c *ristrettoCache) Insert(
	key []byte, value interface{}, charge int64, deleter func(key []byte, value interface{}),
) Handle {
	e := &entry{key: append([]byte(nil), key...), value: value, deleter: deleter, refs: 1}
	c.store.Set(hashKey(key), e, charge)
	return e
}

func (c *ristrettoCache) Lookup(key []byte) Handle {
	e, ok := c.store.Get(hashKey(key))
	if !ok {
		return nil
	}
	e.retain()
	return e
}

func (c *ristrettoCache) Value(handle Handle) interface{} {
	e, ok := handle.(*entry)
	if !ok || e == nil {
		return nil
	}
	return e.value
}

func (c *ristrettoCache) Release(handle Handle) {
	if e, ok := handle.(*entry); ok && e != nil {
		e.release()
	}
}
