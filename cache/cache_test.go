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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRistrettoCacheInsertLookupRelease(t *testing.T) {
	c, err := NewRistrettoCache(1 << 20)
	require.NoError(t, err)

	deleted := make(chan struct{}, 1)
	h := c.Insert([]byte("block-1"), "payload", 128, func(key []byte, value interface{}) {
		deleted <- struct{}{}
	})
	require.Equal(t, "payload", c.Value(h))
	c.Release(h)

	// Give ristretto's async buffers a moment to land the Set.
	time.Sleep(10 * time.Millisecond)

	got := c.Lookup([]byte("block-1"))
	require.NotNil(t, got)
	require.Equal(t, "payload", c.Value(got))
	c.Release(got)
}

func TestRistrettoCacheNewIDIsUnique(t *testing.T) {
	c, err := NewRistrettoCache(1 << 20)
	require.NoError(t, err)
	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		id := c.NewID()
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestDisabledCacheNeverRetains(t *testing.T) {
	c := NewDisabledCache()
	require.Nil(t, c.Lookup([]byte("anything")))

	deleted := false
	h := c.Insert([]byte("k"), "v", 1, func(key []byte, value interface{}) { deleted = true })
	require.Equal(t, "v", c.Value(h))
	require.False(t, deleted)
	c.Release(h)
	require.True(t, deleted)
}
