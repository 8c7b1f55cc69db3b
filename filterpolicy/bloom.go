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

package filterpolicy

import "github.com/cockroachdb/pebble/leveldb/bloom"

// bloomPolicy is the classic single-bitset, double-hashed Bloom filter:
// one array of m bits shared by all keys in a filter, k probes per key
// derived from two real hashes via Kirsch-Mitzenmacher double hashing.
// The last byte of the encoded filter stores k itself, so a filter built
// with one bitsPerKey setting can still be probed correctly even if the
// policy's default later changes. The bit-twiddling itself is
// pebble's leveldb/bloom package, which implements this exact wire
// format (same hash, same double-hashing delta, same trailing k byte).
type bloomPolicy struct {
	bitsPerKey int
}

// NewBloomPolicy returns a FilterPolicy that targets roughly bitsPerKey
// bits of filter per key added. 10 bits per key gives about a 1% false
// positive rate, the same default LevelDB ships with.
func NewBloomPolicy(bitsPerKey int) FilterPolicy {
	if bitsPerKey < 1 {
		bitsPerKey = 1
	}
	return &bloomPolicy{bitsPerKey: bitsPerKey}
}

func (p *bloomPolicy) Name() string { return "leveldb.BuiltinBloomFilter" }

func (p *bloomPolicy) CreateFilter(keys [][]byte) []byte {
	return bloom.NewFilter(nil, keys, p.bitsPerKey)
}

func (p *bloomPolicy) KeyMayMatch(key, filter []byte) bool {
	return bloom.Filter(filter).MayContain(key)
}
