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

package table

import (
	"context"
	"encoding/binary"

	"github.com/sausheong/gsst/filterpolicy"
	"github.com/sausheong/gsst/y"
)

// filterBaseLg is the log2 of the byte range of a data block that shares
// one filter: a new filter is generated every 2KiB of data-block bytes,
// independent of how those bytes are split across blocks.
const filterBaseLg = 11

// FilterBlockBuilder accumulates keys as they're added to data blocks and,
// on demand, emits one filter bitmap per 2KiB range of block-start
// offsets. Calls must follow (StartBlock AddKey*)* Finish.
type FilterBlockBuilder struct {
	policy filterpolicy.FilterPolicy

	keys        y.ScratchBuffer
	starts      []int
	result      y.ScratchBuffer
	filterStart []uint32
}

// NewFilterBlockBuilder returns a builder that generates filters with
// policy.
func NewFilterBlockBuilder(policy filterpolicy.FilterPolicy) *FilterBlockBuilder {
	return &FilterBlockBuilder{policy: policy, keys: *y.NewScratchBuffer(0), result: *y.NewScratchBuffer(0)}
}

// Release returns the builder's off-heap scratch memory to the allocator.
// The builder must not be used again afterwards.
func (b *FilterBlockBuilder) Release() {
	b.keys.Release()
	b.result.Release()
}

// StartBlock signals that a new data block begins at blockOffset. Any
// filter index gap between the last StartBlock and this one is filled
// with empty filters covering no keys.
func (b *FilterBlockBuilder) StartBlock(blockOffset uint64) {
	filterIndex := blockOffset >> filterBaseLg
	for uint64(len(b.filterStart)) < filterIndex {
		b.generateFilter()
	}
}

// AddKey records key as belonging to the filter currently under
// construction.
func (b *FilterBlockBuilder) AddKey(key []byte) {
	b.starts = append(b.starts, b.keys.Len())
	b.keys.Write(key)
}

// Finish generates any pending filter and returns the complete filter
// block bytes. The builder must not be reused afterwards.
func (b *FilterBlockBuilder) Finish() []byte {
	if len(b.starts) > 0 {
		b.generateFilter()
	}
	arrayOffset := uint32(b.result.Len())
	for _, off := range b.filterStart {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], off)
		b.result.Write(tmp[:])
	}
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], arrayOffset)
	b.result.Write(tmp[:])
	b.result.Write([]byte{filterBaseLg})
	return b.result.Bytes()
}

func (b *FilterBlockBuilder) generateFilter() {
	if len(b.starts) == 0 {
		b.filterStart = append(b.filterStart, uint32(b.result.Len()))
		return
	}
	b.starts = append(b.starts, b.keys.Len())
	keyBytes := b.keys.Bytes()
	keys := make([][]byte, len(b.starts)-1)
	for i := 0; i < len(keys); i++ {
		keys[i] = keyBytes[b.starts[i]:b.starts[i+1]]
	}
	b.filterStart = append(b.filterStart, uint32(b.result.Len()))
	b.result.Write(b.policy.CreateFilter(keys))

	b.keys.Reset()
	b.starts = b.starts[:0]
}

// FilterBlockReader answers KeyMayMatch queries against a parsed filter
// block.
type FilterBlockReader struct {
	policy filterpolicy.FilterPolicy
	data   []byte
	offset []byte // the offset array, sliced out of data
	num    int
	baseLg byte
}

// NewFilterBlockReader parses contents (as produced by
// FilterBlockBuilder.Finish) into a reader. A malformed or too-short
// block yields a reader that treats every query as a possible match,
// matching the "errors are potential matches" policy for a corrupt or
// absent filter block.
func NewFilterBlockReader(policy filterpolicy.FilterPolicy, contents []byte) *FilterBlockReader {
	n := len(contents)
	if n < 5 {
		return &FilterBlockReader{}
	}
	baseLg := contents[n-1]
	arrayOffset := binary.LittleEndian.Uint32(contents[n-5:])
	if uint64(arrayOffset) > uint64(n-5) {
		return &FilterBlockReader{}
	}
	num := (n - 5 - int(arrayOffset)) / 4
	return &FilterBlockReader{
		policy: policy,
		data:   contents,
		offset: contents[arrayOffset : n-5],
		num:    num,
		baseLg: baseLg,
	}
}

// KeyMayMatch reports whether key might appear in the data block starting
// at blockOffset. A definite negative is traced on ctx's event log, since
// it's the one outcome that lets a caller skip a block read entirely.
func (r *FilterBlockReader) KeyMayMatch(ctx context.Context, blockOffset uint64, key []byte) bool {
	if r.policy == nil {
		return true
	}
	index := blockOffset >> r.baseLg
	if index >= uint64(r.num) {
		return true
	}
	start := binary.LittleEndian.Uint32(r.offset[index*4:])
	limit := binary.LittleEndian.Uint32(r.offset[index*4+4:])
	if start > limit || uint64(limit) > uint64(len(r.data)) {
		return true
	}
	if start == limit {
		y.Trace(ctx, "filter: block at offset %d has an empty filter, key %q rejected", blockOffset, key)
		return false
	}
	if r.policy.KeyMayMatch(key, r.data[start:limit]) {
		return true
	}
	y.Trace(ctx, "filter: %s rejected key %q for block at offset %d", r.policy.Name(), key, blockOffset)
	return false
}
