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
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/y"
)

// defaultRestartInterval is how many entries a BlockBuilder emits at full
// prefix compression before resetting to a fresh restart point.
const defaultRestartInterval = 16

// BlockBuilder assembles one data or index block: a sorted run of entries,
// each sharing a varint-coded prefix with its predecessor, plus a trailing
// restart array that lets a reader binary-search into the block without
// decoding it from the front.
type BlockBuilder struct {
	restartInterval int
	buf             y.ScratchBuffer
	restarts        []uint32
	counter         int
	lastKey         []byte
	finished        bool
}

// NewBlockBuilder returns a builder that resets prefix compression every
// restartInterval entries. A restartInterval of 1 disables prefix sharing
// entirely, which the table builder uses for its index block so that
// every entry is independently seekable.
func NewBlockBuilder(restartInterval int) *BlockBuilder {
	if restartInterval < 1 {
		restartInterval = defaultRestartInterval
	}
	b := &BlockBuilder{restartInterval: restartInterval, buf: *y.NewScratchBuffer(0)}
	b.Reset()
	return b
}

// Reset clears the builder back to empty, ready to build another block.
func (b *BlockBuilder) Reset() {
	b.buf.Reset()
	b.restarts = b.restarts[:0]
	b.restarts = append(b.restarts, 0)
	b.counter = 0
	b.lastKey = b.lastKey[:0]
	b.finished = false
}

// Empty reports whether any entry has been added since the last Reset.
func (b *BlockBuilder) Empty() bool { return b.buf.Len() == 0 }

// Release returns the builder's off-heap scratch memory to the allocator.
// The builder must not be used again afterwards.
func (b *BlockBuilder) Release() { b.buf.Release() }

// Add appends (key, value) to the block. Keys must be added in strictly
// increasing order; the caller (table.Builder) is responsible for
// enforcing that invariant, since this type has no comparator of its own.
func (b *BlockBuilder) Add(key, value []byte) {
	y.AssertTruef(!b.finished, "Add called after Finish")

	shared := 0
	if b.counter < b.restartInterval {
		shared = sharedPrefixLen(b.lastKey, key)
	} else {
		b.restarts = append(b.restarts, uint32(b.buf.Len()))
		b.counter = 0
	}
	unshared := key[shared:]

	var hdr [3 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(shared))
	n += binary.PutUvarint(hdr[n:], uint64(len(unshared)))
	n += binary.PutUvarint(hdr[n:], uint64(len(value)))
	b.buf.Write(hdr[:n])
	b.buf.Write(unshared)
	b.buf.Write(value)

	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
}

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// CurrentSizeEstimate returns the byte size the block would have if
// Finished right now.
func (b *BlockBuilder) CurrentSizeEstimate() int {
	return b.buf.Len() + len(b.restarts)*4 + 4
}

// Finish appends the restart array and count, and returns the complete
// block body. The builder must not be used again without an intervening
// Reset.
func (b *BlockBuilder) Finish() []byte {
	for _, r := range b.restarts {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], r)
		b.buf.Write(tmp[:])
	}
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(b.restarts)))
	b.buf.Write(tmp[:])
	b.finished = true
	return b.buf.Bytes()
}

// Block is a parsed, immutable data or index block ready for iteration.
type Block struct {
	data          []byte
	restartOffset int
	numRestarts   int
}

// NewBlock parses the trailing restart array out of data and validates
// enough of the framing to iterate safely.
func NewBlock(data []byte) (*Block, error) {
	if len(data) < 4 {
		return nil, errors.Wrap(ErrCorruption, "block shorter than restart count")
	}
	numRestarts := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	maxRestarts := (len(data) - 4) / 4
	if numRestarts > maxRestarts {
		return nil, errors.Wrap(ErrCorruption, "restart count exceeds block size")
	}
	restartOffset := len(data) - 4 - numRestarts*4
	return &Block{data: data, restartOffset: restartOffset, numRestarts: numRestarts}, nil
}

// Size returns the raw byte size of the block, the charge a block cache
// should assign it.
func (blk *Block) Size() int { return len(blk.data) }

func (blk *Block) restart(i int) uint32 {
	return binary.LittleEndian.Uint32(blk.data[blk.restartOffset+i*4:])
}

// decodedEntry is one parsed (key, value) pair together with the offset of
// the entry immediately following it, so the iterator can step without
// re-parsing.
type decodedEntry struct {
	key      []byte
	value    []byte
	nextOff  int
	tooShort bool
}

// decodeEntryAt parses the entry starting at offset off, given the
// preceding key (used to reconstruct a shared prefix, or nil at a restart
// point where shared must be 0).
func (blk *Block) decodeEntryAt(off int, prevKey []byte) (decodedEntry, error) {
	if off >= blk.restartOffset {
		return decodedEntry{}, errors.Wrap(ErrCorruption, "entry offset past restart array")
	}
	p := blk.data[off:blk.restartOffset]
	shared, n1 := binary.Uvarint(p)
	if n1 <= 0 {
		return decodedEntry{}, errors.Wrap(ErrCorruption, "bad shared-prefix varint")
	}
	p = p[n1:]
	unshared, n2 := binary.Uvarint(p)
	if n2 <= 0 {
		return decodedEntry{}, errors.Wrap(ErrCorruption, "bad unshared-length varint")
	}
	p = p[n2:]
	valueLen, n3 := binary.Uvarint(p)
	if n3 <= 0 {
		return decodedEntry{}, errors.Wrap(ErrCorruption, "bad value-length varint")
	}
	p = p[n3:]
	if uint64(len(prevKey)) < shared {
		return decodedEntry{}, errors.Wrap(ErrCorruption, "shared prefix longer than previous key")
	}
	if uint64(len(p)) < unshared+valueLen {
		return decodedEntry{}, errors.Wrap(ErrCorruption, "truncated entry")
	}
	key := make([]byte, 0, shared+unshared)
	key = append(key, prevKey[:shared]...)
	key = append(key, p[:unshared]...)
	value := p[unshared : unshared+valueLen]

	headerLen := n1 + n2 + n3
	nextOff := off + headerLen + int(unshared) + int(valueLen)
	return decodedEntry{key: key, value: value, nextOff: nextOff}, nil
}

// Iterator returns a bidirectional cursor over the block's entries,
// ordered according to cmp.
func (blk *Block) Iterator(cmp internalkey.Comparator) *BlockIterator {
	return &BlockIterator{block: blk, cmp: cmp, current: blk.restartOffset}
}

// BlockIterator walks the entries of a Block. It implements y.Iterator.
type BlockIterator struct {
	block   *Block
	cmp     internalkey.Comparator
	current int // byte offset of the current entry, or restartOffset if invalid
	key     []byte
	value   []byte
	err     error
}

var _ y.Iterator = (*BlockIterator)(nil)

func (it *BlockIterator) Valid() bool { return it.err == nil && it.current < it.block.restartOffset }
func (it *BlockIterator) Key() []byte   { return it.key }
func (it *BlockIterator) Value() []byte { return it.value }
func (it *BlockIterator) Error() error  { return it.err }
func (it *BlockIterator) Close() error  { return nil }

func (it *BlockIterator) setInvalid() {
	it.current = it.block.restartOffset
	it.key, it.value = nil, nil
}

func (it *BlockIterator) fail(err error) {
	it.err = err
	it.setInvalid()
}

// seekToRestart positions the iterator exactly at restart point i (a
// restart point always has shared==0, so decoding it needs no prevKey).
func (it *BlockIterator) seekToRestart(i int) {
	off := int(it.block.restart(i))
	e, err := it.block.decodeEntryAt(off, nil)
	if err != nil {
		it.fail(err)
		return
	}
	it.current = off
	it.key, it.value = e.key, e.value
}

func (it *BlockIterator) SeekToFirst() {
	if it.block.numRestarts == 0 {
		it.setInvalid()
		return
	}
	it.seekToRestart(0)
}

func (it *BlockIterator) SeekToLast() {
	if it.block.numRestarts == 0 {
		it.setInvalid()
		return
	}
	it.seekToRestart(it.block.numRestarts - 1)
	for it.Valid() {
		next := it.peekNextOffset()
		if next >= it.block.restartOffset {
			break
		}
		it.stepTo(next)
	}
}

// peekNextOffset returns the byte offset following the current entry
// without disturbing iterator state.
func (it *BlockIterator) peekNextOffset() int {
	e, err := it.block.decodeEntryAt(it.current, it.key)
	if err != nil {
		it.fail(err)
		return it.block.restartOffset
	}
	return e.nextOff
}

// stepTo decodes and installs the entry at byte offset off, using the
// iterator's current key as the shared-prefix base.
func (it *BlockIterator) stepTo(off int) {
	e, err := it.block.decodeEntryAt(off, it.key)
	if err != nil {
		it.fail(err)
		return
	}
	it.current = off
	it.key, it.value = e.key, e.value
}

func (it *BlockIterator) Next() {
	if !it.Valid() {
		return
	}
	next := it.peekNextOffset()
	if next >= it.block.restartOffset {
		it.setInvalid()
		return
	}
	it.stepTo(next)
}

func (it *BlockIterator) Prev() {
	if !it.Valid() {
		return
	}
	// Find the restart point strictly before the current entry, then
	// replay forward from there until the next entry would reach target.
	target := it.current
	restart, ok := it.restartIndexBefore(target)
	if !ok {
		it.setInvalid()
		return
	}
	it.seekToRestart(restart)
	if !it.Valid() {
		return
	}
	for {
		next := it.peekNextOffset()
		if !it.Valid() || next >= target {
			break
		}
		it.stepTo(next)
	}
}

// restartIndexBefore returns the index of the last restart point whose
// offset is strictly less than target, or ok=false if target is at or
// before the block's first entry.
func (it *BlockIterator) restartIndexBefore(target int) (int, bool) {
	if target <= int(it.block.restart(0)) {
		return 0, false
	}
	lo, hi := 0, it.block.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int(it.block.restart(mid)) < target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, true
}

// Seek positions the iterator at the first entry with key >= target,
// binary-searching restart points then scanning linearly within the
// bracketing range.
func (it *BlockIterator) Seek(target []byte) {
	if it.block.numRestarts == 0 {
		it.setInvalid()
		return
	}
	lo, hi := 0, it.block.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		it.seekToRestart(mid)
		if !it.Valid() {
			return
		}
		if it.cmp.Compare(it.key, target) < 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	it.seekToRestart(lo)
	for it.Valid() && it.cmp.Compare(it.key, target) < 0 {
		it.Next()
	}
}
