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

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sausheong/gsst/filterpolicy"
	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/y"
)

// indexBlockRestartInterval is fixed at 1: every index entry is a
// separator key that must be independently seekable, so sharing prefixes
// between them would only slow lookups down for no space benefit worth
// having (index blocks are already tiny relative to data blocks).
const indexBlockRestartInterval = 1

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	Comparator      internalkey.Comparator
	FilterPolicy    filterpolicy.FilterPolicy // nil disables filters
	BlockSize       int
	BlockRestartInterval int
	Compression     CompressionType
}

// DefaultBuilderOptions returns the options a Builder uses when none are
// supplied: 4KiB blocks, a restart every 16 entries, snappy compression,
// and a 10-bits-per-key bloom filter.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Comparator:           internalkey.NewInternalComparator(internalkey.BytewiseComparator),
		FilterPolicy:         filterpolicy.NewBloomPolicy(10),
		BlockSize:            4096,
		BlockRestartInterval: defaultRestartInterval,
		Compression:          SnappyCompression,
	}
}

// Builder drives the block, filter and index builders to assemble a
// complete table file. Keys passed to Add must already be internal keys
// (user_key || seq_and_type) in strictly increasing order under
// opts.Comparator.
type Builder struct {
	opts   BuilderOptions
	file   WritableFile
	offset uint64

	dataBlock  *BlockBuilder
	indexBlock *BlockBuilder
	filter     *FilterBlockBuilder

	lastKey          []byte
	numEntries       int64
	closed           bool
	pendingIndex     bool
	pendingHandle    BlockHandle

	status error
}

// WritableFile is the sink a Builder writes its serialized bytes to; it's
// declared here (rather than imported from vfs) so table has no import
// dependency on vfs, only a duck-typed one satisfied by
// vfs.WritableFile.
type WritableFile interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// NewBuilder returns a Builder writing to file using opts. A nil
// Comparator and a zero BlockSize or BlockRestartInterval are filled from
// DefaultBuilderOptions; a nil FilterPolicy disables filters and a zero
// Compression means NoCompression.
func NewBuilder(file WritableFile, opts BuilderOptions) *Builder {
	if opts.Comparator == nil {
		opts.Comparator = DefaultBuilderOptions().Comparator
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBuilderOptions().BlockSize
	}
	if opts.BlockRestartInterval == 0 {
		opts.BlockRestartInterval = defaultRestartInterval
	}

	b := &Builder{
		opts:       opts,
		file:       file,
		dataBlock:  NewBlockBuilder(opts.BlockRestartInterval),
		indexBlock: NewBlockBuilder(indexBlockRestartInterval),
	}
	if opts.FilterPolicy != nil {
		b.filter = NewFilterBlockBuilder(opts.FilterPolicy)
		b.filter.StartBlock(0)
	}
	return b
}

// SetComparator overrides the comparator used to order keys and encode
// index separators. It's meant for reusing one Builder's configuration
// across several tables built back to back, one comparator swap between
// them; changing it after Add has already ordered entries under the old
// comparator would silently corrupt that ordering, so it returns
// ErrInvalidArgument once numEntries is nonzero.
func (b *Builder) SetComparator(cmp internalkey.Comparator) error {
	if b.numEntries > 0 {
		return ErrInvalidArgument
	}
	b.opts.Comparator = cmp
	return nil
}

func (b *Builder) ok() bool { return b.status == nil }

// Status returns the first error latched by a failed write, or nil.
func (b *Builder) Status() error { return b.status }

// NumEntries returns the number of entries added so far.
func (b *Builder) NumEntries() int64 { return b.numEntries }

// FileSize returns the number of bytes written to the file so far (not
// counting anything still buffered for the current block).
func (b *Builder) FileSize() uint64 { return b.offset }

// Add appends (key, value) to the table being built. key must be an
// internal key strictly greater than the previous key added.
func (b *Builder) Add(key, value []byte) {
	if b.closed {
		panic("table: Add called after Finish or Abandon")
	}
	if !b.ok() {
		return
	}
	if b.numEntries > 0 {
		if b.opts.Comparator.Compare(key, b.lastKey) <= 0 {
			panic("table: keys added out of order")
		}
	}

	if b.pendingIndex {
		y.AssertTruef(b.dataBlock.Empty(), "pending index entry with non-empty data block")
		sep := b.opts.Comparator.FindShortestSeparator(b.lastKey, key)
		handle := b.pendingHandle.EncodeTo(nil)
		b.indexBlock.Add(sep, handle)
		b.pendingIndex = false
	}

	if b.filter != nil {
		b.filter.AddKey(key)
	}

	b.lastKey = append(b.lastKey[:0], key...)
	b.numEntries++
	b.dataBlock.Add(key, value)

	if b.dataBlock.CurrentSizeEstimate() >= b.opts.BlockSize {
		b.Flush()
	}
}

// Flush writes out the current data block, if it has any entries, and
// arms pendingIndex so the next Add (or Finish) records its index entry.
func (b *Builder) Flush() {
	if b.closed {
		panic("table: Flush called after Finish or Abandon")
	}
	if !b.ok() || b.dataBlock.Empty() {
		return
	}
	handle, err := b.writeBlock(b.dataBlock)
	if err != nil {
		b.status = err
		return
	}
	b.pendingHandle = handle
	b.pendingIndex = true
	if err := b.file.Sync(); err != nil {
		b.status = err
		return
	}
	if b.filter != nil {
		b.filter.StartBlock(b.offset)
	}
}

// writeBlock finishes block, compresses it per opts.Compression (falling
// back to uncompressed if snappy doesn't save at least 12.5%), and writes
// it out with its trailer.
func (b *Builder) writeBlock(block *BlockBuilder) (BlockHandle, error) {
	raw := block.Finish()
	contents := raw
	compressionType := b.opts.Compression
	if compressionType == SnappyCompression {
		compressed := snappy.Encode(nil, raw)
		if len(compressed) < len(raw)-len(raw)/8 {
			contents = compressed
		} else {
			contents = raw
			compressionType = NoCompression
		}
	}
	handle, err := b.writeRawBlock(contents, compressionType)
	block.Reset()
	return handle, err
}

// writeRawBlock appends contents and its trailer to the file, advancing
// offset, and returns the handle describing where it landed.
func (b *Builder) writeRawBlock(contents []byte, compressionType CompressionType) (BlockHandle, error) {
	handle := BlockHandle{Offset: b.offset, Size: uint64(len(contents))}
	if _, err := b.file.Write(contents); err != nil {
		return BlockHandle{}, errors.Wrap(err, "table: writing block body")
	}

	var trailer [blockTrailerSize]byte
	trailer[0] = byte(compressionType)
	binary.LittleEndian.PutUint32(trailer[1:], maskedCRC32C(contents, compressionType))
	if _, err := b.file.Write(trailer[:]); err != nil {
		return BlockHandle{}, errors.Wrap(err, "table: writing block trailer")
	}

	b.offset += uint64(len(contents)) + blockTrailerSize
	return handle, nil
}

// Finish flushes the last data block, then writes the filter block,
// meta-index block, index block and footer, in that order. The Builder
// must not be used again afterwards.
func (b *Builder) Finish() error {
	b.Flush()
	if b.closed {
		panic("table: Finish called twice")
	}
	b.closed = true
	if !b.ok() {
		return b.status
	}

	var filterHandle, metaindexHandle, indexHandle BlockHandle
	var err error

	if b.filter != nil {
		filterHandle, err = b.writeRawBlock(b.filter.Finish(), NoCompression)
		if err != nil {
			b.status = err
			return err
		}
	}

	metaIndex := NewBlockBuilder(defaultRestartInterval)
	if b.filter != nil {
		key := append([]byte("filter."), []byte(b.opts.FilterPolicy.Name())...)
		metaIndex.Add(key, filterHandle.EncodeTo(nil))
	}
	metaindexHandle, err = b.writeBlock(metaIndex)
	metaIndex.Release()
	if err != nil {
		b.status = err
		return err
	}

	if b.pendingIndex {
		succ := b.opts.Comparator.FindShortSuccessor(b.lastKey)
		b.indexBlock.Add(succ, b.pendingHandle.EncodeTo(nil))
		b.pendingIndex = false
	}
	indexHandle, err = b.writeBlock(b.indexBlock)
	if err != nil {
		b.status = err
		return err
	}

	footer := Footer{MetaindexHandle: metaindexHandle, IndexHandle: indexHandle}
	if _, err := b.file.Write(footer.EncodeTo()); err != nil {
		b.status = errors.Wrap(err, "table: writing footer")
		return b.status
	}
	b.offset += FooterEncodedLength
	b.dataBlock.Release()
	b.indexBlock.Release()
	if b.filter != nil {
		b.filter.Release()
	}
	return nil
}

// Abandon marks the builder closed without writing a filter, index or
// footer, and releases the builders' off-heap scratch memory. Any bytes
// already flushed for prior data blocks remain in the file, which is
// therefore not a valid table.
func (b *Builder) Abandon() {
	if b.closed {
		panic("table: Abandon called after Finish or Abandon")
	}
	b.closed = true
	b.dataBlock.Release()
	b.indexBlock.Release()
	if b.filter != nil {
		b.filter.Release()
	}
}
