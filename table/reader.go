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

	"github.com/pkg/errors"
	"github.com/sausheong/gsst/cache"
	"github.com/sausheong/gsst/filterpolicy"
	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/y"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Comparator      internalkey.Comparator
	FilterPolicy    filterpolicy.FilterPolicy // must match the policy used to build the table, or be nil
	BlockCache      cache.Cache               // nil disables caching
	ParanoidChecks  bool
	FillCache       bool
	// Logger receives Infof on open, Debugf on a block-cache miss, and
	// Errorf on a checksum failure. Defaults to y.DefaultLogger().
	Logger y.Logger
}

// DefaultReaderOptions mirrors DefaultBuilderOptions, plus a disabled
// cache and cache-filling reads.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		Comparator:   internalkey.NewInternalComparator(internalkey.BytewiseComparator),
		FilterPolicy: filterpolicy.NewBloomPolicy(10),
		BlockCache:   cache.NewDisabledCache(),
		FillCache:    true,
		Logger:       y.DefaultLogger(),
	}
}

// Reader serves point lookups and iteration over an opened table file.
type Reader struct {
	opts ReaderOptions
	file ReaderAt

	cacheID     uint64
	metaindexHandle BlockHandle
	indexBlock  *Block

	filter     *FilterBlockReader
	filterData []byte
}

// Open reads the footer, index block and (if configured) filter block out
// of file, which must contain exactly size bytes.
func Open(ctx context.Context, file ReaderAt, size int64, opts ReaderOptions) (*Reader, error) {
	if opts.Comparator == nil {
		opts.Comparator = DefaultReaderOptions().Comparator
	}
	if opts.BlockCache == nil {
		opts.BlockCache = cache.NewDisabledCache()
	}
	if opts.Logger == nil {
		opts.Logger = y.DefaultLogger()
	}
	y.Trace(ctx, "table: opening, size=%d", size)
	if size < FooterEncodedLength {
		return nil, errors.Wrap(ErrCorruption, "file is too short to be an sstable")
	}

	footerBuf := make([]byte, FooterEncodedLength)
	if _, err := file.ReadAt(footerBuf, size-FooterEncodedLength); err != nil {
		return nil, errors.Wrap(err, "table: reading footer")
	}
	footer, err := DecodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	readOpt := ReadOptions{VerifyChecksums: opts.ParanoidChecks, FillCache: opts.FillCache, Logger: opts.Logger}
	indexContents, err := ReadBlock(file, readOpt, footer.IndexHandle)
	if err != nil {
		return nil, err
	}
	indexBlock, err := NewBlock(indexContents.Data)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		opts:            opts,
		file:            file,
		metaindexHandle: footer.MetaindexHandle,
		indexBlock:      indexBlock,
	}
	if opts.BlockCache != nil {
		r.cacheID = opts.BlockCache.NewID()
	}
	r.readMeta(footer)
	opts.Logger.Infof("table: opened, size=%d bytes", size)
	return r, nil
}

// readMeta loads the filter block named by opts.FilterPolicy out of the
// meta-index block, if a policy is configured. Any failure here is
// swallowed: the table remains usable without a filter.
func (r *Reader) readMeta(footer Footer) {
	if r.opts.FilterPolicy == nil {
		return
	}
	readOpt := ReadOptions{VerifyChecksums: r.opts.ParanoidChecks, Logger: r.opts.Logger}
	metaContents, err := ReadBlock(r.file, readOpt, footer.MetaindexHandle)
	if err != nil {
		return
	}
	metaBlock, err := NewBlock(metaContents.Data)
	if err != nil {
		return
	}
	it := metaBlock.Iterator(internalkey.BytewiseComparator)
	key := append([]byte("filter."), []byte(r.opts.FilterPolicy.Name())...)
	it.Seek(key)
	if !it.Valid() || string(it.Key()) != string(key) {
		return
	}
	r.readFilter(it.Value())
}

func (r *Reader) readFilter(filterHandleValue []byte) {
	handle, _, err := DecodeBlockHandle(filterHandleValue)
	if err != nil {
		return
	}
	readOpt := ReadOptions{VerifyChecksums: r.opts.ParanoidChecks, Logger: r.opts.Logger}
	contents, err := ReadBlock(r.file, readOpt, handle)
	if err != nil {
		return
	}
	if contents.HeapAllocated {
		r.filterData = contents.Data
	} else {
		// contents.Data aliases the file's own memory (e.g. a mapped
		// region); the filter is held for the Reader's whole lifetime,
		// well past the read that produced it, so it must be copied.
		r.filterData = append([]byte(nil), contents.Data...)
	}
	r.filter = NewFilterBlockReader(r.opts.FilterPolicy, r.filterData)
}

// cacheKeyFor folds this table's cache ID and a block offset into the
// 16-byte key every cached block is stored under, so tables sharing one
// cache.Cache never collide.
func cacheKeyFor(cacheID, blockOffset uint64) []byte {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], cacheID)
	binary.LittleEndian.PutUint64(buf[8:], blockOffset)
	return buf[:]
}

// blockAndCleanup pairs a parsed block with the cleanup that must run
// once an iterator built over it is closed: releasing a cache handle, or
// simply dropping the reference for an uncached block.
type blockAndCleanup struct {
	block   *Block
	cleanup func()
}

// readDataBlock resolves handle to a parsed Block, going through the
// block cache when one is configured.
func (r *Reader) readDataBlock(ctx context.Context, handle BlockHandle) (blockAndCleanup, error) {
	readOpt := ReadOptions{VerifyChecksums: r.opts.ParanoidChecks, FillCache: r.opts.FillCache, Logger: r.opts.Logger}

	if r.opts.BlockCache == nil {
		contents, err := ReadBlock(r.file, readOpt, handle)
		if err != nil {
			return blockAndCleanup{}, err
		}
		block, err := NewBlock(contents.Data)
		if err != nil {
			return blockAndCleanup{}, err
		}
		return blockAndCleanup{block: block, cleanup: func() {}}, nil
	}

	key := cacheKeyFor(r.cacheID, handle.Offset)
	if h := r.opts.BlockCache.Lookup(key); h != nil {
		block := r.opts.BlockCache.Value(h).(*Block)
		return blockAndCleanup{block: block, cleanup: func() { r.opts.BlockCache.Release(h) }}, nil
	}
	y.Trace(ctx, "table: cache miss for block at offset %d", handle.Offset)
	r.opts.Logger.Debugf("table: cache miss for block at offset %d", handle.Offset)

	contents, err := ReadBlock(r.file, readOpt, handle)
	if err != nil {
		return blockAndCleanup{}, err
	}
	block, err := NewBlock(contents.Data)
	if err != nil {
		return blockAndCleanup{}, err
	}
	if contents.Cachable && r.opts.FillCache {
		h := r.opts.BlockCache.Insert(key, block, int64(block.Size()), nil)
		return blockAndCleanup{block: block, cleanup: func() { r.opts.BlockCache.Release(h) }}, nil
	}
	return blockAndCleanup{block: block, cleanup: func() {}}, nil
}

// blockReaderFunc adapts Reader.readDataBlock into the callback shape
// NewTwoLevelIterator expects: given an index entry's raw value (an
// encoded BlockHandle), produce an iterator over that block's contents.
func (r *Reader) blockReaderFunc(ctx context.Context, indexValue []byte) (y.Iterator, error) {
	handle, _, err := DecodeBlockHandle(indexValue)
	if err != nil {
		return nil, err
	}
	bc, err := r.readDataBlock(ctx, handle)
	if err != nil {
		return nil, err
	}
	it := bc.block.Iterator(r.opts.Comparator)
	return &closingIterator{Iterator: it, closeFn: bc.cleanup}, nil
}

// closingIterator runs closeFn exactly once when Close is called,
// alongside the wrapped iterator's own Close.
type closingIterator struct {
	y.Iterator
	closeFn func()
	closed  bool
}

func (c *closingIterator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closeFn != nil {
		c.closeFn()
	}
	return c.Iterator.Close()
}

// NewIterator returns a two-level iterator over every entry in the table,
// in internal-key order. Block reads triggered while walking it are
// traced against ctx.
func (r *Reader) NewIterator(ctx context.Context) y.Iterator {
	indexIter := r.indexBlock.Iterator(r.opts.Comparator)
	return NewTwoLevelIterator(indexIter, func(indexValue []byte) (y.Iterator, error) {
		return r.blockReaderFunc(ctx, indexValue)
	})
}

// InternalGet seeks to the first entry with internal key >= k and, if the
// filter (when present) doesn't rule it out, invokes handler with the raw
// key and value found. It does not itself enforce any snapshot semantics
// on the sequence embedded in k' — that's the DB iterator's job.
func (r *Reader) InternalGet(ctx context.Context, k []byte, handler func(key, value []byte)) error {
	indexIter := r.indexBlock.Iterator(r.opts.Comparator)
	indexIter.Seek(k)
	if !indexIter.Valid() {
		return indexIter.Error()
	}

	handle, _, err := DecodeBlockHandle(indexIter.Value())
	if err != nil {
		return err
	}
	if r.filter != nil && !r.filter.KeyMayMatch(ctx, handle.Offset, k) {
		return nil
	}

	bc, err := r.readDataBlock(ctx, handle)
	if err != nil {
		return err
	}
	defer bc.cleanup()
	blockIter := bc.block.Iterator(r.opts.Comparator)
	blockIter.Seek(k)
	if blockIter.Valid() {
		handler(blockIter.Key(), blockIter.Value())
	}
	return blockIter.Error()
}

// ApproximateOffsetOf estimates the file offset at which key's data would
// live, for use in progress reporting over a scan.
func (r *Reader) ApproximateOffsetOf(key []byte) uint64 {
	indexIter := r.indexBlock.Iterator(r.opts.Comparator)
	indexIter.Seek(key)
	if indexIter.Valid() {
		if handle, _, err := DecodeBlockHandle(indexIter.Value()); err == nil {
			return handle.Offset
		}
	}
	return r.metaindexHandle.Offset
}
