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

package gsst

import (
	"github.com/sausheong/gsst/cache"
	"github.com/sausheong/gsst/filterpolicy"
	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/table"
	"github.com/sausheong/gsst/y"
)

// Options collects the knobs a caller sets once, at Open/Create time,
// covering both how tables are built and how they're read back.
type Options struct {
	// Comparator is the internal-key comparator every block and index in a
	// table is ordered and encoded under. Defaults to
	// internalkey.BytewiseComparator wrapped for internal-key order.
	Comparator internalkey.Comparator

	// FilterPolicy generates the per-block filters InternalGet consults
	// before touching a data block. Nil disables filters entirely.
	FilterPolicy filterpolicy.FilterPolicy

	// BlockSize is the target uncompressed size of a data block.
	BlockSize int

	// BlockRestartInterval is how many entries share one restart point's
	// prefix-compression run before a new restart point begins.
	BlockRestartInterval int

	// Compression selects the block compressor a Builder uses.
	Compression table.CompressionType

	// BlockCacheCapacity sizes the shared ristretto-backed block cache, in
	// bytes of block data. Zero disables caching.
	BlockCacheCapacity int64

	// ParanoidChecks verifies every block's checksum on read, at the cost
	// of decoding overhead.
	ParanoidChecks bool

	// FillCache controls whether reads populate the block cache with the
	// blocks they touch. Bulk scans that won't be repeated should disable
	// this to avoid evicting hotter data.
	FillCache bool

	// ReadBytesPeriod is the value to pass as NewDBIterator's
	// readBytesPeriod: the average (key+value) byte budget a DBIterator
	// consumes between RecordReadSample calls on its ReadSampleRecorder,
	// letting a caller trigger a compaction of the range it just scanned.
	// Defaults to 1MiB, matching the classic engine this design is drawn
	// from.
	ReadBytesPeriod int

	// Logger receives Infof on table open, Debugf on a block-cache miss,
	// and Errorf on a checksum failure. Defaults to y.DefaultLogger().
	Logger y.Logger
}

// DefaultOptions returns sensible defaults: a 4KiB block size, snappy
// compression, a 10-bits-per-key bloom filter, checksum verification off,
// and a 8MiB block cache.
func DefaultOptions() Options {
	return Options{
		Comparator:            internalkey.NewInternalComparator(internalkey.BytewiseComparator),
		FilterPolicy:          filterpolicy.NewBloomPolicy(10),
		BlockSize:             4096,
		BlockRestartInterval:  16,
		Compression:           table.SnappyCompression,
		BlockCacheCapacity:    8 << 20,
		ParanoidChecks:        false,
		FillCache:             true,
		ReadBytesPeriod:       1 << 20,
		Logger:                y.DefaultLogger(),
	}
}

// UserComparator unwraps o.Comparator back to the plain user-key
// comparator it was built from, for callers (Get, in particular) that
// need to compare raw user keys rather than internal-key-encoded ones.
func (o Options) UserComparator() internalkey.Comparator {
	if ic, ok := o.Comparator.(*internalkey.InternalComparator); ok {
		return ic.User
	}
	return o.Comparator
}

func (o Options) newBlockCache() cache.Cache {
	if o.BlockCacheCapacity <= 0 {
		return cache.NewDisabledCache()
	}
	c, err := cache.NewRistrettoCache(o.BlockCacheCapacity)
	if err != nil {
		return cache.NewDisabledCache()
	}
	return c
}

func (o Options) builderOptions() table.BuilderOptions {
	return table.BuilderOptions{
		Comparator:           o.Comparator,
		FilterPolicy:         o.FilterPolicy,
		BlockSize:            o.BlockSize,
		BlockRestartInterval: o.BlockRestartInterval,
		Compression:          o.Compression,
	}
}

func (o Options) readerOptions(blockCache cache.Cache) table.ReaderOptions {
	logger := o.Logger
	if logger == nil {
		logger = y.DefaultLogger()
	}
	return table.ReaderOptions{
		Comparator:     o.Comparator,
		FilterPolicy:   o.FilterPolicy,
		BlockCache:     blockCache,
		ParanoidChecks: o.ParanoidChecks,
		FillCache:      o.FillCache,
		Logger:         logger,
	}
}
