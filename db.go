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
	"context"

	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/table"
	"github.com/sausheong/gsst/vfs"
)

// CreateTable creates the table file at path and returns a Builder over it
// configured from opts. The caller drives Add/Finish (or Abandon) and is
// responsible for calling the returned close func once Finish has run.
func CreateTable(path string, opts Options) (*table.Builder, func() error, error) {
	file, err := vfs.NewWritableFile(path)
	if err != nil {
		return nil, nil, err
	}
	return table.NewBuilder(file, opts.builderOptions()), file.Close, nil
}

// OpenTable opens the table file at path for reading, wiring opts'
// comparator, filter policy and block cache through to the reader.
// useMmap selects the zero-copy mmap-backed file over the portable
// pread-based one; on platforms without an mmap implementation it falls
// back to the pread path transparently.
func OpenTable(ctx context.Context, path string, opts Options, useMmap bool) (*table.Reader, int64, func() error, error) {
	var (
		file vfs.RandomAccessFile
		err  error
	)
	if useMmap {
		file, err = vfs.NewMmapRandomAccessFile(path)
	} else {
		file, err = vfs.NewRandomAccessFile(path)
	}
	if err != nil {
		return nil, 0, nil, err
	}
	size, err := file.Size()
	if err != nil {
		file.Close()
		return nil, 0, nil, err
	}
	readerOpts := opts.readerOptions(opts.newBlockCache())
	reader, err := table.Open(ctx, file, size, readerOpts)
	if err != nil {
		file.Close()
		return nil, 0, nil, err
	}
	closeFile := func() error {
		readerOpts.Logger.Infof("table: closing %s", path)
		return file.Close()
	}
	return reader, size, closeFile, nil
}

// Get looks up the value visible for key at sequence in reader, composing
// Table.InternalGet's raw internal-key lookup (the first internal key >=
// the search key, i.e. the newest entry for key at or below sequence when
// key has one) with the snapshot/tombstone rule a DBIterator otherwise
// applies during a scan: a Deletion is treated the same as no entry at
// all. userCmp compares plain user keys, e.g. Options.UserComparator(),
// not the internal-key comparator tables are ordered under.
func Get(ctx context.Context, userCmp internalkey.Comparator, reader *table.Reader, key []byte, sequence uint64) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	target := internalkey.MakeSearchKey(key, sequence)
	var (
		value []byte
		found bool
	)
	err := reader.InternalGet(ctx, target, func(k, v []byte) {
		pik, ok := internalkey.ParseInternalKey(k)
		if !ok || userCmp.Compare(pik.UserKey, key) != 0 {
			return
		}
		if pik.Type == internalkey.Deletion {
			return
		}
		value = append([]byte(nil), v...)
		found = true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	return value, nil
}
