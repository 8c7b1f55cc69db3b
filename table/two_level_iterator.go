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
	"bytes"

	"github.com/sausheong/gsst/y"
)

// BlockReaderFunc turns the raw value of one index entry (an encoded
// BlockHandle) into an iterator over the block it points at.
type BlockReaderFunc func(indexValue []byte) (y.Iterator, error)

// twoLevelIterator composes an index iterator over separator keys with a
// data iterator built on demand from the index entry the index iterator
// currently sits on. Building the data iterator is memoized against the
// raw index value bytes, so moving the index cursor without crossing an
// index entry boundary never rebuilds it.
type twoLevelIterator struct {
	indexIter  y.Iterator
	readBlock  BlockReaderFunc

	dataIter        y.Iterator // nil when no data block is currently open
	dataBlockHandle []byte     // raw index value the current dataIter was built from
	err             error
}

var _ y.Iterator = (*twoLevelIterator)(nil)

// NewTwoLevelIterator returns an iterator over every entry reachable
// through indexIter's separator keys, using readBlock to open each
// referenced data block lazily.
func NewTwoLevelIterator(indexIter y.Iterator, readBlock BlockReaderFunc) y.Iterator {
	return &twoLevelIterator{indexIter: indexIter, readBlock: readBlock}
}

func (it *twoLevelIterator) Valid() bool {
	return it.dataIter != nil && it.err == nil && it.dataIter.Valid()
}

func (it *twoLevelIterator) Key() []byte { return it.dataIter.Key() }
func (it *twoLevelIterator) Value() []byte { return it.dataIter.Value() }

func (it *twoLevelIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if err := it.indexIter.Error(); err != nil {
		return err
	}
	if it.dataIter != nil {
		return it.dataIter.Error()
	}
	return nil
}

func (it *twoLevelIterator) Close() error {
	if it.dataIter != nil {
		if err := it.dataIter.Close(); err != nil {
			it.indexIter.Close()
			return err
		}
	}
	return it.indexIter.Close()
}

func (it *twoLevelIterator) setDataIterInvalid() {
	if it.dataIter != nil {
		it.dataIter.Close()
		it.dataIter = nil
	}
	it.dataBlockHandle = nil
}

// initDataBlock ensures dataIter is built from the block indexIter's
// current entry points at, reusing the existing dataIter untouched if the
// index entry hasn't actually changed.
func (it *twoLevelIterator) initDataBlock() {
	if !it.indexIter.Valid() {
		it.setDataIterInvalid()
		return
	}
	handleValue := it.indexIter.Value()
	if it.dataIter != nil && bytes.Equal(handleValue, it.dataBlockHandle) {
		return
	}
	iter, err := it.readBlock(handleValue)
	if err != nil {
		it.err = err
		it.setDataIterInvalid()
		return
	}
	if it.dataIter != nil {
		it.dataIter.Close()
	}
	it.dataIter = iter
	it.dataBlockHandle = append([]byte(nil), handleValue...)
}

func (it *twoLevelIterator) skipEmptyDataBlocksForward() {
	for it.dataIter == nil || !it.dataIter.Valid() {
		if err := it.dataIterError(); err != nil {
			it.err = err
			return
		}
		if !it.indexIter.Valid() {
			it.setDataIterInvalid()
			return
		}
		it.indexIter.Next()
		it.initDataBlock()
		if it.dataIter != nil {
			it.dataIter.SeekToFirst()
		}
	}
}

func (it *twoLevelIterator) skipEmptyDataBlocksBackward() {
	for it.dataIter == nil || !it.dataIter.Valid() {
		if err := it.dataIterError(); err != nil {
			it.err = err
			return
		}
		if !it.indexIter.Valid() {
			it.setDataIterInvalid()
			return
		}
		it.indexIter.Prev()
		it.initDataBlock()
		if it.dataIter != nil {
			it.dataIter.SeekToLast()
		}
	}
}

func (it *twoLevelIterator) dataIterError() error {
	if it.dataIter == nil {
		return nil
	}
	return it.dataIter.Error()
}

func (it *twoLevelIterator) Seek(target []byte) {
	it.err = nil
	it.indexIter.Seek(target)
	it.initDataBlock()
	if it.dataIter != nil {
		it.dataIter.Seek(target)
	}
	it.skipEmptyDataBlocksForward()
}

func (it *twoLevelIterator) SeekToFirst() {
	it.err = nil
	it.indexIter.SeekToFirst()
	it.initDataBlock()
	if it.dataIter != nil {
		it.dataIter.SeekToFirst()
	}
	it.skipEmptyDataBlocksForward()
}

func (it *twoLevelIterator) SeekToLast() {
	it.err = nil
	it.indexIter.SeekToLast()
	it.initDataBlock()
	if it.dataIter != nil {
		it.dataIter.SeekToLast()
	}
	it.skipEmptyDataBlocksBackward()
}

func (it *twoLevelIterator) Next() {
	if !it.Valid() {
		return
	}
	it.dataIter.Next()
	it.skipEmptyDataBlocksForward()
}

func (it *twoLevelIterator) Prev() {
	if !it.Valid() {
		return
	}
	it.dataIter.Prev()
	it.skipEmptyDataBlocksBackward()
}
