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
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/table"
	"github.com/sausheong/gsst/y"
)

type dbIterDirection int

const (
	dbIterForward dbIterDirection = iota
	dbIterReverse
)

// ReadSampleRecorder is notified periodically, as a DBIterator consumes
// key/value bytes, of a key it just passed over. A caller can use this to
// decide whether the range it just scanned is worth compacting.
type ReadSampleRecorder interface {
	RecordReadSample(key []byte)
}

// DBIterator collapses a stream of internal-key entries (as produced by a
// MergingIterator) into the versioned, snapshot-filtered, deletion-aware
// view a caller of a key-value store expects: exactly one entry per user
// key, that key's latest write at or before the snapshot sequence, with
// keys whose latest visible write is a deletion hidden entirely.
type DBIterator struct {
	userCmp  internalkey.Comparator
	inner    y.Iterator
	sequence uint64
	recorder ReadSampleRecorder

	direction dbIterDirection
	valid     bool
	err       error
	closed    bool

	savedKey   []byte
	savedValue []byte

	rnd                  *rand.Rand
	readBytesPeriod      int
	bytesUntilSampling   int
}

var _ y.Iterator = (*DBIterator)(nil)

// NewDBIterator wraps inner (a merging iterator over internal-key entries,
// already positioned arbitrarily) to expose the collapsed view described
// above, hiding entries with sequence greater than sequence. readBytesPeriod
// of zero disables sampling. recorder may be nil.
func NewDBIterator(userCmp internalkey.Comparator, inner y.Iterator, sequence uint64, readBytesPeriod int, recorder ReadSampleRecorder) *DBIterator {
	it := &DBIterator{
		userCmp:         userCmp,
		inner:           inner,
		sequence:        sequence,
		recorder:        recorder,
		direction:       dbIterForward,
		readBytesPeriod: readBytesPeriod,
		rnd:             rand.New(rand.NewSource(int64(sequence) + 1)),
	}
	it.bytesUntilSampling = it.randomCompactionPeriod()
	return it
}

func (it *DBIterator) randomCompactionPeriod() int {
	if it.readBytesPeriod <= 0 {
		return 0
	}
	return it.rnd.Intn(2 * it.readBytesPeriod)
}

func (it *DBIterator) Valid() bool { return it.valid }

func (it *DBIterator) Key() []byte {
	if it.direction == dbIterForward {
		return internalkey.ExtractUserKey(it.inner.Key())
	}
	return it.savedKey
}

func (it *DBIterator) Value() []byte {
	if it.direction == dbIterForward {
		return it.inner.Value()
	}
	return it.savedValue
}

func (it *DBIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	return it.inner.Error()
}

// Close releases the wrapped iterator. Any positioning call made
// afterwards latches ErrIteratorClosed and leaves the iterator invalid,
// rather than reaching into the now-released inner iterator.
func (it *DBIterator) Close() error {
	if it.closed {
		return ErrIteratorClosed
	}
	it.closed = true
	it.valid = false
	return it.inner.Close()
}

// parseKey decodes the internal iterator's current key, accumulating
// bytes read toward the next compaction-sampling notification.
func (it *DBIterator) parseKey() (internalkey.ParsedInternalKey, bool) {
	k := it.inner.Key()
	if it.readBytesPeriod > 0 {
		bytesRead := len(k) + len(it.inner.Value())
		for it.bytesUntilSampling < bytesRead {
			it.bytesUntilSampling += it.randomCompactionPeriod()
			if it.recorder != nil {
				it.recorder.RecordReadSample(k)
			}
		}
		it.bytesUntilSampling -= bytesRead
	}
	pik, ok := internalkey.ParseInternalKey(k)
	if !ok {
		it.err = errors.Wrap(table.ErrCorruption, "corrupted internal key in DBIterator")
		return pik, false
	}
	return pik, true
}

// findNextUserEntry advances the (already forward-direction) inner
// iterator until it sits on an entry that should be surfaced: the first
// Value entry at or below sequence whose user key hasn't been hidden by a
// more recent Deletion. skipping/skipKey seed that hiding state, letting
// Next re-enter mid-skip.
func (it *DBIterator) findNextUserEntry(skipping bool, skipKey []byte) {
	for it.inner.Valid() {
		pik, ok := it.parseKey()
		if ok && pik.Seq <= it.sequence {
			switch pik.Type {
			case internalkey.Deletion:
				skipKey = append(skipKey[:0], pik.UserKey...)
				skipping = true
			case internalkey.Value:
				if skipping && it.userCmp.Compare(pik.UserKey, skipKey) <= 0 {
					// hidden by a later deletion, or behind the skip key
				} else {
					it.valid = true
					it.savedKey = it.savedKey[:0]
					return
				}
			}
		}
		it.inner.Next()
	}
	it.savedKey = it.savedKey[:0]
	it.valid = false
}

// findPrevUserEntry walks the (already reverse-direction) inner iterator
// backward, keeping the highest-sequence entry at or below sequence for
// each user key, until the user key changes.
func (it *DBIterator) findPrevUserEntry() {
	valueType := internalkey.Deletion
	if it.inner.Valid() {
		for {
			pik, ok := it.parseKey()
			if ok && pik.Seq <= it.sequence {
				if valueType != internalkey.Deletion && it.userCmp.Compare(pik.UserKey, it.savedKey) < 0 {
					break
				}
				valueType = pik.Type
				if valueType == internalkey.Deletion {
					it.savedKey = it.savedKey[:0]
					it.savedValue = it.savedValue[:0]
				} else {
					it.savedKey = append(it.savedKey[:0], pik.UserKey...)
					it.savedValue = append(it.savedValue[:0], it.inner.Value()...)
				}
			}
			it.inner.Prev()
			if !it.inner.Valid() {
				break
			}
		}
	}
	if valueType == internalkey.Deletion {
		it.valid = false
		it.savedKey = it.savedKey[:0]
		it.savedValue = it.savedValue[:0]
		it.direction = dbIterForward
	} else {
		it.valid = true
	}
}

func (it *DBIterator) Seek(target []byte) {
	if it.closed {
		it.err = ErrIteratorClosed
		it.valid = false
		return
	}
	it.direction = dbIterForward
	it.savedValue = it.savedValue[:0]
	it.savedKey = internalkey.MakeSearchKey(target, it.sequence)
	it.inner.Seek(it.savedKey)
	if it.inner.Valid() {
		it.findNextUserEntry(false, it.savedKey)
	} else {
		it.valid = false
	}
}

func (it *DBIterator) SeekToFirst() {
	if it.closed {
		it.err = ErrIteratorClosed
		it.valid = false
		return
	}
	it.direction = dbIterForward
	it.savedValue = it.savedValue[:0]
	it.inner.SeekToFirst()
	if it.inner.Valid() {
		it.findNextUserEntry(false, it.savedKey)
	} else {
		it.valid = false
	}
}

func (it *DBIterator) SeekToLast() {
	if it.closed {
		it.err = ErrIteratorClosed
		it.valid = false
		return
	}
	it.direction = dbIterReverse
	it.savedValue = it.savedValue[:0]
	it.inner.SeekToLast()
	it.findPrevUserEntry()
}

func (it *DBIterator) Next() {
	if it.closed {
		it.err = ErrIteratorClosed
		it.valid = false
		return
	}
	if !it.valid {
		return
	}
	if it.direction == dbIterReverse {
		it.direction = dbIterForward
		// inner sits just before the entries for this key; step into them.
		if !it.inner.Valid() {
			it.inner.SeekToFirst()
		} else {
			it.inner.Next()
		}
		if !it.inner.Valid() {
			it.valid = false
			it.savedKey = it.savedKey[:0]
			return
		}
		// savedKey already holds the key to skip past.
	} else {
		it.savedKey = append(it.savedKey[:0], internalkey.ExtractUserKey(it.inner.Key())...)
		it.inner.Next()
		if !it.inner.Valid() {
			it.valid = false
			it.savedKey = it.savedKey[:0]
			return
		}
	}
	it.findNextUserEntry(true, it.savedKey)
}

func (it *DBIterator) Prev() {
	if it.closed {
		it.err = ErrIteratorClosed
		it.valid = false
		return
	}
	if !it.valid {
		return
	}
	if it.direction == dbIterForward {
		it.savedKey = append(it.savedKey[:0], internalkey.ExtractUserKey(it.inner.Key())...)
		for {
			it.inner.Prev()
			if !it.inner.Valid() {
				it.valid = false
				it.savedKey = it.savedKey[:0]
				it.savedValue = it.savedValue[:0]
				return
			}
			if it.userCmp.Compare(internalkey.ExtractUserKey(it.inner.Key()), it.savedKey) < 0 {
				break
			}
		}
		it.direction = dbIterReverse
	}
	it.findPrevUserEntry()
}
