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
	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/y"
)

type mergerDirection int

const (
	dirForward mergerDirection = iota
	dirReverse
)

// MergingIterator presents n child iterators, each already sorted under
// cmp, as a single sorted stream. Position is found by a linear scan of
// the children on every step rather than a heap: with the small child
// counts a table's index and data iterators produce this stays simple
// and cheap, and it makes the tie-break rule below easy to state exactly.
//
// Children are not deduplicated: if two children report the same key,
// both are visible across successive Next calls. Forward scanning
// (FindSmallest) favors the lowest-indexed child on a tie; backward
// scanning (FindLargest) favors the highest-indexed child. Reversing
// direction moves every other child strictly past the current key, so an
// equal key held by another child is skipped by the flip rather than
// revisited; both are observable properties of this iterator rather than
// bugs.
type MergingIterator struct {
	cmp      internalkey.Comparator
	children []y.Iterator
	current  int // index into children of the currently-selected child, or -1
	dir      mergerDirection
	err      error
}

var _ y.Iterator = (*MergingIterator)(nil)

// NewMergingIterator returns an iterator merging children in cmp order.
// It takes ownership of children: closing the MergingIterator closes
// every child.
func NewMergingIterator(cmp internalkey.Comparator, children []y.Iterator) *MergingIterator {
	return &MergingIterator{cmp: cmp, children: children, current: -1, dir: dirForward}
}

func (m *MergingIterator) Valid() bool { return m.current >= 0 }

func (m *MergingIterator) Key() []byte {
	return m.children[m.current].Key()
}

func (m *MergingIterator) Value() []byte {
	return m.children[m.current].Value()
}

func (m *MergingIterator) Error() error {
	if m.err != nil {
		return m.err
	}
	for _, c := range m.children {
		if err := c.Error(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MergingIterator) Close() error {
	var first error
	for _, c := range m.children {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MergingIterator) SeekToFirst() {
	for _, c := range m.children {
		c.SeekToFirst()
	}
	m.dir = dirForward
	m.findSmallest()
}

func (m *MergingIterator) SeekToLast() {
	for _, c := range m.children {
		c.SeekToLast()
	}
	m.dir = dirReverse
	m.findLargest()
}

func (m *MergingIterator) Seek(target []byte) {
	for _, c := range m.children {
		c.Seek(target)
	}
	m.dir = dirForward
	m.findSmallest()
}

func (m *MergingIterator) Next() {
	if !m.Valid() {
		return
	}
	// Every other child must be moved past the current key before the
	// next forward scan, so a tied child that used to trail us in the
	// previous (possibly reverse) scan doesn't get selected again.
	if m.dir != dirForward {
		key := m.Key()
		for i, c := range m.children {
			if i == m.current {
				continue
			}
			c.Seek(key)
			if c.Valid() && m.cmp.Compare(c.Key(), key) == 0 {
				c.Next()
			}
		}
		m.dir = dirForward
	}
	m.children[m.current].Next()
	m.findSmallest()
}

func (m *MergingIterator) Prev() {
	if !m.Valid() {
		return
	}
	if m.dir != dirReverse {
		key := m.Key()
		for i, c := range m.children {
			if i == m.current {
				continue
			}
			c.Seek(key)
			if c.Valid() {
				c.Prev()
			} else {
				c.SeekToLast()
			}
		}
		m.dir = dirReverse
	}
	m.children[m.current].Prev()
	m.findLargest()
}

// findSmallest scans children forward, index 0 to n-1, replacing the
// current pick only on a strictly smaller key so the lowest index wins
// ties.
func (m *MergingIterator) findSmallest() {
	current := -1
	for i, c := range m.children {
		if !c.Valid() {
			continue
		}
		if current == -1 || m.cmp.Compare(c.Key(), m.children[current].Key()) < 0 {
			current = i
		}
	}
	m.current = current
}

// findLargest scans children backward, index n-1 to 0, replacing the
// current pick only on a strictly greater key so the highest index wins
// ties.
func (m *MergingIterator) findLargest() {
	current := -1
	for i := len(m.children) - 1; i >= 0; i-- {
		c := m.children[i]
		if !c.Valid() {
			continue
		}
		if current == -1 || m.cmp.Compare(c.Key(), m.children[current].Key()) > 0 {
			current = i
		}
	}
	m.current = current
}
