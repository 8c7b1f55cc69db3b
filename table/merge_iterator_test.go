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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/y"
)

// sliceIterator is a minimal y.Iterator over an in-memory sorted []string
// of user keys, each packed at a fixed sequence number, for exercising
// MergingIterator without a real table.
type sliceIterator struct {
	keys []string
	seq  uint64
	pos  int // -1 before first, len(keys) after last
}

func newSliceIterator(keys []string, seq uint64) *sliceIterator {
	return &sliceIterator{keys: keys, seq: seq, pos: -1}
}

func (s *sliceIterator) ik(i int) []byte {
	return internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte(s.keys[i]), Seq: s.seq, Type: internalkey.Value,
	})
}

func (s *sliceIterator) Valid() bool { return s.pos >= 0 && s.pos < len(s.keys) }
func (s *sliceIterator) Key() []byte { return s.ik(s.pos) }
func (s *sliceIterator) Value() []byte { return []byte(s.keys[s.pos]) }
func (s *sliceIterator) Error() error { return nil }
func (s *sliceIterator) Close() error { return nil }
func (s *sliceIterator) Next() { s.pos++ }
func (s *sliceIterator) Prev() { s.pos-- }
func (s *sliceIterator) SeekToFirst() { s.pos = 0 }
func (s *sliceIterator) SeekToLast() { s.pos = len(s.keys) - 1 }
func (s *sliceIterator) Seek(target []byte) {
	pik, ok := internalkey.ParseInternalKey(target)
	if !ok {
		s.pos = len(s.keys)
		return
	}
	for i, k := range s.keys {
		ik := internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
			UserKey: []byte(k), Seq: s.seq, Type: internalkey.Value,
		})
		if internalkey.NewInternalComparator(internalkey.BytewiseComparator).Compare(ik, target) >= 0 {
			s.pos = i
			return
		}
	}
	_ = pik
	s.pos = len(s.keys)
}

var _ y.Iterator = (*sliceIterator)(nil)

func userKeysOf(t *testing.T, it *MergingIterator) []string {
	t.Helper()
	var got []string
	for it.Valid() {
		pik, ok := internalkey.ParseInternalKey(it.Key())
		require.True(t, ok)
		got = append(got, string(pik.UserKey))
		it.Next()
	}
	return got
}

func TestMergingIteratorInterleavesDisjointChildren(t *testing.T) {
	a := newSliceIterator([]string{"a", "c", "e"}, 10)
	b := newSliceIterator([]string{"b", "d", "f"}, 10)
	m := NewMergingIterator(cmp(), []y.Iterator{a, b})
	m.SeekToFirst()
	require.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, userKeysOf(t, m))
}

func TestMergingIteratorTieBreaksLowestIndexForward(t *testing.T) {
	a := newSliceIterator([]string{"k"}, 5) // index 0
	b := newSliceIterator([]string{"k"}, 5) // index 1
	m := NewMergingIterator(cmp(), []y.Iterator{a, b})
	m.SeekToFirst()
	require.True(t, m.Valid())
	require.Equal(t, "k", string(m.Value())) // both children encode value as their own key string
	require.Same(t, a, m.children[m.current])
}

func TestMergingIteratorTieBreaksHighestIndexBackward(t *testing.T) {
	a := newSliceIterator([]string{"k"}, 5)
	b := newSliceIterator([]string{"k"}, 5)
	m := NewMergingIterator(cmp(), []y.Iterator{a, b})
	m.SeekToLast()
	require.True(t, m.Valid())
	require.Same(t, b, m.children[m.current])
}

func TestMergingIteratorSeekToLastThenBackwardYieldsReverseOrder(t *testing.T) {
	a := newSliceIterator([]string{"a", "c", "e"}, 1)
	b := newSliceIterator([]string{"b", "d", "f"}, 1)
	m := NewMergingIterator(cmp(), []y.Iterator{a, b})
	m.SeekToLast()
	var got []string
	for m.Valid() {
		pik, ok := internalkey.ParseInternalKey(m.Key())
		require.True(t, ok)
		got = append(got, string(pik.UserKey))
		m.Prev()
	}
	require.Equal(t, []string{"f", "e", "d", "c", "b", "a"}, got)
}

func TestMergingIteratorSeekSkipsToTarget(t *testing.T) {
	a := newSliceIterator([]string{"a", "c", "e"}, 1)
	b := newSliceIterator([]string{"b", "d", "f"}, 1)
	m := NewMergingIterator(cmp(), []y.Iterator{a, b})
	target := internalkey.MakeSearchKey([]byte("d"), internalkey.MaxSequenceNumber)
	m.Seek(target)
	require.Equal(t, []string{"d", "e", "f"}, userKeysOf(t, m))
}

func TestMergingIteratorDirectionFlipReanchorsChildren(t *testing.T) {
	a := newSliceIterator([]string{"a", "b", "c"}, 1)
	b := newSliceIterator([]string{"x", "y", "z"}, 1)
	m := NewMergingIterator(cmp(), []y.Iterator{a, b})
	m.SeekToFirst()
	require.Equal(t, "a", string(mustUserKey(t, m.Key())))
	m.Next()
	require.Equal(t, "b", string(mustUserKey(t, m.Key())))
	// Flip direction mid-stream: Prev must land back on "a".
	m.Prev()
	require.Equal(t, "a", string(mustUserKey(t, m.Key())))
}

func mustUserKey(t *testing.T, ik []byte) []byte {
	t.Helper()
	pik, ok := internalkey.ParseInternalKey(ik)
	require.True(t, ok)
	return pik.UserKey
}
