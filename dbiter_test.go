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
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sausheong/gsst/internalkey"
	"github.com/sausheong/gsst/y"
)

// fixedIterator walks a fixed, already-internal-key-ordered slice of
// entries, letting dbiter tests supply exact (user_key, seq, type, value)
// sequences without going through a real table or merge.
type fixedIterator struct {
	entries []fixedEntry
	pos     int
}

type fixedEntry struct {
	userKey string
	seq     uint64
	typ     internalkey.ValueType
	value   string
}

func (f fixedEntry) internalKey() []byte {
	return internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte(f.userKey), Seq: f.seq, Type: f.typ,
	})
}

func newFixedIterator(entries []fixedEntry) *fixedIterator {
	return &fixedIterator{entries: entries, pos: -1}
}

func (f *fixedIterator) Valid() bool   { return f.pos >= 0 && f.pos < len(f.entries) }
func (f *fixedIterator) Key() []byte   { return f.entries[f.pos].internalKey() }
func (f *fixedIterator) Value() []byte { return []byte(f.entries[f.pos].value) }
func (f *fixedIterator) Error() error  { return nil }
func (f *fixedIterator) Close() error  { return nil }
func (f *fixedIterator) Next()         { f.pos++ }
func (f *fixedIterator) Prev()         { f.pos-- }
func (f *fixedIterator) SeekToFirst()  { f.pos = 0 }
func (f *fixedIterator) SeekToLast()   { f.pos = len(f.entries) - 1 }
func (f *fixedIterator) Seek(target []byte) {
	c := internalkey.NewInternalComparator(internalkey.BytewiseComparator)
	for i, e := range f.entries {
		if c.Compare(e.internalKey(), target) >= 0 {
			f.pos = i
			return
		}
	}
	f.pos = len(f.entries)
}

var _ y.Iterator = (*fixedIterator)(nil)

// e4Stream builds the stream from spec end-to-end example E4: user key "x"
// written at seq 3, deleted at seq 4 and written again at seq 5, then user
// key "y" written once.
func e4Stream() []fixedEntry {
	return []fixedEntry{
		{"x", 5, internalkey.Value, "v5"},
		{"x", 4, internalkey.Deletion, ""},
		{"x", 3, internalkey.Value, "v3"},
		{"y", 1, internalkey.Value, "vy"},
	}
}

func TestDBIteratorLatestVersionWinsAtHighSnapshot(t *testing.T) {
	inner := newFixedIterator(e4Stream())
	it := NewDBIterator(internalkey.BytewiseComparator, inner, 10, 0, nil)
	it.SeekToFirst()
	require.True(t, it.Valid())
	require.Equal(t, "x", string(it.Key()))
	require.Equal(t, "v5", string(it.Value()))
	it.Next()
	require.True(t, it.Valid())
	require.Equal(t, "y", string(it.Key()))
	require.Equal(t, "vy", string(it.Value()))
}

func TestDBIteratorSkipsKeyHiddenByDeletion(t *testing.T) {
	inner := newFixedIterator(e4Stream())
	it := NewDBIterator(internalkey.BytewiseComparator, inner, 4, 0, nil)
	it.SeekToFirst()
	require.True(t, it.Valid())
	require.Equal(t, "y", string(it.Key()))
	require.Equal(t, "vy", string(it.Value()))
}

func TestDBIteratorOlderSnapshotSeesOlderValue(t *testing.T) {
	inner := newFixedIterator(e4Stream())
	it := NewDBIterator(internalkey.BytewiseComparator, inner, 3, 0, nil)
	it.SeekToFirst()
	require.True(t, it.Valid())
	require.Equal(t, "x", string(it.Key()))
	require.Equal(t, "v3", string(it.Value()))
}

func TestDBIteratorSeekToLastThenPrevWalksBackward(t *testing.T) {
	inner := newFixedIterator(e4Stream())
	it := NewDBIterator(internalkey.BytewiseComparator, inner, 10, 0, nil)
	it.SeekToLast()
	require.True(t, it.Valid())
	require.Equal(t, "y", string(it.Key()))
	it.Prev()
	require.True(t, it.Valid())
	require.Equal(t, "x", string(it.Key()))
	require.Equal(t, "v5", string(it.Value()))
	it.Prev()
	require.False(t, it.Valid())
}

func TestDBIteratorSeekFindsFirstVisibleEntryAtOrAfterTarget(t *testing.T) {
	inner := newFixedIterator(e4Stream())
	it := NewDBIterator(internalkey.BytewiseComparator, inner, 10, 0, nil)
	it.Seek([]byte("x"))
	require.True(t, it.Valid())
	require.Equal(t, "x", string(it.Key()))
	require.Equal(t, "v5", string(it.Value()))
}

// randomStream generates a slice of entries in valid internal-key order
// (user key ascending, then seq descending) drawn from a small alphabet of
// user keys, so collisions and multi-version chains are common. Every
// (user key, seq) pair is unique, matching a real write history where each
// sequence number is assigned once.
func randomStream(rnd *rand.Rand, numUsers, numVersions int) []fixedEntry {
	type verKey struct {
		user string
		seq  uint64
	}
	seen := map[verKey]bool{}
	var entries []fixedEntry
	for u := 0; u < numUsers; u++ {
		userKey := fmt.Sprintf("k%02d", u)
		n := 1 + rnd.Intn(numVersions)
		for i := 0; i < n; i++ {
			var seq uint64
			for {
				seq = uint64(1 + rnd.Intn(numVersions*4))
				if !seen[verKey{userKey, seq}] {
					seen[verKey{userKey, seq}] = true
					break
				}
			}
			typ := internalkey.Value
			if rnd.Intn(3) == 0 {
				typ = internalkey.Deletion
			}
			entries = append(entries, fixedEntry{
				userKey: userKey,
				seq:     seq,
				typ:     typ,
				value:   fmt.Sprintf("v-%s-%d", userKey, seq),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].userKey != entries[j].userKey {
			return entries[i].userKey < entries[j].userKey
		}
		return entries[i].seq > entries[j].seq
	})
	return entries
}

// expectedVisible computes, per the same rule findNextUserEntry
// implements, the single entry (if any) each distinct user key should
// show at snapshot: the highest-seq entry with seq <= snapshot, and only
// if that entry is a Value rather than a Deletion.
func expectedVisible(entries []fixedEntry, snapshot uint64) map[string]fixedEntry {
	best := map[string]fixedEntry{}
	have := map[string]bool{}
	for _, e := range entries {
		if e.seq > snapshot {
			continue
		}
		if have[e.userKey] {
			continue // entries is seq-descending per user key; first hit wins
		}
		have[e.userKey] = true
		if e.typ == internalkey.Value {
			best[e.userKey] = e
		}
	}
	return best
}

// TestDBIteratorRandomizedSnapshotInvariant runs many randomly generated
// write histories through DBIterator at random snapshots and checks that a
// forward scan surfaces at most one entry per user key, that it is the
// entry expectedVisible predicts, and that keys come out in strictly
// increasing order.
func TestDBIteratorRandomizedSnapshotInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		entries := randomStream(rnd, 1+rnd.Intn(6), 1+rnd.Intn(5))
		maxSeq := uint64(0)
		for _, e := range entries {
			if e.seq > maxSeq {
				maxSeq = e.seq
			}
		}
		snapshot := uint64(rnd.Intn(int(maxSeq) + 2))

		want := expectedVisible(entries, snapshot)

		inner := newFixedIterator(entries)
		it := NewDBIterator(internalkey.BytewiseComparator, inner, snapshot, 0, nil)

		got := map[string]string{}
		var order []string
		for it.SeekToFirst(); it.Valid(); it.Next() {
			key := string(it.Key())
			require.NotContains(t, got, key, "trial %d: user key %q surfaced twice at snapshot %d", trial, key, snapshot)
			got[key] = string(it.Value())
			order = append(order, key)
		}
		require.NoError(t, it.Error())

		for i := 1; i < len(order); i++ {
			require.Less(t, order[i-1], order[i], "trial %d: keys out of order at snapshot %d", trial, snapshot)
		}

		require.Equal(t, len(want), len(got), "trial %d: visible-count mismatch at snapshot %d", trial, snapshot)
		for uk, e := range want {
			gv, ok := got[uk]
			require.True(t, ok, "trial %d: expected %q visible at snapshot %d", trial, uk, snapshot)
			require.Equal(t, e.value, gv, "trial %d: wrong value for %q at snapshot %d", trial, uk, snapshot)
		}
	}
}

func TestDBIteratorDirectionFlipForwardThenBackwardReturnsSameKey(t *testing.T) {
	inner := newFixedIterator(e4Stream())
	it := NewDBIterator(internalkey.BytewiseComparator, inner, 10, 0, nil)
	it.SeekToFirst()
	it.Next() // now on "y"
	it.Prev() // flip back to reverse, should land on "x"
	require.True(t, it.Valid())
	require.Equal(t, "x", string(it.Key()))
}
