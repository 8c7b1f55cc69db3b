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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sausheong/gsst/filterpolicy"
	"github.com/sausheong/gsst/internalkey"
)

// memFile is an in-memory stand-in satisfying both WritableFile (for the
// Builder) and ReaderAt (for Open), so table tests never touch disk.
type memFile struct {
	buf []byte
}

func (m *memFile) Write(p []byte) (int, error) {
	m.buf = append(m.buf, p...)
	return len(p), nil
}
func (m *memFile) Sync() error { return nil }
func (m *memFile) Close() error { return nil }
func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	return n, nil
}

func buildTestTable(t *testing.T, n int) (*memFile, []string) {
	t.Helper()
	f := &memFile{}
	opts := DefaultBuilderOptions()
	opts.BlockSize = 256 // force multiple data blocks for a two-level exercise
	b := NewBuilder(f, opts)

	var keys []string
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("user-key-%05d", i)
		ik := internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
			UserKey: []byte(k), Seq: uint64(n), Type: internalkey.Value,
		})
		b.Add(ik, []byte(fmt.Sprintf("value-%d", i)))
		keys = append(keys, k)
	}
	require.NoError(t, b.Finish())
	return f, keys
}

func testReaderOptions() ReaderOptions {
	opts := DefaultReaderOptions()
	opts.ParanoidChecks = true
	return opts
}

func TestReaderOpenAndIterateAllEntries(t *testing.T) {
	f, keys := buildTestTable(t, 200)
	r, err := Open(context.Background(), f, int64(len(f.buf)), testReaderOptions())
	require.NoError(t, err)

	it := r.NewIterator(context.Background())
	it.SeekToFirst()
	count := 0
	for it.Valid() {
		pik, ok := internalkey.ParseInternalKey(it.Key())
		require.True(t, ok)
		require.Equal(t, keys[count], string(pik.UserKey))
		count++
		it.Next()
	}
	require.NoError(t, it.Error())
	require.Equal(t, len(keys), count)
}

func TestReaderIterateBackward(t *testing.T) {
	f, keys := buildTestTable(t, 150)
	r, err := Open(context.Background(), f, int64(len(f.buf)), testReaderOptions())
	require.NoError(t, err)

	it := r.NewIterator(context.Background())
	it.SeekToLast()
	i := len(keys) - 1
	for it.Valid() {
		pik, ok := internalkey.ParseInternalKey(it.Key())
		require.True(t, ok)
		require.Equal(t, keys[i], string(pik.UserKey))
		i--
		it.Prev()
	}
	require.Equal(t, -1, i)
}

func TestReaderInternalGetFindsExistingKey(t *testing.T) {
	f, keys := buildTestTable(t, 100)
	r, err := Open(context.Background(), f, int64(len(f.buf)), testReaderOptions())
	require.NoError(t, err)

	target := internalkey.MakeSearchKey([]byte(keys[42]), internalkey.MaxSequenceNumber)
	var gotKey, gotValue []byte
	err = r.InternalGet(context.Background(), target, func(k, v []byte) {
		gotKey = append([]byte(nil), k...)
		gotValue = append([]byte(nil), v...)
	})
	require.NoError(t, err)
	pik, ok := internalkey.ParseInternalKey(gotKey)
	require.True(t, ok)
	require.Equal(t, keys[42], string(pik.UserKey))
	require.Equal(t, "value-42", string(gotValue))
}

func TestReaderRejectsShortFile(t *testing.T) {
	f := &memFile{buf: []byte("too short")}
	_, err := Open(context.Background(), f, int64(len(f.buf)), testReaderOptions())
	require.Error(t, err)
}

func TestReaderInternalGetMissingKeyPastEndFindsNothing(t *testing.T) {
	f, _ := buildTestTable(t, 50)
	opts := testReaderOptions()
	opts.FilterPolicy = filterpolicy.NewBloomPolicy(10)
	r, err := Open(context.Background(), f, int64(len(f.buf)), opts)
	require.NoError(t, err)

	target := internalkey.MakeSearchKey([]byte("zzz-past-every-key"), internalkey.MaxSequenceNumber)
	called := false
	err = r.InternalGet(context.Background(), target, func(k, v []byte) { called = true })
	require.NoError(t, err)
	require.False(t, called)
}

// TestReaderApproximateOffsetOfTracksKeyOrder verifies that
// ApproximateOffsetOf returns nondecreasing offsets for keys in increasing
// order, and that a key past the end of the table lands at or past the
// last key's offset -- the two properties a progress bar built on it
// actually relies on.
func TestReaderApproximateOffsetOfTracksKeyOrder(t *testing.T) {
	f, keys := buildTestTable(t, 300)
	r, err := Open(context.Background(), f, int64(len(f.buf)), testReaderOptions())
	require.NoError(t, err)

	firstIK := internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte(keys[0]), Seq: internalkey.MaxSequenceNumber, Type: internalkey.Value,
	})
	midIK := internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte(keys[len(keys)/2]), Seq: internalkey.MaxSequenceNumber, Type: internalkey.Value,
	})
	lastIK := internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte(keys[len(keys)-1]), Seq: internalkey.MaxSequenceNumber, Type: internalkey.Value,
	})

	offFirst := r.ApproximateOffsetOf(firstIK)
	offMid := r.ApproximateOffsetOf(midIK)
	offLast := r.ApproximateOffsetOf(lastIK)
	require.LessOrEqual(t, offFirst, offMid)
	require.LessOrEqual(t, offMid, offLast)
	require.Less(t, offLast, uint64(len(f.buf)))

	pastEndIK := internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte("zzz-past-every-key"), Seq: internalkey.MaxSequenceNumber, Type: internalkey.Value,
	})
	offPastEnd := r.ApproximateOffsetOf(pastEndIK)
	require.GreaterOrEqual(t, offPastEnd, offLast)
}

// TestReaderOpenSurfacesCorruptDataBlock flips a byte inside a real,
// on-disk data block and checks that the corruption surfaces as an
// ErrCorruption once ParanoidChecks/VerifyChecksums is on, without
// disturbing the reader's ability to open the file or read other blocks.
func TestReaderOpenSurfacesCorruptDataBlock(t *testing.T) {
	f, keys := buildTestTable(t, 200)

	// Flip a byte early in the file: with a 256-byte BlockSize and 200
	// entries this lands inside the first data block, well before the
	// index/filter/footer machinery near the tail.
	corrupt := append([]byte(nil), f.buf...)
	corrupt[10] ^= 0xff
	cf := &memFile{buf: corrupt}

	opts := testReaderOptions()
	opts.ParanoidChecks = true
	r, err := Open(context.Background(), cf, int64(len(cf.buf)), opts)
	require.NoError(t, err, "opening (footer/index/filter) must survive a corrupt data block")

	target := internalkey.MakeSearchKey([]byte(keys[0]), internalkey.MaxSequenceNumber)
	getErr := r.InternalGet(context.Background(), target, func(k, v []byte) {})
	require.Error(t, getErr)
	require.True(t, errors.Is(getErr, ErrCorruption), "expected ErrCorruption, got %v", getErr)

	target = internalkey.MakeSearchKey([]byte(keys[len(keys)-1]), internalkey.MaxSequenceNumber)
	getErr = r.InternalGet(context.Background(), target, func(k, v []byte) {})
	require.NoError(t, getErr, "a later, uncorrupted block must still read cleanly")
}
