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
)

func ik(userKey string, seq uint64) []byte {
	return internalkey.AppendInternalKey(nil, internalkey.ParsedInternalKey{
		UserKey: []byte(userKey), Seq: seq, Type: internalkey.Value,
	})
}

func TestBuilderProducesReadableFooter(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	b.Add(ik("a", 3), []byte("1"))
	b.Add(ik("b", 3), []byte("2"))
	require.NoError(t, b.Finish())
	require.True(t, len(f.buf) >= FooterEncodedLength)

	footer, err := DecodeFooter(f.buf[len(f.buf)-FooterEncodedLength:])
	require.NoError(t, err)
	require.Positive(t, footer.IndexHandle.Size)
}

func TestBuilderPanicsOnOutOfOrderKeys(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	b.Add(ik("b", 3), []byte("1"))
	require.Panics(t, func() {
		b.Add(ik("a", 3), []byte("2"))
	})
}

func TestBuilderPanicsOnAddAfterFinish(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	b.Add(ik("a", 1), []byte("1"))
	require.NoError(t, b.Finish())
	require.Panics(t, func() {
		b.Add(ik("b", 1), []byte("2"))
	})
}

func TestBuilderTracksEntryCountAndFileSize(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	for i := 0; i < 10; i++ {
		b.Add(ik(string(rune('a'+i)), 1), []byte("v"))
	}
	require.EqualValues(t, 10, b.NumEntries())
	require.NoError(t, b.Finish())
	require.EqualValues(t, len(f.buf), b.FileSize())
}

func TestBuilderAbandonLeavesStatusOK(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	b.Add(ik("a", 1), []byte("1"))
	b.Abandon()
	require.NoError(t, b.Status())
}

func TestBuilderSetComparatorBeforeFirstAddSucceeds(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	cmp := internalkey.NewInternalComparator(internalkey.BytewiseComparator)
	require.NoError(t, b.SetComparator(cmp))
	b.Add(ik("a", 1), []byte("1"))
	require.NoError(t, b.Finish())
}

func TestBuilderSetComparatorAfterAddRejected(t *testing.T) {
	f := &memFile{}
	b := NewBuilder(f, DefaultBuilderOptions())
	b.Add(ik("a", 1), []byte("1"))
	err := b.SetComparator(internalkey.NewInternalComparator(internalkey.BytewiseComparator))
	require.ErrorIs(t, err, ErrInvalidArgument)
}
