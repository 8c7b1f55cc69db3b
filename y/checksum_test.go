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

package y

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskRoundTrip(t *testing.T) {
	for _, crc := range []uint32{0, 1, 0xffffffff, 0xdeadbeef, CRC32C([]byte("hello world"))} {
		require.Equal(t, crc, UnmaskCRC(MaskCRC(crc)))
	}
}

func TestVerifyChecksumSuccess(t *testing.T) {
	data := []byte("hello world")
	expected := MaskCRC(CRC32C(data))
	require.NoError(t, VerifyChecksum(data, expected))
}

func TestVerifyChecksumMismatch(t *testing.T) {
	data := []byte("hello world")
	err := VerifyChecksum(data, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")
}

func TestVerifyChecksumBitFlip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	expected := MaskCRC(CRC32C(data))
	flipped := append([]byte(nil), data...)
	flipped[3] ^= 0x01
	require.Error(t, VerifyChecksum(flipped, expected))
}
