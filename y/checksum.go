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
	"hash/crc32"

	"github.com/pkg/errors"
)

// CastagnoliCrcTable is the CRC32C (Castagnoli) polynomial table used for
// every on-disk checksum in this module: block trailers and the two-level
// blocks that reference them.
var CastagnoliCrcTable = crc32.MakeTable(crc32.Castagnoli)

// ErrChecksumMismatch is returned when a stored checksum doesn't match the
// bytes it's supposed to protect.
var ErrChecksumMismatch = errors.New("y: checksum mismatch")

// maskDelta is added (mod 2^32) to a raw CRC32C after it has been rotated,
// so that a CRC of a CRC (as happens when blocks are themselves stored
// inside other CRC-protected structures) doesn't come out looking like a
// plain, unmasked checksum. Same constant LevelDB uses.
const maskDelta = 0xa282ead8

// MaskCRC returns a masked representation of crc. Storing the masked value
// rather than the raw CRC32C avoids the confusion described in
// crc32c.h in the original implementation.
func MaskCRC(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// UnmaskCRC undoes MaskCRC.
func UnmaskCRC(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}

// CRC32C computes the raw, unmasked CRC32C checksum of data; MaskCRC
// turns it into the form stored on disk.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, CastagnoliCrcTable)
}

// VerifyChecksum recomputes the masked CRC32C of data and compares it
// against expected (itself a masked value, as stored on disk).
func VerifyChecksum(data []byte, expected uint32) error {
	actual := MaskCRC(CRC32C(data))
	if actual != expected {
		return errors.Wrapf(ErrChecksumMismatch, "actual: %x, expected: %x", actual, expected)
	}
	return nil
}
