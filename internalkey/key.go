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

// Package internalkey packs and unpacks the internal keys stored inside
// table blocks: user_key || seq_and_type, where seq_and_type is a fixed
// 8-byte little-endian value combining a 56-bit sequence number with an
// 8-bit ValueType tag. Every block, filter and iterator in the table
// package operates on internal keys; only the outermost DB iterator ever
// strips the tag back down to a user key.
package internalkey

import (
	"encoding/binary"

	"github.com/sausheong/gsst/y"
)

// ValueType distinguishes a live value from a tombstone, and provides the
// synthetic tag used to build a seek key.
type ValueType uint8

const (
	// Deletion marks a key as removed as of its sequence number.
	Deletion ValueType = 0
	// Value marks a key as holding a live value as of its sequence number.
	Value ValueType = 1
	// SeekSentinel is never stored; it is used as the ValueType of a
	// synthetic key built purely to seek to the first entry at or after a
	// given (user_key, sequence) pair. Within equal sequence numbers the
	// internal comparator orders higher types first, and no stored entry
	// has a type greater than Value, so a key tagged SeekSentinel sorts at
	// or before every stored entry with the same user key and sequence.
	SeekSentinel ValueType = 1
)

// MaxSequenceNumber is the largest sequence number the 56-bit field can
// hold.
const MaxSequenceNumber uint64 = (1 << 56) - 1

// tagLen is the width, in bytes, of the trailing seq_and_type field.
const tagLen = 8

// PackSeqAndType combines a sequence number and a type tag into the
// 8-byte trailer appended to every internal key.
func PackSeqAndType(seq uint64, t ValueType) uint64 {
	y.AssertTruef(seq <= MaxSequenceNumber, "sequence %d exceeds 56 bits", seq)
	return (seq << 8) | uint64(t)
}

// UnpackSeqAndType splits a packed trailer back into sequence and type.
func UnpackSeqAndType(packed uint64) (uint64, ValueType) {
	return packed >> 8, ValueType(packed & 0xff)
}

// ParsedInternalKey is the decomposed form of an internal key: the raw
// user-supplied key, the sequence number it was written at, and whether
// it is a value or a tombstone.
type ParsedInternalKey struct {
	UserKey []byte
	Seq     uint64
	Type    ValueType
}

// AppendInternalKey appends the internal-key encoding of pik to dst and
// returns the extended slice.
func AppendInternalKey(dst []byte, pik ParsedInternalKey) []byte {
	dst = append(dst, pik.UserKey...)
	var tag [tagLen]byte
	binary.LittleEndian.PutUint64(tag[:], PackSeqAndType(pik.Seq, pik.Type))
	return append(dst, tag[:]...)
}

// ParseInternalKey splits an encoded internal key into its parsed form.
// It reports false if ik is too short to hold a trailer, in which case
// the caller should latch a corruption error.
func ParseInternalKey(ik []byte) (ParsedInternalKey, bool) {
	if len(ik) < tagLen {
		return ParsedInternalKey{}, false
	}
	n := len(ik) - tagLen
	packed := binary.LittleEndian.Uint64(ik[n:])
	seq, t := UnpackSeqAndType(packed)
	return ParsedInternalKey{UserKey: ik[:n], Seq: seq, Type: t}, true
}

// ExtractUserKey strips the trailing seq_and_type tag from an internal
// key. ik must be at least tagLen bytes; callers that haven't already
// validated the key's length should use ParseInternalKey instead.
func ExtractUserKey(ik []byte) []byte {
	y.AssertTruef(len(ik) >= tagLen, "internal key too short: %d", len(ik))
	return ik[:len(ik)-tagLen]
}

// MakeSearchKey builds an internal key suitable for seeking to the first
// entry with the given user key whose sequence number is at or below seq:
// since sequence numbers sort descending among equal user keys, this uses
// SeekSentinel as its type so it sorts at or before any real entry at the
// same (user key, sequence).
func MakeSearchKey(userKey []byte, seq uint64) []byte {
	return AppendInternalKey(make([]byte, 0, len(userKey)+tagLen), ParsedInternalKey{
		UserKey: userKey,
		Seq:     seq,
		Type:    SeekSentinel,
	})
}
