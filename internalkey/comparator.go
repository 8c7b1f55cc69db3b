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

package internalkey

import "bytes"

// Comparator orders keys and knows how to shorten them without changing
// that order. The block and index builders use FindShortestSeparator and
// FindShortSuccessor to store the smallest possible index keys; neither
// method needs to produce the shortest possible answer, only a correct
// one, so a Comparator that just returns its input unchanged is always a
// valid (if space-wasting) implementation.
type Comparator interface {
	// Name identifies the comparator. Tables do not record it, so
	// reopening a table under a different comparator is not detected.
	Name() string
	// Compare returns <0, 0 or >0 as a compares before, equal to, or
	// after b.
	Compare(a, b []byte) int
	// FindShortestSeparator returns a key that is >= start and < limit
	// (assuming start < limit), preferring the shortest such key it can
	// produce cheaply. It may just return start unchanged.
	FindShortestSeparator(start, limit []byte) []byte
	// FindShortSuccessor returns a key >= key that is a short as
	// possible; it may just return key unchanged.
	FindShortSuccessor(key []byte) []byte
}

// BytewiseComparator orders keys by unsigned byte value, the default (and,
// short of a domain-specific key encoding, usually correct) choice.
var BytewiseComparator Comparator = bytewiseComparator{}

type bytewiseComparator struct{}

func (bytewiseComparator) Name() string { return "leveldb.BytewiseComparator" }

func (bytewiseComparator) Compare(a, b []byte) int { return bytes.Compare(a, b) }

func (bytewiseComparator) FindShortestSeparator(start, limit []byte) []byte {
	minLen := len(start)
	if len(limit) < minLen {
		minLen = len(limit)
	}
	diffIdx := 0
	for diffIdx < minLen && start[diffIdx] == limit[diffIdx] {
		diffIdx++
	}
	if diffIdx >= minLen {
		// One is a prefix of the other; no shorter separator exists.
		return start
	}
	lastByte := start[diffIdx]
	if lastByte < 0xff && lastByte+1 < limit[diffIdx] {
		sep := append([]byte{}, start[:diffIdx+1]...)
		sep[diffIdx]++
		return sep
	}
	return start
}

func (bytewiseComparator) FindShortSuccessor(key []byte) []byte {
	for i, b := range key {
		if b != 0xff {
			succ := append([]byte{}, key[:i+1]...)
			succ[i]++
			return succ
		}
	}
	// key is all 0xff bytes; no short successor exists.
	return key
}

// InternalComparator wraps a user Comparator into one that orders
// internal keys: by user key ascending under the wrapped comparator, then
// by sequence number descending, so that among equal user keys the
// most recently written version sorts first.
type InternalComparator struct {
	User Comparator
}

// NewInternalComparator wraps user into an InternalComparator.
func NewInternalComparator(user Comparator) *InternalComparator {
	return &InternalComparator{User: user}
}

func (c *InternalComparator) Name() string { return "leveldb.InternalKeyComparator" }

func (c *InternalComparator) Compare(a, b []byte) int {
	pa, aok := ParseInternalKey(a)
	pb, bok := ParseInternalKey(b)
	if !aok || !bok {
		// Malformed keys sort by raw bytes; callers are expected to have
		// already rejected corruption before reaching the comparator.
		return bytes.Compare(a, b)
	}
	if r := c.User.Compare(pa.UserKey, pb.UserKey); r != 0 {
		return r
	}
	switch {
	case pa.Seq > pb.Seq:
		return -1
	case pa.Seq < pb.Seq:
		return 1
	case pa.Type > pb.Type:
		return -1
	case pa.Type < pb.Type:
		return 1
	default:
		return 0
	}
}

// FindShortestSeparator shortens the user-key portion of start using the
// wrapped comparator, then re-tags the result with the maximum possible
// sequence so it still sorts strictly between the original start and
// limit. If shortening the user key doesn't actually produce something
// shorter and smaller, start is returned unchanged.
func (c *InternalComparator) FindShortestSeparator(start, limit []byte) []byte {
	userStart := ExtractUserKey(start)
	userLimit := ExtractUserKey(limit)
	shortened := c.User.FindShortestSeparator(userStart, userLimit)
	if len(shortened) < len(userStart) && c.User.Compare(userStart, shortened) < 0 {
		return AppendInternalKey(nil, ParsedInternalKey{
			UserKey: shortened,
			Seq:     MaxSequenceNumber,
			Type:    SeekSentinel,
		})
	}
	return start
}

// FindShortSuccessor shortens the user-key portion of key the same way
// FindShortestSeparator does, re-tagging with the maximum sequence.
func (c *InternalComparator) FindShortSuccessor(key []byte) []byte {
	userKey := ExtractUserKey(key)
	shortened := c.User.FindShortSuccessor(userKey)
	if len(shortened) < len(userKey) && c.User.Compare(userKey, shortened) < 0 {
		return AppendInternalKey(nil, ParsedInternalKey{
			UserKey: shortened,
			Seq:     MaxSequenceNumber,
			Type:    SeekSentinel,
		})
	}
	return key
}
