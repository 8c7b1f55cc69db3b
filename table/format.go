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

// Package table implements the on-disk sorted-string table: block-level
// encoding, the two-level and merging iterators layered over it, and the
// builder/reader pair that produce and consume the file format.
package table

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sausheong/gsst/y"
)

// CompressionType is the one-byte tag stored in every block trailer
// identifying how the block body was compressed.
type CompressionType byte

const (
	// NoCompression stores the block body as-is.
	NoCompression CompressionType = 0
	// SnappyCompression compresses the block body with snappy.
	SnappyCompression CompressionType = 1
)

// blockTrailerSize is the type byte plus the 4-byte masked CRC32C.
const blockTrailerSize = 5

// MagicNumber is the fixed 8 bytes closing every table file, chosen so a
// short or truncated read can never be mistaken for a valid footer.
const MagicNumber uint64 = 0xdb4775248b80fb57

// FooterEncodedLength is the fixed size of the trailing footer: two
// maximally-sized encoded handles, padded, followed by the 8-byte magic.
const FooterEncodedLength = 48

// maxHandleEncodedLength is the largest a single varint64-pair BlockHandle
// encoding can be (10 bytes per varint64).
const maxHandleEncodedLength = 20

// BlockHandle points at a block within a table file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo appends the varint encoding of h to dst.
func (h BlockHandle) EncodeTo(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, h.Offset)
	dst = binary.AppendUvarint(dst, h.Size)
	return dst
}

// DecodeBlockHandle decodes a BlockHandle from the front of src, returning
// it along with the remaining bytes.
func DecodeBlockHandle(src []byte) (BlockHandle, []byte, error) {
	offset, n := binary.Uvarint(src)
	if n <= 0 {
		return BlockHandle{}, nil, errors.New("table: bad block handle offset")
	}
	rest := src[n:]
	size, n2 := binary.Uvarint(rest)
	if n2 <= 0 {
		return BlockHandle{}, nil, errors.New("table: bad block handle size")
	}
	return BlockHandle{Offset: offset, Size: size}, rest[n2:], nil
}

// Footer is the fixed-size trailer of a table file.
type Footer struct {
	MetaindexHandle BlockHandle
	IndexHandle     BlockHandle
}

// EncodeTo renders f into exactly FooterEncodedLength bytes.
func (f Footer) EncodeTo() []byte {
	buf := make([]byte, 0, FooterEncodedLength)
	buf = f.MetaindexHandle.EncodeTo(buf)
	buf = f.IndexHandle.EncodeTo(buf)
	if len(buf) > FooterEncodedLength-8 {
		panic("table: encoded handles overflow footer")
	}
	padded := make([]byte, FooterEncodedLength)
	copy(padded, buf)
	binary.LittleEndian.PutUint64(padded[FooterEncodedLength-8:], MagicNumber)
	return padded
}

// ErrCorruption is wrapped by every corruption-flavored error the table
// package returns: bad varints, bad checksums, bad magic numbers, and
// malformed internal keys.
var ErrCorruption = errors.New("table: corruption")

// ErrInvalidArgument is returned for a caller-supplied argument that
// violates a documented precondition, such as Builder.SetComparator
// called after entries have already been added.
var ErrInvalidArgument = errors.New("table: invalid argument")

// DecodeFooter parses a footer from its fixed-size encoding.
func DecodeFooter(data []byte) (Footer, error) {
	if len(data) != FooterEncodedLength {
		return Footer{}, errors.Wrapf(ErrCorruption, "footer has wrong length %d", len(data))
	}
	magic := binary.LittleEndian.Uint64(data[FooterEncodedLength-8:])
	if magic != MagicNumber {
		return Footer{}, errors.Wrap(ErrCorruption, "bad magic number")
	}
	metaHandle, rest, err := DecodeBlockHandle(data)
	if err != nil {
		return Footer{}, errors.Wrap(ErrCorruption, err.Error())
	}
	indexHandle, _, err := DecodeBlockHandle(rest)
	if err != nil {
		return Footer{}, errors.Wrap(ErrCorruption, err.Error())
	}
	return Footer{MetaindexHandle: metaHandle, IndexHandle: indexHandle}, nil
}

// BlockContents is a decoded, decompressed block body plus the flags a
// caller needs to know how to manage its memory.
type BlockContents struct {
	Data []byte
	// Cachable is false for blocks that must never be cached, e.g. ones
	// that alias memory the file itself owns and might invalidate.
	Cachable bool
	// HeapAllocated is true when Data was allocated fresh for this read
	// (so it's always safe to hold onto) rather than aliasing a buffer
	// owned by the file abstraction.
	HeapAllocated bool
}

// ReadOptions controls how a single block read is performed.
type ReadOptions struct {
	VerifyChecksums bool
	FillCache       bool
	// Logger, if non-nil, receives Errorf on a checksum mismatch.
	Logger y.Logger
}

// ReadBlock reads and decodes the block described by handle out of r. It
// reads exactly handle.Size+blockTrailerSize bytes at handle.Offset,
// verifies the checksum when requested, and decompresses per the trailer's
// type byte.
func ReadBlock(r ReaderAt, opt ReadOptions, handle BlockHandle) (BlockContents, error) {
	n := handle.Size + blockTrailerSize
	var buf []byte
	zeroCopy := false
	if zr, ok := r.(ByteRangeReaderAt); ok {
		b, err := zr.ReadRangeAt(int64(handle.Offset), int(n))
		if err != nil {
			return BlockContents{}, errors.Wrapf(err, "table: reading block at offset %d", handle.Offset)
		}
		buf = b
		zeroCopy = true
	} else {
		buf = make([]byte, n)
		if _, err := r.ReadAt(buf, int64(handle.Offset)); err != nil {
			return BlockContents{}, errors.Wrapf(err, "table: reading block at offset %d", handle.Offset)
		}
	}

	body := buf[:handle.Size]
	trailer := buf[handle.Size:n]
	compressionType := CompressionType(trailer[0])

	if opt.VerifyChecksums {
		expected := binary.LittleEndian.Uint32(trailer[1:])
		checked := make([]byte, handle.Size+1)
		copy(checked, body)
		checked[handle.Size] = byte(compressionType)
		if err := y.VerifyChecksum(checked, expected); err != nil {
			if opt.Logger != nil {
				opt.Logger.Errorf("table: checksum mismatch at offset %d: %v", handle.Offset, err)
			}
			return BlockContents{}, errors.Wrapf(ErrCorruption, "block checksum mismatch at offset %d", handle.Offset)
		}
	}

	switch compressionType {
	case NoCompression:
		// A block read via ByteRangeReaderAt aliases the file's own
		// memory (a mapped region): it must not be cached past this
		// call or treated as safe to hold onto without copying.
		return BlockContents{Data: body, Cachable: !zeroCopy, HeapAllocated: !zeroCopy}, nil
	case SnappyCompression:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return BlockContents{}, errors.Wrapf(ErrCorruption, "snappy decode failed at offset %d", handle.Offset)
		}
		return BlockContents{Data: decoded, Cachable: true, HeapAllocated: true}, nil
	default:
		return BlockContents{}, errors.Wrapf(ErrCorruption, "unknown compression type %d", compressionType)
	}
}

// ReaderAt is the minimal capability ReadBlock needs from a file; both
// vfs.RandomAccessFile and *bytes.Reader-like test doubles satisfy it.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// ByteRangeReaderAt is implemented by a ReaderAt that can hand back a
// slice directly into memory it already owns, rather than copying into a
// caller-supplied buffer — an mmap-backed file, in particular. ReadBlock
// prefers this over ReadAt when available, so an uncompressed block never
// gets copied out of the mapping at all.
type ByteRangeReaderAt interface {
	ReaderAt
	ReadRangeAt(off int64, n int) ([]byte, error)
}

// maskedCRC32C computes the checksum writeRawBlock stores in a trailer:
// CRC32C over the block body extended to also cover the type byte, then
// masked.
func maskedCRC32C(body []byte, compressionType CompressionType) uint32 {
	buf := make([]byte, len(body)+1)
	copy(buf, body)
	buf[len(body)] = byte(compressionType)
	return y.MaskCRC(y.CRC32C(buf))
}
