/*
 * Copyright 2020 Dgraph Labs, Inc. and Contributors
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

import "github.com/dgraph-io/ristretto/v2/z"

// ScratchBuffer is a growable, off-heap byte buffer backed by
// ristretto/z.Calloc. The block and filter block builders accumulate their
// serialized bytes in one of these instead of a bytes.Buffer so that a
// large table build doesn't leave gigabytes of garbage for the Go
// collector to walk; the buffer is Released once its bytes have been
// copied out to a vfs.WritableFile and are no longer needed.
type ScratchBuffer struct {
	buf    []byte
	offset int
}

// smallBufferSize is the minimal capacity of a first allocation.
const smallBufferSize = 64

// NewScratchBuffer allocates a ScratchBuffer with an initial capacity hint
// of sz bytes.
func NewScratchBuffer(sz int) *ScratchBuffer {
	if sz <= 0 {
		sz = smallBufferSize
	}
	return &ScratchBuffer{buf: z.Calloc(sz, "y.ScratchBuffer")}
}

// Len returns the number of bytes written so far.
func (b *ScratchBuffer) Len() int { return b.offset }

// Bytes returns the written prefix of the buffer. The slice is only valid
// until the next call that grows the buffer.
func (b *ScratchBuffer) Bytes() []byte { return b.buf[:b.offset] }

// Grow ensures at least n more bytes can be written without reallocating.
func (b *ScratchBuffer) Grow(n int) {
	if len(b.buf) == 0 && n <= smallBufferSize {
		b.buf = z.Calloc(smallBufferSize, "y.ScratchBuffer")
		return
	} else if b.buf == nil {
		b.buf = z.Calloc(n, "y.ScratchBuffer")
		return
	}
	if b.offset+n < len(b.buf) {
		return
	}
	sz := 2*len(b.buf) + n
	newBuf := z.Calloc(sz, "y.ScratchBuffer")
	copy(newBuf, b.buf[:b.offset])
	z.Free(b.buf)
	b.buf = newBuf
}

// Allocate reserves n bytes at the end of the buffer and returns them for
// the caller to fill in directly. The slice is only valid until the next
// call that grows the buffer.
func (b *ScratchBuffer) Allocate(n int) []byte {
	b.Grow(n)
	off := b.offset
	b.offset += n
	return b.buf[off:b.offset]
}

// Write appends p to the buffer, growing it as needed. It always returns
// (len(p), nil), matching io.Writer.
func (b *ScratchBuffer) Write(p []byte) (int, error) {
	b.Grow(len(p))
	n := copy(b.buf[b.offset:], p)
	b.offset += n
	return n, nil
}

// Reset rewinds the buffer to empty without releasing its backing memory,
// so it can be reused for the next block.
func (b *ScratchBuffer) Reset() { b.offset = 0 }

// Release returns the buffer's backing memory to the off-heap allocator.
// The buffer must not be used afterwards.
func (b *ScratchBuffer) Release() {
	if b.buf != nil {
		z.Free(b.buf)
		b.buf = nil
	}
}
