//go:build linux
// +build linux

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

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapRandomAccessFile is a RandomAccessFile backed by a read-only mmap of
// the whole file. gsst.OpenTable uses this instead of osRandomAccessFile
// when its useMmap argument is true: block reads become plain slices of
// mapped memory instead of a pread syscall per block.
type mmapRandomAccessFile struct {
	fd   *os.File
	data []byte
}

// NewMmapRandomAccessFile mmaps the file at name for random reads.
func NewMmapRandomAccessFile(name string) (RandomAccessFile, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		return &mmapRandomAccessFile{fd: fd}, nil
	}
	data, err := unix.Mmap(int(fd.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return &mmapRandomAccessFile{fd: fd, data: data}, nil
}

func (f *mmapRandomAccessFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(f.data)) {
		return 0, os.ErrInvalid
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, os.ErrClosed
	}
	return n, nil
}

// ReadRangeAt returns a slice directly into the mapped region, with no
// copy. The caller must not retain it past f.Close.
func (f *mmapRandomAccessFile) ReadRangeAt(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > int64(len(f.data)) {
		return nil, os.ErrInvalid
	}
	return f.data[off : off+int64(n) : off+int64(n)], nil
}

func (f *mmapRandomAccessFile) Size() (int64, error) { return int64(len(f.data)), nil }

func (f *mmapRandomAccessFile) Close() error {
	if f.data != nil {
		if err := unix.Munmap(f.data); err != nil {
			return err
		}
	}
	return f.fd.Close()
}
