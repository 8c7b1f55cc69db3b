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

import "os"

// datasyncFileFlag is OS-specific: on the platforms that have O_DSYNC, we
// open table files with it so every Write is already durable without
// forcing a full metadata fsync on every block flush. See file_unix.go.
var datasyncFileFlag = 0

// osWritableFile adapts *os.File to WritableFile, opened with the
// platform's O_DSYNC flag when available.
type osWritableFile struct {
	fd *os.File
}

// NewWritableFile creates or truncates the file at name and returns a
// WritableFile writing to it.
func NewWritableFile(name string) (WritableFile, error) {
	fd, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC|datasyncFileFlag, 0666)
	if err != nil {
		return nil, err
	}
	return &osWritableFile{fd: fd}, nil
}

func (f *osWritableFile) Write(p []byte) (int, error) { return f.fd.Write(p) }
func (f *osWritableFile) Sync() error                 { return f.fd.Sync() }
func (f *osWritableFile) Close() error                { return f.fd.Close() }

// osRandomAccessFile adapts *os.File to RandomAccessFile via pread.
type osRandomAccessFile struct {
	fd *os.File
}

// NewRandomAccessFile opens the file at name for random reads.
func NewRandomAccessFile(name string) (RandomAccessFile, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &osRandomAccessFile{fd: fd}, nil
}

func (f *osRandomAccessFile) ReadAt(p []byte, off int64) (int, error) { return f.fd.ReadAt(p, off) }
func (f *osRandomAccessFile) Close() error                            { return f.fd.Close() }

func (f *osRandomAccessFile) Size() (int64, error) {
	fi, err := f.fd.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
