// Copyright 2025 the memfs authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inode

import (
	"math"

	"github.com/virtualfs/memfs/fserrors"
)

// MaxFileSize is the largest byte length a file's buffer may grow to.
// Writes that would extend a file past it fail with ENOSPC.
const MaxFileSize = math.MaxInt32

// A FileInode is a regular file: a growable byte buffer plus metadata.
//
// INVARIANT: attrs.Size == len(data)
type FileInode struct {
	inodeCore
	data []byte
}

var _ Inode = &FileInode{}

func (f *FileInode) ID() ID {
	return f.id()
}

func (f *FileInode) Attributes() Attributes {
	return f.attributes()
}

func (f *FileInode) core() *inodeCore {
	return &f.inodeCore
}

// ReadAt copies up to len(p) bytes from the buffer starting at off into p,
// returning the number copied. Reads at or past the end copy nothing.
//
// REQUIRES: off >= 0
func (f *FileInode) ReadAt(p []byte, off int64) (n int) {
	f.touchAtime()

	if off >= int64(len(f.data)) {
		return 0
	}

	n = copy(p, f.data[off:])
	return
}

// WriteAt copies p into the buffer starting at off, extending the buffer if
// the write crosses the end. A gap between the old end and off reads as
// zeroes.
//
// REQUIRES: off >= 0
func (f *FileInode) WriteAt(p []byte, off int64) (n int, err error) {
	end := off + int64(len(p))
	if end > MaxFileSize {
		err = fserrors.ENOSPC
		return
	}

	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}

	n = copy(f.data[off:], p)

	f.attrs.Size = int64(len(f.data))
	f.touchMtime()

	return
}

// Contents returns an independent copy of the file's bytes.
func (f *FileInode) Contents() []byte {
	f.touchAtime()

	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// SetContents replaces the file's bytes with a copy of p.
func (f *FileInode) SetContents(p []byte) error {
	if int64(len(p)) > MaxFileSize {
		return fserrors.ENOSPC
	}

	f.data = make([]byte, len(p))
	copy(f.data, p)

	f.attrs.Size = int64(len(f.data))
	f.touchMtime()

	return nil
}

// Truncate resizes the buffer to size bytes, zero-filling when extending.
//
// REQUIRES: size >= 0
func (f *FileInode) Truncate(size int64) error {
	if size > MaxFileSize {
		return fserrors.ENOSPC
	}

	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.data)
		f.data = grown
	}

	f.attrs.Size = int64(len(f.data))
	f.touchMtime()

	return nil
}
