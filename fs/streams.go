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

package fs

import (
	"io"

	"github.com/virtualfs/memfs/fserrors"
)

// ReadStreamOptions bounds a read stream. Start is the first offset read;
// End is the last (inclusive), with a negative value meaning end of file.
type ReadStreamOptions struct {
	Start int64
	End   int64
}

// A ReadStream reads a file's bytes through positional descriptor reads.
// It satisfies io.ReadCloser; reads past the configured range or the end of
// file return io.EOF.
type ReadStream struct {
	fs     *FileSystem
	fd     int
	pos    int64
	limit  int64 // exclusive; -1 when unbounded
	closed bool
}

// NewReadStream opens p for reading and returns a stream over the given
// range of its bytes. A nil opts reads the whole file.
func (fs *FileSystem) NewReadStream(p string, opts *ReadStreamOptions) (*ReadStream, error) {
	fd, err := fs.Open(p, "r")
	if err != nil {
		return nil, err
	}

	s := &ReadStream{
		fs:    fs,
		fd:    fd,
		limit: -1,
	}

	if opts != nil {
		s.pos = opts.Start
		if opts.End >= 0 {
			s.limit = opts.End + 1
		}
	}

	return s, nil
}

func (s *ReadStream) Read(p []byte) (n int, err error) {
	if s.closed {
		return 0, fserrors.New(fserrors.EBADF, "read")
	}

	if s.limit >= 0 {
		left := s.limit - s.pos
		if left <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > left {
			p = p[:left]
		}
	}

	n, err = s.fs.ReadAt(s.fd, p, s.pos)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	s.pos += int64(n)
	return
}

func (s *ReadStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.fs.Close(s.fd)
}

// A WriteStream writes a file's bytes through a "w"-mode descriptor: the
// file is created if missing and truncated otherwise. It satisfies
// io.WriteCloser.
type WriteStream struct {
	fs     *FileSystem
	fd     int
	closed bool
}

// NewWriteStream opens p for writing and returns a stream replacing its
// contents.
func (fs *FileSystem) NewWriteStream(p string) (*WriteStream, error) {
	fd, err := fs.Open(p, "w")
	if err != nil {
		return nil, err
	}

	return &WriteStream{fs: fs, fd: fd}, nil
}

func (s *WriteStream) Write(p []byte) (n int, err error) {
	if s.closed {
		return 0, fserrors.New(fserrors.EBADF, "write")
	}

	for n < len(p) {
		var written int
		written, err = s.fs.Write(s.fd, p[n:])
		if err != nil {
			return n, err
		}
		n += written
	}

	return
}

func (s *WriteStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.fs.Close(s.fd)
}
