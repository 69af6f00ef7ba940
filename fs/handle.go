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
	"os"
	"time"

	"github.com/virtualfs/memfs/fs/inode"
	"github.com/virtualfs/memfs/fserrors"
)

// The state behind one file descriptor: the inode it refers to, the flags
// it was opened with, and a seek position. A descriptor holds its inode
// alive even after the last name for it is gone.
type descriptor struct {
	in    inode.Inode
	flags OpenFlags
	pos   int64
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) lookupFD(fd int) (*descriptor, bool) {
	d, ok := fs.fds[fd]
	return d, ok
}

// Allocate a descriptor for the inode and record the open.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) newFD(in inode.Inode, flags OpenFlags) (fd int) {
	fd = fs.fdIDs.Allocate()
	fs.fds[fd] = &descriptor{
		in:    in,
		flags: flags,
	}

	fs.reg.IncOpens(in.ID())
	return
}

// The open algorithm behind Open and OpenFile.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) openFile(p string, flags OpenFlags) (fd int, err error) {
	res, err := fs.navigate(p, false)
	if err != nil {
		return 0, wrapErr("open", err, p)
	}

	// A symlink in the final position is followed unless NOFOLLOW forbids
	// it; an exclusive create through one is already a collision.
	if _, isLink := res.Target.(*inode.SymlinkInode); isLink {
		if flags&O_NOFOLLOW != 0 {
			return 0, fserrors.New(fserrors.ELOOP, "open", p)
		}
		if flags&O_CREAT != 0 && flags&O_EXCL != 0 {
			return 0, fserrors.New(fserrors.EEXIST, "open", p)
		}

		res, err = fs.navigate(p, true)
		if err != nil {
			return 0, wrapErr("open", err, p)
		}
	}

	if res.Target == nil && res.Name == "" {
		return 0, fserrors.New(fserrors.ENOENT, "open", p)
	}

	target := res.Target
	if target == nil {
		if flags&O_CREAT == 0 {
			return 0, fserrors.New(fserrors.ENOENT, "open", p)
		}

		f := fs.reg.CreateFile()
		res.Dir.AddChild(res.Name, f.ID())
		fs.logger.Debug("create", "path", p, "ino", f.ID())
		target = f
	} else {
		if flags&O_CREAT != 0 && flags&O_EXCL != 0 {
			return 0, fserrors.New(fserrors.EEXIST, "open", p)
		}

		switch t := target.(type) {
		case *inode.DirInode:
			if flags.writable() {
				return 0, fserrors.New(fserrors.EISDIR, "open", p)
			}

		case *inode.FileInode:
			if flags&O_DIRECTORY != 0 {
				return 0, fserrors.New(fserrors.ENOTDIR, "open", p)
			}
			if flags&O_TRUNC != 0 && flags.writable() {
				if err := t.Truncate(0); err != nil {
					return 0, wrapErr("open", err, p)
				}
			}
		}
	}

	return fs.newFD(target, flags), nil
}

// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) closeFD(fd int) error {
	d, ok := fs.lookupFD(fd)
	if !ok {
		return fserrors.New(fserrors.EBADF, "close")
	}

	delete(fs.fds, fd)
	fs.fdIDs.Deallocate(fd)
	fs.reg.DecOpens(d.in.ID())

	return nil
}

// Shared by Read and ReadAt. With usePos set, reads at pos without moving
// the descriptor (a negative pos is EINVAL); otherwise reads at the
// descriptor position and advances it.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) readFD(fd int, p []byte, pos int64, usePos bool) (n int, err error) {
	d, ok := fs.lookupFD(fd)
	if !ok || !d.flags.readable() {
		return 0, fserrors.New(fserrors.EBADF, "read")
	}

	f, isFile := d.in.(*inode.FileInode)
	if !isFile {
		return 0, fserrors.New(fserrors.EISDIR, "read")
	}

	if usePos && pos < 0 {
		return 0, fserrors.New(fserrors.EINVAL, "read")
	}

	at := d.pos
	if usePos {
		at = pos
	}

	n = f.ReadAt(p, at)
	if !usePos {
		d.pos += int64(n)
	}

	return
}

// Shared by Write and WriteAt. Under O_APPEND the supplied position is
// ignored, bytes land at the current end, and the descriptor position is
// parked after them; otherwise an explicit position leaves the descriptor
// position alone.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) writeFD(fd int, p []byte, pos int64, usePos bool) (n int, err error) {
	d, ok := fs.lookupFD(fd)
	if !ok || !d.flags.writable() {
		return 0, fserrors.New(fserrors.EBADF, "write")
	}

	if usePos && pos < 0 {
		return 0, fserrors.New(fserrors.EINVAL, "write")
	}

	f, isFile := d.in.(*inode.FileInode)
	if !isFile {
		// Unreachable today: directories never open writable.
		return 0, fserrors.New(fserrors.EISDIR, "write")
	}

	appending := d.flags&O_APPEND != 0

	at := d.pos
	switch {
	case appending:
		at = f.Attributes().Size
	case usePos:
		at = pos
	}

	n, err = f.WriteAt(p, at)
	if err != nil {
		return 0, wrapErr("write", err)
	}

	switch {
	case appending:
		d.pos = at + int64(n)
	case usePos:
		// Explicit position; the descriptor does not move.
	default:
		d.pos += int64(n)
	}

	return
}

////////////////////////////////////////////////////////////////////////
// Public interface
////////////////////////////////////////////////////////////////////////

// Open opens the file at p with a short mode string such as "r", "w+", or
// "ax", returning a descriptor.
func (fs *FileSystem) Open(p string, mode string) (fd int, err error) {
	flags, err := ParseOpenMode(mode)
	if err != nil {
		return 0, err
	}

	return fs.OpenFile(p, flags, 0777)
}

// OpenFile opens the file at p with explicit flag bits. The permission
// argument is accepted for call-surface compatibility and ignored; every
// inode carries mode 0777.
func (fs *FileSystem) OpenFile(p string, flags OpenFlags, _ os.FileMode) (fd int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.openFile(p, flags)
}

// Close releases the descriptor. If the inode behind it has no names left
// and this was the last descriptor, the inode is destroyed.
func (fs *FileSystem) Close(fd int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.closeFD(fd)
}

// Read copies up to len(p) bytes from the descriptor's current position
// into p, advancing the position by the number of bytes read. It returns 0
// at end of file.
func (fs *FileSystem) Read(fd int, p []byte) (n int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.readFD(fd, p, 0, false)
}

// ReadAt is Read at an explicit position. The descriptor position is not
// consulted and not modified.
func (fs *FileSystem) ReadAt(fd int, p []byte, pos int64) (n int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.readFD(fd, p, pos, true)
}

// Write copies p into the file at the descriptor's current position (or the
// end of the file under O_APPEND), advancing the position.
func (fs *FileSystem) Write(fd int, p []byte) (n int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.writeFD(fd, p, 0, false)
}

// WriteAt is Write at an explicit position, leaving the descriptor
// position alone. Under O_APPEND the position is ignored and the write
// still lands at the end of the file.
func (fs *FileSystem) WriteAt(fd int, p []byte, pos int64) (n int, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.writeFD(fd, p, pos, true)
}

// Fstat returns the metadata of the inode behind the descriptor.
func (fs *FileSystem) Fstat(fd int) (*Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, ok := fs.lookupFD(fd)
	if !ok {
		return nil, fserrors.New(fserrors.EBADF, "fstat")
	}

	return newStats(d.in.Attributes()), nil
}

// Fchmod validates the descriptor. Modes are not enforced, so there is
// nothing else to do.
func (fs *FileSystem) Fchmod(fd int, _ os.FileMode) error {
	return fs.validFD(fd, "fchmod")
}

// Fchown validates the descriptor; ownership is fixed at root.
func (fs *FileSystem) Fchown(fd int, _ int, _ int) error {
	return fs.validFD(fd, "fchown")
}

// Fsync validates the descriptor. There is no backing store to flush.
func (fs *FileSystem) Fsync(fd int) error {
	return fs.validFD(fd, "fsync")
}

// Fdatasync validates the descriptor. There is no backing store to flush.
func (fs *FileSystem) Fdatasync(fd int) error {
	return fs.validFD(fd, "fdatasync")
}

// Futimes overwrites the atime and mtime of the inode behind the
// descriptor.
func (fs *FileSystem) Futimes(fd int, atime time.Time, mtime time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, ok := fs.lookupFD(fd)
	if !ok {
		return fserrors.New(fserrors.EBADF, "futimes")
	}

	inode.SetTimes(d.in, atime, mtime)
	return nil
}

// Ftruncate resizes the file behind a writable descriptor.
func (fs *FileSystem) Ftruncate(fd int, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, ok := fs.lookupFD(fd)
	if !ok {
		return fserrors.New(fserrors.EBADF, "ftruncate")
	}

	if !d.flags.writable() || size < 0 {
		return fserrors.New(fserrors.EINVAL, "ftruncate")
	}

	f, isFile := d.in.(*inode.FileInode)
	if !isFile {
		return fserrors.New(fserrors.EINVAL, "ftruncate")
	}

	if err := f.Truncate(size); err != nil {
		return wrapErr("ftruncate", err)
	}

	return nil
}

func (fs *FileSystem) validFD(fd int, op string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.lookupFD(fd); !ok {
		return fserrors.New(fserrors.EBADF, op)
	}

	return nil
}
