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

// Package fs implements an in-memory file system with a POSIX-shaped call
// surface: paths, inodes, hard links, symbolic links, and integer file
// descriptors carrying access flags and a seek position.
//
// All state lives in memory and is discarded with the FileSystem value.
// Methods are safe for concurrent use; every operation is atomic with
// respect to every other.
package fs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/virtualfs/memfs/fs/inode"
	"github.com/virtualfs/memfs/fserrors"
	"github.com/virtualfs/memfs/idalloc"
)

// Config carries the dependencies of a FileSystem. The zero value is usable:
// a real clock and no logging.
type Config struct {
	// The clock used for inode timestamps. Defaults to the real clock.
	Clock timeutil.Clock

	// Where to log. Defaults to discarding everything.
	Logger *slog.Logger
}

// A FileSystem is a complete in-memory file system rooted at "/".
type FileSystem struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock  timeutil.Clock
	logger *slog.Logger

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	reg *inode.Registry

	// GUARDED_BY(mu)
	root *inode.DirInode

	// The descriptor table. Descriptor numbers are dense and eagerly
	// reused.
	//
	// INVARIANT: Every descriptor's inode is live in reg.
	//
	// GUARDED_BY(mu)
	fds   map[int]*descriptor
	fdIDs *idalloc.Allocator
}

// New creates an empty file system containing only the root directory.
func New(cfg *Config) *FileSystem {
	var clock timeutil.Clock = timeutil.RealClock()
	logger := slog.New(slog.DiscardHandler)

	if cfg != nil && cfg.Clock != nil {
		clock = cfg.Clock
	}
	if cfg != nil && cfg.Logger != nil {
		logger = cfg.Logger
	}

	reg := inode.NewRegistry(clock)
	fs := &FileSystem{
		clock:  clock,
		logger: logger.With("fs", uuid.NewString()),
		reg:    reg,
		root:   reg.CreateRoot(),
		fds:    make(map[int]*descriptor),
		fdIDs:  idalloc.New(0, 32, true),
	}

	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	fs.logger.Debug("created")
	return fs
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (fs *FileSystem) checkInvariants() {
	// The root is its own parent and is never destroyed.
	if _, ok := fs.reg.Get(fs.root.ID()); !ok {
		panic("fs: root inode destroyed")
	}
	if fs.root.Parent() != fs.root.ID() {
		panic("fs: root is not its own parent")
	}

	// INVARIANT: Every descriptor's inode is live in reg.
	for fd, d := range fs.fds {
		if _, ok := fs.reg.Get(d.in.ID()); !ok {
			panic(fmt.Sprintf("fs: descriptor %d refers to a destroyed inode", fd))
		}
	}
}

// Attach op and paths to a bare catalogue errno; pass anything else
// through.
func wrapErr(op string, err error, paths ...string) error {
	if err == nil {
		return nil
	}

	if errno, ok := err.(fserrors.Errno); ok {
		return fserrors.New(errno, op, paths...)
	}

	return err
}

////////////////////////////////////////////////////////////////////////
// Stats
////////////////////////////////////////////////////////////////////////

// Stats is the metadata snapshot returned by Stat, Lstat, and Fstat.
type Stats struct {
	Ino   inode.ID
	Mode  os.FileMode
	Nlink int
	Uid   uint32
	Gid   uint32
	Size  int64

	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
}

func newStats(a inode.Attributes) *Stats {
	return &Stats{
		Ino:       a.Ino,
		Mode:      a.Mode,
		Nlink:     a.Nlink,
		Uid:       a.Uid,
		Gid:       a.Gid,
		Size:      a.Size,
		Atime:     a.Atime,
		Mtime:     a.Mtime,
		Ctime:     a.Ctime,
		Birthtime: a.Birthtime,
	}
}

func (s *Stats) IsFile() bool {
	return s.Mode&(os.ModeDir|os.ModeSymlink) == 0
}

func (s *Stats) IsDirectory() bool {
	return s.Mode&os.ModeDir != 0
}

func (s *Stats) IsSymbolicLink() bool {
	return s.Mode&os.ModeSymlink != 0
}

////////////////////////////////////////////////////////////////////////
// Metadata operations
////////////////////////////////////////////////////////////////////////

// Stat returns the metadata of the inode at p, following a final symlink.
func (fs *FileSystem) Stat(p string) (*Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, true)
	if err != nil {
		return nil, wrapErr("stat", err, p)
	}
	if res.Target == nil {
		return nil, fserrors.New(fserrors.ENOENT, "stat", p)
	}

	return newStats(res.Target.Attributes()), nil
}

// Lstat is Stat without following a final symlink.
func (fs *FileSystem) Lstat(p string) (*Stats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, false)
	if err != nil {
		return nil, wrapErr("lstat", err, p)
	}
	if res.Target == nil {
		return nil, fserrors.New(fserrors.ENOENT, "lstat", p)
	}

	return newStats(res.Target.Attributes()), nil
}

// Exists reports whether p resolves to a live inode.
func (fs *FileSystem) Exists(p string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, true)
	return err == nil && res.Target != nil
}

// Access checks that p exists and that the requested permission bits are
// granted. Since every inode carries mode 0777, the check fails only for
// missing targets.
func (fs *FileSystem) Access(p string, mode int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, true)
	if err != nil {
		return wrapErr("access", err, p)
	}
	if res.Target == nil {
		return fserrors.New(fserrors.ENOENT, "access", p)
	}

	perm := res.Target.Attributes().Mode.Perm()
	var need os.FileMode
	if mode&R_OK != 0 {
		need |= 0o400
	}
	if mode&W_OK != 0 {
		need |= 0o200
	}
	if mode&X_OK != 0 {
		need |= 0o100
	}

	if perm&need != need {
		return fserrors.New(fserrors.EACCES, "access", p)
	}

	return nil
}

// Chmod checks that p exists. Modes are accepted but not enforced, so no
// state changes.
func (fs *FileSystem) Chmod(p string, _ os.FileMode) error {
	return fs.checkExists("chmod", p, true)
}

// Lchmod is Chmod without following a final symlink.
func (fs *FileSystem) Lchmod(p string, _ os.FileMode) error {
	return fs.checkExists("lchmod", p, false)
}

// Chown checks that p exists; ownership is fixed at root.
func (fs *FileSystem) Chown(p string, _ int, _ int) error {
	return fs.checkExists("chown", p, true)
}

// Lchown is Chown without following a final symlink.
func (fs *FileSystem) Lchown(p string, _ int, _ int) error {
	return fs.checkExists("lchown", p, false)
}

func (fs *FileSystem) checkExists(op string, p string, resolveLastLink bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, resolveLastLink)
	if err != nil {
		return wrapErr(op, err, p)
	}
	if res.Target == nil {
		return fserrors.New(fserrors.ENOENT, op, p)
	}

	return nil
}

// Utimes overwrites the atime and mtime of the inode at p.
func (fs *FileSystem) Utimes(p string, atime time.Time, mtime time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, true)
	if err != nil {
		return wrapErr("utimes", err, p)
	}
	if res.Target == nil {
		return fserrors.New(fserrors.ENOENT, "utimes", p)
	}

	inode.SetTimes(res.Target, atime, mtime)
	return nil
}

////////////////////////////////////////////////////////////////////////
// Directory operations
////////////////////////////////////////////////////////////////////////

// Mkdir creates a directory at p. The permission argument is accepted and
// ignored.
func (fs *FileSystem) Mkdir(p string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, true)
	if err != nil {
		return wrapErr("mkdir", err, p)
	}
	if res.Target != nil {
		return fserrors.New(fserrors.EEXIST, "mkdir", p)
	}
	if res.Name == "" {
		return fserrors.New(fserrors.ENOENT, "mkdir", p)
	}

	d := fs.reg.CreateDir(res.Dir.ID())
	res.Dir.AddChild(res.Name, d.ID())

	fs.logger.Debug("mkdir", "path", p, "ino", d.ID())
	return nil
}

// MkdirAll creates the directory at p along with any missing parents.
// Existing directories along the way are fine; an existing non-directory is
// not. Creating "/" is a no-op.
func (fs *FileSystem) MkdirAll(p string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if p == "" {
		return fserrors.New(fserrors.ENOENT, "mkdir", p)
	}

	cur := fs.root
	rest := canonicalize(p)

	for rest != "" {
		var seg string
		seg, rest = splitSegment(rest)

		active := make(map[inode.ID]struct{})
		res, err := fs.navigateFrom(cur, seg, true, active)
		if err != nil {
			return wrapErr("mkdir", err, p)
		}

		switch {
		case res.Target == nil && res.Name == "":
			// A symlink component expanded into a path with missing
			// intermediate directories of its own.
			return fserrors.New(fserrors.ENOENT, "mkdir", p)

		case res.Target == nil:
			d := fs.reg.CreateDir(res.Dir.ID())
			res.Dir.AddChild(res.Name, d.ID())
			fs.logger.Debug("mkdir", "path", p, "ino", d.ID())
			cur = d

		default:
			d, isDir := res.Target.(*inode.DirInode)
			if !isDir {
				if rest == "" {
					return fserrors.New(fserrors.EEXIST, "mkdir", p)
				}
				return fserrors.New(fserrors.ENOTDIR, "mkdir", p)
			}
			cur = d
		}
	}

	return nil
}

// Rmdir removes the empty directory at p.
func (fs *FileSystem) Rmdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, false)
	if err != nil {
		return wrapErr("rmdir", err, p)
	}
	if res.Target == nil {
		return fserrors.New(fserrors.ENOENT, "rmdir", p)
	}

	d, isDir := res.Target.(*inode.DirInode)
	if !isDir {
		return fserrors.New(fserrors.ENOTDIR, "rmdir", p)
	}
	if d == fs.root {
		return fserrors.New(fserrors.EBUSY, "rmdir", p)
	}
	if d.EntryCount() != 0 {
		return fserrors.New(fserrors.ENOTEMPTY, "rmdir", p)
	}

	res.Dir.RemoveChild(res.Name)

	// Retire the directory's "."-self link as well, so that it is destroyed
	// once any descriptors are gone.
	fs.reg.Unlink(d.ID())

	fs.logger.Debug("rmdir", "path", p)
	return nil
}

// ReadDir lists the directory at p in entry insertion order, excluding "."
// and "..". A final symlink is not followed.
func (fs *FileSystem) ReadDir(p string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, false)
	if err != nil {
		return nil, wrapErr("scandir", err, p)
	}
	if res.Target == nil {
		return nil, fserrors.New(fserrors.ENOENT, "scandir", p)
	}

	d, isDir := res.Target.(*inode.DirInode)
	if !isDir {
		return nil, fserrors.New(fserrors.ENOTDIR, "scandir", p)
	}

	return d.ReadEntries(), nil
}

////////////////////////////////////////////////////////////////////////
// Link operations
////////////////////////////////////////////////////////////////////////

// Link creates a hard link at newpath naming the inode at existing.
// Symlinks at either final position are not followed: linking a symlink
// links the symlink itself. Directories cannot be hard linked.
func (fs *FileSystem) Link(existing string, newpath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	src, err := fs.navigate(existing, false)
	if err != nil {
		return wrapErr("link", err, existing, newpath)
	}
	if src.Target == nil {
		return fserrors.New(fserrors.ENOENT, "link", existing, newpath)
	}
	if _, isDir := src.Target.(*inode.DirInode); isDir {
		return fserrors.New(fserrors.EPERM, "link", existing, newpath)
	}

	dst, err := fs.navigate(newpath, false)
	if err != nil {
		return wrapErr("link", err, existing, newpath)
	}
	if dst.Target != nil {
		return fserrors.New(fserrors.EEXIST, "link", existing, newpath)
	}
	if dst.Name == "" {
		return fserrors.New(fserrors.ENOENT, "link", existing, newpath)
	}

	dst.Dir.AddChild(dst.Name, src.Target.ID())

	fs.logger.Debug("link", "existing", existing, "new", newpath)
	return nil
}

// Symlink creates a symbolic link at linkpath whose target is the given
// string. The target need not exist.
func (fs *FileSystem) Symlink(target string, linkpath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(linkpath, false)
	if err != nil {
		return wrapErr("symlink", err, target, linkpath)
	}
	if res.Target != nil {
		return fserrors.New(fserrors.EEXIST, "symlink", target, linkpath)
	}
	if res.Name == "" {
		return fserrors.New(fserrors.ENOENT, "symlink", target, linkpath)
	}

	s := fs.reg.CreateSymlink(target)
	res.Dir.AddChild(res.Name, s.ID())

	fs.logger.Debug("symlink", "target", target, "path", linkpath)
	return nil
}

// Readlink returns the target of the symlink at p.
func (fs *FileSystem) Readlink(p string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, false)
	if err != nil {
		return "", wrapErr("readlink", err, p)
	}
	if res.Target == nil {
		return "", fserrors.New(fserrors.ENOENT, "readlink", p)
	}

	s, isLink := res.Target.(*inode.SymlinkInode)
	if !isLink {
		return "", fserrors.New(fserrors.EINVAL, "readlink", p)
	}

	return s.Target(), nil
}

// Unlink removes the name at p. The inode behind it is destroyed once its
// last name and last open descriptor are gone; unlinking a symlink removes
// the symlink, never its target.
func (fs *FileSystem) Unlink(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, false)
	if err != nil {
		return wrapErr("unlink", err, p)
	}
	if res.Target == nil {
		return fserrors.New(fserrors.ENOENT, "unlink", p)
	}
	if _, isDir := res.Target.(*inode.DirInode); isDir {
		return fserrors.New(fserrors.EISDIR, "unlink", p)
	}

	res.Dir.RemoveChild(res.Name)

	fs.logger.Debug("unlink", "path", p)
	return nil
}

// Rename moves the name at oldpath to newpath. An existing newpath is
// replaced if the kinds agree (a directory only by an empty directory, a
// non-directory only by a non-directory). The root cannot be either
// endpoint. Final symlinks are moved, not followed.
func (fs *FileSystem) Rename(oldpath string, newpath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	src, err := fs.navigate(oldpath, false)
	if err != nil {
		return wrapErr("rename", err, oldpath, newpath)
	}
	if src.Target == nil {
		return fserrors.New(fserrors.ENOENT, "rename", oldpath, newpath)
	}
	if src.Target == fs.root {
		return fserrors.New(fserrors.EBUSY, "rename", oldpath, newpath)
	}

	dst, err := fs.navigate(newpath, false)
	if err != nil {
		return wrapErr("rename", err, oldpath, newpath)
	}
	if dst.Target == fs.root {
		return fserrors.New(fserrors.EBUSY, "rename", oldpath, newpath)
	}
	if dst.Target == nil && dst.Name == "" {
		return fserrors.New(fserrors.ENOENT, "rename", oldpath, newpath)
	}

	// Moving a name onto itself is a no-op.
	if dst.Dir == src.Dir && dst.Name == src.Name {
		return nil
	}

	srcDir, srcIsDir := src.Target.(*inode.DirInode)

	if dst.Target != nil {
		dstDir, dstIsDir := dst.Target.(*inode.DirInode)

		if !srcIsDir && dstIsDir {
			return fserrors.New(fserrors.EISDIR, "rename", oldpath, newpath)
		}
		if srcIsDir && !dstIsDir {
			return fserrors.New(fserrors.ENOTDIR, "rename", oldpath, newpath)
		}
		if dstIsDir && dstDir.EntryCount() != 0 {
			return fserrors.New(fserrors.ENOTEMPTY, "rename", oldpath, newpath)
		}

		dst.Dir.RemoveChild(dst.Name)
		if dstIsDir {
			fs.reg.Unlink(dstDir.ID())
		}
	}

	if dst.Dir == src.Dir {
		src.Dir.RenameChild(src.Name, dst.Name)
	} else {
		// Add before removing so the link count never touches zero.
		dst.Dir.AddChild(dst.Name, src.Target.ID())
		src.Dir.RemoveChild(src.Name)

		if srcIsDir {
			srcDir.SetParent(dst.Dir.ID())
		}
	}

	fs.logger.Debug("rename", "old", oldpath, "new", newpath)
	return nil
}

////////////////////////////////////////////////////////////////////////
// Whole-file operations
////////////////////////////////////////////////////////////////////////

// Truncate resizes the file at p, following a final symlink.
func (fs *FileSystem) Truncate(p string, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if size < 0 {
		return fserrors.New(fserrors.EINVAL, "truncate", p)
	}

	res, err := fs.navigate(p, true)
	if err != nil {
		return wrapErr("truncate", err, p)
	}
	if res.Target == nil {
		return fserrors.New(fserrors.ENOENT, "truncate", p)
	}

	f, isFile := res.Target.(*inode.FileInode)
	if !isFile {
		return fserrors.New(fserrors.EISDIR, "truncate", p)
	}

	if err := f.Truncate(size); err != nil {
		return wrapErr("truncate", err, p)
	}

	return nil
}

// ReadFile returns an independent copy of the contents of the file at p.
func (fs *FileSystem) ReadFile(p string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	res, err := fs.navigate(p, true)
	if err != nil {
		return nil, wrapErr("open", err, p)
	}
	if res.Target == nil {
		return nil, fserrors.New(fserrors.ENOENT, "open", p)
	}

	f, isFile := res.Target.(*inode.FileInode)
	if !isFile {
		return nil, fserrors.New(fserrors.EISDIR, "read", p)
	}

	return f.Contents(), nil
}

// WriteFile replaces the contents of the file at p, creating it if needed.
func (fs *FileSystem) WriteFile(p string, data []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.spoolFile(p, data, O_WRONLY|O_CREAT|O_TRUNC)
}

// AppendFile appends data to the file at p, creating it if needed.
func (fs *FileSystem) AppendFile(p string, data []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.spoolFile(p, data, O_WRONLY|O_CREAT|O_APPEND)
}

// Write data through a transient descriptor so that flag semantics
// (truncation, append placement) match the descriptor layer exactly.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) spoolFile(p string, data []byte, flags OpenFlags) error {
	fd, err := fs.openFile(p, flags)
	if err != nil {
		return err
	}
	defer fs.closeFD(fd)

	for len(data) > 0 {
		n, err := fs.writeFD(fd, data, 0, false)
		if err != nil {
			return wrapErr("write", err, p)
		}
		data = data[n:]
	}

	return nil
}
