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

// Package fuseserver serves the in-memory file system over FUSE.
//
// The kernel does path resolution for us, so this adapter works directly
// against the inode registry: every operation is keyed by inode ID. Kernel
// lookup counts map onto the registry's open counts, which keeps inodes
// alive between unlink and forget.
package fuseserver

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/virtualfs/memfs/fs/inode"
)

type server struct {
	fuseutil.NotImplementedFileSystem

	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	reg *inode.Registry

	// GUARDED_BY(mu)
	root *inode.DirInode
}

// NewFileSystem creates the fuseutil file system backing NewServer. Split
// out for tests that drive operations directly.
func NewFileSystem(clock timeutil.Clock) fuseutil.FileSystem {
	s := &server{
		clock: clock,
		reg:   inode.NewRegistry(clock),
	}

	// The registry hands out ID 1 first, which is exactly
	// fuseops.RootInodeID.
	s.root = s.reg.CreateRoot()
	if fuseops.InodeID(s.root.ID()) != fuseops.RootInodeID {
		panic(fmt.Sprintf("unexpected root inode ID: %d", s.root.ID()))
	}

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)

	return s
}

// NewServer creates a FUSE server backed by a fresh, empty file system.
func NewServer(clock timeutil.Clock) fuse.Server {
	return fuseutil.NewFileSystemServer(NewFileSystem(clock))
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (s *server) checkInvariants() {
	in, ok := s.reg.Get(s.root.ID())
	if !ok {
		panic("fuseserver: root inode destroyed")
	}
	if _, isDir := in.(*inode.DirInode); !isDir {
		panic("fuseserver: root is not a directory")
	}
}

// Find the given inode. Panic if it doesn't exist; the kernel only asks
// about inodes it still holds a reference to.
//
// LOCKS_REQUIRED(s.mu)
func (s *server) getInodeOrDie(id fuseops.InodeID) inode.Inode {
	in, ok := s.reg.Get(inode.ID(id))
	if !ok {
		panic(fmt.Sprintf("fuseserver: unknown inode %d", id))
	}

	return in
}

// LOCKS_REQUIRED(s.mu)
func (s *server) getDirOrDie(id fuseops.InodeID) *inode.DirInode {
	d, isDir := s.getInodeOrDie(id).(*inode.DirInode)
	if !isDir {
		panic(fmt.Sprintf("fuseserver: inode %d is not a directory", id))
	}

	return d
}

func convertAttributes(a inode.Attributes) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   uint64(a.Size),
		Nlink:  uint32(a.Nlink),
		Mode:   a.Mode,
		Atime:  a.Atime,
		Mtime:  a.Mtime,
		Ctime:  a.Ctime,
		Crtime: a.Birthtime,
		Uid:    a.Uid,
		Gid:    a.Gid,
	}
}

// Fill in an entry for the child, taking a kernel reference to it.
//
// LOCKS_REQUIRED(s.mu)
func (s *server) makeEntry(child inode.Inode) fuseops.ChildInodeEntry {
	s.reg.IncOpens(child.ID())

	// We never mutate spontaneously, so the kernel may cache freely.
	horizon := s.clock.Now().Add(365 * 24 * time.Hour)

	return fuseops.ChildInodeEntry{
		Child:                fuseops.InodeID(child.ID()),
		Attributes:           convertAttributes(child.Attributes()),
		AttributesExpiration: horizon,
		EntryExpiration:      horizon,
	}
}

func direntType(in inode.Inode) fuseutil.DirentType {
	switch in.(type) {
	case *inode.DirInode:
		return fuseutil.DT_Directory
	case *inode.SymlinkInode:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

////////////////////////////////////////////////////////////////////////
// FileSystem methods
////////////////////////////////////////////////////////////////////////

func (s *server) StatFS(
	ctx context.Context,
	op *fuseops.StatFSOp) error {
	return nil
}

func (s *server) LookUpInode(
	ctx context.Context,
	op *fuseops.LookUpInodeOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	childID, ok := parent.LookUpChild(op.Name)
	if !ok {
		return fuse.ENOENT
	}

	op.Entry = s.makeEntry(s.getInodeOrDie(fuseops.InodeID(childID)))
	return nil
}

func (s *server) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getInodeOrDie(op.Inode)

	op.Attributes = convertAttributes(in.Attributes())
	op.AttributesExpiration = s.clock.Now().Add(365 * 24 * time.Hour)

	return nil
}

func (s *server) SetInodeAttributes(
	ctx context.Context,
	op *fuseops.SetInodeAttributesOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.getInodeOrDie(op.Inode)

	if op.Size != nil {
		f, isFile := in.(*inode.FileInode)
		if !isFile {
			return fuse.EINVAL
		}
		if err := f.Truncate(int64(*op.Size)); err != nil {
			return syscall.ENOSPC
		}
	}

	// Mode changes are accepted and dropped; everything is 0777 here.
	if op.Atime != nil || op.Mtime != nil {
		a := in.Attributes()
		atime, mtime := a.Atime, a.Mtime
		if op.Atime != nil {
			atime = *op.Atime
		}
		if op.Mtime != nil {
			mtime = *op.Mtime
		}
		inode.SetTimes(in, atime, mtime)
	}

	op.Attributes = convertAttributes(in.Attributes())
	op.AttributesExpiration = s.clock.Now().Add(365 * 24 * time.Hour)

	return nil
}

func (s *server) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The root's kernel reference is implicit and never dropped.
	if op.Inode == fuseops.RootInodeID {
		return nil
	}

	for i := uint64(0); i < op.N; i++ {
		s.reg.DecOpens(inode.ID(op.Inode))
	}

	return nil
}

func (s *server) MkDir(
	ctx context.Context,
	op *fuseops.MkDirOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	if _, exists := parent.LookUpChild(op.Name); exists {
		return fuse.EEXIST
	}

	child := s.reg.CreateDir(parent.ID())
	parent.AddChild(op.Name, child.ID())

	op.Entry = s.makeEntry(child)
	return nil
}

func (s *server) CreateFile(
	ctx context.Context,
	op *fuseops.CreateFileOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	if _, exists := parent.LookUpChild(op.Name); exists {
		return fuse.EEXIST
	}

	child := s.reg.CreateFile()
	parent.AddChild(op.Name, child.ID())

	op.Entry = s.makeEntry(child)
	return nil
}

func (s *server) CreateSymlink(
	ctx context.Context,
	op *fuseops.CreateSymlinkOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	if _, exists := parent.LookUpChild(op.Name); exists {
		return fuse.EEXIST
	}

	child := s.reg.CreateSymlink(op.Target)
	parent.AddChild(op.Name, child.ID())

	op.Entry = s.makeEntry(child)
	return nil
}

func (s *server) CreateLink(
	ctx context.Context,
	op *fuseops.CreateLinkOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	if _, exists := parent.LookUpChild(op.Name); exists {
		return fuse.EEXIST
	}

	target := s.getInodeOrDie(op.Target)
	if _, isDir := target.(*inode.DirInode); isDir {
		return syscall.EPERM
	}

	parent.AddChild(op.Name, target.ID())

	op.Entry = s.makeEntry(target)
	return nil
}

func (s *server) Rename(
	ctx context.Context,
	op *fuseops.RenameOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldParent := s.getDirOrDie(op.OldParent)
	childID, ok := oldParent.LookUpChild(op.OldName)
	if !ok {
		return fuse.ENOENT
	}
	child := s.getInodeOrDie(fuseops.InodeID(childID))

	newParent := s.getDirOrDie(op.NewParent)
	if existingID, ok := newParent.LookUpChild(op.NewName); ok {
		existing := s.getInodeOrDie(fuseops.InodeID(existingID))

		if d, isDir := existing.(*inode.DirInode); isDir {
			if d.EntryCount() != 0 {
				return fuse.ENOTEMPTY
			}
			newParent.RemoveChild(op.NewName)
			s.reg.Unlink(d.ID())
		} else {
			newParent.RemoveChild(op.NewName)
		}
	}

	if oldParent == newParent {
		oldParent.RenameChild(op.OldName, op.NewName)
	} else {
		newParent.AddChild(op.NewName, child.ID())
		oldParent.RemoveChild(op.OldName)

		if d, isDir := child.(*inode.DirInode); isDir {
			d.SetParent(newParent.ID())
		}
	}

	return nil
}

func (s *server) RmDir(
	ctx context.Context,
	op *fuseops.RmDirOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	childID, ok := parent.LookUpChild(op.Name)
	if !ok {
		return fuse.ENOENT
	}

	child, isDir := s.getInodeOrDie(fuseops.InodeID(childID)).(*inode.DirInode)
	if !isDir {
		return fuse.ENOTDIR
	}
	if child.EntryCount() != 0 {
		return fuse.ENOTEMPTY
	}

	parent.RemoveChild(op.Name)
	s.reg.Unlink(child.ID())

	return nil
}

func (s *server) Unlink(
	ctx context.Context,
	op *fuseops.UnlinkOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent := s.getDirOrDie(op.Parent)

	childID, ok := parent.LookUpChild(op.Name)
	if !ok {
		return fuse.ENOENT
	}

	if _, isDir := s.getInodeOrDie(fuseops.InodeID(childID)).(*inode.DirInode); isDir {
		return syscall.EISDIR
	}

	parent.RemoveChild(op.Name)
	return nil
}

func (s *server) OpenDir(
	ctx context.Context,
	op *fuseops.OpenDirOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Verify the kernel's bookkeeping.
	s.getDirOrDie(op.Inode)
	return nil
}

func (s *server) ReadDir(
	ctx context.Context,
	op *fuseops.ReadDirOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.getDirOrDie(op.Inode)

	names := d.ReadEntries()
	for i := int(op.Offset); i < len(names); i++ {
		childID, _ := d.LookUpChild(names[i])
		child := s.getInodeOrDie(fuseops.InodeID(childID))

		dirent := fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(childID),
			Name:   names[i],
			Type:   direntType(child),
		}

		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], dirent)
		if n == 0 {
			break
		}

		op.BytesRead += n
	}

	return nil
}

func (s *server) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, isFile := s.getInodeOrDie(op.Inode).(*inode.FileInode); !isFile {
		panic("fuseserver: OpenFile on a non-file")
	}

	return nil
}

func (s *server) ReadFile(
	ctx context.Context,
	op *fuseops.ReadFileOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, isFile := s.getInodeOrDie(op.Inode).(*inode.FileInode)
	if !isFile {
		return syscall.EISDIR
	}

	op.BytesRead = f.ReadAt(op.Dst, op.Offset)
	return nil
}

func (s *server) WriteFile(
	ctx context.Context,
	op *fuseops.WriteFileOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, isFile := s.getInodeOrDie(op.Inode).(*inode.FileInode)
	if !isFile {
		return syscall.EISDIR
	}

	if _, err := f.WriteAt(op.Data, op.Offset); err != nil {
		return syscall.ENOSPC
	}

	return nil
}

func (s *server) FlushFile(
	ctx context.Context,
	op *fuseops.FlushFileOp) error {
	return nil
}

func (s *server) SyncFile(
	ctx context.Context,
	op *fuseops.SyncFileOp) error {
	return nil
}

func (s *server) ReadSymlink(
	ctx context.Context,
	op *fuseops.ReadSymlinkOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, isLink := s.getInodeOrDie(op.Inode).(*inode.SymlinkInode)
	if !isLink {
		return fuse.EINVAL
	}

	op.Target = l.Target()
	return nil
}
