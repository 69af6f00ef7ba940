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
	"fmt"
	"os"

	"github.com/jacobsa/timeutil"

	"github.com/virtualfs/memfs/idalloc"
)

// A Registry owns the live inodes of one file system, keyed by ID. IDs come
// from a dense allocator, so destroyed inodes' numbers are reused.
//
// An inode is destroyed when its link count and its open-descriptor count
// are both zero. Link counts move through DirInode.AddChild/RemoveChild and
// the Link/Unlink methods; open counts through IncOpens/DecOpens.
type Registry struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	clock timeutil.Clock

	/////////////////////////
	// Mutable state
	/////////////////////////

	ids    *idalloc.Allocator
	inodes map[ID]Inode
}

// NewRegistry creates an empty registry. ID zero is reserved and never
// handed out.
func NewRegistry(clock timeutil.Clock) *Registry {
	return &Registry{
		clock:  clock,
		ids:    idalloc.New(1, 32, false),
		inodes: make(map[ID]Inode),
	}
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (r *Registry) allocateID() ID {
	return ID(r.ids.Allocate())
}

func (r *Registry) register(in Inode) {
	r.inodes[in.ID()] = in
}

func (r *Registry) get(id ID) Inode {
	in, ok := r.inodes[id]
	if !ok {
		panic(fmt.Sprintf("inode: unknown ID %d", id))
	}

	return in
}

// Destroy the inode if nothing refers to it any more.
func (r *Registry) maybeDestroy(in Inode) {
	c := in.core()
	if c.attrs.Nlink > 0 || c.opens > 0 {
		return
	}

	delete(r.inodes, in.ID())
	r.ids.Deallocate(int(in.ID()))
}

func (r *Registry) link(id ID) {
	c := r.get(id).core()
	c.attrs.Nlink++
	c.touchCtime()
}

func (r *Registry) unlink(id ID) {
	in := r.get(id)
	c := in.core()
	c.attrs.Nlink--
	c.touchCtime()
	r.maybeDestroy(in)
}

////////////////////////////////////////////////////////////////////////
// Public interface
////////////////////////////////////////////////////////////////////////

// CreateFile creates an empty regular file. The file has no name yet; the
// caller is expected to add it to a directory, which establishes its first
// link.
func (r *Registry) CreateFile() *FileInode {
	f := &FileInode{
		inodeCore: newInodeCore(r.clock, r.allocateID(), 0777),
	}

	r.register(f)
	return f
}

// CreateDir creates a directory whose ".." entry refers to parent. The "."
// self-entry contributes the initial link; the parent's entry for the new
// name brings a fresh directory to the usual two links.
func (r *Registry) CreateDir(parent ID) *DirInode {
	d := &DirInode{
		reg:       r,
		inodeCore: newInodeCore(r.clock, r.allocateID(), os.ModeDir|0777),
	}

	d.attrs.Nlink = 1
	d.attrs.Size = dirSize
	d.entries = map[string]ID{
		".":  d.ID(),
		"..": parent,
	}

	r.register(d)
	return d
}

// CreateRoot creates the root directory, which is its own parent. Both of
// its special entries refer to itself, so it starts with two links and can
// never be destroyed.
func (r *Registry) CreateRoot() *DirInode {
	d := &DirInode{
		reg:       r,
		inodeCore: newInodeCore(r.clock, r.allocateID(), os.ModeDir|0777),
	}

	d.attrs.Nlink = 2
	d.attrs.Size = dirSize
	d.entries = map[string]ID{
		".":  d.ID(),
		"..": d.ID(),
	}

	r.register(d)
	return d
}

// CreateSymlink creates a symbolic link with the given target. Like files,
// symlinks are born nameless with zero links.
func (r *Registry) CreateSymlink(target string) *SymlinkInode {
	s := &SymlinkInode{
		inodeCore: newInodeCore(r.clock, r.allocateID(), os.ModeSymlink|0777),
		target:    target,
	}

	s.attrs.Size = int64(len(target))
	r.register(s)
	return s
}

// Get returns the inode with the given ID, if it is live.
func (r *Registry) Get(id ID) (Inode, bool) {
	in, ok := r.inodes[id]
	return in, ok
}

// Link increments the inode's link count directly. Directory entry
// manipulation normally does this via AddChild; rmdir uses Unlink to retire
// a directory's "."-self link.
func (r *Registry) Link(id ID) {
	r.link(id)
}

// Unlink decrements the inode's link count, destroying the inode if no
// links and no open descriptors remain.
func (r *Registry) Unlink(id ID) {
	r.unlink(id)
}

// IncOpens records a new open descriptor for the inode.
func (r *Registry) IncOpens(id ID) {
	r.get(id).core().opens++
}

// DecOpens records that a descriptor for the inode was closed, destroying
// the inode if it is nameless and this was the last descriptor.
func (r *Registry) DecOpens(id ID) {
	in := r.get(id)
	c := in.core()

	if c.opens <= 0 {
		panic(fmt.Sprintf("inode: open count underflow for ID %d", id))
	}

	c.opens--
	r.maybeDestroy(in)
}

// Count returns the number of live inodes.
func (r *Registry) Count() int {
	return len(r.inodes)
}
