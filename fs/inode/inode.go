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

// Package inode contains the inode variants backing the file system and the
// registry that owns them.
//
// Directories refer to their children by inode ID rather than by pointer;
// the registry owns the objects. This keeps the `.`/`..` cycles harmless and
// makes hard links and the descriptor-keeps-alive semantics a matter of
// reference counting on the ID.
package inode

import (
	"os"
	"time"

	"github.com/jacobsa/timeutil"
)

// An ID identifies an inode within a registry. IDs are small, dense, and
// reused after an inode is destroyed. Zero is never a valid ID.
type ID int

// Attributes is the metadata shared by all inode variants.
//
// Permission bits are fixed at 0777 and ownership at root; the file system
// accepts mode/uid/gid arguments but does not enforce them.
type Attributes struct {
	Ino  ID
	Mode os.FileMode
	Uid  uint32
	Gid  uint32

	// The number of directory entries naming this inode. Open descriptors
	// keep an inode alive independently of this count.
	Nlink int

	Size int64

	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Birthtime time.Time
}

// An Inode is one of *FileInode, *DirInode, or *SymlinkInode.
type Inode interface {
	// Return the ID assigned to the inode.
	ID() ID

	// Return a snapshot of the inode's metadata.
	Attributes() Attributes

	core() *inodeCore
}

// State common to every variant.
type inodeCore struct {
	clock timeutil.Clock
	attrs Attributes

	// The number of open descriptors referring to this inode. While non-zero
	// the inode survives losing its last name.
	opens int
}

func newInodeCore(clock timeutil.Clock, id ID, mode os.FileMode) inodeCore {
	now := clock.Now()
	return inodeCore{
		clock: clock,
		attrs: Attributes{
			Ino:       id,
			Mode:      mode,
			Atime:     now,
			Mtime:     now,
			Ctime:     now,
			Birthtime: now,
		},
	}
}

func (c *inodeCore) id() ID {
	return c.attrs.Ino
}

func (c *inodeCore) attributes() Attributes {
	return c.attrs
}

func (c *inodeCore) touchAtime() {
	c.attrs.Atime = c.clock.Now()
}

// Stamp a content mutation.
func (c *inodeCore) touchMtime() {
	now := c.clock.Now()
	c.attrs.Mtime = now
	c.attrs.Ctime = now
}

// Stamp a metadata mutation.
func (c *inodeCore) touchCtime() {
	c.attrs.Ctime = c.clock.Now()
}

// SetTimes overwrites atime and mtime, as utimes does. The change itself is
// a metadata mutation, so ctime advances to the current time.
func SetTimes(in Inode, atime time.Time, mtime time.Time) {
	c := in.core()
	c.attrs.Atime = atime
	c.attrs.Mtime = mtime
	c.touchCtime()
}
