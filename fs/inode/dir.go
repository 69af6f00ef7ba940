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
	"strings"
)

// The size reported for every directory.
const dirSize = 4096

// A DirInode is a directory: an insertion-ordered mapping from child name to
// inode ID. Every directory contains the entries "." (itself) and ".." (its
// parent, or itself for the root); those two are maintained out of band and
// never appear in the listing order.
//
// INVARIANT: Every key in entries other than "." and ".." is listed in order
// exactly once, and vice versa.
// INVARIANT: Entry names are nonempty and contain no '/'.
type DirInode struct {
	/////////////////////////
	// Dependencies
	/////////////////////////

	reg *Registry

	/////////////////////////
	// Mutable state
	/////////////////////////

	inodeCore
	entries map[string]ID
	order   []string
}

var _ Inode = &DirInode{}

func (d *DirInode) ID() ID {
	return d.id()
}

func (d *DirInode) Attributes() Attributes {
	return d.attributes()
}

func (d *DirInode) core() *inodeCore {
	return &d.inodeCore
}

func checkEntryName(name string) {
	if name == "" || strings.Contains(name, "/") {
		panic(fmt.Sprintf("inode: illegal directory entry name %q", name))
	}
}

// LookUpChild returns the ID of the child with the given name, including the
// "." and ".." entries.
func (d *DirInode) LookUpChild(name string) (id ID, ok bool) {
	id, ok = d.entries[name]
	return
}

// AddChild adds an entry for the given name, appending it to the listing
// order and incrementing the child's link count.
//
// REQUIRES: name is not present, is nonempty, and contains no '/'
func (d *DirInode) AddChild(name string, id ID) {
	checkEntryName(name)
	if _, ok := d.entries[name]; ok {
		panic(fmt.Sprintf("inode: duplicate directory entry %q", name))
	}

	d.entries[name] = id
	d.order = append(d.order, name)
	d.reg.link(id)

	d.touchMtime()
}

// RemoveChild deletes the entry with the given name, decrementing the
// child's link count. The child may be destroyed as a result.
//
// REQUIRES: name is present and is neither "." nor ".."
func (d *DirInode) RemoveChild(name string) {
	id, ok := d.entries[name]
	if !ok || name == "." || name == ".." {
		panic(fmt.Sprintf("inode: removing unknown directory entry %q", name))
	}

	delete(d.entries, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	d.reg.unlink(id)

	d.touchMtime()
}

// RenameChild gives the entry oldName the name newName. The renamed entry
// moves to the end of the listing order, matching the behavior of removing
// and re-adding it. Link counts do not change.
//
// REQUIRES: oldName is present; newName is not
func (d *DirInode) RenameChild(oldName string, newName string) {
	checkEntryName(newName)
	id, ok := d.entries[oldName]
	if !ok {
		panic(fmt.Sprintf("inode: renaming unknown directory entry %q", oldName))
	}
	if _, ok := d.entries[newName]; ok {
		panic(fmt.Sprintf("inode: rename target %q already exists", newName))
	}

	delete(d.entries, oldName)
	for i, n := range d.order {
		if n == oldName {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	d.entries[newName] = id
	d.order = append(d.order, newName)

	d.touchMtime()
}

// ReadEntries returns the child names in insertion order, excluding "." and
// "..".
func (d *DirInode) ReadEntries() []string {
	d.touchAtime()

	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// EntryCount returns the number of children, excluding "." and "..".
func (d *DirInode) EntryCount() int {
	return len(d.order)
}

// Parent returns the ID recorded in the ".." entry.
func (d *DirInode) Parent() ID {
	return d.entries[".."]
}

// SetParent rewrites the ".." entry, for renames that move a directory to a
// new parent. Link counts do not change; "." and ".." are outside them.
func (d *DirInode) SetParent(id ID) {
	d.entries[".."] = id
	d.touchCtime()
}
