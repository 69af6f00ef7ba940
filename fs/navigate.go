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
	"strings"

	"github.com/virtualfs/memfs/fs/inode"
	"github.com/virtualfs/memfs/fserrors"
)

// The outcome of resolving a path. Exactly one of the following shapes comes
// back:
//
//   - Target != nil: the path named an existing inode. Dir is the directory
//     it was found under and Name its entry name there ("" when the path
//     denoted the root itself, or when a symlink target reduced to the
//     empty path; then Target is the directory Dir).
//   - Target == nil, Name != "": every component but the last exists; the
//     last is free. Dir is the directory the name would live in. Create
//     operations claim this slot.
//   - Target == nil, Name == "": an intermediate component was missing or
//     was not traversable. Remaining holds the unconsumed suffix.
type navResult struct {
	Dir       *inode.DirInode
	Target    inode.Inode
	Name      string
	Remaining string
}

// Strip a single leading "./" or "../", then any leading run of '/'. The
// empty result denotes the root.
//
// Note that this is the only normalisation applied: "/a/../b" is not
// simplified, and its ".." component traverses the directory's real ".."
// entry instead.
func canonicalize(p string) string {
	if strings.HasPrefix(p, "./") {
		p = p[2:]
	} else if strings.HasPrefix(p, "../") {
		p = p[3:]
	}

	return strings.TrimLeft(p, "/")
}

// Split off the first path segment, dropping the run of slashes after it.
//
// REQUIRES: p does not start with '/' and is nonempty
func splitSegment(p string) (seg string, rest string) {
	i := strings.IndexByte(p, '/')
	if i < 0 {
		return p, ""
	}

	return p[:i], strings.TrimLeft(p[i:], "/")
}

// Resolve a path from the root. With resolveLastLink set, a symbolic link
// in the final position is followed like any other; otherwise it is
// returned as the target itself.
//
// The only errors raised here are ENOENT for the empty path and ELOOP when
// symlink substitution reaches a link already substituted earlier in the
// same call; every other
// interpretation of the result belongs to the caller.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) navigate(p string, resolveLastLink bool) (navResult, error) {
	if p == "" {
		return navResult{}, fserrors.ENOENT
	}

	active := make(map[inode.ID]struct{})
	return fs.navigateFrom(fs.root, canonicalize(p), resolveLastLink, active)
}

// The walk itself, from an arbitrary starting directory. The active set
// carries every symlink inode substituted so far in one top-level navigate
// call (entries are never removed); it detects loops of any length, and
// also rejects a second pass through the same link within that call.
//
// LOCKS_REQUIRED(fs.mu)
func (fs *FileSystem) navigateFrom(
	dir *inode.DirInode,
	rest string,
	resolveLastLink bool,
	active map[inode.ID]struct{}) (navResult, error) {
	if rest == "" {
		// The path denoted this directory itself.
		return navResult{Dir: dir, Target: dir}, nil
	}

	for {
		seg, remainder := splitSegment(rest)

		id, ok := dir.LookUpChild(seg)
		if !ok {
			if remainder == "" {
				// A free slot under an existing directory.
				return navResult{Dir: dir, Name: seg}, nil
			}

			return navResult{Dir: dir, Remaining: remainder}, nil
		}

		child, live := fs.reg.Get(id)
		if !live {
			panic("fs: directory entry refers to a destroyed inode")
		}

		switch t := child.(type) {
		case *inode.FileInode:
			if remainder == "" {
				return navResult{Dir: dir, Target: t, Name: seg}, nil
			}

			// Traversal through a regular file; the caller reports it.
			return navResult{Dir: dir, Remaining: remainder}, nil

		case *inode.DirInode:
			if remainder == "" {
				return navResult{Dir: dir, Target: t, Name: seg}, nil
			}

			dir = t
			rest = remainder

		case *inode.SymlinkInode:
			if remainder == "" && !resolveLastLink {
				return navResult{Dir: dir, Target: t, Name: seg}, nil
			}

			if _, seen := active[t.ID()]; seen {
				return navResult{}, fserrors.ELOOP
			}
			active[t.ID()] = struct{}{}

			// Substitute the link's target for the component, keeping the
			// unconsumed suffix. Absolute targets restart at the root.
			joined := t.Target()
			if remainder != "" {
				joined = joined + "/" + remainder
			}

			if strings.HasPrefix(joined, "/") {
				dir = fs.root
			}

			rest = canonicalize(joined)
			if rest == "" {
				return navResult{Dir: dir, Target: dir}, nil
			}
		}
	}
}
