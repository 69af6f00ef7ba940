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

// A SymlinkInode is a symbolic link. The target string is fixed at creation;
// it may be absolute or relative and is interpreted only during path
// resolution.
type SymlinkInode struct {
	inodeCore
	target string
}

var _ Inode = &SymlinkInode{}

func (s *SymlinkInode) ID() ID {
	return s.id()
}

func (s *SymlinkInode) Attributes() Attributes {
	return s.attributes()
}

func (s *SymlinkInode) core() *inodeCore {
	return &s.inodeCore
}

// Target returns the link's target path.
func (s *SymlinkInode) Target() string {
	return s.target
}
