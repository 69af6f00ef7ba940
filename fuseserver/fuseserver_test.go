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

package fuseserver_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtualfs/memfs/fuseserver"
)

func newServer(t *testing.T) fuseutil.FileSystem {
	t.Helper()

	clock := &timeutil.SimulatedClock{}
	clock.SetTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	return fuseserver.NewFileSystem(clock)
}

func TestLookUpMissing(t *testing.T) {
	s := newServer(t)

	op := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "missing",
	}

	assert.ErrorIs(t, s.LookUpInode(context.Background(), op), fuse.ENOENT)
}

func TestMkDirAndLookUp(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	mkdir := &fuseops.MkDirOp{
		Parent: fuseops.RootInodeID,
		Name:   "dir",
		Mode:   os.ModeDir | 0755,
	}
	require.NoError(t, s.MkDir(ctx, mkdir))
	assert.NotZero(t, mkdir.Entry.Child)
	assert.True(t, mkdir.Entry.Attributes.Mode.IsDir())
	assert.EqualValues(t, 2, mkdir.Entry.Attributes.Nlink)

	lookup := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "dir",
	}
	require.NoError(t, s.LookUpInode(ctx, lookup))
	assert.Equal(t, mkdir.Entry.Child, lookup.Entry.Child)

	// A second mkdir of the same name collides.
	assert.ErrorIs(t, s.MkDir(ctx, &fuseops.MkDirOp{
		Parent: fuseops.RootInodeID,
		Name:   "dir",
	}), fuse.EEXIST)
}

func TestCreateWriteRead(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	create := &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "f",
		Mode:   0644,
	}
	require.NoError(t, s.CreateFile(ctx, create))

	write := &fuseops.WriteFileOp{
		Inode:  create.Entry.Child,
		Offset: 0,
		Data:   []byte("taco"),
	}
	require.NoError(t, s.WriteFile(ctx, write))

	read := &fuseops.ReadFileOp{
		Inode:  create.Entry.Child,
		Offset: 0,
		Dst:    make([]byte, 16),
	}
	require.NoError(t, s.ReadFile(ctx, read))
	assert.Equal(t, 4, read.BytesRead)
	assert.Equal(t, "taco", string(read.Dst[:read.BytesRead]))

	attrs := &fuseops.GetInodeAttributesOp{Inode: create.Entry.Child}
	require.NoError(t, s.GetInodeAttributes(ctx, attrs))
	assert.EqualValues(t, 4, attrs.Attributes.Size)
}

func TestSymlink(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	create := &fuseops.CreateSymlinkOp{
		Parent: fuseops.RootInodeID,
		Name:   "link",
		Target: "/somewhere",
	}
	require.NoError(t, s.CreateSymlink(ctx, create))

	read := &fuseops.ReadSymlinkOp{Inode: create.Entry.Child}
	require.NoError(t, s.ReadSymlink(ctx, read))
	assert.Equal(t, "/somewhere", read.Target)
}

func TestUnlinkKeepsLookedUpInode(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	create := &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "f",
		Mode:   0644,
	}
	require.NoError(t, s.CreateFile(ctx, create))

	// The entry returned above holds a kernel reference, so the inode
	// survives the unlink until it is forgotten.
	require.NoError(t, s.Unlink(ctx, &fuseops.UnlinkOp{
		Parent: fuseops.RootInodeID,
		Name:   "f",
	}))

	read := &fuseops.ReadFileOp{
		Inode: create.Entry.Child,
		Dst:   make([]byte, 1),
	}
	require.NoError(t, s.ReadFile(ctx, read))
	assert.Zero(t, read.BytesRead)

	require.NoError(t, s.ForgetInode(ctx, &fuseops.ForgetInodeOp{
		Inode: create.Entry.Child,
		N:     1,
	}))
}

func TestRename(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	create := &fuseops.CreateFileOp{
		Parent: fuseops.RootInodeID,
		Name:   "old",
		Mode:   0644,
	}
	require.NoError(t, s.CreateFile(ctx, create))

	require.NoError(t, s.Rename(ctx, &fuseops.RenameOp{
		OldParent: fuseops.RootInodeID,
		OldName:   "old",
		NewParent: fuseops.RootInodeID,
		NewName:   "new",
	}))

	assert.ErrorIs(t, s.LookUpInode(ctx, &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "old",
	}), fuse.ENOENT)

	lookup := &fuseops.LookUpInodeOp{
		Parent: fuseops.RootInodeID,
		Name:   "new",
	}
	require.NoError(t, s.LookUpInode(ctx, lookup))
	assert.Equal(t, create.Entry.Child, lookup.Entry.Child)
}
