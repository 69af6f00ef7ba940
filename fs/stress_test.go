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

package fs_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Hammer one file system from many goroutines. Operations are atomic with
// respect to each other, so every worker should see only its own files.
func TestStress_IndependentWorkers(t *testing.T) {
	fsys, _ := newFS(t)

	const workers = 8
	const filesPerWorker = 50

	var group errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		group.Go(func() error {
			dir := fmt.Sprintf("/worker%d", w)
			if err := fsys.Mkdir(dir, 0755); err != nil {
				return err
			}

			for i := 0; i < filesPerWorker; i++ {
				p := fmt.Sprintf("%s/file%d", dir, i)
				payload := []byte(fmt.Sprintf("worker %d file %d", w, i))

				if err := fsys.WriteFile(p, payload, 0644); err != nil {
					return err
				}

				data, err := fsys.ReadFile(p)
				if err != nil {
					return err
				}
				if string(data) != string(payload) {
					return fmt.Errorf("%s: got %q, want %q", p, data, payload)
				}
			}

			// Thin the directory back out.
			for i := 0; i < filesPerWorker; i += 2 {
				p := fmt.Sprintf("%s/file%d", dir, i)
				if err := fsys.Unlink(p); err != nil {
					return err
				}
			}

			return nil
		})
	}

	require.NoError(t, group.Wait())

	for w := 0; w < workers; w++ {
		names, err := fsys.ReadDir(fmt.Sprintf("/worker%d", w))
		require.NoError(t, err)
		assert.Len(t, names, filesPerWorker/2)
	}
}

// Concurrent descriptor traffic against one shared file.
func TestStress_SharedFileDescriptors(t *testing.T) {
	fsys, _ := newFS(t)

	require.NoError(t, fsys.WriteFile("/shared", []byte("xxxxxxxxxxxxxxxx"), 0644))

	const workers = 8

	var group errgroup.Group
	for w := 0; w < workers; w++ {
		group.Go(func() error {
			for i := 0; i < 100; i++ {
				fd, err := fsys.Open("/shared", "r")
				if err != nil {
					return err
				}

				buf := make([]byte, 16)
				if _, err := fsys.ReadAt(fd, buf, 0); err != nil {
					return err
				}

				if err := fsys.Close(fd); err != nil {
					return err
				}
			}

			return nil
		})
	}

	require.NoError(t, group.Wait())
}
