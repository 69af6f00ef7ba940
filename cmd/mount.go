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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/timeutil"
	"github.com/spf13/viper"

	"github.com/virtualfs/memfs/fuseserver"
	"github.com/virtualfs/memfs/logger"
)

func mount(mountPoint string) error {
	_, err := logger.Setup(logger.Config{
		Format:   viper.GetString("log-format"),
		Severity: viper.GetString("log-severity"),
		FilePath: viper.GetString("log-file"),
		Rotate: logger.LogRotateConfig{
			MaxSizeMB:       viper.GetInt("log-rotate-max-size-mb"),
			BackupFileCount: viper.GetInt("log-rotate-backup-count"),
		},
	})
	if err != nil {
		return err
	}

	// Canonicalize the mount point, making it absolute.
	mountPoint, err = filepath.Abs(mountPoint)
	if err != nil {
		return fmt.Errorf("canonicalizing mount point: %w", err)
	}

	server := fuseserver.NewServer(timeutil.RealClock())

	cfg := &fuse.MountConfig{
		FSName:   viper.GetString("fs-name"),
		ReadOnly: viper.GetBool("read-only"),
	}

	logger.Infof("Creating a mount at %q", mountPoint)
	mfs, err := fuse.Mount(mountPoint, server, cfg)
	if err != nil {
		return fmt.Errorf("mounting: %w", err)
	}

	// Unmount on SIGINT.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		for range c {
			logger.Info("Received SIGINT, attempting to unmount...")
			if err := fuse.Unmount(mountPoint); err != nil {
				logger.Errorf("Failed to unmount in response to SIGINT: %v", err)
			} else {
				logger.Info("Successfully unmounted in response to SIGINT.")
				return
			}
		}
	}()

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("waiting for the file system: %w", err)
	}

	logger.Info("File system unmounted.")
	return nil
}
