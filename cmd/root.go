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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "memfs [flags] mount_point",
	Short: "Mount an empty in-memory file system",
	Long: `memfs mounts a fresh, empty, memory-resident file system at the given
mount point. Everything written there is discarded on unmount.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mount(args[0])
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config-file", "", "Path to a config file")
	pf.String("fs-name", "memfs", "File system name reported to the kernel")
	pf.Bool("read-only", false, "Mount read-only")
	pf.String("log-file", "", "Log file path (default: stderr)")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("log-severity", "info", "Log severity: off, error, warn, info, debug")
	pf.Int("log-rotate-max-size-mb", 100, "Rotate the log file past this size")
	pf.Int("log-rotate-backup-count", 2, "How many rotated log files to keep")

	if err := viper.BindPFlags(pf); err != nil {
		panic(err)
	}
}
