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

// Package logger configures the process-wide structured logger used by the
// mount tool and, optionally, by embedders of the fs package.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogRotateConfig bounds a log file before it is rotated away.
type LogRotateConfig struct {
	// Maximum size in megabytes before rotation. Zero means lumberjack's
	// default.
	MaxSizeMB int

	// How many rotated files to keep.
	BackupFileCount int

	// Whether rotated files are gzipped.
	Compress bool
}

// Config describes where and how to log.
type Config struct {
	// "text" or "json".
	Format string

	// One of "off", "error", "warn", "info", "debug". Empty means "info".
	Severity string

	// Path of the log file. Empty means stderr, without rotation.
	FilePath string

	Rotate LogRotateConfig
}

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func parseLevel(severity string) (slog.Level, error) {
	switch strings.ToLower(severity) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off":
		// Above every level we emit.
		return slog.LevelError + 4, nil
	}

	return 0, fmt.Errorf("unknown log severity: %q", severity)
}

// Setup builds a logger from the config and installs it as the logger
// returned by Default.
func Setup(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Severity)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.Rotate.MaxSizeMB,
			MaxBackups: cfg.Rotate.BackupFileCount,
			Compress:   cfg.Rotate.Compress,
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %q", cfg.Format)
	}

	defaultLogger = slog.New(h)
	return defaultLogger, nil
}

// Default returns the logger installed by the last Setup call, or a text
// logger on stderr if Setup has never run.
func Default() *slog.Logger {
	return defaultLogger
}

// Convenience wrappers in the style of the standard library's log package.

func Info(msg string, args ...any)  { defaultLogger.Info(msg, args...) }
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }
func Warn(msg string, args ...any)  { defaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }
