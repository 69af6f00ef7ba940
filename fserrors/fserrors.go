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

// Package fserrors defines the error catalogue surfaced by the file system.
//
// Every failure carries a POSIX-style code ("ENOENT"), the matching errno,
// the operation that failed, and the paths involved. Callers match errors
// against the catalogue entries with errors.Is:
//
//	if errors.Is(err, fserrors.ENOENT) { ... }
package fserrors

import (
	"fmt"
	"strings"
)

// An Errno is a row of the error catalogue: a symbolic code, the numeric
// errno, and a human-readable description.
type Errno struct {
	Code        string
	Errno       int
	Description string
}

// The catalogue. Errno values are the standard POSIX ones.
var (
	EPERM     = Errno{"EPERM", 1, "operation not permitted"}
	ENOENT    = Errno{"ENOENT", 2, "no such file or directory"}
	EBADF     = Errno{"EBADF", 9, "bad file descriptor"}
	EACCES    = Errno{"EACCES", 13, "permission denied"}
	EBUSY     = Errno{"EBUSY", 16, "resource busy or locked"}
	EEXIST    = Errno{"EEXIST", 17, "file already exists"}
	ENOTDIR   = Errno{"ENOTDIR", 20, "not a directory"}
	EISDIR    = Errno{"EISDIR", 21, "illegal operation on a directory"}
	EINVAL    = Errno{"EINVAL", 22, "invalid argument"}
	ENOSPC    = Errno{"ENOSPC", 28, "no space left on device"}
	ENOTEMPTY = Errno{"ENOTEMPTY", 39, "directory not empty"}
	ELOOP     = Errno{"ELOOP", 40, "too many symbolic links encountered"}
)

func (e Errno) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// An Error is a concrete failure: a catalogue entry annotated with the
// failing operation and the paths involved.
type Error struct {
	Errno Errno
	Op    string
	Paths []string
}

// New creates an error for the given operation and paths.
func New(errno Errno, op string, paths ...string) *Error {
	return &Error{
		Errno: errno,
		Op:    op,
		Paths: paths,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Errno.Code)
	b.WriteString(": ")
	b.WriteString(e.Errno.Description)

	if e.Op != "" {
		b.WriteString(", ")
		b.WriteString(e.Op)
	}

	for i, p := range e.Paths {
		if i == 0 {
			b.WriteString(" '")
		} else {
			b.WriteString(" -> '")
		}
		b.WriteString(p)
		b.WriteString("'")
	}

	return b.String()
}

// Is reports whether target is the same catalogue entry, so that
// errors.Is(err, fserrors.ENOENT) matches regardless of op and paths.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return e.Errno.Code == t.Code
	case *Error:
		return e.Errno.Code == t.Errno.Code
	}

	return false
}

// Code returns the symbolic code, e.g. "ENOENT".
func (e *Error) Code() string {
	return e.Errno.Code
}
