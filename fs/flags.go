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

import "fmt"

// OpenFlags is the POSIX-shaped bitfield accepted by OpenFile. Exactly one
// of O_RDONLY, O_WRONLY, and O_RDWR must be present.
type OpenFlags uint32

const (
	O_RDONLY OpenFlags = 0
	O_WRONLY OpenFlags = 1
	O_RDWR   OpenFlags = 2

	O_CREAT     OpenFlags = 0o100
	O_EXCL      OpenFlags = 0o200
	O_TRUNC     OpenFlags = 0o1000
	O_APPEND    OpenFlags = 0o2000
	O_DIRECTORY OpenFlags = 0o200000
	O_NOFOLLOW  OpenFlags = 0o400000

	o_ACCMODE OpenFlags = 3
)

func (f OpenFlags) accessMode() OpenFlags {
	return f & o_ACCMODE
}

func (f OpenFlags) readable() bool {
	return f.accessMode() == O_RDONLY || f.accessMode() == O_RDWR
}

func (f OpenFlags) writable() bool {
	return f.accessMode() == O_WRONLY || f.accessMode() == O_RDWR
}

// The closed enumeration of short open-mode strings.
var openModes = map[string]OpenFlags{
	"r":   O_RDONLY,
	"r+":  O_RDWR,
	"w":   O_WRONLY | O_CREAT | O_TRUNC,
	"wx":  O_WRONLY | O_CREAT | O_TRUNC | O_EXCL,
	"w+":  O_RDWR | O_CREAT | O_TRUNC,
	"wx+": O_RDWR | O_CREAT | O_TRUNC | O_EXCL,
	"a":   O_WRONLY | O_CREAT | O_APPEND,
	"ax":  O_WRONLY | O_CREAT | O_APPEND | O_EXCL,
	"a+":  O_RDWR | O_CREAT | O_APPEND,
	"ax+": O_RDWR | O_CREAT | O_APPEND | O_EXCL,
}

// ParseOpenMode translates a short mode string like "r+" or "ax" into flag
// bits. Unknown strings are a plain error rather than a filesystem error.
func ParseOpenMode(mode string) (OpenFlags, error) {
	flags, ok := openModes[mode]
	if !ok {
		return 0, fmt.Errorf("unknown file open mode: %q", mode)
	}

	return flags, nil
}

// Access-check bits accepted by Access.
const (
	F_OK = 0
	X_OK = 1
	W_OK = 2
	R_OK = 4
)
