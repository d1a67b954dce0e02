// Copyright 2024 The Puisne Authors
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

package platform

import (
	"golang.org/x/sys/unix"
)

func detect() Probe {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Probe{}
	}

	if cString(uts.Sysname[:]) != "Linux" {
		return Probe{}
	}

	release := cString(uts.Release[:])
	return Probe{
		SupportsOverlayMount: compareKernelRelease(release),
	}
}

// byteLike is satisfied by both [N]byte and [N]int8, the two forms
// unix.Utsname fields take depending on GOARCH's signedness of char.
type byteLike interface {
	~byte | ~int8
}

// cString converts a NUL-terminated fixed-size char array, as found in
// unix.Utsname, to a Go string.
func cString[T byteLike](arr []T) string {
	buf := make([]byte, 0, len(arr))
	for _, c := range arr {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}
