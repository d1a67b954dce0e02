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

//go:build linux

package overlay

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	newUserAndMountNS = unix.CLONE_NEWUSER | unix.CLONE_NEWNS
	newUserNSOnly     = unix.CLONE_NEWUSER
)

// realMounter performs the actual privileged operations via
// golang.org/x/sys/unix rather than raw syscall calls.
type realMounter struct{}

// NewMounter returns the production Mounter for Linux. It calls
// runtime.LockOSThread and never unlocks, so the calling goroutine stays
// on one OS thread for the whole unshare/mount/re-drop sequence that
// follows — mirroring pkg/aci/render.go's single-thread-confined unshare.
func NewMounter() Mounter {
	runtime.LockOSThread()
	return realMounter{}
}

func (realMounter) Unshare(flags int) error {
	return unix.Unshare(flags)
}

func (realMounter) WriteIDMap(path, contents string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	if _, err := f.WriteString(contents); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

func (realMounter) Mount(source, target, fstype, data string) error {
	return unix.Mount(source, target, fstype, 0, data)
}

func (realMounter) Getuid() int { return unix.Getuid() }
func (realMounter) Getgid() int { return unix.Getgid() }

func (realMounter) Getwd() (string, error) { return os.Getwd() }
func (realMounter) Chdir(dir string) error { return os.Chdir(dir) }
