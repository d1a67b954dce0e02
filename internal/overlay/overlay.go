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

// Package overlay implements the unprivileged mount-namespace overlay
// composition: the uid/gid-mapped user namespace trick,
// the nested-path intermediate overlay for cyclic lower-in-upper
// layouts, the primary overlay mount, and the privilege re-drop.
package overlay

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/McDemigod/puisne/internal/launchconfig"
	"github.com/McDemigod/puisne/internal/pathutil"
)

// Mounter abstracts the privileged operations this package performs, so
// tests can assert the exact call sequence without a real kernel capable
// of CLONE_NEWUSER/CLONE_NEWNS.
type Mounter interface {
	Unshare(flags int) error
	WriteIDMap(path, contents string) error
	Mount(source, target, fstype string, data string) error
	Getuid() int
	Getgid() int
	Getwd() (string, error)
	Chdir(dir string) error
}

// Params are the inputs to Apply.
type Params struct {
	InvocationDir string
	Destination   string
	Orientation   launchconfig.Orientation
	WorkDir       string
}

// Apply composes the unprivileged-root overlay mount: entering a
// uid/gid-mapped user namespace, mounting the overlay, and re-dropping
// privilege. It is only ever called when Config.Mode == ModeMount.
//
// Grounded on pkg/aci/render.go's runtime.LockOSThread + syscall.Unshare
// pattern for confining a namespace change to a single OS thread, and on
// rkt/fly.go's direct syscall.Mount/syscall.Unshare calls for the
// syscalls themselves (made here through golang.org/x/sys/unix).
func Apply(m Mounter, p Params) error {
	upper, lower := p.Destination, p.InvocationDir
	if p.Orientation == launchconfig.OrientationUnder {
		upper, lower = lower, upper
	}

	if err := os.MkdirAll(p.WorkDir, 0755); err != nil {
		return errors.Wrap(err, "PUISNE: creating overlay work directory")
	}

	uid, gid := m.Getuid(), m.Getgid()
	unprivileged := uid != 0 || gid != 0
	if unprivileged {
		if err := enterUnprivilegedRoot(m, uid, gid); err != nil {
			return err
		}
	}

	workDir := p.WorkDir
	realLower, err := pathutil.RealPath(lower)
	if err != nil {
		return errors.Wrap(err, "PUISNE: resolving lower layer")
	}
	realUpper, err := pathutil.RealPath(upper)
	if err != nil {
		return errors.Wrap(err, "PUISNE: resolving upper layer")
	}

	if pathutil.IsPrefix(realUpper, realLower) {
		lower, workDir, err = nestIntermediateOverlay(m, p.WorkDir, lower)
		if err != nil {
			return err
		}
	}

	overlayWork := filepath.Join(workDir, "overlay.wrk")
	if err := os.MkdirAll(overlayWork, 0755); err != nil {
		return errors.Wrap(err, "PUISNE: creating overlay work subdirectory")
	}

	if err := mountOverlay(m, p.InvocationDir, upper, lower, overlayWork); err != nil {
		return err
	}

	if unprivileged {
		if err := redropPrivilege(m, uid, gid); err != nil {
			return err
		}
	}

	return reanchorCwd(m)
}

func enterUnprivilegedRoot(m Mounter, uid, gid int) error {
	if err := m.Unshare(newUserAndMountNS); err != nil {
		return errors.Wrap(err, "PUISNE: unsharing user+mount namespace")
	}
	if err := m.WriteIDMap("/proc/self/uid_map", mapLine(0, uid)); err != nil {
		return errors.Wrap(err, "PUISNE: writing uid_map")
	}
	if err := m.WriteIDMap("/proc/self/setgroups", "deny"); err != nil {
		return errors.Wrap(err, "PUISNE: disabling setgroups")
	}
	if err := m.WriteIDMap("/proc/self/gid_map", mapLine(0, gid)); err != nil {
		return errors.Wrap(err, "PUISNE: writing gid_map")
	}
	return nil
}

// redropPrivilege restores the caller's original identity view inside a
// second, fresh user namespace. This second unshare deliberately omits
// CLONE_NEWNS, unlike the entry unshare: the process already sits inside
// the mount namespace it needs, and re-unsharing the mount namespace
// here is unnecessary and, on some kernels, unreliable.
func redropPrivilege(m Mounter, uid, gid int) error {
	if err := m.Unshare(newUserNSOnly); err != nil {
		return errors.Wrap(err, "PUISNE: unsharing namespace for privilege re-drop")
	}
	if err := m.WriteIDMap("/proc/self/uid_map", mapLine(uid, 0)); err != nil {
		return errors.Wrap(err, "PUISNE: restoring uid_map")
	}
	if err := m.WriteIDMap("/proc/self/gid_map", mapLine(gid, 0)); err != nil {
		return errors.Wrap(err, "PUISNE: restoring gid_map")
	}
	return nil
}

// nestIntermediateOverlay handles the case where lower lives inside
// upper, which would otherwise make the overlay mount its own source: an
// intermediate overlay decouples the two before the real mount runs.
func nestIntermediateOverlay(m Mounter, workDir, lower string) (newLower, newWorkDir string, err error) {
	interMnt := filepath.Join(workDir, "inter.mnt")
	interWrk := filepath.Join(workDir, "inter.wrk")
	if err := os.MkdirAll(interMnt, 0755); err != nil {
		return "", "", errors.Wrap(err, "PUISNE: creating intermediate overlay mountpoint")
	}
	if err := os.MkdirAll(interWrk, 0755); err != nil {
		return "", "", errors.Wrap(err, "PUISNE: creating intermediate overlay workdir")
	}

	if err := mountOverlay(m, interMnt, interMnt, lower, interWrk); err != nil {
		return "", "", err
	}

	derivedWork := filepath.Join(workDir, "over.wrk")
	if err := os.MkdirAll(derivedWork, 0755); err != nil {
		return "", "", errors.Wrap(err, "PUISNE: creating derived overlay workdir")
	}

	return interMnt, derivedWork, nil
}

func mountOverlay(m Mounter, target, upper, lower, work string) error {
	data := "upperdir=" + upper + ",lowerdir=" + lower + ",workdir=" + work
	if err := m.Mount("overlay", target, "overlay", data); err != nil {
		return errors.Wrapf(err, "PUISNE: mounting overlay at %s", target)
	}
	return nil
}

func reanchorCwd(m Mounter) error {
	wd, err := m.Getwd()
	if err != nil {
		return errors.Wrap(err, "PUISNE: getting current directory")
	}
	if err := m.Chdir(wd); err != nil {
		return errors.Wrap(err, "PUISNE: re-anchoring current directory")
	}
	return nil
}

func mapLine(inner, outer int) string {
	return strconv.Itoa(inner) + " " + strconv.Itoa(outer) + " 1\n"
}
