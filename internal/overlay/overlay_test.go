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

package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/McDemigod/puisne/internal/launchconfig"
)

type call struct {
	name string
	args []string
}

type fakeMounter struct {
	uid, gid int
	cwd      string
	calls    []call
}

func (f *fakeMounter) Unshare(flags int) error {
	f.calls = append(f.calls, call{"unshare", nil})
	return nil
}

func (f *fakeMounter) WriteIDMap(path, contents string) error {
	f.calls = append(f.calls, call{"writeidmap", []string{path, contents}})
	return nil
}

func (f *fakeMounter) Mount(source, target, fstype, data string) error {
	f.calls = append(f.calls, call{"mount", []string{target, data}})
	return nil
}

func (f *fakeMounter) Getuid() int { return f.uid }
func (f *fakeMounter) Getgid() int { return f.gid }

func (f *fakeMounter) Getwd() (string, error) {
	f.calls = append(f.calls, call{"getwd", nil})
	return f.cwd, nil
}

func (f *fakeMounter) Chdir(dir string) error {
	f.calls = append(f.calls, call{"chdir", []string{dir}})
	return nil
}

func names(calls []call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.name
	}
	return out
}

func TestApplyUnprivilegedSequence(t *testing.T) {
	dir := t.TempDir()
	invocation := filepath.Join(dir, "invocation")
	dest := filepath.Join(dir, "dest")
	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(invocation, 0755))
	require.NoError(t, os.MkdirAll(dest, 0755))

	m := &fakeMounter{uid: 1000, gid: 1000, cwd: invocation}
	err := Apply(m, Params{
		InvocationDir: invocation,
		Destination:   dest,
		Orientation:   launchconfig.OrientationOver,
		WorkDir:       work,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"unshare", "writeidmap", "writeidmap", "writeidmap",
		"mount",
		"unshare", "writeidmap", "writeidmap",
		"getwd", "chdir",
	}, names(m.calls))
}

func TestApplyPrivilegedSkipsIDMapping(t *testing.T) {
	dir := t.TempDir()
	invocation := filepath.Join(dir, "invocation")
	dest := filepath.Join(dir, "dest")
	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(invocation, 0755))
	require.NoError(t, os.MkdirAll(dest, 0755))

	m := &fakeMounter{uid: 0, gid: 0, cwd: invocation}
	err := Apply(m, Params{
		InvocationDir: invocation,
		Destination:   dest,
		Orientation:   launchconfig.OrientationOver,
		WorkDir:       work,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"mount", "getwd", "chdir"}, names(m.calls))
}

func TestApplyOrientationUnderSwapsLayers(t *testing.T) {
	dir := t.TempDir()
	invocation := filepath.Join(dir, "invocation")
	dest := filepath.Join(dir, "dest")
	work := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(invocation, 0755))
	require.NoError(t, os.MkdirAll(dest, 0755))

	m := &fakeMounter{uid: 0, gid: 0, cwd: invocation}
	err := Apply(m, Params{
		InvocationDir: invocation,
		Destination:   dest,
		Orientation:   launchconfig.OrientationUnder,
		WorkDir:       work,
	})
	require.NoError(t, err)

	var mountData string
	for _, c := range m.calls {
		if c.name == "mount" {
			mountData = c.args[1]
		}
	}
	assert.Contains(t, mountData, "upperdir="+invocation)
	assert.Contains(t, mountData, "lowerdir="+dest)
}
