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

package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/McDemigod/puisne/internal/bundle"
	"github.com/McDemigod/puisne/internal/launchconfig"
	"github.com/McDemigod/puisne/internal/testbundle"
)

func openArchive(t *testing.T, files []testbundle.File) (*bundle.Archive, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, testbundle.WriteStubbed(path, []byte("#!/bin/sh\n"), files))

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	return a, func() { a.Close() }
}

func TestApplyPolicyAllCreatesTree(t *testing.T) {
	a, closeFn := openArchive(t, []testbundle.File{
		{Name: "demo.app/", Dir: true, Mode: 0755},
		{Name: "demo.app/demo", Content: "entrypoint", Mode: 0755},
		{Name: "demo.app/lib/helper.txt", Content: "data", Mode: 0644},
	})
	defer closeFn()

	m, err := bundle.Walk(a)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, Apply(a, m, launchconfig.PolicyAll, dest))

	got, err := os.ReadFile(filepath.Join(dest, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "entrypoint", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "lib", "helper.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestApplyPolicyNewNeverOverwrites(t *testing.T) {
	a, closeFn := openArchive(t, []testbundle.File{
		{Name: "demo.app/demo", Content: "fresh", Mode: 0755},
	})
	defer closeFn()
	m, err := bundle.Walk(a)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "demo"), []byte("stale"), 0644))

	require.NoError(t, Apply(a, m, launchconfig.PolicyNew, dest))

	got, err := os.ReadFile(filepath.Join(dest, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "stale", string(got))
}

func TestApplyPolicyExistingSkipsMissing(t *testing.T) {
	a, closeFn := openArchive(t, []testbundle.File{
		{Name: "demo.app/demo", Content: "entry", Mode: 0755},
		{Name: "demo.app/extra.txt", Content: "extra", Mode: 0644},
	})
	defer closeFn()
	m, err := bundle.Walk(a)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "demo"), []byte("old"), 0644))

	require.NoError(t, Apply(a, m, launchconfig.PolicyExisting, dest))

	got, err := os.ReadFile(filepath.Join(dest, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "entry", string(got))

	_, err = os.Stat(filepath.Join(dest, "extra.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyPolicyUpdateComparesStatusChangeTime(t *testing.T) {
	a, closeFn := openArchive(t, []testbundle.File{
		{Name: "demo.app/demo", Content: "new-content", Mode: 0755, ModTime: time.Now().Add(24 * time.Hour)},
	})
	defer closeFn()
	m, err := bundle.Walk(a)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "demo"), []byte("old-content"), 0644))

	require.NoError(t, Apply(a, m, launchconfig.PolicyUpdate, dest))

	got, err := os.ReadFile(filepath.Join(dest, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "new-content", string(got))
}

func TestApplyPolicyNoneIsCallerError(t *testing.T) {
	a, closeFn := openArchive(t, []testbundle.File{
		{Name: "demo.app/demo", Content: "x", Mode: 0755},
	})
	defer closeFn()
	m, err := bundle.Walk(a)
	require.NoError(t, err)

	err = Apply(a, m, launchconfig.PolicyNone, t.TempDir())
	assert.Error(t, err)
}

func TestApplySkipsAppRootDirectoryEntry(t *testing.T) {
	a, closeFn := openArchive(t, []testbundle.File{
		{Name: "demo.app/", Dir: true, Mode: 0755},
		{Name: "demo.app/demo", Content: "x", Mode: 0755},
	})
	defer closeFn()
	m, err := bundle.Walk(a)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, Apply(a, m, launchconfig.PolicyAll, dest))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
