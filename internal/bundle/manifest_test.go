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

package bundle_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/McDemigod/puisne/internal/bundle"
	"github.com/McDemigod/puisne/internal/testbundle"
)

func writeFixture(t *testing.T, files []testbundle.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "puisne.bin")
	require.NoError(t, testbundle.WriteStubbed(path, []byte("#!/bin/fakestub\n"), files))
	return path
}

func TestWalkDiscoversName(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "foo.app/foo", Content: "#!/bin/sh\necho hi\n", Mode: 0755},
		{Name: "foo.app/data/readme.txt", Content: "hello", Mode: 0644},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	m, err := bundle.Walk(a)
	require.NoError(t, err)
	assert.Equal(t, "foo", m.Name)
	assert.Len(t, m.Entries, 2)
}

func TestWalkReservedPathsDiscarded(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "puisne/help.txt", Content: "help!"},
		{Name: ".args", Content: "-u\nnew\n"},
		{Name: ".cosmo.magic", Content: "x"},
		{Name: "usr/share/zoneinfo/UTC", Content: "tz"},
		{Name: "foo.app/foo", Content: "bin", Mode: 0755},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	m, err := bundle.Walk(a)
	require.NoError(t, err)
	assert.Equal(t, "foo", m.Name)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "foo", m.Entries[0].RelativePath)
}

func TestWalkEmptyBundle(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "puisne/help.txt", Content: "help!"},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = bundle.Walk(a)
	assert.ErrorIs(t, err, bundle.ErrEmptyBundle)
}

func TestWalkMultipleAppFoldersIsError(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "a.app/a", Content: "a", Mode: 0755},
		{Name: "b.app/b", Content: "b", Mode: 0755},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = bundle.Walk(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple top level app folders")
}

func TestWalkBareTopLevelFileIsError(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "readme.txt", Content: "oops"},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = bundle.Walk(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top level")
}

func TestWalkNonAppTopLevelDirIsError(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "foo.bar/baz", Content: "oops"},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = bundle.Walk(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "problematic top-level folder")
}

func TestWalkEmptyAppNameIsError(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: ".app/foo", Content: "oops"},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	_, err = bundle.Walk(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid app folder")
}

func TestWalkAppRootDirectoryEntrySkipped(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "foo.app/", Dir: true},
		{Name: "foo.app/foo", Content: "bin", Mode: 0755},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	m, err := bundle.Walk(a)
	require.NoError(t, err)
	assert.Equal(t, "foo", m.Name)
	// The root directory entry itself carries relative_path == "" and
	// is still present in the manifest; the extractor is what skips it.
	var sawRoot bool
	for _, e := range m.Entries {
		if e.RelativePath == "" {
			sawRoot = true
		}
	}
	assert.True(t, sawRoot)
}

func TestLocalModTimeRoundTrips(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "foo.app/foo", Content: "bin", Mode: 0755, ModTime: time.Date(2020, 3, 4, 5, 6, 8, 0, time.Local)},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	m, err := bundle.Walk(a)
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	// MS-DOS time has 2-second resolution.
	assert.WithinDuration(t,
		time.Date(2020, 3, 4, 5, 6, 8, 0, time.Local),
		time.Unix(m.Entries[0].ModTime, 0),
		2*time.Second,
	)
}

func TestReadMember(t *testing.T) {
	path := writeFixture(t, []testbundle.File{
		{Name: "puisne/help.txt", Content: "usage: ...\n"},
		{Name: "foo.app/foo", Content: "bin", Mode: 0755},
	})

	a, err := bundle.OpenSelf(path)
	require.NoError(t, err)
	defer a.Close()

	data, err := a.ReadMember(bundle.HelpTextPath)
	require.NoError(t, err)
	assert.Equal(t, "usage: ...\n", string(data))

	_, err = a.ReadMember(bundle.ArgsFilePath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
