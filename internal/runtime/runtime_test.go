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

package runtime

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/McDemigod/puisne/internal/testbundle"
)

// buildPuisne writes a stub-prefixed ZIP fixture and returns its path,
// suitable to pass as both the running binary's argv[0] and selfPath.
func buildPuisne(t *testing.T, files []testbundle.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p")
	require.NoError(t, testbundle.WriteStubbed(path, []byte("#!/bin/sh\n"), files))
	return path
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	w.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestRunEmptyBundlePrintsGuidanceAndHelp(t *testing.T) {
	p := buildPuisne(t, []testbundle.File{
		{Name: "puisne/help.txt", Content: "usage: p [options]\n"},
	})

	var outcome *Outcome
	var err error
	out := captureStdout(t, func() {
		outcome, err = Run([]string{p}, p)
	})

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Plan)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Contains(t, out, "This is an empty PUISNE")
	assert.Contains(t, out, "usage: p [options]")
}

func TestRunMultipleAppFoldersIsError(t *testing.T) {
	p := buildPuisne(t, []testbundle.File{
		{Name: "a.app/a", Content: "x", Mode: 0755},
		{Name: "b.app/b", Content: "y", Mode: 0755},
	})

	_, err := Run([]string{p}, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple top level app folders")
}

func TestRunSentinelArgsNoExtraction(t *testing.T) {
	// "./p -- -u none -- x", with an explicit -n appended so this doesn't
	// also exercise the host's overlay mount support. The entry point is
	// pre-staged at the mode-none destination (as it would be by an
	// earlier run) so this isolates "-u none performs no extraction" from
	// entry-point discovery.
	p := buildPuisne(t, []testbundle.File{
		{Name: "foo.app/foo", Content: "#!/bin/sh\necho \"$@\"\n", Mode: 0755},
	})
	dir := filepath.Dir(p)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo"), []byte("already-present"), 0755))

	outcome, err := Run([]string{p, "--", "-u", "none", "-n", "--", "x"}, p)
	require.NoError(t, err)
	require.NotNil(t, outcome.Plan)
	assert.Equal(t, []string{outcome.Plan.Entry, "x"}, outcome.Plan.Argv)

	got, err := os.ReadFile(filepath.Join(dir, "foo"))
	require.NoError(t, err)
	assert.Equal(t, "already-present", string(got))
}

func TestRunArgsFileSentinelSplice(t *testing.T) {
	// .args = "-u\nnew\n...\n", CLI supplies "-n -u all" -> merged
	// launcher args are [-u new -n -u all], so -u all wins and mode is
	// none (avoiding a real overlay mount in this test).
	p := buildPuisne(t, []testbundle.File{
		{Name: ".args", Content: "-u\nnew\n...\n"},
		{Name: "foo.app/foo", Content: "entrypoint", Mode: 0755},
	})

	outcome, err := Run([]string{p, "--", "-n", "-u", "all"}, p)
	require.NoError(t, err)
	require.NotNil(t, outcome.Plan)

	dest := filepath.Dir(p)
	got, err := os.ReadFile(filepath.Join(dest, "foo"))
	require.NoError(t, err)
	assert.Equal(t, "entrypoint", string(got))
}

func TestRunHelpFlagPrintsHelpText(t *testing.T) {
	p := buildPuisne(t, []testbundle.File{
		{Name: "puisne/help.txt", Content: "usage: p [options]\n"},
		{Name: "foo.app/foo", Content: "x", Mode: 0755},
	})

	var outcome *Outcome
	var err error
	out := captureStdout(t, func() {
		outcome, err = Run([]string{p, "--", "-h"}, p)
	})

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Nil(t, outcome.Plan)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Contains(t, out, "usage: p [options]")
}
