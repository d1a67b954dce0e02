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

package launch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/McDemigod/puisne/internal/launchconfig"
)

func writeExecutable(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\necho hi\n"), 0755))
}

func TestResolveModeMountRunsFromInvocationDir(t *testing.T) {
	invocation := t.TempDir()
	writeExecutable(t, invocation, "demo")

	cfg := &launchconfig.Config{Mode: launchconfig.ModeMount, Destination: t.TempDir()}
	plan, err := Resolve(cfg, invocation, "demo", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(invocation, "demo"), plan.Entry)
	assert.Equal(t, []string{plan.Entry, "a", "b"}, plan.Argv)
}

func TestResolveModeNoneRunsFromDestination(t *testing.T) {
	invocation := t.TempDir()
	dest := t.TempDir()
	writeExecutable(t, dest, "demo")

	cfg := &launchconfig.Config{Mode: launchconfig.ModeNone, Destination: dest}
	plan, err := Resolve(cfg, invocation, "demo", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "demo"), plan.Entry)
	assert.Equal(t, []string{plan.Entry}, plan.Argv)
}

func TestResolveMissingEntryIsError(t *testing.T) {
	invocation := t.TempDir()
	cfg := &launchconfig.Config{Mode: launchconfig.ModeMount, Destination: t.TempDir()}
	_, err := Resolve(cfg, invocation, "missing", nil)
	assert.Error(t, err)
}
