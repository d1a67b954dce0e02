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

package launchconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/McDemigod/puisne/internal/platform"
)

var overlayCapable = platform.Probe{SupportsOverlayMount: true}
var overlayIncapable = platform.Probe{SupportsOverlayMount: false}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, ModeMount, cfg.Mode)
	assert.Equal(t, OrientationOver, cfg.Orientation)
	assert.Equal(t, PolicyUpdate, cfg.UnzipPolicy)
	assert.Equal(t, filepath.Join("/home/user", ".puisne", "app.app"), cfg.Destination)
}

func TestParseDefaultsFallBackToNoneWithoutOverlaySupport(t *testing.T) {
	cfg, err := Parse(nil, overlayIncapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, cfg.Mode)
	assert.Equal(t, "/home/user", cfg.Destination)
}

func TestParseExplicitMountWithoutSupportIsError(t *testing.T) {
	_, err := Parse([]string{"-m"}, overlayIncapable, "/home/user", "app")
	assert.Error(t, err)
}

func TestParseLaterFlagOverridesEarlier(t *testing.T) {
	cfg, err := Parse([]string{"-m", "-n"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, cfg.Mode)

	cfg, err = Parse([]string{"-n", "-m"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, ModeMount, cfg.Mode)
}

func TestParseOrientationAndPolicy(t *testing.T) {
	cfg, err := Parse([]string{"-o", "under", "-u", "none"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, OrientationUnder, cfg.Orientation)
	assert.Equal(t, PolicyNone, cfg.UnzipPolicy)
}

func TestParseInvalidPolicyIsError(t *testing.T) {
	_, err := Parse([]string{"-u", "bogus"}, overlayCapable, "/home/user", "app")
	assert.Error(t, err)
}

func TestParseHelpShortCircuits(t *testing.T) {
	cfg, err := Parse([]string{"-h", "-u", "bogus"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.True(t, cfg.Help)
}

func TestParseDestinationOverride(t *testing.T) {
	cfg, err := Parse([]string{"-d", "/custom/dest"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, "/custom/dest", cfg.Destination)
}

func TestParseStrayPositionalArgIsError(t *testing.T) {
	_, err := Parse([]string{"extra"}, overlayCapable, "/home/user", "app")
	assert.Error(t, err)
}

func TestParseUnknownFlagIsError(t *testing.T) {
	_, err := Parse([]string{"-z"}, overlayCapable, "/home/user", "app")
	assert.Error(t, err)
}

func TestParseWorkDirOverride(t *testing.T) {
	cfg, err := Parse([]string{"-w", "/scratch"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.Equal(t, "/scratch", cfg.WorkDir)
}

func TestParseWorkDirOverrideResolvesRelativeToAbsolute(t *testing.T) {
	cfg, err := Parse([]string{"-w", "scratch"}, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.WorkDir))
}

func TestParseDefaultWorkDirIsFreshEachCall(t *testing.T) {
	first, err := Parse(nil, overlayCapable, "/home/user", "app")
	require.NoError(t, err)
	second, err := Parse(nil, overlayCapable, "/home/user", "app")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(first.WorkDir))
	assert.Contains(t, filepath.Base(first.WorkDir), "puisne.")
	assert.NotEqual(t, first.WorkDir, second.WorkDir)
}
