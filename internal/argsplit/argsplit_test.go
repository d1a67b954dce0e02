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

package argsplit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionNoLeadingSentinel(t *testing.T) {
	launcher, passthrough := Partition([]string{"./p", "a", "b"})
	assert.Empty(t, launcher)
	assert.Equal(t, []string{"a", "b"}, passthrough)
}

func TestPartitionOnlyArgv0(t *testing.T) {
	launcher, passthrough := Partition([]string{"./p"})
	assert.Empty(t, launcher)
	assert.Empty(t, passthrough)
}

func TestPartitionLeadingSentinelNoSecond(t *testing.T) {
	launcher, passthrough := Partition([]string{"./p", "--", "-u", "none"})
	assert.Equal(t, []string{"-u", "none"}, launcher)
	assert.Empty(t, passthrough)
}

func TestPartitionLeadingSentinelWithSecond(t *testing.T) {
	launcher, passthrough := Partition([]string{"./p", "--", "-u", "none", "--", "x"})
	assert.Equal(t, []string{"-u", "none"}, launcher)
	assert.Equal(t, []string{"x"}, passthrough)
}

func TestPartitionLeadingSentinelEmptyLauncher(t *testing.T) {
	launcher, passthrough := Partition([]string{"./p", "--", "--", "x", "y"})
	assert.Empty(t, launcher)
	assert.Equal(t, []string{"x", "y"}, passthrough)
}

func TestTokenizeArgsFile(t *testing.T) {
	toks := TokenizeArgsFile([]byte("-u\nnew\n\n...\n  \n-w /tmp\n"))
	assert.Equal(t, []string{"-u", "new", "...", "-w /tmp"}, toks)
}

func TestMergeDefaultsCLIEmptyUsesArgsFile(t *testing.T) {
	merged := MergeDefaults(nil, []string{"-u", "none"})
	assert.Equal(t, []string{"-u", "none"}, merged)
}

func TestMergeDefaultsNoSentinelIgnoresArgsFile(t *testing.T) {
	merged := MergeDefaults([]string{"-u", "all"}, []string{"-u", "none"})
	assert.Equal(t, []string{"-u", "all"}, merged)
}

func TestMergeDefaultsSentinelSplices(t *testing.T) {
	// .args = "-u\nnew\n...\n", CLI = "-u all" -> [-u new -u all]
	merged := MergeDefaults([]string{"-u", "all"}, []string{"-u", "new", "..."})
	assert.Equal(t, []string{"-u", "new", "-u", "all"}, merged)
}

func TestMergeDefaultsSentinelWithForcesAfter(t *testing.T) {
	merged := MergeDefaults([]string{"-u", "all"}, []string{"-u", "new", "...", "-w", "/scratch"})
	assert.Equal(t, []string{"-u", "new", "-u", "all", "-w", "/scratch"}, merged)
}
