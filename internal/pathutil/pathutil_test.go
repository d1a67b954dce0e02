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

package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrefix(t *testing.T) {
	assert.True(t, IsPrefix("/a/b", "/a/b"))
	assert.True(t, IsPrefix("/a/b", "/a/b/c"))
	assert.True(t, IsPrefix("/a/b", "/a/b/c/d"))
	assert.False(t, IsPrefix("/a/b", "/a/c"))
	assert.False(t, IsPrefix("/a/bc", "/a/b"))
	assert.False(t, IsPrefix("/a/b/c", "/a/b"))
}

func TestPathJoin(t *testing.T) {
	p := Path("/tmp/puisne").Join("foo.app", "bin")
	assert.Equal(t, filepath.Join("/tmp/puisne", "foo.app", "bin"), p.String())
}

func TestExpandTildeNoTilde(t *testing.T) {
	out, err := ExpandTilde("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", out)
}
