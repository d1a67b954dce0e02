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

// Package pathutil holds the small set of pure path operations the
// launcher needs: tilde expansion, canonicalization, ancestor tests, and
// resolving the launcher's own directory from argv[0].
package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// Path is a typed absolute-path builder, replacing ad hoc variadic
// string concatenation with a semantic path type.
type Path string

// Join returns a new Path with elems appended via filepath.Join.
func (p Path) Join(elems ...string) Path {
	all := append([]string{string(p)}, elems...)
	return Path(filepath.Join(all...))
}

func (p Path) String() string { return string(p) }

// ExpandTilde replaces a leading "~" with the user's home directory,
// unless a literal directory named "~" exists in the current working
// directory. On Windows the home directory is the
// userprofile environment value; github.com/mitchellh/go-homedir already
// encodes that split, which is why it's used here rather than a
// hand-rolled HOME/userprofile branch.
func ExpandTilde(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	if info, err := os.Stat("~"); err == nil && info.IsDir() {
		return p, nil
	}

	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", errors.Wrap(err, "expanding tilde")
	}
	return expanded, nil
}

// RealPath resolves p to its canonical absolute form, following symlinks.
func RealPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "resolving absolute path for %q", p)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrapf(err, "resolving symlinks for %q", abs)
	}
	return resolved, nil
}

// IsPrefix reports whether canonicalized a is b, or a proper
// path-component ancestor of b.
func IsPrefix(a, b string) bool {
	a = filepath.Clean(a)
	b = filepath.Clean(b)
	if a == b {
		return true
	}
	rel, err := filepath.Rel(a, b)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SelfDir resolves the directory containing the running binary from
// argv0, before any chdir.
func SelfDir(argv0 string) (string, error) {
	dir := filepath.Dir(argv0)
	resolved, err := RealPath(dir)
	if err != nil {
		return "", errors.Wrapf(err, "resolving invocation directory from %q", argv0)
	}
	return resolved, nil
}
