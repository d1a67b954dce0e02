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

// Package bundle walks the ZIP central directory appended to the
// launcher binary, classifies every member, derives the bundle name, and
// produces the ordered Manifest the extractor and overlayer consume.
package bundle

import (
	"archive/zip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Kind distinguishes a regular file from a directory entry in the
// manifest.
type Kind int

const (
	File Kind = iota
	Directory
)

// Entry is one member of the bundle, with the "<name>.app/" prefix
// already stripped from its path.
type Entry struct {
	RelativePath string
	Mode         os.FileMode
	ModTime      int64 // Unix seconds, local-time interpretation (see dostime.go)
	Kind         Kind
}

// Manifest is the ordered sequence of bundle entries, plus the bundle
// name they were discovered under.
type Manifest struct {
	Name    string
	Entries []Entry
}

// ErrEmptyBundle is returned by Walk when the archive contains no
// top-level "<name>.app/" directory. It is not itself an error
// condition for the process (the caller
// prints guidance and the help text, then exits 0), but Walk still
// signals it distinctly from a successful non-empty manifest.
var ErrEmptyBundle = errors.New("bundle: no top-level app directory found")

// Archive wraps an open ZIP reader over the launcher binary, read lazily
// by ReadMember and Walk.
type Archive struct {
	zr *zip.ReadCloser
}

// OpenSelf opens the ZIP archive appended to the file at path (normally
// the running binary, resolved via os.Executable or argv[0]).
func OpenSelf(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening embedded archive in %q", path)
	}
	return &Archive{zr: zr}, nil
}

// Close releases the archive's underlying file handle.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// ReadMember reads a single named member fully into memory. Used only
// for the small, bounded reserved files (help text, .args) — bundle
// content itself is streamed by the extractor, never materialized
// wholesale.
func (a *Archive) ReadMember(name string) ([]byte, error) {
	for _, f := range a.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening archive member %q", name)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Wrapf(err, "reading archive member %q", name)
		}
		return data, nil
	}
	return nil, os.ErrNotExist
}

// Open returns a reader for a bundle-relative member of the discovered
// app directory, for streaming extraction.
func (a *Archive) Open(appName, relativePath string) (io.ReadCloser, error) {
	full := appName + AppSuffix + "/" + relativePath
	for _, f := range a.zr.File {
		if f.Name != full {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening archive member %q", full)
		}
		return rc, nil
	}
	return nil, errors.Errorf("archive member %q not found", full)
}

// classified is the result of classifying a single non-reserved archive
// member.
type classified struct {
	appName string
	entry   Entry
}

// classify applies the ordered classification rules to a single archive
// member name, already known not to be reserved.
func classify(f *zip.File) (classified, error) {
	name := f.Name
	slash := strings.IndexByte(name, '/')
	if slash == -1 {
		return classified{}, errors.Errorf("PUISNE: additional file %q in top level", name)
	}

	head, tail := name[:slash], name[slash+1:]
	if !strings.HasSuffix(head, AppSuffix) {
		return classified{}, errors.Errorf("PUISNE: problematic top-level folder %q", head)
	}

	appName := strings.TrimSuffix(head, AppSuffix)
	if appName == "" {
		return classified{}, errors.New("PUISNE: invalid app folder (empty name)")
	}

	// tail == "" here means this record is the explicit directory entry
	// for the app root itself (name == "<n>.app/"); it carries no
	// bundle-relative content and the extractor skips entries with an
	// empty relative path.

	kind := File
	if strings.HasSuffix(name, "/") {
		kind = Directory
	}

	return classified{
		appName: appName,
		entry: Entry{
			RelativePath: tail,
			Mode:         f.Mode(),
			ModTime:      localModTime(f).Unix(),
			Kind:         kind,
		},
	}, nil
}

// Walk reads the archive's central directory, classifies every member,
// and returns the resulting Manifest. On ErrEmptyBundle the caller is
// expected to print guidance and the help text, then exit 0 — it is not
// treated as a fatal error by Walk itself.
func Walk(a *Archive) (*Manifest, error) {
	m := &Manifest{}

	for _, f := range a.zr.File {
		if isReserved(f.Name) {
			continue
		}

		c, err := classify(f)
		if err != nil {
			return nil, err
		}

		if m.Name == "" {
			m.Name = c.appName
		} else if m.Name != c.appName {
			return nil, errors.New("PUISNE: found multiple top level app folders")
		}

		m.Entries = append(m.Entries, c.entry)
	}

	if m.Name == "" {
		return nil, ErrEmptyBundle
	}

	return m, nil
}
