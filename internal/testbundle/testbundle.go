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

// Package testbundle builds small in-memory (and on-disk, stub-prefixed)
// ZIP fixtures for exercising internal/bundle, internal/extract, and
// internal/runtime without a real PUISNE binary.
package testbundle

import (
	"archive/zip"
	"bytes"
	"os"
	"time"
)

// File describes one member to add to a fixture archive.
type File struct {
	Name    string // full archive path, e.g. "foo.app/bin/foo"
	Content string
	Mode    os.FileMode
	ModTime time.Time
	Dir     bool
}

// Build writes files into a new ZIP archive and returns its bytes.
func Build(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		name := f.Name
		if f.Dir && name[len(name)-1] != '/' {
			name += "/"
		}

		hdr := &zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: f.ModTime,
		}
		mode := f.Mode
		if mode == 0 {
			if f.Dir {
				mode = 0755 | os.ModeDir
			} else {
				mode = 0644
			}
		}
		hdr.SetMode(mode)

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, err
		}
		if !f.Dir {
			if _, err := w.Write([]byte(f.Content)); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteStubbed writes stub (a fake launcher prefix, may be empty) then
// the ZIP bytes for files, to path, simulating a real PUISNE binary —
// exercising archive/zip's support for a central directory preceded by
// arbitrary bytes.
func WriteStubbed(path string, stub []byte, files []File) error {
	zipBytes, err := Build(files)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if len(stub) > 0 {
		if _, err := out.Write(stub); err != nil {
			return err
		}
	}
	_, err = out.Write(zipBytes)
	return err
}
