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

// Package extract implements the six-policy selective extraction
// engine. It streams archive members onto disk with a
// fixed-size buffer, mirroring cas/fetcher.go's io.Copy-to-disk shape
// rather than reading whole files into memory.
package extract

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/McDemigod/puisne/internal/bundle"
	"github.com/McDemigod/puisne/internal/launchconfig"
)

const copyBufferSize = 32 * 1024

// Opener streams the content of an archive member by relative path.
// *bundle.Archive satisfies this, narrowed here so extraction logic can
// be tested against fixtures without a real zip.ReadCloser.
type Opener interface {
	Open(appName, relativePath string) (io.ReadCloser, error)
}

// Apply walks the manifest and extracts each entry into destination
// according to policy. Entries whose RelativePath is empty (the bare
// "<name>.app/" directory entry) are skipped.
//
// PolicyNone is handled by the caller: Apply must not be invoked at
// all when the resolved policy is "none".
func Apply(a Opener, m *bundle.Manifest, policy launchconfig.UnzipPolicy, destination string) error {
	if policy == launchconfig.PolicyNone {
		return errors.New("extract: Apply called under policy none")
	}
	if err := os.MkdirAll(destination, 0755); err != nil {
		return errors.Wrap(err, "PUISNE: creating destination root")
	}

	for _, entry := range m.Entries {
		if entry.RelativePath == "" {
			continue
		}
		dest := filepath.Join(destination, entry.RelativePath)
		if err := applyEntry(a, m.Name, entry, policy, dest); err != nil {
			return err
		}
	}
	return nil
}

func applyEntry(a Opener, appName string, entry bundle.Entry, policy launchconfig.UnzipPolicy, dest string) error {
	info, statErr := os.Stat(dest)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return errors.Wrapf(statErr, "PUISNE: stat %s", dest)
	}

	action, err := decide(policy, exists, entry, info)
	if err != nil {
		return err
	}
	switch action {
	case actionSkip:
		return nil
	case actionCreate, actionOverwrite:
		return materialize(a, appName, entry, dest)
	default:
		return errors.Errorf("extract: unreachable decision %v", action)
	}
}

type decision int

const (
	actionSkip decision = iota
	actionCreate
	actionOverwrite
)

func decide(policy launchconfig.UnzipPolicy, exists bool, entry bundle.Entry, info os.FileInfo) (decision, error) {
	switch policy {
	case launchconfig.PolicyAll:
		if exists {
			return actionOverwrite, nil
		}
		return actionCreate, nil
	case launchconfig.PolicyNew:
		if exists {
			return actionSkip, nil
		}
		return actionCreate, nil
	case launchconfig.PolicyExisting:
		if exists {
			return actionOverwrite, nil
		}
		return actionSkip, nil
	case launchconfig.PolicyUpdate:
		if !exists {
			return actionCreate, nil
		}
		if archiveNewer(entry, info) {
			return actionOverwrite, nil
		}
		return actionSkip, nil
	case launchconfig.PolicyFreshen:
		if !exists {
			return actionSkip, nil
		}
		if archiveNewer(entry, info) {
			return actionOverwrite, nil
		}
		return actionSkip, nil
	default:
		return actionSkip, errors.Errorf("extract: unknown policy %q", policy)
	}
}

// archiveNewer compares the archive's recorded modification time
// against the destination's status-change time (ctime, not mtime —
// see ctime_*.go; a deliberately-preserved, slightly surprising
// comparison that diverges from mtime whenever a destination file is
// chmod-ed after creation).
func archiveNewer(entry bundle.Entry, info os.FileInfo) bool {
	archiveTime := time.Unix(entry.ModTime, 0)
	return archiveTime.After(statusChangeTime(info))
}

func materialize(a Opener, appName string, entry bundle.Entry, dest string) error {
	if entry.Kind == bundle.Directory {
		if err := os.MkdirAll(dest, entry.Mode); err != nil {
			return errors.Wrapf(err, "PUISNE: creating directory %s", dest)
		}
		return os.Chmod(dest, entry.Mode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "PUISNE: creating parent directory for %s", dest)
	}

	src, err := a.Open(appName, entry.RelativePath)
	if err != nil {
		return errors.Wrapf(err, "PUISNE: opening archive member %s", entry.RelativePath)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "PUISNE: creating %s", dest)
	}

	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(out, src, buf)
	closeErr := out.Close()
	if copyErr != nil {
		return errors.Wrapf(copyErr, "PUISNE: writing %s", dest)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "PUISNE: closing %s", dest)
	}

	return os.Chmod(dest, entry.Mode)
}
