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

// Package launch resolves the entry point and constructs the final
// exec-family hand-off. Grounded on rkt/fly.go's
// syscall.Exec(execPath, execargs, environ) call at its own stage1
// hand-off boundary.
package launch

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/McDemigod/puisne/internal/launchconfig"
	"github.com/McDemigod/puisne/internal/pathutil"
)

// Plan is the resolved entry point and argument vector, computed but
// not yet executed — kept separate from Exec so tests can assert the
// resolution logic without replacing the test binary's process image.
type Plan struct {
	Entry string
	Argv  []string
}

// Resolve computes the run directory, the entry path, and the child
// argv.
func Resolve(cfg *launchconfig.Config, invocationDir, name string, passthrough []string) (*Plan, error) {
	runDir := invocationDir
	if cfg.Mode == launchconfig.ModeNone {
		runDir = cfg.Destination
	}

	entry, err := pathutil.RealPath(filepath.Join(runDir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "PUISNE: resolving entry point in %s", runDir)
	}

	return &Plan{
		Entry: entry,
		Argv:  buildArgv(entry, passthrough),
	}, nil
}

// Exec replaces the current process image with the planned entry
// point. If it returns at all, the call failed: the process image is
// still the launcher's.
func Exec(p *Plan) error {
	return execImage(p.Entry, p.Argv, os.Environ())
}
