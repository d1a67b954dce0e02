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
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/McDemigod/puisne/internal/pathutil"
	"github.com/McDemigod/puisne/internal/platform"
)

// Parse builds a Config from the launcher argument slice (already
// partitioned by argsplit and merged with any .args defaults). name and
// invocationDir must already be known (the archive walk that discovers
// name happens before option parsing), so the mode-dependent
// Destination default can be computed immediately rather than deferred.
//
// Grounded on rkt/fly.go's direct use of a bare *pflag.FlagSet (not
// wrapped in a cobra.Command — see DESIGN.md for why cobra itself isn't
// pulled in here).
func Parse(launcherArgs []string, probe platform.Probe, invocationDir, name string) (*Config, error) {
	cfg := &Config{
		Orientation: OrientationOver,
		UnzipPolicy: PolicyUpdate,
	}

	for _, a := range launcherArgs {
		if a == "-h" || a == "--help" {
			cfg.Help = true
			return cfg, nil
		}
	}

	fs := pflag.NewFlagSet("puisne", pflag.ContinueOnError)
	fs.Usage = func() {} // help text comes from the bundled puisne/help.txt, not pflag.
	fs.SetOutput(errorDiscard{})

	fs.VarPF(&modeValue{cfg: cfg, mode: ModeMount}, "mount", "m", "extract and overlay-mount onto the invocation directory").NoOptDefVal = "true"
	fs.VarPF(&modeValue{cfg: cfg, mode: ModeNone}, "none", "n", "extract only, no overlay mount").NoOptDefVal = "true"
	fs.VarP(newEnumValue(
		func() string { return string(cfg.Orientation) },
		func(s string) { cfg.Orientation = Orientation(s) },
		string(OrientationOver), string(OrientationUnder),
	), "orientation", "o", "overlay orientation: over or under")
	fs.VarP(newEnumValue(
		func() string { return string(cfg.UnzipPolicy) },
		func(s string) { cfg.UnzipPolicy = UnzipPolicy(s) },
		string(PolicyAll), string(PolicyNew), string(PolicyExisting),
		string(PolicyUpdate), string(PolicyFreshen), string(PolicyNone),
	), "policy", "u", "extraction policy")

	var destFlag, workFlag string
	fs.StringVarP(&destFlag, "destination", "d", "", "extraction destination directory")
	fs.StringVarP(&workFlag, "workdir", "w", "", "overlay scratch directory")
	fs.VarPF(&helpValue{cfg: cfg}, "help", "h", "print help text").NoOptDefVal = "true"

	if err := fs.Parse(launcherArgs); err != nil {
		return nil, errors.Wrap(err, "PUISNE: invalid option")
	}
	if cfg.Help {
		return cfg, nil
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("PUISNE: found non-option arguments: %v", fs.Args())
	}

	if cfg.Mode == "" {
		if probe.SupportsOverlayMount {
			cfg.Mode = ModeMount
		} else {
			cfg.Mode = ModeNone
		}
	}
	if cfg.Mode == ModeMount && !probe.SupportsOverlayMount {
		return nil, errors.New("PUISNE: need Linux kernel >= 5.12.0 to mount")
	}

	if destFlag != "" {
		expanded, err := pathutil.ExpandTilde(destFlag)
		if err != nil {
			return nil, errors.Wrap(err, "PUISNE: expanding -d destination")
		}
		cfg.Destination = expanded
	} else {
		cfg.Destination = defaultDestination(cfg.Mode, invocationDir, name)
	}
	absDest, err := filepath.Abs(cfg.Destination)
	if err != nil {
		return nil, errors.Wrap(err, "PUISNE: resolving destination")
	}
	cfg.Destination = absDest

	if workFlag != "" {
		expanded, err := pathutil.ExpandTilde(workFlag)
		if err != nil {
			return nil, errors.Wrap(err, "PUISNE: expanding -w work dir")
		}
		absWork, err := filepath.Abs(expanded)
		if err != nil {
			return nil, errors.Wrap(err, "PUISNE: resolving work dir")
		}
		cfg.WorkDir = absWork
	} else {
		workDir, err := os.MkdirTemp(os.TempDir(), "puisne.")
		if err != nil {
			return nil, errors.Wrap(err, "PUISNE: creating work directory")
		}
		cfg.WorkDir = workDir
	}

	return cfg, nil
}

func defaultDestination(mode Mode, invocationDir, name string) string {
	if mode == ModeNone {
		return invocationDir
	}
	return filepath.Join(invocationDir, ".puisne", name+".app")
}

// errorDiscard silences pflag's own "unknown flag" stderr printouts; the
// launcher renders its own "PUISNE: ..." message from the returned
// error instead.
type errorDiscard struct{}

func (errorDiscard) Write(p []byte) (int, error) { return len(p), nil }
