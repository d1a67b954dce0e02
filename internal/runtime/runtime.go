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

// Package runtime wires platform detection, archive opening, manifest
// walking, argument handling, option parsing, extraction, overlay
// composition, and launch resolution into one pipeline, as an explicit
// Context value rather than ambient globals. Grounded on stage0's split
// between building process state (Prepare) and consuming it (Run), and
// on rkt/rkt.go's single stderr()-funneled error reporting.
package runtime

import (
	"fmt"
	"io"
	"log"
	"os"

	goerrors "errors"

	"github.com/pkg/errors"

	"github.com/McDemigod/puisne/internal/argsplit"
	"github.com/McDemigod/puisne/internal/bundle"
	"github.com/McDemigod/puisne/internal/extract"
	"github.com/McDemigod/puisne/internal/launch"
	"github.com/McDemigod/puisne/internal/launchconfig"
	"github.com/McDemigod/puisne/internal/overlay"
	"github.com/McDemigod/puisne/internal/pathutil"
	"github.com/McDemigod/puisne/internal/platform"
)

// debugLog is gated behind PUISNE_DEBUG the way stage0/stage1 gate their
// own verbose diagnostics behind an environment flag rather than a flag
// library — this is ambient, pre-hand-off diagnostics, not part of the
// launcher grammar itself.
var debugLog = newDebugLogger()

func newDebugLogger() *log.Logger {
	out := io.Discard
	if os.Getenv("PUISNE_DEBUG") != "" {
		out = os.Stderr
	}
	return log.New(out, "puisne: ", log.Lshortfile)
}

// Context holds the process-wide state threaded through the phases:
// the resolved configuration, the archive manifest, and the invocation
// directory. None of it is stored in package-level singletons.
type Context struct {
	Probe         platform.Probe
	InvocationDir string
	Archive       *bundle.Archive
	Manifest      *bundle.Manifest
	Config        *launchconfig.Config
	Passthrough   []string
}

// Outcome is what Run decided to do, returned instead of calling
// os.Exit directly so callers (and tests) can inspect the decision.
// Only one of Plan/ExitCode is meaningful at a time: a non-nil Plan
// means "hand off to this"; otherwise ExitCode is the process's final
// status.
type Outcome struct {
	Plan     *launch.Plan
	ExitCode int
}

// Run executes the full launcher pipeline against argv (os.Args) and
// the running binary's own path (normally argv[0] or os.Executable()).
// It never calls os.Exit or performs the terminal exec itself — main.go
// does that with the returned Outcome, a seam that lets tests observe
// the planned argv instead of actually replacing the process image.
func Run(argv []string, selfPath string) (*Outcome, error) {
	ctx := &Context{Probe: platform.Detect()}

	invocationDir, err := pathutil.SelfDir(selfPath)
	if err != nil {
		return nil, errors.Wrap(err, "PUISNE: resolving invocation directory")
	}
	ctx.InvocationDir = invocationDir
	debugLog.Printf("invocation_dir=%s", ctx.InvocationDir)

	ctx.Archive, err = bundle.OpenSelf(selfPath)
	if err != nil {
		return nil, errors.Wrap(err, "PUISNE: opening embedded archive")
	}

	cliLauncher, passthrough := argsplit.Partition(argv)
	ctx.Passthrough = passthrough

	ctx.Manifest, err = bundle.Walk(ctx.Archive)
	if err != nil {
		if goerrors.Is(err, bundle.ErrEmptyBundle) {
			return emptyBundleOutcome(ctx.Archive)
		}
		ctx.Archive.Close()
		return nil, err
	}

	launcherArgs := cliLauncher
	if argsBytes, err := ctx.Archive.ReadMember(bundle.ArgsFilePath); err == nil {
		tokens := argsplit.TokenizeArgsFile(argsBytes)
		launcherArgs = argsplit.MergeDefaults(cliLauncher, tokens)
	}
	debugLog.Printf("launcher_args=%v passthrough=%v", launcherArgs, ctx.Passthrough)

	ctx.Config, err = launchconfig.Parse(launcherArgs, ctx.Probe, ctx.InvocationDir, ctx.Manifest.Name)
	if err != nil {
		ctx.Archive.Close()
		return nil, err
	}
	if ctx.Config.Help {
		return helpOutcome(ctx.Archive)
	}

	if ctx.Config.UnzipPolicy != launchconfig.PolicyNone {
		if err := extract.Apply(ctx.Archive, ctx.Manifest, ctx.Config.UnzipPolicy, ctx.Config.Destination); err != nil {
			ctx.Archive.Close()
			return nil, err
		}
	}

	if ctx.Config.Mode == launchconfig.ModeMount {
		params := overlay.Params{
			InvocationDir: ctx.InvocationDir,
			Destination:   ctx.Config.Destination,
			Orientation:   ctx.Config.Orientation,
			WorkDir:       ctx.Config.WorkDir,
		}
		if err := overlay.Apply(overlay.NewMounter(), params); err != nil {
			ctx.Archive.Close()
			return nil, err
		}
	}

	ctx.Archive.Close()

	plan, err := launch.Resolve(ctx.Config, ctx.InvocationDir, ctx.Manifest.Name, ctx.Passthrough)
	if err != nil {
		return nil, err
	}
	return &Outcome{Plan: plan}, nil
}

// emptyBundleOutcome handles a bundle with no application folder: print
// guidance, then the help text, then exit 0. Not an error — the archive
// may genuinely lack puisne/help.txt, in which case the guidance alone
// is printed.
func emptyBundleOutcome(archive *bundle.Archive) (*Outcome, error) {
	defer archive.Close()

	fmt.Println("This is an empty PUISNE.")
	fmt.Println("Add an application folder to make this a self-contained bundle, eg.")
	fmt.Println()
	fmt.Println("   $ zip -r -D -g <this file> app_name.app")
	fmt.Println()
	fmt.Println("Printing help file...")
	fmt.Println()

	if text, err := archive.ReadMember(bundle.HelpTextPath); err == nil {
		os.Stdout.Write(text)
	}
	return &Outcome{ExitCode: 0}, nil
}

func helpOutcome(archive *bundle.Archive) (*Outcome, error) {
	defer archive.Close()
	text, err := archive.ReadMember(bundle.HelpTextPath)
	if err != nil {
		return nil, errors.Wrap(err, "PUISNE: reading help text")
	}
	os.Stdout.Write(text)
	return &Outcome{ExitCode: 0}, nil
}

// ReportFatal renders err the one way the launcher ever prints a fatal
// error: a single "PUISNE: <message>" line on stderr. rkt/rkt.go's own
// stderr() helper is the direct analogue — one call site, never
// scattered fmt.Println/log.Fatal calls across packages.
func ReportFatal(err error) {
	fmt.Fprintf(os.Stderr, "PUISNE: %s\n", err)
}
