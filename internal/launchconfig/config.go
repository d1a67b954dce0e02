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

// Package launchconfig holds the resolved launcher configuration model
// and the option parser that builds it from the launcher argument
// slice.
package launchconfig

// Mode selects whether extracted files are overlay-mounted onto the
// invocation directory or left as a plain extraction.
type Mode string

const (
	ModeMount Mode = "mount"
	ModeNone  Mode = "none"
)

// Orientation selects which side of the overlay is writable.
type Orientation string

const (
	OrientationOver  Orientation = "over"
	OrientationUnder Orientation = "under"
)

// UnzipPolicy selects the per-entry extraction decision table.
type UnzipPolicy string

const (
	PolicyAll      UnzipPolicy = "all"
	PolicyNew      UnzipPolicy = "new"
	PolicyExisting UnzipPolicy = "existing"
	PolicyUpdate   UnzipPolicy = "update"
	PolicyFreshen  UnzipPolicy = "freshen"
	PolicyNone     UnzipPolicy = "none"
)

// Config is the resolved, immutable-after-construction launcher
// configuration.
type Config struct {
	Mode        Mode
	Orientation Orientation
	UnzipPolicy UnzipPolicy
	Destination string
	WorkDir     string

	// Help is set when -h was seen; the caller prints help text and
	// exits before anything else runs.
	Help bool
}
