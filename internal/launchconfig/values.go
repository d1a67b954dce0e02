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
	"fmt"
)

// modeValue is a pflag.Value that flips cfg.Mode the instant it's set,
// with no argument consumed. Used for both -m and -n so that later
// occurrences override earlier ones by falling directly out of
// pflag's left-to-right Set() invocation order, instead of needing
// separate bookkeeping of which flag came last. Mirrors rkt/mounts.go's
// custom flag.Value types (volumeList, mountsMap), generalized to a
// boolean-like enum flag the way rkt/flag's gcFlags validates
// enumerated option sets.
type modeValue struct {
	cfg  *Config
	mode Mode
}

func (v *modeValue) String() string {
	if v.cfg == nil {
		return ""
	}
	return string(v.cfg.Mode)
}

func (v *modeValue) Set(string) error {
	v.cfg.Mode = v.mode
	return nil
}

func (v *modeValue) Type() string { return "mode" }

// IsBoolFlag marks this as a no-argument flag for the stdlib flag
// package. pflag's VarP does not consult it; Parse sets NoOptDefVal on
// the registered flag, which is what makes pflag consume no argument.
func (v *modeValue) IsBoolFlag() bool { return true }

// helpValue is a no-argument pflag.Value that records -h/--help was
// seen. Parse itself pre-scans the argument slice for -h/--help before
// building the flag set, so in practice this Value's Set is never
// reached in that case; it's kept as the flag's registered handler so
// fs.Parse can still recognize the flag if reached through some other
// path.
type helpValue struct {
	cfg *Config
}

func (v *helpValue) String() string   { return "" }
func (v *helpValue) Type() string     { return "help" }
func (v *helpValue) IsBoolFlag() bool { return true }

func (v *helpValue) Set(string) error {
	v.cfg.Help = true
	return nil
}

// enumValue is a pflag.Value restricted to a fixed set of string
// choices, delegating storage to get/set closures so it can back any
// named string type (Orientation, UnzipPolicy, ...). Grounded on
// rkt/flag/gcflags.go's validated-enum-string pattern.
type enumValue struct {
	get     func() string
	set     func(string)
	choices []string
}

func newEnumValue(get func() string, set func(string), choices ...string) *enumValue {
	return &enumValue{get: get, set: set, choices: choices}
}

func (v *enumValue) String() string {
	if v.get == nil {
		return ""
	}
	return v.get()
}

func (v *enumValue) Type() string { return "string" }

func (v *enumValue) Set(s string) error {
	for _, c := range v.choices {
		if s == c {
			v.set(s)
			return nil
		}
	}
	return fmt.Errorf("must be one of %v", v.choices)
}
