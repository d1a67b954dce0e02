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

// Package argsplit implements the `--` sentinel protocol that
// partitions process argv into a launcher slice and a passthrough
// slice, and merges the archive's .args defaults file into that
// partition. This is list-index arithmetic over argv, not a domain any
// flag-parsing library in the corpus models (pflag/cobra assume they
// own the whole of argv from index 0).
package argsplit

import "strings"

const sentinel = "--"

// Partition splits argv (argv[0] is the program name):
//
//   - If argv[1] != "--", the entire tail argv[1:] is the passthrough
//     slice; the launcher slice is empty.
//   - If argv[1] == "--", the launcher slice begins at argv[2]. The
//     first subsequent "--" within that slice terminates it; everything
//     after is the passthrough slice.
func Partition(argv []string) (launcher, passthrough []string) {
	if len(argv) <= 1 {
		return nil, nil
	}
	if argv[1] != sentinel {
		return nil, argv[1:]
	}

	rest := argv[2:]
	for i, tok := range rest {
		if tok == sentinel {
			return rest[:i], rest[i+1:]
		}
	}
	return rest, nil
}

// TokenizeArgsFile splits the raw contents of an .args file into
// whitespace-stripped tokens, one per line, ignoring blank lines.
func TokenizeArgsFile(raw []byte) []string {
	var tokens []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens
}

// MergeDefaults implements the .args consultation rule:
//
//   - If the CLI launcher slice is empty, .args wholly supplies
//     launcher arguments (if there is no .args, both are empty and the
//     launcher parses zero arguments).
//   - Otherwise, .args is consulted only if it contains the literal
//     sentinel line "...": that line is replaced by the CLI-supplied
//     launcher slice. Tokens before the sentinel become overridable
//     defaults (the parser still sees them, earlier in the slice);
//     tokens after become overriding forces (seen last, so a later
//     flag occurrence wins — later occurrences override earlier ones).
//   - If .args has no "..." sentinel and the CLI slice is non-empty,
//     .args is ignored entirely.
func MergeDefaults(cliLauncher []string, argsFileTokens []string) []string {
	if len(cliLauncher) == 0 {
		return argsFileTokens
	}

	idx := indexOf(argsFileTokens, "...")
	if idx == -1 {
		return cliLauncher
	}

	merged := make([]string, 0, len(argsFileTokens)-1+len(cliLauncher))
	merged = append(merged, argsFileTokens[:idx]...)
	merged = append(merged, cliLauncher...)
	merged = append(merged, argsFileTokens[idx+1:]...)
	return merged
}

func indexOf(tokens []string, target string) int {
	for i, t := range tokens {
		if t == target {
			return i
		}
	}
	return -1
}
