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

//go:build !windows

package launch

import "syscall"

// buildArgv on POSIX platforms execs the entry point directly.
func buildArgv(entry string, passthrough []string) []string {
	argv := make([]string, 0, 1+len(passthrough))
	argv = append(argv, entry)
	argv = append(argv, passthrough...)
	return argv
}

func execImage(entry string, argv, env []string) error {
	return syscall.Exec(entry, argv, env)
}
