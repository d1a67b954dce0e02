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

package bundle

import "strings"

// reservedPrefixes lists, in classification order, the top-level paths
// the archive walk treats as launcher metadata rather than bundle
// content. First match wins.
var reservedPrefixes = []string{
	"puisne/",
	".args",
	".cosmo",
	"usr/share/zoneinfo/",
}

// HelpTextPath is the reserved member holding the launcher's help text.
const HelpTextPath = "puisne/help.txt"

// ArgsFilePath is the reserved member holding CLI-argument defaults.
const ArgsFilePath = ".args"

// AppSuffix is the required suffix of the single top-level bundle
// directory.
const AppSuffix = ".app"

// isReserved reports whether name (a full archive member name) falls
// under one of the reserved prefixes.
func isReserved(name string) bool {
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
