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

package main

import (
	"os"

	"github.com/McDemigod/puisne/internal/launch"
	"github.com/McDemigod/puisne/internal/runtime"
)

func main() {
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	outcome, err := runtime.Run(os.Args, self)
	if err != nil {
		runtime.ReportFatal(err)
		os.Exit(1)
	}

	if outcome.Plan == nil {
		os.Exit(outcome.ExitCode)
	}

	if err := launch.Exec(outcome.Plan); err != nil {
		runtime.ReportFatal(err)
		os.Exit(1)
	}
}
