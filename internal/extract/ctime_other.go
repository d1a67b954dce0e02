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

//go:build !linux && !darwin

package extract

import (
	"os"
	"time"
)

// statusChangeTime falls back to mtime on platforms (Windows) whose
// os.FileInfo.Sys() doesn't expose a POSIX ctime.
func statusChangeTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
