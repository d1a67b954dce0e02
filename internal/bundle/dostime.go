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

import (
	"archive/zip"
	"time"
)

// localModTime reconstructs a member's modification time from the
// legacy MS-DOS date/time fields, which carry no timezone information
// at all and are interpreted here as local time. Go's own
// zip.FileHeader.Modified is only equivalent to that when no NTFS/Unix
// "extended timestamp" extra field is present; when one is present,
// Modified is UTC. Since the update/freshen policies compare these
// timestamps against local filesystem ctimes, this always re-derives
// from the legacy fields and pins the result to time.Local, ignoring
// any extra timestamp field — see DESIGN.md's "Open Question resolved"
// note for bundle.
func localModTime(f *zip.File) time.Time {
	d, t := f.ModifiedDate, f.ModifiedTime

	year := int(d>>9) + 1980
	month := int(d>>5) & 0xf
	day := int(d) & 0x1f
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}

	hour := int(t>>11) & 0x1f
	minute := int(t>>5) & 0x3f
	second := (int(t) & 0x1f) * 2

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
}
