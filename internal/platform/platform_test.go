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

package platform

import "testing"

func TestCompareKernelRelease(t *testing.T) {
	cases := []struct {
		release string
		want    bool
	}{
		{"5.12.0", true},
		{"5.12.1", true},
		{"5.13.0", true},
		{"6.0.0", true},
		{"5.11.9", false},
		{"4.19.0", false},
		{"5.12.0-105-generic", true},
		{"5.11.0-custom", false},
		{"garbage", false},
		{"", false},
		{"5", false},
		{"5.12", false},
	}

	for _, c := range cases {
		if got := compareKernelRelease(c.release); got != c.want {
			t.Errorf("compareKernelRelease(%q) = %v, want %v", c.release, got, c.want)
		}
	}
}
