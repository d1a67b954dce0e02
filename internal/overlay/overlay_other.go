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

//go:build !linux

package overlay

import "github.com/pkg/errors"

const (
	newUserAndMountNS = 0
	newUserNSOnly     = 0
)

// NewMounter returns a Mounter whose privileged operations all fail with
// errOverlayUnsupported. overlay.Apply is not reached on a non-Linux
// platform in practice, since launchconfig.Parse refuses ModeMount
// whenever platform.Probe.SupportsOverlayMount is false.
func NewMounter() Mounter {
	return unsupportedMounter{}
}

type unsupportedMounter struct{}

func (unsupportedMounter) Unshare(int) error                          { return errOverlayUnsupported }
func (unsupportedMounter) WriteIDMap(string, string) error            { return errOverlayUnsupported }
func (unsupportedMounter) Mount(string, string, string, string) error { return errOverlayUnsupported }
func (unsupportedMounter) Getuid() int                                { return 0 }
func (unsupportedMounter) Getgid() int                                { return 0 }
func (unsupportedMounter) Getwd() (string, error)                     { return "", errOverlayUnsupported }
func (unsupportedMounter) Chdir(string) error                         { return errOverlayUnsupported }

var errOverlayUnsupported = errors.New("PUISNE: overlay mount is not supported on this platform")
