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
	"io"

	"github.com/klauspost/compress/flate"
)

func init() {
	// archive/zip's own DEFLATE implementation is stdlib compress/flate.
	// Registering klauspost/compress/flate in its place keeps the
	// central-directory walk and streamed member reads on the same
	// stdlib zip.Reader (which already handles the stub-prefixed archive
	// format PUISNE needs), while using the faster decoder the rest of
	// the example corpus depends on for this exact concern.
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}
