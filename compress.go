// Copyright 2024 The kcgi-go Authors
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

package kcgi

import "github.com/klauspost/compress/gzip"

// gzipWriter wraps klauspost/compress/gzip the way
// modules/caddyhttp/encode/gzip does in Caddy: a drop-in
// compress/gzip replacement with a faster, allocation-lighter
// implementation, used here instead of the original's direct zlib
// binding since kcgi-go has no cgo dependency to give that access.
type gzipWriter struct {
	w   *gzip.Writer
	dst Sink
}

func newGzipWriter(dst Sink) *gzipWriter {
	return &gzipWriter{w: gzip.NewWriter(gzipSinkWriter{dst}), dst: dst}
}

func (g *gzipWriter) Write(p []byte) (int, error) {
	return g.w.Write(p)
}

func (g *gzipWriter) Close() error {
	return g.w.Close()
}

// gzipSinkWriter adapts Sink's WriteChunk to io.Writer so gzip.Writer
// can flush compressed blocks straight to the wire.
type gzipSinkWriter struct {
	sink Sink
}

func (s gzipSinkWriter) Write(p []byte) (int, error) {
	if err := s.sink.WriteChunk(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
