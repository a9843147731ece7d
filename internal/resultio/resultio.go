// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package resultio writes recovered master-key candidates to a file,
// either as plain newline-separated hex (matching the original tool's
// multi-key output) or, optionally, s2-compressed for large candidate
// batches. Grounded on the output half of main() in
// _examples/original_source/src/main.c, generalized the way
// compr.Compression(name) in the teacher's compr package picks a codec
// by name instead of hardcoding one.
package resultio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/s2"

	"github.com/arusson/dfa-aes/internal/aesprim"
)

// Codec names a supported output encoding.
type Codec string

const (
	// Plain writes one lowercase-hex key per line, uncompressed.
	Plain Codec = "plain"
	// S2 wraps the same line format in an s2 (klauspost/compress/s2)
	// compressed stream, useful when a capacity-heavy search without a
	// known plaintext produces many thousands of candidates.
	S2 Codec = "s2"
)

// WriteKeys writes keys to path using codec, creating or truncating
// the file. It mirrors the original tool's behavior of writing every
// surviving candidate, one per line, when more than one key remains.
func WriteKeys(path string, keys []aesprim.Key128, codec Codec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	var w io.Writer = bufio.NewWriter(f)
	if codec == S2 {
		sw := s2.NewWriter(f)
		defer sw.Close()
		w = sw
	}

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%x\n", k); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
	}

	if bw, ok := w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("flush output file: %w", err)
		}
	}
	if sw, ok := w.(*s2.Writer); ok {
		if err := sw.Flush(); err != nil {
			return fmt.Errorf("flush output file: %w", err)
		}
	}
	return nil
}

// WriteKeysWithFallback writes to primary, and on failure retries once
// against fallback, matching the original tool's hardcoded retry onto
// /tmp/keys.txt when the requested output path cannot be written.
func WriteKeysWithFallback(primary, fallback string, keys []aesprim.Key128, codec Codec) (usedPath string, err error) {
	if err := WriteKeys(primary, keys, codec); err == nil {
		return primary, nil
	}
	if err := WriteKeys(fallback, keys, codec); err != nil {
		return "", fmt.Errorf("write output file (both %q and fallback %q failed): %w", primary, fallback, err)
	}
	return fallback, nil
}
