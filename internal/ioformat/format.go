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

// Package ioformat parses the line-oriented ciphertext-pair input file
// the CLI reads, and reports the warnings and fatal errors that parsing
// surfaces along the way. Grounded on readfile in
// _examples/original_source/src/utils.c.
package ioformat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/arusson/dfa-aes/internal/aesprim"
	"github.com/arusson/dfa-aes/internal/dfa"
)

// maxLineLen mirrors the original parser's fixed 128-byte line buffer.
const maxLineLen = 128

// ParseError reports a malformed line; the caller treats it as fatal,
// same as the original parser's exit(EXIT_FAILURE) on bad hex.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Warning is a non-fatal observation worth surfacing to the user
// (capacity overflow, an orphaned known-plaintext line, and so on).
// Parsed separately from fatal errors since internal/dfa's callers,
// not this package, own how diagnostics are displayed.
type Warning string

// Result is everything ParseFile extracts from an input file.
type Result struct {
	Pairs    []dfa.Pair
	Known    dfa.KnownPlaintext
	Warnings []Warning
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the pair-input format: blank lines and lines starting
// with '#' are ignored, a "pt:<hex>" / "ct:<hex>" pair of lines
// supplies an optional known plaintext, and any other non-comment line
// is "<ct-hex>,<fct-hex>[,<fault-pos>[,<fault-value-or-b>]]" describing
// one correct/faulty ciphertext pair. Order does not matter. Parsing
// stops accepting new pairs once dfa.PairsMax is reached, same as the
// original C parser, and records a Warning rather than treating it as
// an error.
func Parse(r io.Reader) (Result, error) {
	var (
		res        Result
		hasPT, hasCT bool
		known      dfa.KnownPlaintext
		lineNum    int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLineLen), maxLineLen)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if len(line) < 35 || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "pt:") && !hasPT:
			pt, err := decodeHex(line[3:], 16)
			if err != nil {
				return Result{}, &ParseError{Line: lineNum, Msg: "malformed input for known plaintext"}
			}
			copy(known.PT[:], pt)
			hasPT = true

		case strings.HasPrefix(line, "ct:") && !hasCT:
			ct, err := decodeHex(line[3:], 16)
			if err != nil {
				return Result{}, &ParseError{Line: lineNum, Msg: "malformed input for ciphertext of known plaintext"}
			}
			copy(known.CT[:], ct)
			hasCT = true

		case len(res.Pairs) < dfa.PairsMax:
			pair, err := parsePairLine(line, lineNum)
			if err != nil {
				return Result{}, err
			}
			res.Pairs = append(res.Pairs, pair)
			if len(res.Pairs) == dfa.PairsMax {
				res.Warnings = append(res.Warnings, Warning(
					fmt.Sprintf("maximum ciphertext pairs reached (%d), others discarded", dfa.PairsMax),
				))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("read input file: %w", err)
	}

	switch {
	case hasPT && !hasCT:
		res.Warnings = append(res.Warnings, "known plaintext ignored (corresponding ciphertext is absent)")
	case !hasPT && hasCT:
		res.Warnings = append(res.Warnings, "ciphertext ignored (corresponding known plaintext is absent)")
	case hasPT && hasCT:
		known.IsSome = true
		res.Known = known
	}

	return res, nil
}

// parsePairLine parses one "<ct>,<fct>[,<pos>[,<val-or-b>]]" line into
// a dfa.Pair, resolving the trailing fault hint (if any) into a
// dfa.FaultSpec.
func parsePairLine(line string, lineNum int) (dfa.Pair, error) {
	fields := strings.Split(line, ",")

	ctBytes, err := decodeHex(fields[0], 16)
	if err != nil {
		return dfa.Pair{}, &ParseError{Line: lineNum, Msg: "malformed input for first ciphertext"}
	}
	var ct aesprim.Block
	copy(ct[:], ctBytes)

	if len(fields) < 2 {
		return dfa.Pair{}, &ParseError{Line: lineNum, Msg: "malformed input for second ciphertext"}
	}
	fctBytes, err := decodeHex(fields[1], 16)
	if err != nil {
		return dfa.Pair{}, &ParseError{Line: lineNum, Msg: "malformed input for second ciphertext"}
	}
	var fct aesprim.Block
	copy(fct[:], fctBytes)

	fault := dfa.UnknownFault()
	if len(fields) >= 3 && strings.TrimSpace(fields[2]) != "" {
		pos, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || pos < -1 || pos > 15 {
			return dfa.Pair{}, &ParseError{Line: lineNum, Msg: "malformed input for fault position"}
		}

		if len(fields) >= 4 {
			tok := strings.TrimSpace(strings.Fields(fields[3])[0])
			if tok == "b" {
				fault = dfa.FaultPositionAndBitflip(pos)
			} else {
				val, err := strconv.Atoi(tok)
				if err != nil || val < 1 || val > 255 {
					return dfa.Pair{}, &ParseError{Line: lineNum, Msg: "malformed input for fault value"}
				}
				fault = dfa.FaultPositionAndValue(pos, val)
			}
		} else {
			fault = dfa.FaultAtPosition(pos)
		}
	}

	return dfa.NewPair(ct, fct, fault), nil
}

// decodeHex mirrors hex_to_bytes: every hex character in s contributes
// a nibble, non-hex characters are skipped, and the result must fill
// exactly n bytes.
func decodeHex(s string, n int) ([]byte, error) {
	out := make([]byte, n)
	j := 0
	hi := true
	for i := 0; i < len(s) && j < n; i++ {
		v, ok := nibble(s[i])
		if !ok {
			continue
		}
		if hi {
			out[j] = v << 4
			hi = false
		} else {
			out[j] |= v
			j++
			hi = true
		}
	}
	if j != n || !hi {
		return nil, fmt.Errorf("expected %d bytes of hex, got %d", n, j)
	}
	return out, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
