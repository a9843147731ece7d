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

// Package diag owns every stderr-facing diagnostic the CLI prints: the
// "[*]"/"[!]" tagged lines the original C tool wrote with fprintf, plus
// a run identifier and dataset fingerprint the original never had.
// Nothing in internal/dfa or internal/ioformat logs on its own; those
// packages return data, and this package decides how to present it.
package diag

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/cpu"

	"github.com/arusson/dfa-aes/internal/aesprim"
	"github.com/arusson/dfa-aes/internal/dfa"
)

// Logger writes the "[*]"/"[!]" tagged diagnostic lines the original
// tool printed directly with fprintf(stderr, ...), now routed through
// an io.Writer so tests and the CLI can both use it.
type Logger struct {
	w io.Writer
	// RunID identifies one invocation. It is stored on the Logger
	// only; none of the Logger's methods print it.
	RunID uuid.UUID
}

// New creates a Logger writing to w and stamps it with a fresh run ID.
func New(w io.Writer) *Logger {
	return &Logger{w: w, RunID: uuid.New()}
}

// Info prints an informational "[*]" line.
func (l *Logger) Info(format string, args ...any) {
	fmt.Fprintf(l.w, "[*] "+format+"\n", args...)
}

// Warn prints a "[!]" line for a non-fatal problem.
func (l *Logger) Warn(format string, args ...any) {
	fmt.Fprintf(l.w, "[!] "+format+"\n", args...)
}

// CPUFeatures reports, purely informationally, whether hardware AES
// instructions are available; the scalar engine in internal/aesprim is
// used either way, so this never changes behavior.
func (l *Logger) CPUFeatures() {
	switch {
	case cpu.X86.HasAES:
		l.Info("AES-NI detected (informational only; using portable implementation)")
	default:
		l.Info("no AES-NI detected; using portable implementation")
	}
}

// PairInfo prints one pair's ciphertexts and what is known about its
// fault, matching print_pair_info in src/utils.c, plus a short SipHash
// fingerprint (dchest/siphash) identifying the pair across log lines
// and re-runs without printing the full 32 ciphertext bytes twice.
func (l *Logger) PairInfo(pair dfa.Pair) {
	fmt.Fprintf(l.w, "    - Pair: %x %x\n", pair.CT, pair.FCT)
	fmt.Fprintf(l.w, "    - Fingerprint: %016x\n", pairFingerprint(pair))

	if pos, known := pair.Fault.Position(); known {
		fmt.Fprintf(l.w, "    - Fault position: %d (column %d)\n", pos, pos/4)
	} else {
		fmt.Fprintln(l.w, "    - Fault position: unknown")
	}

	switch {
	case pair.Fault.Bitflip():
		fmt.Fprintln(l.w, "    - Fault value: bitflip")
	default:
		if val, known := pair.Fault.Value(); known {
			fmt.Fprintf(l.w, "    - Fault value: 0x%02x\n", val)
		} else {
			fmt.Fprintln(l.w, "    - Fault value: unknown")
		}
	}
}

// pairFingerprint hashes one ciphertext pair with a fixed SipHash key
// so repeated runs over the same capture produce a stable identifier.
func pairFingerprint(pair dfa.Pair) uint64 {
	var buf [32]byte
	copy(buf[:16], pair.CT[:])
	copy(buf[16:], pair.FCT[:])
	return siphash.Hash(0, 0, buf[:])
}

// DatasetFingerprint hashes an entire batch of pairs with BLAKE2b
// (golang.org/x/crypto/blake2b), giving a single identifier for the
// whole input file. Pairs are hashed in the order given, so the same
// pairs in a different order give a different fingerprint.
func DatasetFingerprint(pairs []dfa.Pair) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range pairs {
		h.Write(p.CT[:])
		h.Write(p.FCT[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

var candidateColumns = [4]string{
	"0, 13, 10, 7",
	"4, 1, 14, 11",
	"8, 5, 2, 15",
	"12, 9, 6, 3",
}

// CandidateLine prints one diagonal's candidate count, matching
// print_number_candidates_line in src/utils.c.
func (l *Logger) CandidateLine(col int, n int) {
	l.Info("%d candidate(s) for positions %s", n, candidateColumns[col])
}

// CandidateSummary prints the four-diagonal ASCII diagram and the
// total candidate count, matching print_number_candidates.
func (l *Logger) CandidateSummary(perDiagonal [4]int) {
	total := 1
	for _, n := range perDiagonal {
		total *= n
	}
	fmt.Fprint(l.w,
		"[*] Number of candidates for each position:\n"+
			"  |x| | | |    | |x| | |    | | |x| |    | | | |x|\n"+
			"  | | | |x|    |x| | | |    | |x| | |    | | |x| |\n"+
			"  | | |x| |    | | | |x|    |x| | | |    | |x| | |\n"+
			"  | |x| | |    | | |x| |    | | | |x|    |x| | | |\n",
	)
	fmt.Fprintf(l.w, "    %4d         %4d         %4d         %4d\n",
		perDiagonal[0], perDiagonal[1], perDiagonal[2], perDiagonal[3])

	width := 0
	if total > 0 {
		width = bits.Len(uint(total))
	}
	fmt.Fprintf(l.w, "[*] Number of master key candidates: %d (< 2^%d)\n", total, width)
}

// PrintKey writes one recovered master key as lowercase hex, with no
// trailing diagnostic tag, since it may be the program's sole stdout
// output in the single-key case.
func (l *Logger) PrintKey(key aesprim.Key128) {
	fmt.Fprintf(l.w, "%x\n", key)
}
