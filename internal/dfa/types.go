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

// Package dfa implements the fault-difference analysis and key-candidate
// reduction pipeline for recovering an AES-128 master key from one or
// more correct/faulty ciphertext pairs produced by a single-byte fault
// injected during AES round 8 or round 9. The package is pure
// computation: it never touches a filesystem and never logs (callers in
// package diag and cmd/dfa-aes own diagnostics and fatal exit paths).
package dfa

import "github.com/arusson/dfa-aes/internal/aesprim"

// Sizing limits from the DFA math, not policy knobs: exceeding CandMax,
// or KeysMax without a known plaintext, is a fatal condition (see
// errors.go); pairs beyond PairsMax are discarded by the input parser
// with a warning.
const (
	DiffMCMax = 1020   // 255 faults * 4 rows
	CandMax   = 2000   // per-diagonal candidate cap
	PairsMax  = 20     // ciphertext pairs accepted from one input file
	KeysMax   = 65536  // master-key candidates without a known plaintext
)

// Positions maps each diagonal to the four ciphertext byte positions
// (row 0..3) that a column-aligned fault before the final MixColumns
// makes visible, after ShiftRows in the last round.
var Positions = [4][4]int{
	{0, 13, 10, 7},
	{4, 1, 14, 11},
	{8, 5, 2, 15},
	{12, 9, 6, 3},
}

// Pair is one correct/faulty ciphertext observation.
type Pair struct {
	CT    aesprim.Block
	FCT   aesprim.Block
	Fault FaultSpec
}

// KnownPlaintext is an optional plaintext/ciphertext pair used to
// validate or uniquely select a recovered master key.
type KnownPlaintext struct {
	PT     aesprim.Block
	CT     aesprim.Block
	IsSome bool
}

// FaultSpec is a tagged union over what is known about a single-byte
// fault: its position within the 16-byte state (0..15) and its value
// (1..255), either of which may be unknown, plus the special case of a
// fault of unknown position but known Hamming weight 1 ("bitflip").
// This replaces the historical -1-sentinel encoding per the design note
// in spec.md §9 while preserving its exact behavioral contract; Legacy
// recovers the flat (pos, val, bitflip) shape, which round8RowAndFault
// uses.
type FaultSpec struct {
	pos     int // -1 if unknown
	val     int // -1 if unknown
	bitflip bool
}

// UnknownFault describes a fault of completely unknown position and value.
func UnknownFault() FaultSpec { return FaultSpec{pos: -1, val: -1} }

// FaultAtPosition describes a fault at a known position but unknown value.
func FaultAtPosition(pos int) FaultSpec { return FaultSpec{pos: pos, val: -1} }

// FaultWithValue describes a fault of unknown position but known value.
func FaultWithValue(val int) FaultSpec { return FaultSpec{pos: -1, val: val} }

// FaultBitflip describes a fault of unknown position whose value has
// Hamming weight 1.
func FaultBitflip() FaultSpec { return FaultSpec{pos: -1, val: -1, bitflip: true} }

// FaultPositionAndValue describes a fully known fault.
func FaultPositionAndValue(pos, val int) FaultSpec { return FaultSpec{pos: pos, val: val} }

// FaultPositionAndBitflip describes a fault at a known position with an
// unknown single-bit value.
func FaultPositionAndBitflip(pos int) FaultSpec { return FaultSpec{pos: pos, val: -1, bitflip: true} }

// Legacy returns the flat (pos, val, bitflip) encoding: pos/val are -1
// when unknown.
func (f FaultSpec) Legacy() (pos, val int, bitflip bool) { return f.pos, f.val, f.bitflip }

// Position reports the known fault position, if any.
func (f FaultSpec) Position() (pos int, known bool) { return f.pos, f.pos != -1 }

// Value reports the known fault value, if any.
func (f FaultSpec) Value() (val int, known bool) { return f.val, f.val != -1 }

// Bitflip reports whether the fault is known to have Hamming weight 1.
func (f FaultSpec) Bitflip() bool { return f.bitflip }

// NewPair builds a Pair from raw ciphertext bytes and a fault specification.
func NewPair(ct, fct aesprim.Block, fault FaultSpec) Pair {
	return Pair{CT: ct, FCT: fct, Fault: fault}
}
