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

package dfa

import "github.com/arusson/dfa-aes/internal/aesprim"

// Diagnostics reports what Recover9 and Recover8 learned about the
// input pairs while reducing candidate lists, so a caller can log it
// (this package never logs on its own, per its package doc).
type Diagnostics struct {
	// PerDiagonal[c] is the size of the surviving candidate list for
	// diagonal c after every assigned pair's reduction.
	PerDiagonal [4]int

	// Skipped counts pairs whose ciphertext difference did not fit a
	// single diagonal (ErrIncompatiblePair) and were therefore ignored.
	Skipped int

	// RowMismatch counts pairs whose declared fault position landed in
	// a column different from the one the ciphertext difference
	// actually located; such pairs are still used, with the row
	// treated as unknown, but the discrepancy is worth surfacing.
	RowMismatch int
}

// locateFaultyColumn finds the single diagonal (as indexed by
// Positions) whose four ciphertext bytes differ between CT and FCT. A
// round-9 single-byte fault, after round 10's ShiftRows, shows up as a
// difference confined to exactly one such diagonal; any other pattern
// means the pair does not fit this attack.
func locateFaultyColumn(pair Pair) (int, bool) {
	found := -1
	for c := 0; c < 4; c++ {
		diff := false
		for _, p := range Positions[c] {
			if pair.CT[p] != pair.FCT[p] {
				diff = true
				break
			}
		}
		if diff {
			if found != -1 {
				return 0, false
			}
			found = c
		}
	}
	if found == -1 {
		return 0, false
	}
	return found, true
}

// faultRow resolves the row a pair's fault occupies within its located
// column, following the priority rules: a known position is trusted
// only when it agrees with the located column; otherwise the row is
// treated as unknown (-1) and every row is tried.
func faultRow(pair Pair, col int) (row int, mismatch bool) {
	pos, known := pair.Fault.Position()
	if !known {
		return -1, false
	}
	if pos/4 != col {
		return -1, true
	}
	return pos % 4, false
}

// faultValues resolves the set of candidate fault byte values to feed
// DeltaSet, following the priority rules of §4.4: an explicit value
// narrows to one candidate, a known bitflip narrows to the eight
// powers of two, and otherwise every nonzero byte is tried.
func faultValues(pair Pair) []int {
	if v, known := pair.Fault.Value(); known {
		return []int{v}
	}
	if pair.Fault.Bitflip() {
		return bitflipFaults()
	}
	return allFaults()
}

// Recover9 is C6: the round-9 fault key-recovery pipeline. Each pair is
// assigned to the diagonal its ciphertext difference locates, that
// diagonal's candidate list is built from the pair's delta-set and
// reduced by intersection across every pair assigned to it, and the
// four resulting lists are handed to Assemble.
//
// Grounded on find_faulty_column, r9_get_diff_mc, r9_find_candidates
// and r9_key_recovery in src/dfa9.c.
func Recover9(pairs []Pair, opts AssembleOptions) ([]aesprim.Key128, Diagnostics, error) {
	var lists candidateLists
	var diag Diagnostics

	for _, pair := range pairs {
		col, ok := locateFaultyColumn(pair)
		if !ok {
			diag.Skipped++
			continue
		}

		row, mismatch := faultRow(pair, col)
		if mismatch {
			diag.RowMismatch++
		}

		ds := DeltaSet(row, faultValues(pair))
		cand, err := CandidatesForDiagonal(pair, col, ds)
		if err != nil {
			return nil, diag, err
		}

		if lists[col] == nil {
			lists[col] = cand
		} else {
			lists[col] = Intersect(lists[col], cand)
		}
	}

	for c := range lists {
		diag.PerDiagonal[c] = len(lists[c])
	}

	keys, err := Assemble(lists, opts)
	return keys, diag, err
}
