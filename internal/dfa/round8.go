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

import (
	"errors"

	"github.com/arusson/dfa-aes/internal/aesprim"
)

// col8Hypotheses returns the round-8 fault-column hypotheses worth
// trying for a pair when it is tested on its own: the single column its
// declared fault position names, or all four when the position is
// unknown.
//
// Grounded on the col8_start/col8_end bracketing in
// r8_key_recovery_single_ct (src/dfa8.c).
func col8Hypotheses(pair Pair) []int {
	if pos, known := pair.Fault.Position(); known {
		return []int{pos / 4}
	}
	return []int{0, 1, 2, 3}
}

// round8RowAndFault resolves the (row8, fault) pair that r8_get_diffMC
// and the C9 filter both key off of, scoped to one col8 hypothesis: a
// declared fault position only counts as known when it actually falls
// in column col8, matching r8_key_recovery_single_ct's row8 = fault_pos
// % 4 (valid there only because it is called with the one col8 the
// position names).
func round8RowAndFault(pair Pair, col8 int) (row8, fault int) {
	pos, val, _ := pair.Fault.Legacy()
	row8 = -1
	if pos != -1 && pos/4 == col8 {
		row8 = pos % 4
	}
	return row8, val
}

// faultDiffColumn is the tmp[row8]=fault; mixColumn(tmp) step of
// r8_find_candidates: the difference round 8's own MixColumns produces
// across its output column, given a fully known row and value. ok is
// false whenever either piece is unknown, matching the diff_col==0
// fallback in r8_get_diffMC.
func faultDiffColumn(row8, fault int) (col [4]byte, ok bool) {
	if row8 == -1 || fault == -1 {
		return col, false
	}
	col[row8] = byte(fault)
	aesprim.MixColumn(&col)
	return col, true
}

// postSubBytesDiffs enumerates every value a known byte difference diff
// can take after passing through round 9's SubBytes: the forward S-box
// output difference sbox[c1]^sbox[c2] over unordered absolute byte
// pairs (c1,c2) with c1^c2==diff and 1 <= c1 <= 254; the pair that
// contains 0 is not enumerated.
//
// Grounded on the c1/c2 enumeration in r8_get_diffMC (src/dfa8.c).
func postSubBytesDiffs(diff byte) []int {
	out := make([]int, 0, 128)
	for c1 := 1; c1 < 255; c1++ {
		c2 := int(diff) ^ c1
		if c1 > c2 {
			continue
		}
		out = append(out, int(aesprim.SBox[c1]^aesprim.SBox[c2]))
	}
	return out
}

// round8DeltaSet is C2 restated for a round-8 fault reaching ciphertext
// diagonal col9. col8 == -1 means the fault's round-8 column itself is
// unknown, in which case row9 cannot be pinned down either and every row
// is tried with every fault value — the col8==-1 branch of r8_get_diffMC.
// Otherwise row9 is the row, within round-8-output's column col8, whose
// byte round 9's ShiftRows carries into column col9 — the same row that
// round 9's own MixColumns then diffuses into the full column col9 that
// diagonal col9 exposes. A fully known round-8 fault position/value
// narrows the set of possible post-SubBytes9 differences at that row via
// postSubBytesDiffs; otherwise every nonzero byte is tried.
//
// Grounded on r8_get_diffMC in src/dfa8.c.
func round8DeltaSet(pair Pair, col8, col9 int) []uint32 {
	if col8 == -1 {
		return DeltaSet(-1, allFaults())
	}

	row9 := (col8 + 3*col9) % 4
	row8, fault := round8RowAndFault(pair, col8)
	if diffCol, ok := faultDiffColumn(row8, fault); ok {
		return DeltaSet(row9, postSubBytesDiffs(diffCol[row9]))
	}
	return DeltaSet(row9, allFaults())
}

// buildDiagonalLists computes, for a single fixed col8 hypothesis (-1
// for "unknown"), the four per-diagonal candidate lists this one pair
// contributes.
func buildDiagonalLists(pair Pair, col8 int) (candidateLists, error) {
	var lists candidateLists
	for col9 := 0; col9 < 4; col9++ {
		ds := round8DeltaSet(pair, col8, col9)
		cand, err := CandidatesForDiagonal(pair, col9, ds)
		if err != nil {
			return lists, err
		}
		lists[col9] = cand
	}
	return lists, nil
}

// Recover8 is C7: the round-8 fault key-recovery pipeline. Unlike a
// round-9 fault, a round-8 fault passes through round 9's MixColumns
// before it reaches the ciphertext, so per spec §4.5 its difference
// spreads across all four ciphertext diagonals rather than staying
// confined to one.
//
// A single pair with an undeclared fault position carries four distinct
// col8 hypotheses with no way to narrow between them ahead of time.
// Merging their candidate lists before assembly would multiply each
// diagonal's candidate count severalfold and risk overflowing the
// assembly capacity limit before the C9 filter gets a chance to narrow
// anything, so — mirroring r8_key_recovery_single_ct's per-hypothesis
// loop — that case is handled by recover8SingleUnknownColumn, which runs
// one modestly-sized assembly per hypothesis instead. Every other case
// (a known position, or more than one pair) has at most one col8 value
// per pair already, so candidates are built directly and intersected
// across pairs, same as Recover9, mirroring r8_key_recovery.
//
// Either way, a wrong fault-column hypothesis can still survive the
// candidate reduction, so every assembled subkey10 is re-checked with
// the C9 structural filter (buildRound8Filter), which decrypts back
// through round 9's MixColumns and demands the one-column structural
// signature of a genuine round-8 fault.
//
// Grounded on r8_get_diffMC, r8_find_candidates, r8_key_recovery and
// r8_key_recovery_single_ct in src/dfa8.c.
func Recover8(pairs []Pair, opts AssembleOptions) ([]aesprim.Key128, Diagnostics, error) {
	if len(pairs) == 1 {
		if _, known := pairs[0].Fault.Position(); !known {
			return recover8SingleUnknownColumn(pairs[0], opts)
		}
	}
	return recover8Known(pairs, opts)
}

// recover8Known handles every pair whose round-8 fault column is either
// known from its declared position or treated as globally unknown
// (col8 == -1, no per-column hypothesis loop) — the direct,
// no-iteration path r8_key_recovery takes for each of its pairs.
func recover8Known(pairs []Pair, opts AssembleOptions) ([]aesprim.Key128, Diagnostics, error) {
	var lists candidateLists
	var diag Diagnostics

	for _, pair := range pairs {
		col8 := -1
		if pos, known := pair.Fault.Position(); known {
			col8 = pos / 4
		}

		cand, err := buildDiagonalLists(pair, col8)
		if err != nil {
			return nil, diag, err
		}
		for col9 := range lists {
			if lists[col9] == nil {
				lists[col9] = cand[col9]
			} else {
				lists[col9] = Intersect(lists[col9], cand[col9])
			}
		}
	}

	for c := range lists {
		diag.PerDiagonal[c] = len(lists[c])
	}

	opts.Filter = buildRound8Filter(pairs)
	keys, err := Assemble(lists, opts)
	return keys, diag, err
}

// recover8SingleUnknownColumn is r8_key_recovery_single_ct: a lone pair
// whose fault column is unknown is tried under each of its four
// col8Hypotheses in turn, each as its own self-contained assembly. With
// a known plaintext the first hypothesis to produce a hit wins;
// otherwise every hypothesis is tried and their surviving keys are
// pooled and deduplicated, since any of the four could be the pair's
// true fault column.
func recover8SingleUnknownColumn(pair Pair, opts AssembleOptions) ([]aesprim.Key128, Diagnostics, error) {
	var diag Diagnostics
	opts.Filter = buildRound8Filter([]Pair{pair})

	var (
		pooled  []aesprim.Key128
		seen    = make(map[aesprim.Key128]struct{})
		lastErr error
	)

	for _, col8 := range col8Hypotheses(pair) {
		lists, err := buildDiagonalLists(pair, col8)
		if err != nil {
			return nil, diag, err
		}
		for c := range lists {
			diag.PerDiagonal[c] = len(lists[c])
		}

		keys, err := Assemble(lists, opts)
		if err != nil {
			if errors.Is(err, ErrNoResult) {
				lastErr = err
				continue
			}
			return nil, diag, err
		}

		if opts.Known.IsSome {
			return keys, diag, nil
		}
		for _, k := range keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				pooled = append(pooled, k)
			}
		}
	}

	if len(pooled) == 0 {
		if lastErr == nil {
			lastErr = ErrNoResult
		}
		return nil, diag, lastErr
	}
	return pooled, diag, nil
}
