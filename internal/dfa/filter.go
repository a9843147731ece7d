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

// decryptThroughRound9MixColumns walks a ciphertext block back through
// round 10 (AddRoundKey, InvShiftRows, InvSubBytes) and round 9's
// AddRoundKey and MixColumns, landing on the state right after round
// 9's ShiftRows — still post-SubBytes9, one deterministic (key-free)
// SubBytes layer away from round 8's own output.
//
// Grounded on the inverse-round sequencing in r8_exhaustive_search
// (src/dfa8.c): AddRoundKey(K10), InvShiftRows, InvSubBytes,
// AddRoundKey(K9), InvMixColumns.
func decryptThroughRound9MixColumns(ct *aesprim.Block, subkey10, subkey9 *aesprim.Key128) aesprim.Block {
	state := *ct
	aesprim.AddRoundKey(&state, subkey10)
	aesprim.InvShiftRows(&state)
	aesprim.InvSubBytes(&state)
	aesprim.AddRoundKey(&state, subkey9)
	aesprim.InvMixColumns(&state)
	return state
}

// round8Diff reads column col8 of round 8's own output back out of a
// decrypted good/faulty state pair and undoes round 8's own MixColumns.
// Positions[col8] addresses the pre-ShiftRows9 column directly (ShiftRows
// is a pure permutation, already baked into the Positions table the way
// it is elsewhere in this package) and InvSBox undoes SubBytes9 byte by
// byte — both deterministic, key-independent operations — before the
// final InvMixColumn undoes round 8's own diffusion, recovering the raw
// pre-round-8-MixColumns difference. For a genuine single-byte fault
// that difference has at most one nonzero byte.
//
// Grounded on the diff[]/invMixColumn(diff) step of r8_exhaustive_search
// (src/dfa8.c).
func round8Diff(good, faulty *aesprim.Block, col8 int) [4]byte {
	var diff [4]byte
	for i := 0; i < 4; i++ {
		pos := Positions[col8][i]
		diff[i] = aesprim.InvSBox[good[pos]] ^ aesprim.InvSBox[faulty[pos]]
	}
	aesprim.InvMixColumn(&diff)
	return diff
}

// round8DiffMatches is the acceptance test following diff[]/
// invMixColumn(diff) in r8_exhaustive_search: diff must have at most one
// nonzero byte, and when the pair declares a fault row or value, that
// byte's position and value must agree with it.
func round8DiffMatches(diff [4]byte, row8, fault int) bool {
	switch {
	case diff[0] != 0:
		return diff[1] == 0 && diff[2] == 0 && diff[3] == 0 &&
			row8 <= 0 && (fault == -1 || fault == int(diff[0]))
	case diff[1] != 0:
		return diff[2] == 0 && diff[3] == 0 &&
			(row8 == -1 || row8 == 1) && (fault == -1 || fault == int(diff[1]))
	case diff[2] != 0:
		return diff[3] == 0 &&
			(row8 == -1 || row8 == 2) && (fault == -1 || fault == int(diff[2]))
	default:
		return (row8 == -1 || row8 == 3) && (fault == -1 || fault == int(diff[3]))
	}
}

// buildRound8Filter returns the C9 acceptance predicate for a guessed
// round-10 subkey: decrypt every pair back through round 9's
// MixColumns, and require that, for some col8 hypothesis the pair's own
// declared position allows, round8Diff reduces to a difference
// consistent with a single-byte fault at round 8 — each pair is judged
// independently, since distinct pairs may carry faults at distinct
// columns.
//
// Grounded on r8_exhaustive_search in src/dfa8.c, restated as a
// predicate so it composes with Assemble's generic Filter hook instead
// of duplicating the Cartesian-product walk.
func buildRound8Filter(pairs []Pair) func(subkey10 *aesprim.Key128) bool {
	return func(subkey10 *aesprim.Key128) bool {
		subkey9 := aesprim.K9FromK10(subkey10)

		for _, pair := range pairs {
			good := decryptThroughRound9MixColumns(&pair.CT, subkey10, &subkey9)
			faulty := decryptThroughRound9MixColumns(&pair.FCT, subkey10, &subkey9)

			matched := false
			for _, col8 := range col8Hypotheses(pair) {
				diff := round8Diff(&good, &faulty, col8)
				row8, fault := round8RowAndFault(pair, col8)
				if round8DiffMatches(diff, row8, fault) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
		return true
	}
}
