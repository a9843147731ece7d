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
	"golang.org/x/exp/slices"

	"github.com/arusson/dfa-aes/internal/aesprim"
)

// CandidatesForDiagonal is C3: given one ciphertext pair, one target
// diagonal and a delta-set, it enumerates every 32-bit key fragment
// (k0,k1,k2,k3) such that, for each i, the pair-induced inverse-S-box
// difference at the i-th byte of the diagonal equals byte i of some
// delta-set element. Grounded on k10_cand_from_diffMC in src/dfa.c: four
// nested 0..256 loops, each pruned the moment byte i disagrees, so the
// expected cost is |deltaSet| * 256 * E for a small constant E rather
// than 2^32. Returns a *CapacityError if the result would exceed
// CandMax entries — a sizing promise from the DFA math, not a policy
// knob, so overflow here always indicates malformed input.
func CandidatesForDiagonal(pair Pair, col int, deltaSet []uint32) ([]uint32, error) {
	var good, faulty [4]byte
	for i := 0; i < 4; i++ {
		good[i] = pair.CT[Positions[col][i]]
		faulty[i] = pair.FCT[Positions[col][i]]
	}

	out := make([]uint32, 0, 64)
	for _, d := range deltaSet {
		for k0 := 0; k0 < 256; k0++ {
			if aesprim.InvSBox[good[0]^byte(k0)]^aesprim.InvSBox[faulty[0]^byte(k0)] != takeByte(d, 0) {
				continue
			}
			for k1 := 0; k1 < 256; k1++ {
				if aesprim.InvSBox[good[1]^byte(k1)]^aesprim.InvSBox[faulty[1]^byte(k1)] != takeByte(d, 1) {
					continue
				}
				for k2 := 0; k2 < 256; k2++ {
					if aesprim.InvSBox[good[2]^byte(k2)]^aesprim.InvSBox[faulty[2]^byte(k2)] != takeByte(d, 2) {
						continue
					}
					for k3 := 0; k3 < 256; k3++ {
						if aesprim.InvSBox[good[3]^byte(k3)]^aesprim.InvSBox[faulty[3]^byte(k3)] != takeByte(d, 3) {
							continue
						}
						if len(out) >= CandMax {
							return nil, &CapacityError{Kind: "diagonal candidates", Limit: CandMax}
						}
						out = append(out, uint32(k0)<<24|uint32(k1)<<16|uint32(k2)<<8|uint32(k3))
					}
				}
			}
		}
	}
	// Sorted so Intersect's output order (and therefore Assemble's
	// enumeration order) is deterministic run to run, independent of
	// delta-set iteration order; golang.org/x/exp/slices since this
	// module otherwise has no sorting need of its own.
	slices.Sort(out)
	return out, nil
}
