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
	"sync"

	"github.com/arusson/dfa-aes/internal/aesprim"
)

// candidateLists holds the four per-diagonal 32-bit key-fragment lists
// produced by round9.go or round8.go, ready for Cartesian assembly.
type candidateLists [4][]uint32

// AssembleOptions controls the C8 final-assembly search.
type AssembleOptions struct {
	// Known, when IsSome, lets assembly stop at the first subkey10
	// whose forward schedule encrypts Known.PT to Known.CT, returning a
	// single master key instead of every surviving candidate.
	Known KnownPlaintext

	// Workers bounds the number of goroutines fanned across the
	// outermost (diagonal 0) loop. Zero means GOMAXPROCS-sized default
	// left to the caller (cmd/dfa-aes chooses it); Assemble treats zero
	// as 1.
	Workers int

	// Filter, when non-nil, is consulted for every assembled subkey10
	// before it is accepted; round8.go supplies the C9 structural
	// filter here. A nil Filter accepts everything.
	Filter func(subkey10 *aesprim.Key128) bool
}

// putDiagonal writes a 32-bit key fragment into the four bytes of
// subkey10 that belong to column col. This is the exact inverse of the
// packing CandidatesForDiagonal performs (uint32(k0)<<24|...|k3): byte
// i of the fragment goes to Positions[col][i]. Earlier C sources
// reconstruct this with a literal TAKEBYTE(word, i) index that assumes
// the opposite byte order; this implementation keeps packing and
// unpacking self-consistent instead of replicating that mismatch.
func putDiagonal(subkey10 *aesprim.Key128, col int, frag uint32) {
	subkey10[Positions[col][0]] = byte(frag >> 24)
	subkey10[Positions[col][1]] = byte(frag >> 16)
	subkey10[Positions[col][2]] = byte(frag >> 8)
	subkey10[Positions[col][3]] = byte(frag)
}

// Assemble is C8: it forms the Cartesian product of four per-diagonal
// candidate lists, reconstructs a full round-10 subkey for every
// combination, expands it backwards into a master key (C4) and, unless
// a known plaintext narrows the search to a single hit, collects every
// master key consistent with opts.Filter.
//
// Grounded on exhaustive_search / r9_key_recovery in src/dfa.c and
// src/dfa9.c, restructured around the teacher's worker-pool pattern
// (sorting/thread_pool.go) instead of the original's single-threaded
// quadruple loop: the outermost loop (diagonal 0) is fanned across
// outerPool workers, each owning a private subkey10 buffer, while a
// mutex guards the shared output slice and an atomic latch lets a
// known-plaintext hit stop the pool from handing out further outer
// indices; workers already inside an outer iteration finish it first.
// The KeysMax cap on the size of the Cartesian product applies only
// when no known plaintext is given.
func Assemble(lists candidateLists, opts AssembleOptions) ([]aesprim.Key128, error) {
	total := 1
	for _, l := range lists {
		total *= len(l)
		if len(l) == 0 {
			return nil, ErrNoResult
		}
	}
	if !opts.Known.IsSome && total > KeysMax {
		return nil, &CapacityError{Kind: "master-key candidates", Limit: KeysMax}
	}

	var (
		mu     sync.Mutex
		out    []aesprim.Key128
		hit    aesprim.Key128
		hasHit bool
	)

	runOuter(len(lists[0]), opts.Workers, func(i0 int) bool {
		var subkey10 aesprim.Key128
		putDiagonal(&subkey10, 0, lists[0][i0])

		for _, f1 := range lists[1] {
			putDiagonal(&subkey10, 1, f1)
			for _, f2 := range lists[2] {
				putDiagonal(&subkey10, 2, f2)
				for _, f3 := range lists[3] {
					putDiagonal(&subkey10, 3, f3)

					if opts.Filter != nil && !opts.Filter(&subkey10) {
						continue
					}

					schedule := aesprim.InverseKeyExpansion(&subkey10)
					var master aesprim.Key128
					copy(master[:], schedule[:16])

					if opts.Known.IsSome {
						ct := aesprim.Encrypt(&opts.Known.PT, &schedule)
						if ct != opts.Known.CT {
							continue
						}
						mu.Lock()
						hit, hasHit = master, true
						mu.Unlock()
						return false
					}

					mu.Lock()
					if len(out) >= KeysMax {
						mu.Unlock()
						return false
					}
					out = append(out, master)
					mu.Unlock()
				}
			}
		}
		return true
	})

	if opts.Known.IsSome {
		if !hasHit {
			return nil, ErrNoResult
		}
		return []aesprim.Key128{hit}, nil
	}
	if len(out) == 0 {
		return nil, ErrNoResult
	}
	return out, nil
}
