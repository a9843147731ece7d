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
	"testing"

	"github.com/arusson/dfa-aes/internal/aesprim"
)

func testKey() aesprim.Key128 {
	var key aesprim.Key128
	for i := range key {
		key[i] = byte(i*29 + 7)
	}
	return key
}

// encryptWithRound9Fault re-encrypts pt under sched, injecting val at
// state byte 4*col+row right after round 9's ShiftRows (i.e. right
// before round 9's MixColumns) and finishing rounds 9 and 10 normally.
// A fault at this point stays within column col through MixColumns and
// AddRoundKey9, so the ciphertext difference it produces after round
// 10 lands exactly on diagonal col as Positions defines it — the
// convention locateFaultyColumn and FaultSpec positions assume
// throughout this package.
func encryptWithRound9Fault(pt *aesprim.Block, sched *aesprim.ExpandedKey, col, row int, val byte) aesprim.Block {
	state := *pt
	aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[0:16]))
	for r := 1; r <= 8; r++ {
		aesprim.SubBytes(&state)
		aesprim.ShiftRows(&state)
		aesprim.MixColumns(&state)
		aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[r*16:r*16+16]))
	}

	aesprim.SubBytes(&state)
	aesprim.ShiftRows(&state)
	state[4*col+row] ^= val
	aesprim.MixColumns(&state)
	aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[9*16:9*16+16]))

	aesprim.SubBytes(&state)
	aesprim.ShiftRows(&state)
	aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[10*16:10*16+16]))

	return state
}

// encryptWithRound8Fault re-encrypts pt under sched, injecting val into
// state row row8 of column col8 right after round 7's AddRoundKey —
// i.e. right before round 8's own SubBytes/ShiftRows/MixColumns — then
// finishing rounds 8, 9 and 10 normally. Round 8's ShiftRows moves the
// byte to column (col8 - row8) mod 4, which is col8 only for row8 == 0;
// round 8's MixColumns diffuses it into that full column of round 8's
// output, and round 9's MixColumns then diffuses
// that column across all four ciphertext diagonals, which is the
// round-8 fault signature Recover8/buildRound8Filter recover from.
func encryptWithRound8Fault(pt *aesprim.Block, sched *aesprim.ExpandedKey, col8, row8 int, val byte) aesprim.Block {
	state := *pt
	aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[0:16]))
	for r := 1; r <= 7; r++ {
		aesprim.SubBytes(&state)
		aesprim.ShiftRows(&state)
		aesprim.MixColumns(&state)
		aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[r*16:r*16+16]))
	}

	state[4*col8+row8] ^= val

	for r := 8; r <= 9; r++ {
		aesprim.SubBytes(&state)
		aesprim.ShiftRows(&state)
		aesprim.MixColumns(&state)
		aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[r*16:r*16+16]))
	}

	aesprim.SubBytes(&state)
	aesprim.ShiftRows(&state)
	aesprim.AddRoundKey(&state, (*aesprim.Key128)(sched[10*16:10*16+16]))

	return state
}

// TestRecover8KnownVector is P9/P10: given round-8 fault pairs (one per
// diagonal, row 0) on a known key, Recover8 must return that key among
// its surviving, filter-checked candidates.
func TestRecover8KnownVector(t *testing.T) {
	key := testKey()
	sched := aesprim.ExpandFrom(&key)

	var pt aesprim.Block
	for i := range pt {
		pt[i] = byte(17 + i*7)
	}
	ct := aesprim.Encrypt(&pt, &sched)

	pairs := make([]Pair, 0, 4)
	for col := 0; col < 4; col++ {
		fct := encryptWithRound8Fault(&pt, &sched, col, 0, 0x2f)
		pairs = append(pairs, NewPair(ct, fct, FaultAtPosition(4*col)))
	}

	keys, diag, err := Recover8(pairs, AssembleOptions{
		Known:   KnownPlaintext{PT: pt, CT: ct, IsSome: true},
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("Recover8 failed: %s (diag=%+v)", err, diag)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("expected unique key %x, got %v", key, keys)
	}
}

// TestRecover8SingleUnknownPosition is P9/P10 with a single pair and an
// undeclared fault position: Recover8 must still land on the true key by
// iterating every col8Hypotheses guess, not just the one the pair would
// have named if known.
func TestRecover8SingleUnknownPosition(t *testing.T) {
	key := testKey()
	sched := aesprim.ExpandFrom(&key)

	var pt aesprim.Block
	for i := range pt {
		pt[i] = byte(3 + i*5)
	}
	ct := aesprim.Encrypt(&pt, &sched)
	fct := encryptWithRound8Fault(&pt, &sched, 2, 1, 0x91)

	pairs := []Pair{NewPair(ct, fct, UnknownFault())}

	keys, diag, err := Recover8(pairs, AssembleOptions{
		Known:   KnownPlaintext{PT: pt, CT: ct, IsSome: true},
		Workers: 2,
	})
	if err != nil {
		t.Fatalf("Recover8 failed: %s (diag=%+v)", err, diag)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("expected unique key %x, got %v", key, keys)
	}
}

// TestRecover9KnownVector is P5/P6: given several round-9 fault pairs on
// a known key, Recover9 must return that key among its candidates (or,
// with a known plaintext, return it uniquely).
func TestRecover9KnownVector(t *testing.T) {
	key := testKey()
	sched := aesprim.ExpandFrom(&key)

	var pt aesprim.Block
	for i := range pt {
		pt[i] = byte(200 - i*3)
	}
	ct := aesprim.Encrypt(&pt, &sched)

	pairs := make([]Pair, 0, 4)
	for col := 0; col < 4; col++ {
		fct := encryptWithRound9Fault(&pt, &sched, col, 1, 0x5a)
		pairs = append(pairs, NewPair(ct, fct, FaultPositionAndValue(4*col+1, 0x5a)))
	}

	keys, diag, err := Recover9(pairs, AssembleOptions{Workers: 2})
	if err != nil {
		t.Fatalf("Recover9 failed: %s (diag=%+v)", err, diag)
	}

	found := false
	for _, k := range keys {
		if k == key {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("original key not among %d recovered candidates", len(keys))
	}
}

// TestRecover9KnownPlaintextUnique is P7: supplying a known plaintext
// narrows the result to exactly the original key.
func TestRecover9KnownPlaintextUnique(t *testing.T) {
	key := testKey()
	sched := aesprim.ExpandFrom(&key)

	var pt aesprim.Block
	for i := range pt {
		pt[i] = byte(i * 11)
	}
	ct := aesprim.Encrypt(&pt, &sched)

	pairs := make([]Pair, 0, 4)
	for col := 0; col < 4; col++ {
		fct := encryptWithRound9Fault(&pt, &sched, col, 2, 0x33)
		pairs = append(pairs, NewPair(ct, fct, FaultPositionAndValue(4*col+2, 0x33)))
	}

	keys, _, err := Recover9(pairs, AssembleOptions{
		Known:   KnownPlaintext{PT: pt, CT: ct, IsSome: true},
		Workers: 4,
	})
	if err != nil {
		t.Fatalf("Recover9 failed: %s", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("expected unique key %x, got %v", key, keys)
	}
}

// TestLocateFaultyColumn checks that a single-diagonal ciphertext
// difference is correctly attributed to its column.
func TestLocateFaultyColumn(t *testing.T) {
	key := testKey()
	sched := aesprim.ExpandFrom(&key)
	var pt aesprim.Block
	ct := aesprim.Encrypt(&pt, &sched)

	for col := 0; col < 4; col++ {
		fct := encryptWithRound9Fault(&pt, &sched, col, 1, 0x11)
		got, ok := locateFaultyColumn(NewPair(ct, fct, UnknownFault()))
		if !ok {
			t.Fatalf("column %d: expected a located diagonal", col)
		}
		if got != col {
			t.Fatalf("column %d: located %d instead", col, got)
		}
	}
}

// TestIntersectPreservesOrder is P4.
func TestIntersectPreservesOrder(t *testing.T) {
	a := []uint32{5, 1, 3, 2, 4}
	b := []uint32{2, 3, 9}
	got := Intersect(a, b)
	want := []uint32{3, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

// TestDeltaSetSize is P3: a single known row produces len(faults)
// entries; an unknown row produces 4x that.
func TestDeltaSetSize(t *testing.T) {
	faults := []int{1, 2, 3}
	if got := len(DeltaSet(1, faults)); got != len(faults) {
		t.Fatalf("known row: got %d want %d", got, len(faults))
	}
	if got := len(DeltaSet(-1, faults)); got != 4*len(faults) {
		t.Fatalf("unknown row: got %d want %d", got, 4*len(faults))
	}
}

// TestCandidatesForDiagonalContainsTruth checks C3's completeness at the
// single-diagonal level: the true 32-bit
// round-10 fragment for a diagonal must appear among the candidates
// built from that diagonal's own pair.
func TestCandidatesForDiagonalContainsTruth(t *testing.T) {
	key := testKey()
	sched := aesprim.ExpandFrom(&key)
	var subkey10 aesprim.Key128
	copy(subkey10[:], sched[160:176])

	var pt aesprim.Block
	ct := aesprim.Encrypt(&pt, &sched)

	const col = 2
	fct := encryptWithRound9Fault(&pt, &sched, col, 3, 0x7c)
	pair := NewPair(ct, fct, FaultPositionAndValue(4*col+3, 0x7c))

	ds := DeltaSet(3, []int{0x7c})
	cand, err := CandidatesForDiagonal(pair, col, ds)
	if err != nil {
		t.Fatalf("CandidatesForDiagonal: %s", err)
	}

	var want uint32
	want = uint32(subkey10[Positions[col][0]])<<24 |
		uint32(subkey10[Positions[col][1]])<<16 |
		uint32(subkey10[Positions[col][2]])<<8 |
		uint32(subkey10[Positions[col][3]])

	found := false
	for _, c := range cand {
		if c == want {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("true fragment %08x not found among %d candidates", want, len(cand))
	}
}

// TestAssembleNoResult is P11: empty candidate lists yield ErrNoResult.
func TestAssembleNoResult(t *testing.T) {
	var lists candidateLists
	lists[0] = []uint32{1}
	lists[1] = []uint32{2}
	lists[2] = nil
	lists[3] = []uint32{3}

	_, err := Assemble(lists, AssembleOptions{})
	if err != ErrNoResult {
		t.Fatalf("got %v want ErrNoResult", err)
	}
}

// TestAssembleCapacity is a §7 category-3 capacity check.
func TestAssembleCapacity(t *testing.T) {
	big := make([]uint32, 64)
	for i := range big {
		big[i] = uint32(i)
	}
	lists := candidateLists{big, big, big, big}
	_, err := Assemble(lists, AssembleOptions{})
	if err == nil {
		t.Fatal("expected a capacity error")
	}
	if _, ok := err.(*CapacityError); !ok {
		t.Fatalf("got %T want *CapacityError", err)
	}
}
