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

// Package aesprim provides the scalar, software AES-128 building blocks
// the DFA engine is built on top of: the state transforms (SubBytes,
// ShiftRows, MixColumn and their inverses), full encryption, and both
// directions of the key schedule. The state is always a 16-byte array
// laid out column-major (byte at row r, column c lives at index 4c+r),
// matching how a ciphertext is addressed throughout the rest of this
// module. Nothing here is specific to fault analysis; this package
// would be equally at home encrypting ordinary AES-128 traffic.
package aesprim

// Block is a 16-byte AES state or plaintext/ciphertext block.
type Block = [16]byte

// Key128 is a 128-bit AES key.
type Key128 = [16]byte

// ExpandedKey is the 11 round subkeys produced by AES-128 key expansion,
// round 0 (the master key) at offset 0 through round 10 at offset 160.
type ExpandedKey = [176]byte

const rounds = 10

// MixColumn applies the AES MixColumns transform to a single 4-byte
// column, in place.
func MixColumn(col *[4]byte) {
	a0, a1, a2, a3 := col[0], col[1], col[2], col[3]
	col[0] = xtime(a0) ^ xtime(a1) ^ a1 ^ a2 ^ a3
	col[1] = a0 ^ xtime(a1) ^ xtime(a2) ^ a2 ^ a3
	col[2] = a0 ^ a1 ^ xtime(a2) ^ xtime(a3) ^ a3
	col[3] = xtime(a0) ^ a0 ^ a1 ^ a2 ^ xtime(a3)
}

// gmul multiplies two bytes in GF(2^8) modulo the AES reduction
// polynomial; used only by InvMixColumn, whose coefficients are not
// the simple {1,2,3} set MixColumn uses.
func gmul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

// InvMixColumn applies the inverse AES MixColumns transform to a single
// 4-byte column, in place.
func InvMixColumn(col *[4]byte) {
	a0, a1, a2, a3 := col[0], col[1], col[2], col[3]
	col[0] = gmul(a0, 0x0e) ^ gmul(a1, 0x0b) ^ gmul(a2, 0x0d) ^ gmul(a3, 0x09)
	col[1] = gmul(a0, 0x09) ^ gmul(a1, 0x0e) ^ gmul(a2, 0x0b) ^ gmul(a3, 0x0d)
	col[2] = gmul(a0, 0x0d) ^ gmul(a1, 0x09) ^ gmul(a2, 0x0e) ^ gmul(a3, 0x0b)
	col[3] = gmul(a0, 0x0b) ^ gmul(a1, 0x0d) ^ gmul(a2, 0x09) ^ gmul(a3, 0x0e)
}

// mixColumns applies MixColumn to each of the four columns of a state.
func mixColumns(state *Block) {
	for c := 0; c < 4; c++ {
		col := (*[4]byte)(state[4*c : 4*c+4])
		MixColumn(col)
	}
}

// InvMixColumns applies InvMixColumn to each of the four columns of a state.
func InvMixColumns(state *Block) {
	for c := 0; c < 4; c++ {
		col := (*[4]byte)(state[4*c : 4*c+4])
		InvMixColumn(col)
	}
}

func subBytes(state *Block) {
	for i := range state {
		state[i] = SBox[state[i]]
	}
}

// SubBytes applies the forward AES S-box to every byte of a state, in place.
func SubBytes(state *Block) { subBytes(state) }

// ShiftRows applies the forward AES ShiftRows permutation to a state, in place.
func ShiftRows(state *Block) { shiftRows(state) }

// MixColumns applies MixColumn to each of the four columns of a state, in place.
func MixColumns(state *Block) { mixColumns(state) }

// InvSubBytes applies the inverse AES S-box to every byte of a state, in place.
func InvSubBytes(state *Block) {
	for i := range state {
		state[i] = InvSBox[state[i]]
	}
}

// shiftRowsPerm[i] is the ciphertext index that ends up at state index i
// after ShiftRows; the inverse permutation undoes it.
var shiftRowsPerm = [16]int{0, 5, 10, 15, 4, 9, 14, 3, 8, 13, 2, 7, 12, 1, 6, 11}

func shiftRows(state *Block) {
	var tmp Block
	for i, j := range shiftRowsPerm {
		tmp[i] = state[j]
	}
	*state = tmp
}

// InvShiftRows applies the inverse AES ShiftRows permutation to a state, in place.
func InvShiftRows(state *Block) {
	var tmp Block
	for i, j := range shiftRowsPerm {
		tmp[j] = state[i]
	}
	*state = tmp
}

func addRoundKey(state *Block, subkey *Key128) {
	for i := range state {
		state[i] ^= subkey[i]
	}
}

// AddRoundKey XORs a subkey into a state in place. It is its own
// inverse, so it is exported for callers (the round-8 structural
// filter, C9) that need to walk the cipher backwards one AddRoundKey
// at a time without re-deriving a full inverse-cipher routine.
func AddRoundKey(state *Block, subkey *Key128) {
	addRoundKey(state, subkey)
}

// Encrypt performs a full 10-round AES-128 encryption of a single block
// using an already-expanded 176-byte key schedule.
func Encrypt(plaintext *Block, schedule *ExpandedKey) Block {
	var state Block = *plaintext
	addRoundKey(&state, (*Key128)(schedule[0:16]))
	for r := 1; r < rounds; r++ {
		subBytes(&state)
		shiftRows(&state)
		mixColumns(&state)
		addRoundKey(&state, (*Key128)(schedule[r*16:r*16+16]))
	}
	subBytes(&state)
	shiftRows(&state)
	addRoundKey(&state, (*Key128)(schedule[rounds*16:rounds*16+16]))
	return state
}

func subWord(w uint32) uint32 {
	b0 := byte(w)
	b1 := byte(w >> 8)
	b2 := byte(w >> 16)
	b3 := byte(w >> 24)
	return uint32(SBox[b0]) | uint32(SBox[b1])<<8 | uint32(SBox[b2])<<16 | uint32(SBox[b3])<<24
}

func rotWord(w uint32) uint32 {
	return (w >> 8) | (w << 24)
}

// ExpandFrom expands a 128-bit master key into the 11-round key schedule.
func ExpandFrom(key *Key128) ExpandedKey {
	var sched ExpandedKey
	copy(sched[0:16], key[:])
	for i := 4; i < 44; i++ {
		t := wordAt(&sched, i-1)
		if i%4 == 0 {
			t = subWord(rotWord(t)) ^ uint32(RCon[i/4-1])
		}
		setWordAt(&sched, i, wordAt(&sched, i-4)^t)
	}
	return sched
}

func wordAt(sched *ExpandedKey, i int) uint32 {
	o := i * 4
	return uint32(sched[o]) | uint32(sched[o+1])<<8 | uint32(sched[o+2])<<16 | uint32(sched[o+3])<<24
}

func setWordAt(sched *ExpandedKey, i int, w uint32) {
	o := i * 4
	sched[o] = byte(w)
	sched[o+1] = byte(w >> 8)
	sched[o+2] = byte(w >> 16)
	sched[o+3] = byte(w >> 24)
}

// InverseKeyExpansion reconstructs the full 176-byte key schedule (round 0
// at offset 0) given only the round-10 subkey. This is C4's main entry
// point: the inverse of ExpandFrom, walking the key schedule recurrence
// backwards. Grounded on reverseKeyExpansion in the original C source
// (src/dfa.c): words are regenerated four bytes at a time, 16 bytes per
// round, applying SubWord/RotWord/RCon exactly where key expansion would
// have applied them going forward.
func InverseKeyExpansion(subkey10 *Key128) ExpandedKey {
	var sched ExpandedKey
	copy(sched[160:176], subkey10[:])
	for i := 156; i >= 0; i -= 4 {
		if i%16 == 0 {
			sched[i] = sched[i+16] ^ SBox[sched[i+13]] ^ RCon[i>>4]
			sched[i+1] = sched[i+17] ^ SBox[sched[i+14]]
			sched[i+2] = sched[i+18] ^ SBox[sched[i+15]]
			sched[i+3] = sched[i+19] ^ SBox[sched[i+12]]
		} else {
			sched[i] = sched[i+16] ^ sched[i+12]
			sched[i+1] = sched[i+17] ^ sched[i+13]
			sched[i+2] = sched[i+18] ^ sched[i+14]
			sched[i+3] = sched[i+19] ^ sched[i+15]
		}
	}
	return sched
}

// K9FromK10 derives the round-9 subkey directly from the round-10 subkey,
// without reconstructing the full schedule. Grounded on k9_from_k10 in
// src/dfa.c.
func K9FromK10(subkey10 *Key128) Key128 {
	var subkey9 Key128
	for i := 12; i > 0; i -= 4 {
		subkey9[i] = subkey10[i] ^ subkey10[i-4]
		subkey9[i+1] = subkey10[i+1] ^ subkey10[i-3]
		subkey9[i+2] = subkey10[i+2] ^ subkey10[i-2]
		subkey9[i+3] = subkey10[i+3] ^ subkey10[i-1]
	}
	subkey9[0] = subkey10[0] ^ SBox[subkey9[13]] ^ RCon[9]
	subkey9[1] = subkey10[1] ^ SBox[subkey9[14]]
	subkey9[2] = subkey10[2] ^ SBox[subkey9[15]]
	subkey9[3] = subkey10[3] ^ SBox[subkey9[12]]
	return subkey9
}
