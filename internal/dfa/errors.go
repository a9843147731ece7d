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
	"fmt"
)

// ErrNoResult is returned (never logged, never fatal) when the product
// of the four diagonal candidate-list lengths is zero, or when the
// search completes without locating a key consistent with a known
// plaintext. Callers report this through the normal "attack
// unsuccessful" channel (§7 category 4).
var ErrNoResult = errors.New("attack unsuccessful: no key candidates survived")

// ErrIncompatiblePair names the condition of a ciphertext pair whose
// difference does not lie on a single diagonal. Recover9 does not return
// it: such a pair is skipped and counted in Diagnostics.Skipped.
var ErrIncompatiblePair = errors.New("ciphertext pair incompatible with a single-diagonal fault")

// CapacityError reports a §7 category-3 capacity overflow: a
// per-diagonal candidate list or the master-key output exceeded its
// hard cap. These are fatal; the caller should surface Error() to the
// user along with the suggestion to supply more pairs or a known
// plaintext.
type CapacityError struct {
	Kind  string
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s exceeds the maximum of %d; provide more ciphertext pairs or a known plaintext", e.Kind, e.Limit)
}
