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

import "golang.org/x/exp/constraints"

// Intersect is C5: it refines list1 in place, keeping only the elements
// that also occur in list2, and returns the refined slice. Relative
// order of the surviving elements of list1 is preserved, independent of
// list2's ordering — matching intersection() in src/dfa.c, generalized
// with golang.org/x/exp/constraints the way package ints parameterizes
// its bit-twiddling helpers over constraints.Integer.
func Intersect[T constraints.Integer](list1, list2 []T) []T {
	newLen := 0
	for _, a := range list1 {
		for _, b := range list2 {
			if a == b {
				list1[newLen] = a
				newLen++
				break
			}
		}
	}
	return list1[:newLen]
}
