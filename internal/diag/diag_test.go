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

package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/arusson/dfa-aes/internal/dfa"
)

func TestPairInfoIncludesFaultDetail(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	pair := dfa.NewPair(dfa.Pair{}.CT, dfa.Pair{}.FCT, dfa.FaultPositionAndValue(5, 0x42))
	l.PairInfo(pair)

	out := buf.String()
	if !strings.Contains(out, "Fault position: 5 (column 1)") {
		t.Fatalf("missing fault position line: %q", out)
	}
	if !strings.Contains(out, "Fault value: 0x42") {
		t.Fatalf("missing fault value line: %q", out)
	}
}

func TestCandidateSummaryReportsLog2Bound(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.CandidateSummary([4]int{2, 2, 2, 2})
	out := buf.String()
	if !strings.Contains(out, "master key candidates: 16 (< 2^5)") {
		t.Fatalf("got %q", out)
	}
}

func TestDatasetFingerprintStable(t *testing.T) {
	pairs := []dfa.Pair{dfa.NewPair(dfa.Pair{}.CT, dfa.Pair{}.FCT, dfa.UnknownFault())}
	a := DatasetFingerprint(pairs)
	b := DatasetFingerprint(pairs)
	if a != b {
		t.Fatal("fingerprint is not stable across identical input")
	}
}
