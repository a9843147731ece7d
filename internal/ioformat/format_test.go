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

package ioformat

import (
	"strings"
	"testing"
)

const (
	ctA  = "00112233445566778899aabbccddeeff"
	fctA = "00112233445566778899aabbccddeefe"
)

func TestParsePairBasic(t *testing.T) {
	in := ctA[:32] + "," + fctA[:32] + "\n"
	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if len(res.Pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(res.Pairs))
	}
	if res.Known.IsSome {
		t.Fatal("expected no known plaintext")
	}
}

func TestParsePairWithFaultPositionAndValue(t *testing.T) {
	in := ctA[:32] + "," + fctA[:32] + ",3,90\n"
	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	pos, known := res.Pairs[0].Fault.Position()
	if !known || pos != 3 {
		t.Fatalf("got pos=%d known=%v, want 3/true", pos, known)
	}
	val, known := res.Pairs[0].Fault.Value()
	if !known || val != 90 {
		t.Fatalf("got val=%d known=%v, want 90/true", val, known)
	}
}

func TestParsePairWithBitflip(t *testing.T) {
	in := ctA[:32] + "," + fctA[:32] + ",5,b\n"
	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if !res.Pairs[0].Fault.Bitflip() {
		t.Fatal("expected bitflip fault")
	}
	pos, known := res.Pairs[0].Fault.Position()
	if !known || pos != 5 {
		t.Fatalf("got pos=%d known=%v, want 5/true", pos, known)
	}
}

func TestParseKnownPlaintext(t *testing.T) {
	pt := "000102030405060708090a0b0c0d0e0f"
	ct := "69c4e0d86a7b0430d8cdb78070b4c55a"
	in := "pt:" + pt + "\n" + "ct:" + ct + "\n" + ctA[:32] + "," + fctA[:32] + "\n"

	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if !res.Known.IsSome {
		t.Fatal("expected known plaintext to be recognized")
	}
}

func TestParseOrphanedKnownCiphertextWarns(t *testing.T) {
	ct := "69c4e0d86a7b0430d8cdb78070b4c55a"
	in := "ct:" + ct + "\n" + ctA[:32] + "," + fctA[:32] + "\n"

	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if res.Known.IsSome {
		t.Fatal("expected known plaintext to be ignored without a matching pt: line")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning about the orphaned ciphertext")
	}
}

func TestParseMalformedHexIsFatal(t *testing.T) {
	in := "zz" + ctA[2:32] + "," + fctA[:32] + "\n"
	if _, err := Parse(strings.NewReader(in)); err == nil {
		t.Fatal("expected a parse error for malformed hex")
	}
}

func TestParseCommentsAndBlankLinesIgnored(t *testing.T) {
	in := "# a comment about this capture\n\n" + ctA[:32] + "," + fctA[:32] + "\n"
	res, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if len(res.Pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(res.Pairs))
	}
}

func TestParseCapacityWarning(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 25; i++ {
		sb.WriteString(ctA[:32])
		sb.WriteByte(',')
		sb.WriteString(fctA[:32])
		sb.WriteByte('\n')
	}
	res, err := Parse(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if len(res.Pairs) != 20 {
		t.Fatalf("got %d pairs, want the 20-pair cap", len(res.Pairs))
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a capacity warning")
	}
}
