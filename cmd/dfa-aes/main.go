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

// Command dfa-aes recovers an AES-128 master key from correct/faulty
// ciphertext pairs produced by a single-byte fault injected during
// round 8 or round 9 of encryption. Grounded on main() in
// _examples/original_source/src/main.c and restated in the flag/exit
// idiom of cmd/sneller in the teacher repo.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/arusson/dfa-aes/internal/aesprim"
	"github.com/arusson/dfa-aes/internal/config"
	"github.com/arusson/dfa-aes/internal/dfa"
	"github.com/arusson/dfa-aes/internal/diag"
	"github.com/arusson/dfa-aes/internal/ioformat"
	"github.com/arusson/dfa-aes/internal/resultio"
)

func exit(err error) {
	fmt.Fprintln(os.Stderr, "[!]", err)
	os.Exit(1)
}

func exitf(format string, args ...any) {
	exit(fmt.Errorf(format, args...))
}

func main() {
	var (
		round8  = flag.Bool("8", false, "recover the key from a round-8 fault")
		round9  = flag.Bool("9", false, "recover the key from a round-9 fault")
		input   = flag.String("i", "", "input file of ciphertext pairs (required)")
		output  = flag.String("o", "", "output file for recovered keys (default: keys.txt, or the config file's defaultOutput)")
		cfgPath = flag.String("config", "", "optional YAML defaults file")
		workers = flag.Int("workers", 0, "worker goroutines for the final assembly search (0 = from config/CPU count)")
		compress = flag.Bool("compress", false, "s2-compress multi-key output")
	)
	flag.Parse()

	if *round8 == *round9 {
		exitf("exactly one of -8 or -9 must be given")
	}
	if *input == "" {
		exitf("-i is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		exit(err)
	}
	if *output == "" {
		*output = cfg.DefaultOutput
	}
	if *workers == 0 {
		*workers = cfg.Workers
	}
	if *compress {
		cfg.Compress = true
	}

	logger := diag.New(os.Stderr)
	logger.CPUFeatures()

	res, err := ioformat.ParseFile(*input)
	if err != nil {
		exit(err)
	}
	for _, w := range res.Warnings {
		logger.Warn("%s", string(w))
	}
	if res.Known.IsSome {
		logger.Info("known plaintext/ciphertext provided")
	} else {
		logger.Info("no known plaintext/ciphertext provided")
	}
	for _, p := range res.Pairs {
		logger.PairInfo(p)
	}
	logger.Info("dataset fingerprint: %x", diag.DatasetFingerprint(res.Pairs))

	opts := dfa.AssembleOptions{Known: res.Known, Workers: *workers}

	var (
		keys []aesprim.Key128
		d    dfa.Diagnostics
	)
	if *round9 {
		keys, d, err = dfa.Recover9(res.Pairs, opts)
	} else {
		keys, d, err = dfa.Recover8(res.Pairs, opts)
	}

	logger.CandidateSummary(d.PerDiagonal)
	if d.Skipped > 0 {
		logger.Warn("%d pair(s) skipped: ciphertext difference did not fit a single diagonal", d.Skipped)
	}
	if d.RowMismatch > 0 {
		logger.Warn("%d pair(s) had a declared fault position outside the located diagonal; treated as unknown row", d.RowMismatch)
	}

	if err != nil {
		var capErr *dfa.CapacityError
		if errors.As(err, &capErr) {
			exit(err)
		}
		if errors.Is(err, dfa.ErrNoResult) {
			logger.Warn("attack unsuccessful: no key candidates survived")
			return
		}
		exit(err)
	}

	if len(keys) == 1 {
		diag.New(os.Stdout).PrintKey(keys[0])
		return
	}

	logger.Info("%d master key candidates remain; writing to %s", len(keys), *output)
	codec := resultio.Plain
	if cfg.Compress {
		codec = resultio.S2
	}
	used, err := resultio.WriteKeysWithFallback(*output, cfg.FallbackOutput, keys, codec)
	if err != nil {
		exit(err)
	}
	if used != *output {
		logger.Warn("could not write %s; wrote results to %s instead", *output, used)
	}
}
