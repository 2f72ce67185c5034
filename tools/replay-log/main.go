// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2020 the sealutil authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// replay-log replays a TCG event log in to a software PCR bank and prints
// the resulting register values, together with the authorization policy
// digest that a key sealed against the selected registers would carry. This
// is the offline half of sealing: the printed digest is what a module whose
// live PCR state matches the log would reproduce.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tpm2-suite/sealutil"
)

var logFile string
var selection string

func init() {
	flag.StringVar(&logFile, "log-file", "/sys/kernel/security/tpm0/binary_bios_measurements", "")
	flag.StringVar(&selection, "pcrs", "0,1,2,3,4,5,6,7", "")
}

func parseSelection(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func run() int {
	pcrs, err := parseSelection(selection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -pcrs: %v\n", err)
		return 1
	}

	f, err := os.Open(logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open event log: %v\n", err)
		return 1
	}
	defer f.Close()

	log, err := sealutil.ReadEventLog(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse event log: %v\n", err)
		return 1
	}

	bank, err := sealutil.NewPCRBank(sealutil.DefaultHashAlgorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create PCR bank: %v\n", err)
		return 1
	}
	if err := sealutil.ReplayEventLog(bank, log); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot replay event log: %v\n", err)
		return 1
	}

	values, err := bank.Read(pcrs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read replayed PCR values: %v\n", err)
		return 1
	}
	for i, v := range values {
		fmt.Printf("PCR %2d: %x\n", pcrs[i], v)
	}

	digest, err := sealutil.ComputePolicyPCRDigest(sealutil.DefaultHashAlgorithm, pcrs, values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot compute policy digest: %v\n", err)
		return 1
	}
	fmt.Printf("Policy: %x\n", digest)

	return 0
}

func main() {
	flag.Parse()
	os.Exit(run())
}
