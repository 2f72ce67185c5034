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

// read-pcrs prints the current values of the selected PCRs from the default
// TPM device, and the policy digest the TPM produces when asserting them in
// a real policy session. The digest can be compared against one computed
// offline with replay-log to confirm that an event log describes the live
// state of the machine.
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

var selection string

func init() {
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

	tpm, err := sealutil.ConnectToDefaultTPM()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot acquire TPM context: %v\n", err)
		return 1
	}
	defer tpm.Close()

	values, err := tpm.ReadPCRs(sealutil.DefaultHashAlgorithm, pcrs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read PCR values: %v\n", err)
		return 1
	}
	for i, v := range values {
		fmt.Printf("PCR %2d: %x\n", pcrs[i], v)
	}

	digest, err := tpm.RunPolicySession(sealutil.DefaultHashAlgorithm, pcrs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot execute policy session: %v\n", err)
		return 1
	}
	fmt.Printf("Policy: %x\n", digest)

	return 0
}

func main() {
	flag.Parse()
	os.Exit(run())
}
