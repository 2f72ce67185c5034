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

package sealutil

import (
	"io"
	"os"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"

	"golang.org/x/xerrors"
)

const eventLogPath string = "/sys/kernel/security/tpm0/binary_bios_measurements"

// ReplayEventLog folds the measurements recorded in a TCG event log in to
// bank, which must be at its reset value if the result is expected to match
// the live PCR state the log describes. EV_NO_ACTION events are informational
// and carry a digest that firmware never extends, so they are skipped.
//
// This is how expected PCR values for a policy precomputation are obtained
// without access to the target module.
func ReplayEventLog(bank *PCRBank, log *tcglog.Log) error {
	if !log.Algorithms.Contains(bank.Algorithm()) {
		return InvalidParamError{"event log doesn't contain digests for the bank's algorithm"}
	}

	for i, event := range log.Events {
		if event.EventType == tcglog.EventTypeNoAction {
			continue
		}
		digest, ok := event.Digests[bank.Algorithm()]
		if !ok {
			return xerrors.Errorf("event %d has no digest for the bank's algorithm", i)
		}
		if _, err := bank.ExtendDigest(int(event.PCRIndex), tpm2.Digest(digest)); err != nil {
			return xerrors.Errorf("cannot replay event %d: %w", i, err)
		}
	}
	return nil
}

// ReadEventLog parses a TCG event log from r.
func ReadEventLog(r io.Reader) (*tcglog.Log, error) {
	log, err := tcglog.ReadLog(r, &tcglog.LogOptions{})
	if err != nil {
		return nil, xerrors.Errorf("cannot parse event log: %w", err)
	}
	return log, nil
}

// ReadDefaultEventLog parses the TCG event log exposed by the kernel for the
// default TPM device.
func ReadDefaultEventLog() (*tcglog.Log, error) {
	f, err := os.Open(eventLogPath)
	if err != nil {
		return nil, xerrors.Errorf("cannot open event log: %w", err)
	}
	defer f.Close()
	return ReadEventLog(f)
}
