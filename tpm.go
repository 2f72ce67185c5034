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
	"sort"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/linux"

	"golang.org/x/xerrors"
)

const tpmPath string = "/dev/tpm0"

// TPMConnection corresponds to a connection to a TPM character device, and is
// a wrapper around *tpm2.TPMContext. It drives the PCR and policy session
// operations of this package against real hardware; everything else this
// package does (trial policy computation, duplication blob creation) is
// offline and needs no connection.
type TPMConnection struct {
	*tpm2.TPMContext
}

// ConnectToDefaultTPM opens a connection to the default TPM character device.
func ConnectToDefaultTPM() (*TPMConnection, error) {
	tcti, err := linux.OpenDevice(tpmPath)
	if err != nil {
		return nil, xerrors.Errorf("cannot open TPM device: %w", err)
	}
	return &TPMConnection{tpm2.NewTPMContext(tcti)}, nil
}

// ExtendPCR measures the supplied event in to the PCR at index in every bank
// of the TPM, using TPM2_PCR_Event. The TPM hashes the event itself before
// extending, which matches PCRBank.Extend.
func (t *TPMConnection) ExtendPCR(index int, event []byte) error {
	if _, err := t.PCREvent(t.PCRHandleContext(index), event, nil); err != nil {
		return xerrors.Errorf("cannot extend PCR %d: %w", index, err)
	}
	return nil
}

// ReadPCRs returns the current values of the selected registers in the bank
// of the specified algorithm, in ascending index order.
func (t *TPMConnection) ReadPCRs(alg tpm2.HashAlgorithmId, selection []int) (tpm2.DigestList, error) {
	if len(selection) == 0 {
		return nil, InvalidParamError{"empty PCR selection"}
	}

	indexes := append([]int(nil), selection...)
	sort.Ints(indexes)

	_, values, err := t.PCRRead(makePCRSelectionList(alg, indexes))
	if err != nil {
		return nil, xerrors.Errorf("cannot read PCR values: %w", err)
	}

	// A single TPM2_PCR_Read can return fewer registers than were asked
	// for. Treat that as an error rather than silently computing a policy
	// digest from a partial selection.
	var out tpm2.DigestList
	for _, index := range indexes {
		v, ok := values[alg][index]
		if !ok {
			return nil, xerrors.Errorf("TPM didn't return a value for PCR %d", index)
		}
		out = append(out, v)
	}
	return out, nil
}

// RunPolicySession executes a PCR policy for the selected registers in a real
// policy session on the TPM and returns the resulting policy digest. The
// returned digest reflects the TPM's live PCR state; if that state matches
// the state a sealed object's policy was precomputed from, the digest will
// match the object's authorization policy.
func (t *TPMConnection) RunPolicySession(alg tpm2.HashAlgorithmId, selection []int) (tpm2.Digest, error) {
	session, err := t.StartAuthSession(nil, nil, tpm2.SessionTypePolicy, nil, alg)
	if err != nil {
		return nil, xerrors.Errorf("cannot start policy session: %w", err)
	}
	defer t.FlushContext(session)

	if err := t.PolicyPCR(session, nil, makePCRSelectionList(alg, selection)); err != nil {
		return nil, xerrors.Errorf("cannot execute PCR assertion: %w", err)
	}

	digest, err := t.PolicyGetDigest(session)
	if err != nil {
		return nil, xerrors.Errorf("cannot obtain policy digest: %w", err)
	}
	return digest, nil
}
