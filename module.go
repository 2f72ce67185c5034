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
	"crypto/rsa"

	"github.com/canonical/go-tpm2"
)

// Handle identifies an object loaded in a module.
type Handle uint32

// Module is the set of capabilities this package requires from a TPM-like
// collaborator. Implementations exist for a software simulator (SoftModule)
// and for tests; command dispatch and wire encoding for real hardware are the
// transport layer's concern.
//
// Every operation that needs an authorization context takes an explicit
// *PolicySession - there is no ambient current-session state.
type Module interface {
	// Create creates and loads a sealed data object carrying data, gated on
	// authPolicy, entirely inside the module.
	Create(authPolicy tpm2.Digest, data []byte) (Handle, error)

	// Import verifies and unwraps a duplication blob created for this
	// module's parent key and loads the recovered object. A blob that fails
	// its integrity check is rejected with ErrIntegrity.
	Import(blob *DuplicationBlob) (Handle, error)

	// Unseal releases the data of the sealed object at handle if the policy
	// digest of session matches the object's authorization policy. A
	// mismatch is reported as ErrPolicyFail; a trial session is rejected
	// outright.
	Unseal(handle Handle, session *PolicySession) ([]byte, error)

	// Flush discards the object at handle.
	Flush(handle Handle) error

	// ExtendPCR measures event in to the module's PCR at index.
	ExtendPCR(index int, event []byte) error

	// PolicyPCR asserts the module's live PCR state for the selected
	// registers in to session.
	PolicyPCR(session *PolicySession, selection []int) error

	// ReadPCRs returns the current values of the selected registers in
	// ascending index order.
	ReadPCRs(selection []int) (tpm2.DigestList, error)

	// ParentKey returns the public half of the module's storage parent key,
	// which senders encrypt duplication seeds to.
	ParentKey() *rsa.PublicKey
}
