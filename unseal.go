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

	"golang.org/x/xerrors"
)

// UnsealKeyFromModule reads a key data file from buf and unseals the key it
// carries with the module m. The duplication blob is imported in to the
// module, a policy session asserting the module's live PCR state over the
// selection recorded in the file is built, and the object is unsealed with
// it.
//
// If the file cannot be parsed this returns InvalidKeyFileError. If the blob
// fails its integrity check on import this returns ErrIntegrity - the file is
// corrupt or was sealed to a different module. If the module's PCR state
// doesn't match the state the key was sealed against this returns
// ErrPolicyFail.
func UnsealKeyFromModule(m Module, buf io.Reader) ([]byte, error) {
	data, err := readKeyData(buf)
	if err != nil {
		var kfErr keyFileError
		if xerrors.As(err, &kfErr) {
			return nil, InvalidKeyFileError{kfErr.err.Error()}
		}
		return nil, xerrors.Errorf("cannot load key data file: %w", err)
	}

	handle, err := m.Import(data.Blob)
	if err != nil {
		if err == ErrIntegrity {
			return nil, err
		}
		return nil, xerrors.Errorf("cannot import sealed object: %w", err)
	}
	defer m.Flush(handle)

	session, err := NewPolicySession(data.Alg, SessionModePolicy)
	if err != nil {
		return nil, err
	}
	if err := m.PolicyPCR(session, data.PCRSelect); err != nil {
		return nil, xerrors.Errorf("cannot execute PCR assertion: %w", err)
	}

	key, err := m.Unseal(handle, session)
	if err != nil {
		if err == ErrPolicyFail {
			return nil, err
		}
		return nil, xerrors.Errorf("cannot unseal key: %w", err)
	}

	return key, nil
}
