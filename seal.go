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
	"crypto/rand"
	"os"

	"golang.org/x/xerrors"
)

// SealParams provides the policy inputs for SealKeyToModule.
type SealParams struct {
	// PCRSelection is the set of PCR indexes the sealed key will be gated
	// on. The key will only unseal while every selected register holds the
	// value it held at sealing time.
	PCRSelection []int
}

// SealKeyToModule seals key to the module m, gated on the module's current
// values of the PCRs selected by params, and writes the resulting key data
// file to dest. The file is created atomically; if a file already exists at
// dest this returns ErrKeyFileExists.
//
// The sealed object is packaged as a duplication blob encrypted to the
// module's storage parent key, so everything after reading the PCR values
// happens outside the module: the policy digest is precomputed on a trial
// session and the blob is built in host memory. Only UnsealKeyFromModule
// needs the module to do cryptographic work.
func SealKeyToModule(m Module, dest string, key []byte, params *SealParams) error {
	if len(key) == 0 {
		return InvalidParamError{"no key supplied"}
	}
	if params == nil || len(params.PCRSelection) == 0 {
		return InvalidParamError{"no PCR selection supplied"}
	}

	if _, err := os.Stat(dest); err == nil || !os.IsNotExist(err) {
		return ErrKeyFileExists
	}

	values, err := m.ReadPCRs(params.PCRSelection)
	if err != nil {
		return xerrors.Errorf("cannot read PCR values: %w", err)
	}

	// Precompute the authorization policy on a trial session from the
	// values just read.
	authPolicy, err := ComputePolicyPCRDigest(DefaultHashAlgorithm, params.PCRSelection, values)
	if err != nil {
		return xerrors.Errorf("cannot compute authorization policy: %w", err)
	}

	public, sensitive, err := NewSealedObject(rand.Reader, DefaultHashAlgorithm, authPolicy, key)
	if err != nil {
		return xerrors.Errorf("cannot create sealed object: %w", err)
	}

	blob, err := CreateDuplicationBlob(rand.Reader, public, sensitive, m.ParentKey())
	if err != nil {
		return xerrors.Errorf("cannot create duplication blob: %w", err)
	}

	data := keyData{
		Alg:       DefaultHashAlgorithm,
		PCRSelect: append([]int(nil), params.PCRSelection...),
		Blob:      blob}

	if err := data.writeToFileAtomic(dest); err != nil {
		return xerrors.Errorf("cannot write key data file: %w", err)
	}

	return nil
}
