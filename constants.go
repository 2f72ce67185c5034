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
	"github.com/canonical/go-tpm2"
)

const (
	// DefaultHashAlgorithm is the digest algorithm used for PCR banks,
	// object names and policy sessions unless a caller specifies otherwise.
	// SHA-256 is mandatory to exist on every PC-Client TPM.
	DefaultHashAlgorithm tpm2.HashAlgorithmId = tpm2.HashAlgorithmSHA256

	// NumPCRRegisters is the number of registers in a PCR bank, matching the
	// PC-Client platform profile.
	NumPCRRegisters = 24

	// duplicateSymKeyBits is the size of the symmetric key protecting the
	// sensitive area of a duplication blob (AES-128-CFB).
	duplicateSymKeyBits = 128

	// minSeedSize is the minimum size of a duplication seed. Seeds are sized
	// to the name algorithm's digest, which is never smaller than this.
	minSeedSize = 16

	// maxKDFOutputBits bounds a single derivation request. Nothing in this
	// package derives more than a few digests worth of bits at a time.
	maxKDFOutputBits = 8192
)
