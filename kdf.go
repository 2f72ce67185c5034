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
	"bytes"
	"crypto/hmac"
	"encoding/binary"
	"hash"

	"github.com/canonical/go-tpm2"
)

// KDFa implements the counter-mode KDF defined in section 11.4.9.2 of part 1
// of the TPM 2.0 library specification, which is SP800-108 with HMAC as the
// PRF. Each iteration computes HMAC(key, i || label || 0x00 || contextU ||
// contextV || sizeInBits) for i = 1, 2, ... and the results are concatenated
// until sizeInBits bits are available.
//
// The label is an ASCII token that provides domain separation - output derived
// with different labels from the same key is computationally independent. The
// zero byte terminating the label is added here and must not be included in
// the label itself.
//
// Identical inputs always produce identical output. If sizeInBits is not a
// multiple of 8, the excess bits of the first byte are masked off.
func KDFa(hashAlg tpm2.HashAlgorithmId, key, label, contextU, contextV []byte, sizeInBits int) ([]byte, error) {
	if !hashAlg.Available() {
		return nil, InvalidParamError{"digest algorithm is not available"}
	}
	if sizeInBits <= 0 || sizeInBits > maxKDFOutputBits {
		return nil, InvalidParamError{"requested output size is out of range"}
	}

	digestSize := hashAlg.Size()

	counter := uint32(0)
	var res bytes.Buffer

	for remaining := (sizeInBits + 7) / 8; remaining > 0; remaining -= digestSize {
		counter++

		h := hmac.New(func() hash.Hash { return hashAlg.NewHash() }, key)
		binary.Write(h, binary.BigEndian, counter)
		h.Write(label)
		h.Write([]byte{0})
		h.Write(contextU)
		h.Write(contextV)
		binary.Write(h, binary.BigEndian, uint32(sizeInBits))

		res.Write(h.Sum(nil))
	}

	outKey := res.Bytes()[:(sizeInBits+7)/8]

	if sizeInBits%8 != 0 {
		outKey[0] &= (1 << uint(sizeInBits%8)) - 1
	}
	return outKey, nil
}
