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
)

// PCRBank models a bank of extend-only measurement registers for a single
// digest algorithm. Registers start at the defined reset value (all zero
// bytes) and can only be modified by folding a new measurement on top of the
// current value - there is no operation that overwrites or reverses a
// register. Only Reset, which models a module reset, returns the bank to its
// initial state.
//
// A bank must not be mutated from more than one goroutine without external
// synchronization.
type PCRBank struct {
	alg       tpm2.HashAlgorithmId
	registers []tpm2.Digest
}

// NewPCRBank creates a bank of NumPCRRegisters registers at their reset
// value.
func NewPCRBank(alg tpm2.HashAlgorithmId) (*PCRBank, error) {
	if !alg.Available() {
		return nil, InvalidParamError{"digest algorithm is not available"}
	}
	b := &PCRBank{alg: alg}
	b.Reset()
	return b, nil
}

// Algorithm returns the bank's digest algorithm.
func (b *PCRBank) Algorithm() tpm2.HashAlgorithmId {
	return b.alg
}

// Reset returns every register to the defined reset value.
func (b *PCRBank) Reset() {
	b.registers = make([]tpm2.Digest, NumPCRRegisters)
	for i := range b.registers {
		b.registers[i] = make(tpm2.Digest, b.alg.Size())
	}
}

// Extend measures the supplied event in to the register at index. The event
// is hashed first and the register is then folded as
//
//	registers[index] = H(registers[index] || H(event))
//
// which is the TPM2_PCR_Event convention. Callers that already hold a
// digest-sized measurement use ExtendDigest, which performs only the fold.
// Builders and verifiers must agree on which of the two they use.
//
// The new register value is returned.
func (b *PCRBank) Extend(index int, event []byte) (tpm2.Digest, error) {
	h := b.alg.NewHash()
	h.Write(event)
	return b.ExtendDigest(index, h.Sum(nil))
}

// ExtendDigest folds an already hashed measurement in to the register at
// index and returns the new register value. On error the register is left
// untouched.
func (b *PCRBank) ExtendDigest(index int, digest tpm2.Digest) (tpm2.Digest, error) {
	if index < 0 || index >= len(b.registers) {
		return nil, InvalidParamError{"PCR index out of range"}
	}
	if len(digest) != b.alg.Size() {
		return nil, InvalidParamError{"measurement digest has the wrong size for this bank"}
	}

	h := b.alg.NewHash()
	h.Write(b.registers[index])
	h.Write(digest)
	b.registers[index] = h.Sum(nil)

	return b.Value(index)
}

// Value returns a copy of the current value of the register at index.
func (b *PCRBank) Value(index int) (tpm2.Digest, error) {
	if index < 0 || index >= len(b.registers) {
		return nil, InvalidParamError{"PCR index out of range"}
	}
	out := make(tpm2.Digest, len(b.registers[index]))
	copy(out, b.registers[index])
	return out, nil
}

// Read returns copies of the current values of the selected registers in
// ascending index order, regardless of the order of the supplied selection.
func (b *PCRBank) Read(selection []int) (tpm2.DigestList, error) {
	if len(selection) == 0 {
		return nil, InvalidParamError{"empty PCR selection"}
	}

	indexes := append([]int(nil), selection...)
	sort.Ints(indexes)

	var values tpm2.DigestList
	for i, index := range indexes {
		if i > 0 && index == indexes[i-1] {
			return nil, InvalidParamError{"duplicate PCR index in selection"}
		}
		v, err := b.Value(index)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
