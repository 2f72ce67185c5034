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

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"

	"golang.org/x/xerrors"
)

// ObjectType identifies the type of a carrier object.
type ObjectType uint16

const (
	// ObjectTypeSealedData corresponds to an object whose sensitive area
	// carries opaque sealed data rather than key material.
	ObjectTypeSealedData ObjectType = 0x0008
)

// ObjectPublic is the public area of a carrier object. It contains no secrets
// and travels in the clear inside a duplication blob.
//
// The name of the object is a digest computed over the entire marshalled
// public area. Any modification of the public area changes the name, and the
// name is bound in to the integrity digest of a duplication blob, so a
// swapped public area is always detected on load.
type ObjectPublic struct {
	Type       ObjectType
	NameAlg    tpm2.HashAlgorithmId
	AuthPolicy tpm2.Digest
	Unique     tpm2.Digest
}

// Name computes the name of this public area - the name algorithm identifier
// followed by the digest of the canonically marshalled public area.
func (p *ObjectPublic) Name() (tpm2.Name, error) {
	if !p.NameAlg.Available() {
		return nil, InvalidParamError{"name algorithm is not available"}
	}
	h := p.NameAlg.NewHash()
	if _, err := mu.MarshalToWriter(h, p); err != nil {
		return nil, xerrors.Errorf("cannot marshal public area: %w", err)
	}
	return mu.MustMarshalToBytes(p.NameAlg, mu.RawBytes(h.Sum(nil))), nil
}

// ObjectSensitive is the sensitive area of a carrier object. It only ever
// exists in the clear on the sending side of a duplication, or inside the
// trust boundary of the module that imported it.
type ObjectSensitive struct {
	Type      ObjectType
	AuthValue tpm2.Auth
	SeedValue tpm2.Digest
	Data      tpm2.SensitiveData
}

// bindingDigest computes the digest that ties a sensitive area to the Unique
// field of its public area.
func (s *ObjectSensitive) bindingDigest(nameAlg tpm2.HashAlgorithmId) tpm2.Digest {
	h := nameAlg.NewHash()
	h.Write(s.SeedValue)
	h.Write(s.Data)
	return h.Sum(nil)
}

// NewSealedObject creates the public and sensitive areas for an object that
// seals the supplied data under the provided authorization policy. The seed
// value is drawn from rand and binds the two halves together via the public
// area's Unique field.
func NewSealedObject(rand io.Reader, nameAlg tpm2.HashAlgorithmId, authPolicy tpm2.Digest, data []byte) (*ObjectPublic, *ObjectSensitive, error) {
	if !nameAlg.Available() {
		return nil, nil, InvalidParamError{"name algorithm is not available"}
	}
	if len(authPolicy) != nameAlg.Size() {
		return nil, nil, InvalidParamError{"authorization policy digest has the wrong size"}
	}
	if len(data) == 0 {
		return nil, nil, InvalidParamError{"no data supplied to seal"}
	}

	seed := make(tpm2.Digest, nameAlg.Size())
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, nil, xerrors.Errorf("cannot generate seed value: %w", err)
	}

	sensitive := &ObjectSensitive{
		Type:      ObjectTypeSealedData,
		SeedValue: seed,
		Data:      data}

	public := &ObjectPublic{
		Type:       ObjectTypeSealedData,
		NameAlg:    nameAlg,
		AuthPolicy: authPolicy,
		Unique:     sensitive.bindingDigest(nameAlg)}

	return public, sensitive, nil
}
