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
	"crypto"
	"crypto/rsa"
	"crypto/subtle"
	"io"

	"github.com/canonical/go-sp800.90a-drbg"
	"github.com/canonical/go-tpm2"

	"golang.org/x/xerrors"
)

// firstTransientHandle is where the simulator starts allocating object
// handles, matching the transient handle range of a real TPM.
const firstTransientHandle Handle = 0x80000000

type softObject struct {
	public    *ObjectPublic
	sensitive *ObjectSensitive
}

// SoftModule is an in-memory implementation of Module. It owns a RSA-2048
// storage parent key, a single PCR bank using the default digest algorithm
// and a table of loaded objects. Random material is drawn from a SP800-90A
// HMAC-DRBG seeded from the entropy source supplied at creation time.
//
// A SoftModule produces duplication blobs, policy digests and names that are
// byte-compatible with those of real hardware, which makes it suitable both
// for tests and as an executable description of what a module does with the
// packages this package builds.
//
// A SoftModule must not be used from more than one goroutine without external
// synchronization.
type SoftModule struct {
	parentKey  *rsa.PrivateKey
	bank       *PCRBank
	rng        io.Reader
	objects    map[Handle]*softObject
	nextHandle Handle
}

// NewSoftModule creates and provisions a software module. The optional
// entropy argument overrides the entropy source used to seed the module's
// DRBG; if it is nil, the source is the platform random number generator.
// Supplying a deterministic source yields a fully reproducible module, which
// some tests rely on.
//
// Provisioning generates the storage parent key and is therefore slow-ish.
// Callers that need several module instances with the same parent should
// create one and Reset it instead.
func NewSoftModule(entropy io.Reader) (*SoftModule, error) {
	rng, err := drbg.NewHMAC(crypto.SHA256, []byte("sealutil soft module"), entropy)
	if err != nil {
		return nil, xerrors.Errorf("cannot instantiate DRBG: %w", err)
	}

	parentKey, err := rsa.GenerateKey(rng, 2048)
	if err != nil {
		return nil, xerrors.Errorf("cannot generate storage parent key: %w", err)
	}

	bank, err := NewPCRBank(DefaultHashAlgorithm)
	if err != nil {
		return nil, err
	}

	return &SoftModule{
		parentKey:  parentKey,
		bank:       bank,
		rng:        rng,
		objects:    make(map[Handle]*softObject),
		nextHandle: firstTransientHandle}, nil
}

// PCRBank returns the module's PCR bank.
func (m *SoftModule) PCRBank() *PCRBank {
	return m.bank
}

// ParentKey returns the public half of the module's storage parent key.
func (m *SoftModule) ParentKey() *rsa.PublicKey {
	return &m.parentKey.PublicKey
}

// Reset models a module reset: every PCR returns to its reset value and all
// loaded objects are discarded. The storage parent key survives, as it would
// in persistent storage on real hardware.
func (m *SoftModule) Reset() {
	m.bank.Reset()
	m.objects = make(map[Handle]*softObject)
	m.nextHandle = firstTransientHandle
}

func (m *SoftModule) load(public *ObjectPublic, sensitive *ObjectSensitive) Handle {
	handle := m.nextHandle
	m.nextHandle++
	m.objects[handle] = &softObject{public: public, sensitive: sensitive}
	return handle
}

// Create creates and loads a sealed data object entirely inside the module.
// The object's sensitive area never crosses the module boundary.
func (m *SoftModule) Create(authPolicy tpm2.Digest, data []byte) (Handle, error) {
	public, sensitive, err := NewSealedObject(m.rng, DefaultHashAlgorithm, authPolicy, data)
	if err != nil {
		return 0, err
	}
	return m.load(public, sensitive), nil
}

// Import verifies and unwraps a duplication blob created for this module's
// parent key and loads the recovered object. In addition to the blob's own
// integrity check, the recovered sensitive area must reproduce the binding
// digest in the public area's Unique field - a mismatch there means the two
// halves were not created together, and is also reported as ErrIntegrity.
func (m *SoftModule) Import(blob *DuplicationBlob) (Handle, error) {
	sensitive, err := LoadDuplicationBlob(blob, m.parentKey)
	if err != nil {
		return 0, err
	}

	if sensitive.Type != blob.Public.Type {
		return 0, ErrIntegrity
	}
	binding := sensitive.bindingDigest(blob.Public.NameAlg)
	if subtle.ConstantTimeCompare(binding, blob.Public.Unique) == 0 {
		return 0, ErrIntegrity
	}

	return m.load(blob.Public, sensitive), nil
}

// Unseal releases the data of the sealed object at handle. The supplied
// session must be a policy session whose digest algorithm matches the
// object's name algorithm and whose accumulated digest matches the object's
// authorization policy; the digest comparison is constant time and a mismatch
// is reported as ErrPolicyFail.
func (m *SoftModule) Unseal(handle Handle, session *PolicySession) ([]byte, error) {
	obj, ok := m.objects[handle]
	if !ok {
		return nil, HandleUnavailableError{handle}
	}
	if session == nil {
		return nil, InvalidParamError{"no session supplied"}
	}
	if session.Mode() != SessionModePolicy {
		return nil, InvalidParamError{"a trial session cannot authorize an unseal"}
	}
	if session.Algorithm() != obj.public.NameAlg {
		return nil, InvalidParamError{"session algorithm doesn't match the object's name algorithm"}
	}

	if subtle.ConstantTimeCompare(session.Digest(), obj.public.AuthPolicy) == 0 {
		return nil, ErrPolicyFail
	}

	out := make([]byte, len(obj.sensitive.Data))
	copy(out, obj.sensitive.Data)
	return out, nil
}

// Flush discards the object at handle.
func (m *SoftModule) Flush(handle Handle) error {
	if _, ok := m.objects[handle]; !ok {
		return HandleUnavailableError{handle}
	}
	delete(m.objects, handle)
	return nil
}

// ExtendPCR measures the supplied event in to the module's PCR at index.
func (m *SoftModule) ExtendPCR(index int, event []byte) error {
	_, err := m.bank.Extend(index, event)
	return err
}

// PolicyPCR asserts the current values of the selected registers in to
// session. The operands come from the module's own bank - the caller cannot
// substitute values, which is what makes a policy session authoritative.
func (m *SoftModule) PolicyPCR(session *PolicySession, selection []int) error {
	if session == nil {
		return InvalidParamError{"no session supplied"}
	}

	values, err := m.bank.Read(selection)
	if err != nil {
		return err
	}
	pcrDigest, err := ComputePCRDigest(session.Algorithm(), values)
	if err != nil {
		return err
	}
	return session.PolicyPCR(pcrDigest, makePCRSelectionList(m.bank.Algorithm(), selection))
}

// ReadPCRs returns the current values of the selected registers in ascending
// index order.
func (m *SoftModule) ReadPCRs(selection []int) (tpm2.DigestList, error) {
	return m.bank.Read(selection)
}
