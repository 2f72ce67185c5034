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
	"encoding/binary"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"

	"golang.org/x/xerrors"
)

// SessionMode determines how the operands of a session's assertions are
// sourced. The fold algorithm is identical in both modes.
type SessionMode uint8

const (
	// SessionModeTrial marks a session used to precompute an expected policy
	// digest from caller supplied, possibly synthetic operands. A trial
	// session can never authorize anything.
	SessionModeTrial SessionMode = iota

	// SessionModePolicy marks a session whose assertions are fed with live,
	// authoritative operands by a module, and which can be presented for
	// authorization.
	SessionModePolicy
)

// PolicySession accumulates policy assertions in to a single digest. The
// digest starts as all zero bytes and each assertion folds its operation
// encoding in on top of the previous value, so the order of assertions
// matters and two different orders of the same assertions produce different
// digests.
//
// The digest is only ever zero at creation - there is no mid-life reset. A
// session must not be used from more than one goroutine without external
// synchronization.
type PolicySession struct {
	mode   SessionMode
	alg    tpm2.HashAlgorithmId
	digest tpm2.Digest
}

// NewPolicySession creates a session with an all zero policy digest of the
// size of the specified algorithm.
func NewPolicySession(alg tpm2.HashAlgorithmId, mode SessionMode) (*PolicySession, error) {
	if !alg.Available() {
		return nil, InvalidParamError{"digest algorithm is not available"}
	}
	switch mode {
	case SessionModeTrial, SessionModePolicy:
	default:
		return nil, InvalidParamError{"unknown session mode"}
	}
	return &PolicySession{
		mode:   mode,
		alg:    alg,
		digest: make(tpm2.Digest, alg.Size())}, nil
}

// Mode returns the mode the session was created with.
func (s *PolicySession) Mode() SessionMode {
	return s.mode
}

// Algorithm returns the session digest algorithm.
func (s *PolicySession) Algorithm() tpm2.HashAlgorithmId {
	return s.alg
}

// Digest returns a copy of the current policy digest. It does not mutate the
// session.
func (s *PolicySession) Digest() tpm2.Digest {
	out := make(tpm2.Digest, len(s.digest))
	copy(out, s.digest)
	return out
}

// PolicyPCR folds a PCR assertion in to the session digest:
//
//	digest' = H(digest || TPM_CC_PolicyPCR || pcrs || pcrDigest)
//
// where pcrs is the canonically marshalled selection and pcrDigest is the
// digest of the concatenated values of the selected registers, computed with
// the session algorithm (see ComputePCRDigest). This is byte-identical to the
// policy digest update a TPM performs for TPM2_PolicyPCR, so a digest
// precomputed here on a trial session matches one produced by real hardware.
//
// On error the session digest is left untouched.
func (s *PolicySession) PolicyPCR(pcrDigest tpm2.Digest, pcrs tpm2.PCRSelectionList) error {
	if len(pcrDigest) != s.alg.Size() {
		return InvalidParamError{"PCR digest has the wrong size for the session algorithm"}
	}
	if len(pcrs) == 0 {
		return InvalidParamError{"empty PCR selection"}
	}

	h := s.alg.NewHash()
	h.Write(s.digest)
	binary.Write(h, binary.BigEndian, tpm2.CommandPolicyPCR)
	if _, err := mu.MarshalToWriter(h, pcrs); err != nil {
		return xerrors.Errorf("cannot marshal PCR selection: %w", err)
	}
	h.Write(pcrDigest)

	s.digest = h.Sum(nil)
	return nil
}

// ComputePCRDigest returns the digest of the supplied register values,
// concatenated in the order given. This is the operand form that PolicyPCR
// expects.
func ComputePCRDigest(alg tpm2.HashAlgorithmId, values tpm2.DigestList) (tpm2.Digest, error) {
	if !alg.Available() {
		return nil, InvalidParamError{"digest algorithm is not available"}
	}
	h := alg.NewHash()
	for _, v := range values {
		h.Write(v)
	}
	return h.Sum(nil), nil
}

// ComputePolicyPCRDigest returns the policy digest that a session would hold
// after a single PCR assertion over the selected registers holding the
// supplied values. This is the trial computation a sealer performs to obtain
// an authorization policy without access to the target module.
func ComputePolicyPCRDigest(alg tpm2.HashAlgorithmId, selection []int, values tpm2.DigestList) (tpm2.Digest, error) {
	trial, err := NewPolicySession(alg, SessionModeTrial)
	if err != nil {
		return nil, err
	}
	pcrDigest, err := ComputePCRDigest(alg, values)
	if err != nil {
		return nil, err
	}
	if err := trial.PolicyPCR(pcrDigest, makePCRSelectionList(alg, selection)); err != nil {
		return nil, err
	}
	return trial.Digest(), nil
}

// makePCRSelectionList builds a single-bank selection for the supplied
// register indexes.
func makePCRSelectionList(alg tpm2.HashAlgorithmId, indexes []int) tpm2.PCRSelectionList {
	return tpm2.PCRSelectionList{
		tpm2.PCRSelection{Hash: alg, Select: append([]int(nil), indexes...)}}
}
