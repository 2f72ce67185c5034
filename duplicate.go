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
	"crypto/aes"
	"crypto/hmac"
	"crypto/rsa"
	"hash"
	"io"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"

	"golang.org/x/xerrors"
)

// DuplicationBlob is an encrypted, integrity protected package that transfers
// a carrier object to the module holding the private half of the parent key
// it was created for. The public area travels in the clear - it contains no
// secrets, and its name is bound in to Integrity.
type DuplicationBlob struct {
	// EncryptedSeed is the RSA-OAEP ciphertext of the duplication seed under
	// the recipient's public key.
	EncryptedSeed tpm2.EncryptedSecret
	// EncryptedPrivate is the symmetric ciphertext of the marshalled
	// sensitive area.
	EncryptedPrivate tpm2.Private
	// Integrity is the HMAC computed over EncryptedPrivate and the name of
	// Public. It must verify before EncryptedPrivate is decrypted.
	Integrity tpm2.Digest
	// Public is the carrier object's public area.
	Public *ObjectPublic
}

// duplicationKeys derives the symmetric encryption key and the integrity HMAC
// key from a duplication seed. The encryption key derivation includes the
// object's name as context; the integrity key derivation deliberately does
// not - the name enters the integrity check as HMAC input instead.
func duplicationKeys(hashAlg tpm2.HashAlgorithmId, seed []byte, name tpm2.Name) (symKey, hmacKey []byte, err error) {
	symKey, err = KDFa(hashAlg, seed, []byte(tpm2.StorageKey), name, nil, duplicateSymKeyBits)
	if err != nil {
		return nil, nil, xerrors.Errorf("cannot derive encryption key: %w", err)
	}
	hmacKey, err = KDFa(hashAlg, seed, []byte(tpm2.IntegrityKey), nil, nil, hashAlg.Size()*8)
	if err != nil {
		return nil, nil, xerrors.Errorf("cannot derive integrity key: %w", err)
	}
	return symKey, hmacKey, nil
}

func computeIntegrity(hashAlg tpm2.HashAlgorithmId, hmacKey, encPrivate []byte, name tpm2.Name) tpm2.Digest {
	h := hmac.New(func() hash.Hash { return hashAlg.NewHash() }, hmacKey)
	h.Write(encPrivate)
	h.Write(name)
	return h.Sum(nil)
}

// CreateDuplicationBlob packages the supplied carrier object for import by
// the module holding the private half of parentKey. A fresh seed is drawn
// from rand, used to derive the blob's keys, encrypted to the recipient and
// then discarded - it never appears in the output in the clear and is never
// reused.
//
// The sensitive area is encrypted with a zero IV. That is safe only because
// the encryption key is derived from a fresh seed for every blob; the key is
// never used for a second plaintext.
//
// This operation is fully offline - it requires no access to the recipient
// module.
func CreateDuplicationBlob(rand io.Reader, public *ObjectPublic, sensitive *ObjectSensitive, parentKey *rsa.PublicKey) (*DuplicationBlob, error) {
	if public == nil || sensitive == nil {
		return nil, InvalidParamError{"no object supplied"}
	}
	if parentKey == nil {
		return nil, InvalidParamError{"no parent key supplied"}
	}

	name, err := public.Name()
	if err != nil {
		return nil, xerrors.Errorf("cannot compute name: %w", err)
	}

	hashAlg := public.NameAlg

	seed := make([]byte, hashAlg.Size())
	if len(seed) < minSeedSize {
		return nil, InvalidParamError{"name algorithm produces too short a seed"}
	}
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, xerrors.Errorf("cannot generate seed: %w", err)
	}

	encryptedSeed, err := cryptSecretEncrypt(rand, parentKey, hashAlg, tpm2.DuplicateString, seed)
	if err != nil {
		return nil, xerrors.Errorf("cannot encrypt seed: %w", err)
	}

	symKey, hmacKey, err := duplicationKeys(hashAlg, seed, name)
	if err != nil {
		return nil, err
	}

	duplicate, err := mu.MarshalToBytes(mu.Sized(sensitive))
	if err != nil {
		return nil, xerrors.Errorf("cannot marshal sensitive area: %w", err)
	}

	if err := cryptSymmetricEncrypt(symKey, make([]byte, aes.BlockSize), duplicate); err != nil {
		return nil, xerrors.Errorf("cannot encrypt sensitive area: %w", err)
	}

	return &DuplicationBlob{
		EncryptedSeed:    encryptedSeed,
		EncryptedPrivate: duplicate,
		Integrity:        computeIntegrity(hashAlg, hmacKey, duplicate, name),
		Public:           public}, nil
}

// LoadDuplicationBlob recovers the sensitive area from blob using the private
// half of the parent key it was created for. The integrity digest is
// recomputed and compared in constant time before any decryption of the
// sensitive area takes place; on mismatch the result is ErrIntegrity and the
// ciphertext is never touched.
//
// This runs inside whatever trust boundary holds parentKey - for a real
// module that is the module itself, and this function then describes what the
// module does on import.
func LoadDuplicationBlob(blob *DuplicationBlob, parentKey *rsa.PrivateKey) (*ObjectSensitive, error) {
	if blob == nil || blob.Public == nil {
		return nil, InvalidParamError{"no blob supplied"}
	}
	if parentKey == nil {
		return nil, InvalidParamError{"no parent key supplied"}
	}

	hashAlg := blob.Public.NameAlg

	seed, err := cryptSecretDecrypt(parentKey, hashAlg, tpm2.DuplicateString, blob.EncryptedSeed)
	if err != nil {
		return nil, xerrors.Errorf("cannot decrypt seed: %w", err)
	}

	name, err := blob.Public.Name()
	if err != nil {
		return nil, xerrors.Errorf("cannot compute name: %w", err)
	}

	symKey, hmacKey, err := duplicationKeys(hashAlg, seed, name)
	if err != nil {
		return nil, err
	}

	integrity := computeIntegrity(hashAlg, hmacKey, blob.EncryptedPrivate, name)
	if !hmac.Equal(integrity, blob.Integrity) {
		return nil, ErrIntegrity
	}

	duplicate := make([]byte, len(blob.EncryptedPrivate))
	copy(duplicate, blob.EncryptedPrivate)

	if err := cryptSymmetricDecrypt(symKey, make([]byte, aes.BlockSize), duplicate); err != nil {
		return nil, xerrors.Errorf("cannot decrypt sensitive area: %w", err)
	}

	var sensitive *ObjectSensitive
	if _, err := mu.UnmarshalFromBytes(duplicate, mu.Sized(&sensitive)); err != nil {
		return nil, xerrors.Errorf("cannot unmarshal sensitive area: %w", err)
	}

	return sensitive, nil
}
