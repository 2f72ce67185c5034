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
	"crypto/cipher"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"io"

	"github.com/canonical/go-tpm2"

	"golang.org/x/xerrors"
)

// cryptSymmetricEncrypt performs in place symmetric encryption of data with
// AES in CFB mode, which is the cipher mode the TPM uses for all secret
// sharing.
func cryptSymmetricEncrypt(key, iv, data []byte) error {
	c, err := aes.NewCipher(key)
	if err != nil {
		return xerrors.Errorf("cannot create cipher: %w", err)
	}
	s := cipher.NewCFBEncrypter(c, iv)
	s.XORKeyStream(data, data)
	return nil
}

// cryptSymmetricDecrypt performs in place symmetric decryption of data with
// AES in CFB mode.
func cryptSymmetricDecrypt(key, iv, data []byte) error {
	c, err := aes.NewCipher(key)
	if err != nil {
		return xerrors.Errorf("cannot create cipher: %w", err)
	}
	s := cipher.NewCFBDecrypter(c, iv)
	s.XORKeyStream(data, data)
	return nil
}

// cryptSecretEncrypt protects secret for the holder of the private half of
// key, using RSA-OAEP with the supplied label. A zero byte is appended to the
// label before use - the TPM includes the terminating NUL of the label string
// in the OAEP parameter, and a blob created without it will be rejected by a
// conformant recipient.
func cryptSecretEncrypt(rand io.Reader, key *rsa.PublicKey, hashAlg tpm2.HashAlgorithmId, label string, secret []byte) (tpm2.EncryptedSecret, error) {
	h := hashAlg.NewHash()
	label0 := make([]byte, len(label)+1)
	copy(label0, label)
	return rsa.EncryptOAEP(h, rand, key, secret, label0)
}

// cryptSecretDecrypt recovers a secret protected with cryptSecretEncrypt.
func cryptSecretDecrypt(key *rsa.PrivateKey, hashAlg tpm2.HashAlgorithmId, label string, secret tpm2.EncryptedSecret) ([]byte, error) {
	h := hashAlg.NewHash()
	label0 := make([]byte, len(label)+1)
	copy(label0, label)
	return rsa.DecryptOAEP(h, nil, key, secret, label0)
}
