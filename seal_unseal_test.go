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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func sealKeyForTest(t *testing.T, mod *SoftModule, dir string, key []byte, pcrs []int) string {
	t.Helper()
	dest := filepath.Join(dir, "keydata")
	if err := SealKeyToModule(mod, dest, key, &SealParams{PCRSelection: pcrs}); err != nil {
		t.Fatalf("SealKeyToModule failed: %v", err)
	}
	return dest
}

func unsealKeyForTest(mod *SoftModule, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return UnsealKeyFromModule(mod, f)
}

func TestSealAndUnsealKey(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	for _, event := range []string{"shim", "grub", "kernel"} {
		if err := mod.ExtendPCR(7, []byte(event)); err != nil {
			t.Fatalf("ExtendPCR failed: %v", err)
		}
	}

	key := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	dest := sealKeyForTest(t, mod, dir, key, []int{7})

	recovered, err := unsealKeyForTest(mod, dest)
	if err != nil {
		t.Fatalf("UnsealKeyFromModule failed: %v", err)
	}
	if !bytes.Equal(recovered, key) {
		t.Errorf("Unsealed key doesn't match the sealed key")
	}

	// Unsealing doesn't consume the file.
	recovered, err = unsealKeyForTest(mod, dest)
	if err != nil {
		t.Fatalf("UnsealKeyFromModule failed: %v", err)
	}
	if !bytes.Equal(recovered, key) {
		t.Errorf("Unsealed key doesn't match the sealed key")
	}
}

func TestUnsealKeyAfterPCRChange(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	mod.ExtendPCR(7, []byte("Hello"))
	dest := sealKeyForTest(t, mod, dir, []byte("key material"), []int{7})

	mod.ExtendPCR(7, []byte("Goodbye"))

	if _, err := unsealKeyForTest(mod, dest); err != ErrPolicyFail {
		t.Errorf("Expected ErrPolicyFail, got: %v", err)
	}
}

func TestUnsealKeyAfterResetAndReplay(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	events := [][]byte{[]byte("shim"), []byte("grub"), []byte("kernel")}
	for _, event := range events {
		mod.ExtendPCR(7, event)
	}
	dest := sealKeyForTest(t, mod, dir, []byte("key material"), []int{7})

	// After a reset the key must unseal again once the same measurements
	// are replayed.
	mod.Reset()
	if _, err := unsealKeyForTest(mod, dest); err != ErrPolicyFail {
		t.Fatalf("Expected ErrPolicyFail after reset, got: %v", err)
	}
	for _, event := range events {
		mod.ExtendPCR(7, event)
	}
	if _, err := unsealKeyForTest(mod, dest); err != nil {
		t.Errorf("UnsealKeyFromModule failed after replaying measurements: %v", err)
	}
}

func TestSealKeyMultiplePCRs(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	mod.ExtendPCR(4, []byte("boot loader"))
	mod.ExtendPCR(7, []byte("secure boot policy"))
	dest := sealKeyForTest(t, mod, dir, []byte("key material"), []int{7, 4})

	if _, err := unsealKeyForTest(mod, dest); err != nil {
		t.Fatalf("UnsealKeyFromModule failed: %v", err)
	}

	// A change to either selected register must block unsealing.
	mod.ExtendPCR(4, []byte("unexpected"))
	if _, err := unsealKeyForTest(mod, dest); err != ErrPolicyFail {
		t.Errorf("Expected ErrPolicyFail, got: %v", err)
	}
}

func TestSealKeyToExistingFile(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	dest := sealKeyForTest(t, mod, dir, []byte("key material"), []int{7})

	err := SealKeyToModule(mod, dest, []byte("other key"), &SealParams{PCRSelection: []int{7}})
	if err != ErrKeyFileExists {
		t.Errorf("Expected ErrKeyFileExists, got: %v", err)
	}
}

func TestSealKeyInvalidParams(t *testing.T) {
	mod := moduleForTest(t)
	dest := filepath.Join(t.TempDir(), "keydata")

	if err := SealKeyToModule(mod, dest, nil, &SealParams{PCRSelection: []int{7}}); err == nil {
		t.Errorf("SealKeyToModule should reject an empty key")
	}
	if err := SealKeyToModule(mod, dest, []byte("key"), nil); err == nil {
		t.Errorf("SealKeyToModule should reject missing params")
	}
	if err := SealKeyToModule(mod, dest, []byte("key"), &SealParams{}); err == nil {
		t.Errorf("SealKeyToModule should reject an empty PCR selection")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("A failed seal left a file behind")
	}
}

func TestUnsealKeyFromInvalidFile(t *testing.T) {
	mod := moduleForTest(t)

	if _, err := UnsealKeyFromModule(mod, bytes.NewReader([]byte("not a key data file"))); err == nil {
		t.Fatalf("UnsealKeyFromModule should have failed")
	} else if _, ok := err.(InvalidKeyFileError); !ok {
		t.Errorf("Unexpected error type: %v", err)
	}
}

func TestUnsealKeyFromWrongModule(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	dest := sealKeyForTest(t, mod, dir, []byte("key material"), []int{7})

	other, err := NewSoftModule(nil)
	if err != nil {
		t.Fatalf("NewSoftModule failed: %v", err)
	}

	if _, err := unsealKeyForTest(other, dest); err == nil {
		t.Errorf("A key sealed to one module unsealed on another")
	}
}

func TestUnsealKeyFromTamperedFile(t *testing.T) {
	mod := moduleForTest(t)
	dir := t.TempDir()

	dest := sealKeyForTest(t, mod, dir, []byte("key material"), []int{7})

	contents, err := ioutil.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	// Flip a bit towards the end of the file, inside the blob.
	contents[len(contents)-10] ^= 0x01

	_, err = UnsealKeyFromModule(mod, bytes.NewReader(contents))
	if err == nil {
		t.Fatalf("UnsealKeyFromModule should have failed")
	}
}
