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
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/go-tpm2/mu"

	"github.com/google/go-cmp/cmp"
)

func makeKeyDataForTest(t *testing.T) *keyData {
	t.Helper()
	key := parentKeyForTest(t)
	public, sensitive := makeSealedObjectForTest(t, []byte("key material"))
	blob, err := CreateDuplicationBlob(rand.Reader, public, sensitive, &key.PublicKey)
	if err != nil {
		t.Fatalf("CreateDuplicationBlob failed: %v", err)
	}
	return &keyData{
		Alg:       tpm2.HashAlgorithmSHA256,
		PCRSelect: tpm2.PCRSelect{4, 7},
		Blob:      blob}
}

func TestKeyDataRoundTrip(t *testing.T) {
	data := makeKeyDataForTest(t)

	buf := new(bytes.Buffer)
	if err := data.write(buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	recovered, err := readKeyData(buf)
	if err != nil {
		t.Fatalf("readKeyData failed: %v", err)
	}

	if diff := cmp.Diff(data, recovered); diff != "" {
		t.Errorf("Key data doesn't survive a round trip (-want +got):\n%s", diff)
	}
}

func TestKeyDataRejectsBadHeaders(t *testing.T) {
	data := makeKeyDataForTest(t)

	for _, header := range []struct {
		desc    string
		magic   uint32
		version uint32
	}{
		{
			desc:    "Magic",
			magic:   keyDataMagic + 1,
			version: currentVersion,
		},
		{
			desc:    "Version",
			magic:   keyDataMagic,
			version: currentVersion + 1,
		},
	} {
		t.Run(header.desc, func(t *testing.T) {
			buf := new(bytes.Buffer)
			if _, err := mu.MarshalToWriter(buf, header.magic, header.version, data); err != nil {
				t.Fatalf("MarshalToWriter failed: %v", err)
			}

			_, err := readKeyData(buf)
			if err == nil {
				t.Fatalf("readKeyData should have failed")
			}
			if _, ok := err.(keyFileError); !ok {
				t.Errorf("Unexpected error type: %v", err)
			}
		})
	}
}

func TestKeyDataRejectsTruncatedFile(t *testing.T) {
	data := makeKeyDataForTest(t)

	buf := new(bytes.Buffer)
	if err := data.write(buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]

	if _, err := readKeyData(bytes.NewReader(truncated)); err == nil {
		t.Errorf("readKeyData should reject a truncated file")
	}
}

func TestKeyDataWriteToFileAtomic(t *testing.T) {
	data := makeKeyDataForTest(t)
	dest := filepath.Join(t.TempDir(), "keydata")

	if err := data.writeToFileAtomic(dest); err != nil {
		t.Fatalf("writeToFileAtomic failed: %v", err)
	}

	fi, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if fi.Mode().Perm() != 0600 {
		t.Errorf("Unexpected file mode %v", fi.Mode().Perm())
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	recovered, err := readKeyData(f)
	if err != nil {
		t.Fatalf("readKeyData failed: %v", err)
	}
	if diff := cmp.Diff(data, recovered); diff != "" {
		t.Errorf("Key data doesn't survive a round trip (-want +got):\n%s", diff)
	}
}
