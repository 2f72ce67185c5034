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
	"crypto/rand"
	"crypto/rsa"
	"io"
	"testing"
)

// countingEntropySource is a deterministic byte stream. It stands in for an
// entropy source in tests that need reproducible module state, and must never
// be used for anything else.
type countingEntropySource struct {
	n byte
}

func (s *countingEntropySource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = s.n
		s.n++
	}
	return len(p), nil
}

func newCountingEntropySource() io.Reader {
	return &countingEntropySource{}
}

// Key generation dominates the runtime of this package's tests, so a single
// parent key is shared by every test that only needs "some" RSA key.
var testParentKey *rsa.PrivateKey

func parentKeyForTest(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	if testParentKey == nil {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("GenerateKey failed: %v", err)
		}
		testParentKey = key
	}
	return testParentKey
}
