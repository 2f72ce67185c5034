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
	"errors"
	"fmt"
)

var (
	// ErrIntegrity is returned when the integrity digest of a duplication
	// blob doesn't match the digest computed from its contents. The blob has
	// been tampered with or was created for a different recipient, and none
	// of its contents can be trusted.
	ErrIntegrity = errors.New("integrity digest check failed")

	// ErrPolicyFail is returned from an unseal operation if the policy digest
	// of the supplied session doesn't match the authorization policy of the
	// sealed object.
	ErrPolicyFail = errors.New("the session policy digest doesn't match the authorization policy of the object")

	// ErrKeyFileExists is returned from SealKeyToModule if a key data file
	// already exists at the specified path.
	ErrKeyFileExists = errors.New("a key data file already exists at the specified path")
)

// InvalidParamError is returned when an input violates the contract of an
// operation. It is always returned before any cryptographic work is performed.
type InvalidParamError struct {
	msg string
}

func (e InvalidParamError) Error() string {
	return fmt.Sprintf("invalid parameter: %s", e.msg)
}

// InvalidKeyFileError is returned when a key data file cannot be parsed or
// fails its internal consistency checks.
type InvalidKeyFileError struct {
	msg string
}

func (e InvalidKeyFileError) Error() string {
	return fmt.Sprintf("invalid key data file: %s", e.msg)
}

// HandleUnavailableError is returned when an operation references an object
// handle that isn't loaded in the module.
type HandleUnavailableError struct {
	Handle Handle
}

func (e HandleUnavailableError) Error() string {
	return fmt.Sprintf("no object is loaded at handle 0x%08x", uint32(e.Handle))
}

type keyFileError struct {
	err error
}

func (e keyFileError) Error() string {
	return e.err.Error()
}
