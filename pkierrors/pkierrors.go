// Copyright 2014 ISRG.  All rights reserved
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package pkierrors provides the typed error values used throughout the
// certificate-issuance and revocation-status core. Callers pattern-match
// on Kind rather than on concrete error types.
package pkierrors

import "fmt"

// Kind provides a coarse category for Errors.
type Kind int

const (
	BadRequest Kind = iota
	BadCertTemplate
	BadPOP
	CertRevoked
	CertUnrevoked
	NotPermitted
	CRLFailure
	DatabaseFailure
	SystemFailure
	NoIdleSigner
	DecodeError
	NotFound
	Duplicate
	AlreadyRevoked
)

var kindNames = map[Kind]string{
	BadRequest:      "bad_request",
	BadCertTemplate: "bad_cert_template",
	BadPOP:          "bad_pop",
	CertRevoked:     "cert_revoked",
	CertUnrevoked:   "cert_unrevoked",
	NotPermitted:    "not_permitted",
	CRLFailure:      "crl_failure",
	DatabaseFailure: "database_failure",
	SystemFailure:   "system_failure",
	NoIdleSigner:    "no_idle_signer",
	DecodeError:     "decode_error",
	NotFound:        "not_found",
	Duplicate:       "duplicate",
	AlreadyRevoked:  "already_revoked",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error represents a typed error raised by the core.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New is a convenience function for creating a new Error.
func New(kind Kind, msg string, args ...interface{}) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// Wrap creates a new Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, msg string, args ...interface{}) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(msg, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	pe, ok := err.(*Error)
	if !ok {
		return false
	}
	return pe.Kind == kind
}

func BadRequestError(msg string, args ...interface{}) error {
	return New(BadRequest, msg, args...)
}

func BadCertTemplateError(msg string, args ...interface{}) error {
	return New(BadCertTemplate, msg, args...)
}

func BadPOPError(msg string, args ...interface{}) error {
	return New(BadPOP, msg, args...)
}

func CertRevokedError(msg string, args ...interface{}) error {
	return New(CertRevoked, msg, args...)
}

func CertUnrevokedError(msg string, args ...interface{}) error {
	return New(CertUnrevoked, msg, args...)
}

func NotPermittedError(msg string, args ...interface{}) error {
	return New(NotPermitted, msg, args...)
}

func CRLFailureError(msg string, args ...interface{}) error {
	return New(CRLFailure, msg, args...)
}

func DatabaseFailureError(msg string, args ...interface{}) error {
	return New(DatabaseFailure, msg, args...)
}

func SystemFailureError(msg string, args ...interface{}) error {
	return New(SystemFailure, msg, args...)
}

func NoIdleSignerError(msg string, args ...interface{}) error {
	return New(NoIdleSigner, msg, args...)
}

func DecodeErrorf(msg string, args ...interface{}) error {
	return New(DecodeError, msg, args...)
}

func NotFoundError(msg string, args ...interface{}) error {
	return New(NotFound, msg, args...)
}

func DuplicateError(msg string, args ...interface{}) error {
	return New(Duplicate, msg, args...)
}

func AlreadyRevokedError(msg string, args ...interface{}) error {
	return New(AlreadyRevoked, msg, args...)
}
