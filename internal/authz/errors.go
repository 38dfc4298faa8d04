// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"errors"
	"fmt"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/isolation"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/rbac"
)

// Kind classifies an authorization outcome.
type Kind string

const (
	KindUnauthenticated            Kind = "Unauthenticated"
	KindMissingOrganizationContext Kind = "MissingOrganizationContext"
	KindNotAMember                 Kind = "NotAMember"
	KindPermissionDenied           Kind = "PermissionDenied"
	KindCrossOrganizationReference Kind = "CrossOrganizationReference"
	KindOrganizationNotFound       Kind = "OrganizationNotFound"
	KindUnknownTemplate            Kind = "UnknownTemplate"
	KindNotFound                   Kind = "NotFound"
	KindInternal                   Kind = "Internal"
)

var safeMessages = map[Kind]string{
	KindUnauthenticated:            "sign in to continue",
	KindMissingOrganizationContext: "no organization selected",
	KindNotAMember:                 "you do not have access to this organization",
	KindPermissionDenied:           "you do not have permission to perform this action",
	KindCrossOrganizationReference: "the referenced resource does not belong to this organization",
	KindOrganizationNotFound:       "organization not found",
	KindUnknownTemplate:            "role template not found",
	KindNotFound:                   "not found",
	KindInternal:                   "internal error",
}

// Error is the structured denial returned by gates and services. Message is
// safe to show to clients; Err is for logs only.
type Error struct {
	Kind       Kind
	Permission string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Permission != "" {
		msg += "{" + e.Permission + "}"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so the Err* sentinels below
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Permission != "" && t.Permission != e.Permission {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrUnauthenticated            = &Error{Kind: KindUnauthenticated}
	ErrMissingOrganizationContext = &Error{Kind: KindMissingOrganizationContext}
	ErrNotAMember                 = &Error{Kind: KindNotAMember}
	ErrPermissionDenied           = &Error{Kind: KindPermissionDenied}
	ErrCrossOrganizationReference = &Error{Kind: KindCrossOrganizationReference}
	ErrOrganizationNotFound       = &Error{Kind: KindOrganizationNotFound}
	ErrUnknownTemplate            = &Error{Kind: KindUnknownTemplate}
	ErrNotFound                   = &Error{Kind: KindNotFound}
	ErrInternal                   = &Error{Kind: KindInternal}
)

// Deny builds a denial of kind with its safe message.
func Deny(kind Kind, permission string) *Error {
	return &Error{Kind: kind, Permission: permission, Message: safeMessages[kind]}
}

// Internal wraps an infrastructure failure. It never reads as a denial.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: safeMessages[KindInternal], Err: err}
}

// PermissionDenied is the denial for a missing permission.
func PermissionDenied(permission string) *Error {
	e := Deny(KindPermissionDenied, permission)
	e.Message = fmt.Sprintf("you do not have permission to perform this action (%s)", permission)
	return e
}

// Classify converts any error from the authorization stack or the stores
// into a structured *Error. Expected domain outcomes keep their kind;
// everything unrecognized becomes Internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	wrap := func(kind Kind) *Error {
		d := Deny(kind, "")
		d.Err = err
		return d
	}
	switch {
	case errors.Is(err, organization.ErrOrganizationNotFound):
		return wrap(KindOrganizationNotFound)
	case errors.Is(err, rbac.ErrUnknownTemplate):
		return wrap(KindUnknownTemplate)
	case errors.Is(err, ErrNoMembership):
		return wrap(KindNotAMember)
	case errors.Is(err, ErrRoleNotFound):
		return wrap(KindNotFound)
	case errors.Is(err, isolation.ErrScopeViolation):
		return wrap(KindCrossOrganizationReference)
	case errors.Is(err, isolation.ErrNoScope):
		return wrap(KindMissingOrganizationContext)
	}
	return Internal(err)
}

// KindOf returns the kind of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// SafeMessage returns the client facing text for kind.
func SafeMessage(kind Kind) string {
	if m, ok := safeMessages[kind]; ok {
		return m
	}
	return safeMessages[KindInternal]
}
