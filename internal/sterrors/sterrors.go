/*
 *     Copyright 2023 The Stitch Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sterrors carries the error kinds of the container lifecycle
// contract. Every failure that crosses a component boundary is tagged with
// one of the kinds below so callers can map it without string matching.
package sterrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindProvisioning covers failures before a job starts, such as a
	// missing data channel or unreachable artifact store. Never retried.
	KindProvisioning Kind = "provisioning"

	// KindJobFailed covers a non-zero container exit during training.
	// Terminal, with no partial-artifact promotion.
	KindJobFailed Kind = "job_failed"

	// KindPayload covers decode/encode/content-type mismatches during
	// inference. Client-facing, not fatal to the endpoint.
	KindPayload Kind = "payload"

	// KindModelLoad covers a missing or corrupt artifact at warm-up.
	// Fatal to that container instance.
	KindModelLoad Kind = "model_load"
)

type Error struct {
	Kind    Kind
	Message string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Provisioningf(format string, args ...any) *Error {
	return Newf(KindProvisioning, format, args...)
}

func JobFailedf(format string, args ...any) *Error {
	return Newf(KindJobFailed, format, args...)
}

func Payloadf(format string, args ...any) *Error {
	return Newf(KindPayload, format, args...)
}

func ModelLoadf(format string, args ...any) *Error {
	return Newf(KindModelLoad, format, args...)
}

// IsKind reports whether any error in err's chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}
