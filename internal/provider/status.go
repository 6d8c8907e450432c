// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"net/http"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// CodeForStatus maps an upstream HTTP status to the code the outcome
// classifier understands.
func CodeForStatus(status int) dserr.Code {
	switch {
	case status == http.StatusTooManyRequests:
		return dserr.CodeProviderUpstreamRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return dserr.CodeProviderUpstreamUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity ||
		status == http.StatusNotFound || status == http.StatusRequestEntityTooLarge:
		return dserr.CodeProviderRequestInvalid
	default:
		return dserr.CodeProviderUpstreamFailure
	}
}

// WrapUpstream tags an SDK error with the code for its HTTP status. A zero
// status (transport failure, no response) counts as an upstream failure.
func WrapUpstream(err error, name string, status int, msg string) error {
	if err == nil {
		return nil
	}
	return dserr.Wrap(err, CodeForStatus(status), name+": "+msg,
		dserr.FieldProvider(name),
		dserr.Field("status", status),
	)
}
