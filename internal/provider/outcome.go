// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider

import (
	"context"
	"errors"
	"regexp"
	"strings"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
)

// Outcome tags the result of a single backend invocation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited takes the backend out of rotation and moves on
	// without retrying it.
	OutcomeRateLimited
	// OutcomeTransient is retried on the same backend with backoff.
	OutcomeTransient
	// OutcomeFatal stops the logical call. No other backend would fix it.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransient:
		return "transient"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classifier maps an invocation error to an Outcome.
type Classifier func(err error) Outcome

// ClassifyError is the default Classifier. Backend clients translate their
// SDK errors into dserr codes, so coded errors are classified by code. Errors
// without a code fall back to matching well-known phrases in the message.
func ClassifyError(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeFatal
	}

	switch dserr.CodeOf(err) {
	case dserr.CodeProviderUpstreamRateLimited, dserr.CodeProviderUpstreamUnauthorized:
		return OutcomeRateLimited
	case dserr.CodeProviderRequestInvalid, dserr.CodeDocumentInputInvalid:
		return OutcomeFatal
	case dserr.CodeProviderUpstreamFailure, dserr.CodeProviderResponseInvalid, dserr.CodeDocumentResponseInvalid:
		return OutcomeTransient
	}

	return classifyMessage(err.Error())
}

var rateLimitPhrases = []string{
	"429",
	"too many requests",
	"rate limit",
	"ratelimit",
	"quota",
	"resource exhausted",
	"resource_exhausted",
	"capacity exceeded",
}

var fatalPhrases = []string{
	"invalid request",
	"invalid_request",
	"bad request",
}

// statusBadRequest matches a bare 400 status, not 4000 or 1400.
var statusBadRequest = regexp.MustCompile(`\b400\b`)

func classifyMessage(msg string) Outcome {
	lower := strings.ToLower(msg)
	for _, p := range rateLimitPhrases {
		if strings.Contains(lower, p) {
			return OutcomeRateLimited
		}
	}
	for _, p := range fatalPhrases {
		if strings.Contains(lower, p) {
			return OutcomeFatal
		}
	}
	if statusBadRequest.MatchString(lower) {
		return OutcomeFatal
	}
	// Network errors, 5xx, malformed responses.
	return OutcomeTransient
}
