// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/docsort-dev/docsort/internal/provider"
	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want provider.Outcome
	}{
		{name: "nil", err: nil, want: provider.OutcomeSuccess},
		{name: "canceled", err: context.Canceled, want: provider.OutcomeFatal},
		{name: "deadline wrapped", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: provider.OutcomeFatal},
		{name: "coded rate limit", err: dserr.New(dserr.CodeProviderUpstreamRateLimited, "slow down"), want: provider.OutcomeRateLimited},
		{name: "coded unauthorized", err: dserr.New(dserr.CodeProviderUpstreamUnauthorized, "bad key"), want: provider.OutcomeRateLimited},
		{name: "coded invalid request", err: dserr.New(dserr.CodeProviderRequestInvalid, "schema"), want: provider.OutcomeFatal},
		{name: "coded upstream failure", err: dserr.New(dserr.CodeProviderUpstreamFailure, "503"), want: provider.OutcomeTransient},
		{name: "coded bad response", err: dserr.New(dserr.CodeDocumentResponseInvalid, "not json"), want: provider.OutcomeTransient},
		{name: "plain 429", err: errors.New("API error: status 429"), want: provider.OutcomeRateLimited},
		{name: "plain quota", err: errors.New("Quota exceeded for model"), want: provider.OutcomeRateLimited},
		{name: "plain resource exhausted", err: errors.New("RESOURCE_EXHAUSTED"), want: provider.OutcomeRateLimited},
		{name: "plain bad request", err: errors.New("Bad Request: unknown field"), want: provider.OutcomeFatal},
		{name: "plain 400 status", err: errors.New("API error: status 400"), want: provider.OutcomeFatal},
		{name: "400 inside a larger number", err: errors.New("response truncated at 4000 tokens"), want: provider.OutcomeTransient},
		{name: "network error", err: errors.New("connection reset by peer"), want: provider.OutcomeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provider.ClassifyError(tt.err))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", provider.OutcomeSuccess.String())
	assert.Equal(t, "rate_limited", provider.OutcomeRateLimited.String())
	assert.Equal(t, "transient", provider.OutcomeTransient.String())
	assert.Equal(t, "fatal", provider.OutcomeFatal.String())
	assert.Equal(t, "unknown", provider.Outcome(42).String())
}
