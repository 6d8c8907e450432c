// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsort Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	dserr "github.com/docsort-dev/docsort/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := dserr.New(
		dserr.CodeDispatchRegistryInvalid,
		"duplicate backend",
		dserr.FieldTask("classification"),
		dserr.FieldBackend("mistral/mistral-large-latest"),
	)

	require.Error(t, err)
	assert.Equal(t, dserr.CodeDispatchRegistryInvalid, dserr.CodeOf(err))
	assert.True(t, dserr.HasCode(err, dserr.CodeDispatchRegistryInvalid))

	fields := dserr.FieldsOf(err)
	assert.Equal(t, "classification", fields["task"])
	assert.Equal(t, "mistral/mistral-large-latest", fields["backend"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := dserr.Errorf(dserr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, dserr.CodeStoreDatabaseFailure, dserr.CodeOf(err))
	assert.Contains(t, err.Error(), "write failed")
}

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("record missing")
	err := dserr.Wrap(root, dserr.CodeStoreEntityNotFound, "loading document",
		dserr.FieldDocumentID("doc-42"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, dserr.IsNotFound(err))
	assert.Equal(t, "doc-42", dserr.FieldsOf(err)["document_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, dserr.Wrap(nil, dserr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, dserr.Wrapf(nil, dserr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, dserr.With(nil, dserr.FieldTask("x")))
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := dserr.New(dserr.CodeProviderUpstreamRateLimited, "429")
	withCtx := dserr.With(base, dserr.FieldProvider("mistral"))

	assert.Equal(t, dserr.CodeProviderUpstreamRateLimited, dserr.CodeOf(withCtx))
	assert.Equal(t, "mistral", dserr.FieldsOf(withCtx)["provider"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := dserr.With(stderrors.New("something broke"), dserr.FieldTask("recognition"))
	assert.Equal(t, dserr.CodeServerInternalFailure, dserr.CodeOf(enriched))
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := dserr.New(dserr.CodeStoreDatabaseFailure, "db")
	outer := dserr.Wrap(inner, dserr.CodeServerInternalFailure, "handler")
	assert.Equal(t, dserr.CodeStoreDatabaseFailure, dserr.CodeOf(outer))

	assert.Equal(t, dserr.Code(""), dserr.CodeOf(nil))
	assert.Equal(t, dserr.Code(""), dserr.CodeOf(stderrors.New("plain")))
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := dserr.New(dserr.CodeStoreDatabaseFailure, "oops",
		dserr.Field("", "should-be-dropped"),
		dserr.FieldTask("kept"),
	)
	fields := dserr.FieldsOf(err)
	assert.Equal(t, "kept", fields["task"])
	assert.NotContains(t, fields, "")
}

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	mid := fmt.Errorf("mid: %w", sentinel)
	outer := dserr.Wrap(mid, dserr.CodeServerInternalFailure, "handler")

	assert.ErrorIs(t, outer, sentinel)
}

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   dserr.Code
		status int
		check  func(error) bool
	}{
		{name: "entity not found", code: dserr.CodeStoreEntityNotFound, status: 404, check: dserr.IsNotFound},
		{name: "server entity not found", code: dserr.CodeServerEntityNotFound, status: 404, check: dserr.IsNotFound},
		{name: "task not found", code: dserr.CodeDispatchTaskNotFound, status: 404, check: dserr.IsNotFound},
		{name: "bootstrap conflict", code: dserr.CodeConfigAlreadyExists, status: 409, check: dserr.IsConflict},
		{name: "invalid value", code: dserr.CodeConfigValidateInvalidValue, status: 400, check: dserr.IsInvalidInput},
		{name: "document input", code: dserr.CodeDocumentInputInvalid, status: 400, check: dserr.IsInvalidInput},
		{name: "store invalid input", code: dserr.CodeStoreInvalidInput, status: 400, check: dserr.IsInvalidInput},
		{name: "upstream unauthorized", code: dserr.CodeProviderUpstreamUnauthorized, status: 401, check: dserr.IsUnauthorized},
		{name: "rate limited", code: dserr.CodeProviderUpstreamRateLimited, status: 429, check: dserr.IsRateLimited},
		{name: "upstream failure", code: dserr.CodeProviderUpstreamFailure, status: 502, check: dserr.IsUpstreamFailure},
		{name: "internal", code: dserr.CodeServerInternalFailure, status: 500, check: func(err error) bool { return !dserr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dserr.New(tt.code, "boom")
			assert.Equal(t, tt.status, dserr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationOnPlainAndNilErrors(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain")} {
		assert.False(t, dserr.IsNotFound(err))
		assert.False(t, dserr.IsConflict(err))
		assert.False(t, dserr.IsInvalidInput(err))
		assert.False(t, dserr.IsUnauthorized(err))
		assert.False(t, dserr.IsRateLimited(err))
		assert.False(t, dserr.IsUpstreamFailure(err))
		assert.Equal(t, http.StatusInternalServerError, dserr.HTTPStatus(err))
	}
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := dserr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, dserr.CodeServerInternalFailure, dserr.CodeOf(joined))
}
