// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreDeckNotFound       Code = "store.deck.get.not_found"
	CodeStoreCardNotFound       Code = "store.card.get.not_found"
	CodeStoreCardInvalid        Code = "store.card.create.invalid_input"
	CodeStoreDeckInvalid        Code = "store.deck.create.invalid_input"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"

	CodeIndexAddFailure    Code = "index.add.upstream_failure"
	CodeIndexRemoveFailure Code = "index.remove.upstream_failure"
	CodeIndexQueryFailure  Code = "index.query.upstream_failure"
	CodeIndexLag           Code = "index.sync.index_lag"

	CodeEmbedRequestInvalid  Code = "embed.request.invalid_input"
	CodeEmbedUpstreamFailure Code = "embed.request.upstream_failure"

	CodeSearchQueryInvalid Code = "search.query.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid_input"
	CodeServerConfigInvalid   Code = "server.config.invalid_value"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldDeckID(value string) Attr {
	return Field("deck_id", value)
}

func FieldCardID(value string) Attr {
	return Field("card_id", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsIndexLag reports whether err marks the partial-failure condition where
// relational data committed but the vector index write did not: the deck and
// cards exist and are authoritative, yet are not searchable until a reindex.
func IsIndexLag(err error) bool {
	return reason(CodeOf(err)) == "index_lag"
}

func IsUpstreamFailure(err error) bool {
	return reason(CodeOf(err)) == "upstream_failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
