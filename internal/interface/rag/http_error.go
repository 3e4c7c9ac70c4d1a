// Package rag is the thin HTTP transport for the ingestion and
// retrieval/answering pipelines, generalizing the teacher's gin-based
// internal/interface/http into a go-chi router over the same handler
// responsibilities (auth, upload/ask, error mapping, rate limiting).
package rag

import (
	"errors"
	"net/http"

	apperrors "github.com/saintwyss/rag-corp-sub003/pkg/errors"
)

// HTTPError carries the status and body a handler wants written, keeping
// the mapping from domain error codes to transport codes in one place.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError constructs an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// asHTTPError maps a domain error into its transport representation,
// branching on apperrors codes rather than string matching.
func asHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	switch {
	case apperrors.IsCode(err, apperrors.CodeValidation):
		return NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		return NewHTTPError(http.StatusNotFound, "not_found", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeForbidden):
		return NewHTTPError(http.StatusForbidden, "forbidden", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeConflict):
		return NewHTTPError(http.StatusConflict, "conflict", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeMissing):
		return NewHTTPError(http.StatusBadRequest, "missing", errMessage(err), err)
	case apperrors.IsCode(err, apperrors.CodeEmbeddingError), apperrors.IsCode(err, apperrors.CodeLLMError), apperrors.IsCode(err, apperrors.CodeStorageError), apperrors.IsCode(err, apperrors.CodeServiceUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, "service_unavailable", errMessage(err), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal_error", errMessage(err), err)
	}
}

// errMessage never leaks a nil error's message to the wire.
func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
