// Package handlers defines HTTP-layer error codes used across all API
// endpoints, and the translation from domain error kinds to HTTP responses.
//
// Codes are lowercase, snake_case, and mirror common HTTP status semantics to
// aid interoperability. Handlers never branch on concrete error values from
// lower layers; they classify with errors.Is against the domain sentinels and
// map the kind to a status and code here.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodePrecondition     = "precondition_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeUpstream         = "upstream_failed"
	ErrCodeTimeout          = "timeout"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failDomain translates a domain-classified error into the HTTP error
// envelope. Unclassified errors are treated as infrastructure failures and
// surface as 500 without leaking internals.
func failDomain(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Do not expose driver or storage details to clients.
		msg = "internal server error"
	}
	fail(c, status, code, msg)
}

// statusFor maps a domain error kind to (HTTP status, stable code).
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusConflict, ErrCodePrecondition
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, ErrCodeUpstream
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
