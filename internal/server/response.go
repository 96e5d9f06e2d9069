// ABOUTME: JSON response helpers and the error envelope returned by every API route.
// ABOUTME: Maps the shared error taxonomy onto HTTP status codes.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harperreed/cradle/internal/errs"
)

// APIError is the body of a failed request.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope and aborts the chain.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondOK writes payload with status 200.
func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// StatusFor maps a core error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrOwnershipConflict):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status and code for err. Internal errors are logged
// and replaced by a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		s.log.Error("request failed", "path", c.FullPath(), "owner", ownerID(c), "error", err)
		RespondError(c, status, errs.Code(err), errors.New("internal error"))
		return
	}
	RespondError(c, status, errs.Code(err), err)
}
