package handlers

import (
	"errors"
	"net/http"

	"userauth/internal/dto"
	"userauth/internal/logging"
	"userauth/internal/service"

	"github.com/gin-gonic/gin"
)

const msgInternal = "Internal Server Error"

// errorRule maps a service error to the response a client sees.
type errorRule struct {
	target  error
	status  int
	message string
	outcome string
}

var (
	registerRules = []errorRule{
		{target: service.ErrUserExists, status: http.StatusBadRequest, message: "User already exists", outcome: "conflict"},
	}
	loginRules = []errorRule{
		{target: service.ErrUserNotFound, status: http.StatusBadRequest, message: "User not found", outcome: "not_found"},
		{target: service.ErrInvalidCredentials, status: http.StatusBadRequest, message: "Invalid credentials", outcome: "invalid_credentials"},
	}
	profileRules = []errorRule{
		{target: service.ErrUnauthorized, status: http.StatusUnauthorized, message: "Unauthorized", outcome: "unauthorized"},
		{target: service.ErrForbidden, status: http.StatusForbidden, message: "Invalid token", outcome: "forbidden"},
		{target: service.ErrUserNotFound, status: http.StatusNotFound, message: "User not found", outcome: "not_found"},
	}
)

// respondError writes the mapped response for err and returns the outcome
// label for metrics. Errors that match no rule are logged and reported as a
// generic 500 carrying only the request id.
func respondError(c *gin.Context, log logging.Logger, rules []errorRule, err error) string {
	if errors.Is(err, service.ErrInvalidInput) {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return "invalid_input"
	}
	for _, r := range rules {
		if errors.Is(err, r.target) {
			abortWithMessage(c, r.status, r.message)
			return r.outcome
		}
	}
	log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	abortWithMessage(c, http.StatusInternalServerError, msgInternal)
	return "error"
}

func abortWithMessage(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Message: msg, RequestID: RequestIDFromContext(c)})
}
