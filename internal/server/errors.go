package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"github.com/textlane/textlane/internal/authorization"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	userdomain "github.com/textlane/textlane/internal/user/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrDailyCap       = errors.New("daily_message_cap_exceeded")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    err.Error(),
			Message: validationMessage(err),
		}

	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, invitedomain.ErrInvalidOrExpired),
		errors.Is(err, apikeydomain.ErrInvalidCredential),
		errors.Is(err, apikeydomain.ErrInactive):
		return http.StatusUnauthorized, errorPayload{
			Type:    "invalid_or_expired_credential",
			Code:    err.Error(),
			Message: "invalid or expired credential",
		}

	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}

	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    err.Error(),
			Message: "not found",
		}

	case errors.Is(err, invitedomain.ErrDuplicateInvite),
		errors.Is(err, orgdomain.ErrAlreadyMember),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    err.Error(),
			Message: "conflict",
		}

	case errors.Is(err, orgdomain.ErrLastOwner):
		return http.StatusConflict, errorPayload{
			Type:    "invariant_violation",
			Code:    err.Error(),
			Message: "you are the only owner - transfer ownership first",
		}
	case errors.Is(err, orgdomain.ErrNotOwner):
		return http.StatusConflict, errorPayload{
			Type:    "invariant_violation",
			Code:    err.Error(),
			Message: "only an owner may perform this operation",
		}
	case errors.Is(err, messagedomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invariant_violation",
			Code:    err.Error(),
			Message: "status may only move forward",
		}

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrDailyCap):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Code:    err.Error(),
			Message: "daily message limit reached",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, userdomain.ErrInvalidAuthID),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidOrganization),
		errors.Is(err, orgdomain.ErrInvalidUser),
		errors.Is(err, orgdomain.ErrInvalidRole),
		errors.Is(err, orgdomain.ErrInvalidTier),
		errors.Is(err, invitedomain.ErrInvalidEmail),
		errors.Is(err, invitedomain.ErrInvalidRole),
		errors.Is(err, contactdomain.ErrInvalidPhoneFormat),
		errors.Is(err, contactdomain.ErrInvalidOrganization),
		errors.Is(err, messagedomain.ErrInvalidOrganization),
		errors.Is(err, messagedomain.ErrInvalidRecipient),
		errors.Is(err, messagedomain.ErrEmptyBody),
		errors.Is(err, messagedomain.ErrInvalidService),
		errors.Is(err, messagedomain.ErrInvalidStatus),
		errors.Is(err, apikeydomain.ErrInvalidOrganization),
		errors.Is(err, apikeydomain.ErrInvalidUser),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidPermission):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrNotMember),
		errors.Is(err, invitedomain.ErrNotFound),
		errors.Is(err, messagedomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationMessage(err error) string {
	code := err.Error()
	if field, ok := strings.CutPrefix(code, "invalid_"); ok {
		return "invalid " + strings.ReplaceAll(field, "_", " ")
	}
	return "validation error"
}

// classifyErrorForLog maps errors to (type, code) pairs for the request log.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Code
}
