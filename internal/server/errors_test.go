package server

import (
	"errors"
	"net/http"
	"testing"

	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"github.com/textlane/textlane/internal/authorization"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"empty body", messagedomain.ErrEmptyBody, http.StatusBadRequest, "validation_error"},
		{"invalid phone", messagedomain.ErrInvalidRecipient, http.StatusBadRequest, "validation_error"},
		{"bad request", ErrInvalidRequest, http.StatusBadRequest, "validation_error"},
		{"expired invite", invitedomain.ErrInvalidOrExpired, http.StatusUnauthorized, "invalid_or_expired_credential"},
		{"revoked key", apikeydomain.ErrInactive, http.StatusUnauthorized, "invalid_or_expired_credential"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"missing message", messagedomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"not a member", orgdomain.ErrNotMember, http.StatusNotFound, "not_found"},
		{"duplicate invite", invitedomain.ErrDuplicateInvite, http.StatusConflict, "conflict"},
		{"already member", orgdomain.ErrAlreadyMember, http.StatusConflict, "conflict"},
		{"last owner", orgdomain.ErrLastOwner, http.StatusConflict, "invariant_violation"},
		{"not owner", orgdomain.ErrNotOwner, http.StatusConflict, "invariant_violation"},
		{"backward status", messagedomain.ErrInvalidTransition, http.StatusConflict, "invariant_violation"},
		{"throttled", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"daily cap", ErrDailyCap, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			if status != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, status)
			}
			if payload.Type != tc.wantType {
				t.Fatalf("expected type %q, got %q", tc.wantType, payload.Type)
			}
			if payload.Message == "" {
				t.Fatal("expected a message")
			}
		})
	}
}
