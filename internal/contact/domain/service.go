package domain

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var e164 = regexp.MustCompile(`^\+[0-9]{7,14}$`)

// NormalizePhoneNumber strips common formatting characters and validates the
// result against E.164: a leading plus followed by 7 to 14 digits.
func NormalizePhoneNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case ' ', '-', '.', '(', ')':
			continue
		}
		b.WriteRune(r)
	}
	normalized := b.String()
	if !e164.MatchString(normalized) {
		return "", ErrInvalidPhoneFormat
	}
	return normalized, nil
}

type Service interface {
	// GetOrCreate resolves a raw phone number to its canonical contact,
	// creating the row on first reference. Safe under concurrent calls for
	// the same number.
	GetOrCreate(ctx context.Context, rawPhone string) (*Contact, error)

	// Upsert resolves the canonical contact and inserts or overwrites the
	// per-organization relationship row. Idempotent.
	Upsert(ctx context.Context, orgID snowflake.ID, req UpsertRequest) (snowflake.ID, error)

	Search(ctx context.Context, orgID snowflake.ID, req SearchRequest) ([]View, error)
}

type UpsertRequest struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	Email       string
	Subscribed  bool
	Notes       string
}

type SearchRequest struct {
	Query          string
	SubscribedOnly bool
}

// View is the denormalized relationship row returned by Search.
type View struct {
	ContactID   string    `json:"contact_id"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Subscribed  bool      `json:"subscribed"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrInvalidPhoneFormat  = errors.New("invalid_phone_format")
	ErrInvalidOrganization = errors.New("invalid_organization")
)
