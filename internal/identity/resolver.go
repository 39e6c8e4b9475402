// Package identity resolves users and external email addresses into the
// unified reviewer entity the rest of the service keys on.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"page-review/internal/models"
)

// ErrInvalidEmail is returned when an address has no usable form. It is a
// validation error: callers surface it to the client, not to the operator.
var ErrInvalidEmail = fmt.Errorf("%w: invalid email address", models.ErrValidation)

// reviewerStore is the subset of the reviewer repository the resolver needs.
type reviewerStore interface {
	GetByInternalID(userID uint) (*models.Reviewer, error)
	GetByExternalID(externalID uint) (*models.Reviewer, error)
	CreateInternal(userID uint) (*models.Reviewer, error)
	CreateExternal(externalID uint) (*models.Reviewer, error)
}

// externalReviewerStore is the subset of the external reviewer repository the
// resolver needs.
type externalReviewerStore interface {
	GetByEmail(email string) (*models.ExternalReviewer, error)
	Create(email string) (*models.ExternalReviewer, error)
}

// Resolver maps identities onto reviewer rows, creating them on first sight.
type Resolver struct {
	reviewers reviewerStore
	externals externalReviewerStore
}

// NewResolver creates a new identity resolver
func NewResolver(reviewers reviewerStore, externals externalReviewerStore) *Resolver {
	return &Resolver{reviewers: reviewers, externals: externals}
}

// NormalizeEmail lowercases the domain part of an address. The local part is
// left untouched because mailbox names are case sensitive in principle. The
// domain starts after the last "@" so quoted local parts containing "@" keep
// their casing.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:]), nil
}

// ReviewerForUser returns the reviewer row backing an internal user, creating
// it the first time. Safe under concurrent calls: when the insert loses a
// race the winner's row is fetched instead.
func (r *Resolver) ReviewerForUser(userID uint) (*models.Reviewer, error) {
	reviewer, err := r.reviewers.GetByInternalID(userID)
	if err != nil {
		return nil, err
	}
	if reviewer != nil {
		return reviewer, nil
	}

	reviewer, err = r.reviewers.CreateInternal(userID)
	if errors.Is(err, models.ErrConstraintViolation) {
		return r.reviewers.GetByInternalID(userID)
	}
	if err != nil {
		return nil, err
	}
	return reviewer, nil
}

// ReviewerForEmail returns the reviewer row backing an external email
// address, creating the external reviewer and reviewer rows as needed. The
// address is normalized before lookup so case variants of the same mailbox
// domain collapse to one identity.
func (r *Resolver) ReviewerForEmail(email string) (*models.Reviewer, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	external, err := r.externals.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if external == nil {
		external, err = r.externals.Create(normalized)
		if errors.Is(err, models.ErrConstraintViolation) {
			external, err = r.externals.GetByEmail(normalized)
		}
		if err != nil {
			return nil, err
		}
	}

	reviewer, err := r.reviewers.GetByExternalID(external.ID)
	if err != nil {
		return nil, err
	}
	if reviewer != nil {
		return reviewer, nil
	}

	reviewer, err = r.reviewers.CreateExternal(external.ID)
	if errors.Is(err, models.ErrConstraintViolation) {
		return r.reviewers.GetByExternalID(external.ID)
	}
	if err != nil {
		return nil, err
	}
	return reviewer, nil
}
