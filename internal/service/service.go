// Package service implements the review workflows on top of the repositories:
// sharing drafts with external reviewers, running review requests, and the
// anchored comment threads.
package service

import (
	"strings"

	"page-review/internal/models"
)

// tokenIssuer mints capability tokens for review links.
type tokenIssuer interface {
	Encode(reviewerID, revisionID uint, contextID *uint) (string, error)
}

// mailer is the notification surface the services send through. Delivery
// failures are logged by the caller and never fail the triggering action.
type mailer interface {
	SendShareInvitation(to, pageTitle, sharedBy, reviewURL string) error
	SendReviewRequest(to, reviewerName, pageTitle, submittedBy, reviewURL string) error
	SendResponseReceived(to, reviewerName, pageTitle, status, comment string) error
}

// pageStore is the subset of the page repository the services need.
type pageStore interface {
	GetPage(id uint) (*models.Page, error)
	GetRevision(id uint) (*models.Revision, error)
	LatestRevision(pageID uint) (*models.Revision, error)
}

// userStore is the subset of the user repository the services need.
type userStore interface {
	GetByID(id uint) (*models.User, error)
	ListSuperusers() ([]models.User, error)
}

// Links builds externally reachable review URLs from capability tokens.
type Links struct {
	base string
}

// NewLinks creates a link builder over the configured base URL
func NewLinks(baseURL string) *Links {
	return &Links{base: strings.TrimRight(baseURL, "/")}
}

// ReviewURL returns the review page URL for a token.
func (l *Links) ReviewURL(token string) string {
	return l.base + "/" + token
}
