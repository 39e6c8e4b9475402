package service

import (
	"fmt"
	"log/slog"
	"time"

	"page-review/internal/models"
)

// shareStore is the subset of the share repository the share service needs.
type shareStore interface {
	Create(share *models.Share) error
	GetByID(id uint) (*models.Share, error)
	UpdateExpiry(shareID uint, expiresAt *time.Time) error
	ListByPage(pageID uint) ([]models.Share, error)
}

// emailResolver resolves external email addresses into reviewer rows.
type emailResolver interface {
	ReviewerForEmail(email string) (*models.Reviewer, error)
}

// ShareService grants external reviewers standing access to a page's drafts.
type ShareService struct {
	shares   shareStore
	pages    pageStore
	users    userStore
	identity emailResolver
	tokens   tokenIssuer
	links    *Links
	mailer   mailer
}

// NewShareService creates a new share service
func NewShareService(shares shareStore, pages pageStore, users userStore, identity emailResolver, tokens tokenIssuer, links *Links, mail mailer) *ShareService {
	return &ShareService{
		shares:   shares,
		pages:    pages,
		users:    users,
		identity: identity,
		tokens:   tokens,
		links:    links,
		mailer:   mail,
	}
}

// CreateShare grants an external email address access to a page's drafts and
// sends the invitation email. A second share for the same address and page
// fails with models.ErrAlreadyShared. The invitation is best effort: delivery
// problems are logged and the share stands.
func (s *ShareService) CreateShare(email string, pageID, sharedByUserID uint, canComment bool, expiresAt *time.Time) (*models.Share, error) {
	page, err := s.pages.GetPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return nil, models.ErrNotFound
	}

	reviewer, err := s.identity.ReviewerForEmail(email)
	if err != nil {
		return nil, err
	}

	share := &models.Share{
		ExternalReviewerID: *reviewer.ExternalID,
		PageID:             pageID,
		SharedByID:         sharedByUserID,
		CanComment:         canComment,
		ExpiresAt:          expiresAt,
	}
	if err := s.shares.Create(share); err != nil {
		return nil, err
	}

	s.sendInvitation(reviewer, page, sharedByUserID)

	return share, nil
}

// ExtendShare moves a share's expiry, or clears it for indefinite access.
func (s *ShareService) ExtendShare(shareID uint, expiresAt *time.Time) (*models.Share, error) {
	if err := s.shares.UpdateExpiry(shareID, expiresAt); err != nil {
		return nil, err
	}
	return s.shares.GetByID(shareID)
}

// ListShares returns every share on a page.
func (s *ShareService) ListShares(pageID uint) ([]models.Share, error) {
	return s.shares.ListByPage(pageID)
}

func (s *ShareService) sendInvitation(reviewer *models.Reviewer, page *models.Page, sharedByUserID uint) {
	revision, err := s.pages.LatestRevision(page.ID)
	if err != nil || revision == nil {
		slog.Warn("No revision available for share invitation",
			"page_id", page.ID,
			"error", err,
		)
		return
	}

	token, err := s.tokens.Encode(reviewer.ID, revision.ID, nil)
	if err != nil {
		slog.Error("Failed to issue share invitation token",
			"reviewer_id", reviewer.ID,
			"error", err,
		)
		return
	}

	sharedBy := ""
	if user, err := s.users.GetByID(sharedByUserID); err == nil && user != nil {
		sharedBy = user.FullName()
	}

	if err := s.mailer.SendShareInvitation(reviewer.Email(), page.Title, sharedBy, s.links.ReviewURL(token)); err != nil {
		slog.Error("Failed to send share invitation",
			"to", reviewer.Email(),
			"page_id", page.ID,
			"error", err,
		)
	}
}
