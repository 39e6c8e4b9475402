package service

import (
	"errors"
	"fmt"
	"log/slog"

	"page-review/internal/models"
)

// requestStore is the subset of the review request repository the review
// service needs.
type requestStore interface {
	Create(request *models.ReviewRequest, assigneeIDs []uint) error
	GetByID(id uint) (*models.ReviewRequest, error)
	SetClosed(id uint, closed bool) error
	GetAssignees(requestID uint) ([]models.Reviewer, error)
	IsAssignee(requestID, reviewerID uint) (bool, error)
	AssigneesWithoutResponse(requestID uint) ([]models.Reviewer, error)
}

// responseStore is the subset of the review response repository the review
// service needs.
type responseStore interface {
	Create(response *models.ReviewResponse) error
	ExistsForReviewer(requestID, reviewerID uint) (bool, error)
	ListByRequest(requestID uint) ([]models.ReviewResponse, error)
}

// requestResolver resolves both identity kinds for assignee lists.
type requestResolver interface {
	ReviewerForUser(userID uint) (*models.Reviewer, error)
	ReviewerForEmail(email string) (*models.Reviewer, error)
}

// ReviewService runs the review request lifecycle: submission with assignees,
// verdict collection, closing and reopening.
type ReviewService struct {
	requests  requestStore
	responses responseStore
	pages     pageStore
	users     userStore
	identity  requestResolver
	tokens    tokenIssuer
	links     *Links
	mailer    mailer

	// notifySuperusers adds superusers to notification fan-out.
	notifySuperusers bool
}

// NewReviewService creates a new review service
func NewReviewService(requests requestStore, responses responseStore, pages pageStore, users userStore, identity requestResolver, tokens tokenIssuer, links *Links, mail mailer, notifySuperusers bool) *ReviewService {
	return &ReviewService{
		requests:         requests,
		responses:        responses,
		pages:            pages,
		users:            users,
		identity:         identity,
		tokens:           tokens,
		links:            links,
		mailer:           mail,
		notifySuperusers: notifySuperusers,
	}
}

// SubmitRequest opens a review round for a revision. Assignees are given as
// internal user ids and external email addresses; reviewer rows are created
// lazily for both. At least one assignee is required. Every assignee is
// mailed a personal review link carrying the request as token context.
func (s *ReviewService) SubmitRequest(revisionID, submittedByUserID uint, assigneeUserIDs []uint, assigneeEmails []string) (*models.ReviewRequest, error) {
	revision, err := s.pages.GetRevision(revisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revision: %w", err)
	}
	if revision == nil {
		return nil, models.ErrNotFound
	}

	seen := make(map[uint]bool)
	var assignees []models.Reviewer
	for _, userID := range assigneeUserIDs {
		reviewer, err := s.identity.ReviewerForUser(userID)
		if err != nil {
			return nil, err
		}
		if !seen[reviewer.ID] {
			seen[reviewer.ID] = true
			assignees = append(assignees, *reviewer)
		}
	}
	for _, email := range assigneeEmails {
		reviewer, err := s.identity.ReviewerForEmail(email)
		if err != nil {
			return nil, err
		}
		if !seen[reviewer.ID] {
			seen[reviewer.ID] = true
			assignees = append(assignees, *reviewer)
		}
	}
	if len(assignees) == 0 {
		return nil, fmt.Errorf("%w: a review request needs at least one assignee", models.ErrValidation)
	}

	request := &models.ReviewRequest{
		RevisionID:    revisionID,
		SubmittedByID: submittedByUserID,
	}
	ids := make([]uint, len(assignees))
	for i, assignee := range assignees {
		ids[i] = assignee.ID
	}
	if err := s.requests.Create(request, ids); err != nil {
		return nil, fmt.Errorf("failed to create review request: %w", err)
	}
	request.Assignees = assignees

	s.sendRequestEmails(request, revision, assignees)

	return request, nil
}

// CloseRequest stops a request from accepting further responses. Comments on
// the revision stay readable.
func (s *ReviewService) CloseRequest(requestID uint) error {
	return s.requests.SetClosed(requestID, true)
}

// ReopenRequest makes a closed request accept responses again.
func (s *ReviewService) ReopenRequest(requestID uint) error {
	return s.requests.SetClosed(requestID, false)
}

// GetRequest loads a request with its assignees.
func (s *ReviewService) GetRequest(requestID uint) (*models.ReviewRequest, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.ErrNotFound
	}
	assignees, err := s.requests.GetAssignees(requestID)
	if err != nil {
		return nil, err
	}
	request.Assignees = assignees
	return request, nil
}

// SubmitResponse records a reviewer's final verdict on a request. Only
// assignees of an open request may respond, and only once; every other case
// is models.ErrForbidden. The request submitter is notified best effort.
func (s *ReviewService) SubmitResponse(requestID uint, reviewer *models.Reviewer, status, comment string) (*models.ReviewResponse, error) {
	if status != models.ResponseApproved && status != models.ResponseNeedsChanges {
		return nil, fmt.Errorf("%w: unknown response status %q", models.ErrValidation, status)
	}

	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.ErrNotFound
	}
	if request.IsClosed {
		return nil, models.ErrForbidden
	}

	assigned, err := s.requests.IsAssignee(requestID, reviewer.ID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, models.ErrForbidden
	}

	responded, err := s.responses.ExistsForReviewer(requestID, reviewer.ID)
	if err != nil {
		return nil, err
	}
	if responded {
		return nil, models.ErrForbidden
	}

	response := &models.ReviewResponse{
		RequestID:     requestID,
		SubmittedByID: reviewer.ID,
		Status:        status,
		Comment:       comment,
	}
	if err := s.responses.Create(response); err != nil {
		// A concurrent duplicate hits the unique constraint instead of the
		// existence check above.
		if errors.Is(err, models.ErrConstraintViolation) {
			return nil, models.ErrForbidden
		}
		return nil, err
	}

	s.notifyResponseReceived(request, reviewer, response)

	return response, nil
}

// ListResponses returns every response on a request, newest first.
func (s *ReviewService) ListResponses(requestID uint) ([]models.ReviewResponse, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.ErrNotFound
	}
	return s.responses.ListByRequest(requestID)
}

// AssigneesAwaitingResponse returns the assignees who have not yet responded.
func (s *ReviewService) AssigneesAwaitingResponse(requestID uint) ([]models.Reviewer, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, models.ErrNotFound
	}
	return s.requests.AssigneesWithoutResponse(requestID)
}

// validRecipients filters reviewers down to those who should receive a
// notification: the triggering actor is dropped, internal reviewers honor
// their notification preference, and superusers are added when configured.
func (s *ReviewService) validRecipients(reviewers []models.Reviewer, excludeReviewerID uint) []recipient {
	recipients := []recipient{}
	seenEmails := make(map[string]bool)

	for _, reviewer := range reviewers {
		if reviewer.ID == excludeReviewerID {
			continue
		}
		if reviewer.IsInternal() {
			user, err := s.users.GetByID(*reviewer.InternalID)
			if err != nil || user == nil || !user.ReviewNotifications {
				continue
			}
			if !seenEmails[user.Email] {
				seenEmails[user.Email] = true
				recipients = append(recipients, recipient{email: user.Email, name: user.FullName()})
			}
			continue
		}
		email := reviewer.Email()
		if email != "" && !seenEmails[email] {
			seenEmails[email] = true
			recipients = append(recipients, recipient{email: email, name: reviewer.Name()})
		}
	}

	if s.notifySuperusers {
		superusers, err := s.users.ListSuperusers()
		if err != nil {
			slog.Error("Failed to load superusers for notification", "error", err)
			return recipients
		}
		for _, user := range superusers {
			if !seenEmails[user.Email] {
				seenEmails[user.Email] = true
				recipients = append(recipients, recipient{email: user.Email, name: user.FullName()})
			}
		}
	}

	return recipients
}

type recipient struct {
	email string
	name  string
}

func (s *ReviewService) sendRequestEmails(request *models.ReviewRequest, revision *models.Revision, assignees []models.Reviewer) {
	page, err := s.pages.GetPage(revision.PageID)
	if err != nil || page == nil {
		slog.Warn("No page found for request emails", "revision_id", revision.ID, "error", err)
		return
	}

	submittedBy := ""
	if user, err := s.users.GetByID(request.SubmittedByID); err == nil && user != nil {
		submittedBy = user.FullName()
	}

	for _, assignee := range assignees {
		if assignee.IsInternal() {
			user, err := s.users.GetByID(*assignee.InternalID)
			if err != nil || user == nil || !user.ReviewNotifications {
				continue
			}
		}
		email := assignee.Email()
		if email == "" {
			continue
		}

		contextID := request.ID
		token, err := s.tokens.Encode(assignee.ID, revision.ID, &contextID)
		if err != nil {
			slog.Error("Failed to issue request token",
				"reviewer_id", assignee.ID,
				"request_id", request.ID,
				"error", err,
			)
			continue
		}
		if err := s.mailer.SendReviewRequest(email, assignee.Name(), page.Title, submittedBy, s.links.ReviewURL(token)); err != nil {
			slog.Error("Failed to send review request email",
				"to", email,
				"request_id", request.ID,
				"error", err,
			)
		}
	}
}

func (s *ReviewService) notifyResponseReceived(request *models.ReviewRequest, reviewer *models.Reviewer, response *models.ReviewResponse) {
	revision, err := s.pages.GetRevision(request.RevisionID)
	if err != nil || revision == nil {
		return
	}
	page, err := s.pages.GetPage(revision.PageID)
	if err != nil || page == nil {
		return
	}

	assignees, err := s.requests.GetAssignees(request.ID)
	if err != nil {
		slog.Error("Failed to load assignees for response notification", "request_id", request.ID, "error", err)
		assignees = nil
	}
	recipients := s.validRecipients(assignees, reviewer.ID)

	// The submitter always hears about verdicts on their own request,
	// subject to their notification preference.
	if submitter, err := s.users.GetByID(request.SubmittedByID); err == nil && submitter != nil && submitter.ReviewNotifications {
		already := false
		for _, to := range recipients {
			if to.email == submitter.Email {
				already = true
				break
			}
		}
		if !already {
			recipients = append(recipients, recipient{email: submitter.Email, name: submitter.FullName()})
		}
	}

	for _, to := range recipients {
		if err := s.mailer.SendResponseReceived(to.email, reviewer.Name(), page.Title, response.Status, response.Comment); err != nil {
			slog.Error("Failed to send response notification",
				"to", to.email,
				"request_id", request.ID,
				"error", err,
			)
		}
	}
}
