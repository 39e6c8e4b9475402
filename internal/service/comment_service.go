package service

import (
	"fmt"
	"strings"
	"time"

	"page-review/internal/models"
)

// commentStore is the subset of the comment repository the comment service
// needs.
type commentStore interface {
	Create(comment *models.Comment) error
	GetByID(id uint) (*models.Comment, error)
	ListByRevision(revisionID uint) ([]models.Comment, error)
	UpdateText(id uint, text string) error
	SetResolved(id uint, resolvedAt *time.Time) error
	Delete(id uint) error
	CreateReply(reply *models.CommentReply) error
	GetReplyByID(id uint) (*models.CommentReply, error)
	ListReplies(commentID uint) ([]models.CommentReply, error)
	UpdateReplyText(id uint, text string) error
	DeleteReply(id uint) error
}

// CommentInput carries the anchor and text for a new comment.
type CommentInput struct {
	Quote       string `json:"quote"`
	Text        string `json:"text"`
	ContentPath string `json:"content_path"`
	StartXPath  string `json:"start_xpath"`
	StartOffset int    `json:"start_offset"`
	EndXPath    string `json:"end_xpath"`
	EndOffset   int    `json:"end_offset"`
}

// CommentService manages anchored comments and their reply threads. Edits and
// deletions are owner-only; resolution is open to every viewer.
type CommentService struct {
	comments commentStore
}

// NewCommentService creates a new comment service
func NewCommentService(comments commentStore) *CommentService {
	return &CommentService{comments: comments}
}

// CreateComment anchors a new comment on a revision for the acting reviewer.
// The caller is responsible for having checked commenting permission.
func (s *CommentService) CreateComment(reviewerID, revisionID uint, input CommentInput) (*models.Comment, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: comment text must not be empty", models.ErrValidation)
	}

	comment := &models.Comment{
		RevisionID:  revisionID,
		ReviewerID:  reviewerID,
		Quote:       input.Quote,
		Text:        input.Text,
		ContentPath: input.ContentPath,
		StartXPath:  input.StartXPath,
		StartOffset: input.StartOffset,
		EndXPath:    input.EndXPath,
		EndOffset:   input.EndOffset,
	}
	if err := s.comments.Create(comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// ListComments returns a revision's comments with their reply threads
// attached. Comments on other revisions of the same page never appear.
func (s *CommentService) ListComments(revisionID uint) ([]models.Comment, error) {
	comments, err := s.comments.ListByRevision(revisionID)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		replies, err := s.comments.ListReplies(comments[i].ID)
		if err != nil {
			return nil, err
		}
		comments[i].Replies = replies
	}
	return comments, nil
}

// getOwnComment loads a comment on the given revision owned by the actor.
func (s *CommentService) getOwnComment(actorReviewerID, revisionID, commentID uint) (*models.Comment, error) {
	comment, err := s.comments.GetByID(commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.RevisionID != revisionID {
		return nil, models.ErrNotFound
	}
	if comment.ReviewerID != actorReviewerID {
		return nil, models.ErrForbidden
	}
	return comment, nil
}

// UpdateComment rewrites a comment's text. Owner-only.
func (s *CommentService) UpdateComment(actorReviewerID, revisionID, commentID uint, text string) (*models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text must not be empty", models.ErrValidation)
	}
	if _, err := s.getOwnComment(actorReviewerID, revisionID, commentID); err != nil {
		return nil, err
	}
	if err := s.comments.UpdateText(commentID, text); err != nil {
		return nil, err
	}
	return s.comments.GetByID(commentID)
}

// DeleteComment removes a comment and its replies. Owner-only.
func (s *CommentService) DeleteComment(actorReviewerID, revisionID, commentID uint) error {
	if _, err := s.getOwnComment(actorReviewerID, revisionID, commentID); err != nil {
		return err
	}
	return s.comments.Delete(commentID)
}

// ResolveComment marks a comment resolved. Any viewer may do this, so there
// is no ownership check.
func (s *CommentService) ResolveComment(revisionID, commentID uint, now time.Time) (*models.Comment, error) {
	comment, err := s.comments.GetByID(commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.RevisionID != revisionID {
		return nil, models.ErrNotFound
	}
	if err := s.comments.SetResolved(commentID, &now); err != nil {
		return nil, err
	}
	return s.comments.GetByID(commentID)
}

// UnresolveComment clears a comment's resolution marker.
func (s *CommentService) UnresolveComment(revisionID, commentID uint) (*models.Comment, error) {
	comment, err := s.comments.GetByID(commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.RevisionID != revisionID {
		return nil, models.ErrNotFound
	}
	if err := s.comments.SetResolved(commentID, nil); err != nil {
		return nil, err
	}
	return s.comments.GetByID(commentID)
}

// CreateReply adds a reply to a comment's thread.
func (s *CommentService) CreateReply(actorReviewerID, revisionID, commentID uint, text string) (*models.CommentReply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: reply text must not be empty", models.ErrValidation)
	}
	comment, err := s.comments.GetByID(commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.RevisionID != revisionID {
		return nil, models.ErrNotFound
	}

	reply := &models.CommentReply{
		CommentID:  commentID,
		ReviewerID: actorReviewerID,
		Text:       text,
	}
	if err := s.comments.CreateReply(reply); err != nil {
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}
	return reply, nil
}

// getOwnReply loads a reply under the given comment owned by the actor.
func (s *CommentService) getOwnReply(actorReviewerID, revisionID, commentID, replyID uint) (*models.CommentReply, error) {
	comment, err := s.comments.GetByID(commentID)
	if err != nil {
		return nil, err
	}
	if comment == nil || comment.RevisionID != revisionID {
		return nil, models.ErrNotFound
	}
	reply, err := s.comments.GetReplyByID(replyID)
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.CommentID != commentID {
		return nil, models.ErrNotFound
	}
	if reply.ReviewerID != actorReviewerID {
		return nil, models.ErrForbidden
	}
	return reply, nil
}

// UpdateReply rewrites a reply's text. Owner-only.
func (s *CommentService) UpdateReply(actorReviewerID, revisionID, commentID, replyID uint, text string) (*models.CommentReply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: reply text must not be empty", models.ErrValidation)
	}
	if _, err := s.getOwnReply(actorReviewerID, revisionID, commentID, replyID); err != nil {
		return nil, err
	}
	if err := s.comments.UpdateReplyText(replyID, text); err != nil {
		return nil, err
	}
	return s.comments.GetReplyByID(replyID)
}

// DeleteReply removes a reply. Owner-only.
func (s *CommentService) DeleteReply(actorReviewerID, revisionID, commentID, replyID uint) error {
	if _, err := s.getOwnReply(actorReviewerID, revisionID, commentID, replyID); err != nil {
		return err
	}
	return s.comments.DeleteReply(replyID)
}
