package models

import (
	"time"
)

// User represents an internal CMS account. Account management itself lives in
// the content-management platform; this table only mirrors what the review
// layer needs (identity, email for notifications, notification preference).
type User struct {
	ID                  uint      `json:"id" db:"id"`
	Email               string    `json:"email" db:"email"`
	FirstName           string    `json:"first_name" db:"first_name"`
	LastName            string    `json:"last_name" db:"last_name"`
	IsSuperuser         bool      `json:"is_superuser" db:"is_superuser"`
	ReviewNotifications bool      `json:"review_notifications" db:"review_notifications"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// FullName returns the display name for a user, falling back to the email.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// ExternalReviewer represents a person without a CMS account who may view and
// comment on draft revisions. Identified solely by a normalized email address.
type ExternalReviewer struct {
	ID        uint      `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Reviewer unifies internal users and external reviewers into one entity that
// foreign keys can reference. Exactly one of InternalID and ExternalID is set;
// the database enforces this with a CHECK constraint plus partial unique
// indexes on each side.
type Reviewer struct {
	ID         uint  `json:"id" db:"id"`
	InternalID *uint `json:"internal_id,omitempty" db:"internal_id"`
	ExternalID *uint `json:"external_id,omitempty" db:"external_id"`

	// Populated fields (not from the reviewers table itself)
	InternalEmail string `json:"-" db:"-"`
	InternalName  string `json:"-" db:"-"`
	ExternalEmail string `json:"-" db:"-"`
}

// IsInternal reports whether this reviewer is backed by a CMS account.
func (r *Reviewer) IsInternal() bool {
	return r.InternalID != nil
}

// IsExternal reports whether this reviewer is an account-less external party.
func (r *Reviewer) IsExternal() bool {
	return r.ExternalID != nil
}

// Email returns the address the reviewer can be reached at.
func (r *Reviewer) Email() string {
	if r.IsInternal() {
		return r.InternalEmail
	}
	return r.ExternalEmail
}

// Name returns a display name. External reviewers are known only by email.
func (r *Reviewer) Name() string {
	if r.IsInternal() && r.InternalName != "" {
		return r.InternalName
	}
	return r.Email()
}

// Page represents a CMS page that revisions belong to. Page storage and
// publishing are owned by the platform; only the reference is kept here.
type Page struct {
	ID    uint   `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
}

// Revision is an immutable snapshot of a page submitted for review.
type Revision struct {
	ID        uint      `json:"id" db:"id"`
	PageID    uint      `json:"page_id" db:"page_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Share grants an external reviewer standing access to draft revisions of one
// page. At most one share exists per (external reviewer, page) pair.
type Share struct {
	ID                 uint       `json:"id" db:"id"`
	ExternalReviewerID uint       `json:"external_reviewer_id" db:"external_reviewer_id"`
	PageID             uint       `json:"page_id" db:"page_id"`
	SharedByID         uint       `json:"shared_by_id" db:"shared_by_id"`
	SharedAt           time.Time  `json:"shared_at" db:"shared_at"`
	CanComment         bool       `json:"can_comment" db:"can_comment"`
	FirstAccessedAt    *time.Time `json:"first_accessed_at,omitempty" db:"first_accessed_at"`
	LastAccessedAt     *time.Time `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Expired reports whether the share has lapsed at the given instant. A share
// with no expiry never expires. The boundary instant itself counts as expired.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// ReviewRequest represents one round of review against one revision.
type ReviewRequest struct {
	ID            uint      `json:"id" db:"id"`
	RevisionID    uint      `json:"revision_id" db:"revision_id"`
	SubmittedByID uint      `json:"submitted_by_id" db:"submitted_by_id"`
	SubmittedAt   time.Time `json:"submitted_at" db:"submitted_at"`
	IsClosed      bool      `json:"is_closed" db:"is_closed"`

	// Loaded separately
	Assignees []Reviewer `json:"assignees,omitempty" db:"-"`
}

// Review response statuses
const (
	ResponseApproved     = "approved"
	ResponseNeedsChanges = "needs-changes"
)

// ReviewResponse is one reviewer's verdict on a ReviewRequest. Immutable once
// created; a reviewer submits at most one per request.
type ReviewResponse struct {
	ID            uint      `json:"id" db:"id"`
	RequestID     uint      `json:"request_id" db:"request_id"`
	SubmittedByID uint      `json:"submitted_by_id" db:"submitted_by_id"`
	SubmittedAt   time.Time `json:"submitted_at" db:"submitted_at"`
	Status        string    `json:"status" db:"status"`
	Comment       string    `json:"comment" db:"comment"`

	// Populated fields (not from DB)
	SubmittedByName string `json:"submitted_by_name,omitempty" db:"-"`
}

// Comment is an annotation anchored to a location within a rendered revision.
type Comment struct {
	ID          uint       `json:"id" db:"id"`
	RevisionID  uint       `json:"revision_id" db:"revision_id"`
	ReviewerID  uint       `json:"reviewer_id" db:"reviewer_id"`
	Quote       string     `json:"quote" db:"quote"`
	Text        string     `json:"text" db:"text"`
	ContentPath string     `json:"content_path" db:"content_path"`
	StartXPath  string     `json:"start_xpath" db:"start_xpath"`
	StartOffset int        `json:"start_offset" db:"start_offset"`
	EndXPath    string     `json:"end_xpath" db:"end_xpath"`
	EndOffset   int        `json:"end_offset" db:"end_offset"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	// Populated fields (not from DB)
	AuthorName string         `json:"author_name,omitempty" db:"-"`
	Replies    []CommentReply `json:"replies,omitempty" db:"-"`
}

// CommentReply is a threaded reply to a Comment.
type CommentReply struct {
	ID         uint      `json:"id" db:"id"`
	CommentID  uint      `json:"comment_id" db:"comment_id"`
	ReviewerID uint      `json:"reviewer_id" db:"reviewer_id"`
	Text       string    `json:"text" db:"text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	// Populated fields (not from DB)
	AuthorName string `json:"author_name,omitempty" db:"-"`
}

// Task states for the workflow-integrated lifecycle model
const (
	TaskStateInProgress = "in_progress"
	TaskStateApproved   = "approved"
	TaskStateRejected   = "rejected"
	TaskStateCancelled  = "cancelled"
)

// ReviewTask is one configured step of a multi-stage approval pipeline, with
// its assigned reviewers. The pipeline engine itself is an external
// collaborator; this table carries only what permission evaluation needs.
type ReviewTask struct {
	ID   uint   `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// Loaded separately
	Reviewers []Reviewer `json:"reviewers,omitempty" db:"-"`
}

// TaskState is the per-revision execution state of a ReviewTask.
type TaskState struct {
	ID                   uint       `json:"id" db:"id"`
	TaskID               uint       `json:"task_id" db:"task_id"`
	RevisionID           uint       `json:"revision_id" db:"revision_id"`
	Status               string     `json:"status" db:"status"`
	Comment              string     `json:"comment" db:"comment"`
	FinishedByReviewerID *uint      `json:"finished_by_reviewer_id,omitempty" db:"finished_by_reviewer_id"`
	StartedAt            time.Time  `json:"started_at" db:"started_at"`
	FinishedAt           *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Terminal reports whether no further action is legal on this state.
func (ts *TaskState) Terminal() bool {
	return ts.Status != TaskStateInProgress
}
