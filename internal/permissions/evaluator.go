// Package permissions decides what a reviewer may do with a revision. It
// unifies the ad-hoc share path and the formal assignment path under one
// most-permissive-wins rule.
package permissions

import (
	"time"

	"page-review/internal/models"
	"page-review/internal/workflow"
)

// shareFinder is the subset of the share repository the evaluator needs.
type shareFinder interface {
	FindByReviewerAndPage(externalReviewerID, pageID uint) (*models.Share, error)
}

// Evaluator answers permission questions for one reviewer against one
// revision. Build a fresh one per request; the share, lifecycle snapshot, and
// assignment check are each loaded at most once and cached for the
// evaluation's lifetime.
//
// Missing data is an answer, not an error: a reviewer with no share and no
// assignment simply has no permissions.
type Evaluator struct {
	reviewer *models.Reviewer
	revision *models.Revision
	gate     workflow.Gate
	shares   shareFinder
	now      time.Time

	shareLoaded    bool
	share          *models.Share
	snapshot       *workflow.Snapshot
	assigneeLoaded bool
	assignee       bool
}

// NewEvaluator creates an evaluator for one reviewer and revision
func NewEvaluator(reviewer *models.Reviewer, revision *models.Revision, gate workflow.Gate, shares shareFinder, now time.Time) *Evaluator {
	return &Evaluator{
		reviewer: reviewer,
		revision: revision,
		gate:     gate,
		shares:   shares,
		now:      now,
	}
}

// Share returns the live (non-expired) share granting the reviewer access to
// the revision's page, or nil. Internal reviewers never hold shares.
func (e *Evaluator) Share() (*models.Share, error) {
	if e.shareLoaded {
		return e.share, nil
	}
	e.shareLoaded = true
	if !e.reviewer.IsExternal() {
		return nil, nil
	}
	share, err := e.shares.FindByReviewerAndPage(*e.reviewer.ExternalID, e.revision.PageID)
	if err != nil {
		return nil, err
	}
	if share != nil && share.Expired(e.now) {
		share = nil
	}
	e.share = share
	return e.share, nil
}

func (e *Evaluator) loadSnapshot() (*workflow.Snapshot, error) {
	if e.snapshot != nil {
		return e.snapshot, nil
	}
	snapshot, err := e.gate.Snapshot(e.revision.ID)
	if err != nil {
		return nil, err
	}
	e.snapshot = snapshot
	return snapshot, nil
}

// isAssignee reports whether the reviewer is assigned to the revision's
// active review context.
func (e *Evaluator) isAssignee() (bool, error) {
	if e.assigneeLoaded {
		return e.assignee, nil
	}
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return false, err
	}
	assigned, err := e.gate.IsAssignee(snapshot, e.reviewer.ID)
	if err != nil {
		return false, err
	}
	e.assigneeLoaded = true
	e.assignee = assigned
	return assigned, nil
}

// CanView reports whether the reviewer may see the revision.
//
// Internal reviewers see everything unless the lifecycle model gates viewing,
// in which case assignment to the active stage is required. External
// reviewers need a live share or an assignment.
func (e *Evaluator) CanView() (bool, error) {
	if e.reviewer.IsInternal() {
		if !e.gate.RestrictsView() {
			return true, nil
		}
		snapshot, err := e.loadSnapshot()
		if err != nil {
			return false, err
		}
		if !snapshot.Active {
			return true, nil
		}
		return e.isAssignee()
	}

	share, err := e.Share()
	if err != nil {
		return false, err
	}
	if share != nil {
		return true, nil
	}
	return e.isAssignee()
}

// CanComment reports whether the reviewer may create comments. A share with
// can_comment and a formal assignment each suffice on their own.
func (e *Evaluator) CanComment() (bool, error) {
	if e.reviewer.IsInternal() {
		return e.CanView()
	}

	share, err := e.Share()
	if err != nil {
		return false, err
	}
	if share != nil && share.CanComment {
		return true, nil
	}
	return e.isAssignee()
}

// CanRespond reports whether the reviewer may submit a final verdict. Only a
// formal assignment to a context that offers one grants this; a share alone
// never does.
func (e *Evaluator) CanRespond() (bool, error) {
	snapshot, err := e.loadSnapshot()
	if err != nil {
		return false, err
	}
	if !snapshot.OffersVerdict {
		return false, nil
	}
	return e.isAssignee()
}
