package repository

import (
	"database/sql"
	"log/slog"

	"page-review/internal/models"
)

// ReviewRequestRepository handles database operations for review requests
// and their assignees
type ReviewRequestRepository struct {
	db *sql.DB
}

// NewReviewRequestRepository creates a new review request repository
func NewReviewRequestRepository(db *sql.DB) *ReviewRequestRepository {
	return &ReviewRequestRepository{db: db}
}

// Create inserts a review request together with its assignees in one
// transaction so a reader never observes a request without assignees.
func (r *ReviewRequestRepository) Create(request *models.ReviewRequest, assigneeIDs []uint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	err = tx.QueryRow(
		`INSERT INTO review_requests (revision_id, submitted_by_id)
		 VALUES ($1, $2) RETURNING id, submitted_at, is_closed`,
		request.RevisionID,
		request.SubmittedByID,
	).Scan(&request.ID, &request.SubmittedAt, &request.IsClosed)
	if err != nil {
		return err
	}

	for _, reviewerID := range assigneeIDs {
		if _, err := tx.Exec(
			`INSERT INTO review_request_assignees (request_id, reviewer_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			request.ID, reviewerID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a review request by id
func (r *ReviewRequestRepository) GetByID(id uint) (*models.ReviewRequest, error) {
	var request models.ReviewRequest
	err := r.db.QueryRow(
		`SELECT id, revision_id, submitted_by_id, submitted_at, is_closed
		 FROM review_requests WHERE id = $1`,
		id,
	).Scan(&request.ID, &request.RevisionID, &request.SubmittedByID, &request.SubmittedAt, &request.IsClosed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// GetOpenByRevision retrieves the most recent open request for a revision
func (r *ReviewRequestRepository) GetOpenByRevision(revisionID uint) (*models.ReviewRequest, error) {
	var request models.ReviewRequest
	err := r.db.QueryRow(
		`SELECT id, revision_id, submitted_by_id, submitted_at, is_closed
		 FROM review_requests
		 WHERE revision_id = $1 AND is_closed = FALSE
		 ORDER BY submitted_at DESC, id DESC LIMIT 1`,
		revisionID,
	).Scan(&request.ID, &request.RevisionID, &request.SubmittedByID, &request.SubmittedAt, &request.IsClosed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// SetClosed flips the closed flag. Returns models.ErrNotFound when the
// request does not exist.
func (r *ReviewRequestRepository) SetClosed(id uint, closed bool) error {
	result, err := r.db.Exec(`UPDATE review_requests SET is_closed = $2 WHERE id = $1`, id, closed)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetAssignees retrieves a request's assignees with identity details
func (r *ReviewRequestRepository) GetAssignees(requestID uint) ([]models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + reviewerJoins + `
		JOIN review_request_assignees a ON a.reviewer_id = r.id
		WHERE a.request_id = $1
		ORDER BY r.id`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize with empty slice instead of nil to avoid JSON null
	reviewers := []models.Reviewer{}
	for rows.Next() {
		var reviewer models.Reviewer
		err := rows.Scan(
			&reviewer.ID,
			&reviewer.InternalID,
			&reviewer.ExternalID,
			&reviewer.InternalEmail,
			&reviewer.InternalName,
			&reviewer.ExternalEmail,
		)
		if err != nil {
			return nil, err
		}
		reviewers = append(reviewers, reviewer)
	}

	return reviewers, rows.Err()
}

// IsAssignee reports whether the reviewer is assigned to the request
func (r *ReviewRequestRepository) IsAssignee(requestID, reviewerID uint) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM review_request_assignees WHERE request_id = $1 AND reviewer_id = $2`,
		requestID, reviewerID,
	).Scan(&count)
	return count > 0, err
}

// AssigneesWithoutResponse retrieves assignees who have not submitted a final
// response to the request yet
func (r *ReviewRequestRepository) AssigneesWithoutResponse(requestID uint) ([]models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + reviewerJoins + `
		JOIN review_request_assignees a ON a.reviewer_id = r.id
		WHERE a.request_id = $1
		  AND r.id NOT IN (
			SELECT submitted_by_id FROM review_responses WHERE request_id = $1
		  )
		ORDER BY r.id`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviewers := []models.Reviewer{}
	for rows.Next() {
		var reviewer models.Reviewer
		err := rows.Scan(
			&reviewer.ID,
			&reviewer.InternalID,
			&reviewer.ExternalID,
			&reviewer.InternalEmail,
			&reviewer.InternalName,
			&reviewer.ExternalEmail,
		)
		if err != nil {
			return nil, err
		}
		reviewers = append(reviewers, reviewer)
	}

	return reviewers, rows.Err()
}
