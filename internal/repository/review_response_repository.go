package repository

import (
	"database/sql"

	"page-review/internal/models"
)

// ReviewResponseRepository handles database operations for review responses
type ReviewResponseRepository struct {
	db *sql.DB
}

// NewReviewResponseRepository creates a new review response repository
func NewReviewResponseRepository(db *sql.DB) *ReviewResponseRepository {
	return &ReviewResponseRepository{db: db}
}

// Create inserts a response. One response per reviewer per request; a
// duplicate maps to models.ErrConstraintViolation.
func (r *ReviewResponseRepository) Create(response *models.ReviewResponse) error {
	err := r.db.QueryRow(
		`INSERT INTO review_responses (request_id, submitted_by_id, status, comment)
		 VALUES ($1, $2, $3, $4) RETURNING id, submitted_at`,
		response.RequestID,
		response.SubmittedByID,
		response.Status,
		response.Comment,
	).Scan(&response.ID, &response.SubmittedAt)
	if isUniqueViolation(err) {
		return models.ErrConstraintViolation
	}
	return err
}

// GetByID retrieves a response by id
func (r *ReviewResponseRepository) GetByID(id uint) (*models.ReviewResponse, error) {
	var response models.ReviewResponse
	err := r.db.QueryRow(
		`SELECT id, request_id, submitted_by_id, status, comment, submitted_at
		 FROM review_responses WHERE id = $1`,
		id,
	).Scan(&response.ID, &response.RequestID, &response.SubmittedByID, &response.Status, &response.Comment, &response.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// ExistsForReviewer reports whether the reviewer already responded to the request
func (r *ReviewResponseRepository) ExistsForReviewer(requestID, reviewerID uint) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM review_responses WHERE request_id = $1 AND submitted_by_id = $2`,
		requestID, reviewerID,
	).Scan(&count)
	return count > 0, err
}

// ListByRequest retrieves all responses for a request with the submitter's
// display name resolved, newest first
func (r *ReviewResponseRepository) ListByRequest(requestID uint) ([]models.ReviewResponse, error) {
	query := `SELECT v.id, v.request_id, v.submitted_by_id, v.status, v.comment, v.submitted_at,
		COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email, e.email, '') AS submitted_by_name
		FROM review_responses v
		JOIN reviewers r ON r.id = v.submitted_by_id
		LEFT JOIN users u ON u.id = r.internal_id
		LEFT JOIN external_reviewers e ON e.id = r.external_id
		WHERE v.request_id = $1
		ORDER BY v.submitted_at DESC, v.id DESC`

	rows, err := r.db.Query(query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize with empty slice instead of nil to avoid JSON null
	responses := []models.ReviewResponse{}
	for rows.Next() {
		var response models.ReviewResponse
		err := rows.Scan(
			&response.ID,
			&response.RequestID,
			&response.SubmittedByID,
			&response.Status,
			&response.Comment,
			&response.SubmittedAt,
			&response.SubmittedByName,
		)
		if err != nil {
			return nil, err
		}
		responses = append(responses, response)
	}

	return responses, rows.Err()
}
