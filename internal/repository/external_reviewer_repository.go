package repository

import (
	"database/sql"

	"page-review/internal/models"
)

// ExternalReviewerRepository handles database operations for external reviewers
type ExternalReviewerRepository struct {
	db *sql.DB
}

// NewExternalReviewerRepository creates a new external reviewer repository
func NewExternalReviewerRepository(db *sql.DB) *ExternalReviewerRepository {
	return &ExternalReviewerRepository{db: db}
}

// GetByID retrieves an external reviewer by id
func (r *ExternalReviewerRepository) GetByID(id uint) (*models.ExternalReviewer, error) {
	var reviewer models.ExternalReviewer
	err := r.db.QueryRow(
		`SELECT id, email, created_at FROM external_reviewers WHERE id = $1`,
		id,
	).Scan(&reviewer.ID, &reviewer.Email, &reviewer.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reviewer, nil
}

// GetByEmail retrieves an external reviewer by normalized email
func (r *ExternalReviewerRepository) GetByEmail(email string) (*models.ExternalReviewer, error) {
	var reviewer models.ExternalReviewer
	err := r.db.QueryRow(
		`SELECT id, email, created_at FROM external_reviewers WHERE email = $1`,
		email,
	).Scan(&reviewer.ID, &reviewer.Email, &reviewer.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reviewer, nil
}

// Create inserts a new external reviewer. The caller must have normalized the
// email first or the unique constraint cannot do its job.
func (r *ExternalReviewerRepository) Create(email string) (*models.ExternalReviewer, error) {
	var reviewer models.ExternalReviewer
	err := r.db.QueryRow(
		`INSERT INTO external_reviewers (email) VALUES ($1) RETURNING id, email, created_at`,
		email,
	).Scan(&reviewer.ID, &reviewer.Email, &reviewer.CreatedAt)
	if isUniqueViolation(err) {
		return nil, models.ErrConstraintViolation
	}
	if err != nil {
		return nil, err
	}
	return &reviewer, nil
}
