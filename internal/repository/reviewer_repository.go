package repository

import (
	"database/sql"

	"page-review/internal/models"
)

// ReviewerRepository handles database operations for the unified Reviewer
// entity. The XOR and uniqueness invariants live in the schema; this layer
// surfaces violations as models.ErrConstraintViolation so callers can fall
// back to re-fetching.
type ReviewerRepository struct {
	db *sql.DB
}

// NewReviewerRepository creates a new reviewer repository
func NewReviewerRepository(db *sql.DB) *ReviewerRepository {
	return &ReviewerRepository{db: db}
}

func scanReviewer(row *sql.Row) (*models.Reviewer, error) {
	var reviewer models.Reviewer
	err := row.Scan(
		&reviewer.ID,
		&reviewer.InternalID,
		&reviewer.ExternalID,
		&reviewer.InternalEmail,
		&reviewer.InternalName,
		&reviewer.ExternalEmail,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reviewer, nil
}

// GetByID retrieves a reviewer with its identity details
func (r *ReviewerRepository) GetByID(id uint) (*models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + reviewerJoins + ` WHERE r.id = $1`
	return scanReviewer(r.db.QueryRow(query, id))
}

// GetByInternalID retrieves the reviewer bound to an internal user, if any
func (r *ReviewerRepository) GetByInternalID(userID uint) (*models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + reviewerJoins + ` WHERE r.internal_id = $1`
	return scanReviewer(r.db.QueryRow(query, userID))
}

// GetByExternalID retrieves the reviewer bound to an external reviewer, if any
func (r *ReviewerRepository) GetByExternalID(externalID uint) (*models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + reviewerJoins + ` WHERE r.external_id = $1`
	return scanReviewer(r.db.QueryRow(query, externalID))
}

// CreateInternal inserts a reviewer bound to an internal user
func (r *ReviewerRepository) CreateInternal(userID uint) (*models.Reviewer, error) {
	var id uint
	err := r.db.QueryRow(
		`INSERT INTO reviewers (internal_id) VALUES ($1) RETURNING id`,
		userID,
	).Scan(&id)
	if isUniqueViolation(err) {
		return nil, models.ErrConstraintViolation
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}

// CreateExternal inserts a reviewer bound to an external reviewer
func (r *ReviewerRepository) CreateExternal(externalID uint) (*models.Reviewer, error) {
	var id uint
	err := r.db.QueryRow(
		`INSERT INTO reviewers (external_id) VALUES ($1) RETURNING id`,
		externalID,
	).Scan(&id)
	if isUniqueViolation(err) {
		return nil, models.ErrConstraintViolation
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(id)
}
