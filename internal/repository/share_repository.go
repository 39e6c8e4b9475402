package repository

import (
	"database/sql"
	"time"

	"page-review/internal/models"
)

// ShareRepository handles database operations for access grants
type ShareRepository struct {
	db *sql.DB
}

// NewShareRepository creates a new share repository
func NewShareRepository(db *sql.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

const shareColumns = `
	id, external_reviewer_id, page_id, shared_by_id, shared_at,
	can_comment, first_accessed_at, last_accessed_at, expires_at
`

func scanShare(row *sql.Row) (*models.Share, error) {
	var share models.Share
	err := row.Scan(
		&share.ID,
		&share.ExternalReviewerID,
		&share.PageID,
		&share.SharedByID,
		&share.SharedAt,
		&share.CanComment,
		&share.FirstAccessedAt,
		&share.LastAccessedAt,
		&share.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// Create inserts a new share. A second share for the same (external reviewer,
// page) pair fails with models.ErrAlreadyShared.
func (r *ShareRepository) Create(share *models.Share) error {
	query := `
		INSERT INTO shares (external_reviewer_id, page_id, shared_by_id, can_comment, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, shared_at
	`
	err := r.db.QueryRow(
		query,
		share.ExternalReviewerID,
		share.PageID,
		share.SharedByID,
		share.CanComment,
		share.ExpiresAt,
	).Scan(&share.ID, &share.SharedAt)
	if isUniqueViolation(err) {
		return models.ErrAlreadyShared
	}
	return err
}

// GetByID retrieves a share by id
func (r *ShareRepository) GetByID(id uint) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE id = $1`
	return scanShare(r.db.QueryRow(query, id))
}

// FindByReviewerAndPage retrieves the share for an (external reviewer, page)
// pair. At most one exists given the uniqueness constraint.
func (r *ShareRepository) FindByReviewerAndPage(externalReviewerID, pageID uint) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE external_reviewer_id = $1 AND page_id = $2`
	return scanShare(r.db.QueryRow(query, externalReviewerID, pageID))
}

// LogAccess updates the access-log fields: last_accessed_at on every call,
// first_accessed_at only the first time. Concurrent calls are last-write-wins
// on last_accessed_at, which is acceptable imprecision.
func (r *ShareRepository) LogAccess(shareID uint, now time.Time) error {
	query := `
		UPDATE shares
		SET last_accessed_at = $2,
		    first_accessed_at = COALESCE(first_accessed_at, $2)
		WHERE id = $1
	`
	_, err := r.db.Exec(query, shareID, now)
	return err
}

// UpdateExpiry sets a new expiry (nil means the share never expires)
func (r *ShareRepository) UpdateExpiry(shareID uint, expiresAt *time.Time) error {
	result, err := r.db.Exec(`UPDATE shares SET expires_at = $2 WHERE id = $1`, shareID, expiresAt)
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

// ListByPage retrieves all shares for a page with the reviewer emails
func (r *ShareRepository) ListByPage(pageID uint) ([]models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE page_id = $1 ORDER BY shared_at`
	rows, err := r.db.Query(query, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize with empty slice instead of nil to avoid JSON null
	shares := []models.Share{}
	for rows.Next() {
		var share models.Share
		err := rows.Scan(
			&share.ID,
			&share.ExternalReviewerID,
			&share.PageID,
			&share.SharedByID,
			&share.SharedAt,
			&share.CanComment,
			&share.FirstAccessedAt,
			&share.LastAccessedAt,
			&share.ExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}

	return shares, rows.Err()
}
