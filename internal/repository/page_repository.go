package repository

import (
	"database/sql"

	"page-review/internal/models"
)

// PageRepository handles database operations for pages and revisions. Page
// content and publishing belong to the CMS; the review layer only needs the
// references to scope grants and comments.
type PageRepository struct {
	db *sql.DB
}

// NewPageRepository creates a new page repository
func NewPageRepository(db *sql.DB) *PageRepository {
	return &PageRepository{db: db}
}

// GetPage retrieves a page by id
func (r *PageRepository) GetPage(id uint) (*models.Page, error) {
	var page models.Page
	err := r.db.QueryRow(
		`SELECT id, title FROM pages WHERE id = $1`,
		id,
	).Scan(&page.ID, &page.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetRevision retrieves a revision by id
func (r *PageRepository) GetRevision(id uint) (*models.Revision, error) {
	var revision models.Revision
	err := r.db.QueryRow(
		`SELECT id, page_id, created_at FROM page_revisions WHERE id = $1`,
		id,
	).Scan(&revision.ID, &revision.PageID, &revision.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &revision, nil
}

// LatestRevision retrieves the most recent revision of a page
func (r *PageRepository) LatestRevision(pageID uint) (*models.Revision, error) {
	var revision models.Revision
	err := r.db.QueryRow(
		`SELECT id, page_id, created_at FROM page_revisions
		 WHERE page_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		pageID,
	).Scan(&revision.ID, &revision.PageID, &revision.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &revision, nil
}
