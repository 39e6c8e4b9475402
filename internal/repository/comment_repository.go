package repository

import (
	"database/sql"
	"time"

	"page-review/internal/models"
)

// CommentRepository handles database operations for anchored comments and
// their replies
type CommentRepository struct {
	db *sql.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// authorName resolves a reviewer's display name in SQL the same way for
// comments and replies. External reviewers are known only by email.
const authorName = `COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email, e.email, '')`

// Create inserts a comment anchored to a revision
func (r *CommentRepository) Create(comment *models.Comment) error {
	return r.db.QueryRow(
		`INSERT INTO comments (revision_id, reviewer_id, quote, text, content_path,
		                       start_xpath, start_offset, end_xpath, end_offset)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		comment.RevisionID,
		comment.ReviewerID,
		comment.Quote,
		comment.Text,
		comment.ContentPath,
		comment.StartXPath,
		comment.StartOffset,
		comment.EndXPath,
		comment.EndOffset,
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
}

// GetByID retrieves a comment by id with the author's display name
func (r *CommentRepository) GetByID(id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.QueryRow(
		`SELECT c.id, c.revision_id, c.reviewer_id, c.quote, c.text, c.content_path,
		        c.start_xpath, c.start_offset, c.end_xpath, c.end_offset,
		        c.created_at, c.updated_at, c.resolved_at, `+authorName+`
		 FROM comments c
		 JOIN reviewers r ON r.id = c.reviewer_id
		 LEFT JOIN users u ON u.id = r.internal_id
		 LEFT JOIN external_reviewers e ON e.id = r.external_id
		 WHERE c.id = $1`,
		id,
	).Scan(
		&comment.ID, &comment.RevisionID, &comment.ReviewerID, &comment.Quote,
		&comment.Text, &comment.ContentPath, &comment.StartXPath, &comment.StartOffset,
		&comment.EndXPath, &comment.EndOffset, &comment.CreatedAt, &comment.UpdatedAt,
		&comment.ResolvedAt, &comment.AuthorName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByRevision retrieves all comments on a revision, oldest first, with
// author names resolved
func (r *CommentRepository) ListByRevision(revisionID uint) ([]models.Comment, error) {
	rows, err := r.db.Query(
		`SELECT c.id, c.revision_id, c.reviewer_id, c.quote, c.text, c.content_path,
		        c.start_xpath, c.start_offset, c.end_xpath, c.end_offset,
		        c.created_at, c.updated_at, c.resolved_at, `+authorName+`
		 FROM comments c
		 JOIN reviewers r ON r.id = c.reviewer_id
		 LEFT JOIN users u ON u.id = r.internal_id
		 LEFT JOIN external_reviewers e ON e.id = r.external_id
		 WHERE c.revision_id = $1
		 ORDER BY c.created_at ASC, c.id ASC`,
		revisionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Initialize with empty slice instead of nil to avoid JSON null
	comments := []models.Comment{}
	for rows.Next() {
		var comment models.Comment
		err := rows.Scan(
			&comment.ID, &comment.RevisionID, &comment.ReviewerID, &comment.Quote,
			&comment.Text, &comment.ContentPath, &comment.StartXPath, &comment.StartOffset,
			&comment.EndXPath, &comment.EndOffset, &comment.CreatedAt, &comment.UpdatedAt,
			&comment.ResolvedAt, &comment.AuthorName,
		)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}

// UpdateText replaces the comment text. Returns models.ErrNotFound when the
// comment does not exist.
func (r *CommentRepository) UpdateText(id uint, text string) error {
	result, err := r.db.Exec(
		`UPDATE comments SET text = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, text,
	)
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

// SetResolved marks the comment resolved at the given instant, or clears the
// marker when resolvedAt is nil
func (r *CommentRepository) SetResolved(id uint, resolvedAt *time.Time) error {
	result, err := r.db.Exec(`UPDATE comments SET resolved_at = $2 WHERE id = $1`, id, resolvedAt)
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

// Delete removes a comment and, via cascade, its replies
func (r *CommentRepository) Delete(id uint) error {
	result, err := r.db.Exec(`DELETE FROM comments WHERE id = $1`, id)
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

// CreateReply inserts a reply to a comment
func (r *CommentRepository) CreateReply(reply *models.CommentReply) error {
	return r.db.QueryRow(
		`INSERT INTO comment_replies (comment_id, reviewer_id, text)
		 VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
		reply.CommentID,
		reply.ReviewerID,
		reply.Text,
	).Scan(&reply.ID, &reply.CreatedAt, &reply.UpdatedAt)
}

// GetReplyByID retrieves a reply by id
func (r *CommentRepository) GetReplyByID(id uint) (*models.CommentReply, error) {
	var reply models.CommentReply
	err := r.db.QueryRow(
		`SELECT p.id, p.comment_id, p.reviewer_id, p.text, p.created_at, p.updated_at, `+authorName+`
		 FROM comment_replies p
		 JOIN reviewers r ON r.id = p.reviewer_id
		 LEFT JOIN users u ON u.id = r.internal_id
		 LEFT JOIN external_reviewers e ON e.id = r.external_id
		 WHERE p.id = $1`,
		id,
	).Scan(&reply.ID, &reply.CommentID, &reply.ReviewerID, &reply.Text, &reply.CreatedAt, &reply.UpdatedAt, &reply.AuthorName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// ListReplies retrieves all replies to a comment, oldest first
func (r *CommentRepository) ListReplies(commentID uint) ([]models.CommentReply, error) {
	rows, err := r.db.Query(
		`SELECT p.id, p.comment_id, p.reviewer_id, p.text, p.created_at, p.updated_at, `+authorName+`
		 FROM comment_replies p
		 JOIN reviewers r ON r.id = p.reviewer_id
		 LEFT JOIN users u ON u.id = r.internal_id
		 LEFT JOIN external_reviewers e ON e.id = r.external_id
		 WHERE p.comment_id = $1
		 ORDER BY p.created_at ASC, p.id ASC`,
		commentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	replies := []models.CommentReply{}
	for rows.Next() {
		var reply models.CommentReply
		err := rows.Scan(&reply.ID, &reply.CommentID, &reply.ReviewerID, &reply.Text, &reply.CreatedAt, &reply.UpdatedAt, &reply.AuthorName)
		if err != nil {
			return nil, err
		}
		replies = append(replies, reply)
	}

	return replies, rows.Err()
}

// UpdateReplyText replaces a reply's text
func (r *CommentRepository) UpdateReplyText(id uint, text string) error {
	result, err := r.db.Exec(
		`UPDATE comment_replies SET text = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		id, text,
	)
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

// DeleteReply removes a reply
func (r *CommentRepository) DeleteReply(id uint) error {
	result, err := r.db.Exec(`DELETE FROM comment_replies WHERE id = $1`, id)
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
