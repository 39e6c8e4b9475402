package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for unique constraint violations.
// Get-or-create callers treat it as "someone else won the race" and re-fetch.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// reviewerColumns selects a reviewer row joined with both identity sides so
// that emails and display names come back in one query.
const reviewerColumns = `
	r.id, r.internal_id, r.external_id,
	COALESCE(u.email, ''),
	COALESCE(TRIM(CONCAT(u.first_name, ' ', u.last_name)), ''),
	COALESCE(e.email, '')
`

const reviewerJoins = `
	FROM reviewers r
	LEFT JOIN users u ON u.id = r.internal_id
	LEFT JOIN external_reviewers e ON e.id = r.external_id
`
