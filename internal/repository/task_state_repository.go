package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"page-review/internal/models"
)

// TaskStateRepository handles database operations for the workflow-integrated
// lifecycle model: review tasks, their assigned reviewers, and per-revision
// task execution states
type TaskStateRepository struct {
	db *sql.DB
}

// NewTaskStateRepository creates a new task state repository
func NewTaskStateRepository(db *sql.DB) *TaskStateRepository {
	return &TaskStateRepository{db: db}
}

const taskStateColumns = `id, task_id, revision_id, status, comment, finished_by_reviewer_id, started_at, finished_at`

func scanTaskState(row *sql.Row) (*models.TaskState, error) {
	var state models.TaskState
	err := row.Scan(
		&state.ID,
		&state.TaskID,
		&state.RevisionID,
		&state.Status,
		&state.Comment,
		&state.FinishedByReviewerID,
		&state.StartedAt,
		&state.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// CreateTask inserts a review task
func (r *TaskStateRepository) CreateTask(task *models.ReviewTask) error {
	return r.db.QueryRow(
		`INSERT INTO review_tasks (name) VALUES ($1) RETURNING id`,
		task.Name,
	).Scan(&task.ID)
}

// GetTask retrieves a review task by id
func (r *TaskStateRepository) GetTask(id uint) (*models.ReviewTask, error) {
	var task models.ReviewTask
	err := r.db.QueryRow(`SELECT id, name FROM review_tasks WHERE id = $1`, id).Scan(&task.ID, &task.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// AddTaskReviewer assigns a reviewer to a task. Idempotent.
func (r *TaskStateRepository) AddTaskReviewer(taskID, reviewerID uint) error {
	_, err := r.db.Exec(
		`INSERT INTO review_task_reviewers (task_id, reviewer_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		taskID, reviewerID,
	)
	return err
}

// IsTaskReviewer reports whether the reviewer is assigned to the task
func (r *TaskStateRepository) IsTaskReviewer(taskID, reviewerID uint) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM review_task_reviewers WHERE task_id = $1 AND reviewer_id = $2`,
		taskID, reviewerID,
	).Scan(&count)
	return count > 0, err
}

// GetTaskReviewers retrieves a task's reviewers with identity details
func (r *TaskStateRepository) GetTaskReviewers(taskID uint) ([]models.Reviewer, error) {
	query := `SELECT ` + reviewerColumns + reviewerJoins + `
		JOIN review_task_reviewers t ON t.reviewer_id = r.id
		WHERE t.task_id = $1
		ORDER BY r.id`

	rows, err := r.db.Query(query, taskID)
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

// CreateState starts a task against a revision in the in_progress status
func (r *TaskStateRepository) CreateState(state *models.TaskState) error {
	state.Status = models.TaskStateInProgress
	return r.db.QueryRow(
		`INSERT INTO task_states (task_id, revision_id, status)
		 VALUES ($1, $2, $3) RETURNING id, started_at`,
		state.TaskID,
		state.RevisionID,
		state.Status,
	).Scan(&state.ID, &state.StartedAt)
}

// GetState retrieves a task state by id
func (r *TaskStateRepository) GetState(id uint) (*models.TaskState, error) {
	return scanTaskState(r.db.QueryRow(
		`SELECT `+taskStateColumns+` FROM task_states WHERE id = $1`, id,
	))
}

// GetActiveState retrieves the in-progress task state for a revision, if any
func (r *TaskStateRepository) GetActiveState(revisionID uint) (*models.TaskState, error) {
	return scanTaskState(r.db.QueryRow(
		`SELECT `+taskStateColumns+`
		 FROM task_states
		 WHERE revision_id = $1 AND status = $2
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		revisionID, models.TaskStateInProgress,
	))
}

// Finish transitions an in-progress state to a terminal status. The WHERE
// clause carries the in_progress guard so two concurrent verdicts cannot both
// win; the loser gets models.ErrForbidden.
func (r *TaskStateRepository) Finish(stateID uint, status string, comment string, reviewerID uint, finishedAt time.Time) (*models.TaskState, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	result, err := tx.Exec(
		`UPDATE task_states
		 SET status = $2, comment = $3, finished_by_reviewer_id = $4, finished_at = $5
		 WHERE id = $1 AND status = $6`,
		stateID, status, comment, reviewerID, finishedAt, models.TaskStateInProgress,
	)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either missing or already finished; distinguish for the caller.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM task_states WHERE id = $1)`, stateID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrForbidden
	}

	state, err := scanTaskState(tx.QueryRow(
		`SELECT ` + taskStateColumns + ` FROM task_states WHERE id = $1`, stateID,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return state, nil
}
