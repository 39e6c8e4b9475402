package workflow

import (
	"fmt"
	"time"

	"page-review/internal/models"
)

// taskStore is the subset of the task state repository the task gate needs.
type taskStore interface {
	GetActiveState(revisionID uint) (*models.TaskState, error)
	GetState(id uint) (*models.TaskState, error)
	IsTaskReviewer(taskID, reviewerID uint) (bool, error)
	Finish(stateID uint, status string, comment string, reviewerID uint, finishedAt time.Time) (*models.TaskState, error)
}

// TaskGate implements the workflow-integrated lifecycle model: a revision is
// governed by the in-progress state of an approval pipeline stage. Internal
// viewing requires stage assignment while a stage is active, and a terminal
// state accepts no further action.
type TaskGate struct {
	tasks taskStore
}

// NewTaskGate creates a gate over the task state store
func NewTaskGate(tasks taskStore) *TaskGate {
	return &TaskGate{tasks: tasks}
}

func (g *TaskGate) Snapshot(revisionID uint) (*Snapshot, error) {
	state, err := g.tasks.GetActiveState(revisionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &Snapshot{}, nil
	}
	return &Snapshot{
		Active:        true,
		ContextID:     state.ID,
		OffersVerdict: true,
		taskID:        state.TaskID,
	}, nil
}

func (g *TaskGate) IsAssignee(s *Snapshot, reviewerID uint) (bool, error) {
	if !s.Active {
		return false, nil
	}
	return g.tasks.IsTaskReviewer(s.taskID, reviewerID)
}

func (g *TaskGate) RestrictsView() bool {
	return true
}

func (g *TaskGate) LegalActions(revisionID, reviewerID uint, superuser bool) ([]Action, error) {
	snapshot, err := g.Snapshot(revisionID)
	if err != nil {
		return nil, err
	}
	if !snapshot.Active {
		return []Action{}, nil
	}
	if superuser {
		return reviewActions, nil
	}
	assigned, err := g.IsAssignee(snapshot, reviewerID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return []Action{}, nil
	}
	return reviewActions, nil
}

// ExecuteAction applies a verdict to a task state. approve and reject are
// terminal transitions recorded atomically together with the acting reviewer
// and comment; cancel is terminal without a verdict. Acting on an already
// terminal state fails with models.ErrForbidden.
func (g *TaskGate) ExecuteAction(stateID uint, action string, reviewerID uint, comment string, now time.Time) (*models.TaskState, error) {
	var status string
	switch action {
	case "approve":
		status = models.TaskStateApproved
	case "reject":
		status = models.TaskStateRejected
	case "cancel":
		status = models.TaskStateCancelled
	default:
		return nil, fmt.Errorf("%w: unknown action %q", models.ErrValidation, action)
	}
	return g.tasks.Finish(stateID, status, comment, reviewerID, now)
}
