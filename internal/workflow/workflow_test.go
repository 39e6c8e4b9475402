package workflow

import (
	"errors"
	"testing"
	"time"

	"page-review/internal/models"
)

type fakeRequestStore struct {
	open      map[uint]*models.ReviewRequest
	assignees map[uint]map[uint]bool
}

func (f *fakeRequestStore) GetOpenByRevision(revisionID uint) (*models.ReviewRequest, error) {
	return f.open[revisionID], nil
}

func (f *fakeRequestStore) IsAssignee(requestID, reviewerID uint) (bool, error) {
	return f.assignees[requestID][reviewerID], nil
}

// fakeTaskStore mirrors the guarded-update semantics of the real repository:
// only an in-progress state can be finished.
type fakeTaskStore struct {
	states    map[uint]*models.TaskState
	active    map[uint]uint // revision id -> state id
	reviewers map[uint]map[uint]bool
}

func (f *fakeTaskStore) GetActiveState(revisionID uint) (*models.TaskState, error) {
	id, ok := f.active[revisionID]
	if !ok {
		return nil, nil
	}
	return f.states[id], nil
}

func (f *fakeTaskStore) GetState(id uint) (*models.TaskState, error) {
	return f.states[id], nil
}

func (f *fakeTaskStore) IsTaskReviewer(taskID, reviewerID uint) (bool, error) {
	return f.reviewers[taskID][reviewerID], nil
}

func (f *fakeTaskStore) Finish(stateID uint, status string, comment string, reviewerID uint, finishedAt time.Time) (*models.TaskState, error) {
	state, ok := f.states[stateID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if state.Status != models.TaskStateInProgress {
		return nil, models.ErrForbidden
	}
	state.Status = status
	state.Comment = comment
	state.FinishedByReviewerID = &reviewerID
	state.FinishedAt = &finishedAt
	delete(f.active, state.RevisionID)
	return state, nil
}

func TestSimpleGateSnapshot(t *testing.T) {
	store := &fakeRequestStore{
		open: map[uint]*models.ReviewRequest{
			10: {ID: 5, RevisionID: 10},
		},
		assignees: map[uint]map[uint]bool{
			5: {3: true},
		},
	}
	gate := NewSimpleGate(store)

	snapshot, err := gate.Snapshot(10)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !snapshot.Active || snapshot.ContextID != 5 || !snapshot.OffersVerdict {
		t.Errorf("unexpected snapshot for governed revision: %+v", snapshot)
	}

	assigned, err := gate.IsAssignee(snapshot, 3)
	if err != nil {
		t.Fatalf("assignee check failed: %v", err)
	}
	if !assigned {
		t.Error("expected reviewer 3 to be an assignee")
	}
	assigned, _ = gate.IsAssignee(snapshot, 4)
	if assigned {
		t.Error("expected reviewer 4 not to be an assignee")
	}

	idle, err := gate.Snapshot(99)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if idle.Active {
		t.Error("expected inactive snapshot for ungoverned revision")
	}
	if assigned, _ := gate.IsAssignee(idle, 3); assigned {
		t.Error("inactive snapshot must never have assignees")
	}
}

func TestSimpleGateDoesNotRestrictView(t *testing.T) {
	gate := NewSimpleGate(&fakeRequestStore{})
	if gate.RestrictsView() {
		t.Error("simple model must not restrict internal viewing")
	}
	taskGate := NewTaskGate(&fakeTaskStore{})
	if !taskGate.RestrictsView() {
		t.Error("workflow model must restrict internal viewing")
	}
}

func TestSimpleGateLegalActions(t *testing.T) {
	store := &fakeRequestStore{
		open: map[uint]*models.ReviewRequest{
			10: {ID: 5, RevisionID: 10},
		},
		assignees: map[uint]map[uint]bool{
			5: {3: true},
		},
	}
	gate := NewSimpleGate(store)

	actions, err := gate.LegalActions(10, 3, false)
	if err != nil {
		t.Fatalf("legal actions failed: %v", err)
	}
	if len(actions) != 3 {
		t.Errorf("expected 3 actions for an assignee, got %d", len(actions))
	}

	actions, _ = gate.LegalActions(10, 4, false)
	if len(actions) != 0 {
		t.Errorf("expected no actions for a non-assignee, got %v", actions)
	}

	actions, _ = gate.LegalActions(10, 4, true)
	if len(actions) != 3 {
		t.Errorf("expected 3 actions for a superuser, got %d", len(actions))
	}

	actions, _ = gate.LegalActions(99, 3, true)
	if len(actions) != 0 {
		t.Errorf("expected no actions without an open request, got %v", actions)
	}
}

func newGovernedTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		states: map[uint]*models.TaskState{
			7: {ID: 7, TaskID: 2, RevisionID: 10, Status: models.TaskStateInProgress},
		},
		active: map[uint]uint{10: 7},
		reviewers: map[uint]map[uint]bool{
			2: {3: true},
		},
	}
}

func TestTaskGateApprove(t *testing.T) {
	store := newGovernedTaskStore()
	gate := NewTaskGate(store)
	now := time.Now()

	state, err := gate.ExecuteAction(7, "approve", 3, "looks good", now)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if state.Status != models.TaskStateApproved {
		t.Errorf("status = %q, want approved", state.Status)
	}
	if state.FinishedByReviewerID == nil || *state.FinishedByReviewerID != 3 {
		t.Errorf("finished_by = %v, want 3", state.FinishedByReviewerID)
	}
	if state.FinishedAt == nil || !state.FinishedAt.Equal(now) {
		t.Errorf("finished_at = %v, want %v", state.FinishedAt, now)
	}
	if state.Comment != "looks good" {
		t.Errorf("comment = %q", state.Comment)
	}

	// The revision is no longer governed.
	snapshot, err := gate.Snapshot(10)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.Active {
		t.Error("expected inactive snapshot after terminal transition")
	}
}

func TestTaskGateTerminalStateRefusesAction(t *testing.T) {
	store := newGovernedTaskStore()
	gate := NewTaskGate(store)

	if _, err := gate.ExecuteAction(7, "reject", 3, "", time.Now()); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	for _, action := range []string{"approve", "reject", "cancel"} {
		if _, err := gate.ExecuteAction(7, action, 3, "", time.Now()); !errors.Is(err, models.ErrForbidden) {
			t.Errorf("%s on terminal state: err = %v, want ErrForbidden", action, err)
		}
	}
}

func TestTaskGateUnknownAction(t *testing.T) {
	gate := NewTaskGate(newGovernedTaskStore())
	if _, err := gate.ExecuteAction(7, "publish", 3, "", time.Now()); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown action: err = %v, want ErrValidation", err)
	}
}

func TestTaskGateMissingState(t *testing.T) {
	gate := NewTaskGate(newGovernedTaskStore())
	if _, err := gate.ExecuteAction(999, "approve", 3, "", time.Now()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing state: err = %v, want ErrNotFound", err)
	}
}
