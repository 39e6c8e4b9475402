package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"page-review/internal/middleware"
	"page-review/internal/models"
	"page-review/internal/token"
	"page-review/internal/workflow"
)

// fakeTaskStore simulates the task tables, including the guarded terminal
// transition of Finish.
type fakeTaskStore struct {
	tasks         map[uint]*models.ReviewTask
	taskReviewers map[uint][]uint
	states        map[uint]*models.TaskState
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:         make(map[uint]*models.ReviewTask),
		taskReviewers: make(map[uint][]uint),
		states:        make(map[uint]*models.TaskState),
	}
}

func (f *fakeTaskStore) CreateTask(task *models.ReviewTask) error {
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskStore) GetTask(id uint) (*models.ReviewTask, error) {
	return f.tasks[id], nil
}

func (f *fakeTaskStore) AddTaskReviewer(taskID, reviewerID uint) error {
	f.taskReviewers[taskID] = append(f.taskReviewers[taskID], reviewerID)
	return nil
}

func (f *fakeTaskStore) IsTaskReviewer(taskID, reviewerID uint) (bool, error) {
	for _, id := range f.taskReviewers[taskID] {
		if id == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTaskStore) CreateState(state *models.TaskState) error {
	state.Status = models.TaskStateInProgress
	f.states[state.ID] = state
	return nil
}

func (f *fakeTaskStore) GetState(id uint) (*models.TaskState, error) {
	if state, ok := f.states[id]; ok {
		copied := *state
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeTaskStore) GetActiveState(revisionID uint) (*models.TaskState, error) {
	for _, state := range f.states {
		if state.RevisionID == revisionID && state.Status == models.TaskStateInProgress {
			copied := *state
			return &copied, nil
		}
	}
	return nil, nil
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
	copied := *state
	return &copied, nil
}

type fakeReviewerDir struct {
	reviewers map[uint]*models.Reviewer
}

func (f *fakeReviewerDir) GetByID(id uint) (*models.Reviewer, error) {
	return f.reviewers[id], nil
}

type fakeRevisionDir struct {
	revisions map[uint]*models.Revision
}

func (f *fakeRevisionDir) GetRevision(id uint) (*models.Revision, error) {
	return f.revisions[id], nil
}

type fakeShareDir struct {
	shares     map[[2]uint]*models.Share
	accessLogs int
}

func (f *fakeShareDir) FindByReviewerAndPage(externalReviewerID, pageID uint) (*models.Share, error) {
	return f.shares[[2]uint{externalReviewerID, pageID}], nil
}

func (f *fakeShareDir) LogAccess(shareID uint, now time.Time) error {
	f.accessLogs++
	return nil
}

type fakeUserDir struct {
	users map[uint]*models.User
}

func (f *fakeUserDir) GetByID(id uint) (*models.User, error) {
	return f.users[id], nil
}

type fakeResolver struct {
	byUser map[uint]*models.Reviewer
}

func (f *fakeResolver) ReviewerForUser(userID uint) (*models.Reviewer, error) {
	if reviewer, ok := f.byUser[userID]; ok {
		return reviewer, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeResolver) ReviewerForEmail(email string) (*models.Reviewer, error) {
	return nil, models.ErrNotFound
}

// workflowFixture wires a task gate over one in-progress stage: task 5 with
// reviewer 2 assigned, state 1 governing revision 10 of page 4.
type workflowFixture struct {
	tasks     *fakeTaskStore
	gate      *workflow.TaskGate
	codec     *token.Codec
	reviewers *fakeReviewerDir
	revisions *fakeRevisionDir
	shares    *fakeShareDir
}

func newWorkflowFixture() *workflowFixture {
	internalID := uint(100)
	externalID := uint(7)
	tasks := newFakeTaskStore()
	tasks.tasks[5] = &models.ReviewTask{ID: 5, Name: "Editorial"}
	tasks.taskReviewers[5] = []uint{2}
	tasks.states[1] = &models.TaskState{ID: 1, TaskID: 5, RevisionID: 10, Status: models.TaskStateInProgress}

	return &workflowFixture{
		tasks: tasks,
		gate:  workflow.NewTaskGate(tasks),
		codec: token.NewCodec("handlers-test-secret"),
		reviewers: &fakeReviewerDir{reviewers: map[uint]*models.Reviewer{
			2: {ID: 2, InternalID: &internalID},
			3: {ID: 3, ExternalID: &externalID},
		}},
		revisions: &fakeRevisionDir{revisions: map[uint]*models.Revision{
			10: {ID: 10, PageID: 4},
		}},
		shares: &fakeShareDir{shares: make(map[[2]uint]*models.Share)},
	}
}

// respond sends a verdict through the token middleware into the frontend
// respond handler, the way the annotation frontend does.
func (fx *workflowFixture) respond(t *testing.T, reviewerID uint, status, comment string) *httptest.ResponseRecorder {
	t.Helper()

	tokenString, err := fx.codec.Encode(reviewerID, 10, nil)
	if err != nil {
		t.Fatalf("failed to encode token: %v", err)
	}

	body, err := json.Marshal(RespondRequest{Status: status, Comment: comment})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	handler := NewFrontendHandler(nil, nil, fx.gate)
	mw := middleware.NewReviewTokenMiddleware(fx.codec, fx.reviewers, fx.revisions, fx.shares, fx.gate)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/review/response", bytes.NewReader(body))
	req.Header.Set(middleware.ReviewTokenHeader, tokenString)
	rec := httptest.NewRecorder()
	mw.Authenticate(http.HandlerFunc(handler.Respond)).ServeHTTP(rec, req)
	return rec
}

func TestRespondFinishesTaskState(t *testing.T) {
	fx := newWorkflowFixture()

	rec := fx.respond(t, 2, models.ResponseApproved, "ship it")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	state := fx.tasks.states[1]
	if state.Status != models.TaskStateApproved {
		t.Errorf("expected state approved, got %q", state.Status)
	}
	if state.FinishedByReviewerID == nil || *state.FinishedByReviewerID != 2 {
		t.Errorf("expected finishing reviewer 2, got %v", state.FinishedByReviewerID)
	}
	if state.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	if state.Comment != "ship it" {
		t.Errorf("expected comment %q, got %q", "ship it", state.Comment)
	}
}

func TestRespondNeedsChangesRejectsTaskState(t *testing.T) {
	fx := newWorkflowFixture()

	rec := fx.respond(t, 2, models.ResponseNeedsChanges, "missing sources")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := fx.tasks.states[1].Status; got != models.TaskStateRejected {
		t.Errorf("expected state rejected, got %q", got)
	}
}

func TestRespondShareHolderCannotFinishTaskState(t *testing.T) {
	fx := newWorkflowFixture()
	// External reviewer 3 holds a commenting share on the page but is not
	// assigned to the stage, so the verdict must be refused.
	fx.shares.shares[[2]uint{7, 4}] = &models.Share{ID: 1, ExternalReviewerID: 7, PageID: 4, CanComment: true}

	rec := fx.respond(t, 3, models.ResponseApproved, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := fx.tasks.states[1].Status; got != models.TaskStateInProgress {
		t.Errorf("expected state untouched, got %q", got)
	}
	if fx.shares.accessLogs != 1 {
		t.Errorf("expected the authorized view to be access-logged once, got %d", fx.shares.accessLogs)
	}
}

func TestRespondInvalidStatusUnderWorkflow(t *testing.T) {
	fx := newWorkflowFixture()

	rec := fx.respond(t, 2, "maybe", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := fx.tasks.states[1].Status; got != models.TaskStateInProgress {
		t.Errorf("expected state untouched, got %q", got)
	}
}

// adminFixture wires the admin handler over the same stage fixture with three
// CMS users: 100 is an assignee, 101 is neither assignee nor superuser, and
// 102 is a superuser without an assignment.
type adminFixture struct {
	tasks   *fakeTaskStore
	handler *AdminHandler
}

func newAdminFixture() *adminFixture {
	assigneeID := uint(100)
	outsiderID := uint(101)
	superID := uint(102)
	tasks := newFakeTaskStore()
	tasks.tasks[5] = &models.ReviewTask{ID: 5, Name: "Editorial"}
	tasks.taskReviewers[5] = []uint{2}
	tasks.states[1] = &models.TaskState{ID: 1, TaskID: 5, RevisionID: 10, Status: models.TaskStateInProgress}

	gate := workflow.NewTaskGate(tasks)
	users := &fakeUserDir{users: map[uint]*models.User{
		100: {ID: 100, Email: "editor@example.com", ReviewNotifications: true},
		101: {ID: 101, Email: "writer@example.com", ReviewNotifications: true},
		102: {ID: 102, Email: "root@example.com", IsSuperuser: true},
	}}
	resolver := &fakeResolver{byUser: map[uint]*models.Reviewer{
		100: {ID: 2, InternalID: &assigneeID},
		101: {ID: 3, InternalID: &outsiderID},
		102: {ID: 4, InternalID: &superID},
	}}

	return &adminFixture{
		tasks:   tasks,
		handler: NewAdminHandler(nil, nil, resolver, users, tasks, gate, gate),
	}
}

func (fx *adminFixture) executeAction(t *testing.T, stateID string, userID uint, action string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(TaskActionRequest{Action: action, UserID: userID})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/task-states/"+stateID+"/action", bytes.NewReader(body))
	req.SetPathValue("stateID", stateID)
	rec := httptest.NewRecorder()
	fx.handler.ExecuteTaskAction(rec, req)
	return rec
}

func TestExecuteTaskActionRequiresAssignment(t *testing.T) {
	fx := newAdminFixture()

	rec := fx.executeAction(t, "1", 101, "approve")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for unassigned user, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := fx.tasks.states[1].Status; got != models.TaskStateInProgress {
		t.Errorf("expected state untouched after refused action, got %q", got)
	}

	rec = fx.executeAction(t, "1", 100, "approve")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for assignee, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := fx.tasks.states[1].Status; got != models.TaskStateApproved {
		t.Errorf("expected state approved, got %q", got)
	}
}

func TestExecuteTaskActionAllowsSuperuser(t *testing.T) {
	fx := newAdminFixture()

	rec := fx.executeAction(t, "1", 102, "cancel")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 for superuser, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := fx.tasks.states[1].Status; got != models.TaskStateCancelled {
		t.Errorf("expected state cancelled, got %q", got)
	}
}
