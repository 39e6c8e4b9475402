package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"page-review/internal/models"
	"page-review/internal/service"
	"page-review/internal/workflow"
)

// reviewerResolver resolves CMS users and external emails into reviewer rows.
type reviewerResolver interface {
	ReviewerForUser(userID uint) (*models.Reviewer, error)
	ReviewerForEmail(email string) (*models.Reviewer, error)
}

// adminUserStore is the subset of the user repository the admin API needs.
type adminUserStore interface {
	GetByID(id uint) (*models.User, error)
}

// adminTaskStore is the subset of the task state repository the admin API
// needs.
type adminTaskStore interface {
	CreateTask(task *models.ReviewTask) error
	GetTask(id uint) (*models.ReviewTask, error)
	AddTaskReviewer(taskID, reviewerID uint) error
	CreateState(state *models.TaskState) error
	GetState(id uint) (*models.TaskState, error)
}

// AdminHandler serves the CMS-facing admin API: creating and extending
// shares, running review requests, and driving workflow task states. All
// routes run behind the admin key middleware; the acting CMS user is carried
// in the request body.
type AdminHandler struct {
	shares   *service.ShareService
	reviews  *service.ReviewService
	identity reviewerResolver
	users    adminUserStore
	tasks    adminTaskStore
	gate     workflow.Gate

	// taskGate is set only when the workflow lifecycle model is active.
	taskGate *workflow.TaskGate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(shares *service.ShareService, reviews *service.ReviewService, resolver reviewerResolver, users adminUserStore, tasks adminTaskStore, gate workflow.Gate, taskGate *workflow.TaskGate) *AdminHandler {
	return &AdminHandler{
		shares:   shares,
		reviews:  reviews,
		identity: resolver,
		users:    users,
		tasks:    tasks,
		gate:     gate,
		taskGate: taskGate,
	}
}

// CreateShareRequest grants an external email access to a page's drafts.
type CreateShareRequest struct {
	Email      string     `json:"email"`
	SharedByID uint       `json:"shared_by_id"`
	CanComment bool       `json:"can_comment"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CreateShare shares a page with an external reviewer
func (h *AdminHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	pageID, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}

	var req CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.SharedByID == 0 {
		respondWithError(w, http.StatusBadRequest, "email and shared_by_id are required")
		return
	}

	share, err := h.shares.CreateShare(req.Email, pageID, req.SharedByID, req.CanComment, req.ExpiresAt)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, share)
}

// ExtendShareRequest moves or clears a share's expiry.
type ExtendShareRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

// ExtendShare updates a share's expiry
func (h *AdminHandler) ExtendShare(w http.ResponseWriter, r *http.Request) {
	shareID, ok := pathID(w, r, "shareID")
	if !ok {
		return
	}

	var req ExtendShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	share, err := h.shares.ExtendShare(shareID, req.ExpiresAt)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, share)
}

// ListShares lists every share on a page
func (h *AdminHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	pageID, ok := pathID(w, r, "pageID")
	if !ok {
		return
	}

	shares, err := h.shares.ListShares(pageID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, shares)
}

// SubmitRequestRequest opens a review round for a revision.
type SubmitRequestRequest struct {
	SubmittedByID   uint     `json:"submitted_by_id"`
	AssigneeUserIDs []uint   `json:"assignee_user_ids"`
	AssigneeEmails  []string `json:"assignee_emails"`
}

// SubmitRequest opens a review request with assignees
func (h *AdminHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	revisionID, ok := pathID(w, r, "revisionID")
	if !ok {
		return
	}

	var req SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SubmittedByID == 0 {
		respondWithError(w, http.StatusBadRequest, "submitted_by_id is required")
		return
	}

	request, err := h.reviews.SubmitRequest(revisionID, req.SubmittedByID, req.AssigneeUserIDs, req.AssigneeEmails)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, request)
}

// GetRequest returns a request with its assignees
func (h *AdminHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	request, err := h.reviews.GetRequest(requestID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, request)
}

// CloseRequest stops a request from accepting responses
func (h *AdminHandler) CloseRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	if err := h.reviews.CloseRequest(requestID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReopenRequest makes a closed request accept responses again
func (h *AdminHandler) ReopenRequest(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	if err := h.reviews.ReopenRequest(requestID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListResponses lists responses on a request, newest first
func (h *AdminHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	responses, err := h.reviews.ListResponses(requestID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, responses)
}

// AwaitingResponse lists assignees who have not responded yet
func (h *AdminHandler) AwaitingResponse(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	assignees, err := h.reviews.AssigneesAwaitingResponse(requestID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, assignees)
}

// LegalActions lists the lifecycle actions a CMS user may take on a revision
func (h *AdminHandler) LegalActions(w http.ResponseWriter, r *http.Request) {
	revisionID, ok := pathID(w, r, "revisionID")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if user == nil {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	reviewer, err := h.identity.ReviewerForUser(userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	actions, err := h.gate.LegalActions(revisionID, reviewer.ID, user.IsSuperuser)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, actions)
}

// CreateTaskRequest defines a workflow stage.
type CreateTaskRequest struct {
	Name string `json:"name"`
}

// CreateTask defines a workflow stage
func (h *AdminHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name is required")
		return
	}

	task := &models.ReviewTask{Name: req.Name}
	if err := h.tasks.CreateTask(task); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, task)
}

// AddTaskReviewerRequest assigns a reviewer to a stage: an internal user id
// or an external email.
type AddTaskReviewerRequest struct {
	UserID uint   `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

// AddTaskReviewer assigns a reviewer to a workflow stage
func (h *AdminHandler) AddTaskReviewer(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}

	var req AddTaskReviewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var reviewer *models.Reviewer
	var err error
	switch {
	case req.UserID != 0:
		reviewer, err = h.identity.ReviewerForUser(req.UserID)
	case req.Email != "":
		reviewer, err = h.identity.ReviewerForEmail(req.Email)
	default:
		respondWithError(w, http.StatusBadRequest, "user_id or email is required")
		return
	}
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	task, err := h.tasks.GetTask(taskID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if task == nil {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	if err := h.tasks.AddTaskReviewer(taskID, reviewer.ID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reviewer)
}

// StartTaskStateRequest starts a stage against a revision.
type StartTaskStateRequest struct {
	TaskID uint `json:"task_id"`
}

// StartTaskState begins a workflow stage for a revision
func (h *AdminHandler) StartTaskState(w http.ResponseWriter, r *http.Request) {
	revisionID, ok := pathID(w, r, "revisionID")
	if !ok {
		return
	}

	var req StartTaskStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == 0 {
		respondWithError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	task, err := h.tasks.GetTask(req.TaskID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if task == nil {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	state := &models.TaskState{TaskID: req.TaskID, RevisionID: revisionID}
	if err := h.tasks.CreateState(state); err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, state)
}

// TaskActionRequest applies a verdict to a running stage.
type TaskActionRequest struct {
	Action  string `json:"action"`
	UserID  uint   `json:"user_id"`
	Comment string `json:"comment"`
}

// ExecuteTaskAction applies approve, reject, or cancel to a task state.
// Available only under the workflow lifecycle model.
func (h *AdminHandler) ExecuteTaskAction(w http.ResponseWriter, r *http.Request) {
	if h.taskGate == nil {
		respondWithError(w, http.StatusNotFound, "Workflow lifecycle model not active")
		return
	}

	stateID, ok := pathID(w, r, "stateID")
	if !ok {
		return
	}

	var req TaskActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == 0 {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	user, err := h.users.GetByID(req.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if user == nil {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}
	reviewer, err := h.identity.ReviewerForUser(req.UserID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	state, err := h.tasks.GetState(stateID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if state == nil {
		respondWithError(w, http.StatusNotFound, "Not found")
		return
	}

	// Only stage assignees and superusers may act on a state.
	actions, err := h.gate.LegalActions(state.RevisionID, reviewer.ID, user.IsSuperuser)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if len(actions) == 0 {
		respondWithError(w, http.StatusForbidden, "Action not permitted")
		return
	}

	state, err = h.taskGate.ExecuteAction(stateID, req.Action, reviewer.ID, req.Comment, time.Now())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}
