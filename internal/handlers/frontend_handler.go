package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"page-review/internal/middleware"
	"page-review/internal/models"
	"page-review/internal/service"
	"page-review/internal/workflow"
)

// FrontendHandler serves the token-gated review API used by the annotation
// frontend. Every route runs behind the review token middleware, so view
// access is already established; finer checks happen per operation.
type FrontendHandler struct {
	comments *service.CommentService
	reviews  *service.ReviewService
	// taskGate is set under the workflow lifecycle model; a verdict then
	// finishes the governing task state instead of a review request.
	taskGate *workflow.TaskGate
}

// NewFrontendHandler creates a new frontend handler
func NewFrontendHandler(comments *service.CommentService, reviews *service.ReviewService, taskGate *workflow.TaskGate) *FrontendHandler {
	return &FrontendHandler{
		comments: comments,
		reviews:  reviews,
		taskGate: taskGate,
	}
}

// HomeResponse tells the frontend who the token holder is and what they may do.
type HomeResponse struct {
	ReviewerID uint   `json:"reviewer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Kind       string `json:"kind"`
	RevisionID uint   `json:"revision_id"`
	PageID     uint   `json:"page_id"`
	CanComment bool   `json:"can_comment"`
	CanRespond bool   `json:"can_respond"`
}

// Home identifies the token holder and their capabilities
func (h *FrontendHandler) Home(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	evaluator, _ := middleware.GetEvaluator(r)

	canComment, err := evaluator.CanComment()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	canRespond, err := evaluator.CanRespond()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	kind := "external"
	if reviewer.IsInternal() {
		kind = "internal"
	}

	respondWithJSON(w, http.StatusOK, HomeResponse{
		ReviewerID: reviewer.ID,
		Name:       reviewer.Name(),
		Email:      reviewer.Email(),
		Kind:       kind,
		RevisionID: revision.ID,
		PageID:     revision.PageID,
		CanComment: canComment,
		CanRespond: canRespond,
	})
}

// ListComments returns the token revision's comments with replies
func (h *FrontendHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	revision, _ := middleware.GetRevision(r)

	comments, err := h.comments.ListComments(revision.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, comments)
}

// CreateComment anchors a new comment on the token revision
func (h *FrontendHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	evaluator, _ := middleware.GetEvaluator(r)

	canComment, err := evaluator.CanComment()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if !canComment {
		respondWithError(w, http.StatusForbidden, "Commenting not permitted")
		return
	}

	var input service.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comment, err := h.comments.CreateComment(reviewer.ID, revision.ID, input)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, comment)
}

// UpdateComment rewrites one of the caller's comments
func (h *FrontendHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comment, err := h.comments.UpdateComment(reviewer.ID, revision.ID, commentID, body.Text)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, comment)
}

// DeleteComment removes one of the caller's comments
func (h *FrontendHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}

	if err := h.comments.DeleteComment(reviewer.ID, revision.ID, commentID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveComment marks a comment resolved. Any viewer may do this.
func (h *FrontendHandler) ResolveComment(w http.ResponseWriter, r *http.Request) {
	revision, _ := middleware.GetRevision(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}

	comment, err := h.comments.ResolveComment(revision.ID, commentID, time.Now())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, comment)
}

// UnresolveComment clears a comment's resolution marker
func (h *FrontendHandler) UnresolveComment(w http.ResponseWriter, r *http.Request) {
	revision, _ := middleware.GetRevision(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}

	comment, err := h.comments.UnresolveComment(revision.ID, commentID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, comment)
}

// CreateReply adds a reply to a comment's thread
func (h *FrontendHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	evaluator, _ := middleware.GetEvaluator(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}

	canComment, err := evaluator.CanComment()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if !canComment {
		respondWithError(w, http.StatusForbidden, "Commenting not permitted")
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.comments.CreateReply(reviewer.ID, revision.ID, commentID, body.Text)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, reply)
}

// UpdateReply rewrites one of the caller's replies
func (h *FrontendHandler) UpdateReply(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	replyID, ok := pathID(w, r, "replyID")
	if !ok {
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.comments.UpdateReply(reviewer.ID, revision.ID, commentID, replyID, body.Text)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reply)
}

// DeleteReply removes one of the caller's replies
func (h *FrontendHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	replyID, ok := pathID(w, r, "replyID")
	if !ok {
		return
	}

	if err := h.comments.DeleteReply(reviewer.ID, revision.ID, commentID, replyID); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RespondRequest carries a reviewer's final verdict.
type RespondRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// Respond submits the token holder's verdict on the review context their
// token was issued for. Under the simple model the verdict is a response on
// the review request; under the workflow model it finishes the governing
// task state.
func (h *FrontendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	reviewer, _ := middleware.GetReviewer(r)
	revision, _ := middleware.GetRevision(r)
	evaluator, _ := middleware.GetEvaluator(r)

	canRespond, err := evaluator.CanRespond()
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if !canRespond {
		respondWithError(w, http.StatusForbidden, "Responding not permitted")
		return
	}

	var body RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.taskGate != nil {
		h.respondWorkflow(w, revision, reviewer, body)
		return
	}

	requestID, ok := middleware.GetContextRef(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Token carries no review context")
		return
	}

	response, err := h.reviews.SubmitResponse(requestID, reviewer, body.Status, body.Comment)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, response)
}

// respondWorkflow applies the verdict to the active task state. The state is
// resolved from the revision rather than the token's context reference so a
// stale reference cannot name a superseded stage.
func (h *FrontendHandler) respondWorkflow(w http.ResponseWriter, revision *models.Revision, reviewer *models.Reviewer, body RespondRequest) {
	var action string
	switch body.Status {
	case models.ResponseApproved:
		action = "approve"
	case models.ResponseNeedsChanges:
		action = "reject"
	default:
		respondWithError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	snapshot, err := h.taskGate.Snapshot(revision.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if !snapshot.Active {
		respondWithError(w, http.StatusForbidden, "Responding not permitted")
		return
	}

	state, err := h.taskGate.ExecuteAction(snapshot.ContextID, action, reviewer.ID, body.Comment, time.Now())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, state)
}
