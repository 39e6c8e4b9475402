package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"page-review/internal/models"
	"page-review/internal/permissions"
	"page-review/internal/token"
	"page-review/internal/workflow"
)

// ReviewTokenHeader carries the capability token on frontend API calls.
const ReviewTokenHeader = "X-Review-Token"

type contextKey string

const (
	reviewerKey   contextKey = "reviewer"
	revisionKey   contextKey = "revision"
	evaluatorKey  contextKey = "evaluator"
	contextRefKey contextKey = "context_ref"
)

// reviewerGetter loads reviewer rows by id.
type reviewerGetter interface {
	GetByID(id uint) (*models.Reviewer, error)
}

// revisionGetter loads revisions by id.
type revisionGetter interface {
	GetRevision(id uint) (*models.Revision, error)
}

// shareAccess combines the evaluator's share lookup with access logging.
type shareAccess interface {
	FindByReviewerAndPage(externalReviewerID, pageID uint) (*models.Share, error)
	LogAccess(shareID uint, now time.Time) error
}

// ReviewTokenMiddleware authenticates frontend API calls with a capability
// token. It decodes the token, loads the reviewer and revision it names,
// evaluates permissions, and rejects anything below view access. Each
// authorized use by a shared external reviewer is recorded on their share.
type ReviewTokenMiddleware struct {
	codec     *token.Codec
	reviewers reviewerGetter
	pages     revisionGetter
	shares    shareAccess
	gate      workflow.Gate
}

// NewReviewTokenMiddleware creates a new review token middleware
func NewReviewTokenMiddleware(codec *token.Codec, reviewers reviewerGetter, pages revisionGetter, shares shareAccess, gate workflow.Gate) *ReviewTokenMiddleware {
	return &ReviewTokenMiddleware{
		codec:     codec,
		reviewers: reviewers,
		pages:     pages,
		shares:    shares,
		gate:      gate,
	}
}

// Authenticate validates the review token and puts the reviewer, revision,
// and permission evaluator on the request context.
func (m *ReviewTokenMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get(ReviewTokenHeader)
		if tokenString == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing review token")
			return
		}

		claims, err := m.codec.Decode(tokenString)
		if err != nil {
			if errors.Is(err, token.ErrInvalidToken) {
				respondWithError(w, http.StatusForbidden, "Invalid review token")
				return
			}
			slog.Error("Token decode failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		reviewer, err := m.reviewers.GetByID(claims.ReviewerID)
		if err != nil {
			slog.Error("Failed to load reviewer", "reviewer_id", claims.ReviewerID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		revision, err := m.pages.GetRevision(claims.RevisionID)
		if err != nil {
			slog.Error("Failed to load revision", "revision_id", claims.RevisionID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		// A valid signature over rows that no longer exist is a stale
		// capability, not a server fault.
		if reviewer == nil || revision == nil {
			respondWithError(w, http.StatusNotFound, "Not found")
			return
		}

		now := time.Now()
		evaluator := permissions.NewEvaluator(reviewer, revision, m.gate, m.shares, now)

		canView, err := evaluator.CanView()
		if err != nil {
			slog.Error("Permission evaluation failed", "reviewer_id", reviewer.ID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !canView {
			respondWithError(w, http.StatusForbidden, "Access denied")
			return
		}

		// Audit trail for shared access. Unlike notifications this write
		// must not be lost, so failures abort the request.
		share, err := evaluator.Share()
		if err != nil {
			slog.Error("Share lookup failed", "reviewer_id", reviewer.ID, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if share != nil {
			if err := m.shares.LogAccess(share.ID, now); err != nil {
				slog.Error("Failed to record share access", "share_id", share.ID, "error", err)
				respondWithError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
		}

		ctx := context.WithValue(r.Context(), reviewerKey, reviewer)
		ctx = context.WithValue(ctx, revisionKey, revision)
		ctx = context.WithValue(ctx, evaluatorKey, evaluator)
		if claims.ContextID != nil {
			ctx = context.WithValue(ctx, contextRefKey, *claims.ContextID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetReviewer retrieves the authenticated reviewer from the request context
func GetReviewer(r *http.Request) (*models.Reviewer, bool) {
	reviewer, ok := r.Context().Value(reviewerKey).(*models.Reviewer)
	return reviewer, ok
}

// GetRevision retrieves the token's revision from the request context
func GetRevision(r *http.Request) (*models.Revision, bool) {
	revision, ok := r.Context().Value(revisionKey).(*models.Revision)
	return revision, ok
}

// GetEvaluator retrieves the permission evaluator from the request context
func GetEvaluator(r *http.Request) (*permissions.Evaluator, bool) {
	evaluator, ok := r.Context().Value(evaluatorKey).(*permissions.Evaluator)
	return evaluator, ok
}

// GetContextRef retrieves the token's review context reference, if present
func GetContextRef(r *http.Request) (uint, bool) {
	ref, ok := r.Context().Value(contextRefKey).(uint)
	return ref, ok
}

// Helper function to respond with JSON error
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
