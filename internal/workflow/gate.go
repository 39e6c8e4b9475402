// Package workflow abstracts the two review lifecycle models behind one gate
// interface so permission evaluation never branches on configuration.
package workflow

// Action is a lifecycle action offered to an actor on a page under review.
type Action struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Snapshot is the review context currently governing one revision.
type Snapshot struct {
	// Active reports whether an open request or in-progress task exists.
	Active bool
	// ContextID identifies the governing request or task state. Carried in
	// issued tokens as the context reference claim. Zero when inactive.
	ContextID uint
	// OffersVerdict reports whether the context accepts a final verdict.
	OffersVerdict bool

	// taskID is set by the task gate only; assignment checks go through the
	// task's reviewer list rather than the state row.
	taskID uint
}

// Gate is the lifecycle strategy consulted by permission evaluation. One
// implementation is selected at process start from configuration.
type Gate interface {
	// Snapshot loads the review context governing a revision. An inactive
	// snapshot is returned when nothing governs it; never nil.
	Snapshot(revisionID uint) (*Snapshot, error)

	// IsAssignee reports whether the reviewer is assigned to the snapshot's
	// context. Always false for an inactive snapshot.
	IsAssignee(s *Snapshot, reviewerID uint) (bool, error)

	// RestrictsView reports whether internal users need an assignment to
	// view a governed revision.
	RestrictsView() bool

	// LegalActions lists the lifecycle actions the actor may take on the
	// revision. Empty when the context is inactive or the actor is neither
	// an assignee nor a superuser.
	LegalActions(revisionID, reviewerID uint, superuser bool) ([]Action, error)
}

// reviewActions is offered to assignees and superusers while a context is
// active.
var reviewActions = []Action{
	{Name: "review", Label: "Review"},
	{Name: "approve", Label: "Approve"},
	{Name: "reject", Label: "Reject"},
}
