package workflow

import (
	"page-review/internal/models"
)

// requestStore is the subset of the review request repository the simple
// gate needs.
type requestStore interface {
	GetOpenByRevision(revisionID uint) (*models.ReviewRequest, error)
	IsAssignee(requestID, reviewerID uint) (bool, error)
}

// SimpleGate implements the standalone lifecycle model: one open review
// request per revision, closed by an editor, reopened explicitly. Viewing is
// never restricted; a closed request only blocks new verdicts.
type SimpleGate struct {
	requests requestStore
}

// NewSimpleGate creates a gate over the review request store
func NewSimpleGate(requests requestStore) *SimpleGate {
	return &SimpleGate{requests: requests}
}

func (g *SimpleGate) Snapshot(revisionID uint) (*Snapshot, error) {
	request, err := g.requests.GetOpenByRevision(revisionID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return &Snapshot{}, nil
	}
	return &Snapshot{
		Active:        true,
		ContextID:     request.ID,
		OffersVerdict: true,
	}, nil
}

func (g *SimpleGate) IsAssignee(s *Snapshot, reviewerID uint) (bool, error) {
	if !s.Active {
		return false, nil
	}
	return g.requests.IsAssignee(s.ContextID, reviewerID)
}

func (g *SimpleGate) RestrictsView() bool {
	return false
}

func (g *SimpleGate) LegalActions(revisionID, reviewerID uint, superuser bool) ([]Action, error) {
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
