package service

import (
	"errors"
	"testing"

	"page-review/internal/models"
)

func newReviewService(requests *fakeRequestStore, responses *fakeResponseStore, mail *fakeMailer, notifySuperusers bool) (*ReviewService, *fakeIdentity) {
	users := newFakeUserStore()
	identity := newFakeIdentity(users)
	svc := NewReviewService(
		requests,
		responses,
		newFakePageStore(),
		users,
		identity,
		&fakeTokens{},
		NewLinks("https://cms.example.com/review"),
		mail,
		notifySuperusers,
	)
	return svc, identity
}

func TestSubmitRequestRequiresAssignees(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)

	_, err := svc.SubmitRequest(10, 100, nil, nil)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("no assignees: err = %v, want ErrValidation", err)
	}
}

func TestSubmitRequestUnknownRevision(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)

	_, err := svc.SubmitRequest(999, 100, []uint{101}, nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown revision: err = %v, want ErrNotFound", err)
	}
}

func TestSubmitRequestMailsAssignees(t *testing.T) {
	mail := &fakeMailer{}
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), mail, false)

	request, err := svc.SubmitRequest(10, 100, []uint{101}, []string{"ext@example.org"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(request.Assignees) != 2 {
		t.Fatalf("assignees = %d, want 2", len(request.Assignees))
	}

	got := mail.sentTo("request")
	if len(got) != 2 {
		t.Fatalf("request emails = %v, want 2 recipients", got)
	}
}

func TestSubmitRequestSkipsMutedInternalAssignees(t *testing.T) {
	mail := &fakeMailer{}
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), mail, false)

	// User 102 has notifications switched off; they are still an assignee
	// but get no email.
	request, err := svc.SubmitRequest(10, 100, []uint{101, 102}, nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(request.Assignees) != 2 {
		t.Errorf("assignees = %d, want 2", len(request.Assignees))
	}
	if got := mail.sentTo("request"); len(got) != 1 || got[0] != "rita@example.com" {
		t.Errorf("request emails = %v, want [rita@example.com]", got)
	}
}

func TestSubmitRequestDeduplicatesAssignees(t *testing.T) {
	requests := newFakeRequestStore()
	svc, _ := newReviewService(requests, newFakeResponseStore(), &fakeMailer{}, false)

	request, err := svc.SubmitRequest(10, 100, []uint{101, 101}, nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(requests.assignees[request.ID]) != 1 {
		t.Errorf("stored assignees = %d, want 1", len(requests.assignees[request.ID]))
	}
}

func submitOpenRequest(t *testing.T, svc *ReviewService) (*models.ReviewRequest, *models.Reviewer) {
	t.Helper()
	request, err := svc.SubmitRequest(10, 100, nil, []string{"ext@example.org"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	assignee, err := svc.identity.ReviewerForEmail("ext@example.org")
	if err != nil {
		t.Fatalf("resolve assignee failed: %v", err)
	}
	return request, assignee
}

func TestSubmitResponse(t *testing.T) {
	mail := &fakeMailer{}
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), mail, false)
	request, assignee := submitOpenRequest(t, svc)

	response, err := svc.SubmitResponse(request.ID, assignee, models.ResponseApproved, "ship it")
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if response.Status != models.ResponseApproved {
		t.Errorf("status = %q", response.Status)
	}
	// The submitter is notified.
	if got := mail.sentTo("response"); len(got) != 1 || got[0] != "editor@example.com" {
		t.Errorf("response notifications = %v, want [editor@example.com]", got)
	}
}

func TestSubmitResponseInvalidStatus(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)
	request, assignee := submitOpenRequest(t, svc)

	_, err := svc.SubmitResponse(request.ID, assignee, "maybe", "")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("bad status: err = %v, want ErrValidation", err)
	}
}

func TestSubmitResponseClosedRequest(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)
	request, assignee := submitOpenRequest(t, svc)

	if err := svc.CloseRequest(request.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	_, err := svc.SubmitResponse(request.ID, assignee, models.ResponseApproved, "")
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("closed request: err = %v, want ErrForbidden", err)
	}

	// Reopening lets responses through again.
	if err := svc.ReopenRequest(request.ID); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, err := svc.SubmitResponse(request.ID, assignee, models.ResponseApproved, ""); err != nil {
		t.Errorf("respond after reopen failed: %v", err)
	}
}

func TestSubmitResponseNonAssignee(t *testing.T) {
	svc, identity := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)
	request, _ := submitOpenRequest(t, svc)

	outsider, _ := identity.ReviewerForEmail("stranger@example.org")
	_, err := svc.SubmitResponse(request.ID, outsider, models.ResponseApproved, "")
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("non-assignee: err = %v, want ErrForbidden", err)
	}
}

func TestSubmitResponseTwice(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)
	request, assignee := submitOpenRequest(t, svc)

	if _, err := svc.SubmitResponse(request.ID, assignee, models.ResponseNeedsChanges, "typos"); err != nil {
		t.Fatalf("first response failed: %v", err)
	}
	_, err := svc.SubmitResponse(request.ID, assignee, models.ResponseApproved, "")
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("duplicate response: err = %v, want ErrForbidden", err)
	}
}

func TestSubmitResponseUnknownRequest(t *testing.T) {
	svc, identity := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)
	reviewer, _ := identity.ReviewerForEmail("ext@example.org")

	_, err := svc.SubmitResponse(999, reviewer, models.ResponseApproved, "")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown request: err = %v, want ErrNotFound", err)
	}
}

func TestSubmitResponseNotifiesSuperusers(t *testing.T) {
	mail := &fakeMailer{}
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), mail, true)
	request, assignee := submitOpenRequest(t, svc)

	if _, err := svc.SubmitResponse(request.ID, assignee, models.ResponseApproved, ""); err != nil {
		t.Fatalf("respond failed: %v", err)
	}

	got := mail.sentTo("response")
	want := map[string]bool{"editor@example.com": true, "root@example.com": true}
	if len(got) != len(want) {
		t.Fatalf("response notifications = %v, want submitter and superuser", got)
	}
	for _, to := range got {
		if !want[to] {
			t.Errorf("unexpected recipient %q", to)
		}
	}
}

func TestSubmitResponseSurvivesMailFailure(t *testing.T) {
	mail := &fakeMailer{fail: true}
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), mail, false)
	request, assignee := submitOpenRequest(t, svc)

	if _, err := svc.SubmitResponse(request.ID, assignee, models.ResponseApproved, ""); err != nil {
		t.Errorf("response must stand despite mail failure, got: %v", err)
	}
}

func TestListResponsesUnknownRequest(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)

	if _, err := svc.ListResponses(999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown request: err = %v, want ErrNotFound", err)
	}
}

func TestCloseUnknownRequest(t *testing.T) {
	svc, _ := newReviewService(newFakeRequestStore(), newFakeResponseStore(), &fakeMailer{}, false)

	if err := svc.CloseRequest(999); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("close unknown request: err = %v, want ErrNotFound", err)
	}
}
