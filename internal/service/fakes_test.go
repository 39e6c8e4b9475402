package service

import (
	"errors"
	"time"

	"page-review/internal/models"
)

// In-memory stores standing in for the Postgres repositories. They mirror
// the repositories' contracts: nil for missing rows, sentinel errors for
// constraint violations.

type fakePageStore struct {
	pages     map[uint]*models.Page
	revisions map[uint]*models.Revision
}

func newFakePageStore() *fakePageStore {
	return &fakePageStore{
		pages:     map[uint]*models.Page{1: {ID: 1, Title: "Pricing"}},
		revisions: map[uint]*models.Revision{10: {ID: 10, PageID: 1}},
	}
}

func (f *fakePageStore) GetPage(id uint) (*models.Page, error) {
	return f.pages[id], nil
}

func (f *fakePageStore) GetRevision(id uint) (*models.Revision, error) {
	return f.revisions[id], nil
}

func (f *fakePageStore) LatestRevision(pageID uint) (*models.Revision, error) {
	var latest *models.Revision
	for _, revision := range f.revisions {
		if revision.PageID != pageID {
			continue
		}
		if latest == nil || revision.ID > latest.ID {
			latest = revision
		}
	}
	return latest, nil
}

type fakeUserStore struct {
	users map[uint]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint]*models.User{
		100: {ID: 100, Email: "editor@example.com", FirstName: "Edda", LastName: "Editor", ReviewNotifications: true},
		101: {ID: 101, Email: "rita@example.com", FirstName: "Rita", LastName: "Reviewer", ReviewNotifications: true},
		102: {ID: 102, Email: "quiet@example.com", FirstName: "Quentin", LastName: "Quiet", ReviewNotifications: false},
		103: {ID: 103, Email: "root@example.com", FirstName: "Sue", LastName: "Super", IsSuperuser: true, ReviewNotifications: true},
	}}
}

func (f *fakeUserStore) GetByID(id uint) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeUserStore) ListSuperusers() ([]models.User, error) {
	users := []models.User{}
	for _, user := range f.users {
		if user.IsSuperuser && user.ReviewNotifications {
			users = append(users, *user)
		}
	}
	return users, nil
}

// fakeIdentity hands out stable reviewer rows per user id / email.
type fakeIdentity struct {
	nextID  uint
	byUser  map[uint]*models.Reviewer
	byEmail map[string]*models.Reviewer
	users   *fakeUserStore
}

func newFakeIdentity(users *fakeUserStore) *fakeIdentity {
	return &fakeIdentity{
		nextID:  1,
		byUser:  make(map[uint]*models.Reviewer),
		byEmail: make(map[string]*models.Reviewer),
		users:   users,
	}
}

func (f *fakeIdentity) ReviewerForUser(userID uint) (*models.Reviewer, error) {
	if reviewer, ok := f.byUser[userID]; ok {
		return reviewer, nil
	}
	id := userID
	reviewer := &models.Reviewer{ID: f.nextID, InternalID: &id}
	if user := f.users.users[userID]; user != nil {
		reviewer.InternalEmail = user.Email
		reviewer.InternalName = user.FullName()
	}
	f.nextID++
	f.byUser[userID] = reviewer
	return reviewer, nil
}

func (f *fakeIdentity) ReviewerForEmail(email string) (*models.Reviewer, error) {
	if reviewer, ok := f.byEmail[email]; ok {
		return reviewer, nil
	}
	externalID := f.nextID + 1000
	reviewer := &models.Reviewer{ID: f.nextID, ExternalID: &externalID, ExternalEmail: email}
	f.nextID++
	f.byEmail[email] = reviewer
	return reviewer, nil
}

type fakeShareStore struct {
	nextID uint
	shares map[uint]*models.Share
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{nextID: 1, shares: make(map[uint]*models.Share)}
}

func (f *fakeShareStore) Create(share *models.Share) error {
	for _, existing := range f.shares {
		if existing.ExternalReviewerID == share.ExternalReviewerID && existing.PageID == share.PageID {
			return models.ErrAlreadyShared
		}
	}
	share.ID = f.nextID
	share.SharedAt = time.Now()
	f.nextID++
	f.shares[share.ID] = share
	return nil
}

func (f *fakeShareStore) GetByID(id uint) (*models.Share, error) {
	return f.shares[id], nil
}

func (f *fakeShareStore) UpdateExpiry(shareID uint, expiresAt *time.Time) error {
	share, ok := f.shares[shareID]
	if !ok {
		return models.ErrNotFound
	}
	share.ExpiresAt = expiresAt
	return nil
}

func (f *fakeShareStore) ListByPage(pageID uint) ([]models.Share, error) {
	shares := []models.Share{}
	for _, share := range f.shares {
		if share.PageID == pageID {
			shares = append(shares, *share)
		}
	}
	return shares, nil
}

type fakeRequestStore struct {
	nextID    uint
	requests  map[uint]*models.ReviewRequest
	assignees map[uint][]models.Reviewer
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{
		nextID:    1,
		requests:  make(map[uint]*models.ReviewRequest),
		assignees: make(map[uint][]models.Reviewer),
	}
}

func (f *fakeRequestStore) Create(request *models.ReviewRequest, assigneeIDs []uint) error {
	request.ID = f.nextID
	request.SubmittedAt = time.Now()
	f.nextID++
	f.requests[request.ID] = request
	for _, id := range assigneeIDs {
		f.assignees[request.ID] = append(f.assignees[request.ID], models.Reviewer{ID: id})
	}
	return nil
}

func (f *fakeRequestStore) GetByID(id uint) (*models.ReviewRequest, error) {
	return f.requests[id], nil
}

func (f *fakeRequestStore) SetClosed(id uint, closed bool) error {
	request, ok := f.requests[id]
	if !ok {
		return models.ErrNotFound
	}
	request.IsClosed = closed
	return nil
}

func (f *fakeRequestStore) GetAssignees(requestID uint) ([]models.Reviewer, error) {
	return f.assignees[requestID], nil
}

func (f *fakeRequestStore) IsAssignee(requestID, reviewerID uint) (bool, error) {
	for _, assignee := range f.assignees[requestID] {
		if assignee.ID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequestStore) AssigneesWithoutResponse(requestID uint) ([]models.Reviewer, error) {
	return f.assignees[requestID], nil
}

type fakeResponseStore struct {
	nextID    uint
	responses map[uint]*models.ReviewResponse
}

func newFakeResponseStore() *fakeResponseStore {
	return &fakeResponseStore{nextID: 1, responses: make(map[uint]*models.ReviewResponse)}
}

func (f *fakeResponseStore) Create(response *models.ReviewResponse) error {
	for _, existing := range f.responses {
		if existing.RequestID == response.RequestID && existing.SubmittedByID == response.SubmittedByID {
			return models.ErrConstraintViolation
		}
	}
	response.ID = f.nextID
	response.SubmittedAt = time.Now()
	f.nextID++
	f.responses[response.ID] = response
	return nil
}

func (f *fakeResponseStore) ExistsForReviewer(requestID, reviewerID uint) (bool, error) {
	for _, existing := range f.responses {
		if existing.RequestID == requestID && existing.SubmittedByID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeResponseStore) ListByRequest(requestID uint) ([]models.ReviewResponse, error) {
	responses := []models.ReviewResponse{}
	for _, existing := range f.responses {
		if existing.RequestID == requestID {
			responses = append(responses, *existing)
		}
	}
	return responses, nil
}

// fakeTokens issues recognizable fake tokens so tests can assert on links.
type fakeTokens struct {
	fail bool
}

func (f *fakeTokens) Encode(reviewerID, revisionID uint, contextID *uint) (string, error) {
	if f.fail {
		return "", errors.New("signing failed")
	}
	return "tok", nil
}

type sentMail struct {
	kind string
	to   string
}

// fakeMailer records deliveries and can be told to fail them all.
type fakeMailer struct {
	fail bool
	sent []sentMail
}

func (f *fakeMailer) SendShareInvitation(to, pageTitle, sharedBy, reviewURL string) error {
	f.sent = append(f.sent, sentMail{kind: "share", to: to})
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeMailer) SendReviewRequest(to, reviewerName, pageTitle, submittedBy, reviewURL string) error {
	f.sent = append(f.sent, sentMail{kind: "request", to: to})
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeMailer) SendResponseReceived(to, reviewerName, pageTitle, status, comment string) error {
	f.sent = append(f.sent, sentMail{kind: "response", to: to})
	if f.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (f *fakeMailer) sentTo(kind string) []string {
	var tos []string
	for _, m := range f.sent {
		if m.kind == kind {
			tos = append(tos, m.to)
		}
	}
	return tos
}
