package service

import (
	"errors"
	"testing"
	"time"

	"page-review/internal/models"
)

func newShareService(shares *fakeShareStore, mail *fakeMailer) *ShareService {
	users := newFakeUserStore()
	return NewShareService(
		shares,
		newFakePageStore(),
		users,
		newFakeIdentity(users),
		&fakeTokens{},
		NewLinks("https://cms.example.com/review/"),
		mail,
	)
}

func TestCreateShareSendsInvitation(t *testing.T) {
	shares := newFakeShareStore()
	mail := &fakeMailer{}
	svc := newShareService(shares, mail)

	share, err := svc.CreateShare("ext@example.org", 1, 100, true, nil)
	if err != nil {
		t.Fatalf("create share failed: %v", err)
	}
	if !share.CanComment {
		t.Error("expected can_comment to be carried onto the share")
	}
	if got := mail.sentTo("share"); len(got) != 1 || got[0] != "ext@example.org" {
		t.Errorf("invitation recipients = %v, want [ext@example.org]", got)
	}
}

func TestCreateShareTwiceFails(t *testing.T) {
	svc := newShareService(newFakeShareStore(), &fakeMailer{})

	if _, err := svc.CreateShare("ext@example.org", 1, 100, false, nil); err != nil {
		t.Fatalf("first share failed: %v", err)
	}
	_, err := svc.CreateShare("ext@example.org", 1, 100, true, nil)
	if !errors.Is(err, models.ErrAlreadyShared) {
		t.Errorf("second share: err = %v, want ErrAlreadyShared", err)
	}
}

func TestCreateShareUnknownPage(t *testing.T) {
	svc := newShareService(newFakeShareStore(), &fakeMailer{})

	_, err := svc.CreateShare("ext@example.org", 99, 100, false, nil)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown page: err = %v, want ErrNotFound", err)
	}
}

func TestCreateShareSurvivesMailFailure(t *testing.T) {
	shares := newFakeShareStore()
	mail := &fakeMailer{fail: true}
	svc := newShareService(shares, mail)

	share, err := svc.CreateShare("ext@example.org", 1, 100, false, nil)
	if err != nil {
		t.Fatalf("share must stand despite mail failure, got: %v", err)
	}
	if got, _ := shares.GetByID(share.ID); got == nil {
		t.Error("share not persisted")
	}
}

func TestExtendShare(t *testing.T) {
	shares := newFakeShareStore()
	svc := newShareService(shares, &fakeMailer{})

	share, err := svc.CreateShare("ext@example.org", 1, 100, false, nil)
	if err != nil {
		t.Fatalf("create share failed: %v", err)
	}

	until := time.Now().Add(48 * time.Hour)
	updated, err := svc.ExtendShare(share.ID, &until)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if updated.ExpiresAt == nil || !updated.ExpiresAt.Equal(until) {
		t.Errorf("expires_at = %v, want %v", updated.ExpiresAt, until)
	}

	// Clearing the expiry makes the share indefinite again.
	updated, err = svc.ExtendShare(share.ID, nil)
	if err != nil {
		t.Fatalf("clear expiry failed: %v", err)
	}
	if updated.ExpiresAt != nil {
		t.Errorf("expires_at = %v, want nil", updated.ExpiresAt)
	}

	if _, err := svc.ExtendShare(999, &until); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("extend missing share: err = %v, want ErrNotFound", err)
	}
}
