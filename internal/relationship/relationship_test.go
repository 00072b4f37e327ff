package relationship

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mentorjournal/internal/mail"
	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
	"mentorjournal/internal/store/memstore"
	"mentorjournal/internal/templates"
)

type fixture struct {
	svc       *Service
	store     *memstore.Store
	mailer    *mail.Recorder
	admin     models.User
	mentor    models.User
	journaler models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	rec := &mail.Recorder{}
	f := &fixture{
		svc:    NewService(st, rec, templates.New(), zap.NewNop(), "https://journal.example.com"),
		store:  st,
		mailer: rec,
	}
	f.admin = f.user(t, "admin@example.com", models.RoleAdmin)
	f.mentor = f.user(t, "grace@example.com", models.RoleMentor)
	f.journaler = f.user(t, "ada@example.com", models.RoleJournaler)

	a, err := f.svc.SubmitApproval(ctx, f.mentor.Email, "Grace", "")
	require.NoError(t, err)
	_, err = f.svc.DecideApproval(ctx, f.admin.ID, a.ID, true, "")
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{Email: email, Name: email[:len(email)-len("@example.com")], Role: role}
	require.NoError(t, f.store.CreateUser(context.Background(), &u))
	return u
}

func (f *fixture) accepted(t *testing.T) models.MentorRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "hello")
	require.NoError(t, err)
	req, err = f.svc.Accept(ctx, f.mentor.ID, req.ID)
	require.NoError(t, err)
	return req
}

func (f *fixture) linked(t *testing.T) bool {
	t.Helper()
	ok, err := f.store.IsLinked(context.Background(), f.mentor.ID, f.journaler.ID)
	require.NoError(t, err)
	return ok
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.RequestStatus
		want     bool
	}{
		{models.RequestPending, models.RequestMentorAccepted, true},
		{models.RequestPending, models.RequestDeclined, true},
		{models.RequestPending, models.RequestConfirmed, false},
		{models.RequestMentorAccepted, models.RequestConfirmed, true},
		{models.RequestMentorAccepted, models.RequestDeclined, true},
		{models.RequestConfirmed, models.RequestEnded, true},
		{models.RequestConfirmed, models.RequestDeclined, false},
		{models.RequestConfirmed, models.RequestPending, false},
		{models.RequestDeclined, models.RequestPending, true},
		{models.RequestEnded, models.RequestPending, true},
		{models.RequestMentorAccepted, models.RequestPending, true},
		{models.RequestEnded, models.RequestConfirmed, false},
		{models.RequestDeclined, models.RequestMentorAccepted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestLifecycle_RequestAcceptConfirmEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := f.accepted(t)
	assert.Equal(t, models.RequestMentorAccepted, req.Status)
	require.NotNil(t, req.RespondedAt)
	assert.False(t, f.linked(t))

	req, link, err := f.svc.Confirm(ctx, f.journaler.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestConfirmed, req.Status)
	assert.Equal(t, f.mentor.ID, link.MentorID)
	assert.True(t, f.linked(t))

	req, err = f.svc.End(ctx, Actor{ID: f.mentor.ID, Role: models.RoleMentor}, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestEnded, req.Status)
	assert.False(t, f.linked(t))

	// request + confirm for the mentor, accept + end for the journaler
	mentorInbox := requestNotifications(t, f, f.mentor.ID)
	journalerInbox := requestNotifications(t, f, f.journaler.ID)
	assert.Len(t, mentorInbox, 2)
	assert.Len(t, journalerInbox, 2)
	for _, n := range append(mentorInbox, journalerInbox...) {
		assert.Equal(t, req.ID, n.Metadata.RequestID)
	}
}

func requestNotifications(t *testing.T, f *fixture, userID int64) []models.Notification {
	t.Helper()
	all, err := f.store.ListNotifications(context.Background(), userID, false, 50)
	require.NoError(t, err)
	var out []models.Notification
	for _, n := range all {
		if n.Type == models.NotificationRequest {
			out = append(out, n)
		}
	}
	return out
}

func TestConfirm_RequiresMentorAcceptance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "hi")
	require.NoError(t, err)

	_, _, err = f.svc.Confirm(ctx, f.journaler.ID, req.ID)
	assert.ErrorIs(t, err, ErrNotReadyForConfirmation)
	assert.False(t, f.linked(t))
}

func TestConfirm_OnlyTheJournaler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)

	_, _, err := f.svc.Confirm(ctx, f.mentor.ID, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAccept_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "hi")
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, f.admin.ID, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Accept(ctx, f.mentor.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Accept(ctx, f.mentor.ID, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, f.mentor.ID, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestMentor_ReRequestResets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)

	req, err := f.svc.Decline(ctx, Actor{ID: f.journaler.ID, Role: models.RoleJournaler}, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequestDeclined, req.Status)

	again, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "second try")
	require.NoError(t, err)
	assert.Equal(t, req.ID, again.ID)
	assert.Equal(t, models.RequestPending, again.Status)
	assert.Equal(t, "second try", again.Message)
	assert.Nil(t, again.RespondedAt)
	assert.Nil(t, again.DecidedBy)
}

func TestRequestMentor_RefusedWhenLinked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)
	_, _, err := f.svc.Confirm(ctx, f.journaler.ID, req.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "again")
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestRequestMentor_RequiresApprovedMentor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	unvetted := f.user(t, "bob@example.com", models.RoleMentor)

	_, err := f.svc.RequestMentor(ctx, f.journaler.ID, unvetted.ID, "hi")
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = f.svc.RequestMentor(ctx, f.mentor.ID, f.mentor.ID, "hi")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDecline_ByOutsiderForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := f.user(t, "eve@example.com", models.RoleJournaler)
	req, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "hi")
	require.NoError(t, err)

	_, err = f.svc.Decline(ctx, Actor{ID: other.ID, Role: models.RoleJournaler}, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	req, err = f.svc.Decline(ctx, Actor{ID: f.admin.ID, Role: models.RoleAdmin}, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestDeclined, req.Status)
	require.NotNil(t, req.DecidedBy)
	assert.Equal(t, f.admin.ID, *req.DecidedBy)
}

func TestEnd_RequiresConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)

	_, err := f.svc.End(ctx, Actor{ID: f.journaler.ID, Role: models.RoleJournaler}, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirm_ConcurrentCreatesOneLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = f.svc.Confirm(ctx, f.journaler.ID, req.ID)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrNotReadyForConfirmation)
	}
	assert.Equal(t, 1, ok)

	links, err := f.store.ListLinksForUser(ctx, f.journaler.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestConfirm_ExistingLinkRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)
	require.NoError(t, f.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: f.mentor.ID, JournalerID: f.journaler.ID, CreatedBy: f.admin.ID})
	}))

	_, _, err := f.svc.Confirm(ctx, f.journaler.ID, req.ID)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	got, err := f.store.GetMentorRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestMentorAccepted, got.Status)
}

func TestLinkAndUnlink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)

	_, err := f.svc.LinkMentor(ctx, f.admin.ID, f.mentor.ID, f.journaler.ID)
	require.NoError(t, err)
	assert.True(t, f.linked(t))
	got, err := f.store.GetMentorRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestConfirmed, got.Status)

	_, err = f.svc.LinkMentor(ctx, f.admin.ID, f.mentor.ID, f.journaler.ID)
	assert.ErrorIs(t, err, ErrAlreadyLinked)

	require.NoError(t, f.svc.UnlinkMentor(ctx, f.admin.ID, f.mentor.ID, f.journaler.ID))
	assert.False(t, f.linked(t))
	got, err = f.store.GetMentorRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestEnded, got.Status)

	assert.ErrorIs(t, f.svc.UnlinkMentor(ctx, f.admin.ID, f.mentor.ID, f.journaler.ID), ErrNotLinked)
}

func TestLinkMentor_LeavesDeclinedRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "hello")
	require.NoError(t, err)
	_, err = f.svc.Decline(ctx, Actor{ID: f.mentor.ID, Role: models.RoleMentor}, req.ID)
	require.NoError(t, err)

	_, err = f.svc.LinkMentor(ctx, f.admin.ID, f.mentor.ID, f.journaler.ID)
	require.NoError(t, err)
	assert.True(t, f.linked(t))

	got, err := f.store.GetMentorRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestDeclined, got.Status)
}

func TestLinkMentor_ConfirmsPendingRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req, err := f.svc.RequestMentor(ctx, f.journaler.ID, f.mentor.ID, "hello")
	require.NoError(t, err)

	_, err = f.svc.LinkMentor(ctx, f.admin.ID, f.mentor.ID, f.journaler.ID)
	require.NoError(t, err)
	got, err := f.store.GetMentorRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestConfirmed, got.Status)
	require.NotNil(t, got.DecidedBy)
	assert.Equal(t, f.admin.ID, *got.DecidedBy)
}

func TestLinkMentor_RequiresApprovedMentor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	unvetted := f.user(t, "bob@example.com", models.RoleMentor)

	_, err := f.svc.LinkMentor(ctx, f.admin.ID, unvetted.ID, f.journaler.ID)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sent := len(f.mailer.Messages())

	a, err := f.svc.SubmitApproval(ctx, "  Bob@Example.com ", "Bob", "ten years teaching")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", a.Email)
	assert.Equal(t, models.ApprovalPending, a.Status)

	same, err := f.svc.SubmitApproval(ctx, "bob@example.com", "Bob", "again")
	require.NoError(t, err)
	assert.Equal(t, a.ID, same.ID)
	assert.Equal(t, "ten years teaching", same.Note)

	a, err = f.svc.DecideApproval(ctx, f.admin.ID, a.ID, false, "needs references")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, a.Status)
	require.NotNil(t, a.DecidedAt)
	_, err = f.svc.DecideApproval(ctx, f.admin.ID, a.ID, false, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	a, err = f.svc.SubmitApproval(ctx, "bob@example.com", "Bob", "with references")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, a.Status)
	assert.Nil(t, a.DecidedBy)

	a, err = f.svc.DecideApproval(ctx, f.admin.ID, a.ID, true, "")
	require.NoError(t, err)
	_, err = f.svc.SubmitApproval(ctx, "bob@example.com", "Bob", "")
	assert.ErrorIs(t, err, ErrAlreadyApproved)

	// revocation
	a, err = f.svc.DecideApproval(ctx, f.admin.ID, a.ID, false, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, a.Status)

	msgs := f.mailer.Messages()[sent:]
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, "bob@example.com", m.To)
	}

	_, err = f.svc.SubmitApproval(ctx, "not-an-email", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecideApproval_NotifiesAccountHolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inbox, err := f.store.ListNotifications(ctx, f.mentor.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationDecision, inbox[0].Type)
	assert.Equal(t, "Your mentor application was approved", inbox[0].Title)
}

func TestRevokedMentorCannotConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.accepted(t)

	approvals, err := f.store.ListMentorApprovals(ctx, models.ApprovalApproved)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	_, err = f.svc.DecideApproval(ctx, f.admin.ID, approvals[0].ID, false, "")
	require.NoError(t, err)

	_, _, err = f.svc.Confirm(ctx, f.journaler.ID, req.ID)
	assert.ErrorIs(t, err, ErrNotEligible)
}
