package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorjournal/internal/db"
	"mentorjournal/internal/models"
	"mentorjournal/internal/services"
	"mentorjournal/internal/store"
)

// openTestStore connects to TEST_DATABASE_URL, which must point at a
// throwaway database: every table is truncated.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.RunMigrations(ctx, conn))
	_, err = conn.ExecContext(ctx, `TRUNCATE notifications, mentor_links, mentor_requests, journal_entries,
		form_assignments, forms, mentor_approvals, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	codec, err := services.NewEncryptionService("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	require.NoError(t, err)
	return New(conn, codec)
}

type seed struct {
	journaler, mentor models.User
	form              models.Form
}

func seedPair(t *testing.T, s *Store) seed {
	t.Helper()
	ctx := context.Background()
	summary := models.TierSummary
	out := seed{
		journaler: models.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x", Role: models.RoleJournaler},
		mentor:    models.User{Email: "grace@example.com", Name: "Grace", PasswordHash: "x", Role: models.RoleMentor, ShareCap: &summary},
	}
	require.NoError(t, s.CreateUser(ctx, &out.journaler))
	require.NoError(t, s.CreateUser(ctx, &out.mentor))
	out.form = models.Form{Title: "Daily", CreatedBy: out.mentor.ID, Fields: []models.FormField{{ID: "mood", Label: "Mood"}}}
	require.NoError(t, s.CreateForm(ctx, &out.form))
	return out
}

func TestUsersAndEligibility(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedPair(t, s)

	err := s.CreateUser(ctx, &models.User{Email: "ADA@example.com", PasswordHash: "x", Role: models.RoleJournaler})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "Grace@Example.com")
	require.NoError(t, err)
	require.NotNil(t, got.ShareCap)
	assert.Equal(t, models.TierSummary, *got.ShareCap)

	ok, err := s.IsEligibleMentor(ctx, p.mentor.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertMentorApproval(ctx, &models.MentorApproval{Email: "grace@example.com", Status: models.ApprovalApproved})
	}))
	ok, err = s.IsEligibleMentor(ctx, p.mentor.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedPair(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: p.mentor.ID, JournalerID: p.journaler.ID}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	linked, err := s.IsLinked(ctx, p.mentor.ID, p.journaler.ID)
	require.NoError(t, err)
	assert.False(t, linked)
}

// Two transactions racing to insert the same link: the row lock on the
// request serializes them and the loser sees the winner's link.
func TestRequestLockSerializesConfirm(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedPair(t, s)

	req := models.MentorRequest{JournalerID: p.journaler.ID, MentorID: p.mentor.ID, Status: models.RequestMentorAccepted}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error { return tx.InsertMentorRequest(ctx, &req) }))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				r, err := tx.LockMentorRequest(ctx, req.ID)
				if err != nil {
					return err
				}
				if r.Status != models.RequestMentorAccepted {
					return nil
				}
				r.Status = models.RequestConfirmed
				if err := tx.UpdateMentorRequest(ctx, &r); err != nil {
					return err
				}
				if err := tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: p.mentor.ID, JournalerID: p.journaler.ID}); err != nil {
					return err
				}
				mu.Lock()
				created++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestEntriesAreEncodedAndDecoded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedPair(t, s)

	mood := "calm"
	e := models.JournalEntry{
		JournalerID: p.journaler.ID,
		FormID:      p.form.ID,
		EntryDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Responses:   []models.Response{{FieldID: "mood", Label: "Mood", Value: models.TextValue("calm")}},
		Mood:        &mood,
		Summary:     "a quiet day",
		SharedLevel: models.TierMood,
	}
	require.NoError(t, s.CreateEntry(ctx, &e))

	var raw string
	require.NoError(t, s.DB().GetContext(ctx, &raw, `SELECT summary FROM journal_entries WHERE id = $1`, e.ID))
	assert.NotEqual(t, "a quiet day", raw)

	got, err := s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "a quiet day", got.Summary)
	assert.Equal(t, "Daily", got.FormTitle)
	assert.Equal(t, models.TierMood, got.SharedLevel)
	require.Len(t, got.Responses, 1)
	assert.Equal(t, "calm", got.Responses[0].Value.String())

	counts, err := s.CountEntriesByForm(ctx, p.journaler.ID, []int64{p.form.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{p.form.ID: 1}, counts)

	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	assert.ErrorIs(t, s.DeleteEntry(ctx, e.ID), store.ErrNotFound)
}

func TestNotificationIdempotence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedPair(t, s)

	e := models.JournalEntry{JournalerID: p.journaler.ID, FormID: p.form.ID, EntryDate: time.Now(), SharedLevel: models.TierFull}
	require.NoError(t, s.CreateEntry(ctx, &e))

	disclosure := func(title string) models.Notification {
		return models.Notification{
			UserID: p.mentor.ID,
			Type:   models.NotificationDisclosure,
			Title:  title,
			Metadata: models.NotificationMetadata{
				CorrelationKey: models.DisclosureKey(e.ID),
				EntryID:        e.ID,
			},
		}
	}
	n := disclosure("first")
	created, err := s.UpsertNotification(ctx, &n)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, s.MarkNotificationRead(ctx, p.mentor.ID, n.ID))

	n2 := disclosure("second")
	created, err = s.UpsertNotification(ctx, &n2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, n.ID, n2.ID)

	inbox, err := s.ListNotifications(ctx, p.mentor.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "second", inbox[0].Title)
	assert.Equal(t, e.ID, inbox[0].Metadata.EntryID)

	milestone := models.Notification{UserID: p.mentor.ID, Type: models.NotificationMilestone,
		Metadata: models.NotificationMetadata{CorrelationKey: "milestone:1:2:3"}}
	ok, err := s.InsertNotificationOnce(ctx, &milestone)
	require.NoError(t, err)
	assert.True(t, ok)
	again := milestone
	ok, err = s.InsertNotificationOnce(ctx, &again)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := s.DeleteDisclosures(ctx, e.ID, []int64{p.mentor.ID})
	require.NoError(t, err)
	assert.Zero(t, removed)
	removed, err = s.DeleteDisclosures(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	assert.ErrorIs(t, s.MarkNotificationRead(ctx, p.journaler.ID, milestone.ID), store.ErrNotFound)
	marked, err := s.MarkAllNotificationsRead(ctx, p.mentor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
}

func TestDigestCandidatesAndOverview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedPair(t, s)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertMentorApproval(ctx, &models.MentorApproval{Email: p.mentor.Email, Status: models.ApprovalApproved}); err != nil {
			return err
		}
		return tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: p.mentor.ID, JournalerID: p.journaler.ID})
	}))
	for _, lvl := range []models.SharingTier{models.TierPrivate, models.TierSummary, models.TierFull} {
		e := models.JournalEntry{JournalerID: p.journaler.ID, FormID: p.form.ID, EntryDate: time.Now(), SharedLevel: lvl}
		require.NoError(t, s.CreateEntry(ctx, &e))
	}

	now := time.Now()
	got, err := s.DigestCandidates(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p.mentor.ID, got[0].Mentor.ID)
	assert.Equal(t, "Ada", got[0].Journaler.Name)
	assert.Equal(t, models.TierSummary, got[0].Entry.SharedLevel)

	none, err := s.DigestCandidates(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	ov, err := s.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ov.TotalUsers)
	assert.Equal(t, 3, ov.TotalEntries)
	assert.Equal(t, 1, ov.ActiveLinks)
}
