package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func seedMentor(t *testing.T, s *Store, email string) models.User {
	t.Helper()
	ctx := context.Background()
	u := models.User{Email: email, Role: models.RoleMentor}
	require.NoError(t, s.CreateUser(ctx, &u))
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertMentorApproval(ctx, &models.MentorApproval{Email: email, Status: models.ApprovalApproved})
	}))
	return u
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: 1, JournalerID: 2}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	linked, err := s.IsLinked(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestInsertMentorLink_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: 1, JournalerID: 2}))
		return tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: 1, JournalerID: 2})
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCreateUser_EmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "Ada@example.com"}))
	err := s.CreateUser(ctx, &models.User{Email: "ada@EXAMPLE.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	u, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada@example.com", u.Email)
}

func TestLinkedMentors_OnlyEligible(t *testing.T) {
	ctx := context.Background()
	s := New()
	approved := seedMentor(t, s, "m1@example.com")
	unvetted := models.User{Email: "m2@example.com", Role: models.RoleMentor}
	require.NoError(t, s.CreateUser(ctx, &unvetted))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: approved.ID, JournalerID: 99}); err != nil {
			return err
		}
		return tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: unvetted.ID, JournalerID: 99})
	}))

	mentors, err := s.LinkedMentors(ctx, 99)
	require.NoError(t, err)
	require.Len(t, mentors, 1)
	assert.Equal(t, approved.ID, mentors[0].ID)
}

func TestUpsertNotification_RefreshesInPlace(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := New()
	s.SetClock(c.now)

	n := models.Notification{UserID: 7, Type: models.NotificationDisclosure, Title: "first",
		Metadata: models.NotificationMetadata{CorrelationKey: models.DisclosureKey(3), EntryID: 3}}
	created, err := s.UpsertNotification(ctx, &n)
	require.NoError(t, err)
	assert.True(t, created)
	firstID := n.ID
	require.NoError(t, s.MarkNotificationRead(ctx, 7, firstID))

	c.advance(time.Minute)
	again := models.Notification{UserID: 7, Type: models.NotificationDisclosure, Title: "second",
		Metadata: models.NotificationMetadata{CorrelationKey: models.DisclosureKey(3), EntryID: 3}}
	created, err = s.UpsertNotification(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, again.ID)

	list, err := s.ListNotifications(ctx, 7, false, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Title)
	assert.Nil(t, list[0].ReadAt)
	assert.True(t, list[0].UpdatedAt.After(list[0].CreatedAt))
}

func TestInsertNotificationOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	meta := models.NotificationMetadata{CorrelationKey: "milestone:1:2:3"}

	ok, err := s.InsertNotificationOnce(ctx, &models.Notification{UserID: 1, Type: models.NotificationMilestone, Metadata: meta})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertNotificationOnce(ctx, &models.Notification{UserID: 1, Type: models.NotificationMilestone, Metadata: meta})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.InsertNotificationOnce(ctx, &models.Notification{UserID: 2, Type: models.NotificationMilestone, Metadata: meta})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteDisclosures_KeepsListedRecipients(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, uid := range []int64{1, 2, 3} {
		_, err := s.UpsertNotification(ctx, &models.Notification{UserID: uid, Type: models.NotificationDisclosure,
			Metadata: models.NotificationMetadata{CorrelationKey: models.DisclosureKey(5), EntryID: 5}})
		require.NoError(t, err)
	}

	n, err := s.DeleteDisclosures(ctx, 5, []int64{2})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for uid, want := range map[int64]int{1: 0, 2: 1, 3: 0} {
		list, err := s.ListNotifications(ctx, uid, false, 10)
		require.NoError(t, err)
		assert.Len(t, list, want, "user %d", uid)
	}
}

func TestDeleteEntry_CascadesDisclosures(t *testing.T) {
	ctx := context.Background()
	s := New()
	f := models.Form{Title: "Daily"}
	require.NoError(t, s.CreateForm(ctx, &f))
	e := models.JournalEntry{JournalerID: 1, FormID: f.ID, SharedLevel: models.TierFull}
	require.NoError(t, s.CreateEntry(ctx, &e))
	assert.Equal(t, "Daily", e.FormTitle)

	_, err := s.UpsertNotification(ctx, &models.Notification{UserID: 2, Type: models.NotificationDisclosure,
		Metadata: models.NotificationMetadata{CorrelationKey: models.DisclosureKey(e.ID), EntryID: e.ID}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	list, err := s.ListNotifications(ctx, 2, false, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, s.DeleteEntry(ctx, e.ID), store.ErrNotFound)
}

func TestDigestCandidates_WindowAndLinkAge(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := New()
	s.SetClock(c.now)

	mentor := seedMentor(t, s, "m@example.com")
	journaler := models.User{Email: "j@example.com", Role: models.RoleJournaler}
	require.NoError(t, s.CreateUser(ctx, &journaler))
	f := models.Form{Title: "Daily"}
	require.NoError(t, s.CreateForm(ctx, &f))

	add := func(tier models.SharingTier) models.JournalEntry {
		e := models.JournalEntry{JournalerID: journaler.ID, FormID: f.ID, SharedLevel: tier}
		require.NoError(t, s.CreateEntry(ctx, &e))
		c.advance(time.Hour)
		return e
	}

	before := add(models.TierFull)
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertMentorLink(ctx, &models.MentorLink{MentorID: mentor.ID, JournalerID: journaler.ID})
	}))
	c.advance(time.Hour)
	shared := add(models.TierMood)
	add(models.TierPrivate)
	boundary := add(models.TierFull)

	got, err := s.DigestCandidates(ctx, before.CreatedAt, boundary.CreatedAt)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, shared.ID, got[0].Entry.ID)
	assert.Equal(t, mentor.ID, got[0].Mentor.ID)
	assert.Equal(t, journaler.ID, got[0].Journaler.ID)
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedMentor(t, s, "m@example.com")
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertMentorApproval(ctx, &models.MentorApproval{Email: "p@example.com", Status: models.ApprovalPending})
	}))

	o, err := s.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, o.TotalUsers)
	assert.Equal(t, 1, o.PendingApprovals)
	assert.Zero(t, o.ActiveLinks)
}
