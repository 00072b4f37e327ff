package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

func copyEntry(e models.JournalEntry) models.JournalEntry {
	e.Responses = append([]models.Response{}, e.Responses...)
	if e.Mood != nil {
		m := *e.Mood
		e.Mood = &m
	}
	return e
}

// Entries

func (s *Store) CreateEntry(_ context.Context, e *models.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.t.forms[e.FormID]
	if !ok {
		return store.ErrNotFound
	}
	now := s.now()
	e.ID = s.t.id()
	e.FormTitle = f.Title
	e.CreatedAt, e.UpdatedAt = now, now
	s.t.entries[e.ID] = copyEntry(*e)
	return nil
}

func (s *Store) UpdateEntry(_ context.Context, e *models.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.t.entries[e.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.EntryDate = e.EntryDate
	cur.Responses = e.Responses
	cur.Mood = e.Mood
	cur.Summary = e.Summary
	cur.SharedLevel = e.SharedLevel
	cur.UpdatedAt = s.now()
	e.UpdatedAt = cur.UpdatedAt
	s.t.entries[e.ID] = copyEntry(cur)
	return nil
}

func (s *Store) GetEntry(_ context.Context, id int64) (models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.t.entries[id]
	if !ok {
		return models.JournalEntry{}, store.ErrNotFound
	}
	return copyEntry(e), nil
}

func (s *Store) ListEntries(_ context.Context, journalerID int64, limit int) ([]models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.JournalEntry{}
	for _, e := range s.t.entries {
		if e.JournalerID == journalerID {
			out = append(out, copyEntry(e))
		}
	}
	slices.SortFunc(out, func(a, b models.JournalEntry) int {
		return cmp.Or(
			b.EntryDate.Compare(a.EntryDate),
			b.CreatedAt.Compare(a.CreatedAt),
			cmp.Compare(b.ID, a.ID),
		)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteEntry removes the entry and the disclosures that point at it.
func (s *Store) DeleteEntry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.t.entries[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.t.entries, id)
	for nid, n := range s.t.notifications {
		if n.Type == models.NotificationDisclosure && n.Metadata.EntryID == id {
			delete(s.t.notifications, nid)
		}
	}
	return nil
}

func (s *Store) CountEntriesByForm(_ context.Context, journalerID int64, formIDs []int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int, len(formIDs))
	for _, e := range s.t.entries {
		if e.JournalerID == journalerID && slices.Contains(formIDs, e.FormID) {
			out[e.FormID]++
		}
	}
	return out, nil
}

// Forms

func (s *Store) CreateForm(_ context.Context, f *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Fields == nil {
		f.Fields = []models.FormField{}
	}
	f.ID = s.t.id()
	f.CreatedAt = s.now()
	stored := *f
	stored.Fields = slices.Clone(f.Fields)
	s.t.forms[f.ID] = stored
	return nil
}

func (s *Store) GetForm(_ context.Context, id int64) (models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.t.forms[id]
	if !ok {
		return models.Form{}, store.ErrNotFound
	}
	f.Fields = slices.Clone(f.Fields)
	return f, nil
}

func (s *Store) ListForms(_ context.Context) ([]models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Form, 0, len(s.t.forms))
	for _, f := range s.t.forms {
		f.Fields = slices.Clone(f.Fields)
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b models.Form) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) CreateAssignment(_ context.Context, a *models.FormAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.t.assignments {
		if cur.MentorID == a.MentorID && cur.JournalerID == a.JournalerID && cur.FormID == a.FormID {
			return duplicate("form_assignments_mentor_id_journaler_id_form_id_key")
		}
	}
	a.ID = s.t.id()
	a.CreatedAt = s.now()
	s.t.assignments[a.ID] = *a
	return nil
}

func (s *Store) ListAssignments(_ context.Context, mentorID, journalerID int64) ([]models.FormAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FormAssignment
	for _, a := range s.t.assignments {
		if a.MentorID == mentorID && a.JournalerID == journalerID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b models.FormAssignment) int { return cmp.Compare(a.FormID, b.FormID) })
	return out, nil
}

// Notifications

func (s *Store) notificationByKey(userID int64, key string) (models.Notification, bool) {
	if key == "" {
		return models.Notification{}, false
	}
	for _, n := range s.t.notifications {
		if n.UserID == userID && n.Metadata.CorrelationKey == key {
			return n, true
		}
	}
	return models.Notification{}, false
}

func (s *Store) insertNotification(n *models.Notification) {
	now := s.now()
	n.ID = s.t.id()
	n.CreatedAt, n.UpdatedAt = now, now
	stored := *n
	stored.Metadata.FormIDs = slices.Clone(n.Metadata.FormIDs)
	s.t.notifications[n.ID] = stored
}

func (t *txStore) InsertNotification(_ context.Context, n *models.Notification) error {
	if _, ok := t.s.notificationByKey(n.UserID, n.Metadata.CorrelationKey); ok {
		return duplicate("notifications_correlation_key")
	}
	t.s.insertNotification(n)
	return nil
}

func (s *Store) UpsertNotification(_ context.Context, n *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ReadAt = nil
	cur, ok := s.notificationByKey(n.UserID, n.Metadata.CorrelationKey)
	if !ok {
		s.insertNotification(n)
		return true, nil
	}
	cur.Title = n.Title
	cur.Body = n.Body
	cur.Metadata = n.Metadata
	cur.Metadata.FormIDs = slices.Clone(n.Metadata.FormIDs)
	cur.ActionURL = n.ActionURL
	cur.ReadAt = nil
	cur.UpdatedAt = s.now()
	s.t.notifications[cur.ID] = cur
	n.ID, n.Type, n.CreatedAt, n.UpdatedAt = cur.ID, cur.Type, cur.CreatedAt, cur.UpdatedAt
	return false, nil
}

func (s *Store) InsertNotificationOnce(_ context.Context, n *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notificationByKey(n.UserID, n.Metadata.CorrelationKey); ok {
		return false, nil
	}
	s.insertNotification(n)
	return true, nil
}

func (s *Store) DeleteDisclosures(_ context.Context, entryID int64, keepUserIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DisclosureKey(entryID)
	var deleted int64
	for id, n := range s.t.notifications {
		if n.Type == models.NotificationDisclosure && n.Metadata.CorrelationKey == key &&
			!slices.Contains(keepUserIDs, n.UserID) {
			delete(s.t.notifications, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) ListNotifications(_ context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.t.notifications {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		n.Metadata.FormIDs = slices.Clone(n.Metadata.FormIDs)
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b models.Notification) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.t.notifications[id]
	if !ok || n.UserID != userID {
		return store.ErrNotFound
	}
	if n.ReadAt == nil {
		now := s.now()
		n.ReadAt = &now
		s.t.notifications[id] = n
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var marked int64
	for id, n := range s.t.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &now
			s.t.notifications[id] = n
			marked++
		}
	}
	return marked, nil
}

// Digest

func (s *Store) DigestCandidates(_ context.Context, since, until time.Time) ([]store.DigestCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.DigestCandidate
	for _, e := range s.t.entries {
		if e.CreatedAt.Before(since) || !e.CreatedAt.Before(until) || e.SharedLevel == models.TierPrivate {
			continue
		}
		for _, l := range s.t.links {
			if l.JournalerID != e.JournalerID || l.CreatedAt.After(e.CreatedAt) || !s.eligible(l.MentorID) {
				continue
			}
			out = append(out, store.DigestCandidate{
				Mentor:    s.t.users[l.MentorID],
				Journaler: s.t.users[e.JournalerID],
				LinkedAt:  l.CreatedAt,
				Entry:     copyEntry(e),
			})
		}
	}
	slices.SortFunc(out, func(a, b store.DigestCandidate) int {
		return cmp.Or(
			cmp.Compare(a.Mentor.ID, b.Mentor.ID),
			cmp.Compare(a.Journaler.ID, b.Journaler.ID),
			a.Entry.CreatedAt.Compare(b.Entry.CreatedAt),
			cmp.Compare(a.Entry.ID, b.Entry.ID),
		)
	})
	return out, nil
}
