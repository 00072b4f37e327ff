// Package memstore is an in-memory implementation of the persistence port.
// Transactions are serialized behind one mutex and roll back by restoring a
// snapshot, which gives the same isolation the row locks give in Postgres.
// It backs the tests and the server when no DATABASE_URL is configured.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

type tables struct {
	users         map[int64]models.User
	approvals     map[int64]models.MentorApproval
	forms         map[int64]models.Form
	assignments   map[int64]models.FormAssignment
	entries       map[int64]models.JournalEntry
	requests      map[int64]models.MentorRequest
	links         map[int64]models.MentorLink
	notifications map[int64]models.Notification
	nextID        int64
}

func newTables() *tables {
	return &tables{
		users:         map[int64]models.User{},
		approvals:     map[int64]models.MentorApproval{},
		forms:         map[int64]models.Form{},
		assignments:   map[int64]models.FormAssignment{},
		entries:       map[int64]models.JournalEntry{},
		requests:      map[int64]models.MentorRequest{},
		links:         map[int64]models.MentorLink{},
		notifications: map[int64]models.Notification{},
	}
}

// Stored values are never mutated in place, so copying the maps is enough.
func (t *tables) clone() *tables {
	return &tables{
		users:         maps.Clone(t.users),
		approvals:     maps.Clone(t.approvals),
		forms:         maps.Clone(t.forms),
		assignments:   maps.Clone(t.assignments),
		entries:       maps.Clone(t.entries),
		requests:      maps.Clone(t.requests),
		links:         maps.Clone(t.links),
		notifications: maps.Clone(t.notifications),
		nextID:        t.nextID,
	}
}

func (t *tables) id() int64 {
	t.nextID++
	return t.nextID
}

type Store struct {
	mu  sync.Mutex
	t   *tables
	now func() time.Time
}

func New() *Store {
	return &Store{t: newTables(), now: time.Now}
}

// SetClock replaces the timestamp source used for created_at and
// updated_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// WithTx runs fn with exclusive access to the store. Any error from fn
// restores the state from before the call.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.t.clone()
	if err := fn(&txStore{s: s}); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

// txStore runs with s.mu already held.
type txStore struct {
	s *Store
}

func duplicate(what string) error {
	return fmt.Errorf("%w: %s", store.ErrDuplicate, what)
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userByEmail(u.Email); ok {
		return duplicate("users_email_key")
	}
	u.ID = s.t.id()
	u.CreatedAt = s.now()
	s.t.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user(id)
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByEmail(email)
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.t.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Name = u.Name
	cur.ShareCap = u.ShareCap
	s.t.users[u.ID] = cur
	return nil
}

func (s *Store) IsEligibleMentor(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligible(userID), nil
}

func (t *txStore) GetUser(_ context.Context, id int64) (models.User, error) {
	return t.s.user(id)
}

func (t *txStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	u, ok := t.s.userByEmail(email)
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (t *txStore) IsEligibleMentor(_ context.Context, userID int64) (bool, error) {
	return t.s.eligible(userID), nil
}

func (s *Store) user(id int64) (models.User, error) {
	u, ok := s.t.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) userByEmail(email string) (models.User, bool) {
	for _, u := range s.t.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *Store) approvalByEmail(email string) (models.MentorApproval, bool) {
	for _, a := range s.t.approvals {
		if strings.EqualFold(a.Email, email) {
			return a, true
		}
	}
	return models.MentorApproval{}, false
}

func (s *Store) eligible(userID int64) bool {
	u, ok := s.t.users[userID]
	if !ok || u.Role != models.RoleMentor {
		return false
	}
	a, ok := s.approvalByEmail(u.Email)
	return ok && a.Status == models.ApprovalApproved
}

// Requests

func (t *txStore) LockMentorRequest(_ context.Context, id int64) (models.MentorRequest, error) {
	r, ok := t.s.t.requests[id]
	if !ok {
		return models.MentorRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (t *txStore) LockMentorRequestForPair(_ context.Context, journalerID, mentorID int64) (models.MentorRequest, error) {
	for _, r := range t.s.t.requests {
		if r.JournalerID == journalerID && r.MentorID == mentorID {
			return r, nil
		}
	}
	return models.MentorRequest{}, store.ErrNotFound
}

func (t *txStore) InsertMentorRequest(ctx context.Context, r *models.MentorRequest) error {
	if _, err := t.LockMentorRequestForPair(ctx, r.JournalerID, r.MentorID); err == nil {
		return duplicate("mentor_requests_journaler_id_mentor_id_key")
	}
	now := t.s.now()
	r.ID = t.s.t.id()
	r.CreatedAt, r.UpdatedAt = now, now
	t.s.t.requests[r.ID] = *r
	return nil
}

func (t *txStore) UpdateMentorRequest(_ context.Context, r *models.MentorRequest) error {
	cur, ok := t.s.t.requests[r.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Message = r.Message
	cur.Status = r.Status
	cur.RespondedAt = r.RespondedAt
	cur.DecidedBy = r.DecidedBy
	cur.UpdatedAt = t.s.now()
	r.UpdatedAt = cur.UpdatedAt
	t.s.t.requests[r.ID] = cur
	return nil
}

func (s *Store) GetMentorRequest(_ context.Context, id int64) (models.MentorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.t.requests[id]
	if !ok {
		return models.MentorRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListMentorRequests(_ context.Context, userID int64) ([]models.MentorRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MentorRequest
	for _, r := range s.t.requests {
		if r.JournalerID == userID || r.MentorID == userID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.MentorRequest) int {
		return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

// Links

func (t *txStore) LockMentorLink(_ context.Context, mentorID, journalerID int64) (models.MentorLink, error) {
	l, ok := t.s.link(mentorID, journalerID)
	if !ok {
		return models.MentorLink{}, store.ErrNotFound
	}
	return l, nil
}

func (t *txStore) InsertMentorLink(_ context.Context, l *models.MentorLink) error {
	if _, ok := t.s.link(l.MentorID, l.JournalerID); ok {
		return duplicate("mentor_links_mentor_id_journaler_id_key")
	}
	l.ID = t.s.t.id()
	l.CreatedAt = t.s.now()
	t.s.t.links[l.ID] = *l
	return nil
}

func (t *txStore) DeleteMentorLink(_ context.Context, id int64) error {
	delete(t.s.t.links, id)
	return nil
}

func (s *Store) link(mentorID, journalerID int64) (models.MentorLink, bool) {
	for _, l := range s.t.links {
		if l.MentorID == mentorID && l.JournalerID == journalerID {
			return l, true
		}
	}
	return models.MentorLink{}, false
}

func (s *Store) ListLinksForUser(_ context.Context, userID int64) ([]models.MentorLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MentorLink
	for _, l := range s.t.links {
		if l.MentorID == userID || l.JournalerID == userID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.MentorLink) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) IsLinked(_ context.Context, mentorID, journalerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.link(mentorID, journalerID)
	return ok, nil
}

func (s *Store) LinkedMentors(_ context.Context, journalerID int64) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, l := range s.t.links {
		if l.JournalerID == journalerID && s.eligible(l.MentorID) {
			out = append(out, s.t.users[l.MentorID])
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Approvals

func (t *txStore) LockMentorApproval(_ context.Context, id int64) (models.MentorApproval, error) {
	a, ok := t.s.t.approvals[id]
	if !ok {
		return models.MentorApproval{}, store.ErrNotFound
	}
	return a, nil
}

func (t *txStore) LockMentorApprovalByEmail(_ context.Context, email string) (models.MentorApproval, error) {
	a, ok := t.s.approvalByEmail(email)
	if !ok {
		return models.MentorApproval{}, store.ErrNotFound
	}
	return a, nil
}

func (t *txStore) InsertMentorApproval(_ context.Context, a *models.MentorApproval) error {
	if _, ok := t.s.approvalByEmail(a.Email); ok {
		return duplicate("mentor_approvals_email_key")
	}
	a.ID = t.s.t.id()
	a.CreatedAt = t.s.now()
	t.s.t.approvals[a.ID] = *a
	return nil
}

func (t *txStore) UpdateMentorApproval(_ context.Context, a *models.MentorApproval) error {
	cur, ok := t.s.t.approvals[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Name = a.Name
	cur.Note = a.Note
	cur.Status = a.Status
	cur.DecidedBy = a.DecidedBy
	cur.DecidedAt = a.DecidedAt
	t.s.t.approvals[a.ID] = cur
	return nil
}

func (s *Store) ListMentorApprovals(_ context.Context, status models.ApprovalStatus) ([]models.MentorApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MentorApproval
	for _, a := range s.t.approvals {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b models.MentorApproval) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func (s *Store) Overview(_ context.Context) (store.Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := store.Overview{
		TotalUsers:   len(s.t.users),
		TotalEntries: len(s.t.entries),
		ActiveLinks:  len(s.t.links),
	}
	for _, r := range s.t.requests {
		if r.Status == models.RequestPending || r.Status == models.RequestMentorAccepted {
			o.PendingRequests++
		}
	}
	for _, a := range s.t.approvals {
		if a.Status == models.ApprovalPending {
			o.PendingApprovals++
		}
	}
	weekAgo := s.now().Add(-7 * 24 * time.Hour)
	for _, e := range s.t.entries {
		if !e.CreatedAt.Before(weekAgo) {
			o.EntriesThisWeek++
		}
	}
	return o, nil
}
