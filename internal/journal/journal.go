// Package journal writes journal entries and serves them back, to their
// author in full and to linked mentors shaped to the tier they may see.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mentorjournal/internal/models"
	"mentorjournal/internal/sharing"
	"mentorjournal/internal/store"
)

var (
	ErrNotFound     = errors.New("journal: not found")
	ErrForbidden    = errors.New("journal: forbidden")
	ErrNotLinked    = errors.New("journal: mentor is not linked to this journaler")
	ErrInvalidInput = errors.New("journal: invalid input")
)

const dispatchTimeout = 30 * time.Second

type Store interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetForm(ctx context.Context, id int64) (models.Form, error)
	CreateEntry(ctx context.Context, e *models.JournalEntry) error
	UpdateEntry(ctx context.Context, e *models.JournalEntry) error
	GetEntry(ctx context.Context, id int64) (models.JournalEntry, error)
	ListEntries(ctx context.Context, journalerID int64, limit int) ([]models.JournalEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	IsLinked(ctx context.Context, mentorID, journalerID int64) (bool, error)
	IsEligibleMentor(ctx context.Context, userID int64) (bool, error)
}

type Dispatcher interface {
	DispatchDisclosure(ctx context.Context, entry models.JournalEntry, journaler models.User) error
	DispatchEdit(ctx context.Context, entry models.JournalEntry, journaler models.User) error
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	logger     *zap.Logger
	wg         sync.WaitGroup
}

func NewService(st Store, dispatcher Dispatcher, logger *zap.Logger) *Service {
	return &Service{store: st, dispatcher: dispatcher, logger: logger.Named("journal")}
}

type SubmitInput struct {
	FormID      int64
	EntryDate   time.Time
	Responses   []models.Response
	SharedLevel models.SharingTier
}

// UpdateInput holds the fields to change; nil fields are left as they are.
type UpdateInput struct {
	EntryDate   *time.Time
	Responses   []models.Response
	SharedLevel *models.SharingTier
}

// Submit stores a new entry and notifies linked mentors in the background.
func (s *Service) Submit(ctx context.Context, journalerID int64, in SubmitInput) (models.JournalEntry, error) {
	author, err := s.author(ctx, journalerID)
	if err != nil {
		return models.JournalEntry{}, err
	}
	form, err := s.store.GetForm(ctx, in.FormID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.JournalEntry{}, fmt.Errorf("%w: form %d does not exist", ErrInvalidInput, in.FormID)
		}
		return models.JournalEntry{}, err
	}
	responses, err := checkResponses(form, in.Responses)
	if err != nil {
		return models.JournalEntry{}, err
	}

	date := in.EntryDate
	if date.IsZero() {
		date = time.Now().UTC()
	}
	e := models.JournalEntry{
		JournalerID: journalerID,
		FormID:      form.ID,
		FormTitle:   form.Title,
		EntryDate:   entryDay(date),
		Responses:   responses,
		Mood:        models.DeriveMood(responses),
		Summary:     models.DeriveSummary(responses),
		SharedLevel: sharing.Normalize(in.SharedLevel),
	}
	if err := s.store.CreateEntry(ctx, &e); err != nil {
		return models.JournalEntry{}, fmt.Errorf("create entry: %w", err)
	}
	s.logger.Info("entry submitted",
		zap.Int64("entry_id", e.ID), zap.Int64("journaler_id", journalerID), zap.Stringer("shared_level", e.SharedLevel))

	s.dispatch(ctx, "disclosure", e, func(ctx context.Context) error {
		return s.dispatcher.DispatchDisclosure(ctx, e, author)
	})
	return e, nil
}

// Update edits an entry owned by journalerID and re-evaluates who may see it.
func (s *Service) Update(ctx context.Context, journalerID, entryID int64, in UpdateInput) (models.JournalEntry, error) {
	author, err := s.author(ctx, journalerID)
	if err != nil {
		return models.JournalEntry{}, err
	}
	e, err := s.Get(ctx, journalerID, entryID)
	if err != nil {
		return models.JournalEntry{}, err
	}

	if in.Responses != nil {
		form, err := s.store.GetForm(ctx, e.FormID)
		if err != nil {
			return models.JournalEntry{}, fmt.Errorf("form %d: %w", e.FormID, err)
		}
		responses, err := checkResponses(form, in.Responses)
		if err != nil {
			return models.JournalEntry{}, err
		}
		e.Responses = responses
		e.Mood = models.DeriveMood(responses)
		e.Summary = models.DeriveSummary(responses)
	}
	if in.EntryDate != nil {
		e.EntryDate = entryDay(*in.EntryDate)
	}
	if in.SharedLevel != nil {
		e.SharedLevel = sharing.Normalize(*in.SharedLevel)
	}

	if err := s.store.UpdateEntry(ctx, &e); err != nil {
		return models.JournalEntry{}, fmt.Errorf("update entry: %w", err)
	}
	s.logger.Info("entry updated", zap.Int64("entry_id", e.ID), zap.Stringer("shared_level", e.SharedLevel))

	s.dispatch(ctx, "edit", e, func(ctx context.Context) error {
		return s.dispatcher.DispatchEdit(ctx, e, author)
	})
	return e, nil
}

// Delete removes an entry; its disclosures are removed with it.
func (s *Service) Delete(ctx context.Context, journalerID, entryID int64) error {
	if _, err := s.Get(ctx, journalerID, entryID); err != nil {
		return err
	}
	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info("entry deleted", zap.Int64("entry_id", entryID))
	return nil
}

// Get returns an entry owned by journalerID. Entries of other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, journalerID, entryID int64) (models.JournalEntry, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && e.JournalerID != journalerID) {
		return models.JournalEntry{}, ErrNotFound
	}
	return e, err
}

func (s *Service) List(ctx context.Context, journalerID int64, limit int) ([]models.JournalEntry, error) {
	return s.store.ListEntries(ctx, journalerID, store.Clamp(limit, 30, 200))
}

// ListForMentor returns a linked journaler's entries as the mentor may see
// them. Entries that resolve to private are left out.
func (s *Service) ListForMentor(ctx context.Context, mentorID, journalerID int64, limit int) ([]sharing.Projection, error) {
	mentor, err := s.mentorFor(ctx, mentorID, journalerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, journalerID, store.Clamp(limit, 30, 200))
	if err != nil {
		return nil, err
	}
	out := make([]sharing.Projection, 0, len(entries))
	for _, e := range entries {
		tier := sharing.Resolve(e.SharedLevel, mentor.ShareCap)
		if sharing.Visible(tier) {
			out = append(out, sharing.Shape(e, tier))
		}
	}
	return out, nil
}

// GetForMentor returns one entry shaped for the mentor.
func (s *Service) GetForMentor(ctx context.Context, mentorID, entryID int64) (sharing.Projection, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return sharing.Projection{}, ErrNotFound
		}
		return sharing.Projection{}, err
	}
	mentor, err := s.mentorFor(ctx, mentorID, e.JournalerID)
	if err != nil {
		if errors.Is(err, ErrNotLinked) {
			return sharing.Projection{}, ErrNotFound
		}
		return sharing.Projection{}, err
	}
	tier := sharing.Resolve(e.SharedLevel, mentor.ShareCap)
	if !sharing.Visible(tier) {
		return sharing.Projection{}, ErrNotFound
	}
	return sharing.Shape(e, tier), nil
}

// Wait blocks until background dispatches finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) dispatch(ctx context.Context, kind string, e models.JournalEntry, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Error("dispatch failed", zap.String("kind", kind), zap.Int64("entry_id", e.ID), zap.Error(err))
		}
	}()
}

// entryDay is the UTC calendar day t falls on.
func entryDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

func (s *Service) author(ctx context.Context, journalerID int64) (models.User, error) {
	u, err := s.store.GetUser(ctx, journalerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	if u.Role != models.RoleJournaler {
		return models.User{}, ErrForbidden
	}
	return u, nil
}

func (s *Service) mentorFor(ctx context.Context, mentorID, journalerID int64) (models.User, error) {
	linked, err := s.store.IsLinked(ctx, mentorID, journalerID)
	if err != nil {
		return models.User{}, err
	}
	if !linked {
		return models.User{}, ErrNotLinked
	}
	eligible, err := s.store.IsEligibleMentor(ctx, mentorID)
	if err != nil {
		return models.User{}, err
	}
	if !eligible {
		return models.User{}, ErrForbidden
	}
	return s.store.GetUser(ctx, mentorID)
}

// checkResponses validates answers against the form: unknown fields are
// rejected, required fields must be answered, and labels come from the
// form. Answers keep the order they were given in.
func checkResponses(form models.Form, responses []models.Response) ([]models.Response, error) {
	fields := make(map[string]models.FormField, len(form.Fields))
	for _, f := range form.Fields {
		fields[f.ID] = f
	}
	seen := make(map[string]bool, len(responses))
	out := make([]models.Response, 0, len(responses))
	for _, r := range responses {
		id := strings.TrimSpace(r.FieldID)
		f, ok := fields[id]
		if len(fields) > 0 && !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, r.FieldID)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: field %q answered twice", ErrInvalidInput, id)
		}
		seen[id] = true
		if ok && f.Label != "" {
			r.Label = f.Label
		}
		r.FieldID = id
		out = append(out, r)
	}
	for _, f := range form.Fields {
		if !f.Required {
			continue
		}
		answered := false
		for _, r := range out {
			if r.FieldID == f.ID && strings.TrimSpace(r.Value.String()) != "" {
				answered = true
			}
		}
		if !answered {
			return nil, fmt.Errorf("%w: %q is required", ErrInvalidInput, f.Label)
		}
	}
	return out, nil
}
