// Package notify fans a journal entry out to the mentors entitled to see
// it. Each mentor receives at most one disclosure notification per entry,
// refreshed in place on edits, and at most one milestone notification per
// set of completed form assignments.
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mentorjournal/internal/mail"
	"mentorjournal/internal/models"
	"mentorjournal/internal/sharing"
	"mentorjournal/internal/store"
	"mentorjournal/internal/templates"
)

// Store is the persistence the dispatcher reads and writes. Every call
// reads committed state; nothing is cached between dispatches.
type Store interface {
	GetEntry(ctx context.Context, id int64) (models.JournalEntry, error)
	LinkedMentors(ctx context.Context, journalerID int64) ([]models.User, error)
	UpsertNotification(ctx context.Context, n *models.Notification) (created bool, err error)
	InsertNotificationOnce(ctx context.Context, n *models.Notification) (bool, error)
	DeleteDisclosures(ctx context.Context, entryID int64, keepUserIDs []int64) (int64, error)
	ListAssignments(ctx context.Context, mentorID, journalerID int64) ([]models.FormAssignment, error)
	CountEntriesByForm(ctx context.Context, journalerID int64, formIDs []int64) (map[int64]int, error)
	GetForm(ctx context.Context, id int64) (models.Form, error)
}

type Dispatcher struct {
	store    Store
	mailer   mail.Mailer
	renderer *templates.Renderer
	logger   *zap.Logger
	baseURL  string
	locks    entryLocks
}

func NewDispatcher(st Store, mailer mail.Mailer, renderer *templates.Renderer, logger *zap.Logger, baseURL string) *Dispatcher {
	return &Dispatcher{
		store:    st,
		mailer:   mailer,
		renderer: renderer,
		logger:   logger.Named("dispatcher"),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// MilestoneKey identifies the milestone for one mentor, journaler and set
// of assigned forms. formIDs must be sorted.
func MilestoneKey(mentorID, journalerID int64, formIDs []int64) string {
	parts := make([]string, len(formIDs))
	for i, id := range formIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("milestone:%d:%d:%s", mentorID, journalerID, strings.Join(parts, ","))
}

// DispatchDisclosure notifies every linked mentor of a newly written entry
// at the tier each of them is entitled to. Failures for one mentor do not
// stop the others; they are returned joined.
//
// entry only identifies the entry. Its committed state is read back so a
// dispatch that runs late never discloses more than the entry now allows.
func (d *Dispatcher) DispatchDisclosure(ctx context.Context, entry models.JournalEntry, journaler models.User) error {
	unlock := d.locks.lock(entry.ID)
	defer unlock()

	current, err := d.store.GetEntry(ctx, entry.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload entry %d: %w", entry.ID, err)
	}
	if !sharing.Visible(current.SharedLevel) {
		return nil
	}
	mentors, err := d.store.LinkedMentors(ctx, journaler.ID)
	if err != nil {
		return fmt.Errorf("linked mentors of %d: %w", journaler.ID, err)
	}
	_, err = d.fanOut(ctx, current, journaler, mentors, false)
	return err
}

// DispatchEdit re-evaluates an entry after an edit. Disclosures are
// refreshed for mentors still entitled to the entry and withdrawn from
// everyone else, including every mentor when the entry became private.
// Like DispatchDisclosure it works from the committed entry.
func (d *Dispatcher) DispatchEdit(ctx context.Context, entry models.JournalEntry, journaler models.User) error {
	unlock := d.locks.lock(entry.ID)
	defer unlock()

	current, err := d.store.GetEntry(ctx, entry.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		current = models.JournalEntry{ID: entry.ID, SharedLevel: models.TierPrivate}
	case err != nil:
		return fmt.Errorf("reload entry %d: %w", entry.ID, err)
	}

	if !sharing.Visible(current.SharedLevel) {
		n, err := d.store.DeleteDisclosures(ctx, current.ID, nil)
		if err != nil {
			return fmt.Errorf("retract disclosures for entry %d: %w", current.ID, err)
		}
		d.logger.Info("disclosures retracted", zap.Int64("entry_id", current.ID), zap.Int64("removed", n))
		return nil
	}

	// Without the mentor list nobody can be told apart from a mentor who
	// lost access, so nothing is pruned.
	mentors, err := d.store.LinkedMentors(ctx, journaler.ID)
	if err != nil {
		return fmt.Errorf("linked mentors of %d: %w", journaler.ID, err)
	}
	kept, err := d.fanOut(ctx, current, journaler, mentors, true)
	if n, derr := d.store.DeleteDisclosures(ctx, current.ID, kept); derr != nil {
		err = errors.Join(err, fmt.Errorf("prune disclosures for entry %d: %w", current.ID, derr))
	} else if n > 0 {
		d.logger.Info("disclosures withdrawn", zap.Int64("entry_id", current.ID), zap.Int64("removed", n))
	}
	return err
}

// fanOut upserts a disclosure for every entitled mentor and returns their
// ids. On edits the ids of mentors whose upsert failed are kept as well so
// a transient error never deletes a notification the mentor is owed.
func (d *Dispatcher) fanOut(ctx context.Context, entry models.JournalEntry, journaler models.User,
	mentors []models.User, edit bool) ([]int64, error) {
	var errs []error
	kept := make([]int64, 0, len(mentors))
	for _, mentor := range mentors {
		tier := sharing.Resolve(entry.SharedLevel, mentor.ShareCap)
		if !sharing.Visible(tier) {
			continue
		}
		kept = append(kept, mentor.ID)

		if err := d.disclose(ctx, entry, journaler, mentor, tier, edit); err != nil {
			d.logger.Error("disclosure failed",
				zap.Int64("entry_id", entry.ID), zap.Int64("mentor_id", mentor.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("mentor %d: %w", mentor.ID, err))
			continue
		}
		if err := d.checkMilestone(ctx, journaler, mentor); err != nil {
			d.logger.Error("milestone check failed",
				zap.Int64("journaler_id", journaler.ID), zap.Int64("mentor_id", mentor.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("milestone for mentor %d: %w", mentor.ID, err))
		}
	}
	return kept, errors.Join(errs...)
}

func (d *Dispatcher) disclose(ctx context.Context, entry models.JournalEntry, journaler, mentor models.User,
	tier models.SharingTier, edit bool) error {
	action := d.url(fmt.Sprintf("/mentees/%d/entries/%d", journaler.ID, entry.ID))
	r, err := d.renderer.Disclosure(templates.DisclosureView{
		JournalerName: journaler.DisplayName(),
		Projection:    sharing.Shape(entry, tier),
		ActionURL:     deref(action),
		Updated:       edit,
	})
	if err != nil {
		return err
	}

	n := models.Notification{
		UserID: mentor.ID,
		Type:   models.NotificationDisclosure,
		Title:  r.Subject,
		Body:   r.Text,
		Metadata: models.NotificationMetadata{
			CorrelationKey: models.DisclosureKey(entry.ID),
			EntryID:        entry.ID,
			JournalerID:    journaler.ID,
			MentorID:       mentor.ID,
			Tier:           tier.String(),
		},
		ActionURL: action,
	}
	created, err := d.store.UpsertNotification(ctx, &n)
	if err != nil {
		return fmt.Errorf("upsert disclosure: %w", err)
	}
	if created {
		d.send(ctx, mentor, r)
	}
	return nil
}

// checkMilestone records the milestone once every form assigned by mentor
// has at least one entry from journaler.
func (d *Dispatcher) checkMilestone(ctx context.Context, journaler, mentor models.User) error {
	assignments, err := d.store.ListAssignments(ctx, mentor.ID, journaler.ID)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}
	formIDs := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		formIDs = append(formIDs, a.FormID)
	}
	slices.Sort(formIDs)
	formIDs = slices.Compact(formIDs)

	counts, err := d.store.CountEntriesByForm(ctx, journaler.ID, formIDs)
	if err != nil {
		return err
	}
	for _, id := range formIDs {
		if counts[id] == 0 {
			return nil
		}
	}

	titles := make([]string, 0, len(formIDs))
	for _, id := range formIDs {
		f, err := d.store.GetForm(ctx, id)
		if err != nil {
			return fmt.Errorf("form %d: %w", id, err)
		}
		titles = append(titles, f.Title)
	}
	action := d.url(fmt.Sprintf("/mentees/%d", journaler.ID))
	r, err := d.renderer.Milestone(templates.MilestoneView{
		JournalerName: journaler.DisplayName(),
		FormTitles:    titles,
		ActionURL:     deref(action),
	})
	if err != nil {
		return err
	}

	n := models.Notification{
		UserID: mentor.ID,
		Type:   models.NotificationMilestone,
		Title:  r.Subject,
		Body:   r.Text,
		Metadata: models.NotificationMetadata{
			CorrelationKey: MilestoneKey(mentor.ID, journaler.ID, formIDs),
			JournalerID:    journaler.ID,
			MentorID:       mentor.ID,
			FormIDs:        formIDs,
		},
		ActionURL: action,
	}
	inserted, err := d.store.InsertNotificationOnce(ctx, &n)
	if err != nil {
		return fmt.Errorf("insert milestone: %w", err)
	}
	if inserted {
		d.logger.Info("milestone reached", zap.Int64("journaler_id", journaler.ID), zap.Int64("mentor_id", mentor.ID))
		d.send(ctx, mentor, r)
	}
	return nil
}

// send delivers mail best effort. The notification record is what counts.
func (d *Dispatcher) send(ctx context.Context, to models.User, r templates.Rendered) {
	if to.Email == "" {
		return
	}
	err := d.mailer.Send(ctx, mail.Message{To: to.Email, Subject: r.Subject, Text: r.Text, HTML: r.HTML})
	if err != nil {
		d.logger.Warn("notification mail failed", zap.Int64("user_id", to.ID), zap.Error(err))
	}
}

func (d *Dispatcher) url(path string) *string {
	if d.baseURL == "" {
		return nil
	}
	u := d.baseURL + path
	return &u
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// entryLocks serializes dispatches for the same entry within a process, so
// the last dispatch to run always sees the last committed write.
type entryLocks struct {
	mu   sync.Mutex
	byID map[int64]*entryLock
}

type entryLock struct {
	sync.Mutex
	refs int
}

func (l *entryLocks) lock(id int64) (unlock func()) {
	l.mu.Lock()
	if l.byID == nil {
		l.byID = make(map[int64]*entryLock)
	}
	el, ok := l.byID[id]
	if !ok {
		el = &entryLock{}
		l.byID[id] = el
	}
	el.refs++
	l.mu.Unlock()

	el.Lock()
	return func() {
		el.Unlock()
		l.mu.Lock()
		el.refs--
		if el.refs == 0 {
			delete(l.byID, id)
		}
		l.mu.Unlock()
	}
}
