// Package digest batches shared entries into one periodic summary per
// mentor.
package digest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"mentorjournal/internal/models"
	"mentorjournal/internal/sharing"
	"mentorjournal/internal/store"
)

var ErrInvalidWindow = errors.New("digest: window bounds are required")

type Store interface {
	DigestCandidates(ctx context.Context, since, until time.Time) ([]store.DigestCandidate, error)
}

type Mentee struct {
	Journaler models.User          `json:"journaler"`
	Entries   []sharing.Projection `json:"entries"`
}

// Digest is everything one mentor may see from the window, grouped by
// journaler.
type Digest struct {
	Mentor     models.User `json:"mentor"`
	Mentees    []Mentee    `json:"mentees"`
	TotalCount int         `json:"total_count"`
}

type Builder struct {
	store Store
}

func NewBuilder(st Store) *Builder {
	return &Builder{store: st}
}

// Build returns one digest per mentor with at least one visible entry
// created in [since, until). An entry counts only if the mentor was linked
// before it was written. Digests are ordered by mentor id, mentees by
// journaler id and entries by creation time.
func (b *Builder) Build(ctx context.Context, since, until time.Time) ([]Digest, error) {
	if since.IsZero() || until.IsZero() {
		return nil, ErrInvalidWindow
	}
	if !since.Before(until) {
		return []Digest{}, nil
	}

	candidates, err := b.store.DigestCandidates(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("load digest candidates: %w", err)
	}
	slices.SortStableFunc(candidates, func(a, b store.DigestCandidate) int {
		return cmp.Or(
			cmp.Compare(a.Mentor.ID, b.Mentor.ID),
			cmp.Compare(a.Journaler.ID, b.Journaler.ID),
			a.Entry.CreatedAt.Compare(b.Entry.CreatedAt),
			cmp.Compare(a.Entry.ID, b.Entry.ID),
		)
	})

	digests := []Digest{}
	for _, c := range candidates {
		created := c.Entry.CreatedAt
		if created.Before(since) || !created.Before(until) || c.LinkedAt.After(created) {
			continue
		}
		tier := sharing.Resolve(c.Entry.SharedLevel, c.Mentor.ShareCap)
		if !sharing.Visible(tier) {
			continue
		}

		if len(digests) == 0 || digests[len(digests)-1].Mentor.ID != c.Mentor.ID {
			digests = append(digests, Digest{Mentor: c.Mentor})
		}
		d := &digests[len(digests)-1]
		if len(d.Mentees) == 0 || d.Mentees[len(d.Mentees)-1].Journaler.ID != c.Journaler.ID {
			d.Mentees = append(d.Mentees, Mentee{Journaler: c.Journaler})
		}
		m := &d.Mentees[len(d.Mentees)-1]
		m.Entries = append(m.Entries, sharing.Shape(c.Entry, tier))
		d.TotalCount++
	}
	return digests, nil
}
