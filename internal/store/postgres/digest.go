package postgres

import (
	"context"
	"time"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

const digestCandidatesStatement = `
SELECT
	m.id AS "mentor.id", m.email AS "mentor.email", m.name AS "mentor.name",
	m.password_hash AS "mentor.password_hash", m.role AS "mentor.role",
	m.share_cap AS "mentor.share_cap", m.created_at AS "mentor.created_at",
	j.id AS "journaler.id", j.email AS "journaler.email", j.name AS "journaler.name",
	j.password_hash AS "journaler.password_hash", j.role AS "journaler.role",
	j.share_cap AS "journaler.share_cap", j.created_at AS "journaler.created_at",
	l.created_at AS linked_at,
	e.id AS "entry.id", e.journaler_id AS "entry.journaler_id", e.form_id AS "entry.form_id",
	f.title AS "entry.form_title", e.entry_date AS "entry.entry_date",
	e.responses AS "entry.responses", e.mood AS "entry.mood", e.summary AS "entry.summary",
	e.shared_level AS "entry.shared_level", e.created_at AS "entry.created_at",
	e.updated_at AS "entry.updated_at"
FROM journal_entries e
JOIN forms f ON f.id = e.form_id
JOIN users j ON j.id = e.journaler_id
JOIN mentor_links l ON l.journaler_id = e.journaler_id AND l.created_at <= e.created_at
JOIN users m ON m.id = l.mentor_id AND m.role = 'mentor'
JOIN mentor_approvals ma ON lower(ma.email) = lower(m.email) AND ma.status = 'approved'
WHERE e.created_at >= $1 AND e.created_at < $2 AND e.shared_level <> 'private'
ORDER BY m.id, j.id, e.created_at, e.id`

type digestRow struct {
	Mentor    models.User `db:"mentor"`
	Journaler models.User `db:"journaler"`
	LinkedAt  time.Time   `db:"linked_at"`
	Entry     entryRow    `db:"entry"`
}

// DigestCandidates lists every (mentor, entry) pair created inside
// [since, until) that a currently eligible mentor was linked for.
func (s *Store) DigestCandidates(ctx context.Context, since, until time.Time) ([]store.DigestCandidate, error) {
	var rows []digestRow
	if err := s.db.SelectContext(ctx, &rows, digestCandidatesStatement, since, until); err != nil {
		return nil, err
	}
	out := make([]store.DigestCandidate, 0, len(rows))
	for _, r := range rows {
		e, err := s.decode(r.Entry)
		if err != nil {
			return nil, err
		}
		out = append(out, store.DigestCandidate{
			Mentor:    r.Mentor,
			Journaler: r.Journaler,
			LinkedAt:  r.LinkedAt,
			Entry:     e,
		})
	}
	return out, nil
}
