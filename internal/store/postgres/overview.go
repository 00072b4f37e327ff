package postgres

import (
	"context"

	"mentorjournal/internal/store"
)

const overviewStatement = `
SELECT
	(SELECT COUNT(*) FROM users) AS total_users,
	(SELECT COUNT(*) FROM journal_entries) AS total_entries,
	(SELECT COUNT(*) FROM mentor_links) AS active_links,
	(SELECT COUNT(*) FROM mentor_requests WHERE status IN ('pending', 'mentor_accepted')) AS pending_requests,
	(SELECT COUNT(*) FROM mentor_approvals WHERE status = 'pending') AS pending_approvals,
	(SELECT COUNT(*) FROM journal_entries WHERE created_at >= NOW() - INTERVAL '7 days') AS entries_this_week`

func (s *Store) Overview(ctx context.Context) (store.Overview, error) {
	var o store.Overview
	err := s.db.GetContext(ctx, &o, overviewStatement)
	return o, err
}
