package postgres

import (
	"context"
	"fmt"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

const (
	entryColumns = `e.id, e.journaler_id, e.form_id, f.title AS form_title, e.entry_date,
		e.responses, e.mood, e.summary, e.shared_level, e.created_at, e.updated_at`

	insertEntryStatement = `
	INSERT INTO journal_entries (journaler_id, form_id, entry_date, responses, mood, summary, shared_level)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at, updated_at`

	updateEntryStatement = `
	UPDATE journal_entries
	SET entry_date = $1, responses = $2, mood = $3, summary = $4, shared_level = $5, updated_at = NOW()
	WHERE id = $6
	RETURNING updated_at`

	getEntryStatement = `
	SELECT ` + entryColumns + `
	FROM journal_entries e JOIN forms f ON f.id = e.form_id
	WHERE e.id = $1`

	listEntriesStatement = `
	SELECT ` + entryColumns + `
	FROM journal_entries e JOIN forms f ON f.id = e.form_id
	WHERE e.journaler_id = $1
	ORDER BY e.entry_date DESC, e.created_at DESC
	LIMIT $2`

	deleteEntryStatement = `DELETE FROM journal_entries WHERE id = $1`

	countEntriesByFormStatement = `
	SELECT form_id, COUNT(*) AS n
	FROM journal_entries
	WHERE journaler_id = $1 AND form_id = ANY($2)
	GROUP BY form_id`
)

// entryRow is a journal_entries row with content still in stored form.
type entryRow struct {
	models.JournalEntry
	ResponsesRaw string  `db:"responses"`
	MoodRaw      *string `db:"mood"`
	SummaryRaw   string  `db:"summary"`
}

func (s *Store) decode(r entryRow) (models.JournalEntry, error) {
	e := r.JournalEntry
	if err := s.codec.DecodeEntry(&e, r.ResponsesRaw, r.MoodRaw, r.SummaryRaw); err != nil {
		return models.JournalEntry{}, fmt.Errorf("decode entry %d: %w", r.ID, err)
	}
	return e, nil
}

func (s *Store) CreateEntry(ctx context.Context, e *models.JournalEntry) error {
	responses, mood, summary, err := s.codec.EncodeEntry(*e)
	if err != nil {
		return err
	}
	err = s.db.QueryRowxContext(ctx, insertEntryStatement,
		e.JournalerID, e.FormID, e.EntryDate, responses, mood, summary, e.SharedLevel).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}
	return s.db.GetContext(ctx, &e.FormTitle, `SELECT title FROM forms WHERE id = $1`, e.FormID)
}

func (s *Store) UpdateEntry(ctx context.Context, e *models.JournalEntry) error {
	responses, mood, summary, err := s.codec.EncodeEntry(*e)
	if err != nil {
		return err
	}
	err = s.db.QueryRowxContext(ctx, updateEntryStatement,
		e.EntryDate, responses, mood, summary, e.SharedLevel, e.ID).
		Scan(&e.UpdatedAt)
	return notFound(err)
}

func (s *Store) GetEntry(ctx context.Context, id int64) (models.JournalEntry, error) {
	var r entryRow
	if err := s.db.GetContext(ctx, &r, getEntryStatement, id); err != nil {
		return models.JournalEntry{}, notFound(err)
	}
	return s.decode(r)
}

func (s *Store) ListEntries(ctx context.Context, journalerID int64, limit int) ([]models.JournalEntry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, listEntriesStatement, journalerID, limit); err != nil {
		return nil, err
	}
	out := make([]models.JournalEntry, 0, len(rows))
	for _, r := range rows {
		e, err := s.decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DeleteEntry removes an entry; its disclosure notifications go with it
// through the notifications.entry_id cascade.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, deleteEntryStatement, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountEntriesByForm(ctx context.Context, journalerID int64, formIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(formIDs))
	if len(formIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryxContext(ctx, countEntriesByFormStatement, journalerID, formIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var formID int64
		var n int
		if err := rows.Scan(&formID, &n); err != nil {
			return nil, err
		}
		out[formID] = n
	}
	return out, rows.Err()
}
