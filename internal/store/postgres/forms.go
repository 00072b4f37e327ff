package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"mentorjournal/internal/models"
)

const (
	insertFormStatement = `
	INSERT INTO forms (title, fields, created_by) VALUES ($1, $2, $3)
	RETURNING id, created_at`

	formColumns = `id, title, fields, created_by, created_at`

	getFormStatement   = `SELECT ` + formColumns + ` FROM forms WHERE id = $1`
	listFormsStatement = `SELECT ` + formColumns + ` FROM forms ORDER BY title, id`

	insertAssignmentStatement = `
	INSERT INTO form_assignments (mentor_id, journaler_id, form_id) VALUES ($1, $2, $3)
	RETURNING id, created_at`

	listAssignmentsStatement = `
	SELECT id, mentor_id, journaler_id, form_id, created_at
	FROM form_assignments
	WHERE mentor_id = $1 AND journaler_id = $2
	ORDER BY form_id`
)

type formRow struct {
	models.Form
	FieldsRaw []byte `db:"fields"`
}

func (r formRow) decode() (models.Form, error) {
	f := r.Form
	if len(r.FieldsRaw) > 0 {
		if err := json.Unmarshal(r.FieldsRaw, &f.Fields); err != nil {
			return models.Form{}, fmt.Errorf("decode form %d fields: %w", r.ID, err)
		}
	}
	if f.Fields == nil {
		f.Fields = []models.FormField{}
	}
	return f, nil
}

func (s *Store) CreateForm(ctx context.Context, f *models.Form) error {
	fields := f.Fields
	if fields == nil {
		fields = []models.FormField{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return s.db.QueryRowxContext(ctx, insertFormStatement, f.Title, string(raw), f.CreatedBy).
		Scan(&f.ID, &f.CreatedAt)
}

func (s *Store) GetForm(ctx context.Context, id int64) (models.Form, error) {
	var r formRow
	if err := s.db.GetContext(ctx, &r, getFormStatement, id); err != nil {
		return models.Form{}, notFound(err)
	}
	return r.decode()
}

func (s *Store) ListForms(ctx context.Context) ([]models.Form, error) {
	var rows []formRow
	if err := s.db.SelectContext(ctx, &rows, listFormsStatement); err != nil {
		return nil, err
	}
	out := make([]models.Form, 0, len(rows))
	for _, r := range rows {
		f, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) CreateAssignment(ctx context.Context, a *models.FormAssignment) error {
	err := s.db.QueryRowxContext(ctx, insertAssignmentStatement, a.MentorID, a.JournalerID, a.FormID).
		Scan(&a.ID, &a.CreatedAt)
	return duplicate(err)
}

func (s *Store) ListAssignments(ctx context.Context, mentorID, journalerID int64) ([]models.FormAssignment, error) {
	var out []models.FormAssignment
	err := s.db.SelectContext(ctx, &out, listAssignmentsStatement, mentorID, journalerID)
	return out, err
}
