package postgres

import (
	"context"

	"mentorjournal/internal/models"
)

const (
	requestColumns = `id, journaler_id, mentor_id, message, status, responded_at, decided_by, created_at, updated_at`

	lockRequestStatement        = `SELECT ` + requestColumns + ` FROM mentor_requests WHERE id = $1 FOR UPDATE`
	lockRequestForPairStatement = `SELECT ` + requestColumns + ` FROM mentor_requests WHERE journaler_id = $1 AND mentor_id = $2 FOR UPDATE`

	insertRequestStatement = `
	INSERT INTO mentor_requests (journaler_id, mentor_id, message, status)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at, updated_at`

	updateRequestStatement = `
	UPDATE mentor_requests
	SET message = $1, status = $2, responded_at = $3, decided_by = $4, updated_at = NOW()
	WHERE id = $5
	RETURNING updated_at`

	listRequestsStatement = `
	SELECT ` + requestColumns + ` FROM mentor_requests
	WHERE journaler_id = $1 OR mentor_id = $1
	ORDER BY updated_at DESC`

	linkColumns = `id, mentor_id, journaler_id, created_by, created_at`

	lockLinkStatement = `SELECT ` + linkColumns + ` FROM mentor_links WHERE mentor_id = $1 AND journaler_id = $2 FOR UPDATE`

	insertLinkStatement = `
	INSERT INTO mentor_links (mentor_id, journaler_id, created_by)
	VALUES ($1, $2, $3)
	RETURNING id, created_at`

	deleteLinkStatement = `DELETE FROM mentor_links WHERE id = $1`

	listLinksStatement = `
	SELECT ` + linkColumns + ` FROM mentor_links
	WHERE mentor_id = $1 OR journaler_id = $1
	ORDER BY created_at`

	isLinkedStatement = `SELECT EXISTS (SELECT 1 FROM mentor_links WHERE mentor_id = $1 AND journaler_id = $2)`

	linkedMentorsStatement = `
	SELECT u.id, u.email, u.name, u.password_hash, u.role, u.share_cap, u.created_at
	FROM mentor_links l
	JOIN users u ON u.id = l.mentor_id AND u.role = 'mentor'
	JOIN mentor_approvals ma ON lower(ma.email) = lower(u.email) AND ma.status = 'approved'
	WHERE l.journaler_id = $1
	ORDER BY u.id`

	approvalColumns = `id, email, name, note, status, decided_by, decided_at, created_at`

	lockApprovalStatement        = `SELECT ` + approvalColumns + ` FROM mentor_approvals WHERE id = $1 FOR UPDATE`
	lockApprovalByEmailStatement = `SELECT ` + approvalColumns + ` FROM mentor_approvals WHERE lower(email) = lower($1) FOR UPDATE`

	insertApprovalStatement = `
	INSERT INTO mentor_approvals (email, name, note, status)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at`

	updateApprovalStatement = `
	UPDATE mentor_approvals
	SET name = $1, note = $2, status = $3, decided_by = $4, decided_at = $5
	WHERE id = $6`

	listApprovalsStatement = `
	SELECT ` + approvalColumns + ` FROM mentor_approvals
	WHERE ($1 = '' OR status = $1)
	ORDER BY created_at DESC`
)

func (t *txStore) LockMentorRequest(ctx context.Context, id int64) (models.MentorRequest, error) {
	var r models.MentorRequest
	if err := t.tx.GetContext(ctx, &r, lockRequestStatement, id); err != nil {
		return models.MentorRequest{}, notFound(err)
	}
	return r, nil
}

func (t *txStore) LockMentorRequestForPair(ctx context.Context, journalerID, mentorID int64) (models.MentorRequest, error) {
	var r models.MentorRequest
	if err := t.tx.GetContext(ctx, &r, lockRequestForPairStatement, journalerID, mentorID); err != nil {
		return models.MentorRequest{}, notFound(err)
	}
	return r, nil
}

func (t *txStore) InsertMentorRequest(ctx context.Context, r *models.MentorRequest) error {
	err := t.tx.QueryRowxContext(ctx, insertRequestStatement, r.JournalerID, r.MentorID, r.Message, r.Status).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return duplicate(err)
}

func (t *txStore) UpdateMentorRequest(ctx context.Context, r *models.MentorRequest) error {
	err := t.tx.QueryRowxContext(ctx, updateRequestStatement, r.Message, r.Status, r.RespondedAt, r.DecidedBy, r.ID).
		Scan(&r.UpdatedAt)
	return notFound(err)
}

func (t *txStore) LockMentorLink(ctx context.Context, mentorID, journalerID int64) (models.MentorLink, error) {
	var l models.MentorLink
	if err := t.tx.GetContext(ctx, &l, lockLinkStatement, mentorID, journalerID); err != nil {
		return models.MentorLink{}, notFound(err)
	}
	return l, nil
}

// InsertMentorLink reports store.ErrDuplicate when the pair is already
// linked; the unique constraint covers inserts that raced past the lock.
func (t *txStore) InsertMentorLink(ctx context.Context, l *models.MentorLink) error {
	err := t.tx.QueryRowxContext(ctx, insertLinkStatement, l.MentorID, l.JournalerID, l.CreatedBy).
		Scan(&l.ID, &l.CreatedAt)
	return duplicate(err)
}

func (t *txStore) DeleteMentorLink(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, deleteLinkStatement, id)
	return err
}

func (t *txStore) LockMentorApproval(ctx context.Context, id int64) (models.MentorApproval, error) {
	var a models.MentorApproval
	if err := t.tx.GetContext(ctx, &a, lockApprovalStatement, id); err != nil {
		return models.MentorApproval{}, notFound(err)
	}
	return a, nil
}

func (t *txStore) LockMentorApprovalByEmail(ctx context.Context, email string) (models.MentorApproval, error) {
	var a models.MentorApproval
	if err := t.tx.GetContext(ctx, &a, lockApprovalByEmailStatement, email); err != nil {
		return models.MentorApproval{}, notFound(err)
	}
	return a, nil
}

func (t *txStore) InsertMentorApproval(ctx context.Context, a *models.MentorApproval) error {
	err := t.tx.QueryRowxContext(ctx, insertApprovalStatement, a.Email, a.Name, a.Note, a.Status).
		Scan(&a.ID, &a.CreatedAt)
	return duplicate(err)
}

func (t *txStore) UpdateMentorApproval(ctx context.Context, a *models.MentorApproval) error {
	_, err := t.tx.ExecContext(ctx, updateApprovalStatement, a.Name, a.Note, a.Status, a.DecidedBy, a.DecidedAt, a.ID)
	return err
}

func (s *Store) GetMentorRequest(ctx context.Context, id int64) (models.MentorRequest, error) {
	var r models.MentorRequest
	if err := s.db.GetContext(ctx, &r, `SELECT `+requestColumns+` FROM mentor_requests WHERE id = $1`, id); err != nil {
		return models.MentorRequest{}, notFound(err)
	}
	return r, nil
}

func (s *Store) ListMentorRequests(ctx context.Context, userID int64) ([]models.MentorRequest, error) {
	var out []models.MentorRequest
	err := s.db.SelectContext(ctx, &out, listRequestsStatement, userID)
	return out, err
}

func (s *Store) ListLinksForUser(ctx context.Context, userID int64) ([]models.MentorLink, error) {
	var out []models.MentorLink
	err := s.db.SelectContext(ctx, &out, listLinksStatement, userID)
	return out, err
}

func (s *Store) IsLinked(ctx context.Context, mentorID, journalerID int64) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, isLinkedStatement, mentorID, journalerID)
	return ok, err
}

// LinkedMentors returns the eligible mentors currently linked to journalerID.
func (s *Store) LinkedMentors(ctx context.Context, journalerID int64) ([]models.User, error) {
	var out []models.User
	err := s.db.SelectContext(ctx, &out, linkedMentorsStatement, journalerID)
	return out, err
}

func (s *Store) ListMentorApprovals(ctx context.Context, status models.ApprovalStatus) ([]models.MentorApproval, error) {
	var out []models.MentorApproval
	err := s.db.SelectContext(ctx, &out, listApprovalsStatement, string(status))
	return out, err
}
