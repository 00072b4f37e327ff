package postgres

import (
	"context"

	"mentorjournal/internal/models"
)

const (
	userColumns = `id, email, name, password_hash, role, share_cap, created_at`

	insertUserStatement = `
	INSERT INTO users (email, name, password_hash, role, share_cap)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at`

	getUserStatement        = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByEmailStatement = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	updateUserStatement = `UPDATE users SET name = $1, share_cap = $2 WHERE id = $3`

	// A mentor is eligible while their email has an approved vetting record.
	eligibleMentorStatement = `
	SELECT EXISTS (
		SELECT 1 FROM users u
		JOIN mentor_approvals ma ON lower(ma.email) = lower(u.email) AND ma.status = 'approved'
		WHERE u.id = $1 AND u.role = 'mentor'
	)`
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowxContext(ctx, insertUserStatement, u.Email, u.Name, u.PasswordHash, u.Role, u.ShareCap).
		Scan(&u.ID, &u.CreatedAt)
	return duplicate(err)
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	return getUser(ctx, s.db, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return getUserByEmail(ctx, s.db, email)
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, updateUserStatement, u.Name, u.ShareCap, u.ID)
	return err
}

func (s *Store) IsEligibleMentor(ctx context.Context, userID int64) (bool, error) {
	return isEligibleMentor(ctx, s.db, userID)
}

func (t *txStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *txStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return getUserByEmail(ctx, t.tx, email)
}

func (t *txStore) IsEligibleMentor(ctx context.Context, userID int64) (bool, error) {
	return isEligibleMentor(ctx, t.tx, userID)
}

func getUser(ctx context.Context, q queryer, id int64) (models.User, error) {
	var u models.User
	if err := q.GetContext(ctx, &u, getUserStatement, id); err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}

func getUserByEmail(ctx context.Context, q queryer, email string) (models.User, error) {
	var u models.User
	if err := q.GetContext(ctx, &u, getUserByEmailStatement, email); err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}

func isEligibleMentor(ctx context.Context, q queryer, userID int64) (bool, error) {
	var ok bool
	err := q.GetContext(ctx, &ok, eligibleMentorStatement, userID)
	return ok, err
}
