package postgres

import (
	"context"
	"database/sql"
	"errors"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

const (
	notificationColumns = `id, user_id, type, title, body, metadata, action_url, read_at, created_at, updated_at`

	insertNotificationStatement = `
	INSERT INTO notifications (user_id, type, title, body, metadata, correlation_key, entry_id, action_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at`

	// Refreshes in place on a repeated key; (xmax = 0) is true only for
	// freshly inserted rows.
	upsertNotificationStatement = `
	INSERT INTO notifications (user_id, type, title, body, metadata, correlation_key, entry_id, action_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, correlation_key) WHERE correlation_key IS NOT NULL
	DO UPDATE SET
		title = EXCLUDED.title,
		body = EXCLUDED.body,
		metadata = EXCLUDED.metadata,
		action_url = EXCLUDED.action_url,
		read_at = NULL,
		updated_at = NOW()
	RETURNING id, created_at, updated_at, (xmax = 0)`

	insertOnceNotificationStatement = `
	INSERT INTO notifications (user_id, type, title, body, metadata, correlation_key, entry_id, action_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, correlation_key) WHERE correlation_key IS NOT NULL
	DO NOTHING
	RETURNING id, created_at, updated_at`

	deleteDisclosuresStatement = `
	DELETE FROM notifications
	WHERE type = 'disclosure' AND correlation_key = $1 AND NOT (user_id = ANY($2))`

	listNotificationsStatement = `
	SELECT ` + notificationColumns + ` FROM notifications
	WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
	ORDER BY created_at DESC, id DESC
	LIMIT $3`

	markReadStatement    = `UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`
	markAllReadStatement = `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`
)

func notificationArgs(n *models.Notification) []any {
	var entryID *int64
	if n.Metadata.EntryID != 0 && n.Type == models.NotificationDisclosure {
		id := n.Metadata.EntryID
		entryID = &id
	}
	return []any{n.UserID, n.Type, n.Title, n.Body, n.Metadata, nullableString(n.Metadata.CorrelationKey), entryID, n.ActionURL}
}

func (t *txStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	err := t.tx.QueryRowxContext(ctx, insertNotificationStatement, notificationArgs(n)...).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	return duplicate(err)
}

// UpsertNotification inserts n or refreshes the recipient's notification
// with the same correlation key. created is false on refresh.
func (s *Store) UpsertNotification(ctx context.Context, n *models.Notification) (created bool, err error) {
	n.ReadAt = nil
	err = s.db.QueryRowxContext(ctx, upsertNotificationStatement, notificationArgs(n)...).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt, &created)
	return created, err
}

// InsertNotificationOnce inserts n unless the recipient already holds a
// notification with the same correlation key.
func (s *Store) InsertNotificationOnce(ctx context.Context, n *models.Notification) (bool, error) {
	err := s.db.QueryRowxContext(ctx, insertOnceNotificationStatement, notificationArgs(n)...).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteDisclosures removes the disclosure notifications of entryID held by
// anyone outside keepUserIDs.
func (s *Store) DeleteDisclosures(ctx context.Context, entryID int64, keepUserIDs []int64) (int64, error) {
	if keepUserIDs == nil {
		keepUserIDs = []int64{}
	}
	res, err := s.db.ExecContext(ctx, deleteDisclosuresStatement, models.DisclosureKey(entryID), keepUserIDs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.SelectContext(ctx, &out, listNotificationsStatement, userID, unreadOnly, limit)
	return out, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, markReadStatement, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, markAllReadStatement, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
