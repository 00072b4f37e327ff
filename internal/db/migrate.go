package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'journaler' CHECK (role IN ('journaler', 'mentor', 'admin')),
    share_cap TEXT DEFAULT 'full',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));

CREATE TABLE IF NOT EXISTS mentor_approvals (
    id BIGSERIAL PRIMARY KEY,
    email TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    decided_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
    decided_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS mentor_approvals_email_key ON mentor_approvals (lower(email));

CREATE TABLE IF NOT EXISTS forms (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    fields JSONB NOT NULL DEFAULT '[]',
    created_by BIGINT NOT NULL REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS form_assignments (
    id BIGSERIAL PRIMARY KEY,
    mentor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    journaler_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    form_id BIGINT NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (mentor_id, journaler_id, form_id)
);

CREATE TABLE IF NOT EXISTS journal_entries (
    id BIGSERIAL PRIMARY KEY,
    journaler_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    form_id BIGINT NOT NULL REFERENCES forms(id),
    entry_date DATE NOT NULL DEFAULT CURRENT_DATE,
    responses TEXT NOT NULL DEFAULT '[]',
    mood TEXT,
    summary TEXT NOT NULL DEFAULT '',
    shared_level TEXT NOT NULL DEFAULT 'private',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS journal_entries_journaler_idx ON journal_entries (journaler_id, entry_date DESC);
CREATE INDEX IF NOT EXISTS journal_entries_created_idx ON journal_entries (created_at);

CREATE TABLE IF NOT EXISTS mentor_requests (
    id BIGSERIAL PRIMARY KEY,
    journaler_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    mentor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    message TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK (status IN ('pending', 'mentor_accepted', 'confirmed', 'declined', 'ended')),
    responded_at TIMESTAMPTZ,
    decided_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (journaler_id, mentor_id)
);

CREATE TABLE IF NOT EXISTS mentor_links (
    id BIGSERIAL PRIMARY KEY,
    mentor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    journaler_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_by BIGINT NOT NULL REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (mentor_id, journaler_id)
);
CREATE INDEX IF NOT EXISTS mentor_links_journaler_idx ON mentor_links (journaler_id);

CREATE TABLE IF NOT EXISTS notifications (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}',
    action_url TEXT,
    read_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Columns added after the first release of the notifications table.
	alters := `
DO $$ BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='notifications' AND column_name='correlation_key'
    ) THEN
        ALTER TABLE notifications ADD COLUMN correlation_key TEXT;
        UPDATE notifications SET correlation_key = metadata->>'correlation_key'
        WHERE metadata ? 'correlation_key';
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='notifications' AND column_name='entry_id'
    ) THEN
        ALTER TABLE notifications ADD COLUMN entry_id BIGINT REFERENCES journal_entries(id) ON DELETE CASCADE;
    END IF;
END $$;

CREATE UNIQUE INDEX IF NOT EXISTS notifications_correlation_key
    ON notifications (user_id, correlation_key) WHERE correlation_key IS NOT NULL;`
	_, err := db.ExecContext(ctx, alters)
	return err
}
