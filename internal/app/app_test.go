package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mentorjournal/internal/config"
	"mentorjournal/internal/mail"
	"mentorjournal/internal/store/memstore"
)

func TestNew_InMemoryFallback(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, &config.Config{BaseURL: "http://localhost:3000", DigestLockTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memstore.Store{}, a.Store)
	assert.IsType(t, &mail.LogMailer{}, a.Mailer)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)
	assert.NoError(t, a.Migrate(ctx))

	rep, err := a.Digests.Run(ctx, time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Zero(t, rep.Digests)
}

func TestNew_SMTPMailer(t *testing.T) {
	a, err := New(context.Background(), &config.Config{SMTPHost: "smtp.example.com", SMTPPort: 2525}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &mail.SMTPMailer{}, a.Mailer)
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"", "development", "production"} {
		l, err := NewLogger(env)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}
