// Package app wires configuration into the services shared by the server
// and the command line tool.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mentorjournal/internal/config"
	"mentorjournal/internal/db"
	"mentorjournal/internal/digest"
	"mentorjournal/internal/journal"
	"mentorjournal/internal/mail"
	"mentorjournal/internal/models"
	"mentorjournal/internal/notify"
	"mentorjournal/internal/relationship"
	"mentorjournal/internal/services"
	"mentorjournal/internal/store"
	"mentorjournal/internal/store/memstore"
	"mentorjournal/internal/store/postgres"
	"mentorjournal/internal/templates"
)

// Store is everything the services and handlers need from persistence.
// Both the Postgres and in-memory stores satisfy it.
type Store interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	IsEligibleMentor(ctx context.Context, userID int64) (bool, error)

	CreateEntry(ctx context.Context, e *models.JournalEntry) error
	UpdateEntry(ctx context.Context, e *models.JournalEntry) error
	GetEntry(ctx context.Context, id int64) (models.JournalEntry, error)
	ListEntries(ctx context.Context, journalerID int64, limit int) ([]models.JournalEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	CountEntriesByForm(ctx context.Context, journalerID int64, formIDs []int64) (map[int64]int, error)

	CreateForm(ctx context.Context, f *models.Form) error
	GetForm(ctx context.Context, id int64) (models.Form, error)
	ListForms(ctx context.Context) ([]models.Form, error)
	CreateAssignment(ctx context.Context, a *models.FormAssignment) error
	ListAssignments(ctx context.Context, mentorID, journalerID int64) ([]models.FormAssignment, error)

	GetMentorRequest(ctx context.Context, id int64) (models.MentorRequest, error)
	ListMentorRequests(ctx context.Context, userID int64) ([]models.MentorRequest, error)
	ListLinksForUser(ctx context.Context, userID int64) ([]models.MentorLink, error)
	IsLinked(ctx context.Context, mentorID, journalerID int64) (bool, error)
	LinkedMentors(ctx context.Context, journalerID int64) ([]models.User, error)
	ListMentorApprovals(ctx context.Context, status models.ApprovalStatus) ([]models.MentorApproval, error)

	UpsertNotification(ctx context.Context, n *models.Notification) (bool, error)
	InsertNotificationOnce(ctx context.Context, n *models.Notification) (bool, error)
	DeleteDisclosures(ctx context.Context, entryID int64, keepUserIDs []int64) (int64, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)

	DigestCandidates(ctx context.Context, since, until time.Time) ([]store.DigestCandidate, error)
	Overview(ctx context.Context) (store.Overview, error)
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*memstore.Store)(nil)
)

type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        Store
	DB           *sqlx.DB // nil on the in-memory store
	Redis        *redis.Client
	Mailer       mail.Mailer
	Renderer     *templates.Renderer
	Relationship *relationship.Service
	Dispatcher   *notify.Dispatcher
	Journal      *journal.Service
	Digests      *digest.Runner
}

// New connects to the configured backends and builds the services. Close
// releases the connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Renderer: templates.New()}

	if cfg.DatabaseURL != "" {
		codec, err := services.NewEncryptionService(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		if !codec.Enabled() {
			logger.Warn("ENCRYPTION_KEY not set; entries are stored in plaintext")
		}
		a.DB, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.Store = postgres.New(a.DB, codec)
	} else {
		logger.Warn("DATABASE_URL not set; using the in-memory store, data is lost on exit")
		a.Store = memstore.New()
	}

	var locker digest.Locker
	if cfg.RedisURL != "" {
		client, err := db.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		locker = digest.NewRedisLocker(client)
	}

	if cfg.SMTPHost != "" {
		a.Mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Warn("SMTP_HOST not set; mail is logged instead of sent")
		a.Mailer = mail.NewLogMailer(logger)
	}

	a.Relationship = relationship.NewService(a.Store, a.Mailer, a.Renderer, logger, cfg.BaseURL)
	a.Dispatcher = notify.NewDispatcher(a.Store, a.Mailer, a.Renderer, logger, cfg.BaseURL)
	a.Journal = journal.NewService(a.Store, a.Dispatcher, logger)
	a.Digests = digest.NewRunner(digest.NewBuilder(a.Store), a.Renderer, a.Mailer, locker, logger, digest.RunnerOptions{
		LockTTL:        cfg.DigestLockTTL,
		MailsPerSecond: cfg.MailRatePerSecond,
		BaseURL:        cfg.BaseURL,
	})
	return a, nil
}

// Migrate applies the schema. It is a no-op on the in-memory store.
func (a *App) Migrate(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return db.RunMigrations(ctx, a.DB)
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// NewLogger returns a production logger unless env is development.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "development" || env == "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
