// Package relationship owns the mentor request lifecycle, direct admin
// linking, and mentor vetting. Every transition runs in one store
// transaction that locks the rows it reads, request before link, so
// concurrent callers cannot both observe a state and act on it.
package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mentorjournal/internal/mail"
	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
	"mentorjournal/internal/templates"
)

var (
	ErrAlreadyLinked           = errors.New("relationship: already linked")
	ErrNotLinked               = errors.New("relationship: not linked")
	ErrNotReadyForConfirmation = errors.New("relationship: request has not been accepted by the mentor")
	ErrInvalidTransition       = errors.New("relationship: invalid transition")
	ErrNotFound                = errors.New("relationship: not found")
	ErrForbidden               = errors.New("relationship: forbidden")
	ErrNotEligible             = errors.New("relationship: mentor is not approved")
	ErrAlreadyApproved         = errors.New("relationship: already approved")
	ErrInvalidInput            = errors.New("relationship: invalid input")
	ErrInvariantViolation      = errors.New("relationship: invariant violation")
)

var transitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestPending:        {models.RequestMentorAccepted, models.RequestDeclined},
	models.RequestMentorAccepted: {models.RequestConfirmed, models.RequestDeclined},
	models.RequestConfirmed:      {models.RequestEnded},
}

// CanTransition reports whether a request may move from one status to
// another. Every status except confirmed may be reset to pending by a new
// request from the journaler.
func CanTransition(from, to models.RequestStatus) bool {
	if to == models.RequestPending {
		return from != models.RequestConfirmed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Store interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error
}

// Actor is whoever is performing a transition.
type Actor struct {
	ID   int64
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

type Service struct {
	store    Store
	mailer   mail.Mailer
	renderer *templates.Renderer
	logger   *zap.Logger
	baseURL  string
	now      func() time.Time
}

func NewService(st Store, mailer mail.Mailer, renderer *templates.Renderer, logger *zap.Logger, baseURL string) *Service {
	return &Service{
		store:    st,
		mailer:   mailer,
		renderer: renderer,
		logger:   logger.Named("relationship"),
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// outbox collects mail composed inside a transaction. It is only sent
// once the transaction has committed.
type outbox []mail.Message

func (s *Service) flush(ctx context.Context, out outbox) {
	for _, msg := range out {
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.logger.Warn("relationship mail failed", zap.String("to", msg.To), zap.Error(err))
		}
	}
}

func (s *Service) url(path string) *string {
	if s.baseURL == "" {
		return nil
	}
	u := s.baseURL + path
	return &u
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// notify records a notification for recipient inside tx and queues the
// matching email.
func (s *Service) notify(ctx context.Context, tx store.Tx, out *outbox, recipient models.User,
	typ models.NotificationType, r templates.Rendered, meta models.NotificationMetadata, action *string) error {
	n := models.Notification{
		UserID:    recipient.ID,
		Type:      typ,
		Title:     r.Subject,
		Body:      r.Text,
		Metadata:  meta,
		ActionURL: action,
	}
	if err := tx.InsertNotification(ctx, &n); err != nil {
		return fmt.Errorf("insert %s notification: %w", typ, err)
	}
	if recipient.Email != "" {
		*out = append(*out, mail.Message{To: recipient.Email, Subject: r.Subject, Text: r.Text, HTML: r.HTML})
	}
	return nil
}

func requestMeta(r models.MentorRequest) models.NotificationMetadata {
	return models.NotificationMetadata{RequestID: r.ID, JournalerID: r.JournalerID, MentorID: r.MentorID}
}

// notifyRequest tells recipient that actor moved the request to a new state.
func (s *Service) notifyRequest(ctx context.Context, tx store.Tx, out *outbox, req models.MentorRequest,
	actor, recipient models.User, status string) error {
	r, err := s.renderer.Request(templates.RequestView{
		ActorName: actor.DisplayName(),
		Status:    status,
		Message:   req.Message,
		ActionURL: deref(s.url("/requests")),
	})
	if err != nil {
		return err
	}
	return s.notify(ctx, tx, out, recipient, models.NotificationRequest, r, requestMeta(req), s.url("/requests"))
}

func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
