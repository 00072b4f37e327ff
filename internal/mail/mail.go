// Package mail delivers rendered notification and digest emails.
package mail

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("mail: no recipient")

// Message is one rendered email. Text and HTML carry the same content.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer is the interface for outbound email. Implementations must be safe
// for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. The server
// uses it when no SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mail")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	m.logger.Info("mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.Text)),
	)
	return nil
}

// Recorder keeps every message it is asked to send. Err, when set, is
// returned for every send after the message is recorded.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.Err
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}
