package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mentorjournal/internal/mail"
	"mentorjournal/internal/templates"
)

// Report summarizes one digest run.
type Report struct {
	RunID    string    `json:"run_id"`
	Since    time.Time `json:"since"`
	Until    time.Time `json:"until"`
	Skipped  bool      `json:"skipped"`
	Digests  int       `json:"digests"`
	Entries  int       `json:"entries"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Duration string    `json:"duration"`
}

type RunnerOptions struct {
	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration
	// MailsPerSecond throttles outgoing digest mail. Zero disables it.
	MailsPerSecond float64
	BaseURL        string
}

// Runner builds, renders and mails the digests for a window.
type Runner struct {
	builder  *Builder
	renderer *templates.Renderer
	mailer   mail.Mailer
	locker   Locker
	limiter  *rate.Limiter
	logger   *zap.Logger
	opts     RunnerOptions
}

// NewRunner creates a Runner. locker may be nil when only one process ever
// triggers digests.
func NewRunner(builder *Builder, renderer *templates.Renderer, mailer mail.Mailer, locker Locker,
	logger *zap.Logger, opts RunnerOptions) *Runner {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 15 * time.Minute
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MailsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MailsPerSecond), 1)
	}
	return &Runner{
		builder:  builder,
		renderer: renderer,
		mailer:   mailer,
		locker:   locker,
		limiter:  limiter,
		logger:   logger.Named("digest"),
		opts:     opts,
	}
}

func lockKey(since, until time.Time) string {
	return fmt.Sprintf("mentorjournal:digest:%d:%d", since.Unix(), until.Unix())
}

// Run sends every digest for [since, until). A run whose window is already
// being processed elsewhere is reported as skipped. Delivery failures are
// counted per mentor and do not abort the run.
func (r *Runner) Run(ctx context.Context, since, until time.Time) (Report, error) {
	start := time.Now()
	rep := Report{RunID: uuid.NewString(), Since: since, Until: until}
	log := r.logger.With(zap.String("run_id", rep.RunID), zap.Time("since", since), zap.Time("until", until))

	if r.locker != nil {
		release, ok, err := r.locker.Acquire(ctx, lockKey(since, until), rep.RunID, r.opts.LockTTL)
		if err != nil {
			return rep, fmt.Errorf("acquire digest lock: %w", err)
		}
		if !ok {
			log.Info("digest window already running elsewhere")
			rep.Skipped = true
			return rep, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release digest lock", zap.Error(err))
			}
		}()
	}

	digests, err := r.builder.Build(ctx, since, until)
	if err != nil {
		return rep, err
	}
	rep.Digests = len(digests)

	for _, d := range digests {
		rep.Entries += d.TotalCount
		if err := r.limiter.Wait(ctx); err != nil {
			return rep, err
		}
		if err := r.deliver(ctx, d, since, until); err != nil {
			rep.Failed++
			log.Warn("digest delivery failed", zap.Int64("mentor_id", d.Mentor.ID), zap.Error(err))
			continue
		}
		rep.Sent++
	}

	rep.Duration = time.Since(start).String()
	log.Info("digest run complete",
		zap.Int("digests", rep.Digests), zap.Int("sent", rep.Sent), zap.Int("failed", rep.Failed))
	return rep, nil
}

func (r *Runner) deliver(ctx context.Context, d Digest, since, until time.Time) error {
	if d.Mentor.Email == "" {
		return errors.New("mentor has no email")
	}
	view := templates.DigestView{
		MentorName: d.Mentor.DisplayName(),
		Since:      since,
		Until:      until,
		TotalCount: d.TotalCount,
	}
	if r.opts.BaseURL != "" {
		view.ActionURL = r.opts.BaseURL + "/mentees"
	}
	for _, m := range d.Mentees {
		view.Mentees = append(view.Mentees, templates.MenteeView{Name: m.Journaler.DisplayName(), Entries: m.Entries})
	}
	out, err := r.renderer.Digest(view)
	if err != nil {
		return err
	}
	return r.mailer.Send(ctx, mail.Message{To: d.Mentor.Email, Subject: out.Subject, Text: out.Text, HTML: out.HTML})
}
