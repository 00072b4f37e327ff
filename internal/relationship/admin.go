package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mentorjournal/internal/mail"
	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
	"mentorjournal/internal/templates"
)

// LinkMentor links a mentor and journaler directly. An open request for the
// pair (pending or mentor_accepted) is marked confirmed so it can later be
// ended; declined and ended requests are left as they are.
func (s *Service) LinkMentor(ctx context.Context, adminID, mentorID, journalerID int64) (models.MentorLink, error) {
	var link models.MentorLink
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		journaler, err := tx.GetUser(ctx, journalerID)
		if err != nil {
			return notFound(err, "journaler")
		}
		if journaler.Role != models.RoleJournaler {
			return fmt.Errorf("%w: user %d is not a journaler", ErrInvalidInput, journalerID)
		}
		eligible, err := tx.IsEligibleMentor(ctx, mentorID)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotEligible
		}

		req, err := tx.LockMentorRequestForPair(ctx, journalerID, mentorID)
		hasRequest := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := tx.LockMentorLink(ctx, mentorID, journalerID); err == nil {
			return ErrAlreadyLinked
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		link = models.MentorLink{MentorID: mentorID, JournalerID: journalerID, CreatedBy: adminID}
		if err := tx.InsertMentorLink(ctx, &link); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadyLinked
			}
			return err
		}

		if hasRequest && isOpen(req.Status) {
			now := s.now()
			req.Status = models.RequestConfirmed
			req.RespondedAt = &now
			req.DecidedBy = &adminID
			return tx.UpdateMentorRequest(ctx, &req)
		}
		return nil
	})
	if err != nil {
		return models.MentorLink{}, err
	}
	s.logger.Info("mentor linked by admin",
		zap.Int64("admin_id", adminID), zap.Int64("mentor_id", mentorID), zap.Int64("journaler_id", journalerID))
	return link, nil
}

func isOpen(status models.RequestStatus) bool {
	return status == models.RequestPending || status == models.RequestMentorAccepted
}

// UnlinkMentor removes a link and ends the confirmed request behind it.
func (s *Service) UnlinkMentor(ctx context.Context, adminID, mentorID, journalerID int64) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		req, err := tx.LockMentorRequestForPair(ctx, journalerID, mentorID)
		hasRequest := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		link, err := tx.LockMentorLink(ctx, mentorID, journalerID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotLinked
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteMentorLink(ctx, link.ID); err != nil {
			return err
		}
		if hasRequest && req.Status == models.RequestConfirmed {
			req.Status = models.RequestEnded
			req.DecidedBy = &adminID
			return tx.UpdateMentorRequest(ctx, &req)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("mentor unlinked by admin",
		zap.Int64("admin_id", adminID), zap.Int64("mentor_id", mentorID), zap.Int64("journaler_id", journalerID))
	return nil
}

// SubmitApproval files a mentor application for email. A rejected
// application is reopened; a pending one is returned unchanged.
func (s *Service) SubmitApproval(ctx context.Context, email, name, note string) (models.MentorApproval, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return models.MentorApproval{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	var a models.MentorApproval
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.LockMentorApprovalByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			a = models.MentorApproval{Email: email, Name: name, Note: note, Status: models.ApprovalPending}
			return tx.InsertMentorApproval(ctx, &a)
		}
		if err != nil {
			return err
		}

		switch a.Status {
		case models.ApprovalApproved:
			return ErrAlreadyApproved
		case models.ApprovalPending:
			return nil
		}
		a.Status = models.ApprovalPending
		a.Name = name
		a.Note = note
		a.DecidedBy = nil
		a.DecidedAt = nil
		return tx.UpdateMentorApproval(ctx, &a)
	})
	if err != nil {
		return models.MentorApproval{}, err
	}
	s.logger.Info("mentor application submitted", zap.Int64("approval_id", a.ID))
	return a, nil
}

// DecideApproval approves or rejects an application. Rejecting an approved
// application revokes it; existing links stay but the mentor stops
// receiving disclosures and digests.
func (s *Service) DecideApproval(ctx context.Context, adminID, approvalID int64, approve bool, note string) (models.MentorApproval, error) {
	target := models.ApprovalRejected
	if approve {
		target = models.ApprovalApproved
	}

	var a models.MentorApproval
	var out outbox
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.LockMentorApproval(ctx, approvalID)
		if err != nil {
			return notFound(err, "approval")
		}
		if a.Status == target {
			return fmt.Errorf("%w: application is already %s", ErrInvalidTransition, target)
		}

		now := s.now()
		a.Status = target
		a.DecidedBy = &adminID
		a.DecidedAt = &now
		if note != "" {
			a.Note = note
		}
		if err := tx.UpdateMentorApproval(ctx, &a); err != nil {
			return err
		}

		r, err := s.renderer.Decision(templates.DecisionView{Name: a.Name, Approved: approve, Note: note})
		if err != nil {
			return err
		}
		meta := models.NotificationMetadata{ApprovalID: a.ID}
		user, err := tx.GetUserByEmail(ctx, a.Email)
		switch {
		case err == nil:
			return s.notify(ctx, tx, &out, user, models.NotificationDecision, r, meta, s.url("/"))
		case errors.Is(err, store.ErrNotFound):
			// No account yet; the applicant still gets the email.
			out = append(out, mail.Message{To: a.Email, Subject: r.Subject, Text: r.Text, HTML: r.HTML})
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return models.MentorApproval{}, err
	}
	s.logger.Info("mentor application decided",
		zap.Int64("approval_id", a.ID), zap.String("status", string(a.Status)), zap.Int64("admin_id", adminID))
	s.flush(ctx, out)
	return a, nil
}
