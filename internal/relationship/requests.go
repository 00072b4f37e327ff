package relationship

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

// RequestMentor opens a request from journalerID to mentorID, or resets an
// existing non-confirmed request for the pair back to pending.
func (s *Service) RequestMentor(ctx context.Context, journalerID, mentorID int64, message string) (models.MentorRequest, error) {
	var req models.MentorRequest
	var out outbox
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		journaler, err := tx.GetUser(ctx, journalerID)
		if err != nil {
			return notFound(err, "journaler")
		}
		if journaler.Role != models.RoleJournaler {
			return fmt.Errorf("%w: only journalers can request a mentor", ErrForbidden)
		}
		mentor, err := tx.GetUser(ctx, mentorID)
		if err != nil {
			return notFound(err, "mentor")
		}
		eligible, err := tx.IsEligibleMentor(ctx, mentorID)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotEligible
		}

		existing, err := tx.LockMentorRequestForPair(ctx, journalerID, mentorID)
		found := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := tx.LockMentorLink(ctx, mentorID, journalerID); err == nil {
			return ErrAlreadyLinked
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if found {
			if !CanTransition(existing.Status, models.RequestPending) {
				return ErrAlreadyLinked
			}
			existing.Status = models.RequestPending
			existing.Message = message
			existing.RespondedAt = nil
			existing.DecidedBy = nil
			if err := tx.UpdateMentorRequest(ctx, &existing); err != nil {
				return err
			}
			req = existing
		} else {
			req = models.MentorRequest{
				JournalerID: journalerID,
				MentorID:    mentorID,
				Message:     message,
				Status:      models.RequestPending,
			}
			if err := tx.InsertMentorRequest(ctx, &req); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("%w: a request for this mentor is already being created", ErrInvalidTransition)
				}
				return err
			}
		}
		return s.notifyRequest(ctx, tx, &out, req, journaler, mentor, "asked you to be their mentor")
	})
	if err != nil {
		return models.MentorRequest{}, err
	}
	s.logger.Info("mentor requested",
		zap.Int64("request_id", req.ID), zap.Int64("journaler_id", journalerID), zap.Int64("mentor_id", mentorID))
	s.flush(ctx, out)
	return req, nil
}

// Accept moves a pending request to mentor_accepted. Only the addressed
// mentor may accept.
func (s *Service) Accept(ctx context.Context, mentorID, requestID int64) (models.MentorRequest, error) {
	var req models.MentorRequest
	var out outbox
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = tx.LockMentorRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "request")
		}
		if req.MentorID != mentorID {
			return ErrForbidden
		}
		if !CanTransition(req.Status, models.RequestMentorAccepted) {
			return fmt.Errorf("%w: cannot accept a %s request", ErrInvalidTransition, req.Status)
		}
		eligible, err := tx.IsEligibleMentor(ctx, mentorID)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotEligible
		}

		now := s.now()
		req.Status = models.RequestMentorAccepted
		req.RespondedAt = &now
		req.DecidedBy = &mentorID
		if err := tx.UpdateMentorRequest(ctx, &req); err != nil {
			return err
		}
		return s.notifyParties(ctx, tx, &out, req, Actor{ID: mentorID, Role: models.RoleMentor}, "accepted your mentorship request")
	})
	if err != nil {
		return models.MentorRequest{}, err
	}
	s.logger.Info("mentor request accepted", zap.Int64("request_id", req.ID))
	s.flush(ctx, out)
	return req, nil
}

// Decline closes a pending or accepted request. Either party or an admin
// may decline.
func (s *Service) Decline(ctx context.Context, actor Actor, requestID int64) (models.MentorRequest, error) {
	var req models.MentorRequest
	var out outbox
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = tx.LockMentorRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "request")
		}
		if !isParty(req, actor) {
			return ErrForbidden
		}
		if !CanTransition(req.Status, models.RequestDeclined) {
			return fmt.Errorf("%w: cannot decline a %s request", ErrInvalidTransition, req.Status)
		}

		now := s.now()
		req.Status = models.RequestDeclined
		req.RespondedAt = &now
		req.DecidedBy = &actor.ID
		if err := tx.UpdateMentorRequest(ctx, &req); err != nil {
			return err
		}
		return s.notifyParties(ctx, tx, &out, req, actor, "declined the mentorship request")
	})
	if err != nil {
		return models.MentorRequest{}, err
	}
	s.logger.Info("mentor request declined", zap.Int64("request_id", req.ID), zap.Int64("actor_id", actor.ID))
	s.flush(ctx, out)
	return req, nil
}

// Confirm finalizes an accepted request and creates the link in the same
// transaction. Two concurrent confirmations produce exactly one link.
func (s *Service) Confirm(ctx context.Context, journalerID, requestID int64) (models.MentorRequest, models.MentorLink, error) {
	var req models.MentorRequest
	var link models.MentorLink
	var out outbox
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = tx.LockMentorRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "request")
		}
		if req.JournalerID != journalerID {
			return ErrForbidden
		}
		if req.Status != models.RequestMentorAccepted {
			return ErrNotReadyForConfirmation
		}
		eligible, err := tx.IsEligibleMentor(ctx, req.MentorID)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotEligible
		}

		if existing, err := tx.LockMentorLink(ctx, req.MentorID, req.JournalerID); err == nil {
			s.logger.Error("link exists for unconfirmed request",
				zap.Int64("request_id", req.ID), zap.Int64("link_id", existing.ID))
			return fmt.Errorf("%w: link %d already exists for request %d", ErrInvariantViolation, existing.ID, req.ID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		link = models.MentorLink{MentorID: req.MentorID, JournalerID: req.JournalerID, CreatedBy: journalerID}
		if err := tx.InsertMentorLink(ctx, &link); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				s.logger.Error("concurrent link insert", zap.Int64("request_id", req.ID), zap.Error(err))
				return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
			}
			return err
		}

		now := s.now()
		req.Status = models.RequestConfirmed
		req.RespondedAt = &now
		req.DecidedBy = &journalerID
		if err := tx.UpdateMentorRequest(ctx, &req); err != nil {
			return err
		}
		return s.notifyParties(ctx, tx, &out, req, Actor{ID: journalerID, Role: models.RoleJournaler}, "confirmed your mentorship")
	})
	if err != nil {
		return models.MentorRequest{}, models.MentorLink{}, err
	}
	s.logger.Info("mentorship confirmed", zap.Int64("request_id", req.ID), zap.Int64("link_id", link.ID))
	s.flush(ctx, out)
	return req, link, nil
}

// End terminates a confirmed relationship and removes its link.
func (s *Service) End(ctx context.Context, actor Actor, requestID int64) (models.MentorRequest, error) {
	var req models.MentorRequest
	var out outbox
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		req, err = tx.LockMentorRequest(ctx, requestID)
		if err != nil {
			return notFound(err, "request")
		}
		if !isParty(req, actor) {
			return ErrForbidden
		}
		if !CanTransition(req.Status, models.RequestEnded) {
			return fmt.Errorf("%w: cannot end a %s request", ErrInvalidTransition, req.Status)
		}

		link, err := tx.LockMentorLink(ctx, req.MentorID, req.JournalerID)
		switch {
		case err == nil:
			if err := tx.DeleteMentorLink(ctx, link.ID); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("ending confirmed request without a link", zap.Int64("request_id", req.ID))
		default:
			return err
		}

		req.Status = models.RequestEnded
		req.DecidedBy = &actor.ID
		if err := tx.UpdateMentorRequest(ctx, &req); err != nil {
			return err
		}
		return s.notifyParties(ctx, tx, &out, req, actor, "ended the mentorship")
	})
	if err != nil {
		return models.MentorRequest{}, err
	}
	s.logger.Info("mentorship ended", zap.Int64("request_id", req.ID), zap.Int64("actor_id", actor.ID))
	s.flush(ctx, out)
	return req, nil
}

func isParty(req models.MentorRequest, actor Actor) bool {
	return actor.IsAdmin() || actor.ID == req.JournalerID || actor.ID == req.MentorID
}

// notifyParties notifies every party to req other than the actor.
func (s *Service) notifyParties(ctx context.Context, tx store.Tx, out *outbox, req models.MentorRequest, actor Actor, status string) error {
	actorUser, err := tx.GetUser(ctx, actor.ID)
	if err != nil {
		return notFound(err, "actor")
	}
	for _, id := range []int64{req.JournalerID, req.MentorID} {
		if id == actor.ID {
			continue
		}
		recipient, err := tx.GetUser(ctx, id)
		if err != nil {
			return notFound(err, "user")
		}
		if err := s.notifyRequest(ctx, tx, out, req, actorUser, recipient, status); err != nil {
			return err
		}
	}
	return nil
}
