package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/relationship"
)

type RelationshipStore interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListMentorRequests(ctx context.Context, userID int64) ([]models.MentorRequest, error)
	ListLinksForUser(ctx context.Context, userID int64) ([]models.MentorLink, error)
}

type RequestHandler struct {
	svc    *relationship.Service
	store  RelationshipStore
	logger *zap.Logger
}

func NewRequestHandler(svc *relationship.Service, st RelationshipStore, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{svc: svc, store: st, logger: logger}
}

func actorFrom(r *http.Request) relationship.Actor {
	return relationship.Actor{ID: mw.UserIDFrom(r.Context()), Role: mw.RoleFrom(r.Context())}
}

// Create lets a journaler ask a mentor for mentorship.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MentorID int64  `json:"mentor_id"`
		Message  string `json:"message"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.MentorID <= 0 {
		http.Error(w, "mentor_id required", http.StatusBadRequest)
		return
	}
	req, err := h.svc.RequestMentor(r.Context(), mw.UserIDFrom(r.Context()), body.MentorID, strings.TrimSpace(body.Message))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListMentorRequests(r.Context(), mw.UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if out == nil {
		out = []models.MentorRequest{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64) (any, error) {
		return h.svc.Accept(ctx, mw.UserIDFrom(ctx), id)
	})
}

func (h *RequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64) (any, error) {
		return h.svc.Decline(ctx, actorFrom(r), id)
	})
}

func (h *RequestHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64) (any, error) {
		req, link, err := h.svc.Confirm(ctx, mw.UserIDFrom(ctx), id)
		return map[string]any{"request": req, "link": link}, err
	})
}

func (h *RequestHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int64) (any, error) {
		return h.svc.End(ctx, actorFrom(r), id)
	})
}

func (h *RequestHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (any, error)) {
	id, ok := idParam(w, r, "requestID")
	if !ok {
		return
	}
	out, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type linkDTO struct {
	ID        int64     `json:"id"`
	Mentor    PersonDTO `json:"mentor"`
	Journaler PersonDTO `json:"journaler"`
	CreatedAt string    `json:"created_at"`
}

// Links lists the caller's active mentorships from either side.
func (h *RequestHandler) Links(w http.ResponseWriter, r *http.Request) {
	links, err := h.store.ListLinksForUser(r.Context(), mw.UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	out := make([]linkDTO, 0, len(links))
	for _, l := range links {
		mentor, err := h.store.GetUser(r.Context(), l.MentorID)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		journaler, err := h.store.GetUser(r.Context(), l.JournalerID)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		out = append(out, linkDTO{
			ID:        l.ID,
			Mentor:    toPersonDTO(mentor),
			Journaler: toPersonDTO(journaler),
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
