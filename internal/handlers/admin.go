package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mentorjournal/internal/digest"
	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/relationship"
	"mentorjournal/internal/store"
)

type AdminStore interface {
	Overview(ctx context.Context) (store.Overview, error)
	ListMentorApprovals(ctx context.Context, status models.ApprovalStatus) ([]models.MentorApproval, error)
}

// DigestRunner sends the digests of one window.
type DigestRunner interface {
	Run(ctx context.Context, since, until time.Time) (digest.Report, error)
}

type AdminHandler struct {
	store   AdminStore
	svc     *relationship.Service
	digests DigestRunner
	logger  *zap.Logger
}

func NewAdminHandler(st AdminStore, svc *relationship.Service, digests DigestRunner, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: st, svc: svc, digests: digests, logger: logger}
}

// Overview returns platform counts (admin only).
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.Overview(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type linkRequest struct {
	MentorID    int64 `json:"mentor_id"`
	JournalerID int64 `json:"journaler_id"`
}

func (h *AdminHandler) decodeLink(w http.ResponseWriter, r *http.Request) (linkRequest, bool) {
	var body linkRequest
	if !decodeJSON(w, r, &body) {
		return body, false
	}
	if body.MentorID <= 0 || body.JournalerID <= 0 {
		http.Error(w, "mentor_id and journaler_id required", http.StatusBadRequest)
		return body, false
	}
	return body, true
}

// Link connects a mentor and a journaler directly, without a request.
func (h *AdminHandler) Link(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeLink(w, r)
	if !ok {
		return
	}
	link, err := h.svc.LinkMentor(r.Context(), mw.UserIDFrom(r.Context()), body.MentorID, body.JournalerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *AdminHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decodeLink(w, r)
	if !ok {
		return
	}
	if err := h.svc.UnlinkMentor(r.Context(), mw.UserIDFrom(r.Context()), body.MentorID, body.JournalerID); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Approvals lists mentor applications, filtered by ?status= when given.
func (h *AdminHandler) Approvals(w http.ResponseWriter, r *http.Request) {
	status := models.ApprovalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
	default:
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	out, err := h.store.ListMentorApprovals(r.Context(), status)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if out == nil {
		out = []models.MentorApproval{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "approvalID")
	if !ok {
		return
	}
	var body struct {
		Approve *bool  `json:"approve"`
		Note    string `json:"note"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Approve == nil {
		http.Error(w, "approve required", http.StatusBadRequest)
		return
	}
	a, err := h.svc.DecideApproval(r.Context(), mw.UserIDFrom(r.Context()), id, *body.Approve, body.Note)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// RunDigest sends the digests for [since, until). Both default to the
// 24 hours ending at the most recent midnight UTC.
func (h *AdminHandler) RunDigest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Since *time.Time `json:"since"`
		Until *time.Time `json:"until"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	until := time.Now().UTC().Truncate(24 * time.Hour)
	if body.Until != nil {
		until = *body.Until
	}
	since := until.Add(-24 * time.Hour)
	if body.Since != nil {
		since = *body.Since
	}

	rep, err := h.digests.Run(r.Context(), since, until)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	status := http.StatusOK
	if rep.Skipped {
		status = http.StatusAccepted
	}
	writeJSON(w, status, rep)
}
