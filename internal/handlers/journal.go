package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"mentorjournal/internal/journal"
	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/sharing"
)

type JournalHandler struct {
	journal *journal.Service
	logger  *zap.Logger
}

func NewJournalHandler(svc *journal.Service, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{journal: svc, logger: logger}
}

type journalRequest struct {
	FormID      int64             `json:"form_id"`
	EntryDate   *string           `json:"entry_date"` // YYYY-MM-DD provided by frontend
	Responses   []models.Response `json:"responses"`
	SharedLevel *string           `json:"shared_level"`
}

func parseDate(s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	d, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, false
	}
	return &d, true
}

func parseTier(s *string) (*models.SharingTier, error) {
	if s == nil {
		return nil, nil
	}
	t, err := sharing.ParseTierStrict(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores a new entry. shared_level defaults to private.
func (h *JournalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req journalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FormID <= 0 {
		http.Error(w, "form_id required", http.StatusBadRequest)
		return
	}
	date, ok := parseDate(req.EntryDate)
	if !ok {
		http.Error(w, "invalid entry_date format; expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	tier, err := parseTier(req.SharedLevel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := journal.SubmitInput{FormID: req.FormID, Responses: req.Responses}
	if date != nil {
		in.EntryDate = *date
	}
	if tier != nil {
		in.SharedLevel = *tier
	}
	e, err := h.journal.Submit(r.Context(), mw.UserIDFrom(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(e))
}

// Update changes the fields present in the body. form_id cannot change.
func (h *JournalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "entryID")
	if !ok {
		return
	}
	var req journalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FormID != 0 {
		http.Error(w, "form_id cannot be changed", http.StatusBadRequest)
		return
	}
	date, ok := parseDate(req.EntryDate)
	if !ok {
		http.Error(w, "invalid entry_date format; expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	tier, err := parseTier(req.SharedLevel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, err := h.journal.Update(r.Context(), mw.UserIDFrom(r.Context()), id, journal.UpdateInput{
		EntryDate:   date,
		Responses:   req.Responses,
		SharedLevel: tier,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "entryID")
	if !ok {
		return
	}
	e, err := h.journal.Get(r.Context(), mw.UserIDFrom(r.Context()), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "entryID")
	if !ok {
		return
	}
	if err := h.journal.Delete(r.Context(), mw.UserIDFrom(r.Context()), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.List(r.Context(), mw.UserIDFrom(r.Context()), limitParam(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	out := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// MenteeEntries lists a linked journaler's entries as the calling mentor
// may see them.
func (h *JournalHandler) MenteeEntries(w http.ResponseWriter, r *http.Request) {
	journalerID, ok := idParam(w, r, "journalerID")
	if !ok {
		return
	}
	out, err := h.journal.ListForMentor(r.Context(), mw.UserIDFrom(r.Context()), journalerID, limitParam(r))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *JournalHandler) MenteeEntry(w http.ResponseWriter, r *http.Request) {
	journalerID, ok := idParam(w, r, "journalerID")
	if !ok {
		return
	}
	entryID, ok := idParam(w, r, "entryID")
	if !ok {
		return
	}
	p, err := h.journal.GetForMentor(r.Context(), mw.UserIDFrom(r.Context()), entryID)
	if err == nil && p.JournalerID != journalerID {
		err = journal.ErrNotFound
	}
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
