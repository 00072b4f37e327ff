package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/store"
)

type FormStore interface {
	CreateForm(ctx context.Context, f *models.Form) error
	GetForm(ctx context.Context, id int64) (models.Form, error)
	ListForms(ctx context.Context) ([]models.Form, error)
	CreateAssignment(ctx context.Context, a *models.FormAssignment) error
	ListAssignments(ctx context.Context, mentorID, journalerID int64) ([]models.FormAssignment, error)
	IsLinked(ctx context.Context, mentorID, journalerID int64) (bool, error)
}

type FormHandler struct {
	store  FormStore
	logger *zap.Logger
}

func NewFormHandler(st FormStore, logger *zap.Logger) *FormHandler {
	return &FormHandler{store: st, logger: logger}
}

var fieldKinds = map[string]bool{"text": true, "choice": true, "multi": true}

func validateForm(f *models.Form) string {
	f.Title = strings.TrimSpace(f.Title)
	if f.Title == "" {
		return "title required"
	}
	seen := make(map[string]bool, len(f.Fields))
	for i := range f.Fields {
		field := &f.Fields[i]
		field.ID = strings.TrimSpace(field.ID)
		if field.ID == "" || seen[field.ID] {
			return "field ids must be present and unique"
		}
		seen[field.ID] = true
		if field.Kind == "" {
			field.Kind = "text"
		}
		if !fieldKinds[field.Kind] {
			return "unknown field kind " + field.Kind
		}
		if field.Kind != "text" && len(field.Options) == 0 {
			return "field " + field.ID + " needs options"
		}
		if field.Label == "" {
			field.Label = field.ID
		}
	}
	return ""
}

func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	var f models.Form
	if !decodeJSON(w, r, &f) {
		return
	}
	if msg := validateForm(&f); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	f.ID = 0
	f.CreatedBy = mw.UserIDFrom(r.Context())
	if err := h.store.CreateForm(r.Context(), &f); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	forms, err := h.store.ListForms(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if forms == nil {
		forms = []models.Form{}
	}
	writeJSON(w, http.StatusOK, forms)
}

func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "formID")
	if !ok {
		return
	}
	f, err := h.store.GetForm(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Assign asks a linked journaler to fill in a form. Once every form a
// mentor assigned has an entry, the mentor gets a milestone notification.
func (h *FormHandler) Assign(w http.ResponseWriter, r *http.Request) {
	journalerID, ok := idParam(w, r, "journalerID")
	if !ok {
		return
	}
	var body struct {
		FormID int64 `json:"form_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	mentorID := mw.UserIDFrom(r.Context())
	if !h.linked(w, r, mentorID, journalerID) {
		return
	}
	if _, err := h.store.GetForm(r.Context(), body.FormID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "unknown form", http.StatusBadRequest)
			return
		}
		writeError(w, h.logger, r, err)
		return
	}

	a := models.FormAssignment{MentorID: mentorID, JournalerID: journalerID, FormID: body.FormID}
	if err := h.store.CreateAssignment(r.Context(), &a); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *FormHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	journalerID, ok := idParam(w, r, "journalerID")
	if !ok {
		return
	}
	mentorID := mw.UserIDFrom(r.Context())
	if !h.linked(w, r, mentorID, journalerID) {
		return
	}
	out, err := h.store.ListAssignments(r.Context(), mentorID, journalerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if out == nil {
		out = []models.FormAssignment{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FormHandler) linked(w http.ResponseWriter, r *http.Request, mentorID, journalerID int64) bool {
	ok, err := h.store.IsLinked(r.Context(), mentorID, journalerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return false
	}
	if !ok {
		http.Error(w, "not linked to this journaler", http.StatusForbidden)
	}
	return ok
}
