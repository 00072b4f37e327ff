package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mentorjournal/internal/digest"
	"mentorjournal/internal/journal"
	"mentorjournal/internal/relationship"
	"mentorjournal/internal/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, journal.ErrInvalidInput),
		errors.Is(err, relationship.ErrInvalidInput),
		errors.Is(err, digest.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, journal.ErrForbidden),
		errors.Is(err, relationship.ErrForbidden),
		errors.Is(err, journal.ErrNotLinked):
		return http.StatusForbidden
	case errors.Is(err, journal.ErrNotFound),
		errors.Is(err, relationship.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, relationship.ErrAlreadyLinked),
		errors.Is(err, relationship.ErrNotLinked),
		errors.Is(err, relationship.ErrNotReadyForConfirmation),
		errors.Is(err, relationship.ErrInvalidTransition),
		errors.Is(err, relationship.ErrNotEligible),
		errors.Is(err, relationship.ErrAlreadyApproved),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError responds with the status for err. Only server errors are
// logged; their detail never reaches the client.
func writeError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
