package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/sharing"
)

type UserHandler struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserHandler(users UserStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetMe returns the current user's profile
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), mw.UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToUserDTO(u))
}

// UpdateMe updates provided fields on the current user's profile. An
// empty share_cap clears the cap, which hides every entry from the mentor.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     *string `json:"name"`
		ShareCap *string `json:"share_cap"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	u, err := h.users.GetUser(r.Context(), mw.UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if body.Name != nil {
		u.Name = strings.TrimSpace(*body.Name)
	}
	if body.ShareCap != nil {
		if u.Role != models.RoleMentor {
			http.Error(w, "share_cap only applies to mentors", http.StatusBadRequest)
			return
		}
		if *body.ShareCap == "" {
			u.ShareCap = nil
		} else {
			tier, err := sharing.ParseTierStrict(*body.ShareCap)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			u.ShareCap = &tier
		}
	}

	if err := h.users.UpdateUser(r.Context(), &u); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToUserDTO(u))
}
