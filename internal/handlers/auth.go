package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/relationship"
	"mentorjournal/internal/store"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

// ApprovalSubmitter files mentor applications on signup.
type ApprovalSubmitter interface {
	SubmitApproval(ctx context.Context, email, name, note string) (models.MentorApproval, error)
}

type AuthHandler struct {
	users     UserStore
	approvals ApprovalSubmitter
	auth      *mw.AuthMiddleware
	logger    *zap.Logger
}

func NewAuthHandler(users UserStore, approvals ApprovalSubmitter, auth *mw.AuthMiddleware, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, approvals: approvals, auth: auth, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	credentials
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	// Note is the mentor application text.
	Note string `json:"note"`
}

type tokenResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// Signup creates a journaler or mentor account. Mentors also file an
// application and cannot see anything until an admin approves it.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Email == "" || body.Password == "" || !strings.Contains(body.Email, "@") {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}
	if len(body.Password) < 8 {
		http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	if body.Role == "" {
		body.Role = models.RoleJournaler
	}
	if body.Role != models.RoleJournaler && body.Role != models.RoleMentor {
		http.Error(w, "role must be journaler or mentor", http.StatusBadRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "could not hash password", http.StatusInternalServerError)
		return
	}

	user := models.User{
		Email:        body.Email,
		Name:         strings.TrimSpace(body.Name),
		PasswordHash: string(hashed),
		Role:         body.Role,
	}
	if user.Role == models.RoleMentor {
		// mentors share summaries until they choose otherwise
		summary := models.TierSummary
		user.ShareCap = &summary
	}
	if err := h.users.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		writeError(w, h.logger, r, err)
		return
	}

	if user.Role == models.RoleMentor {
		_, err := h.approvals.SubmitApproval(r.Context(), user.Email, user.Name, body.Note)
		if err != nil && !errors.Is(err, relationship.ErrAlreadyApproved) {
			h.logger.Error("mentor application failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeJSON(w, r, &c) {
		return
	}
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	if c.Email == "" || c.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), c.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeError(w, h.logger, r, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user models.User) {
	token, err := h.auth.Issue(user.ID, user.Role)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, User: ToUserDTO(user)})
}
