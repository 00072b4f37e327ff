package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	mw "mentorjournal/internal/middleware"
	"mentorjournal/internal/models"
	"mentorjournal/internal/relationship"
)

// API groups the handlers served under /api.
type API struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Journal       *JournalHandler
	Forms         *FormHandler
	Requests      *RequestHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	Applications  *relationship.Service
	AuthMW        *mw.AuthMiddleware
	Logger        *zap.Logger
}

// Mount registers every route on r.
func (a *API) Mount(r chi.Router) {
	r.Post("/auth/signup", a.Auth.Signup)
	r.Post("/auth/login", a.Auth.Login)
	r.Post("/mentor-applications", a.Apply)

	r.Group(func(pr chi.Router) {
		pr.Use(a.AuthMW.RequireAuth)

		pr.Get("/me", a.Users.GetMe)
		pr.Put("/me", a.Users.UpdateMe)

		pr.Get("/notifications", a.Notifications.List)
		pr.Post("/notifications/read-all", a.Notifications.MarkAllRead)
		pr.Post("/notifications/{notificationID}/read", a.Notifications.MarkRead)

		pr.Get("/forms", a.Forms.List)
		pr.Get("/forms/{formID}", a.Forms.Get)
		pr.With(mw.RequireRole(models.RoleMentor, models.RoleAdmin)).Post("/forms", a.Forms.Create)

		pr.Get("/requests", a.Requests.List)
		pr.Post("/requests/{requestID}/decline", a.Requests.Decline)
		pr.Post("/requests/{requestID}/end", a.Requests.End)
		pr.Get("/links", a.Requests.Links)

		pr.Group(func(jr chi.Router) {
			jr.Use(mw.RequireRole(models.RoleJournaler))
			jr.Post("/journal", a.Journal.Create)
			jr.Get("/journal", a.Journal.List)
			jr.Get("/journal/{entryID}", a.Journal.Get)
			jr.Put("/journal/{entryID}", a.Journal.Update)
			jr.Delete("/journal/{entryID}", a.Journal.Delete)
			jr.Post("/requests", a.Requests.Create)
			jr.Post("/requests/{requestID}/confirm", a.Requests.Confirm)
		})

		pr.Group(func(mr chi.Router) {
			mr.Use(mw.RequireRole(models.RoleMentor))
			mr.Post("/requests/{requestID}/accept", a.Requests.Accept)
			mr.Get("/mentees/{journalerID}/entries", a.Journal.MenteeEntries)
			mr.Get("/mentees/{journalerID}/entries/{entryID}", a.Journal.MenteeEntry)
			mr.Get("/mentees/{journalerID}/assignments", a.Forms.Assignments)
			mr.Post("/mentees/{journalerID}/assignments", a.Forms.Assign)
		})

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(mw.RequireRole(models.RoleAdmin))
			ar.Get("/overview", a.Admin.Overview)
			ar.Post("/links", a.Admin.Link)
			ar.Post("/links/remove", a.Admin.Unlink)
			ar.Get("/approvals", a.Admin.Approvals)
			ar.Post("/approvals/{approvalID}/decision", a.Admin.Decide)
			ar.Post("/digests", a.Admin.RunDigest)
		})
	})
}

// Apply files a mentor application without an account, for people an
// admin should vet before they sign up.
func (a *API) Apply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Note  string `json:"note"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	ap, err := a.Applications.SubmitApproval(r.Context(), body.Email, body.Name, body.Note)
	if err != nil {
		writeError(w, a.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": ap.ID, "status": ap.Status})
}
