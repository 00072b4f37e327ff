package handlers

import (
	"time"

	"mentorjournal/internal/models"
)

// UserDTO is the public view of a user: no password hash, and a
// consistent created_at string.
type UserDTO struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	ShareCap  *string `json:"share_cap,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func ToUserDTO(u models.User) UserDTO {
	dto := UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.ShareCap != nil {
		s := u.ShareCap.String()
		dto.ShareCap = &s
	}
	return dto
}

// PersonDTO is how a counterparty is shown: name and id only.
type PersonDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toPersonDTO(u models.User) PersonDTO {
	return PersonDTO{ID: u.ID, Name: u.DisplayName()}
}

func toDateString(t time.Time) string {
	return t.Format("2006-01-02")
}

// EntryDTO renders entry_date as a plain date.
type EntryDTO struct {
	models.JournalEntry
	EntryDate string `json:"entry_date"`
}

func toEntryDTO(e models.JournalEntry) EntryDTO {
	return EntryDTO{JournalEntry: e, EntryDate: toDateString(e.EntryDate)}
}
