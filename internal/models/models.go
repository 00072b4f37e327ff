package models

import "time"

type Role string

const (
	RoleJournaler Role = "journaler"
	RoleMentor    Role = "mentor"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleJournaler, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64        `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	Name         string       `db:"name" json:"name"`
	PasswordHash string       `db:"password_hash" json:"-"`
	Role         Role         `db:"role" json:"role"`
	ShareCap     *SharingTier `db:"share_cap" json:"share_cap,omitempty"` // mentors only; nil means nothing is shown
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// DisplayName falls back to the email when no name was given.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type JournalEntry struct {
	ID          int64       `db:"id" json:"id"`
	JournalerID int64       `db:"journaler_id" json:"journaler_id"`
	FormID      int64       `db:"form_id" json:"form_id"`
	FormTitle   string      `db:"form_title" json:"form_title"`
	EntryDate   time.Time   `db:"entry_date" json:"entry_date"`
	Responses   []Response  `db:"-" json:"responses"`
	Mood        *string     `db:"-" json:"mood"`
	Summary     string      `db:"-" json:"summary"`
	SharedLevel SharingTier `db:"shared_level" json:"shared_level"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

type FormField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"` // text, choice, multi
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required,omitempty"`
}

type Form struct {
	ID        int64       `db:"id" json:"id"`
	Title     string      `db:"title" json:"title"`
	Fields    []FormField `db:"-" json:"fields"`
	CreatedBy int64       `db:"created_by" json:"created_by"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

type FormAssignment struct {
	ID          int64     `db:"id" json:"id"`
	MentorID    int64     `db:"mentor_id" json:"mentor_id"`
	JournalerID int64     `db:"journaler_id" json:"journaler_id"`
	FormID      int64     `db:"form_id" json:"form_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type MentorLink struct {
	ID          int64     `db:"id" json:"id"`
	MentorID    int64     `db:"mentor_id" json:"mentor_id"`
	JournalerID int64     `db:"journaler_id" json:"journaler_id"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type RequestStatus string

const (
	RequestPending        RequestStatus = "pending"
	RequestMentorAccepted RequestStatus = "mentor_accepted"
	RequestConfirmed      RequestStatus = "confirmed"
	RequestDeclined       RequestStatus = "declined"
	RequestEnded          RequestStatus = "ended"
)

type MentorRequest struct {
	ID          int64         `db:"id" json:"id"`
	JournalerID int64         `db:"journaler_id" json:"journaler_id"`
	MentorID    int64         `db:"mentor_id" json:"mentor_id"`
	Message     string        `db:"message" json:"message"`
	Status      RequestStatus `db:"status" json:"status"`
	RespondedAt *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	DecidedBy   *int64        `db:"decided_by" json:"decided_by,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type MentorApproval struct {
	ID        int64          `db:"id" json:"id"`
	Email     string         `db:"email" json:"email"`
	Name      string         `db:"name" json:"name"`
	Note      string         `db:"note" json:"note"`
	Status    ApprovalStatus `db:"status" json:"status"`
	DecidedBy *int64         `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
