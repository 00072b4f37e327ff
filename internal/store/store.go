// Package store defines the persistence port shared by the core packages:
// the transactional interface used by relationship transitions, the row
// types returned by multi-table reads, and sentinel errors. Concrete
// implementations live in store/postgres and store/memstore.
package store

import (
	"context"
	"errors"
	"time"

	"mentorjournal/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

// Tx is the unit of work for relationship transitions. Lock* methods take
// an exclusive row lock that is held until the transaction ends.
type Tx interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	IsEligibleMentor(ctx context.Context, userID int64) (bool, error)

	LockMentorRequest(ctx context.Context, id int64) (models.MentorRequest, error)
	LockMentorRequestForPair(ctx context.Context, journalerID, mentorID int64) (models.MentorRequest, error)
	InsertMentorRequest(ctx context.Context, req *models.MentorRequest) error
	UpdateMentorRequest(ctx context.Context, req *models.MentorRequest) error

	LockMentorLink(ctx context.Context, mentorID, journalerID int64) (models.MentorLink, error)
	InsertMentorLink(ctx context.Context, link *models.MentorLink) error
	DeleteMentorLink(ctx context.Context, id int64) error

	LockMentorApproval(ctx context.Context, id int64) (models.MentorApproval, error)
	LockMentorApprovalByEmail(ctx context.Context, email string) (models.MentorApproval, error)
	InsertMentorApproval(ctx context.Context, a *models.MentorApproval) error
	UpdateMentorApproval(ctx context.Context, a *models.MentorApproval) error

	InsertNotification(ctx context.Context, n *models.Notification) error
}

// DigestCandidate is one entry joined with a mentor entitled to see it.
type DigestCandidate struct {
	Mentor    models.User
	Journaler models.User
	LinkedAt  time.Time
	Entry     models.JournalEntry
}

type Overview struct {
	TotalUsers       int `db:"total_users" json:"total_users"`
	TotalEntries     int `db:"total_entries" json:"total_entries"`
	ActiveLinks      int `db:"active_links" json:"active_links"`
	PendingRequests  int `db:"pending_requests" json:"pending_requests"`
	PendingApprovals int `db:"pending_approvals" json:"pending_approvals"`
	EntriesThisWeek  int `db:"entries_this_week" json:"entries_this_week"`
}

// Clamp bounds list limits the way the handlers expect.
func Clamp(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
