package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationDisclosure NotificationType = "disclosure"
	NotificationMilestone  NotificationType = "milestone"
	NotificationDecision   NotificationType = "decision"
	NotificationRequest    NotificationType = "request"
)

// NotificationMetadata carries the identifying keys of a notification.
// CorrelationKey is unique per recipient and is what idempotency checks
// look up; it is also stored in its own indexed column.
type NotificationMetadata struct {
	CorrelationKey string  `json:"correlation_key,omitempty"`
	EntryID        int64   `json:"entry_id,omitempty"`
	JournalerID    int64   `json:"journaler_id,omitempty"`
	MentorID       int64   `json:"mentor_id,omitempty"`
	RequestID      int64   `json:"request_id,omitempty"`
	ApprovalID     int64   `json:"approval_id,omitempty"`
	FormIDs        []int64 `json:"form_ids,omitempty"`
	Tier           string  `json:"tier,omitempty"`
}

func (m NotificationMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *NotificationMetadata) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = NotificationMetadata{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("models: cannot scan %T into NotificationMetadata", src)
	}
	return json.Unmarshal(b, m)
}

type Notification struct {
	ID        int64                `db:"id" json:"id"`
	UserID    int64                `db:"user_id" json:"user_id"`
	Type      NotificationType     `db:"type" json:"type"`
	Title     string               `db:"title" json:"title"`
	Body      string               `db:"body" json:"body"`
	Metadata  NotificationMetadata `db:"metadata" json:"metadata"`
	ActionURL *string              `db:"action_url" json:"action_url,omitempty"`
	ReadAt    *time.Time           `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt time.Time            `db:"updated_at" json:"updated_at"`
}

// DisclosureKey identifies the disclosure notification of one entry.
func DisclosureKey(entryID int64) string {
	return fmt.Sprintf("disclosure:entry:%d", entryID)
}
