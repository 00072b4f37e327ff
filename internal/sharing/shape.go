package sharing

import (
	"time"

	"mentorjournal/internal/models"
)

// Projection is the view of an entry visible at one tier. Mood and Summary
// are nil when withheld; Responses is empty below full.
type Projection struct {
	EntryID     int64              `json:"entry_id"`
	JournalerID int64              `json:"journaler_id"`
	FormID      int64              `json:"form_id"`
	FormTitle   string             `json:"form_title"`
	EntryDate   time.Time          `json:"entry_date"`
	CreatedAt   time.Time          `json:"created_at"`
	Tier        models.SharingTier `json:"tier"`
	Mood        *string            `json:"mood"`
	Summary     *string            `json:"summary"`
	Responses   []models.Response  `json:"responses"`
}

// Shape projects entry down to tier. It has no side effects and never
// shares memory with entry.
func Shape(entry models.JournalEntry, tier models.SharingTier) Projection {
	tier = Normalize(tier)
	p := Projection{
		EntryID:     entry.ID,
		JournalerID: entry.JournalerID,
		FormID:      entry.FormID,
		FormTitle:   entry.FormTitle,
		EntryDate:   entry.EntryDate,
		CreatedAt:   entry.CreatedAt,
		Tier:        tier,
		Responses:   []models.Response{},
	}
	if tier >= models.TierMood && entry.Mood != nil {
		mood := *entry.Mood
		p.Mood = &mood
	}
	if tier >= models.TierSummary {
		summary := entry.Summary
		p.Summary = &summary
	}
	if tier >= models.TierFull {
		p.Responses = make([]models.Response, len(entry.Responses))
		copy(p.Responses, entry.Responses)
	}
	return p
}

// Visible reports whether anything beyond metadata survives at tier.
func Visible(tier models.SharingTier) bool {
	return Normalize(tier) > models.TierPrivate
}
