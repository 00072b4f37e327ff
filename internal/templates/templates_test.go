package templates

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorjournal/internal/models"
	"mentorjournal/internal/sharing"
)

func entry() models.JournalEntry {
	mood := "anxious"
	return models.JournalEntry{
		ID:        4,
		FormTitle: "Evening check-in",
		EntryDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Responses: []models.Response{
			{FieldID: "mood", Label: "Mood", Value: models.TextValue("anxious")},
			{FieldID: "worry", Label: "What worried you", Value: models.TextValue("the qualifying exam")},
			{FieldID: "wins", Label: "Wins", Value: models.ListValue("<b>ran</b>", "read")},
		},
		Mood:    &mood,
		Summary: "the qualifying exam",
	}
}

func TestDisclosure_MoodTierHidesSummaryAndAnswers(t *testing.T) {
	r := New()
	out, err := r.Disclosure(DisclosureView{JournalerName: "Ada", Projection: sharing.Shape(entry(), models.TierMood)})
	require.NoError(t, err)

	assert.Equal(t, "Ada shared a journal entry", out.Subject)
	for _, body := range []string{out.Text, out.HTML} {
		assert.Contains(t, body, "anxious")
		assert.Contains(t, body, "Evening check-in")
		assert.NotContains(t, body, "qualifying exam")
		assert.NotContains(t, body, "Wins")
	}
}

func TestDisclosure_FullTierListsAnswersInOrder(t *testing.T) {
	r := New()
	out, err := r.Disclosure(DisclosureView{
		JournalerName: "Ada",
		Projection:    sharing.Shape(entry(), models.TierFull),
		ActionURL:     "https://journal.example.com/mentees/1",
		Updated:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada updated a journal entry", out.Subject)
	assert.Contains(t, out.Text, "Summary: the qualifying exam")
	assert.Contains(t, out.Text, "- Wins: <b>ran</b>, read")
	assert.Less(t, strings.Index(out.Text, "What worried you"), strings.Index(out.Text, "Wins"))
	assert.Contains(t, out.HTML, "&lt;b&gt;ran&lt;/b&gt;")
	assert.Contains(t, out.HTML, `href="https://journal.example.com/mentees/1"`)
}

func TestDigest(t *testing.T) {
	r := New()
	out, err := r.Digest(DigestView{
		MentorName: "Grace",
		Since:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Until:      time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		Mentees: []MenteeView{
			{Name: "Ada", Entries: []sharing.Projection{sharing.Shape(entry(), models.TierSummary)}},
		},
		TotalCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Your journal digest: 1 new entry", out.Subject)
	assert.Contains(t, out.Text, "Hi Grace")
	assert.Contains(t, out.Text, "== Ada ==")
	assert.Contains(t, out.Text, "the qualifying exam")
	assert.NotContains(t, out.Text, "What worried you")
}

func TestDecisionAndRequest(t *testing.T) {
	r := New()
	out, err := r.Decision(DecisionView{Name: "Grace", Approved: false, Note: "Need references"})
	require.NoError(t, err)
	assert.Equal(t, "Your mentor application was not approved", out.Subject)
	assert.Contains(t, out.Text, "Need references")

	out, err = r.Request(RequestView{ActorName: "Ada", Status: "asked you to be their mentor", Message: "hi!"})
	require.NoError(t, err)
	assert.Equal(t, "Ada asked you to be their mentor", out.Subject)
	assert.Contains(t, out.Text, `"hi!"`)
}

func TestMilestone(t *testing.T) {
	out, err := New().Milestone(MilestoneView{JournalerName: "Ada", FormTitles: []string{"Daily", "Weekly"}})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Daily, Weekly")
}
