package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorjournal/internal/digest"
)

func TestParseWindow(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name         string
		since, until string
		from, to     time.Time
		wantErr      bool
	}{
		{name: "defaults", from: day(4), to: day(5)},
		{name: "dates", since: "2026-03-01", until: "2026-03-03", from: day(1), to: day(3)},
		{name: "until only", until: "2026-03-03", from: day(2), to: day(3)},
		{name: "rfc3339", since: "2026-03-01T12:00:00Z", until: "2026-03-02", from: day(1).Add(12 * time.Hour), to: day(2)},
		{name: "empty window", since: "2026-03-02", until: "2026-03-02", wantErr: true},
		{name: "garbage", since: "last week", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := parseWindow(tt.since, tt.until, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.from.Equal(from), "from = %s", from)
			assert.True(t, tt.to.Equal(to), "to = %s", to)
		})
	}
}

func TestPrintReport(t *testing.T) {
	rep := digest.Report{RunID: "r1", Digests: 2, Sent: 1, Failed: 1}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, rep, "table"))
	assert.Contains(t, buf.String(), "SENT")
	assert.Contains(t, buf.String(), "r1")

	buf.Reset()
	require.NoError(t, printReport(&buf, rep, "json"))
	assert.Contains(t, buf.String(), `"digests": 2`)

	buf.Reset()
	require.NoError(t, printReport(&buf, digest.Report{RunID: "r2", Skipped: true}, "table"))
	assert.Contains(t, buf.String(), "skipped")

	assert.Error(t, printReport(&buf, rep, "yaml"))
}

func TestCommandTree(t *testing.T) {
	root := rootCmd()
	cmd, _, err := root.Find([]string{"digest", "run"})
	require.NoError(t, err)
	assert.Equal(t, "run", cmd.Name())
	assert.NotNil(t, cmd.Flags().Lookup("since"))
	assert.NotNil(t, cmd.Flags().Lookup("until"))

	cmd, _, err = root.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.Equal(t, "migrate", cmd.Name())
}
