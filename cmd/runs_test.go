package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tre1322/best-of-analyzer/internal/store"
	"github.com/tre1322/best-of-analyzer/internal/tally"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []store.RunSummary{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Category:  "best pizza",
			Votes:     120,
			Counted:   112,
			Flagged:   8,
			Summary:   []tally.Entry{{Rank: 1, Name: "Joe's Pizza", Votes: 41}},
			CreatedAt: now,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Category:  "best place to take an out-of-town guest for dinner",
			CreatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "CATEGORY")
	assert.Contains(t, output, "WINNER")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "best pizza")
	assert.Contains(t, output, "Joe's Pizza (41)")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "best place to take an out-of-...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "short", truncateID("short"))
}
