package upsert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func windowed(past, future int) *Policy {
	p := NewPolicy(Config{
		TerminalStatuses: []string{"Final"},
		PastWindow:       time.Duration(past) * 24 * time.Hour,
		FutureWindow:     time.Duration(future) * 24 * time.Hour,
	})
	p.SetClock(func() time.Time { return now })
	return p
}

func TestDecide_Table(t *testing.T) {
	t.Parallel()

	recent := now.AddDate(0, 0, -2)
	old := now.AddDate(0, -3, 0)

	tests := []struct {
		name      string
		policy    *Policy
		stored    *Meta
		candidate Meta
		want      Action
		enrich    bool
	}{
		{"new scheduled", windowed(0, 0), nil, Meta{Status: "Scheduled", Date: recent}, ActionInsert, false},
		{"new final", windowed(0, 0), nil, Meta{Status: "Final", Date: old}, ActionInsert, true},
		{"new final outside window", windowed(30, 30), nil, Meta{Status: "Final", Date: old}, ActionInsert, true},
		{"final final unbounded", windowed(0, 0), &Meta{Status: "Final", Enriched: true}, Meta{Status: "Final", Date: old}, ActionSkip, false},
		{"final final in window", windowed(30, 30), &Meta{Status: "Final", Date: recent, Enriched: true}, Meta{Status: "Final", Date: recent}, ActionSkip, false},
		{"final final outside window", windowed(30, 30), &Meta{Status: "Final", Date: old, Enriched: true}, Meta{Status: "Final", Date: old}, ActionSkip, false},
		{"final missing enrichment", windowed(0, 0), &Meta{Status: "Final"}, Meta{Status: "Final", Date: recent}, ActionReplace, true},
		{"scheduled becomes final", windowed(0, 0), &Meta{Status: "Scheduled"}, Meta{Status: "Final", Date: recent}, ActionReplace, true},
		{"in progress stays in progress", windowed(0, 0), &Meta{Status: "InProgress"}, Meta{Status: "InProgress", Date: recent}, ActionReplace, false},
		{"final reversed", windowed(0, 0), &Meta{Status: "Final", Enriched: true}, Meta{Status: "Postponed", Date: recent}, ActionReplace, false},
		{"final reversed outside window", windowed(30, 30), &Meta{Status: "Final", Date: old, Enriched: true}, Meta{Status: "Postponed", Date: old}, ActionSkip, false},
		{"stored outside window, candidate moved inside", windowed(30, 30), &Meta{Status: "Final", Date: old, Enriched: true}, Meta{Status: "Postponed", Date: recent}, ActionSkip, false},
		{"stored inside window, candidate moved outside", windowed(30, 30), &Meta{Status: "Scheduled", Date: recent}, Meta{Status: "Final", Date: old}, ActionReplace, true},
		{"stored unknown date bounded", windowed(30, 30), &Meta{Status: "Scheduled"}, Meta{Status: "Final"}, ActionSkip, false},
	}

	for _, tc := range tests {
		got := tc.policy.Decide(tc.stored, tc.candidate)
		assert.Equal(t, tc.want, got.Action, tc.name)
		assert.Equal(t, tc.enrich, got.Enrich, tc.name)
		assert.NotEmpty(t, got.Reason, tc.name)
	}
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	p := windowed(1, 1)
	assert.True(t, p.InWindow(now))
	assert.True(t, p.InWindow(now.Add(-23*time.Hour)))
	assert.False(t, p.InWindow(now.Add(-49*time.Hour)))
	assert.False(t, p.InWindow(now.Add(49*time.Hour)))
	assert.False(t, p.InWindow(time.Time{}))

	pastOnly := windowed(0, 1)
	assert.True(t, pastOnly.InWindow(now.AddDate(-5, 0, 0)))
	assert.False(t, pastOnly.InWindow(now.AddDate(0, 0, 3)))

	assert.True(t, windowed(0, 0).InWindow(time.Time{}))
}

func TestIsTerminal_CaseInsensitiveAndConfigurable(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Config{TerminalStatuses: []string{"FT", " AET ", "PEN"}})
	assert.True(t, p.IsTerminal("ft"))
	assert.True(t, p.IsTerminal("AET"))
	assert.False(t, p.IsTerminal("NS"))
	assert.False(t, p.IsTerminal("Final"))

	assert.True(t, NewPolicy(Config{}).IsTerminal("Final"))
}

func TestActionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "insert", ActionInsert.String())
	assert.Equal(t, "skip", ActionSkip.String())
	assert.Equal(t, "replace", ActionReplace.String())
}
