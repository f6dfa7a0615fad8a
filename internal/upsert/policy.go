// Package upsert decides, per record, whether a freshly fetched candidate
// should be inserted, skipped or replace the stored copy.
package upsert

import (
	"strings"
	"time"
)

// Action is the outcome of a policy decision.
type Action int

const (
	ActionInsert Action = iota
	ActionSkip
	ActionReplace
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionSkip:
		return "skip"
	case ActionReplace:
		return "replace"
	}
	return "unknown"
}

// Meta is the part of a record the policy looks at.
type Meta struct {
	Status string
	// Date is the calendar date of the record; zero when unknown.
	Date time.Time
	// Enriched reports whether the computed fields (scores, detail blocks)
	// are already present.
	Enriched bool
}

// Decision tells the caller what to do with a candidate.
type Decision struct {
	Action Action
	// Enrich asks for detail fetching and computed fields.
	Enrich bool
	Reason string
}

// Config parameterizes a Policy. A zero window bound leaves that side open.
type Config struct {
	TerminalStatuses []string
	PastWindow       time.Duration
	FutureWindow     time.Duration
}

// Policy is immutable after construction apart from its clock.
type Policy struct {
	terminal map[string]struct{}
	past     time.Duration
	future   time.Duration
	now      func() time.Time
}

func NewPolicy(cfg Config) *Policy {
	statuses := cfg.TerminalStatuses
	if len(statuses) == 0 {
		statuses = []string{"Final"}
	}
	terminal := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		terminal[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &Policy{
		terminal: terminal,
		past:     cfg.PastWindow,
		future:   cfg.FutureWindow,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for the freshness window.
func (p *Policy) SetClock(now func() time.Time) {
	p.now = now
}

// IsTerminal reports whether status is one after which computed fields are stable.
func (p *Policy) IsTerminal(status string) bool {
	_, ok := p.terminal[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// Bounded reports whether either side of the freshness window is closed.
func (p *Policy) Bounded() bool {
	return p.past > 0 || p.future > 0
}

// InWindow reports whether date falls inside the freshness window. With a
// bounded window an unknown date is outside it.
func (p *Policy) InWindow(date time.Time) bool {
	if !p.Bounded() {
		return true
	}
	if date.IsZero() {
		return false
	}
	now := p.now()
	if p.past > 0 && date.Before(now.Add(-p.past)) {
		return false
	}
	if p.future > 0 && date.After(now.Add(p.future)) {
		return false
	}
	return true
}

// Decide applies the upsert table:
//
//	stored     candidate   action
//	none       any         insert, enrich if terminal
//	stored date outside window  skip
//	terminal   terminal    skip (replace+enrich if enrichment is missing)
//	terminal   other       replace (provider corrected the status)
//	other      any         replace, enrich if terminal
func (p *Policy) Decide(stored *Meta, candidate Meta) Decision {
	candidateTerminal := p.IsTerminal(candidate.Status)
	if stored == nil {
		return Decision{Action: ActionInsert, Enrich: candidateTerminal, Reason: "new record"}
	}
	// the stored date decides; a provider shifting the day must not reopen it
	if !p.InWindow(stored.Date) {
		return Decision{Action: ActionSkip, Reason: "outside freshness window"}
	}

	storedTerminal := p.IsTerminal(stored.Status)
	switch {
	case storedTerminal && candidateTerminal:
		if !stored.Enriched {
			return Decision{Action: ActionReplace, Enrich: true, Reason: "terminal record missing enrichment"}
		}
		return Decision{Action: ActionSkip, Reason: "terminal"}
	case storedTerminal:
		return Decision{Action: ActionReplace, Reason: "status reversed by provider"}
	default:
		return Decision{Action: ActionReplace, Enrich: candidateTerminal, Reason: "not terminal"}
	}
}
