// Package scoring derives the final score, result and league points of a
// fixture from its goal list.
package scoring

import (
	"strconv"

	"github.com/kmicac/matchsync/internal/models"
)

const (
	PointsWin  = 3
	PointsDraw = 1
	PointsLoss = 0
)

// Outcome is the computed part of a finished fixture.
type Outcome struct {
	HomeScore int
	AwayScore int
	// Result is the winning team id, nil on a draw.
	Result *int
	// Points maps the decimal team id to 3/1/0.
	Points map[string]int
	// Goals keeps only the events that count, in their original order.
	Goals []models.GoalEvent
}

// CountingGoals filters out event types that do not affect the score
// (disallowed goals, missed penalties, ...).
func CountingGoals(goals []models.GoalEvent) []models.GoalEvent {
	out := make([]models.GoalEvent, 0, len(goals))
	for _, g := range goals {
		if g.Counts() {
			out = append(out, g)
		}
	}
	return out
}

// Calculate credits Goal and PenaltyGoal to the scoring team and OwnGoal to
// its opponent. Events credited to a team outside the fixture are ignored.
func Calculate(goals []models.GoalEvent, homeID, awayID int) Outcome {
	counted := CountingGoals(goals)

	var home, away int
	for _, g := range counted {
		beneficiary := g.TeamID
		if g.Type == models.GoalTypeOwnGoal {
			switch g.TeamID {
			case homeID:
				beneficiary = awayID
			case awayID:
				beneficiary = homeID
			default:
				continue
			}
		}
		switch beneficiary {
		case homeID:
			home++
		case awayID:
			away++
		}
	}

	homeKey, awayKey := strconv.Itoa(homeID), strconv.Itoa(awayID)
	out := Outcome{
		HomeScore: home,
		AwayScore: away,
		Points:    map[string]int{homeKey: PointsLoss, awayKey: PointsLoss},
		Goals:     counted,
	}
	switch {
	case home > away:
		winner := homeID
		out.Result = &winner
		out.Points[homeKey] = PointsWin
	case away > home:
		winner := awayID
		out.Result = &winner
		out.Points[awayKey] = PointsWin
	default:
		out.Points[homeKey] = PointsDraw
		out.Points[awayKey] = PointsDraw
	}
	return out
}

// Apply writes the outcome onto the fixture.
func (o Outcome) Apply(f *models.FixtureRecord) {
	home, away := o.HomeScore, o.AwayScore
	f.HomeTeamScore = &home
	f.AwayTeamScore = &away
	f.Result = o.Result
	f.Points = o.Points
	f.Goals = o.Goals
}
