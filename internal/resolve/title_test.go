package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title      string
		home, away string
		ok         bool
	}{
		{"Arsenal vs Chelsea", "Arsenal", "Chelsea", true},
		{"Real Madrid vs. Barcelona - Extended Highlights", "Real Madrid", "Barcelona", true},
		{"Aston Villa v Everton | Premier League 23/24", "Aston Villa", "Everton", true},
		{"HIGHLIGHTS: Arsenal 2-1 Chelsea", "Arsenal", "Chelsea", true},
		{"Inter 3 VS 0 Milan (Serie A)", "Inter", "Milan", true},
		{"Best goals of the week", "", "", false},
		{"vs Chelsea", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			home, away, ok := ParseTitle(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.home, home)
			assert.Equal(t, tt.away, away)
		})
	}
}
