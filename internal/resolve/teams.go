package resolve

import (
	"github.com/kmicac/matchsync/internal/models"
	"github.com/kmicac/matchsync/internal/normalize"
)

type teamEntry struct {
	name string
	logo string
}

// TeamIndex maps team names (full, short and three letter code) to crests.
type TeamIndex struct {
	norm    *normalize.Normalizer
	exact   map[string]string
	entries []teamEntry
}

// NewTeamIndex indexes teams in order. When two teams share a normalized
// name the first one keeps it.
func NewTeamIndex(n *normalize.Normalizer, teams []models.TeamRecord) *TeamIndex {
	if n == nil {
		n = normalize.New(nil)
	}
	idx := &TeamIndex{norm: n, exact: make(map[string]string)}
	for _, t := range teams {
		idx.Add(t)
	}
	return idx
}

// Add indexes one team. Teams without a crest are ignored.
func (idx *TeamIndex) Add(t models.TeamRecord) {
	if t.Crest == "" {
		return
	}
	for _, name := range []string{t.Name, t.ShortName, t.TLA} {
		key := idx.norm.Normalize(name)
		if key == "" {
			continue
		}
		if _, ok := idx.exact[key]; ok {
			continue
		}
		idx.exact[key] = t.Crest
		idx.entries = append(idx.entries, teamEntry{name: name, logo: t.Crest})
	}
}

func (idx *TeamIndex) Len() int {
	return len(idx.entries)
}

func (idx *TeamIndex) lookup(name string) (string, bool) {
	logo, ok := idx.exact[idx.norm.Normalize(name)]
	return logo, ok
}

func (idx *TeamIndex) names() []string {
	out := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.name
	}
	return out
}
