// Package search provides fuzzy filtering for the project sidebar.
package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"shotdeck/internal/domain"
)

// FilterProjects returns the projects fuzzy-matching query, best match
// first. An empty query returns the input unchanged.
func FilterProjects(projects []domain.Project, query string) []domain.Project {
	if query == "" {
		return projects
	}

	query = strings.ToLower(query)

	byName := make(map[string]domain.Project, len(projects))
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		key := strings.ToLower(p.Name)
		byName[key] = p
		names = append(names, key)
	}

	matches := fuzzy.RankFindFold(query, names)
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	results := make([]domain.Project, 0, len(matches))
	for _, m := range matches {
		if p, ok := byName[m.Target]; ok {
			results = append(results, p)
		}
	}
	return results
}
