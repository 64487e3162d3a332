package search

import (
	"github.com/hyperjump/kasane/internal/config"
	"github.com/hyperjump/kasane/internal/models"
)

// UnknownGroup is reported for matches with no value in the group field.
const UnknownGroup = "unknown"

// AnalyticsInput is everything BuildAnalytics derives its record from.
type AnalyticsInput struct {
	Query           string
	NormalizedQuery string
	TotalCandidates int
	ExactMatch      *models.ScoredMatch
	Matches         []*models.ScoredMatch
	// Config is the effective policy for the query (weights already adjusted on degradation).
	Config           config.SearchConfig
	GroupField       string
	RerankingEnabled bool
	DegradedSource   string
}

// BuildAnalytics summarizes a finished result set. Groups are listed in order of first
// appearance: the exact match first, then matches in final order.
func BuildAnalytics(in AnalyticsInput) models.SearchAnalytics {
	a := models.SearchAnalytics{
		Query:                  in.Query,
		NormalizedQuery:        in.NormalizedQuery,
		TotalCandidates:        in.TotalCandidates,
		TotalQualifyingMatches: len(in.Matches),
		GroupsFound:            []string{},
		MatchesPerGroup:        models.GroupCounts{},
		Thresholds:             in.Config.Thresholds(),
		Weights:                in.Config.Weights(),
		RerankingEnabled:       in.RerankingEnabled,
		DegradedSource:         in.DegradedSource,
	}

	groupOf := func(m *models.ScoredMatch) string {
		if in.GroupField != "" {
			if g := m.Metadata.String(in.GroupField); g != "" {
				return g
			}
		}
		return UnknownGroup
	}
	count := func(m *models.ScoredMatch) {
		group := groupOf(m)
		if a.MatchesPerGroup.Get(group) == 0 {
			a.GroupsFound = append(a.GroupsFound, group)
		}
		a.MatchesPerGroup = a.MatchesPerGroup.Increment(group)
	}

	if in.ExactMatch != nil {
		a.TotalQualifyingMatches++
		a.SourceGroup = groupOf(in.ExactMatch)
		count(in.ExactMatch)
	}
	for _, m := range in.Matches {
		count(m)
	}
	return a
}
