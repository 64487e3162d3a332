package models

import "math"

// ScoresView carries a match's scores rounded for the wire.
type ScoresView struct {
	Combined float64 `json:"combined"`
	Vector   float64 `json:"vector"`
	Keyword  float64 `json:"keyword"`
}

// MatchView is the serialized form of a ScoredMatch.
type MatchView struct {
	ID       string     `json:"id"`
	Scores   ScoresView `json:"scores"`
	Rank     int        `json:"rank"`
	Reranked bool       `json:"reranked"`
	Group    string     `json:"group,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// AnalyticsView is the serialized form of SearchAnalytics.
type AnalyticsView struct {
	Query                  string      `json:"query"`
	NormalizedQuery        string      `json:"normalized_query"`
	TotalCandidates        int         `json:"total_candidates"`
	TotalQualifyingMatches int         `json:"total_qualifying_matches"`
	GroupsFound            []string    `json:"groups_found"`
	MatchesPerGroup        GroupCounts `json:"matches_per_group"`
	Thresholds             Thresholds  `json:"thresholds"`
	Weights                Weights     `json:"weights"`
	RerankingEnabled       bool        `json:"reranking_enabled"`
	DegradedSource         string      `json:"degraded_source,omitempty"`
	SourceGroup            string      `json:"source_group,omitempty"`
}

// SearchResponse is the wire shape returned to API and CLI callers.
type SearchResponse struct {
	ExactMatch     *MatchView    `json:"exact_match"`
	Matches        []MatchView   `json:"matches"`
	SearchMetadata AnalyticsView `json:"search_metadata"`
	QueryTime      int64         `json:"query_time_ms"`
}

// RoundScore rounds s to three decimals.
func RoundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}

// NewSearchResponse renders r for the wire. groupField names the metadata field echoed as each
// match's group; empty disables it.
func NewSearchResponse(r *SearchResult, groupField string) *SearchResponse {
	resp := &SearchResponse{
		Matches: make([]MatchView, 0, len(r.Matches)),
	}
	if r.ExactMatch != nil {
		v := newMatchView(r.ExactMatch, 0, groupField)
		resp.ExactMatch = &v
	}
	for i, m := range r.Matches {
		resp.Matches = append(resp.Matches, newMatchView(m, i+1, groupField))
	}
	a := r.Analytics
	groups := a.GroupsFound
	if groups == nil {
		groups = []string{}
	}
	counts := a.MatchesPerGroup
	if counts == nil {
		counts = GroupCounts{}
	}
	resp.SearchMetadata = AnalyticsView{
		Query:                  a.Query,
		NormalizedQuery:        a.NormalizedQuery,
		TotalCandidates:        a.TotalCandidates,
		TotalQualifyingMatches: a.TotalQualifyingMatches,
		GroupsFound:            groups,
		MatchesPerGroup:        counts,
		Thresholds:             a.Thresholds,
		Weights:                Weights{Vector: RoundScore(a.Weights.Vector), Keyword: RoundScore(a.Weights.Keyword)},
		RerankingEnabled:       a.RerankingEnabled,
		DegradedSource:         a.DegradedSource,
		SourceGroup:            a.SourceGroup,
	}
	return resp
}

func newMatchView(m *ScoredMatch, rank int, groupField string) MatchView {
	v := MatchView{
		ID: m.ID,
		Scores: ScoresView{
			Combined: RoundScore(m.CombinedScore),
			Vector:   RoundScore(m.VectorScore),
			Keyword:  RoundScore(m.KeywordScore),
		},
		Rank:     rank,
		Reranked: m.Reranked(),
		Metadata: m.Metadata,
	}
	if m.Reranked() {
		v.Rank = m.RerankRank
	}
	if groupField != "" {
		v.Group = m.Metadata.String(groupField)
	}
	if v.Metadata == nil {
		v.Metadata = Metadata{}
	}
	return v
}
