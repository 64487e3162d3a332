package models

// Source identifies which retrieval signal produced a candidate.
type Source int

const (
	// SourceVector is dense vector similarity (cosine, raw range [-1,1]).
	SourceVector Source = iota
	// SourceKeyword is sparse keyword relevance (BM25, raw range [0,inf)).
	SourceKeyword
)

// String returns the lowercase source name used in logs and error details.
func (s Source) String() string {
	switch s {
	case SourceVector:
		return "vector"
	case SourceKeyword:
		return "keyword"
	default:
		return "unknown"
	}
}

// Candidate is one retrieved item before fusion.
type Candidate struct {
	ID       string
	Source   Source
	RawScore float64
	Metadata Metadata
}

// ScoredMatch is the fused view of one item. CombinedScore is derived from the two source
// scores and the vector weight; it is never set on its own.
type ScoredMatch struct {
	ID            string
	VectorScore   float64
	KeywordScore  float64
	CombinedScore float64
	// InVector and InKeyword record which sources actually returned the item.
	InVector  bool
	InKeyword bool
	Metadata  Metadata
	// RerankRank is the 1-based position assigned by the reranker; 0 when not reranked.
	RerankRank int
}

// Reranked reports whether the reranker assigned this match a position.
func (m *ScoredMatch) Reranked() bool {
	return m.RerankRank > 0
}

// Thresholds echoes the three score floors applied to a query.
type Thresholds struct {
	MinVectorScore   float64 `json:"min_vector_score"`
	MinKeywordScore  float64 `json:"min_keyword_score"`
	MinCombinedScore float64 `json:"min_combined_score"`
}

// Weights echoes the effective fusion weights applied to a query.
type Weights struct {
	Vector  float64 `json:"vector_weight"`
	Keyword float64 `json:"keyword_weight"`
}

// SearchAnalytics summarizes how a query's result set was produced.
type SearchAnalytics struct {
	Query                  string
	NormalizedQuery        string
	TotalCandidates        int
	TotalQualifyingMatches int
	GroupsFound            []string
	MatchesPerGroup        GroupCounts
	Thresholds             Thresholds
	Weights                Weights
	RerankingEnabled       bool
	// DegradedSource names the source that failed for this query, if any.
	DegradedSource string
	// SourceGroup is the exact match's group, empty without an exact match.
	SourceGroup string
}

// SearchResult is the engine output for one query.
type SearchResult struct {
	ExactMatch *ScoredMatch
	Matches    []*ScoredMatch
	Analytics  SearchAnalytics
}
