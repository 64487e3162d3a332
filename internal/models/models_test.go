package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_String(t *testing.T) {
	m := Metadata{"name": "nba", "year": 1946, "nil": nil}
	assert.Equal(t, "nba", m.String("name"))
	assert.Equal(t, "1946", m.String("year"))
	assert.Equal(t, "", m.String("nil"))
	assert.Equal(t, "", m.String("missing"))
	assert.Equal(t, "", m.String(""))
	assert.Equal(t, "", Metadata(nil).String("name"))
}

func TestMetadata_Clone(t *testing.T) {
	m := Metadata{"a": 1}
	c := m.Clone()
	c["b"] = 2
	assert.NotContains(t, m, "b")
	assert.NotNil(t, Metadata(nil).Clone())
}

func TestGroupCounts_KeepsOrder(t *testing.T) {
	var g GroupCounts
	g = g.Increment("sports")
	g = g.Increment("food")
	g = g.Increment("sports")

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Equal(t, `{"sports":2,"food":1}`, string(data))

	var back GroupCounts
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":1,"alpha":3}`), &back))
	assert.Equal(t, GroupCounts{{"zeta", 1}, {"alpha", 3}}, back)
	assert.Equal(t, 3, back.Get("alpha"))
	assert.Equal(t, 0, back.Get("missing"))

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
}

func TestNewSearchResponse(t *testing.T) {
	r := &SearchResult{
		ExactMatch: &ScoredMatch{ID: "nba", CombinedScore: 0.91234, VectorScore: 1, Metadata: Metadata{"category": "sports"}},
		Matches: []*ScoredMatch{
			{ID: "b", CombinedScore: 0.8, RerankRank: 1, Metadata: Metadata{"category": "sports"}},
			{ID: "a", CombinedScore: 0.85, RerankRank: 2},
			{ID: "c", CombinedScore: 0.51},
		},
		Analytics: SearchAnalytics{
			Query:           "NBA",
			NormalizedQuery: "nba",
			Weights:         Weights{Vector: 0.7, Keyword: 0.30000000000000004},
			SourceGroup:     "sports",
		},
	}
	resp := NewSearchResponse(r, "category")

	require.NotNil(t, resp.ExactMatch)
	assert.Equal(t, 0.912, resp.ExactMatch.Scores.Combined)
	assert.Equal(t, "sports", resp.ExactMatch.Group)
	assert.Equal(t, 0, resp.ExactMatch.Rank)

	require.Len(t, resp.Matches, 3)
	assert.Equal(t, 1, resp.Matches[0].Rank)
	assert.True(t, resp.Matches[0].Reranked)
	assert.Equal(t, 2, resp.Matches[1].Rank)
	assert.Equal(t, 3, resp.Matches[2].Rank)
	assert.False(t, resp.Matches[2].Reranked)
	assert.Equal(t, "", resp.Matches[1].Group)
	assert.NotNil(t, resp.Matches[2].Metadata)

	assert.Equal(t, []string{}, resp.SearchMetadata.GroupsFound)
	assert.NotNil(t, resp.SearchMetadata.MatchesPerGroup)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"matches_per_group":{}`)
	assert.Contains(t, string(data), `"exact_match":{"id":"nba"`)
	assert.Contains(t, string(data), `"weights":{"vector_weight":0.7,"keyword_weight":0.3}`)
	assert.Contains(t, string(data), `"source_group":"sports"`)
}

func TestNewSearchResponse_NoExactMatch(t *testing.T) {
	resp := NewSearchResponse(&SearchResult{}, "")
	assert.Nil(t, resp.ExactMatch)
	assert.NotNil(t, resp.Matches)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exact_match":null`)
	assert.Contains(t, string(data), `"matches":[]`)
	assert.NotContains(t, string(data), `"source_group"`)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "vector", SourceVector.String())
	assert.Equal(t, "keyword", SourceKeyword.String())
	assert.Equal(t, "unknown", Source(9).String())
}
