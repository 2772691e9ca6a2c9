package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaper_JSONRoundTrip(t *testing.T) {
	doi := "10.48550/arXiv.2301.00001"
	citations := 42

	tests := []struct {
		name  string
		paper Paper
	}{
		{
			name: "full paper",
			paper: Paper{
				Title:           "Attention Is All You Need",
				Authors:         []string{"Vaswani, A.", "Shazeer, N."},
				Abstract:        "The dominant sequence transduction models...",
				PublicationDate: "2017-06-12",
				SourceURL:       "https://arxiv.org/abs/1706.03762",
				DOI:             &doi,
				CitationCount:   &citations,
				Source:          "arxiv",
			},
		},
		{
			name: "paper without optional fields",
			paper: Paper{
				Title:    "Untracked Preprint",
				Authors:  []string{"Solo, H."},
				Abstract: "An abstract.",
				Source:   "semantic_scholar",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.paper)
			require.NoError(t, err)

			var decoded Paper
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.paper, decoded)
		})
	}
}

func TestPaper_JSONOmitsAbsentOptionals(t *testing.T) {
	paper := Paper{Title: "T", Authors: []string{"A"}, Abstract: "ab", Source: "arxiv"}

	data, err := json.Marshal(paper)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "doi")
	assert.NotContains(t, string(data), "citation_count")
}

// Core fields stay in the JSON encoding even when empty; only the
// pointer-typed optionals are dropped.
func TestPaper_JSONKeepsCoreFields(t *testing.T) {
	data, err := json.Marshal(Paper{Title: "T"})
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"title", "authors", "abstract", "publication_date", "source_url"} {
		assert.Contains(t, fields, key)
	}
}

func TestPaper_NormalizedDOI(t *testing.T) {
	doi := "  10.1000/ABC.123  "
	p := Paper{DOI: &doi}
	assert.Equal(t, "10.1000/abc.123", p.NormalizedDOI())

	assert.Empty(t, (&Paper{}).NormalizedDOI())
}

func TestPaper_Year(t *testing.T) {
	assert.Equal(t, "2024", (&Paper{PublicationDate: "2024-03-15"}).Year())
	assert.Equal(t, "1999", (&Paper{PublicationDate: "1999"}).Year())
	assert.Empty(t, (&Paper{PublicationDate: "99"}).Year())
	assert.Empty(t, (&Paper{}).Year())
}
