// Package domain contains the core types shared across the research swarm service.
package domain

import "strings"

// SourceType identifies a paper source.
type SourceType string

// Supported paper sources.
const (
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
)

// Paper represents an academic paper retrieved from an external source.
type Paper struct {
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	Abstract        string   `json:"abstract"`
	PublicationDate string   `json:"publication_date"`
	SourceURL       string   `json:"source_url"`
	DOI             *string  `json:"doi,omitempty"`
	CitationCount   *int     `json:"citation_count,omitempty"`
	Source          string   `json:"source"`
}

// NormalizedDOI returns the paper's DOI lowercased and trimmed,
// or empty string when no DOI is present.
func (p *Paper) NormalizedDOI() string {
	if p.DOI == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*p.DOI))
}

// Year extracts the publication year from the publication date, or empty string.
func (p *Paper) Year() string {
	if len(p.PublicationDate) >= 4 {
		return p.PublicationDate[:4]
	}
	return ""
}
