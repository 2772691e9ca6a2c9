package dedup

import (
	"github.com/helixir/research-swarm-service/internal/domain"
)

// DefaultTitleSimilarityThreshold is the similarity above which two titles
// are treated as the same paper.
const DefaultTitleSimilarityThreshold = 0.9

// Deduplicator collapses duplicate papers returned by multiple sources.
// Duplicates are detected in two passes: an exact match on the normalized
// DOI, then a fuzzy title comparison for papers that share no DOI.
type Deduplicator struct {
	threshold float64
}

// New creates a Deduplicator. A non-positive threshold falls back to
// DefaultTitleSimilarityThreshold.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultTitleSimilarityThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// Deduplicate returns the papers with duplicates collapsed. The output
// preserves the first-seen order: each group of duplicates occupies the
// position where its first member appeared. Within a group, the kept
// record is the one with the most citations, then the one with a DOI,
// then the one with the longer abstract; the first-seen record wins ties.
func (d *Deduplicator) Deduplicate(papers []domain.Paper) []domain.Paper {
	if len(papers) <= 1 {
		return papers
	}

	kept := make([]domain.Paper, 0, len(papers))
	normTitles := make([]string, 0, len(papers))
	doiIndex := make(map[string]int)

	for _, paper := range papers {
		idx := -1

		if doi := paper.NormalizedDOI(); doi != "" {
			if i, ok := doiIndex[doi]; ok {
				idx = i
			}
		}
		if idx < 0 {
			idx = d.matchByTitle(normTitles, paper.Title)
		}

		if idx < 0 {
			kept = append(kept, paper)
			normTitles = append(normTitles, NormalizeTitle(paper.Title))
			if doi := paper.NormalizedDOI(); doi != "" {
				doiIndex[doi] = len(kept) - 1
			}
			continue
		}

		merged := merge(kept[idx], paper)
		kept[idx] = merged
		normTitles[idx] = NormalizeTitle(merged.Title)
		if doi := merged.NormalizedDOI(); doi != "" {
			doiIndex[doi] = idx
		}
	}

	return kept
}

// matchByTitle returns the index of the first kept paper whose normalized
// title is similar enough to the candidate, or -1.
func (d *Deduplicator) matchByTitle(normTitles []string, title string) int {
	norm := NormalizeTitle(title)
	if norm == "" {
		return -1
	}
	for i, existing := range normTitles {
		if similarity(existing, norm) >= d.threshold {
			return i
		}
	}
	return -1
}

// similarity compares two already-normalized titles.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	return TitleSimilarity(a, b)
}

// merge picks the preferred record of a duplicate pair and backfills
// fields the winner is missing from the loser.
func merge(existing, candidate domain.Paper) domain.Paper {
	winner, loser := existing, candidate
	if prefer(candidate, existing) {
		winner, loser = candidate, existing
	}

	if winner.DOI == nil && loser.DOI != nil {
		winner.DOI = loser.DOI
	}
	if winner.CitationCount == nil && loser.CitationCount != nil {
		winner.CitationCount = loser.CitationCount
	}
	if winner.Abstract == "" {
		winner.Abstract = loser.Abstract
	}
	if winner.PublicationDate == "" {
		winner.PublicationDate = loser.PublicationDate
	}
	if len(winner.Authors) == 0 {
		winner.Authors = loser.Authors
	}
	return winner
}

// prefer reports whether a should be kept over b. Citation count wins,
// then having a DOI, then abstract length. Ties keep b (the first seen).
func prefer(a, b domain.Paper) bool {
	if ca, cb := citations(&a), citations(&b); ca != cb {
		return ca > cb
	}
	if hasA, hasB := a.DOI != nil, b.DOI != nil; hasA != hasB {
		return hasA
	}
	return len(a.Abstract) > len(b.Abstract)
}

// citations treats an unknown citation count as lower than any known one.
func citations(p *domain.Paper) int {
	if p.CitationCount == nil {
		return -1
	}
	return *p.CitationCount
}
