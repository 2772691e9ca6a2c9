// Package paper assembles the final research document from pipeline
// artifacts: section text from the writing agent and references from the
// retained literature.
package paper

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// BuildDocument assembles a PaperDocument from the generated sections and
// the retained papers. References are numbered in paper order with
// BibTeX-style citation keys, and the word count covers all six sections.
func BuildDocument(title string, sections domain.PaperSections, papers []domain.Paper) *domain.PaperDocument {
	doc := &domain.PaperDocument{
		Title:      title,
		Sections:   sections,
		References: BuildReferences(papers),
		WordCount:  countWords(sections),
	}
	return doc
}

// BuildReferences converts the retained papers into citation entries.
func BuildReferences(papers []domain.Paper) []domain.Citation {
	if len(papers) == 0 {
		return nil
	}

	refs := make([]domain.Citation, 0, len(papers))
	for i := range papers {
		p := &papers[i]
		ref := domain.Citation{
			Key:     CiteKey(p, i+1),
			Title:   p.Title,
			Authors: append([]string(nil), p.Authors...),
			Year:    p.Year(),
			URL:     p.SourceURL,
		}
		if p.DOI != nil {
			ref.DOI = *p.DOI
		}
		refs = append(refs, ref)
	}
	return refs
}

// CiteKey builds a citation key of the form <lastname><year>_<index>,
// e.g. "vaswani2017_1". Papers without authors use "unknown"; papers
// without a date use "nd".
func CiteKey(p *domain.Paper, index int) string {
	lastName := "unknown"
	if len(p.Authors) > 0 {
		lastName = extractLastName(p.Authors[0])
	}

	year := p.Year()
	if year == "" {
		year = "nd"
	}

	return fmt.Sprintf("%s%s_%d", lastName, year, index)
}

// extractLastName pulls the surname out of "First Last" or "Last, First"
// and strips it down to lowercase letters.
func extractLastName(author string) string {
	name := author
	if idx := strings.Index(author, ","); idx >= 0 {
		name = author[:idx]
	} else if parts := strings.Fields(author); len(parts) > 0 {
		name = parts[len(parts)-1]
	}

	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "unknown"
	}
	return sb.String()
}

// BibTeX renders the document's references as a BibTeX bibliography.
func BibTeX(refs []domain.Citation) string {
	var sb strings.Builder
	for i, ref := range refs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("@article{%s,\n", ref.Key))
		if len(ref.Authors) > 0 {
			sb.WriteString(fmt.Sprintf("  author = {%s},\n", strings.Join(ref.Authors, " and ")))
		}
		if ref.Title != "" {
			sb.WriteString(fmt.Sprintf("  title = {%s},\n", ref.Title))
		}
		if ref.Year != "" {
			sb.WriteString(fmt.Sprintf("  year = {%s},\n", ref.Year))
		}
		if ref.URL != "" {
			sb.WriteString(fmt.Sprintf("  url = {%s},\n", ref.URL))
		}
		if ref.DOI != "" {
			sb.WriteString(fmt.Sprintf("  doi = {%s},\n", ref.DOI))
		}
		sb.WriteString("}")
	}
	return sb.String()
}

// countWords totals the whitespace-separated words across all sections.
func countWords(sections domain.PaperSections) int {
	total := 0
	for _, text := range []string{
		sections.Abstract,
		sections.Introduction,
		sections.Methodology,
		sections.Results,
		sections.Discussion,
		sections.Conclusion,
	} {
		total += len(strings.Fields(text))
	}
	return total
}
