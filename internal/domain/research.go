package domain

// ResearchGap is a gap in the literature identified by the gap analysis agent.
type ResearchGap struct {
	Description        string   `json:"description" validate:"required"`
	Significance       string   `json:"significance" validate:"required"`
	SupportingEvidence []string `json:"supporting_evidence,omitempty"`
}

// Hypothesis is a testable research hypothesis derived from an identified gap.
type Hypothesis struct {
	Statement   string `json:"statement" validate:"required"`
	Rationale   string `json:"rationale" validate:"required"`
	Testability string `json:"testability,omitempty"`
}

// Methodology describes the proposed research design.
type Methodology struct {
	Approach           string   `json:"approach" validate:"required"`
	DataRequirements   []string `json:"data_requirements" validate:"required,min=1"`
	Methods            []string `json:"methods" validate:"required,min=1"`
	ValidationStrategy string   `json:"validation_strategy" validate:"required"`
	Limitations        []string `json:"limitations,omitempty"`
}

// PaperSections holds the six required sections of a generated paper.
type PaperSections struct {
	Abstract     string `json:"abstract" validate:"required"`
	Introduction string `json:"introduction" validate:"required"`
	Methodology  string `json:"methodology" validate:"required"`
	Results      string `json:"results" validate:"required"`
	Discussion   string `json:"discussion" validate:"required"`
	Conclusion   string `json:"conclusion" validate:"required"`
}

// Citation is a reference entry in the generated paper.
type Citation struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    string   `json:"year,omitempty"`
	URL     string   `json:"url,omitempty"`
	DOI     string   `json:"doi,omitempty"`
}

// PaperDocument is the final research paper produced by a session.
type PaperDocument struct {
	Title      string        `json:"title"`
	Sections   PaperSections `json:"sections"`
	References []Citation    `json:"references,omitempty"`
	WordCount  int           `json:"word_count"`
}

// Clone returns a deep copy of the document.
func (p *PaperDocument) Clone() *PaperDocument {
	cp := *p
	if len(p.References) > 0 {
		cp.References = make([]Citation, len(p.References))
		copy(cp.References, p.References)
		for i := range p.References {
			cp.References[i].Authors = append([]string(nil), p.References[i].Authors...)
		}
	}
	return &cp
}

// SectionNames returns the required paper sections in order.
func SectionNames() []string {
	return []string{"abstract", "introduction", "methodology", "results", "discussion", "conclusion"}
}

// EthicsDimension is one scored axis of the ethics review.
type EthicsDimension struct {
	Name     string   `json:"name"`
	Score    int      `json:"score" validate:"min=0,max=100"`
	Findings []string `json:"findings,omitempty"`
}

// EthicsReport is the compliance agent's assessment of the generated paper.
type EthicsReport struct {
	DataPrivacy       EthicsDimension `json:"data_privacy"`
	ResponsibleAI     EthicsDimension `json:"responsible_ai"`
	ResearchIntegrity EthicsDimension `json:"research_integrity"`
	OverallScore      int             `json:"overall_score"`
	Approved          bool            `json:"approved"`
	Recommendations   []string        `json:"recommendations,omitempty"`
}
