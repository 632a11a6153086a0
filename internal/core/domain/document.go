package domain

import (
	"fmt"
	"strings"
	"time"
)

// SectionType identifies the structural section of a tribunal decision
// that a chunk was taken from.
type SectionType string

const (
	SectionBackground SectionType = "background"
	SectionFacts      SectionType = "facts"
	SectionReasoning  SectionType = "reasoning"
	SectionDecision   SectionType = "decision"
	SectionUnknown    SectionType = "unknown"
)

// MinCaseYear bounds plausible decision years; anything earlier is
// extraction noise rather than a real decision.
const MinCaseYear = 1990

// CaseDocument is one extracted and cleaned tribunal decision. It is
// produced upstream and never mutated by the retrieval core.
type CaseDocument struct {
	CaseReference string `json:"case_reference"`
	Year          int    `json:"year"`
	Region        string `json:"region,omitempty"`
	CaseType      string `json:"case_type,omitempty"`
	Title         string `json:"title,omitempty"`
	FullText      string `json:"full_text"`
}

// NewCaseDocument validates document metadata at construction time.
// Malformed metadata is rejected, never coerced.
func NewCaseDocument(caseReference string, year int, region, caseType, title, fullText string) (CaseDocument, error) {
	if strings.TrimSpace(caseReference) == "" {
		return CaseDocument{}, WrapError(ErrValidation, "new case document", fmt.Errorf("empty case reference"))
	}
	maxYear := time.Now().UTC().Year() + 1
	if year < MinCaseYear || year > maxYear {
		return CaseDocument{}, WrapError(
			ErrValidation,
			"new case document",
			fmt.Errorf("year %d outside plausible range [%d, %d]", year, MinCaseYear, maxYear),
		)
	}
	return CaseDocument{
		CaseReference: caseReference,
		Year:          year,
		Region:        region,
		CaseType:      caseType,
		Title:         title,
		FullText:      fullText,
	}, nil
}

// Chunk is a contiguous passage of a CaseDocument. Chunk IDs are stable
// across re-ingestion of an unchanged document.
type Chunk struct {
	ID            string      `json:"chunk_id"`
	CaseReference string      `json:"case_reference"`
	Index         int         `json:"chunk_index"`
	Text          string      `json:"text"`
	Section       SectionType `json:"section_type"`

	Year     int    `json:"year"`
	Region   string `json:"region,omitempty"`
	CaseType string `json:"case_type,omitempty"`

	TokenCount int `json:"token_count"`
}

// ChunkID derives the identifier for a chunk from its document reference
// and zero-based position.
func ChunkID(caseReference string, index int) string {
	return fmt.Sprintf("%s_%d", caseReference, index)
}
