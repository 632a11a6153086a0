package usecase

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the trigger-phrase vocabularies used by the reranker:
// issue categories specific to deposit disputes and evidence types
// commonly cited in tribunal decisions. A phrase matches when it
// appears as a case-insensitive substring; one phrase is enough to
// mark its category as present.
type Lexicon struct {
	Issues   map[string][]string `yaml:"issues"`
	Evidence map[string][]string `yaml:"evidence"`
}

// DefaultLexicon returns the built-in vocabularies.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Issues: map[string][]string{
			"deposit_protection": {
				"deposit protection", "section 213", "section 214",
				"tenancy deposit scheme", "tds", "dps", "mydeposits",
				"protected deposit", "unprotected deposit", "prescribed information",
			},
			"cleaning": {
				"cleaning", "professional clean", "end of tenancy clean",
				"cleanliness", "dirty", "filthy", "clean condition",
			},
			"damage": {
				"damage", "damages", "broken", "stain", "mark", "scratch",
				"hole", "burn", "tear", "worn", "deterioration",
			},
			"fair_wear_and_tear": {
				"fair wear and tear", "reasonable wear", "natural wear",
				"normal use", "betterment",
			},
			"inventory": {
				"inventory", "check-in", "check-out", "schedule of condition",
				"photographic evidence", "inspection report",
			},
			"rent_arrears": {
				"rent arrears", "unpaid rent", "outstanding rent",
				"rent owed", "arrears",
			},
			"garden": {
				"garden", "lawn", "grass", "overgrown", "landscaping",
				"outdoor area", "patio",
			},
			"decoration": {
				"redecoration", "painting", "redecorating", "walls",
				"paintwork", "marks on walls",
			},
		},
		Evidence: map[string][]string{
			"inventory":      {"inventory", "schedule of condition", "check-in report", "check-out report"},
			"photographs":    {"photograph", "photo", "picture", "image"},
			"receipts":       {"receipt", "invoice", "quotation", "quote", "estimate"},
			"correspondence": {"email", "letter", "text message", "whatsapp", "correspondence"},
			"witness":        {"witness", "testimony", "statement"},
			"contract":       {"tenancy agreement", "contract", "lease"},
		},
	}
}

// LoadLexicon reads a YAML vocabulary file. Sections absent from the
// file keep the built-in defaults, so a file may override only the
// issue categories or only the evidence types.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}

	var loaded Lexicon
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse lexicon file: %w", err)
	}

	lex := DefaultLexicon()
	if len(loaded.Issues) > 0 {
		lex.Issues = loaded.Issues
	}
	if len(loaded.Evidence) > 0 {
		lex.Evidence = loaded.Evidence
	}
	return lex, nil
}

// DetectIssues returns the issue categories whose trigger phrases
// appear in the text.
func (l *Lexicon) DetectIssues(text string) map[string]bool {
	return detect(text, l.Issues)
}

// DetectEvidence returns the evidence types mentioned in the text.
func (l *Lexicon) DetectEvidence(text string) map[string]bool {
	return detect(text, l.Evidence)
}

func detect(text string, vocab map[string][]string) map[string]bool {
	found := make(map[string]bool)
	if text == "" {
		return found
	}
	lower := strings.ToLower(text)
	for category, phrases := range vocab {
		for _, phrase := range phrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				found[category] = true
				break
			}
		}
	}
	return found
}

// jaccard scores the overlap of two detected-category sets. 0.5 is
// neutral when neither side detected anything, 0.3 when exactly one
// side did.
func jaccard(a, b map[string]bool) float64 {
	switch {
	case len(a) > 0 && len(b) > 0:
		intersection := 0
		for k := range a {
			if b[k] {
				intersection++
			}
		}
		union := len(a) + len(b) - intersection
		return float64(intersection) / float64(union)
	case len(a) > 0 || len(b) > 0:
		return 0.3
	default:
		return 0.5
	}
}
