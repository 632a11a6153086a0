package usecase

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectIssuesFindsCategories(t *testing.T) {
	lex := DefaultLexicon()
	text := "The deposit was not protected under the tenancy deposit scheme and the carpet had a stain."
	issues := lex.DetectIssues(text)
	if !issues["deposit_protection"] {
		t.Error("deposit_protection not detected")
	}
	if !issues["damage"] {
		t.Error("damage not detected via stain")
	}
	if issues["garden"] {
		t.Error("garden falsely detected")
	}
}

func TestDetectEvidenceCaseInsensitive(t *testing.T) {
	lex := DefaultLexicon()
	evidence := lex.DetectEvidence("The Tenant produced PHOTOGRAPHS and a witness statement.")
	if !evidence["photographs"] || !evidence["witness"] {
		t.Fatalf("evidence detection failed: %v", evidence)
	}
}

func TestDetectEmptyText(t *testing.T) {
	lex := DefaultLexicon()
	if got := lex.DetectIssues(""); len(got) != 0 {
		t.Fatalf("empty text detected issues: %v", got)
	}
}

func TestJaccardBoundaries(t *testing.T) {
	both := map[string]bool{"a": true, "b": true}
	partial := map[string]bool{"b": true, "c": true}
	empty := map[string]bool{}

	if got := jaccard(both, both); got != 1.0 {
		t.Errorf("identical sets = %v, want 1.0", got)
	}
	if got := jaccard(both, partial); got != 1.0/3.0 {
		t.Errorf("one shared of three = %v, want 1/3", got)
	}
	if got := jaccard(empty, empty); got != 0.5 {
		t.Errorf("both empty = %v, want neutral 0.5", got)
	}
	if got := jaccard(both, empty); got != 0.3 {
		t.Errorf("one-sided = %v, want 0.3", got)
	}
}

func TestLoadLexiconOverridesIssuesOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	content := "issues:\n  mould:\n    - mould\n    - damp\n    - condensation\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lex, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	issues := lex.DetectIssues("severe damp and mould in the bathroom")
	if !issues["mould"] {
		t.Error("custom mould category not detected")
	}
	if issues["cleaning"] {
		t.Error("default issue categories should be replaced by the file")
	}
	// Evidence section absent from the file keeps defaults.
	if ev := lex.DetectEvidence("photographs were produced"); !ev["photographs"] {
		t.Error("default evidence vocabulary lost")
	}
}

func TestLoadLexiconMissingFile(t *testing.T) {
	if _, err := LoadLexicon(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
}
