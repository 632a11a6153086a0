package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/casewise/precedent-retrieval/internal/core/domain"
)

const (
	defaultChunkSize = 500
	defaultOverlap   = 50
	encodingName     = "cl100k_base"
)

// sectionPatterns matches header-like lines that open a structural
// section of a tribunal decision, with and without a leading paragraph
// number.
var sectionPatterns = []struct {
	section  domain.SectionType
	patterns []*regexp.Regexp
}{
	{domain.SectionBackground, []*regexp.Regexp{
		regexp.MustCompile(`(?mi)^[ \t]*(?:BACKGROUND|INTRODUCTION|THE APPLICATION)[ \t]*$`),
		regexp.MustCompile(`(?mi)^[ \t]*\d+\.[ \t]*(?:BACKGROUND|INTRODUCTION)[ \t]*$`),
	}},
	{domain.SectionFacts, []*regexp.Regexp{
		regexp.MustCompile(`(?mi)^[ \t]*(?:THE FACTS|FACTS|EVIDENCE|THE EVIDENCE|FINDINGS OF FACT)[ \t]*$`),
		regexp.MustCompile(`(?mi)^[ \t]*\d+\.[ \t]*(?:FACTS|THE FACTS|EVIDENCE)[ \t]*$`),
	}},
	{domain.SectionReasoning, []*regexp.Regexp{
		regexp.MustCompile(`(?mi)^[ \t]*(?:REASONS|THE REASONS|REASONING|THE TRIBUNAL'S REASONS|DISCUSSION)[ \t]*$`),
		regexp.MustCompile(`(?mi)^[ \t]*\d+\.[ \t]*(?:REASONS|REASONING|DISCUSSION)[ \t]*$`),
	}},
	{domain.SectionDecision, []*regexp.Regexp{
		regexp.MustCompile(`(?mi)^[ \t]*(?:DECISION|THE DECISION|DETERMINATION|ORDER|THE ORDER|CONCLUSION)[ \t]*$`),
		regexp.MustCompile(`(?mi)^[ \t]*\d+\.[ \t]*(?:DECISION|DETERMINATION|ORDER)[ \t]*$`),
	}},
}

// Chunker splits case documents into retrieval-sized passages,
// respecting section headers when present and sentence boundaries
// always. Deterministic for a given document and configuration.
type Chunker struct {
	chunkSize int
	overlap   int
	enc       *tiktoken.Tiktoken
}

func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		enc:       enc,
	}, nil
}

// Chunk splits one document. Empty or whitespace-only documents produce
// zero chunks. Chunk indices are sequential per document from 0.
func (c *Chunker) Chunk(doc domain.CaseDocument) []domain.Chunk {
	if strings.TrimSpace(doc.FullText) == "" {
		return nil
	}

	var chunks []domain.Chunk
	for _, sec := range detectSections(doc.FullText) {
		chunks = append(chunks, c.chunkSection(sec.text, sec.section, doc, len(chunks))...)
	}
	if len(chunks) == 0 {
		chunks = c.chunkSection(doc.FullText, domain.SectionUnknown, doc, 0)
	}
	return chunks
}

// CountTokens reports the retrieval-token length of text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

type detectedSection struct {
	section domain.SectionType
	text    string
}

type boundary struct {
	pos     int
	end     int
	section domain.SectionType
}

// detectSections scans for header lines and slices the text between
// them. Text before the first header is not attributed to any section,
// matching how tribunal decisions open with a case caption.
func detectSections(text string) []detectedSection {
	var boundaries []boundary
	for _, sp := range sectionPatterns {
		for _, p := range sp.patterns {
			for _, loc := range p.FindAllStringIndex(text, -1) {
				boundaries = append(boundaries, boundary{pos: loc[0], end: loc[1], section: sp.section})
			}
		}
	}
	if len(boundaries) == 0 {
		return nil
	}

	for i := 1; i < len(boundaries); i++ {
		for j := i; j > 0 && boundaries[j].pos < boundaries[j-1].pos; j-- {
			boundaries[j], boundaries[j-1] = boundaries[j-1], boundaries[j]
		}
	}

	collected := map[domain.SectionType]string{}
	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].pos
		}
		// A repeated header overwrites the earlier body, so the last
		// non-empty occurrence of a section wins.
		body := strings.TrimSpace(text[b.end:end])
		if body != "" {
			collected[b.section] = body
		}
	}

	// Emit in document order: background, facts, reasoning, decision.
	ordered := []domain.SectionType{
		domain.SectionBackground,
		domain.SectionFacts,
		domain.SectionReasoning,
		domain.SectionDecision,
	}
	var out []detectedSection
	for _, s := range ordered {
		if body := collected[s]; body != "" {
			out = append(out, detectedSection{section: s, text: body})
		}
	}
	return out
}

// chunkSection greedily accumulates sentences up to the token budget,
// seeding each new chunk with a trailing overlap window from the
// previous one.
func (c *Chunker) chunkSection(text string, section domain.SectionType, doc domain.CaseDocument, startIndex int) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []domain.Chunk
	var current []string
	currentTokens := 0
	index := startIndex

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, c.buildChunk(current, section, doc, index))
		index++
	}

	for _, sentence := range sentences {
		sentenceTokens := c.CountTokens(sentence)

		if sentenceTokens > c.chunkSize {
			flush()
			current = nil
			currentTokens = 0

			split := c.splitLongSentence(sentence, section, doc, index)
			chunks = append(chunks, split...)
			index += len(split)
			continue
		}

		if currentTokens+sentenceTokens > c.chunkSize && len(current) > 0 {
			flush()

			current = append(c.overlapWindow(current), sentence)
			currentTokens = 0
			for _, s := range current {
				currentTokens += c.CountTokens(s)
			}
			continue
		}

		current = append(current, sentence)
		currentTokens += sentenceTokens
	}
	flush()

	return chunks
}

// overlapWindow returns the trailing sentences of a finished chunk that
// fit within the overlap token budget.
func (c *Chunker) overlapWindow(sentences []string) []string {
	var window []string
	tokens := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := c.CountTokens(sentences[i])
		if tokens+n > c.overlap {
			break
		}
		window = append([]string{sentences[i]}, window...)
		tokens += n
	}
	return window
}

// splitLongSentence force-splits a sentence exceeding the budget on
// token boundaries. No overlap applies since sentence-level overlap
// cannot.
func (c *Chunker) splitLongSentence(sentence string, section domain.SectionType, doc domain.CaseDocument, startIndex int) []domain.Chunk {
	tokens := c.enc.Encode(sentence, nil, nil)

	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}

	var chunks []domain.Chunk
	index := startIndex
	for i := 0; i < len(tokens); i += step {
		end := i + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		piece := tokens[i:end]
		chunks = append(chunks, domain.Chunk{
			ID:            domain.ChunkID(doc.CaseReference, index),
			CaseReference: doc.CaseReference,
			Index:         index,
			Text:          c.enc.Decode(piece),
			Section:       section,
			Year:          doc.Year,
			Region:        doc.Region,
			CaseType:      doc.CaseType,
			TokenCount:    len(piece),
		})
		index++
	}
	return chunks
}

func (c *Chunker) buildChunk(sentences []string, section domain.SectionType, doc domain.CaseDocument, index int) domain.Chunk {
	text := strings.Join(sentences, " ")
	return domain.Chunk{
		ID:            domain.ChunkID(doc.CaseReference, index),
		CaseReference: doc.CaseReference,
		Index:         index,
		Text:          text,
		Section:       section,
		Year:          doc.Year,
		Region:        doc.Region,
		CaseType:      doc.CaseType,
		TokenCount:    c.CountTokens(text),
	}
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace and a capital letter.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || !unicode.IsUpper(runes[j]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
