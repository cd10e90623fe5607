package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// ChunkConfig controls text normalization and chunking during ingestion.
type ChunkConfig struct {
	MaxChars int
	MinChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1200,
		MinChars: 50,
		Overlap:  100,
	}
}

const (
	titleWordWeight     = 10
	domainKeywordWeight = 5
	bulletListBonus     = 5
	numberedListBonus   = 10
)

// domainKeywords are the physiotherapy terms that raise a chunk's priority.
var domainKeywords = []string{
	"exercice", "exercise", "protocole", "protocol", "rééducation",
	"rehabilitation", "pathologie", "pathology", "traitement", "treatment",
	"évaluation", "evaluation", "mobilisation", "renforcement", "étirement",
	"kinésithérapie", "physiothérapie", "articulation", "musculaire",
	"tendinopathie", "proprioception",
}

var (
	isolatedPageNumberRe = regexp.MustCompile(`^(?i)(page\s+)?\d+(\s*(/|of|sur)\s*\d+)?$`)
	producerLineRe       = regexp.MustCompile(`(?i)(adobe|acrobat|microsoft word|libreoffice|generated by|créé par|produced by|converti par)`)

	numberedHeadingRe = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)
	markdownHeaderRe  = regexp.MustCompile(`^#{1,6}\s+\S`)
	domainMarkerRe    = regexp.MustCompile(`(?i)^(exercice|exercise|étape|step|phase|séance)\s+\d+`)
	protocolMarkerRe  = regexp.MustCompile(`(?i)^protocole?\b`)
	capsLabelRe       = regexp.MustCompile(`^[A-ZÀ-ÖØ-Þ][A-ZÀ-ÖØ-Þ0-9 '’-]{2,}\s*:`)

	bulletLineRe   = regexp.MustCompile(`(?m)^\s*[-*•]\s+\S`)
	numberedLineRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+\S`)
)

// NormalizeText cleans raw extracted text: drops producer metadata lines,
// isolated page numbers and repeated headers/footers, strips control
// characters and collapses whitespace, capping consecutive newlines at 3.
func NormalizeText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	lines := strings.Split(stripControlChars(raw), "\n")

	// Short lines repeated across the document are headers or footers.
	counts := make(map[string]int, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len([]rune(trimmed)) < 60 {
			counts[trimmed]++
		}
	}

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			if isolatedPageNumberRe.MatchString(trimmed) {
				continue
			}
			if producerLineRe.MatchString(trimmed) {
				continue
			}
			if counts[trimmed] >= 3 {
				continue
			}
		}
		kept = append(kept, collapseSpaces(trimmed))
	}

	out := strings.Join(kept, "\n")
	out = regexp.MustCompile(`\n{4,}`).ReplaceAllString(out, "\n\n\n")
	return strings.TrimSpace(out)
}

// SplitChunks cleans the raw text, splits it on structural delimiters,
// re-splits oversized sections on sentence boundaries and scores each chunk.
// Empty input or nothing surviving the filters yields an empty slice, not an
// error: the caller treats that as "no ingestible content".
func SplitChunks(raw, titleHint string, cfg ChunkConfig) []domain.Chunk {
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	clean := NormalizeText(raw)
	if clean == "" {
		return nil
	}

	sections := splitSections(clean)

	var chunks []domain.Chunk
	for _, section := range sections {
		if len([]rune(section)) < cfg.MinChars || !hasAlphabetic(section) {
			continue
		}
		for _, piece := range splitLongSection(section, cfg) {
			chunks = append(chunks, domain.Chunk{
				Content:  piece,
				Priority: chunkPriority(piece, titleHint),
			})
		}
	}

	return chunks
}

// splitSections cuts the text at lines recognized as section starts, which
// preserves semantic coherence over fixed windows.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string
	flush := func() {
		section := strings.TrimSpace(strings.Join(current, "\n"))
		if section != "" {
			sections = append(sections, section)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if isSectionStart(line) && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return sections
}

func isSectionStart(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	return numberedHeadingRe.MatchString(trimmed) ||
		markdownHeaderRe.MatchString(trimmed) ||
		domainMarkerRe.MatchString(trimmed) ||
		protocolMarkerRe.MatchString(trimmed) ||
		capsLabelRe.MatchString(trimmed)
}

// splitLongSection re-splits a section longer than MaxChars on sentence
// boundaries, carrying a soft overlap into the next piece so context is not
// lost at the cut.
func splitLongSection(section string, cfg ChunkConfig) []string {
	if len([]rune(section)) <= cfg.MaxChars {
		return []string{section}
	}

	sentences := splitSentences(section)

	var pieces []string
	var current []string
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		piece := strings.TrimSpace(strings.Join(current, " "))
		if piece != "" {
			pieces = append(pieces, piece)
		}

		// Seed the next piece with trailing sentences, never carrying
		// more than the overlap window: a carry beyond Overlap would let
		// the next piece grow past MaxChars+Overlap.
		var carry []string
		carryLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			sentLen := len([]rune(current[i])) + 1
			if carryLen+sentLen > cfg.Overlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carryLen += sentLen
		}
		if carryLen >= currentLen {
			carry = nil
			carryLen = 0
		}
		current = carry
		currentLen = carryLen
	}

	for _, sentence := range sentences {
		sentenceLen := len([]rune(sentence))
		if sentenceLen > cfg.MaxChars {
			flush()
			pieces = append(pieces, hardSplit(sentence, cfg.MaxChars)...)
			current = nil
			currentLen = 0
			continue
		}
		if currentLen > 0 && currentLen+sentenceLen+1 > cfg.MaxChars {
			flush()
		}
		current = append(current, sentence)
		currentLen += sentenceLen + 1
	}
	if currentLen > 0 {
		piece := strings.TrimSpace(strings.Join(current, " "))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}

	return pieces
}

// splitSentences cuts text after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	runes := []rune(text)

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

// hardSplit is the fallback for a single sentence exceeding the chunk size:
// cut on the last whitespace inside the window, mid-word only when forced.
func hardSplit(text string, maxChars int) []string {
	runes := []rune(text)

	var pieces []string
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			cut := end
			for i := end; i > start+maxChars/2; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		start = end
	}
	return pieces
}

// chunkPriority scores a chunk: title-word and domain-keyword occurrences
// plus a structural bonus for lists.
func chunkPriority(content, titleHint string) int {
	freq := make(map[string]int)
	for _, token := range strings.Fields(strings.ToLower(content)) {
		freq[strings.Trim(token, ".,;:!?()[]\"'«»")]++
	}

	score := 0
	for _, word := range strings.Fields(strings.ToLower(titleHint)) {
		word = strings.Trim(word, ".,;:!?()[]\"'«»")
		if len([]rune(word)) <= 3 {
			continue
		}
		score += titleWordWeight * freq[word]
	}
	for _, keyword := range domainKeywords {
		score += domainKeywordWeight * freq[keyword]
	}
	if bulletLineRe.MatchString(content) {
		score += bulletListBonus
	}
	if numberedLineRe.MatchString(content) {
		score += numberedListBonus
	}
	return score
}

func hasAlphabetic(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
