package service

import (
	"strings"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// DuplicateThreshold is the Jaccard similarity above which two texts are
// treated as near-duplicates.
const DuplicateThreshold = 0.85

// JaccardSimilarity computes lexical similarity between two texts as
// |A∩B|/|A∪B| over their sets of lowercased words longer than 3 characters.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// DedupChunks removes near-duplicate chunks from an ingestion batch, keeping
// the higher-priority chunk of each duplicate pair. Quadratic per batch, which
// is fine: batches are per source document and small.
func DedupChunks(chunks []domain.Chunk) []domain.Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	dropped := make([]bool, len(chunks))
	for i := 0; i < len(chunks); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(chunks); j++ {
			if dropped[j] {
				continue
			}
			if JaccardSimilarity(chunks[i].Content, chunks[j].Content) <= DuplicateThreshold {
				continue
			}
			if chunks[j].Priority > chunks[i].Priority {
				dropped[i] = true
				break
			}
			dropped[j] = true
		}
	}

	out := make([]domain.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if !dropped[i] {
			out = append(out, c)
		}
	}
	return out
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]\"'«»")
		if len([]rune(w)) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}
