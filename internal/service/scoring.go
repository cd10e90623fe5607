package service

import (
	"sort"
	"strings"
	"time"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// Re-ranking heuristics. Pure vector similarity under-weights exact
// terminology for a specialist audience, so each bonus is a cheap,
// explainable correction on top of semantic search.
const (
	keywordMatchBoost  = 0.05
	recencyBoost       = 0.03
	recencyWindowDays  = 30
	categoryBoost      = 0.08
	shortContentPenalty = 0.02
	shortContentChars   = 200
	idealContentBoost   = 0.03
	idealContentMin     = 500
	idealContentMax     = 2000
	titleMatchBoost     = 0.03
	maxFinalScore       = 1.0
)

// scoredCategories is the allowlist of categories that earn the domain bonus.
var scoredCategories = map[domain.DocumentCategory]struct{}{
	domain.CategoryProtocol:       {},
	domain.CategoryPathology:      {},
	domain.CategoryRehabilitation: {},
	domain.CategoryTechnique:      {},
	domain.CategoryEvaluation:     {},
	domain.CategoryTreatment:      {},
	// Domain abbreviations used by older corpora.
	"kine":   {},
	"reeduc": {},
	"physio": {},
}

// RelevanceScorer re-ranks raw similarity results with additive heuristics.
type RelevanceScorer struct {
	now func() time.Time
}

// NewRelevanceScorer creates a RelevanceScorer using the wall clock.
func NewRelevanceScorer() *RelevanceScorer {
	return &RelevanceScorer{now: time.Now}
}

// NewRelevanceScorerWithClock creates a RelevanceScorer with a custom clock (for testing).
func NewRelevanceScorerWithClock(now func() time.Time) *RelevanceScorer {
	return &RelevanceScorer{now: now}
}

// Score computes each document's final score from its raw similarity and the
// query text, then re-sorts descending and assigns ranks. The input slice is
// modified in place and returned.
func (s *RelevanceScorer) Score(docs []*domain.ScoredDocument, query string) []*domain.ScoredDocument {
	queryWords := significantWords(query)

	for _, doc := range docs {
		doc.FinalScore = s.finalScore(doc, queryWords)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].FinalScore > docs[j].FinalScore
	})
	for i, doc := range docs {
		doc.Rank = i + 1
	}
	return docs
}

func (s *RelevanceScorer) finalScore(doc *domain.ScoredDocument, queryWords []string) float64 {
	score := doc.Similarity

	contentLower := strings.ToLower(doc.Content)
	titleLower := strings.ToLower(doc.Title)

	matches := 0
	titleMatch := false
	for _, w := range queryWords {
		if strings.Contains(contentLower, w) {
			matches++
		}
		if strings.Contains(titleLower, w) {
			titleMatch = true
		}
	}
	score += keywordMatchBoost * float64(matches)

	if !doc.CreatedAt.IsZero() {
		age := s.now().Sub(doc.CreatedAt)
		if age < recencyWindowDays*24*time.Hour {
			score += recencyBoost
		}
	}

	if _, ok := scoredCategories[doc.Category]; ok {
		score += categoryBoost
	}

	contentLen := len([]rune(doc.Content))
	if contentLen < shortContentChars {
		score -= shortContentPenalty
	}
	if contentLen >= idealContentMin && contentLen <= idealContentMax {
		score += idealContentBoost
	}

	if titleMatch {
		score += titleMatchBoost
	}

	if score > maxFinalScore {
		score = maxFinalScore
	}
	if score < 0 {
		score = 0
	}
	return score
}

// significantWords returns the lowercased query words longer than 3 chars.
func significantWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?()[]\"'«»")
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}
	return words
}
