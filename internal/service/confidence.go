package service

import "github.com/kinesica-health/kinesica/internal/domain"

const (
	// neutralConfidence is returned when no sources were retrieved: absence
	// of sources is not proof of low quality.
	neutralConfidence = 0.5

	maxScoreWeight  = 0.7
	meanScoreWeight = 0.3
)

// EstimateConfidence derives a scalar confidence in [0,1] from the full
// scored list (not just the selected subset). The blend favors the single
// best match while still penalizing a uniformly weak corpus.
func EstimateConfidence(docs []*domain.ScoredDocument) float64 {
	if len(docs) == 0 {
		return neutralConfidence
	}

	maxScore := 0.0
	sum := 0.0
	for _, doc := range docs {
		if doc.FinalScore > maxScore {
			maxScore = doc.FinalScore
		}
		sum += doc.FinalScore
	}
	mean := sum / float64(len(docs))

	confidence := maxScoreWeight*maxScore + meanScoreWeight*mean
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
