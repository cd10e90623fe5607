package service

import "github.com/kinesica-health/kinesica/internal/domain"

// SelectionConfig controls diversified source selection. The diversity floor
// and the excellence override are hand-tuned, so they stay configurable
// rather than hard-coded.
type SelectionConfig struct {
	MaxCount            int
	DiversityThreshold  float64
	ExcellenceThreshold float64
}

// DefaultSelectionConfig provides the tuned defaults.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		MaxCount:            3,
		DiversityThreshold:  0.6,
		ExcellenceThreshold: 0.85,
	}
}

// SourceSelector picks a bounded, category-diversified subset of scored
// documents for the prompt.
type SourceSelector struct {
	cfg SelectionConfig
}

// NewSourceSelector creates a SourceSelector with the given configuration.
func NewSourceSelector(cfg SelectionConfig) *SourceSelector {
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = DefaultSelectionConfig().MaxCount
	}
	return &SourceSelector{cfg: cfg}
}

// Select walks the documents in score order. The top document is always
// taken. A later candidate is taken when its category is new (or absent) and
// its score clears the diversity floor, or unconditionally when it clears the
// excellence threshold. This avoids citing near-duplicate sources from one
// category while still surfacing an outstanding match.
func (s *SourceSelector) Select(docs []*domain.ScoredDocument) []*domain.SelectedSource {
	if len(docs) == 0 {
		return []*domain.SelectedSource{}
	}

	selected := make([]*domain.SelectedSource, 0, s.cfg.MaxCount)
	seenCategories := make(map[domain.DocumentCategory]struct{})

	take := func(doc *domain.ScoredDocument, tag string) {
		selected = append(selected, &domain.SelectedSource{
			ScoredDocument: *doc,
			DiversityTag:   tag,
		})
		if doc.Category != "" {
			seenCategories[doc.Category] = struct{}{}
		}
	}

	take(docs[0], domain.DiversityTagTop)

	for _, doc := range docs[1:] {
		if len(selected) >= s.cfg.MaxCount {
			break
		}
		if doc.FinalScore > s.cfg.ExcellenceThreshold {
			take(doc, domain.DiversityTagExcellent)
			continue
		}
		_, seen := seenCategories[doc.Category]
		categoryNew := doc.Category == "" || !seen
		if categoryNew && doc.FinalScore > s.cfg.DiversityThreshold {
			take(doc, domain.DiversityTagDiverse)
		}
	}

	return selected
}
