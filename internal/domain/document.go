package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// DocumentCategory classifies a stored document by clinical topic.
type DocumentCategory string

const (
	CategoryProtocol       DocumentCategory = "protocol"
	CategoryPathology      DocumentCategory = "pathology"
	CategoryRehabilitation DocumentCategory = "rehabilitation"
	CategoryTechnique      DocumentCategory = "technique"
	CategoryEvaluation     DocumentCategory = "evaluation"
	CategoryTreatment      DocumentCategory = "treatment"
	CategoryGeneral        DocumentCategory = "general"
)

// EmbeddingDimensions is the fixed vector dimension for the whole corpus.
const EmbeddingDimensions = 1536

// Well-known metadata keys.
const (
	MetaSourceFile        = "source_file"
	MetaPageCount         = "page_count"
	MetaChunkIndex        = "chunk_index"
	MetaChunkTotal        = "chunk_total"
	MetaEvidenceLevel     = "evidence_level"
	MetaAuthors           = "authors"
	MetaDate              = "date"
	MetaPathologies       = "pathologies"
	MetaDuplicateDetected = "duplicate_detected"
	MetaMergedAt          = "merged_at"
)

// Metadata carries per-document provenance and clinical annotations.
// It is stored as a single JSONB column.
type Metadata map[string]any

// Merge unions other into m. Existing keys are kept, the duplicate flag and
// merge timestamp are always set. Returns the merged map, never nil.
func (m Metadata) Merge(other Metadata, now time.Time) Metadata {
	out := Metadata{}
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	out[MetaDuplicateDetected] = true
	out[MetaMergedAt] = now.UTC().Format(time.RFC3339)
	return out
}

// String returns the metadata value for key as a string, or "" when absent.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Document is a stored, embedded knowledge chunk.
type Document struct {
	ID        string
	Title     string
	Content   string
	Category  DocumentCategory
	Embedding []float32
	Metadata  Metadata
	CreatedAt time.Time
}

// Chunk is a transient ingestion artifact: a bounded slice of source text
// with a priority score used for intra-batch deduplication.
type Chunk struct {
	Content  string
	Priority int
}

// ScoredDocument is a query-time result: a document with its raw vector
// similarity, the heuristic final score and its rank after re-ranking.
type ScoredDocument struct {
	Document
	Similarity float64
	FinalScore float64
	Rank       int
}

// SelectedSource is a scored document chosen for the prompt, tagged with the
// reason it passed the diversity filter.
type SelectedSource struct {
	ScoredDocument
	DiversityTag string
}

// Diversity tags assigned by the source selector.
const (
	DiversityTagTop       = "top"
	DiversityTagDiverse   = "diverse"
	DiversityTagExcellent = "excellent"
)

// NewDocument creates a Document with the given fields.
func NewDocument(id, title, content string, category DocumentCategory, embedding []float32, metadata Metadata, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		Title:     title,
		Content:   content,
		Category:  category,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: createdAt,
	}
}

// ValidateDocument validates a Document instance.
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Content == "" {
		return fmt.Errorf("document Content is required")
	}

	if !utf8.ValidString(d.Content) {
		return ErrNotText
	}

	if len(d.Embedding) != 0 && len(d.Embedding) != EmbeddingDimensions {
		return fmt.Errorf("document embedding has %d dimensions, expected %d", len(d.Embedding), EmbeddingDimensions)
	}

	return nil
}
