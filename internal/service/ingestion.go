package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/pdfextract"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentRepositoryInterface defines the repository interface for document
// persistence and nearest-neighbor queries.
type DocumentRepositoryInterface interface {
	Upsert(ctx context.Context, doc *domain.Document) (string, error)
	Query(ctx context.Context, embedding []float32, opts QueryOptions) ([]*domain.ScoredDocument, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MergeMetadata(ctx context.Context, id string, metadata domain.Metadata) error
}

// QueryOptions bounds a vector store query.
type QueryOptions struct {
	Threshold float64
	TopK      int
	Category  domain.DocumentCategory
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// SourceArchive stores raw ingested sources for provenance.
type SourceArchive interface {
	PutSource(ctx context.Context, key string, body []byte) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

const (
	// dedupCandidateThreshold bounds the vector pre-filter used to find
	// merge candidates; the Jaccard check makes the final call.
	dedupCandidateThreshold = 0.75
	dedupCandidateLimit     = 5
)

// IngestionService runs the ingestion pipeline: clean, chunk, dedup, embed,
// store. It owns Document creation and metadata merge.
type IngestionService struct {
	embedding EmbeddingClient
	txRunner  TxRunner
	archive   SourceArchive
	chunkCfg  ChunkConfig
	uuidGen   UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance.
func NewIngestionService(embedding EmbeddingClient, txRunner TxRunner) *IngestionService {
	return NewIngestionServiceWithOptions(embedding, txRunner, nil, DefaultChunkConfig(), &DefaultUUIDGenerator{})
}

// NewIngestionServiceWithOptions creates an IngestionService with explicit
// collaborators (for testing and optional archiving).
func NewIngestionServiceWithOptions(
	embedding EmbeddingClient,
	txRunner TxRunner,
	archive SourceArchive,
	chunkCfg ChunkConfig,
	uuidGen UUIDGenerator,
) *IngestionService {
	if chunkCfg.MaxChars <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &IngestionService{
		embedding: embedding,
		txRunner:  txRunner,
		archive:   archive,
		chunkCfg:  chunkCfg,
		uuidGen:   uuidGen,
	}
}

// IngestInput represents the input for ingesting one source document.
type IngestInput struct {
	RawText  string
	Title    string
	Category domain.DocumentCategory
	Metadata domain.Metadata
}

// IngestDocument runs the full ingestion pipeline over one raw source.
// Returns the stored documents, including existing documents that absorbed a
// near-duplicate chunk through metadata merge. An empty result with a nil
// error means the source had no ingestible content.
func (s *IngestionService) IngestDocument(ctx context.Context, input IngestInput) ([]*domain.Document, error) {
	chunks := SplitChunks(input.RawText, input.Title, s.chunkCfg)
	if len(chunks) == 0 {
		return []*domain.Document{}, nil
	}

	chunks = DedupChunks(chunks)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = buildEmbeddingText(input.Title, c.Content)
	}
	embeddings, err := s.embedding.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	now := time.Now().UTC()
	results := make([]*domain.Document, 0, len(chunks))

	for i, chunk := range chunks {
		metadata := chunkMetadata(input.Metadata, i, len(chunks))
		doc := domain.NewDocument(
			s.uuidGen.NewString(),
			input.Title,
			chunk.Content,
			input.Category,
			embeddings[i],
			metadata,
			now,
		)
		if err := domain.ValidateDocument(doc); err != nil {
			return nil, err
		}

		// The duplicate check and the resulting write share one
		// transaction so no partially-written metadata is observable.
		var stored *domain.Document
		err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			docs := repos.Documents()

			existing, err := s.findNearDuplicate(ctx, docs, doc)
			if err != nil {
				return err
			}
			if existing != nil {
				merged := existing.Metadata.Merge(metadata, now)
				if err := docs.MergeMetadata(ctx, existing.ID, merged); err != nil {
					return err
				}
				existing.Metadata = merged
				stored = existing
				return nil
			}

			if _, err := docs.Upsert(ctx, doc); err != nil {
				return err
			}
			stored = doc
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store chunk %d: %w", i, err)
		}
		results = append(results, stored)
	}

	s.archiveSource(ctx, input)

	return results, nil
}

// IngestPDF extracts the text layer of a PDF and runs it through the
// ingestion pipeline. The page count is recorded in the chunk metadata.
func (s *IngestionService) IngestPDF(ctx context.Context, r io.Reader, input IngestInput) ([]*domain.Document, error) {
	extracted, err := pdfextract.FromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pdf text: %w", err)
	}

	metadata := domain.Metadata{}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata[domain.MetaPageCount] = extracted.PageCount

	input.RawText = extracted.Text
	input.Metadata = metadata
	return s.IngestDocument(ctx, input)
}

// findNearDuplicate pre-filters merge candidates with a vector query, then
// confirms with lexical Jaccard similarity. Re-ingesting near-identical
// content merges metadata instead of inserting a new row.
func (s *IngestionService) findNearDuplicate(ctx context.Context, docs DocumentRepositoryInterface, doc *domain.Document) (*domain.Document, error) {
	candidates, err := docs.Query(ctx, doc.Embedding, QueryOptions{
		Threshold: dedupCandidateThreshold,
		TopK:      dedupCandidateLimit,
		Category:  doc.Category,
	})
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if JaccardSimilarity(doc.Content, candidate.Content) > DuplicateThreshold {
			return &candidate.Document, nil
		}
	}
	return nil, nil
}

// archiveSource stores the raw source when an archive is configured.
// Best-effort: an archive failure never fails the ingestion.
func (s *IngestionService) archiveSource(ctx context.Context, input IngestInput) {
	if s.archive == nil {
		return
	}
	key := input.Metadata.String(domain.MetaSourceFile)
	if key == "" {
		key = s.uuidGen.NewString() + ".txt"
	}
	if err := s.archive.PutSource(ctx, key, []byte(input.RawText)); err != nil {
		log.Printf("failed to archive source %s: %v", key, err)
	}
}

func buildEmbeddingText(title, content string) string {
	var parts []string
	if strings.TrimSpace(title) != "" {
		parts = append(parts, title)
	}
	parts = append(parts, content)
	return strings.Join(parts, "\n\n")
}

func chunkMetadata(base domain.Metadata, index, total int) domain.Metadata {
	metadata := domain.Metadata{}
	for k, v := range base {
		metadata[k] = v
	}
	metadata[domain.MetaChunkIndex] = index
	metadata[domain.MetaChunkTotal] = total
	return metadata
}
