package admin

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/kinesica-health/kinesica/internal/config"
	"github.com/kinesica-health/kinesica/internal/database"
	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/openai"
	"github.com/kinesica-health/kinesica/internal/pdfextract"
	"github.com/kinesica-health/kinesica/internal/repository"
	"github.com/kinesica-health/kinesica/internal/service"
	"github.com/kinesica-health/kinesica/internal/storage"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a source file into the corpus",
		Long:  "Clean, chunk, dedup, embed and store a PDF or text file in the document corpus",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().StringP("title", "t", "", "Document title (defaults to the file name)")
	cmd.Flags().StringP("category", "c", "", "Document category (protocol, pathology, rehabilitation, ...)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("KINESICA_OPENAI_API_KEY is required")
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	openaiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:          cfg.OpenAIAPIKey,
		EmbeddingModel:  gopenai.EmbeddingModel(cfg.EmbeddingModel),
		CompletionModel: cfg.CompletionModel,
	})

	var archive service.SourceArchive
	if cfg.HasS3() {
		s3Archive, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create source archive: %w", err)
		}
		archive = s3Archive
	}

	svc := service.NewIngestionServiceWithOptions(
		openaiClient,
		repository.NewTxRunner(pool),
		archive,
		service.DefaultChunkConfig(),
		&service.DefaultUUIDGenerator{},
	)

	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = pdfextract.TitleFromPath(path)
	}
	categoryFlag, _ := cmd.Flags().GetString("category")

	input := service.IngestInput{
		Title:    title,
		Category: domain.DocumentCategory(categoryFlag),
		Metadata: domain.Metadata{domain.MetaSourceFile: filepath.Base(path)},
	}

	var docs []*domain.Document
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		docs, err = svc.IngestPDF(ctx, f, input)
		if err != nil {
			return err
		}
	} else {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		input.RawText = string(raw)
		docs, err = svc.IngestDocument(ctx, input)
		if err != nil {
			return err
		}
	}

	if len(docs) == 0 {
		log.Printf("%s: no ingestible content", path)
		return nil
	}

	log.Printf("%s: stored %d chunk(s)", path, len(docs))
	for _, doc := range docs {
		log.Printf("  %s  %s", doc.ID, doc.Title)
	}
	return nil
}
