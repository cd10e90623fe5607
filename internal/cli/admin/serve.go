package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	gopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/kinesica-health/kinesica/internal/api/handlers"
	"github.com/kinesica-health/kinesica/internal/config"
	"github.com/kinesica-health/kinesica/internal/database"
	"github.com/kinesica-health/kinesica/internal/jobs"
	"github.com/kinesica-health/kinesica/internal/openai"
	"github.com/kinesica-health/kinesica/internal/repository"
	"github.com/kinesica-health/kinesica/internal/server"
	"github.com/kinesica-health/kinesica/internal/service"
	"github.com/kinesica-health/kinesica/internal/storage"
	"github.com/kinesica-health/kinesica/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the kinesica API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	retrievalLogRepo := repository.NewRetrievalLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	if !cfg.HasOpenAI() {
		return fmt.Errorf("KINESICA_OPENAI_API_KEY is required")
	}
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
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		log.Printf("source archive bucket '%s' ready", cfg.S3Bucket)
		archive = s3Archive
	}

	ingestionSvc := service.NewIngestionServiceWithOptions(
		openaiClient,
		txRunner,
		archive,
		service.DefaultChunkConfig(),
		&service.DefaultUUIDGenerator{},
	)

	conversationCfg := service.ConversationConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		TopK:                cfg.RetrievalTopK,
		Selection: service.SelectionConfig{
			MaxCount:            cfg.MaxSelectedSources,
			DiversityThreshold:  cfg.DiversityThreshold,
			ExcellenceThreshold: cfg.ExcellenceThreshold,
		},
		HistorySinceDays:  cfg.HistoryWindowDays,
		HistoryLimit:      cfg.HistoryLimit,
		MaxTokens:         cfg.CompletionMaxTokens,
		Temperature:       cfg.CompletionTemperature,
		EmbeddingTimeout:  cfg.EmbeddingTimeout,
		CompletionTimeout: cfg.CompletionTimeout,
	}
	conversationSvc := service.NewConversationServiceWithConfig(
		openaiClient,
		&completionAdapter{client: openaiClient},
		docRepo,
		conversationRepo,
		retrievalLogRepo,
		conversationCfg,
	)

	corpusSvc := service.NewCorpusService(docRepo)

	retentionJob := jobs.NewRetentionJob(conversationRepo, cfg.HistoryRetentionDays)
	retentionWorker := jobs.NewWorker(retentionJob, 1*time.Hour)
	go retentionWorker.Start(ctx)
	log.Println("retention worker started")

	routerCfg := server.RouterConfig{
		AssistantHandler: handlers.NewAssistantHandler(conversationSvc),
		IngestHandler:    handlers.NewIngestHandler(ingestionSvc),
		DocumentHandler:  handlers.NewDocumentHandler(corpusSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	retentionWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// completionAdapter bridges the openai client to the conversation service's
// completion interface.
type completionAdapter struct {
	client *openai.Client
}

func (a *completionAdapter) Complete(ctx context.Context, input service.CompletionInput) (string, error) {
	return a.client.Complete(ctx, openai.CompletionInput{
		SystemPrompt: input.SystemPrompt,
		History:      input.History,
		UserMessage:  input.UserMessage,
		MaxTokens:    input.MaxTokens,
		Temperature:  input.Temperature,
	})
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
