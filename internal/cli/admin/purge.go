package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/kinesica-health/kinesica/internal/config"
	"github.com/kinesica-health/kinesica/internal/database"
	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/repository"
)

// PurgeCmd returns the purge command
func PurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge conversation history",
		Long:  "Delete a user's conversation history, or prune turns older than the retention window",
		RunE:  runPurge,
	}

	cmd.Flags().StringP("user", "u", "", "Delete all history for this user id")
	cmd.Flags().String("assistant", "", "Restrict the purge to one assistant type")
	cmd.Flags().Int("older-than", 0, "Prune turns older than this many days (all users)")

	return cmd
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	userID, _ := cmd.Flags().GetString("user")
	olderThan, _ := cmd.Flags().GetInt("older-than")
	if userID == "" && olderThan <= 0 {
		return fmt.Errorf("either --user or --older-than is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	repo := repository.NewConversationRepository(pool)

	types := domain.AssistantTypes()
	if assistantFlag, _ := cmd.Flags().GetString("assistant"); assistantFlag != "" {
		assistantType, err := domain.ParseAssistantType(assistantFlag)
		if err != nil {
			return err
		}
		types = []domain.AssistantType{assistantType}
	}

	if userID != "" {
		for _, assistantType := range types {
			if err := repo.DeleteAll(ctx, assistantType, userID); err != nil {
				return fmt.Errorf("failed to purge %s history: %w", assistantType, err)
			}
			log.Printf("purged %s history for user %s", assistantType, userID)
		}
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThan)
	for _, assistantType := range types {
		removed, err := repo.DeleteOlderThan(ctx, assistantType, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune %s history: %w", assistantType, err)
		}
		log.Printf("pruned %d %s turn(s) older than %s", removed, assistantType, cutoff.Format("2006-01-02"))
	}
	return nil
}
