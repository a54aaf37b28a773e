package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/mender/internal/core/config"
	"github.com/vietddude/mender/internal/infra/storage/postgres"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue [item_id...]",
	Short: "Return failed work items to the pending queue",
	Args:  cobra.MinimumNArgs(1),
	Run:   runRequeue,
}

func init() {
	rootCmd.AddCommand(requeueCmd)
}

func runRequeue(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	itemRepo := postgres.NewWorkItemRepo(db)
	if err := itemRepo.Requeue(ctx, args); err != nil {
		slog.Error("Failed to requeue items", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Requeued %d item(s)\n", len(args))
}
