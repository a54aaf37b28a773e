package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/mender/internal/core/config"
	"github.com/vietddude/mender/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent batches and queue depth",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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
	pending, err := itemRepo.CountPending(ctx)
	if err != nil {
		slog.Error("Failed to count pending items", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Pending items: %d\n\n", pending)

	batchRepo := postgres.NewBatchRepo(db)
	summaries, err := batchRepo.ListRecent(ctx, 10)
	if err != nil {
		slog.Error("Failed to list recent batches", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "BATCH\tTOTAL\tOK\tFAILED\tRATE\tFINISHED")

	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.0f%%\t%s\n",
			s.BatchID, s.Total, s.Succeeded, s.Failed,
			s.SuccessRate*100, s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
