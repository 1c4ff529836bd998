package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"chanrag/config"
	"chanrag/internal/adapter/store"
	"chanrag/internal/usecase"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [path]",
	Short: "Clear the index and re-ingest everything",
	Long: `Drop all indexed units and vectors and re-ingest every transcript from
scratch. Use after changing the embedding model or chunking parameters.

Examples:
  chanrag rebuild .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	path := GetDataDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	cfg := GetConfig()

	st, err := store.NewBoltStore(config.IndexDBPath(GetDataDir()))
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	fmt.Println("Clearing existing index...")
	if err := st.Clear(); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	refresh, err := usecase.NewRefreshManager(st, cfg.Refresh.Mode, cfg.Refresh.IntervalDays)
	if err != nil {
		return fmt.Errorf("failed to load refresh state: %w", err)
	}

	result, err := runIngestion(cmd.Context(), st, embedder, path)
	if err != nil {
		return err
	}

	if err := st.SetModelInfo(store.ModelInfo{
		Name:      embedder.ModelName(),
		Dimension: embedder.Dimension(),
	}); err != nil {
		return fmt.Errorf("failed to record model info: %w", err)
	}
	if err := refresh.MarkRefreshed(time.Now()); err != nil {
		return fmt.Errorf("failed to record refresh time: %w", err)
	}

	printIngestResult(result)
	return nil
}
