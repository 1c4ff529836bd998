package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"chanrag/config"
	"chanrag/internal/adapter/analyzer"
	"chanrag/internal/adapter/chunker"
	"chanrag/internal/adapter/embedding"
	"chanrag/internal/adapter/fs"
	"chanrag/internal/adapter/store"
	"chanrag/internal/port"
	"chanrag/internal/usecase"
)

var (
	ingestForce  bool
	ingestVideos []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest video transcripts into the index",
	Long: `Ingest transcript files from the given directory into the index.
The index is stored in index.db inside the data directory.

Each video is chunked into timestamped units, embedded and indexed
atomically; a video that fails never blocks the rest.

Examples:
  chanrag ingest .              # Ingest transcripts from current directory
  chanrag ingest /path/to/data  # Ingest from a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "run even when refresh mode is auto and no refresh is due")
	ingestCmd.Flags().StringSliceVar(&ingestVideos, "video", nil, "ingest only these video IDs (repeatable)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetDataDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	st, err := store.NewBoltStore(config.IndexDBPath(GetDataDir()))
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	cleared, err := clearIfModelChanged(st, embedder)
	if err != nil {
		return err
	}

	refresh, err := usecase.NewRefreshManager(st, cfg.Refresh.Mode, cfg.Refresh.IntervalDays)
	if err != nil {
		return fmt.Errorf("failed to load refresh state: %w", err)
	}

	if !ingestForce && !cleared {
		state, err := refresh.State()
		if err != nil {
			return fmt.Errorf("failed to load refresh state: %w", err)
		}
		if state.Mode == usecase.RefreshAuto {
			due, err := refresh.ShouldRefresh(time.Now())
			if err != nil {
				return err
			}
			if !due {
				fmt.Println("Refresh not due yet (auto mode). Use --force to ingest anyway.")
				return nil
			}
		}
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
	fmt.Printf("\nIndex stored at: %s\n", config.IndexDBPath(GetDataDir()))
	return nil
}

// runIngestion wires the pipeline and drives it over the source directory
// with a progress bar.
func runIngestion(ctx context.Context, st *store.BoltStore, embedder port.Embedder, path string) (*usecase.IngestResult, error) {
	cfg := GetConfig()

	tokenizer := analyzer.NewTokenizer()
	chk := chunker.NewTranscriptChunker(
		cfg.Chunking.MinTokens,
		cfg.Chunking.MaxTokens,
		cfg.Chunking.GapTolerance,
		cfg.Chunking.BacktrackWindow,
		cfg.Chunking.CoverageTolerance,
		tokenizer,
	)
	extractor := analyzer.NewEntityExtractor(cfg.Entities.Mode, cfg.Entities.Vocabulary, tokenizer)
	source := fs.NewSource(path, cfg.Source.Includes, cfg.Source.Excludes)

	ingestUC := usecase.NewIngestUseCase(st, chk, embedder, extractor, cfg.Ingest.Workers)

	fmt.Printf("Scanning %s...\n", path)

	videos, err := source.Videos()
	if err != nil {
		return nil, fmt.Errorf("failed to discover videos: %w", err)
	}
	if len(ingestVideos) > 0 {
		wanted := make(map[string]bool, len(ingestVideos))
		for _, id := range ingestVideos {
			wanted[id] = true
		}
		filtered := videos[:0]
		for _, v := range videos {
			if wanted[v.ID] {
				filtered = append(filtered, v)
			}
		}
		videos = filtered
	}

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var initialized bool

	ingestUC.SetProgress(func(processed, total int, videoID string) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		bar.Set(processed)
	})

	result, err := ingestUC.Ingest(ctx, videos)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}
	return result, nil
}

func printIngestResult(result *usecase.IngestResult) {
	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Videos indexed:       %d\n", result.Indexed)
	fmt.Printf("  Missing transcripts:  %d\n", result.Missing)
	fmt.Printf("  Failed:               %d\n", result.Failed)

	var units, flagged, gaps int
	for _, o := range result.Outcomes {
		units += o.Units
		flagged += o.FlaggedUnits
		gaps += len(o.Gaps)
	}
	fmt.Printf("  Units created:        %d\n", units)
	if gaps > 0 {
		fmt.Printf("  Coverage gaps:        %d\n", gaps)
	}
	if flagged > 0 {
		fmt.Printf("  Units flagged:        %d (entity extraction failed)\n", flagged)
	}

	var warned bool
	for _, o := range result.Outcomes {
		if o.Status == usecase.StatusIndexed {
			continue
		}
		if !warned {
			fmt.Printf("\nWarnings:\n")
			warned = true
		}
		fmt.Printf("  - %s: %s (%v)\n", o.VideoID, o.Status, o.Err)
	}
}

// clearIfModelChanged wipes the index when the configured embedding model no
// longer matches the one the index was built with, so old-space vectors never
// survive into a new-space index.
func clearIfModelChanged(st *store.BoltStore, embedder port.Embedder) (bool, error) {
	check, err := st.CheckModel(store.ModelInfo{
		Name:      embedder.ModelName(),
		Dimension: embedder.Dimension(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check index compatibility: %w", err)
	}
	if !check.NeedsRebuild {
		return false, nil
	}
	fmt.Printf("Index rebuild required: %s\n", check.Reason)
	fmt.Println("Clearing existing index...")
	if err := st.Clear(); err != nil {
		return false, fmt.Errorf("failed to clear index: %w", err)
	}
	return true, nil
}

// newEmbedder builds the configured embedding provider.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model,
			cfg.Embedding.Dimension, cfg.Embedding.BatchSize, cfg.Embedding.MaxAttempts)
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.Model, cfg.Embedding.BaseURL,
			cfg.Embedding.Dimension, cfg.Embedding.BatchSize, cfg.Embedding.MaxAttempts)
	case "compatible":
		return embedding.NewCompatibleEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL,
			cfg.Embedding.Dimension, cfg.Embedding.BatchSize, cfg.Embedding.MaxAttempts)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}
