package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"chanrag/config"
	"chanrag/internal/adapter/analyzer"
	"chanrag/internal/adapter/cache"
	"chanrag/internal/adapter/responder"
	"chanrag/internal/adapter/store"
	"chanrag/internal/domain"
	"chanrag/internal/usecase"
)

var (
	queryText     string
	queryTopK     int
	queryJSON     bool
	queryEntities []string
	queryVideos   []string
	queryAfter    string
	queryBefore   string
	queryBudget   int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a question over the indexed transcripts",
	Long: `Retrieve the transcript units most relevant to a question and print a
citation-backed answer context.

Examples:
  chanrag query -q "how does the fermentation start?"
  chanrag query -q "sourdough starter" --entity sourdough --top-k 10 --json
  chanrag query -q "recent talks" --after 2024-01-01`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question text (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the context payload as JSON")
	queryCmd.Flags().StringSliceVar(&queryEntities, "entity", nil, "restrict to units mentioning an entity (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryVideos, "video", nil, "restrict to specific video IDs (repeatable)")
	queryCmd.Flags().StringVar(&queryAfter, "after", "", "restrict to videos published after this date (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryBefore, "before", "", "restrict to videos published before this date (YYYY-MM-DD)")
	queryCmd.Flags().IntVar(&queryBudget, "budget", 0, "context token budget (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	dbPath := config.IndexDBPath(GetDataDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'chanrag ingest' first")
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	if err := st.RequireModel(store.ModelInfo{
		Name:      embedder.ModelName(),
		Dimension: embedder.Dimension(),
	}); err != nil {
		return fmt.Errorf("%w. Run 'chanrag rebuild' to reindex", err)
	}

	filters, err := parseFilters()
	if err != nil {
		return err
	}

	tokenizer := analyzer.NewTokenizer()
	extractor := analyzer.NewEntityExtractor(cfg.Entities.Mode, cfg.Entities.Vocabulary, tokenizer)
	queryCache := cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSeconds)*time.Second)

	queryUC := usecase.NewQueryUseCase(st, embedder, extractor, queryCache, usecase.QueryOptions{
		TopK:            cfg.Retrieve.TopK,
		Oversample:      cfg.Retrieve.Oversample,
		MinScore:        cfg.Retrieve.MinScore,
		ExpandNeighbors: cfg.Retrieve.ExpandNeighbors,
	})
	assembleUC := usecase.NewAssembleUseCase(st, cfg.Assemble.MaxContextTokens)

	results, err := queryUC.Retrieve(cmd.Context(), domain.Query{
		Text:    queryText,
		Filters: filters,
		TopK:    queryTopK,
	})
	partial := errors.Is(err, domain.ErrPartialResult)
	if err != nil && !partial {
		if errors.Is(err, domain.ErrNoRelevantContent) {
			fmt.Println("No relevant content found.")
			return nil
		}
		return fmt.Errorf("query failed: %w", err)
	}

	payload, err := assembleUC.Assemble(queryText, results, queryBudget)
	if err != nil {
		return fmt.Errorf("context assembly failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if partial {
		fmt.Println("Note: filters matched fewer units than requested; showing all matches.")
	}
	answer, err := responder.New().Generate(cmd.Context(), queryText, *payload)
	if err != nil {
		return fmt.Errorf("answer formatting failed: %w", err)
	}
	fmt.Println(answer)
	return nil
}

func parseFilters() (domain.Filters, error) {
	filters := domain.Filters{
		Entities: queryEntities,
		VideoIDs: queryVideos,
	}
	if queryAfter != "" {
		t, err := time.Parse("2006-01-02", queryAfter)
		if err != nil {
			return filters, fmt.Errorf("invalid --after date: %w", err)
		}
		filters.After = t
	}
	if queryBefore != "" {
		t, err := time.Parse("2006-01-02", queryBefore)
		if err != nil {
			return filters, fmt.Errorf("invalid --before date: %w", err)
		}
		filters.Before = t
	}
	return filters, nil
}
