package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"chanrag/config"
	"chanrag/internal/adapter/store"
	"chanrag/internal/usecase"
)

var refreshInterval int

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Manage the auto/manual refresh switch",
	Long: `Show or change how ingestion is triggered. In auto mode a refresh is due
once the configured interval has elapsed; in manual mode ingestion only
runs when asked.

Examples:
  chanrag refresh status
  chanrag refresh set auto --interval 7
  chanrag refresh toggle
  chanrag refresh run .`,
}

var refreshStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the refresh mode and last refresh time",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, st, err := openRefresh()
		if err != nil {
			return err
		}
		defer st.Close()

		state, err := manager.State()
		if err != nil {
			return err
		}
		fmt.Printf("Mode:          %s\n", state.Mode)
		fmt.Printf("Interval:      %d day(s)\n", state.IntervalDays)
		if state.LastRefresh.IsZero() {
			fmt.Println("Last refresh:  never")
		} else {
			fmt.Printf("Last refresh:  %s\n", state.LastRefresh.Format(time.RFC3339))
		}
		if state.Mode == usecase.RefreshAuto {
			due, err := manager.ShouldRefresh(time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("Refresh due:   %v\n", due)
		}
		return nil
	},
}

var refreshSetCmd = &cobra.Command{
	Use:   "set <auto|manual>",
	Short: "Set the refresh mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, st, err := openRefresh()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := manager.SetMode(args[0], refreshInterval); err != nil {
			return err
		}
		fmt.Printf("Refresh mode set to %s\n", args[0])
		return nil
	},
}

var refreshToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Flip between auto and manual refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, st, err := openRefresh()
		if err != nil {
			return err
		}
		defer st.Close()

		mode, err := manager.Toggle()
		if err != nil {
			return err
		}
		fmt.Printf("Refresh mode set to %s\n", mode)
		return nil
	},
}

var refreshRunCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run an ingestion pass if one is due",
	Long: `Check whether an automatic refresh is due and, if so, run a full
ingestion pass. In manual mode this always ingests.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, st, err := openRefresh()
		if err != nil {
			return err
		}
		defer st.Close()

		state, err := manager.State()
		if err != nil {
			return err
		}
		if state.Mode == usecase.RefreshAuto {
			due, err := manager.ShouldRefresh(time.Now())
			if err != nil {
				return err
			}
			if !due {
				fmt.Println("Refresh not due yet.")
				return nil
			}
		}

		path := GetDataDir()
		if len(args) > 0 {
			path = args[0]
		}

		embedder, err := newEmbedder(GetConfig())
		if err != nil {
			return err
		}
		if _, err := clearIfModelChanged(st, embedder); err != nil {
			return err
		}
		result, err := runIngestion(cmd.Context(), st, embedder, path)
		if err != nil {
			return err
		}
		if err := st.SetModelInfo(store.ModelInfo{
			Name:      embedder.ModelName(),
			Dimension: embedder.Dimension(),
		}); err != nil {
			return err
		}
		if err := manager.MarkRefreshed(time.Now()); err != nil {
			return err
		}
		printIngestResult(result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.AddCommand(refreshStatusCmd)
	refreshCmd.AddCommand(refreshSetCmd)
	refreshCmd.AddCommand(refreshToggleCmd)
	refreshCmd.AddCommand(refreshRunCmd)
	refreshSetCmd.Flags().IntVar(&refreshInterval, "interval", 0, "refresh interval in days (auto mode)")
}

func openRefresh() (*usecase.RefreshManager, *store.BoltStore, error) {
	cfg := GetConfig()
	st, err := store.NewBoltStore(config.IndexDBPath(GetDataDir()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open index store: %w", err)
	}
	manager, err := usecase.NewRefreshManager(st, cfg.Refresh.Mode, cfg.Refresh.IntervalDays)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return manager, st, nil
}
