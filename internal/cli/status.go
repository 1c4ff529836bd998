package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"chanrag/config"
	"chanrag/internal/adapter/store"
	"chanrag/internal/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := config.IndexDBPath(GetDataDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No index found. Run 'chanrag ingest' first.")
		return nil
	}

	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer st.Close()

	videos, err := st.Videos()
	if err != nil {
		return err
	}
	units, err := st.Count()
	if err != nil {
		return err
	}

	var missing int
	for _, v := range videos {
		ids, err := st.LookupByFilter(domain.Filters{VideoIDs: []string{v.ID}})
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			missing++
		}
	}

	fmt.Printf("Index: %s\n", dbPath)
	fmt.Printf("  Videos:              %d\n", len(videos))
	if missing > 0 {
		fmt.Printf("  Missing transcripts: %d\n", missing)
	}
	fmt.Printf("  Units:               %d\n", units)

	if info, ok, err := st.ModelInfo(); err == nil && ok {
		fmt.Printf("  Model:               %s (dimension %d)\n", info.Name, info.Dimension)
	}
	if state, ok, err := st.RefreshState(); err == nil && ok {
		fmt.Printf("  Refresh mode:        %s\n", state.Mode)
	}
	return nil
}
