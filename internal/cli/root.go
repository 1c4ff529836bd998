package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"chanrag/config"
)

var (
	cfgFile string
	cfg     *config.Config
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "chanrag",
	Short: "Channel retrieval core - index video transcripts and answer questions over them",
	Long: `chanrag ingests a channel's video transcripts into timestamped units,
indexes them with vector embeddings and entity postings, and answers
questions with citation-backed excerpts.

Example usage:
  chanrag ingest ./data          # Index transcripts from a directory
  chanrag query -q "how does X work?"
  chanrag status                 # Show index state`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if dataDir == "" {
			dataDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(dataDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <dir>/chanrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "dir", "d", "", "data directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetDataDir() string {
	return dataDir
}
