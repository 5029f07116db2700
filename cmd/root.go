package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "photo-dupes",
	Short: "Find similar and duplicate images using Haar wavelet signatures",
	Long: `Photo Dupes computes a compact Haar wavelet signature for every image of a
collection and uses it to find visually similar images and groups of
duplicates, even when they were resized, recompressed or slightly edited.

Signatures are stored in PostgreSQL when DATABASE_URL is set, otherwise in a
local SQLite database. Albums can come from the built-in collection (see
'import') or from a digiKam MariaDB database (COLLECTION_DATABASE_URL).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log skipped records and run summaries to stderr")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
