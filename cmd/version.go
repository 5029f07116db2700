package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		p := fingerprint.DefaultParams
		fmt.Printf("photo-dupes %s\n", Version)
		fmt.Printf("  Commit:    %s\n", CommitSHA)
		fmt.Printf("  Built:     %s\n", BuildDate)
		fmt.Printf("  Signature: v%d, %dx%d grid, %d coefficients\n", p.Version, p.Grid, p.Grid, p.NumCoefs)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
