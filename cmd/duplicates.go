package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/search"
)

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates [album-id...]",
	Short: "Find groups of duplicate images",
	Long: `Cluster images whose signature score reaches --threshold into duplicate
groups. Links are symmetric and transitive: if A matches B and B matches C,
all three end up in one group. The first (lowest) image ID of a group is its
reference image.

Candidates are the images of the given albums, or the images given with
--image. Press Ctrl-C to stop early and print the groups found so far.

Examples:
  # Duplicates within two albums
  photo-dupes duplicates 3 7

  # Lower threshold, hand-drawn weights
  photo-dupes duplicates 3 --threshold 0.8 --sketch

  # Store the groups as duplicate albums, replacing earlier runs
  photo-dupes duplicates 3 7 --save

  # Explicit image IDs
  photo-dupes duplicates --image 10,11,12`,
	RunE: runDuplicates,
}

func init() {
	rootCmd.AddCommand(duplicatesCmd)

	duplicatesCmd.Flags().Float64("threshold", 0.9, "Minimum score linking two images, 0..1 (default from SIMILARITY_THRESHOLD)")
	duplicatesCmd.Flags().Bool("sketch", false, "Use the weights for hand-drawn images")
	duplicatesCmd.Flags().Int64Slice("image", nil, "Candidate image IDs instead of albums")
	duplicatesCmd.Flags().Bool("save", false, "Store the groups as duplicate albums (albums only)")
	duplicatesCmd.Flags().Bool("json", false, "Output as JSON")
}

// DuplicatesOutput represents the JSON output of a duplicates run
type DuplicatesOutput struct {
	RunID      string                    `json:"run_id"`
	Threshold  float64                   `json:"threshold"`
	Candidates int                       `json:"candidates"`
	Scanned    int                       `json:"scanned"`
	Cancelled  bool                      `json:"cancelled,omitempty"`
	Groups     []database.DuplicateGroup `json:"groups"`
	Albums     []database.DuplicateAlbum `json:"albums,omitempty"`
	Skipped    []int64                   `json:"skipped,omitempty"`
}

func runDuplicates(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	imageIDs := mustGetInt64Slice(cmd, "image")
	save := mustGetBool(cmd, "save")
	jsonOutput := mustGetBool(cmd, "json")

	albumIDs, err := parseIDs(args)
	if err != nil {
		return err
	}
	switch {
	case len(albumIDs) > 0 && len(imageIDs) > 0:
		return errors.New("use either album IDs or --image, not both")
	case len(albumIDs) == 0 && len(imageIDs) == 0:
		return errors.New("requires album IDs or --image")
	case save && len(albumIDs) == 0:
		return errors.New("--save requires album IDs")
	}

	deps, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	threshold, _, sketch, err := similarityFlags(cmd, &deps.cfg.Similarity)
	if err != nil {
		return err
	}

	var progress search.Progress = search.NoProgress
	var bar *barProgress
	if !jsonOutput {
		bar = newBarProgress("Comparing signatures", "images")
		progress = bar
	}

	var (
		result *search.DuplicateResult
		albums []database.DuplicateAlbum
	)
	switch {
	case save:
		result, albums, err = deps.engine.RebuildDuplicatesAlbums(ctx, albumIDs, threshold, sketch, progress)
	case len(albumIDs) > 0:
		result, err = deps.engine.FindDuplicatesInAlbums(ctx, albumIDs, threshold, sketch, progress)
	default:
		result, err = deps.engine.FindDuplicates(ctx, imageIDs, threshold, sketch, progress)
	}
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	skipped := make([]int64, len(result.Skipped))
	for i, s := range result.Skipped {
		skipped[i] = s.ImageID
	}

	if jsonOutput {
		return outputJSON(DuplicatesOutput{
			RunID:      result.RunID,
			Threshold:  threshold,
			Candidates: result.Candidates,
			Scanned:    result.Scanned,
			Cancelled:  result.Cancelled,
			Groups:     result.Groups,
			Albums:     albums,
			Skipped:    skipped,
		})
	}

	fmt.Println()
	if result.Cancelled {
		fmt.Printf("Interrupted after %d of %d images, groups below cover the scanned images only.\n",
			result.Scanned, result.Candidates)
	}
	if len(result.Groups) == 0 {
		fmt.Printf("No duplicates found among %d images (threshold %.2f).\n", result.Candidates, threshold)
	}
	for i, group := range result.Groups {
		fmt.Printf("Group %d (%d images):\n", i+1, len(group.ImageIDs))
		for _, id := range group.ImageIDs {
			path, _ := deps.collection.ImagePath(ctx, id)
			marker := " "
			if id == group.Reference() {
				marker = "*"
			}
			fmt.Printf("  %s %d\t%s\n", marker, id, path)
		}
	}
	if len(skipped) > 0 {
		fmt.Printf("\n%d images could not be read: %v\n", len(skipped), skipped)
	}
	if save && !result.Cancelled {
		fmt.Printf("\nStored %d duplicate albums (run %s)\n", len(albums), result.RunID)
	}
	return nil
}
