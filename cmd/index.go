package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [album-id...]",
	Short: "Compute image signatures",
	Long: `Compute and store the Haar signature of images.

With album IDs, every image of the albums is processed; images that already
have a signature are skipped unless --rebuild is given. With --file and
--id a single file is indexed under the given image ID.

Examples:
  # Index new images of two albums
  photo-dupes index 3 7

  # Recompute every signature of an album
  photo-dupes index 3 --rebuild

  # Index one file
  photo-dupes index --file ./cat.jpg --id 42`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("rebuild", false, "Recompute signatures that already exist")
	indexCmd.Flags().String("file", "", "Index a single image file")
	indexCmd.Flags().Int64("id", 0, "Image ID for --file")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rebuild := mustGetBool(cmd, "rebuild")
	file := mustGetString(cmd, "file")
	imageID := mustGetInt64(cmd, "id")

	deps, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	if file != "" {
		if imageID <= 0 {
			return errors.New("--file requires a positive --id")
		}
		sig, err := deps.engine.IndexImageFile(ctx, imageID, file)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %s as image %d (%d/%d/%d coefficients)\n",
			file, imageID, len(sig.Coefs[0]), len(sig.Coefs[1]), len(sig.Coefs[2]))
		return nil
	}

	albumIDs, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(albumIDs) == 0 {
		return errors.New("requires album IDs or --file")
	}

	fmt.Printf("Using %s signature store\n", deps.backend)
	progress := newBarProgress("Computing signatures", "images")
	report, err := deps.engine.IndexAlbums(ctx, albumIDs, rebuild, progress)
	progress.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("\nImages: %d, indexed: %d, unchanged: %d, failed: %d\n",
		report.Total, report.Indexed, report.Unchanged, len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  image %d: %v\n", f.ImageID, f.Err)
	}
	if report.Cancelled {
		fmt.Println("Interrupted, remaining images were not indexed.")
	}
	return nil
}
