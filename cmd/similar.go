package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/search"
)

var similarCmd = &cobra.Command{
	Use:   "similar [image-id]",
	Short: "Find images similar to an image, a file or a signature",
	Long: `Find the best matching images by Haar signature score (1.0 = identical).

Exactly one query is used: a stored image ID, --file or --signature.
With --min-score, every image reaching the score is listed instead of the
best --limit ones.

Examples:
  # Best matches of a stored image
  photo-dupes similar 42

  # Query by a file that is not indexed
  photo-dupes similar --file ./query.jpg --limit 5

  # Query by a signature printed by 'photo-dupes signature'
  photo-dupes similar --signature haar1:SFMB...

  # Everything scoring at least 0.85, using hand-drawn weights
  photo-dupes similar 42 --min-score 0.85 --sketch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().Int("limit", 20, "Maximum number of results (default from SIMILARITY_LIMIT)")
	similarCmd.Flags().Float64("min-score", 0, "List every image scoring at least this value (image ID queries only)")
	similarCmd.Flags().Bool("sketch", false, "Use the weights for hand-drawn queries")
	similarCmd.Flags().String("file", "", "Query by an image file")
	similarCmd.Flags().String("signature", "", "Query by a text signature")
	similarCmd.Flags().Bool("json", false, "Output as JSON")
}

// SimilarOutput represents the JSON output of a similarity query
type SimilarOutput struct {
	Query   string         `json:"query"`
	Results []search.Match `json:"results"`
	Count   int            `json:"count"`
	Skipped int            `json:"skipped,omitempty"`
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	file := mustGetString(cmd, "file")
	signature := mustGetString(cmd, "signature")
	jsonOutput := mustGetBool(cmd, "json")

	minScore, err := scoreFlag(cmd, "min-score")
	if err != nil {
		return err
	}

	queries := len(args)
	if file != "" {
		queries++
	}
	if signature != "" {
		queries++
	}
	if queries != 1 {
		return errors.New("requires exactly one of an image ID, --file or --signature")
	}

	deps, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	_, limit, sketch, err := similarityFlags(cmd, &deps.cfg.Similarity)
	if err != nil {
		return err
	}

	var (
		res   *search.QueryResult
		query string
	)
	switch {
	case file != "":
		query = file
		res, err = deps.engine.BestMatchesForFile(ctx, file, limit, sketch)
	case signature != "":
		query = "signature"
		res, err = deps.engine.BestMatchesForSignature(ctx, signature, limit, sketch)
	default:
		ids, perr := parseIDs(args)
		if perr != nil {
			return perr
		}
		query = fmt.Sprintf("image %d", ids[0])
		if minScore > 0 {
			res, err = deps.engine.BestMatchesForImageWithThreshold(ctx, ids[0], minScore, sketch)
		} else {
			res, err = deps.engine.BestMatchesForImage(ctx, ids[0], limit, sketch)
		}
	}
	if errors.Is(err, search.ErrNoSignature) {
		return fmt.Errorf("%w (run 'photo-dupes index' first)", err)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(SimilarOutput{
			Query:   query,
			Results: res.Matches,
			Count:   len(res.Matches),
			Skipped: len(res.Report.Skipped),
		})
	}

	if len(res.Matches) == 0 {
		fmt.Println("No similar images found.")
		return nil
	}

	fmt.Printf("Best matches for %s:\n\n", query)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE ID\tSCORE\tPATH")
	for _, m := range res.Matches {
		path, _ := deps.collection.ImagePath(ctx, m.ImageID)
		fmt.Fprintf(w, "%d\t%.4f\t%s\n", m.ImageID, m.Score, path)
	}
	w.Flush()

	if n := len(res.Report.Skipped); n > 0 {
		fmt.Printf("\n%d unreadable signatures were skipped\n", n)
	}
	if n := res.Report.Incompatible; n > 0 {
		fmt.Printf("%d signatures with other parameters were skipped (re-index with --rebuild)\n", n)
	}
	return nil
}
