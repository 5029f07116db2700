package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
	"github.com/kozaktomas/photo-dupes/internal/imagefile"
)

var signatureCmd = &cobra.Command{
	Use:   "signature [image-id]",
	Short: "Print the text signature of an image",
	Long: `Print the single-line text form of a stored signature, or of an image
file with --file. The text can be passed to 'photo-dupes similar --signature'.

Examples:
  photo-dupes signature 42
  photo-dupes signature --file ./cat.jpg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignature,
}

func init() {
	rootCmd.AddCommand(signatureCmd)

	signatureCmd.Flags().String("file", "", "Compute the signature of an image file without storing it")
}

func runSignature(cmd *cobra.Command, args []string) error {
	file := mustGetString(cmd, "file")

	if file != "" {
		img, err := imagefile.Load(file)
		if err != nil {
			return err
		}
		sig, err := fingerprint.DefaultCodec().Compute(img)
		if err != nil {
			return err
		}
		text, err := fingerprint.EncodeText(sig)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("requires an image ID or --file")
	}

	ctx := context.Background()
	deps, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	text, err := deps.engine.SignatureText(ctx, ids[0])
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
