package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/imagefile"
)

var importCmd = &cobra.Command{
	Use:   "import <album-name> <directory>",
	Short: "Register the images of a directory as an album",
	Long: `Walk a directory recursively and register every supported image
(JPEG, PNG, GIF, BMP, TIFF, WebP) in the named album of the built-in
collection. Images already registered keep their ID.

Examples:
  # Import a directory
  photo-dupes import holiday ~/Pictures/2024-holiday

  # Import and compute signatures right away
  photo-dupes import holiday ~/Pictures/2024-holiday --index`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("index", false, "Compute signatures for the imported images")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	index := mustGetBool(cmd, "index")
	albumName, dir := args[0], args[1]

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	deps, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	importer, err := deps.requireImporter()
	if err != nil {
		return err
	}

	albumID, err := importer.EnsureAlbum(ctx, albumName)
	if err != nil {
		return fmt.Errorf("failed to create album: %w", err)
	}

	var imported, indexed, failed int
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imagefile.IsSupported(path) {
			return nil
		}

		imageID, err := importer.AddImage(ctx, albumID, path)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", path, err)
		}
		imported++

		if index {
			if _, err := deps.engine.IndexImageFile(ctx, imageID, path); err != nil {
				fmt.Printf("Warning: %s: %v\n", path, err)
				failed++
				return nil
			}
			indexed++
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Album %q (ID %d): %d images registered\n", albumName, albumID, imported)
	if index {
		fmt.Printf("Signatures: %d computed, %d failed\n", indexed, failed)
	}
	return nil
}
