// Package imagefile decodes image files into pixels for signature computation.
package imagefile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsSupported reports whether the file extension is one of the decodable formats.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load opens and decodes an image file.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an in-memory image.
func Decode(data []byte) (image.Image, error) {
	return decode(bytes.NewReader(data))
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fingerprint.ErrInvalidImage, err)
	}
	return img, nil
}

// PathSource loads the pixels of collection images by looking up their
// file path.
type PathSource struct {
	collection database.CollectionReader
	root       string
}

// NewPathSource creates a source resolving image paths through collection.
// Relative paths are resolved against root.
func NewPathSource(collection database.CollectionReader, root string) *PathSource {
	return &PathSource{collection: collection, root: root}
}

// Image returns the decoded pixels of an image. An image unknown to the
// collection yields an error wrapping fs.ErrNotExist.
func (s *PathSource) Image(ctx context.Context, imageID int64) (image.Image, error) {
	path, err := s.collection.ImagePath(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("image %d: %w", imageID, fs.ErrNotExist)
	}
	if !filepath.IsAbs(path) && s.root != "" {
		path = filepath.Join(s.root, path)
	}
	return Load(path)
}
