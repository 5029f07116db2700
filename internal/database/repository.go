package database

import (
	"context"
	"iter"

	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// SignatureReader provides read-only access to image signatures
type SignatureReader interface {
	// Get retrieves a signature by image ID, returns nil if not found
	Get(ctx context.Context, imageID int64) (*fingerprint.Signature, error)
	// Has checks if a signature exists for the given image ID
	Has(ctx context.Context, imageID int64) (bool, error)
	// Count returns the total number of signatures stored
	Count(ctx context.Context) (int, error)
	// ScanAll lazily iterates every stored signature in ascending image ID order.
	// A record that cannot be decoded is yielded with its ImageID and an error,
	// and the scan continues. A failing query is yielded once with an error
	// matching ErrScanAborted and ends the scan.
	// Concurrent writes may or may not be observed.
	ScanAll(ctx context.Context) iter.Seq2[StoredSignature, error]
}

// SignatureWriter provides write access to image signatures
type SignatureWriter interface {
	SignatureReader

	// Put stores a signature, replacing any previous one for the image
	Put(ctx context.Context, imageID int64, sig *fingerprint.Signature) error
	// Delete removes the signature for an image
	Delete(ctx context.Context, imageID int64) error
}

// CollectionReader provides read-only access to the image collection
type CollectionReader interface {
	// AlbumImageIDs returns the sorted, distinct image IDs of the given albums
	AlbumImageIDs(ctx context.Context, albumIDs []int64) ([]int64, error)
	// ImagePath returns the file path of an image, empty if unknown
	ImagePath(ctx context.Context, imageID int64) (string, error)
}

// CollectionWriter provides write access to the image collection
type CollectionWriter interface {
	CollectionReader

	// ReplaceDuplicateAlbums drops the duplicate albums previously built from
	// sourceAlbumIDs and stores one album per group.
	ReplaceDuplicateAlbums(ctx context.Context, sourceAlbumIDs []int64, groups []DuplicateGroup) ([]DuplicateAlbum, error)
}

// CollectionImporter registers images and albums in a collection the
// application owns itself
type CollectionImporter interface {
	CollectionWriter

	// EnsureAlbum returns the ID of the album with the given name, creating it if needed
	EnsureAlbum(ctx context.Context, name string) (int64, error)
	// AddImage registers an image path in an album and returns the image ID.
	// A path registered before keeps its ID.
	AddImage(ctx context.Context, albumID int64, path string) (int64, error)
}
