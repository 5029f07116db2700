package database

import (
	"slices"
	"time"

	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// StoredSignature represents a signature stored in the database
type StoredSignature struct {
	ImageID   int64
	Signature *fingerprint.Signature
	UpdatedAt time.Time
}

// DuplicateGroup is a set of images linked by pairwise similarity.
// ImageIDs are sorted ascending.
type DuplicateGroup struct {
	ImageIDs []int64 `json:"image_ids"`
}

// Reference returns the image the group is named after (its lowest id).
func (g DuplicateGroup) Reference() int64 {
	if len(g.ImageIDs) == 0 {
		return 0
	}
	return g.ImageIDs[0]
}

// DuplicateAlbum is a duplicate group persisted as a synthetic album
type DuplicateAlbum struct {
	ID               int64     `json:"id"`
	UID              string    `json:"uid"`
	ReferenceImageID int64     `json:"reference_image_id"`
	ImageIDs         []int64   `json:"image_ids"`
	SourceAlbumIDs   []int64   `json:"source_album_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// NormalizeIDs returns a sorted copy of ids without duplicates.
func NormalizeIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
