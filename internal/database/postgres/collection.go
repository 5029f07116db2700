package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/lib/pq"
)

// CollectionRepository provides the PostgreSQL-backed image collection
type CollectionRepository struct {
	pool *Pool
}

var _ database.CollectionImporter = (*CollectionRepository)(nil)

// NewCollectionRepository creates a new PostgreSQL collection repository
func NewCollectionRepository(pool *Pool) *CollectionRepository {
	return &CollectionRepository{pool: pool}
}

// AlbumImageIDs returns the sorted, distinct image IDs of the given albums
func (r *CollectionRepository) AlbumImageIDs(ctx context.Context, albumIDs []int64) ([]int64, error) {
	if len(albumIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT image_id
		FROM album_images
		WHERE album_id = ANY($1)
		ORDER BY image_id
	`
	rows, err := r.pool.Query(ctx, query, pq.Array(albumIDs))
	if err != nil {
		return nil, database.WrapError("query album images", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, database.WrapError("scan album image", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("iterate album images", err)
	}
	return ids, nil
}

// ImagePath returns the file path of an image, empty if unknown
func (r *CollectionRepository) ImagePath(ctx context.Context, imageID int64) (string, error) {
	var path string
	err := r.pool.QueryRow(ctx, "SELECT path FROM images WHERE id = $1", imageID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", database.WrapError(fmt.Sprintf("get image path %d", imageID), err)
	}
	return path, nil
}

// EnsureAlbum returns the ID of the named album, creating it if needed
func (r *CollectionRepository) EnsureAlbum(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO albums (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	var id int64
	if err := r.pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, database.WrapError(fmt.Sprintf("ensure album %q", name), err)
	}
	return id, nil
}

// AddImage registers an image path in an album and returns the image ID
func (r *CollectionRepository) AddImage(ctx context.Context, albumID int64, path string) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.WrapError("begin add image", err)
	}
	defer tx.Rollback()

	var imageID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO images (path) VALUES ($1)
		ON CONFLICT (path) DO UPDATE SET path = EXCLUDED.path
		RETURNING id
	`, path).Scan(&imageID)
	if err != nil {
		return 0, database.WrapError(fmt.Sprintf("insert image %q", path), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO album_images (album_id, image_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, albumID, imageID)
	if err != nil {
		return 0, database.WrapError(fmt.Sprintf("link image %d to album %d", imageID, albumID), err)
	}

	if err := tx.Commit(); err != nil {
		return 0, database.WrapError("commit add image", err)
	}
	return imageID, nil
}

// ReplaceDuplicateAlbums drops the duplicate albums previously built from
// the same source albums and stores one album per group, in one transaction.
func (r *CollectionRepository) ReplaceDuplicateAlbums(ctx context.Context, sourceAlbumIDs []int64, groups []database.DuplicateGroup) ([]database.DuplicateAlbum, error) {
	sources := database.NormalizeIDs(sourceAlbumIDs)
	if sources == nil {
		sources = []int64{}
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapError("begin replace duplicate albums", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM duplicate_albums WHERE source_albums = $1", pq.Array(sources)); err != nil {
		return nil, database.WrapError("delete duplicate albums", err)
	}

	albums := make([]database.DuplicateAlbum, 0, len(groups))
	for _, group := range groups {
		album := database.DuplicateAlbum{
			UID:              uuid.NewString(),
			ReferenceImageID: group.Reference(),
			ImageIDs:         group.ImageIDs,
			SourceAlbumIDs:   sources,
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO duplicate_albums (uid, reference_image_id, source_albums)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, album.UID, album.ReferenceImageID, pq.Array(sources)).Scan(&album.ID, &album.CreatedAt)
		if err != nil {
			return nil, database.WrapError("insert duplicate album", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO duplicate_album_images (duplicate_album_id, image_id)
			SELECT $1, unnest($2::bigint[])
		`, album.ID, pq.Array(group.ImageIDs))
		if err != nil {
			return nil, database.WrapError(fmt.Sprintf("insert images of duplicate album %d", album.ID), err)
		}
		albums = append(albums, album)
	}

	if err := tx.Commit(); err != nil {
		return nil, database.WrapError("commit duplicate albums", err)
	}
	return albums, nil
}
