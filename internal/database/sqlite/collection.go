package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-dupes/internal/database"
)

// CollectionStore implements database.CollectionImporter.
type CollectionStore struct {
	store *Store
}

var _ database.CollectionImporter = (*CollectionStore)(nil)

// AlbumImageIDs returns the sorted, distinct image IDs of the given albums.
func (s *CollectionStore) AlbumImageIDs(ctx context.Context, albumIDs []int64) ([]int64, error) {
	if len(albumIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(albumIDs)), ",")
	args := make([]any, len(albumIDs))
	for i, id := range albumIDs {
		args[i] = id
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT DISTINCT image_id FROM album_images
		WHERE album_id IN (`+placeholders+`)
		ORDER BY image_id
	`, args...)
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

// ImagePath returns the file path of an image, empty if unknown.
func (s *CollectionStore) ImagePath(ctx context.Context, imageID int64) (string, error) {
	var path string
	err := s.store.db.QueryRowContext(ctx, "SELECT path FROM images WHERE id = ?", imageID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", database.WrapError(fmt.Sprintf("get image path %d", imageID), err)
	}
	return path, nil
}

// EnsureAlbum returns the ID of the named album, creating it if needed.
func (s *CollectionStore) EnsureAlbum(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO albums (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id
	`, name, time.Now().Unix()).Scan(&id)
	if err != nil {
		return 0, database.WrapError(fmt.Sprintf("ensure album %q", name), err)
	}
	return id, nil
}

// AddImage registers an image path in an album and returns the image ID.
func (s *CollectionStore) AddImage(ctx context.Context, albumID int64, path string) (int64, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.WrapError("begin add image", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var imageID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO images (path, created_at) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET path = excluded.path
		RETURNING id
	`, path, time.Now().Unix()).Scan(&imageID)
	if err != nil {
		return 0, database.WrapError(fmt.Sprintf("insert image %q", path), err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO album_images (album_id, image_id) VALUES (?, ?)", albumID, imageID); err != nil {
		return 0, database.WrapError(fmt.Sprintf("link image %d to album %d", imageID, albumID), err)
	}

	if err := tx.Commit(); err != nil {
		return 0, database.WrapError("commit add image", err)
	}
	return imageID, nil
}

// ReplaceDuplicateAlbums drops the duplicate albums previously built from
// the same source albums and stores one album per group.
func (s *CollectionStore) ReplaceDuplicateAlbums(ctx context.Context, sourceAlbumIDs []int64, groups []database.DuplicateGroup) ([]database.DuplicateAlbum, error) {
	sources := database.NormalizeIDs(sourceAlbumIDs)
	key := joinIDs(sources)

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapError("begin replace duplicate albums", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM duplicate_albums WHERE source_albums = ?", key); err != nil {
		return nil, database.WrapError("delete duplicate albums", err)
	}

	now := time.Now()
	albums := make([]database.DuplicateAlbum, 0, len(groups))
	for _, group := range groups {
		album := database.DuplicateAlbum{
			UID:              uuid.NewString(),
			ReferenceImageID: group.Reference(),
			ImageIDs:         group.ImageIDs,
			SourceAlbumIDs:   sources,
			CreatedAt:        now.Truncate(time.Second),
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO duplicate_albums (uid, reference_image_id, source_albums, created_at)
			VALUES (?, ?, ?, ?)
		`, album.UID, album.ReferenceImageID, key, now.Unix())
		if err != nil {
			return nil, database.WrapError("insert duplicate album", err)
		}
		if album.ID, err = res.LastInsertId(); err != nil {
			return nil, database.WrapError("duplicate album id", err)
		}

		for _, imageID := range group.ImageIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO duplicate_album_images (duplicate_album_id, image_id) VALUES (?, ?)",
				album.ID, imageID); err != nil {
				return nil, database.WrapError(fmt.Sprintf("insert images of duplicate album %d", album.ID), err)
			}
		}
		albums = append(albums, album)
	}

	if err := tx.Commit(); err != nil {
		return nil, database.WrapError("commit duplicate albums", err)
	}
	return albums, nil
}

// DuplicateAlbums returns the stored duplicate albums in creation order.
func (s *CollectionStore) DuplicateAlbums(ctx context.Context) ([]database.DuplicateAlbum, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT d.id, d.uid, d.reference_image_id, d.source_albums, d.created_at, i.image_id
		FROM duplicate_albums d
		JOIN duplicate_album_images i ON i.duplicate_album_id = d.id
		ORDER BY d.id, i.image_id
	`)
	if err != nil {
		return nil, database.WrapError("query duplicate albums", err)
	}
	defer rows.Close()

	var albums []database.DuplicateAlbum
	for rows.Next() {
		var (
			album     database.DuplicateAlbum
			sources   string
			createdAt int64
			imageID   int64
		)
		if err := rows.Scan(&album.ID, &album.UID, &album.ReferenceImageID, &sources, &createdAt, &imageID); err != nil {
			return nil, database.WrapError("scan duplicate album", err)
		}
		if n := len(albums); n > 0 && albums[n-1].ID == album.ID {
			albums[n-1].ImageIDs = append(albums[n-1].ImageIDs, imageID)
			continue
		}
		album.SourceAlbumIDs, err = splitIDs(sources)
		if err != nil {
			return nil, database.WrapError(fmt.Sprintf("parse sources of duplicate album %d", album.ID), err)
		}
		album.CreatedAt = time.Unix(createdAt, 0)
		album.ImageIDs = []int64{imageID}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("iterate duplicate albums", err)
	}
	return albums, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, len(parts))
	for i, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
