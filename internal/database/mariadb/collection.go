package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-dupes/internal/database"
)

// duplicatesSearchType is the Searches.type value of duplicate result sets
// in a digiKam collection database.
const duplicatesSearchType = 6

// duplicatesQuery is the JSON stored in Searches.query for a duplicate album.
type duplicatesQuery struct {
	UID            string  `json:"uid"`
	ReferenceImage int64   `json:"reference_image"`
	ImageIDs       []int64 `json:"image_ids"`
	SourceAlbums   []int64 `json:"source_albums"`
}

// Collection reads a digiKam style collection (Images, Albums, AlbumRoots)
// and stores duplicate groups as saved searches.
type Collection struct {
	pool *Pool
}

var _ database.CollectionWriter = (*Collection)(nil)

// NewCollection creates a collection over a MariaDB pool.
func NewCollection(pool *Pool) *Collection {
	return &Collection{pool: pool}
}

// AlbumImageIDs returns the sorted, distinct image IDs of the given albums.
// Images marked as removed (status 3) are skipped.
func (c *Collection) AlbumImageIDs(ctx context.Context, albumIDs []int64) ([]int64, error) {
	if len(albumIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(albumIDs)), ",")
	args := make([]any, len(albumIDs))
	for i, id := range albumIDs {
		args[i] = id
	}

	query := `
		SELECT DISTINCT id FROM Images
		WHERE album IN (` + placeholders + `) AND status <> 3
		ORDER BY id
	`
	rows, err := c.pool.db.QueryContext(ctx, query, args...)
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
func (c *Collection) ImagePath(ctx context.Context, imageID int64) (string, error) {
	query := `
		SELECT r.specificPath, a.relativePath, i.name
		FROM Images i
		JOIN Albums a ON a.id = i.album
		JOIN AlbumRoots r ON r.id = a.albumRoot
		WHERE i.id = ?
	`
	var root, relative, name string
	err := c.pool.db.QueryRowContext(ctx, query, imageID).Scan(&root, &relative, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", database.WrapError(fmt.Sprintf("get image path %d", imageID), err)
	}
	return imagePath(root, relative, name), nil
}

// ReplaceDuplicateAlbums deletes the duplicate searches of the same source
// albums and saves one search per group.
func (c *Collection) ReplaceDuplicateAlbums(ctx context.Context, sourceAlbumIDs []int64, groups []database.DuplicateGroup) ([]database.DuplicateAlbum, error) {
	sources := database.NormalizeIDs(sourceAlbumIDs)
	prefix := searchPrefix(sources)

	tx, err := c.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapError("begin replace duplicate searches", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DELETE FROM Searches WHERE type = ? AND name LIKE ?`,
		duplicatesSearchType, prefix+"%")
	if err != nil {
		return nil, database.WrapError("delete duplicate searches", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	albums := make([]database.DuplicateAlbum, 0, len(groups))
	for _, group := range groups {
		album := database.DuplicateAlbum{
			UID:              uuid.NewString(),
			ReferenceImageID: group.Reference(),
			ImageIDs:         group.ImageIDs,
			SourceAlbumIDs:   sources,
			CreatedAt:        now,
		}
		data, err := json.Marshal(duplicatesQuery{
			UID:            album.UID,
			ReferenceImage: album.ReferenceImageID,
			ImageIDs:       album.ImageIDs,
			SourceAlbums:   sources,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal duplicates query: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO Searches (type, name, query, modificationDate) VALUES (?, ?, ?, ?)`,
			duplicatesSearchType, prefix+strconv.FormatInt(album.ReferenceImageID, 10), string(data), now)
		if err != nil {
			return nil, database.WrapError("insert duplicate search", err)
		}
		if album.ID, err = res.LastInsertId(); err != nil {
			return nil, database.WrapError("duplicate search id", err)
		}
		albums = append(albums, album)
	}

	if err := tx.Commit(); err != nil {
		return nil, database.WrapError("commit duplicate searches", err)
	}
	return albums, nil
}

// imagePath joins an album root, the album path relative to it and a file name.
func imagePath(root, relative, name string) string {
	return path.Join(root, relative, name)
}

// searchPrefix names the duplicate searches built from a set of source
// albums, e.g. "Duplicates [2,9] ".
func searchPrefix(sources []int64) string {
	parts := make([]string, len(sources))
	for i, id := range sources {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "Duplicates [" + strings.Join(parts, ",") + "] "
}
