//go:build integration

package mariadb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// digikamSchema is the subset of the digiKam collection schema the
// collection reads and writes.
var digikamSchema = []string{
	`CREATE TABLE AlbumRoots (
		id INT PRIMARY KEY AUTO_INCREMENT,
		label LONGTEXT,
		specificPath LONGTEXT
	)`,
	`CREATE TABLE Albums (
		id INT PRIMARY KEY AUTO_INCREMENT,
		albumRoot INT NOT NULL,
		relativePath LONGTEXT NOT NULL
	)`,
	`CREATE TABLE Images (
		id INT PRIMARY KEY AUTO_INCREMENT,
		album INT,
		name LONGTEXT NOT NULL,
		status INT NOT NULL
	)`,
	`CREATE TABLE Searches (
		id INT PRIMARY KEY AUTO_INCREMENT,
		type INT,
		name LONGTEXT NOT NULL,
		query LONGTEXT NOT NULL,
		modificationDate DATETIME
	)`,
}

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "root",
			"MARIADB_DATABASE":      "digikam",
			"MARIADB_USER":          "test",
			"MARIADB_PASSWORD":      "test",
		},
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("test:test@tcp(%s:%s)/digikam", host, port.Port())

	// The server may still be finishing its startup when the log line appears
	var pool *Pool
	for attempt := 0; attempt < 10; attempt++ {
		pool, err = NewPool(dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	for _, stmt := range digikamSchema {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			pool.Close()
			container.Terminate(ctx)
			t.Fatalf("Failed to create schema: %v", err)
		}
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func seedCollection(t *testing.T, pool *Pool) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO AlbumRoots (id, label, specificPath) VALUES (1, 'Pictures', '/home/user/Pictures')`,
		`INSERT INTO Albums (id, albumRoot, relativePath) VALUES (2, 1, '/2024/Holiday'), (9, 1, '/')`,
		`INSERT INTO Images (id, album, name, status) VALUES
			(10, 2, 'beach.jpg', 1),
			(11, 2, 'beach-copy.jpg', 1),
			(12, 2, 'removed.jpg', 3),
			(20, 9, 'cat.png', 1)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("Failed to seed collection: %v", err)
		}
	}
}

type storedSearch struct {
	id    int64
	name  string
	query duplicatesQuery
}

func duplicateSearches(t *testing.T, pool *Pool) []storedSearch {
	t.Helper()

	rows, err := pool.db.QueryContext(context.Background(),
		"SELECT id, name, query FROM Searches WHERE type = ? ORDER BY id", duplicatesSearchType)
	if err != nil {
		t.Fatalf("Failed to query searches: %v", err)
	}
	defer rows.Close()

	var searches []storedSearch
	for rows.Next() {
		var (
			s    storedSearch
			data string
		)
		if err := rows.Scan(&s.id, &s.name, &data); err != nil {
			t.Fatalf("Failed to scan search: %v", err)
		}
		if err := json.Unmarshal([]byte(data), &s.query); err != nil {
			t.Fatalf("Search %d holds invalid JSON %q: %v", s.id, data, err)
		}
		searches = append(searches, s)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Failed to iterate searches: %v", err)
	}
	return searches
}

func TestCollection(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	seedCollection(t, pool)
	coll := NewCollection(pool)
	ctx := context.Background()

	t.Run("AlbumImageIDs", func(t *testing.T) {
		ids, err := coll.AlbumImageIDs(ctx, []int64{9, 2})
		if err != nil {
			t.Fatalf("AlbumImageIDs failed: %v", err)
		}
		if want := []int64{10, 11, 20}; !slices.Equal(ids, want) {
			t.Errorf("Expected %v, got %v", want, ids)
		}

		ids, err = coll.AlbumImageIDs(ctx, nil)
		if err != nil {
			t.Fatalf("AlbumImageIDs failed: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("Expected no images, got %v", ids)
		}
	})

	t.Run("ImagePath", func(t *testing.T) {
		path, err := coll.ImagePath(ctx, 11)
		if err != nil {
			t.Fatalf("ImagePath failed: %v", err)
		}
		if path != "/home/user/Pictures/2024/Holiday/beach-copy.jpg" {
			t.Errorf("Unexpected path %q", path)
		}

		path, err = coll.ImagePath(ctx, 999)
		if err != nil {
			t.Fatalf("ImagePath failed: %v", err)
		}
		if path != "" {
			t.Errorf("Expected empty path for unknown image, got %q", path)
		}
	})
}

func TestReplaceDuplicateAlbums(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	coll := NewCollection(pool)
	ctx := context.Background()

	// Saved searches of other types are never touched
	if _, err := pool.db.ExecContext(ctx,
		`INSERT INTO Searches (type, name, query) VALUES (1, 'Duplicates [2,9] manual', '{}')`); err != nil {
		t.Fatalf("Failed to insert keyword search: %v", err)
	}

	groups := []database.DuplicateGroup{
		{ImageIDs: []int64{10, 11}},
		{ImageIDs: []int64{20, 21, 22}},
	}

	t.Run("FirstRun", func(t *testing.T) {
		albums, err := coll.ReplaceDuplicateAlbums(ctx, []int64{9, 2, 9}, groups)
		if err != nil {
			t.Fatalf("ReplaceDuplicateAlbums failed: %v", err)
		}
		if len(albums) != 2 {
			t.Fatalf("Expected 2 albums, got %d", len(albums))
		}
		if albums[0].ID == 0 || albums[0].ID == albums[1].ID {
			t.Errorf("Expected distinct search ids, got %d and %d", albums[0].ID, albums[1].ID)
		}
		if albums[0].UID == albums[1].UID {
			t.Error("Expected distinct UIDs")
		}
		if albums[0].ReferenceImageID != 10 || albums[1].ReferenceImageID != 20 {
			t.Errorf("Unexpected references %d, %d", albums[0].ReferenceImageID, albums[1].ReferenceImageID)
		}
		if !slices.Equal(albums[0].SourceAlbumIDs, []int64{2, 9}) {
			t.Errorf("Expected normalized sources [2 9], got %v", albums[0].SourceAlbumIDs)
		}

		searches := duplicateSearches(t, pool)
		if len(searches) != 2 {
			t.Fatalf("Expected 2 duplicate searches, got %d", len(searches))
		}
		if searches[0].name != "Duplicates [2,9] 10" {
			t.Errorf("Unexpected search name %q", searches[0].name)
		}
		got := searches[1].query
		if got.UID != albums[1].UID || got.ReferenceImage != 20 ||
			!slices.Equal(got.ImageIDs, []int64{20, 21, 22}) || !slices.Equal(got.SourceAlbums, []int64{2, 9}) {
			t.Errorf("Unexpected stored query %+v", got)
		}
	})

	t.Run("OtherSourcesKept", func(t *testing.T) {
		_, err := coll.ReplaceDuplicateAlbums(ctx, []int64{2}, []database.DuplicateGroup{{ImageIDs: []int64{30, 31}}})
		if err != nil {
			t.Fatalf("ReplaceDuplicateAlbums failed: %v", err)
		}
		if n := len(duplicateSearches(t, pool)); n != 3 {
			t.Errorf("Expected 3 duplicate searches, got %d", n)
		}
	})

	t.Run("RerunReplaces", func(t *testing.T) {
		albums, err := coll.ReplaceDuplicateAlbums(ctx, []int64{2, 9}, groups[:1])
		if err != nil {
			t.Fatalf("ReplaceDuplicateAlbums failed: %v", err)
		}
		if len(albums) != 1 {
			t.Fatalf("Expected 1 album, got %d", len(albums))
		}

		searches := duplicateSearches(t, pool)
		if len(searches) != 2 {
			t.Fatalf("Expected 2 duplicate searches, got %d", len(searches))
		}
		if !slices.Equal(searches[0].query.SourceAlbums, []int64{2}) {
			t.Errorf("Search of source [2] should be kept, got %+v", searches[0].query)
		}
		if searches[1].id != albums[0].ID || !slices.Equal(searches[1].query.ImageIDs, []int64{10, 11}) {
			t.Errorf("Unexpected replacement search %+v", searches[1])
		}

		var manual int
		if err := pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Searches WHERE type = 1").Scan(&manual); err != nil {
			t.Fatalf("Failed to count searches: %v", err)
		}
		if manual != 1 {
			t.Errorf("Keyword search should be kept, got %d", manual)
		}
	})

	t.Run("EmptyGroupsClear", func(t *testing.T) {
		albums, err := coll.ReplaceDuplicateAlbums(ctx, []int64{9, 2}, nil)
		if err != nil {
			t.Fatalf("ReplaceDuplicateAlbums failed: %v", err)
		}
		if len(albums) != 0 {
			t.Errorf("Expected no albums, got %d", len(albums))
		}
		if n := len(duplicateSearches(t, pool)); n != 1 {
			t.Errorf("Expected only the search of source [2], got %d", n)
		}
	})
}
