// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// MockSignatureStore is an in-memory implementation of database.SignatureWriter
type MockSignatureStore struct {
	mu         sync.RWMutex
	signatures map[int64]database.StoredSignature

	// Error injection
	GetError    error
	HasError    error
	CountError  error
	PutError    error
	DeleteError error
	ScanError   error // yielded once, ends the scan

	// Per-record error injection, keyed by image ID
	RecordGetErrors  map[int64]error
	RecordScanErrors map[int64]error

	// Puts counts successful Put calls
	Puts int
}

var _ database.SignatureWriter = (*MockSignatureStore)(nil)

// NewMockSignatureStore creates a new mock signature store
func NewMockSignatureStore() *MockSignatureStore {
	return &MockSignatureStore{
		signatures:       make(map[int64]database.StoredSignature),
		RecordGetErrors:  make(map[int64]error),
		RecordScanErrors: make(map[int64]error),
	}
}

// AddSignature adds a signature without going through Put
func (m *MockSignatureStore) AddSignature(imageID int64, sig *fingerprint.Signature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[imageID] = database.StoredSignature{
		ImageID:   imageID,
		Signature: sig.Clone(),
		UpdatedAt: time.Now(),
	}
}

// Get retrieves a signature by image ID
func (m *MockSignatureStore) Get(ctx context.Context, imageID int64) (*fingerprint.Signature, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.RecordGetErrors[imageID]; err != nil {
		return nil, err
	}
	stored, ok := m.signatures[imageID]
	if !ok {
		return nil, nil
	}
	return stored.Signature.Clone(), nil
}

// Has checks if a signature exists
func (m *MockSignatureStore) Has(ctx context.Context, imageID int64) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.signatures[imageID]
	return ok, nil
}

// Count returns the total number of signatures
func (m *MockSignatureStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signatures), nil
}

// ScanAll iterates the signatures in ascending image ID order. The lock is
// only held while reading single records, so concurrent puts are allowed.
func (m *MockSignatureStore) ScanAll(ctx context.Context) iter.Seq2[database.StoredSignature, error] {
	return func(yield func(database.StoredSignature, error) bool) {
		if m.ScanError != nil {
			yield(database.StoredSignature{}, database.AbortScan("scan signatures", m.ScanError))
			return
		}

		m.mu.RLock()
		ids := make([]int64, 0, len(m.signatures))
		for id := range m.signatures {
			ids = append(ids, id)
		}
		m.mu.RUnlock()
		slices.Sort(ids)

		for _, id := range ids {
			m.mu.RLock()
			stored, ok := m.signatures[id]
			recordErr := m.RecordScanErrors[id]
			m.mu.RUnlock()

			if recordErr != nil {
				if !yield(database.StoredSignature{ImageID: id}, recordErr) {
					return
				}
				continue
			}
			if !ok {
				continue
			}
			stored.Signature = stored.Signature.Clone()
			if !yield(stored, nil) {
				return
			}
		}
	}
}

// Put stores a signature
func (m *MockSignatureStore) Put(ctx context.Context, imageID int64, sig *fingerprint.Signature) error {
	if m.PutError != nil {
		return m.PutError
	}
	if sig == nil {
		return fmt.Errorf("put signature %d: nil signature", imageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[imageID] = database.StoredSignature{
		ImageID:   imageID,
		Signature: sig.Clone(),
		UpdatedAt: time.Now(),
	}
	m.Puts++
	return nil
}

// Delete removes a signature
func (m *MockSignatureStore) Delete(ctx context.Context, imageID int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signatures, imageID)
	return nil
}

// MockCollection is an in-memory implementation of database.CollectionImporter
type MockCollection struct {
	mu              sync.RWMutex
	albums          map[int64][]int64
	paths           map[int64]string
	albumNames      map[string]int64
	duplicateAlbums []database.DuplicateAlbum
	nextAlbumID     int64
	nextImageID     int64

	// Error injection
	AlbumImageIDsError error
	ImagePathError     error
	ReplaceError       error
}

var _ database.CollectionImporter = (*MockCollection)(nil)

// NewMockCollection creates a new mock collection
func NewMockCollection() *MockCollection {
	return &MockCollection{
		albums:      make(map[int64][]int64),
		paths:       make(map[int64]string),
		albumNames:  make(map[string]int64),
		nextAlbumID: 1,
		nextImageID: 1,
	}
}

// AddAlbum sets the image IDs of an album
func (m *MockCollection) AddAlbum(albumID int64, imageIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums[albumID] = append(m.albums[albumID], imageIDs...)
}

// SetImagePath sets the file path of an image
func (m *MockCollection) SetImagePath(imageID int64, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[imageID] = path
}

// DuplicateAlbums returns the currently stored duplicate albums
func (m *MockCollection) DuplicateAlbums() []database.DuplicateAlbum {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.duplicateAlbums)
}

// AlbumImageIDs returns the sorted, distinct image IDs of the given albums
func (m *MockCollection) AlbumImageIDs(ctx context.Context, albumIDs []int64) ([]int64, error) {
	if m.AlbumImageIDsError != nil {
		return nil, m.AlbumImageIDsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for _, albumID := range albumIDs {
		ids = append(ids, m.albums[albumID]...)
	}
	return database.NormalizeIDs(ids), nil
}

// ImagePath returns the file path of an image
func (m *MockCollection) ImagePath(ctx context.Context, imageID int64) (string, error) {
	if m.ImagePathError != nil {
		return "", m.ImagePathError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths[imageID], nil
}

// ReplaceDuplicateAlbums replaces the duplicate albums built from sourceAlbumIDs
func (m *MockCollection) ReplaceDuplicateAlbums(ctx context.Context, sourceAlbumIDs []int64, groups []database.DuplicateGroup) ([]database.DuplicateAlbum, error) {
	if m.ReplaceError != nil {
		return nil, m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sources := database.NormalizeIDs(sourceAlbumIDs)

	kept := m.duplicateAlbums[:0]
	for _, album := range m.duplicateAlbums {
		if !slices.Equal(album.SourceAlbumIDs, sources) {
			kept = append(kept, album)
		}
	}
	m.duplicateAlbums = kept

	created := make([]database.DuplicateAlbum, 0, len(groups))
	now := time.Now()
	for _, group := range groups {
		album := database.DuplicateAlbum{
			ID:               m.nextAlbumID,
			UID:              fmt.Sprintf("dup-%d", m.nextAlbumID),
			ReferenceImageID: group.Reference(),
			ImageIDs:         slices.Clone(group.ImageIDs),
			SourceAlbumIDs:   sources,
			CreatedAt:        now,
		}
		m.nextAlbumID++
		created = append(created, album)
	}
	m.duplicateAlbums = append(m.duplicateAlbums, created...)
	return created, nil
}

// EnsureAlbum returns the ID of the named album, creating it if needed
func (m *MockCollection) EnsureAlbum(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.albumNames[name]; ok {
		return id, nil
	}
	id := int64(len(m.albumNames) + 1)
	m.albumNames[name] = id
	return id, nil
}

// AddImage registers an image path in an album
func (m *MockCollection) AddImage(ctx context.Context, albumID int64, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	imageID := int64(0)
	for id, p := range m.paths {
		if p == path {
			imageID = id
			break
		}
	}
	if imageID == 0 {
		imageID = m.nextImageID
		m.nextImageID++
		m.paths[imageID] = path
	}
	if !slices.Contains(m.albums[albumID], imageID) {
		m.albums[albumID] = append(m.albums[albumID], imageID)
	}
	return imageID, nil
}
