package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// scanBatchSize is the number of rows fetched per ScanAll page.
const scanBatchSize = 256

// SignatureStore implements database.SignatureWriter.
type SignatureStore struct {
	store *Store
}

var _ database.SignatureWriter = (*SignatureStore)(nil)

// Get retrieves a signature by image ID, returns nil if not found.
func (s *SignatureStore) Get(ctx context.Context, imageID int64) (*fingerprint.Signature, error) {
	var data []byte
	err := s.store.db.QueryRowContext(ctx, "SELECT signature FROM image_signatures WHERE image_id = ?", imageID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError(fmt.Sprintf("get signature %d", imageID), err)
	}

	var sig fingerprint.Signature
	if err := sig.UnmarshalBinary(data); err != nil {
		return nil, database.WrapError(fmt.Sprintf("decode signature %d", imageID), err)
	}
	return &sig, nil
}

// Has checks if a signature exists for the given image ID.
func (s *SignatureStore) Has(ctx context.Context, imageID int64) (bool, error) {
	var exists bool
	err := s.store.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM image_signatures WHERE image_id = ?)", imageID).Scan(&exists)
	if err != nil {
		return false, database.WrapError("check signature exists", err)
	}
	return exists, nil
}

// Count returns the total number of signatures stored.
func (s *SignatureStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM image_signatures").Scan(&count); err != nil {
		return 0, database.WrapError("count signatures", err)
	}
	return count, nil
}

// Put stores or replaces the signature of an image.
func (s *SignatureStore) Put(ctx context.Context, imageID int64, sig *fingerprint.Signature) error {
	if sig == nil {
		return fmt.Errorf("put signature %d: nil signature", imageID)
	}
	data, err := sig.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode signature %d: %w", imageID, err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO image_signatures (image_id, version, grid, num_coefs, signature, avg_y, avg_i, avg_q, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			version = excluded.version,
			grid = excluded.grid,
			num_coefs = excluded.num_coefs,
			signature = excluded.signature,
			avg_y = excluded.avg_y,
			avg_i = excluded.avg_i,
			avg_q = excluded.avg_q,
			updated_at = excluded.updated_at
	`, imageID, sig.Params.Version, sig.Params.Grid, sig.Params.NumCoefs, data,
		sig.Averages[fingerprint.ChannelY], sig.Averages[fingerprint.ChannelI], sig.Averages[fingerprint.ChannelQ],
		time.Now().Unix())
	if err != nil {
		return database.WrapError(fmt.Sprintf("put signature %d", imageID), err)
	}
	return nil
}

// Delete removes the signature of an image.
func (s *SignatureStore) Delete(ctx context.Context, imageID int64) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM image_signatures WHERE image_id = ?", imageID); err != nil {
		return database.WrapError(fmt.Sprintf("delete signature %d", imageID), err)
	}
	return nil
}

// ScanAll reads the table in pages of scanBatchSize rows ordered by image ID.
// No cursor stays open while records are yielded.
func (s *SignatureStore) ScanAll(ctx context.Context) iter.Seq2[database.StoredSignature, error] {
	return func(yield func(database.StoredSignature, error) bool) {
		last := int64(math.MinInt64)
		for {
			page, err := s.scanPage(ctx, last)
			if err != nil {
				yield(database.StoredSignature{}, database.AbortScan("scan signatures", err))
				return
			}
			for _, row := range page {
				if !yield(row.record, row.err) {
					return
				}
			}
			if len(page) < scanBatchSize {
				return
			}
			last = page[len(page)-1].record.ImageID
		}
	}
}

type scannedRow struct {
	record database.StoredSignature
	err    error
}

func (s *SignatureStore) scanPage(ctx context.Context, after int64) ([]scannedRow, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT image_id, signature, updated_at
		FROM image_signatures
		WHERE image_id > ?
		ORDER BY image_id
		LIMIT ?
	`, after, scanBatchSize)
	if err != nil {
		return nil, fmt.Errorf("querying signatures: %w", err)
	}
	defer rows.Close()

	page := make([]scannedRow, 0, scanBatchSize)
	for rows.Next() {
		var (
			imageID   int64
			data      []byte
			updatedAt int64
		)
		if err := rows.Scan(&imageID, &data, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning signature row: %w", err)
		}

		row := scannedRow{record: database.StoredSignature{ImageID: imageID, UpdatedAt: time.Unix(updatedAt, 0)}}
		var sig fingerprint.Signature
		if err := sig.UnmarshalBinary(data); err != nil {
			row.err = database.WrapError(fmt.Sprintf("decode signature %d", imageID), err)
		} else {
			row.record.Signature = &sig
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating signatures: %w", err)
	}
	return page, nil
}
