package postgres

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
	"github.com/pgvector/pgvector-go"
)

// scanBatchSize is the number of rows fetched per ScanAll page.
const scanBatchSize = 256

// SignatureRepository provides PostgreSQL-backed signature storage
type SignatureRepository struct {
	pool *Pool
}

var _ database.SignatureWriter = (*SignatureRepository)(nil)

// NewSignatureRepository creates a new PostgreSQL signature repository
func NewSignatureRepository(pool *Pool) *SignatureRepository {
	return &SignatureRepository{pool: pool}
}

// Get retrieves a signature by image ID, returns nil if not found
func (r *SignatureRepository) Get(ctx context.Context, imageID int64) (*fingerprint.Signature, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, "SELECT signature FROM image_signatures WHERE image_id = $1", imageID).Scan(&data)
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

// Has checks if a signature exists for the given image ID
func (r *SignatureRepository) Has(ctx context.Context, imageID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM image_signatures WHERE image_id = $1)", imageID).Scan(&exists)
	if err != nil {
		return false, database.WrapError("check signature exists", err)
	}
	return exists, nil
}

// Count returns the total number of signatures stored
func (r *SignatureRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM image_signatures").Scan(&count)
	if err != nil {
		return 0, database.WrapError("count signatures", err)
	}
	return count, nil
}

// Put stores a signature, replacing any previous one for the image
func (r *SignatureRepository) Put(ctx context.Context, imageID int64, sig *fingerprint.Signature) error {
	if sig == nil {
		return fmt.Errorf("put signature %d: nil signature", imageID)
	}
	data, err := sig.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode signature %d: %w", imageID, err)
	}

	averages := pgvector.NewVector([]float32{
		float32(sig.Averages[fingerprint.ChannelY]),
		float32(sig.Averages[fingerprint.ChannelI]),
		float32(sig.Averages[fingerprint.ChannelQ]),
	})

	query := `
		INSERT INTO image_signatures (image_id, version, grid, num_coefs, signature, averages, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (image_id) DO UPDATE SET
			version = EXCLUDED.version,
			grid = EXCLUDED.grid,
			num_coefs = EXCLUDED.num_coefs,
			signature = EXCLUDED.signature,
			averages = EXCLUDED.averages,
			updated_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query, imageID, sig.Params.Version, sig.Params.Grid, sig.Params.NumCoefs, data, averages)
	if err != nil {
		return database.WrapError(fmt.Sprintf("put signature %d", imageID), err)
	}
	return nil
}

// Delete removes the signature for an image
func (r *SignatureRepository) Delete(ctx context.Context, imageID int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM image_signatures WHERE image_id = $1", imageID); err != nil {
		return database.WrapError(fmt.Sprintf("delete signature %d", imageID), err)
	}
	return nil
}

// ScanAll pages through the table by image ID without holding a
// transaction, so rows written during the scan may or may not be seen.
func (r *SignatureRepository) ScanAll(ctx context.Context) iter.Seq2[database.StoredSignature, error] {
	return func(yield func(database.StoredSignature, error) bool) {
		last := int64(math.MinInt64)
		for {
			page, err := r.scanPage(ctx, last)
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

func (r *SignatureRepository) scanPage(ctx context.Context, after int64) ([]scannedRow, error) {
	query := `
		SELECT image_id, signature, updated_at
		FROM image_signatures
		WHERE image_id > $1
		ORDER BY image_id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, after, scanBatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := make([]scannedRow, 0, scanBatchSize)
	for rows.Next() {
		var (
			imageID   int64
			data      []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&imageID, &data, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		page = append(page, decodeRow(imageID, data, updatedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return page, nil
}

func decodeRow(imageID int64, data []byte, updatedAt time.Time) scannedRow {
	row := scannedRow{record: database.StoredSignature{ImageID: imageID, UpdatedAt: updatedAt}}
	var sig fingerprint.Signature
	if err := sig.UnmarshalBinary(data); err != nil {
		row.err = database.WrapError(fmt.Sprintf("decode signature %d", imageID), err)
		return row
	}
	row.record.Signature = &sig
	return row
}
