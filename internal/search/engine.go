package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
	"github.com/kozaktomas/photo-dupes/internal/imagefile"
)

var (
	// ErrNoSignature is returned when querying by an image that has no stored signature.
	ErrNoSignature = errors.New("image has no signature")
	// ErrNoCollection is returned by album operations on an engine without a collection.
	ErrNoCollection = errors.New("no collection configured")
	// ErrNoPixelSource is returned when indexing by ID without a pixel source.
	ErrNoPixelSource = errors.New("no pixel source configured")
)

// PixelSource loads the pixels of a collection image.
type PixelSource interface {
	Image(ctx context.Context, imageID int64) (image.Image, error)
}

// Engine indexes images and answers similarity queries over one signature
// store. Calls run synchronously on the calling goroutine.
type Engine struct {
	store      database.SignatureWriter
	codec      *fingerprint.Codec
	scorer     *fingerprint.Scorer
	collection database.CollectionWriter
	pixels     PixelSource
	logger     *log.Logger

	query     *QueryEngine
	clusterer *Clusterer
}

// Option configures an Engine.
type Option func(*Engine)

// WithCodec sets the codec used for new signatures.
func WithCodec(codec *fingerprint.Codec) Option {
	return func(e *Engine) { e.codec = codec }
}

// WithScorer sets the scorer and its weight tables.
func WithScorer(scorer *fingerprint.Scorer) Option {
	return func(e *Engine) { e.scorer = scorer }
}

// WithCollection enables album operations.
func WithCollection(collection database.CollectionWriter) Option {
	return func(e *Engine) { e.collection = collection }
}

// WithPixelSource enables indexing by image ID.
func WithPixelSource(pixels PixelSource) Option {
	return func(e *Engine) { e.pixels = pixels }
}

// WithLogger sets the logger receiving skipped records and run summaries.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an engine over store.
func New(store database.SignatureWriter, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	if e.codec == nil {
		e.codec = fingerprint.DefaultCodec()
	}
	if e.scorer == nil {
		e.scorer = fingerprint.NewScorer(nil)
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard, "", 0)
	}
	e.query = NewQueryEngine(e.scorer, e.logger)
	e.clusterer = NewClusterer(store, e.query, e.logger)
	return e
}

// IndexImage computes and stores the signature of decoded pixels.
func (e *Engine) IndexImage(ctx context.Context, imageID int64, img image.Image) (*fingerprint.Signature, error) {
	sig, err := e.codec.Compute(img)
	if err != nil {
		return nil, fmt.Errorf("image %d: %w", imageID, err)
	}
	if err := e.store.Put(ctx, imageID, sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// IndexImageFile decodes a file and stores its signature under imageID.
func (e *Engine) IndexImageFile(ctx context.Context, imageID int64, path string) (*fingerprint.Signature, error) {
	img, err := imagefile.Load(path)
	if err != nil {
		return nil, err
	}
	return e.IndexImage(ctx, imageID, img)
}

// IndexImageByID loads the pixels of a collection image and stores its signature.
func (e *Engine) IndexImageByID(ctx context.Context, imageID int64) (*fingerprint.Signature, error) {
	if e.pixels == nil {
		return nil, ErrNoPixelSource
	}
	img, err := e.pixels.Image(ctx, imageID)
	if err != nil {
		return nil, err
	}
	return e.IndexImage(ctx, imageID, img)
}

// IndexReport summarizes an IndexAlbums run.
type IndexReport struct {
	Total     int
	Indexed   int
	Unchanged int // already had a signature and rebuild was off
	Failed    []SkippedRecord
	Cancelled bool
}

// IndexAlbums computes signatures for every image of the albums. Without
// rebuild, images that already have a signature are left alone. Failing
// images are recorded and the run continues.
func (e *Engine) IndexAlbums(ctx context.Context, albumIDs []int64, rebuild bool, progress Progress) (*IndexReport, error) {
	if e.collection == nil {
		return nil, ErrNoCollection
	}
	progress = orNoProgress(progress)

	ids, err := e.collection.AlbumImageIDs(ctx, albumIDs)
	if err != nil {
		return nil, fmt.Errorf("listing album images: %w", err)
	}

	report := &IndexReport{Total: len(ids)}
	progress.TotalNumberToScan(len(ids))
	for i, id := range ids {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if !rebuild {
			has, err := e.store.Has(ctx, id)
			if err == nil && has {
				report.Unchanged++
				progress.ProcessedNumber(i + 1)
				continue
			}
		}
		if _, err := e.IndexImageByID(ctx, id); err != nil {
			e.logger.Printf("indexing image %d failed: %v", id, err)
			report.Failed = append(report.Failed, SkippedRecord{ImageID: id, Err: err})
		} else {
			report.Indexed++
		}
		progress.ProcessedNumber(i + 1)
	}
	return report, nil
}

// RetrieveSignature returns the stored signature of an image, nil if it has none.
func (e *Engine) RetrieveSignature(ctx context.Context, imageID int64) (*fingerprint.Signature, error) {
	return e.store.Get(ctx, imageID)
}

// SignatureText returns the text encoding of a stored signature.
func (e *Engine) SignatureText(ctx context.Context, imageID int64) (string, error) {
	sig, err := e.storedSignature(ctx, imageID)
	if err != nil {
		return "", err
	}
	return fingerprint.EncodeText(sig)
}

func (e *Engine) storedSignature(ctx context.Context, imageID int64) (*fingerprint.Signature, error) {
	sig, err := e.store.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, fmt.Errorf("image %d: %w", imageID, ErrNoSignature)
	}
	return sig, nil
}

// BestMatchesForImage returns the limit best matches of a stored image,
// never including the image itself.
func (e *Engine) BestMatchesForImage(ctx context.Context, imageID int64, limit int, sketch fingerprint.SketchType) (*QueryResult, error) {
	sig, err := e.storedSignature(ctx, imageID)
	if err != nil {
		return nil, err
	}
	return e.BestMatchesForSignatureValue(ctx, sig, limit, sketch, Exclude(imageID))
}

// BestMatchesForImageWithThreshold returns every image scoring at least
// percentage against a stored image, never including the image itself.
func (e *Engine) BestMatchesForImageWithThreshold(ctx context.Context, imageID int64, percentage float64, sketch fingerprint.SketchType) (*QueryResult, error) {
	sig, err := e.storedSignature(ctx, imageID)
	if err != nil {
		return nil, err
	}
	return e.query.BestMatchesWithThreshold(ctx, e.store.ScanAll(ctx), sig, percentage, sketch, Exclude(imageID))
}

// BestMatchesForFile returns the limit best matches of an image file that
// need not be indexed.
func (e *Engine) BestMatchesForFile(ctx context.Context, path string, limit int, sketch fingerprint.SketchType) (*QueryResult, error) {
	img, err := imagefile.Load(path)
	if err != nil {
		return nil, err
	}
	sig, err := e.codec.Compute(img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return e.BestMatchesForSignatureValue(ctx, sig, limit, sketch)
}

// BestMatchesForSignature returns the limit best matches of a text-encoded
// signature.
func (e *Engine) BestMatchesForSignature(ctx context.Context, text string, limit int, sketch fingerprint.SketchType) (*QueryResult, error) {
	sig, err := fingerprint.DecodeText(text)
	if err != nil {
		return nil, err
	}
	return e.BestMatchesForSignatureValue(ctx, sig, limit, sketch)
}

// BestMatchesForSignatureValue returns the limit best matches of sig.
func (e *Engine) BestMatchesForSignatureValue(ctx context.Context, sig *fingerprint.Signature, limit int, sketch fingerprint.SketchType, opts ...QueryOption) (*QueryResult, error) {
	res, err := e.query.BestMatches(ctx, e.store.ScanAll(ctx), sig, limit, sketch, opts...)
	if err != nil {
		return nil, err
	}
	if n := len(res.Report.Skipped); n > 0 {
		e.logger.Printf("best matches: skipped %d unreadable signatures", n)
	}
	return res, nil
}

// FindDuplicates clusters the given images at the percentage threshold.
func (e *Engine) FindDuplicates(ctx context.Context, imageIDs []int64, percentage float64, sketch fingerprint.SketchType, progress Progress) (*DuplicateResult, error) {
	return e.clusterer.FindDuplicates(ctx, imageIDs, percentage, sketch, progress)
}

// FindDuplicatesInAlbums clusters the images of the given albums.
func (e *Engine) FindDuplicatesInAlbums(ctx context.Context, albumIDs []int64, percentage float64, sketch fingerprint.SketchType, progress Progress) (*DuplicateResult, error) {
	if e.collection == nil {
		return nil, ErrNoCollection
	}
	ids, err := e.collection.AlbumImageIDs(ctx, albumIDs)
	if err != nil {
		return nil, fmt.Errorf("listing album images: %w", err)
	}
	return e.FindDuplicates(ctx, ids, percentage, sketch, progress)
}

// RebuildDuplicatesAlbums clusters the images of the given albums and
// replaces the duplicate albums previously built from them. A cancelled run
// leaves the stored albums untouched.
func (e *Engine) RebuildDuplicatesAlbums(ctx context.Context, albumIDs []int64, percentage float64, sketch fingerprint.SketchType, progress Progress) (*DuplicateResult, []database.DuplicateAlbum, error) {
	result, err := e.FindDuplicatesInAlbums(ctx, albumIDs, percentage, sketch, progress)
	if err != nil {
		return nil, nil, err
	}
	if result.Cancelled {
		return result, nil, nil
	}

	albums, err := e.collection.ReplaceDuplicateAlbums(ctx, albumIDs, result.Groups)
	if err != nil {
		return result, nil, fmt.Errorf("storing duplicate albums: %w", err)
	}
	e.logger.Printf("duplicates run %s: stored %d duplicate albums", result.RunID, len(albums))
	return result, albums, nil
}
