// Package search implements best-match queries and duplicate clustering over
// stored image signatures.
package search

import (
	"cmp"
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"slices"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// Match is a candidate image and its similarity score in [0,1].
type Match struct {
	ImageID int64   `json:"image_id"`
	Score   float64 `json:"score"`
}

// Source is a sequence of stored signatures to search, such as
// SignatureReader.ScanAll. An error matching database.ErrScanAborted ends
// the query; any other error skips its record.
type Source = iter.Seq2[database.StoredSignature, error]

// SkippedRecord is a candidate left out of a scan because it could not be read.
type SkippedRecord struct {
	ImageID int64
	Err     error
}

// ScanReport counts the candidates visited by a query.
type ScanReport struct {
	Scanned      int             // candidates scored
	Incompatible int             // candidates with signatures of other params
	Skipped      []SkippedRecord // unreadable records
}

// QueryResult holds matches ordered by descending score, ties by ascending
// image ID.
type QueryResult struct {
	Matches []Match
	Report  ScanReport
}

// IDs returns the matched image IDs in result order.
func (r *QueryResult) IDs() []int64 {
	ids := make([]int64, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.ImageID
	}
	return ids
}

type queryOptions struct {
	exclude  map[int64]bool
	restrict map[int64]bool // nil means every candidate
}

// QueryOption narrows the candidates of a query.
type QueryOption func(*queryOptions)

// Exclude leaves the given image IDs out of the results.
func Exclude(imageIDs ...int64) QueryOption {
	return func(o *queryOptions) {
		if o.exclude == nil {
			o.exclude = make(map[int64]bool, len(imageIDs))
		}
		for _, id := range imageIDs {
			o.exclude[id] = true
		}
	}
}

// Restrict limits the candidates to the given image IDs. An empty list
// matches nothing.
func Restrict(imageIDs []int64) QueryOption {
	return func(o *queryOptions) {
		o.restrict = make(map[int64]bool, len(imageIDs))
		for _, id := range imageIDs {
			o.restrict[id] = true
		}
	}
}

func (o *queryOptions) accepts(id int64) bool {
	if o.exclude[id] {
		return false
	}
	return o.restrict == nil || o.restrict[id]
}

// QueryEngine scores a query signature against every candidate of a source.
type QueryEngine struct {
	scorer *fingerprint.Scorer
	logger *log.Logger
}

// NewQueryEngine creates a query engine. A nil scorer uses the default
// weights, a nil logger discards output.
func NewQueryEngine(scorer *fingerprint.Scorer, logger *log.Logger) *QueryEngine {
	if scorer == nil {
		scorer = fingerprint.NewScorer(nil)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &QueryEngine{scorer: scorer, logger: logger}
}

// BestMatches returns the limit best scoring candidates.
func (e *QueryEngine) BestMatches(ctx context.Context, src Source, sig *fingerprint.Signature, limit int, sketch fingerprint.SketchType, opts ...QueryOption) (*QueryResult, error) {
	if limit <= 0 {
		return &QueryResult{}, nil
	}

	h := &matchHeap{}
	report, err := e.scan(ctx, src, sig, sketch, opts, func(m Match) {
		if h.Len() < limit {
			heap.Push(h, m)
			return
		}
		if better(m, (*h)[0]) {
			(*h)[0] = m
			heap.Fix(h, 0)
		}
	})
	if err != nil {
		return nil, err
	}

	matches := []Match(*h)
	sortMatches(matches)
	return &QueryResult{Matches: matches, Report: report}, nil
}

// BestMatchesWithThreshold returns every candidate scoring at least minScore.
func (e *QueryEngine) BestMatchesWithThreshold(ctx context.Context, src Source, sig *fingerprint.Signature, minScore float64, sketch fingerprint.SketchType, opts ...QueryOption) (*QueryResult, error) {
	var matches []Match
	report, err := e.scan(ctx, src, sig, sketch, opts, func(m Match) {
		if m.Score >= minScore {
			matches = append(matches, m)
		}
	})
	if err != nil {
		return nil, err
	}

	sortMatches(matches)
	return &QueryResult{Matches: matches, Report: report}, nil
}

// scan scores each accepted candidate. Cancellation is checked before every
// candidate. Unreadable records are skipped, a failure of the source itself
// ends the scan with an error.
func (e *QueryEngine) scan(ctx context.Context, src Source, sig *fingerprint.Signature, sketch fingerprint.SketchType, opts []QueryOption, visit func(Match)) (ScanReport, error) {
	var report ScanReport

	q, err := e.scorer.NewQuery(sig, sketch)
	if err != nil {
		return report, fmt.Errorf("query signature: %w", err)
	}

	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	for rec, recErr := range src {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if recErr != nil {
			if errors.Is(recErr, database.ErrScanAborted) {
				return report, fmt.Errorf("scanning signatures: %w", recErr)
			}
			if o.accepts(rec.ImageID) {
				e.logger.Printf("skipping image %d: %v", rec.ImageID, recErr)
				report.Skipped = append(report.Skipped, SkippedRecord{ImageID: rec.ImageID, Err: recErr})
			}
			continue
		}
		if !o.accepts(rec.ImageID) {
			continue
		}

		score, err := q.Score(rec.Signature)
		if errors.Is(err, fingerprint.ErrIncompatibleSignature) {
			report.Incompatible++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("scoring image %d: %w", rec.ImageID, err)
		}
		report.Scanned++
		visit(Match{ImageID: rec.ImageID, Score: score})
	}
	return report, nil
}

// better reports whether a ranks before b.
func better(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ImageID < b.ImageID
}

func sortMatches(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ImageID, b.ImageID)
	})
}

// matchHeap keeps the worst ranked match at the root.
type matchHeap []Match

func (h matchHeap) Len() int           { return len(h) }
func (h matchHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h matchHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)        { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}

// sliceSource yields stored signatures held in memory.
func sliceSource(records []database.StoredSignature) Source {
	return func(yield func(database.StoredSignature, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}
