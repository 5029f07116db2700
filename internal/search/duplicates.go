package search

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log"
	"slices"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// DuplicateResult is the outcome of a clustering run.
type DuplicateResult struct {
	RunID      string
	Groups     []database.DuplicateGroup // sorted by reference image ID
	Candidates int                       // candidates with a signature
	Scanned    int                       // candidates queried before completion or cancellation
	Skipped    []SkippedRecord           // candidates whose signature could not be read
	Cancelled  bool
}

// Clusterer groups images whose pairwise score reaches a threshold.
type Clusterer struct {
	store  database.SignatureReader
	query  *QueryEngine
	logger *log.Logger
}

// NewClusterer creates a clusterer reading signatures from store.
func NewClusterer(store database.SignatureReader, query *QueryEngine, logger *log.Logger) *Clusterer {
	if query == nil {
		query = NewQueryEngine(nil, logger)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Clusterer{store: store, query: query, logger: logger}
}

// FindDuplicates clusters the given images. percentage in [0,1] is the
// minimum normalized score linking two images. Each candidate is queried
// against the other candidates and every link is treated as symmetric.
//
// Cancellation is checked between candidates. A cancelled run returns the
// groups formed by links among the candidates scanned so far, with
// Cancelled set and a nil error.
func (c *Clusterer) FindDuplicates(ctx context.Context, imageIDs []int64, percentage float64, sketch fingerprint.SketchType, progress Progress) (*DuplicateResult, error) {
	if percentage < 0 || percentage > 1 {
		return nil, fmt.Errorf("percentage %v out of range [0,1]", percentage)
	}
	progress = orNoProgress(progress)
	result := &DuplicateResult{RunID: uuid.NewString()}

	candidates, skipped := c.load(ctx, database.NormalizeIDs(imageIDs))
	result.Skipped = skipped
	result.Candidates = len(candidates)
	if ctx.Err() != nil {
		result.Cancelled = true
		return result, nil
	}

	ids := make([]int64, len(candidates))
	for i, rec := range candidates {
		ids[i] = rec.ImageID
	}
	src := sliceSource(candidates)
	uf := newUnionFind(ids)
	scanned := make(map[int64]bool, len(ids))
	var edges [][2]int64

	progress.TotalNumberToScan(len(candidates))
	for i, rec := range candidates {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		// A started candidate always completes.
		res, err := c.query.BestMatchesWithThreshold(context.WithoutCancel(ctx), src, rec.Signature, percentage, sketch, Exclude(rec.ImageID))
		if err != nil {
			c.logger.Printf("duplicates run %s: skipping image %d: %v", result.RunID, rec.ImageID, err)
			result.Skipped = append(result.Skipped, SkippedRecord{ImageID: rec.ImageID, Err: err})
		} else {
			for _, m := range res.Matches {
				edges = append(edges, [2]int64{rec.ImageID, m.ImageID})
			}
		}
		scanned[rec.ImageID] = true
		result.Scanned++
		progress.ProcessedNumber(i + 1)
	}

	for _, e := range edges {
		if scanned[e[0]] && scanned[e[1]] {
			uf.union(e[0], e[1])
		}
	}
	result.Groups = uf.groups()

	c.logger.Printf("duplicates run %s: %d groups from %d/%d candidates (cancelled=%v)",
		result.RunID, len(result.Groups), result.Scanned, result.Candidates, result.Cancelled)
	return result, nil
}

// load reads the signatures of the candidates in ascending ID order.
// Missing signatures are left out and unreadable ones reported.
func (c *Clusterer) load(ctx context.Context, ids []int64) ([]database.StoredSignature, []SkippedRecord) {
	var (
		candidates []database.StoredSignature
		skipped    []SkippedRecord
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		sig, err := c.store.Get(ctx, id)
		if err != nil {
			c.logger.Printf("skipping image %d: %v", id, err)
			skipped = append(skipped, SkippedRecord{ImageID: id, Err: err})
			continue
		}
		if sig == nil {
			continue
		}
		candidates = append(candidates, database.StoredSignature{ImageID: id, Signature: sig})
	}
	return candidates, skipped
}

// unionFind is a disjoint set over image IDs with path halving and union by size.
type unionFind struct {
	index  map[int64]int
	ids    []int64
	parent []int
	size   []int
}

func newUnionFind(ids []int64) *unionFind {
	uf := &unionFind{
		index:  make(map[int64]int, len(ids)),
		ids:    ids,
		parent: make([]int, len(ids)),
		size:   make([]int, len(ids)),
	}
	for i, id := range ids {
		uf.index[id] = i
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int64) {
	ia, okA := uf.index[a]
	ib, okB := uf.index[b]
	if !okA || !okB {
		return
	}
	ra, rb := uf.find(ia), uf.find(ib)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

// groups returns the components with at least two members. IDs are ascending
// within a group and groups are ordered by their first ID.
func (uf *unionFind) groups() []database.DuplicateGroup {
	members := make(map[int][]int64)
	for i, id := range uf.ids {
		root := uf.find(i)
		members[root] = append(members[root], id)
	}

	var groups []database.DuplicateGroup
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		slices.Sort(ids)
		groups = append(groups, database.DuplicateGroup{ImageIDs: ids})
	}
	slices.SortFunc(groups, func(a, b database.DuplicateGroup) int {
		return cmp.Compare(a.Reference(), b.Reference())
	})
	return groups
}
