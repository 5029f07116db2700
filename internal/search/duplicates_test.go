package search

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kozaktomas/photo-dupes/internal/database"
	"github.com/kozaktomas/photo-dupes/internal/database/mock"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

func groupIDs(groups []database.DuplicateGroup) [][]int64 {
	ids := make([][]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ImageIDs
	}
	return ids
}

func groupOf(groups []database.DuplicateGroup, id int64) int {
	for i, g := range groups {
		if slices.Contains(g.ImageIDs, id) {
			return i
		}
	}
	return -1
}

func TestFindDuplicates_IdenticalImages(t *testing.T) {
	store, _ := testCorpus(t)
	clusterer := NewClusterer(store, nil, nil)

	for _, percentage := range []float64{1, 0.99, 0.9} {
		res, err := clusterer.FindDuplicates(context.Background(), []int64{1, 2, 5, 6}, percentage, fingerprint.Photo, nil)
		if err != nil {
			t.Fatalf("FindDuplicates failed: %v", err)
		}
		want := [][]int64{{1, 2}}
		if got := groupIDs(res.Groups); !slices.EqualFunc(got, want, slices.Equal) {
			t.Errorf("percentage %v: got groups %v, want %v", percentage, got, want)
		}
		if res.Groups[0].Reference() != 1 {
			t.Errorf("expected reference 1, got %d", res.Groups[0].Reference())
		}
	}
}

func TestFindDuplicates_BlackAndWhiteNeverGrouped(t *testing.T) {
	store, _ := testCorpus(t)
	clusterer := NewClusterer(store, nil, nil)

	for _, percentage := range []float64{0.5, 0.75, 1} {
		res, err := clusterer.FindDuplicates(context.Background(), []int64{5, 6}, percentage, fingerprint.Photo, nil)
		if err != nil {
			t.Fatalf("FindDuplicates failed: %v", err)
		}
		if len(res.Groups) != 0 {
			t.Errorf("percentage %v: black and white grouped: %v", percentage, groupIDs(res.Groups))
		}
	}
}

func TestFindDuplicates_Empty(t *testing.T) {
	store, _ := testCorpus(t)
	progress := &recordingProgress{}

	res, err := NewClusterer(store, nil, nil).FindDuplicates(context.Background(), nil, 0.9, fingerprint.Photo, progress)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(res.Groups) != 0 || res.Candidates != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if !slices.Equal(progress.totals, []int{0}) || len(progress.processed) != 0 {
		t.Errorf("unexpected progress: totals %v processed %v", progress.totals, progress.processed)
	}
	if res.RunID == "" {
		t.Error("expected a run ID")
	}
}

func TestFindDuplicates_Exhaustive(t *testing.T) {
	store, sigs := testCorpus(t)
	scorer := fingerprint.NewScorer(nil)
	ids := []int64{1, 2, 3, 4, 5, 6}

	for _, percentage := range []float64{0, 0.3, 0.6, 0.8, 0.95} {
		res, err := NewClusterer(store, nil, nil).FindDuplicates(context.Background(), ids, percentage, fingerprint.Photo, nil)
		if err != nil {
			t.Fatalf("FindDuplicates failed: %v", err)
		}

		for _, a := range ids {
			for _, b := range ids {
				if a == b {
					continue
				}
				score, err := scorer.Score(sigs[a], sigs[b], fingerprint.Photo)
				if err != nil {
					t.Fatalf("Score failed: %v", err)
				}
				if score < percentage {
					continue
				}
				ga, gb := groupOf(res.Groups, a), groupOf(res.Groups, b)
				if ga < 0 || ga != gb {
					t.Errorf("percentage %v: %d and %d score %f but are not grouped: %v",
						percentage, a, b, score, groupIDs(res.Groups))
				}
			}
		}
		for _, g := range res.Groups {
			if len(g.ImageIDs) < 2 || !slices.IsSorted(g.ImageIDs) {
				t.Errorf("invalid group %v", g.ImageIDs)
			}
		}
		if percentage == 0 {
			if got := groupIDs(res.Groups); len(got) != 1 || len(got[0]) != len(ids) {
				t.Errorf("percentage 0 should group everything, got %v", got)
			}
		}
	}
}

func TestFindDuplicates_Progress(t *testing.T) {
	store, _ := testCorpus(t)
	progress := &recordingProgress{}

	res, err := NewClusterer(store, nil, nil).FindDuplicates(context.Background(), []int64{6, 1, 3, 1, 99}, 0.9, fingerprint.Photo, progress)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if res.Candidates != 3 || res.Scanned != 3 {
		t.Errorf("expected 3 candidates scanned, got %d/%d", res.Scanned, res.Candidates)
	}
	if !slices.Equal(progress.totals, []int{3}) {
		t.Errorf("expected one total of 3, got %v", progress.totals)
	}
	if !slices.Equal(progress.processed, []int{1, 2, 3}) {
		t.Errorf("unexpected processed counts %v", progress.processed)
	}
}

func TestFindDuplicates_SkipsStorageErrors(t *testing.T) {
	store, _ := testCorpus(t)
	storageErr := database.WrapError("get signature 2", errors.New("disk I/O error"))
	store.RecordGetErrors[2] = storageErr

	res, err := NewClusterer(store, nil, nil).FindDuplicates(context.Background(), []int64{1, 2, 3}, 0.5, fingerprint.Photo, nil)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ImageID != 2 || !errors.Is(res.Skipped[0].Err, storageErr) {
		t.Errorf("expected image 2 skipped, got %+v", res.Skipped)
	}
	if groupOf(res.Groups, 2) != -1 {
		t.Error("skipped image should not be grouped")
	}
	if res.Candidates != 2 {
		t.Errorf("expected 2 candidates, got %d", res.Candidates)
	}
}

func TestFindDuplicates_InvalidPercentage(t *testing.T) {
	store, _ := testCorpus(t)
	clusterer := NewClusterer(store, nil, nil)

	for _, percentage := range []float64{-0.1, 1.1} {
		if _, err := clusterer.FindDuplicates(context.Background(), []int64{1, 2}, percentage, fingerprint.Photo, nil); err == nil {
			t.Errorf("expected error for percentage %v", percentage)
		}
	}
}

func TestFindDuplicates_CancellationKeepsScannedPrefix(t *testing.T) {
	store, _ := testCorpus(t)
	// A second pair of identical images late in the order.
	store.AddSignature(7, computeSignature(t, sceneImage(37)))
	ids := []int64{1, 2, 3, 4, 5, 6, 7}
	const percentage = 0.8

	for stopAfter := 1; stopAfter < len(ids); stopAfter++ {
		ctx, cancel := context.WithCancel(context.Background())
		progress := &recordingProgress{onProcess: func(n int) {
			if n == stopAfter {
				cancel()
			}
		}}

		res, err := NewClusterer(store, nil, nil).FindDuplicates(ctx, ids, percentage, fingerprint.Photo, progress)
		cancel()
		if err != nil {
			t.Fatalf("stop after %d: FindDuplicates failed: %v", stopAfter, err)
		}
		if !res.Cancelled || res.Scanned != stopAfter {
			t.Errorf("stop after %d: cancelled=%v scanned=%d", stopAfter, res.Cancelled, res.Scanned)
		}

		prefix, err := NewClusterer(store, nil, nil).FindDuplicates(context.Background(), ids[:stopAfter], percentage, fingerprint.Photo, nil)
		if err != nil {
			t.Fatalf("prefix run failed: %v", err)
		}
		if got, want := groupIDs(res.Groups), groupIDs(prefix.Groups); !slices.EqualFunc(got, want, slices.Equal) {
			t.Errorf("stop after %d: got groups %v, want %v", stopAfter, got, want)
		}
	}
}

func TestFindDuplicates_CancelledBeforeStart(t *testing.T) {
	store, _ := testCorpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewClusterer(store, nil, nil).FindDuplicates(ctx, []int64{1, 2}, 0.9, fingerprint.Photo, nil)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if !res.Cancelled || len(res.Groups) != 0 {
		t.Errorf("expected cancelled empty result, got %+v", res)
	}
}

func TestFindDuplicates_IndependentStores(t *testing.T) {
	first, _ := testCorpus(t)
	second := mock.NewMockSignatureStore()
	second.AddSignature(1, computeSignature(t, sceneImage(0)))

	res, err := NewClusterer(second, nil, nil).FindDuplicates(context.Background(), []int64{1, 2}, 0.9, fingerprint.Photo, nil)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(res.Groups) != 0 {
		t.Errorf("second store has one image, got groups %v", groupIDs(res.Groups))
	}

	res, err = NewClusterer(first, nil, nil).FindDuplicates(context.Background(), []int64{1, 2}, 0.9, fingerprint.Photo, nil)
	if err != nil {
		t.Fatalf("FindDuplicates failed: %v", err)
	}
	if len(res.Groups) != 1 {
		t.Errorf("first store should group 1 and 2, got %v", groupIDs(res.Groups))
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind([]int64{10, 20, 30, 40, 50})
	uf.union(50, 20)
	uf.union(30, 10)
	uf.union(20, 20)
	uf.union(10, 99) // unknown IDs are ignored

	want := [][]int64{{10, 30}, {20, 50}}
	if got := groupIDs(uf.groups()); !slices.EqualFunc(got, want, slices.Equal) {
		t.Errorf("got %v, want %v", got, want)
	}

	uf.union(30, 50)
	want = [][]int64{{10, 20, 30, 50}}
	if got := groupIDs(uf.groups()); !slices.EqualFunc(got, want, slices.Equal) {
		t.Errorf("got %v, want %v", got, want)
	}
}
