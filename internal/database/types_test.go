package database

import (
	"errors"
	"io"
	"testing"
)

func TestDuplicateGroupReference(t *testing.T) {
	tests := []struct {
		name  string
		group DuplicateGroup
		want  int64
	}{
		{"empty", DuplicateGroup{}, 0},
		{"single", DuplicateGroup{ImageIDs: []int64{7}}, 7},
		{"sorted", DuplicateGroup{ImageIDs: []int64{3, 9, 12}}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.group.Reference(); got != tc.want {
				t.Errorf("Reference() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	if WrapError("get", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}

	err := WrapError("get signature 5", io.ErrUnexpectedEOF)

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if storageErr.Op != "get signature 5" {
		t.Errorf("Op = %q", storageErr.Op)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("StorageError should unwrap to the cause")
	}
	if got := err.Error(); got != "storage: get signature 5: unexpected EOF" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNormalizeIDs(t *testing.T) {
	tests := []struct {
		name string
		ids  []int64
		want []int64
	}{
		{"nil", nil, []int64{}},
		{"sorted", []int64{1, 2, 3}, []int64{1, 2, 3}},
		{"unsorted with duplicates", []int64{5, 1, 5, 3, 1}, []int64{1, 3, 5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeIDs(tc.ids)
			if len(got) != len(tc.want) {
				t.Fatalf("NormalizeIDs(%v) = %v, want %v", tc.ids, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("NormalizeIDs(%v) = %v, want %v", tc.ids, got, tc.want)
				}
			}
		})
	}

	in := []int64{3, 1}
	NormalizeIDs(in)
	if in[0] != 3 {
		t.Error("NormalizeIDs should not modify its input")
	}
}

func TestAbortScan(t *testing.T) {
	err := AbortScan("scan signatures", io.ErrUnexpectedEOF)

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
	if !errors.Is(err, ErrScanAborted) {
		t.Error("AbortScan should match ErrScanAborted")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("AbortScan should unwrap to the cause")
	}
	if errors.Is(WrapError("decode signature 3", io.ErrUnexpectedEOF), ErrScanAborted) {
		t.Error("record errors should not match ErrScanAborted")
	}
}
