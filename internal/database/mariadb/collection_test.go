package mariadb

import (
	"encoding/json"
	"testing"
)

func TestImagePath(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		relative string
		file     string
		want     string
	}{
		{"root album", "/home/user/Pictures", "/", "a.jpg", "/home/user/Pictures/a.jpg"},
		{"nested album", "/home/user/Pictures", "/2024/Holiday", "b.png", "/home/user/Pictures/2024/Holiday/b.png"},
		{"trailing slash root", "/mnt/photos/", "/x", "c.jpg", "/mnt/photos/x/c.jpg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := imagePath(tc.root, tc.relative, tc.file); got != tc.want {
				t.Errorf("imagePath() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSearchPrefix(t *testing.T) {
	tests := []struct {
		sources []int64
		want    string
	}{
		{nil, "Duplicates [] "},
		{[]int64{4}, "Duplicates [4] "},
		{[]int64{2, 9, 11}, "Duplicates [2,9,11] "},
	}

	for _, tc := range tests {
		if got := searchPrefix(tc.sources); got != tc.want {
			t.Errorf("searchPrefix(%v) = %q, want %q", tc.sources, got, tc.want)
		}
	}
}

func TestDuplicatesQueryJSON(t *testing.T) {
	data, err := json.Marshal(duplicatesQuery{
		UID:            "abc",
		ReferenceImage: 3,
		ImageIDs:       []int64{3, 8},
		SourceAlbums:   []int64{1},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"uid":"abc","reference_image":3,"image_ids":[3,8],"source_albums":[1]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestNewPoolRejectsBadDSN(t *testing.T) {
	for _, dsn := range []string{"", "not a dsn"} {
		if _, err := NewPool(dsn); err == nil {
			t.Errorf("NewPool(%q) should fail", dsn)
		}
	}
}
