package cmd

import (
	"slices"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/config"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int64
		wantErr bool
	}{
		{"empty", nil, []int64{}, false},
		{"several", []string{"3", "10", "7"}, []int64{3, 10, 7}, false},
		{"not a number", []string{"3", "abc"}, nil, true},
		{"zero", []string{"0"}, nil, true},
		{"negative", []string{"-4"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIDs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(got, tt.want) {
				t.Errorf("parseIDs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func newSimilarityTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Float64("threshold", 0.9, "")
	cmd.Flags().Int("limit", 20, "")
	cmd.Flags().Bool("sketch", false, "")
	return cmd
}

func TestSimilarityFlags(t *testing.T) {
	cfg := &config.SimilarityConfig{Threshold: 0.8, Limit: 7, Sketch: true}

	cmd := newSimilarityTestCommand()
	threshold, limit, sketch, err := similarityFlags(cmd, cfg)
	if err != nil {
		t.Fatalf("similarityFlags failed: %v", err)
	}
	if threshold != 0.8 || limit != 7 || sketch != fingerprint.HandDrawn {
		t.Errorf("unset flags should use config, got %v %d %v", threshold, limit, sketch)
	}

	cmd = newSimilarityTestCommand()
	if err := cmd.Flags().Parse([]string{"--threshold", "0.95", "--limit", "3"}); err != nil {
		t.Fatal(err)
	}
	threshold, limit, _, err = similarityFlags(cmd, cfg)
	if err != nil {
		t.Fatalf("similarityFlags failed: %v", err)
	}
	if threshold != 0.95 || limit != 3 {
		t.Errorf("flags should override config, got %v %d", threshold, limit)
	}

	cmd = newSimilarityTestCommand()
	if err := cmd.Flags().Parse([]string{"--threshold", "1.5"}); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := similarityFlags(cmd, cfg); err == nil {
		t.Error("expected error for threshold above 1")
	}
}

func TestSimilarityFlags_Sketch(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		args       []string
		want       fingerprint.SketchType
	}{
		{"config photo", false, nil, fingerprint.Photo},
		{"config sketch", true, nil, fingerprint.HandDrawn},
		{"flag enables sketch", false, []string{"--sketch"}, fingerprint.HandDrawn},
		{"flag disables configured sketch", true, []string{"--sketch=false"}, fingerprint.Photo},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.SimilarityConfig{Threshold: 0.9, Limit: 20, Sketch: tc.configured}
			cmd := newSimilarityTestCommand()
			if err := cmd.Flags().Parse(tc.args); err != nil {
				t.Fatal(err)
			}
			_, _, sketch, err := similarityFlags(cmd, cfg)
			if err != nil {
				t.Fatalf("similarityFlags failed: %v", err)
			}
			if sketch != tc.want {
				t.Errorf("sketch = %v; want %v", sketch, tc.want)
			}
		})
	}
}

func TestScoreFlag(t *testing.T) {
	tests := []struct {
		args    []string
		want    float64
		wantErr bool
	}{
		{nil, 0, false},
		{[]string{"--min-score", "0.85"}, 0.85, false},
		{[]string{"--min-score", "1"}, 1, false},
		{[]string{"--min-score", "1.2"}, 0, true},
		{[]string{"--min-score=-0.1"}, 0, true},
	}

	for _, tc := range tests {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().Float64("min-score", 0, "")
		if err := cmd.Flags().Parse(tc.args); err != nil {
			t.Fatal(err)
		}
		got, err := scoreFlag(cmd, "min-score")
		if (err != nil) != tc.wantErr {
			t.Errorf("scoreFlag(%v) error = %v; wantErr %v", tc.args, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("scoreFlag(%v) = %v; want %v", tc.args, got, tc.want)
		}
	}
}
