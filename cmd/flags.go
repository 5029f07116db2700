package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-dupes/internal/config"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt64 gets an int64 flag value or panics if the flag doesn't exist.
func mustGetInt64(cmd *cobra.Command, name string) int64 {
	val, err := cmd.Flags().GetInt64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetFloat64 gets a float64 flag value or panics if the flag doesn't exist.
func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt64Slice gets an int64 slice flag value or panics if the flag doesn't exist.
func mustGetInt64Slice(cmd *cobra.Command, name string) []int64 {
	val, err := cmd.Flags().GetInt64Slice(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// parseIDs parses positional image or album IDs.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// similarityFlags resolves the shared --threshold, --limit and --sketch
// flags, falling back to the configuration for unset ones.
func similarityFlags(cmd *cobra.Command, cfg *config.SimilarityConfig) (threshold float64, limit int, sketch fingerprint.SketchType, err error) {
	threshold = cfg.Threshold
	if f := cmd.Flags().Lookup("threshold"); f != nil && f.Changed {
		threshold = mustGetFloat64(cmd, "threshold")
	}
	if threshold < 0 || threshold > 1 {
		return 0, 0, 0, fmt.Errorf("--threshold must be between 0 and 1, got %v", threshold)
	}

	limit = cfg.Limit
	if f := cmd.Flags().Lookup("limit"); f != nil && f.Changed {
		limit = mustGetInt(cmd, "limit")
	}

	sketch = cfg.SketchType()
	if f := cmd.Flags().Lookup("sketch"); f != nil && f.Changed {
		sketch = fingerprint.Photo
		if mustGetBool(cmd, "sketch") {
			sketch = fingerprint.HandDrawn
		}
	}
	return threshold, limit, sketch, nil
}

// scoreFlag reads a float flag that must be a similarity score in [0, 1].
func scoreFlag(cmd *cobra.Command, name string) (float64, error) {
	v := mustGetFloat64(cmd, name)
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("--%s must be between 0 and 1, got %v", name, v)
	}
	return v, nil
}
