package fingerprint

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed weights.yaml
var weightsYAML []byte

// NumBuckets is the number of coefficient scale buckets.
const NumBuckets = 5

// SketchType selects the weight table used for scoring.
type SketchType int

// Sketch types.
const (
	Photo     SketchType = iota // Scanned photographs
	HandDrawn                   // Hand-drawn sketches
)

// String returns the weight table name.
func (t SketchType) String() string {
	switch t {
	case Photo:
		return "photo"
	case HandDrawn:
		return "sketch"
	default:
		return fmt.Sprintf("SketchType(%d)", int(t))
	}
}

// WeightTable maps (channel, bucket) to a positive weight.
type WeightTable struct {
	Averages [NumChannels]float64
	Buckets  [NumBuckets][NumChannels]float64
}

// bucketWeight returns the weight of a signed coefficient position.
func (w *WeightTable) bucketWeight(pos int32, grid int, channel int) float64 {
	if pos < 0 {
		pos = -pos
	}
	row := int(pos) / grid
	col := int(pos) % grid
	return w.Buckets[min(max(row, col), NumBuckets)-1][channel]
}

// Weights holds one table per sketch type.
type Weights struct {
	Version int
	tables  [2]WeightTable
}

// Table returns the table for a sketch type; unknown types use Photo.
func (w *Weights) Table(t SketchType) *WeightTable {
	if t == HandDrawn {
		return &w.tables[HandDrawn]
	}
	return &w.tables[Photo]
}

type weightsFile struct {
	Version int                   `yaml:"version"`
	Tables  map[string]tableEntry `yaml:"tables"`
}

type tableEntry struct {
	Averages []float64   `yaml:"averages"`
	Buckets  [][]float64 `yaml:"buckets"`
}

var defaultWeights = mustParseWeights(weightsYAML)

// DefaultWeights returns the embedded weight tables. The returned value is
// shared and must not be modified.
func DefaultWeights() *Weights {
	return defaultWeights
}

func mustParseWeights(data []byte) *Weights {
	w, err := ParseWeights(data)
	if err != nil {
		// Embedded file, only reachable through a broken build.
		panic("failed to parse embedded weights.yaml: " + err.Error())
	}
	return w
}

// ParseWeights parses a weights document in the format of the embedded
// weights.yaml.
func ParseWeights(data []byte) (*Weights, error) {
	var file weightsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}

	w := &Weights{Version: file.Version}
	for _, t := range []SketchType{Photo, HandDrawn} {
		entry, ok := file.Tables[t.String()]
		if !ok {
			return nil, fmt.Errorf("missing %q weight table", t)
		}
		table, err := entry.toTable()
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", t, err)
		}
		w.tables[t] = table
	}
	return w, nil
}

func (e tableEntry) toTable() (WeightTable, error) {
	var table WeightTable
	if len(e.Averages) != NumChannels {
		return table, fmt.Errorf("want %d average weights, got %d", NumChannels, len(e.Averages))
	}
	if len(e.Buckets) != NumBuckets {
		return table, fmt.Errorf("want %d buckets, got %d", NumBuckets, len(e.Buckets))
	}
	for c, v := range e.Averages {
		if v <= 0 {
			return table, fmt.Errorf("average weight %d must be positive", c)
		}
		table.Averages[c] = v
	}
	for b, row := range e.Buckets {
		if len(row) != NumChannels {
			return table, fmt.Errorf("bucket %d: want %d weights, got %d", b+1, NumChannels, len(row))
		}
		for c, v := range row {
			if v <= 0 {
				return table, fmt.Errorf("bucket %d weight %d must be positive", b+1, c)
			}
			table.Buckets[b][c] = v
		}
	}
	return table, nil
}
