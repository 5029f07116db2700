package fingerprint

import (
	"fmt"
	"math"
)

// Scorer compares signatures using a set of weight tables.
type Scorer struct {
	weights *Weights
}

// NewScorer creates a scorer; nil weights means DefaultWeights.
func NewScorer(w *Weights) *Scorer {
	if w == nil {
		w = DefaultWeights()
	}
	return &Scorer{weights: w}
}

// Weights returns the scorer weight tables.
func (s *Scorer) Weights() *Weights {
	return s.weights
}

// Query holds a query signature prepared for scoring many candidates.
//
// The raw distance between query q and candidate t is
//
//	Σc wAvg[c]·|avg_q[c] − avg_t[c]| − Σ w(bucket(p), c) over positions p
//	present with the same sign in both signatures
//
// and is normalized into [0,1] against the query's best (itself) and worst
// (no shared coefficient, farthest possible averages) distances.
type Query struct {
	sig    *Signature
	table  *WeightTable
	cells  int32
	lookup [NumChannels][]uint64 // bitset over pos+cells
	best   float64
	worst  float64
}

// NewQuery prepares sig for scoring with the weight table of the sketch type.
func (s *Scorer) NewQuery(sig *Signature, sketch SketchType) (*Query, error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signature", ErrIncompatibleSignature)
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	cells := int32(sig.Params.Grid * sig.Params.Grid)
	q := &Query{
		sig:   sig,
		table: s.weights.Table(sketch),
		cells: cells,
	}
	words := (2*int(cells) + 63) / 64
	for c := range NumChannels {
		q.lookup[c] = make([]uint64, words)
		for _, pos := range sig.Coefs[c] {
			bit := pos + cells
			q.lookup[c][bit/64] |= 1 << (bit % 64)
		}
	}

	q.best = q.distance(sig)
	for c := range NumChannels {
		q.worst += q.table.Averages[c] * maxAverageDelta(c, sig.Averages[c])
	}
	return q, nil
}

// Signature returns the query signature.
func (q *Query) Signature() *Signature {
	return q.sig
}

// Bounds returns the best (identical) and worst possible raw distances.
func (q *Query) Bounds() (best, worst float64) {
	return q.best, q.worst
}

// Distance returns the raw weighted distance to a candidate; lower is more similar.
func (q *Query) Distance(candidate *Signature) (float64, error) {
	if err := q.check(candidate); err != nil {
		return 0, err
	}
	return q.distance(candidate), nil
}

// Score returns the normalized similarity to a candidate, 1.0 for identical.
func (q *Query) Score(candidate *Signature) (float64, error) {
	if err := q.check(candidate); err != nil {
		return 0, err
	}
	return q.normalize(q.distance(candidate)), nil
}

// MinDistance converts a minimum score into the maximum raw distance that
// still reaches it.
func (q *Query) MinDistance(minScore float64) float64 {
	return q.worst - minScore*(q.worst-q.best)
}

func (q *Query) check(candidate *Signature) error {
	if err := q.sig.CompatibleWith(candidate); err != nil {
		return err
	}
	return candidate.Validate()
}

// distance iterates the candidate coefficients in signature order, so the
// distance of the query to itself is bit-identical to best.
func (q *Query) distance(candidate *Signature) float64 {
	var d float64
	for c := range NumChannels {
		d += q.table.Averages[c] * math.Abs(q.sig.Averages[c]-candidate.Averages[c])
	}
	grid := q.sig.Params.Grid
	for c := range NumChannels {
		bits := q.lookup[c]
		for _, pos := range candidate.Coefs[c] {
			bit := pos + q.cells
			if bits[bit/64]&(1<<(bit%64)) != 0 {
				d -= q.table.bucketWeight(pos, grid, c)
			}
		}
	}
	return d
}

func (q *Query) normalize(d float64) float64 {
	if d <= q.best {
		return 1
	}
	if d >= q.worst {
		return 0
	}
	return (q.worst - d) / (q.worst - q.best)
}

// Score scores candidate against query with the sketch type's table.
func (s *Scorer) Score(query, candidate *Signature, sketch SketchType) (float64, error) {
	q, err := s.NewQuery(query, sketch)
	if err != nil {
		return 0, err
	}
	return q.Score(candidate)
}

// BestAndWorstPossibleScore returns the raw distance bounds used to
// normalize scores of sig: best is its distance to itself, worst the
// distance to an image sharing no coefficient with averages as far away as
// the colour space allows.
func (s *Scorer) BestAndWorstPossibleScore(sig *Signature, sketch SketchType) (best, worst float64, err error) {
	q, err := s.NewQuery(sig, sketch)
	if err != nil {
		return 0, 0, err
	}
	best, worst = q.Bounds()
	return best, worst, nil
}

// maxAverageDelta is the largest distance from avg to another channel
// average reachable by RGB images.
func maxAverageDelta(channel int, avg float64) float64 {
	lo, hi := averageRange(channel)
	return max(avg-lo, hi-avg, 0)
}
