package fingerprint

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// NumChannels is the number of colour channels in a signature (Y, I, Q).
const NumChannels = 3

// Channel indexes into Signature.Averages and Signature.Coefs.
const (
	ChannelY = iota
	ChannelI
	ChannelQ
)

var (
	// ErrInvalidImage is returned for nil or zero-area images.
	ErrInvalidImage = errors.New("invalid image")
	// ErrIncompatibleSignature is returned when signatures were computed with
	// different parameters or cannot be decoded.
	ErrIncompatibleSignature = errors.New("incompatible signature")
)

// Params fixes the layout of a signature. Signatures computed with different
// params cannot be compared; changing DefaultParams invalidates every stored
// signature.
type Params struct {
	Version  int // Encoding/algorithm version
	Grid     int // Side of the square coefficient grid, a power of two
	NumCoefs int // Coefficients kept per channel
}

// CurrentVersion is the signature algorithm version written by this package.
const CurrentVersion = 1

// DefaultParams are the params used by DefaultCodec.
var DefaultParams = Params{Version: CurrentVersion, Grid: 128, NumCoefs: 40}

// Validate checks that the params describe a usable layout.
func (p Params) Validate() error {
	if p.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrIncompatibleSignature, p.Version)
	}
	if p.Grid < 8 || p.Grid > 1024 || p.Grid&(p.Grid-1) != 0 {
		return fmt.Errorf("%w: grid %d is not a power of two in [8, 1024]", ErrIncompatibleSignature, p.Grid)
	}
	// Counts are stored as 16-bit fields.
	if p.NumCoefs < 1 || p.NumCoefs >= p.Grid*p.Grid || p.NumCoefs > math.MaxUint16 {
		return fmt.Errorf("%w: coefficient count %d out of range", ErrIncompatibleSignature, p.NumCoefs)
	}
	return nil
}

// Signature is the perceptual fingerprint of one image.
//
// Each coefficient is a signed position into the Grid×Grid Haar coefficient
// matrix: the absolute value is row*Grid+col (never 0, which is the DC term
// kept in Averages) and the sign is the sign of the coefficient. Coefficients
// are ordered by descending magnitude, ties by ascending position.
// A Signature is not modified after it is computed or decoded.
type Signature struct {
	Params   Params
	Averages [NumChannels]float64
	Coefs    [NumChannels][]int32
}

// averageSlack absorbs float rounding of averages computed at the edges of
// the colour space.
const averageSlack = 1e-9

// averageRange returns the values a channel average of an RGB image can take.
func averageRange(channel int) (lo, hi float64) {
	switch channel {
	case ChannelI:
		return -maxI, maxI
	case ChannelQ:
		return -maxQ, maxQ
	default:
		return 0, 1
	}
}

// Validate checks the signature against its own params. Averages must be
// finite and inside the YIQ range, and a position may appear at most once
// per channel.
func (s *Signature) Validate() error {
	if err := s.Params.Validate(); err != nil {
		return err
	}
	for c := range NumChannels {
		avg := s.Averages[c]
		lo, hi := averageRange(c)
		if math.IsNaN(avg) || avg < lo-averageSlack || avg > hi+averageSlack {
			return fmt.Errorf("%w: channel %d average %v outside [%v, %v]",
				ErrIncompatibleSignature, c, avg, lo, hi)
		}
	}

	cells := int32(s.Params.Grid * s.Params.Grid)
	var seen []int32
	for c := range NumChannels {
		if len(s.Coefs[c]) > s.Params.NumCoefs {
			return fmt.Errorf("%w: channel %d has %d coefficients, want at most %d",
				ErrIncompatibleSignature, c, len(s.Coefs[c]), s.Params.NumCoefs)
		}
		seen = seen[:0]
		for _, pos := range s.Coefs[c] {
			if pos == 0 || pos >= cells || pos <= -cells {
				return fmt.Errorf("%w: coefficient position %d outside %dx%d grid",
					ErrIncompatibleSignature, pos, s.Params.Grid, s.Params.Grid)
			}
			if pos < 0 {
				pos = -pos
			}
			seen = append(seen, pos)
		}
		slices.Sort(seen)
		for i := 1; i < len(seen); i++ {
			if seen[i] == seen[i-1] {
				return fmt.Errorf("%w: channel %d repeats position %d",
					ErrIncompatibleSignature, c, seen[i])
			}
		}
	}
	return nil
}

// CompatibleWith reports an error when the two signatures cannot be compared.
func (s *Signature) CompatibleWith(other *Signature) error {
	if other == nil {
		return fmt.Errorf("%w: nil signature", ErrIncompatibleSignature)
	}
	if s.Params != other.Params {
		return fmt.Errorf("%w: params %+v vs %+v", ErrIncompatibleSignature, s.Params, other.Params)
	}
	return nil
}

// Equal reports whether both signatures hold exactly the same data.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Params != other.Params || s.Averages != other.Averages {
		return false
	}
	for c := range NumChannels {
		if len(s.Coefs[c]) != len(other.Coefs[c]) {
			return false
		}
		for i := range s.Coefs[c] {
			if s.Coefs[c][i] != other.Coefs[c][i] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the signature.
func (s *Signature) Clone() *Signature {
	if s == nil {
		return nil
	}
	c := &Signature{Params: s.Params, Averages: s.Averages}
	for ch := range NumChannels {
		c.Coefs[ch] = slices.Clone(s.Coefs[ch])
	}
	return c
}
