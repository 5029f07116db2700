package fingerprint

import (
	"cmp"
	"fmt"
	"image"
	"math"
	"slices"

	"golang.org/x/image/draw"
)

// YIQ chroma ranges for RGB in [0,1].
const (
	maxI = 0.5959
	maxQ = 0.5227
)

// noiseFloor is the largest magnitude an orthonormal Haar coefficient can
// reach from 16-bit resampling rounding alone (√(grid²)·2⁻¹⁶, doubled for the
// chroma matrix). Smaller coefficients are dropped so flat images keep no
// positions.
func noiseFloor(grid int) float64 {
	return 2 * float64(grid) / 0xffff
}

// Codec computes signatures for a fixed set of params. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	params Params
}

// NewCodec creates a codec for the given params.
func NewCodec(p Params) (*Codec, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Codec{params: p}, nil
}

// DefaultCodec returns a codec using DefaultParams.
func DefaultCodec() *Codec {
	return &Codec{params: DefaultParams}
}

// Params returns the codec params.
func (c *Codec) Params() Params {
	return c.params
}

// Compute computes the signature of a decoded image.
func (c *Codec) Compute(img image.Image) (*Signature, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImage, bounds.Dx(), bounds.Dy())
	}

	grid := c.params.Grid
	resized := resizeImage(img, grid)
	channels := toYIQ(resized)

	sig := &Signature{Params: c.params}
	for ch := range NumChannels {
		sig.Averages[ch] = mean(channels[ch])
		haar2D(channels[ch], grid)
		sig.Coefs[ch] = largestCoefs(channels[ch], c.params.NumCoefs, noiseFloor(grid))
	}
	return sig, nil
}

// resizeImage scales an image onto a square 16-bit canvas.
func resizeImage(img image.Image, size int) *image.RGBA64 {
	dst := image.NewRGBA64(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toYIQ splits an image into row-major Y, I and Q planes.
func toYIQ(img *image.RGBA64) [NumChannels][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var planes [NumChannels][]float64
	for ch := range planes {
		planes[ch] = make([]float64, width*height)
	}

	for y := range height {
		for x := range width {
			px := img.RGBA64At(bounds.Min.X+x, bounds.Min.Y+y)
			r := float64(px.R) / 0xffff
			g := float64(px.G) / 0xffff
			b := float64(px.B) / 0xffff

			i := y*width + x
			planes[ChannelY][i] = 0.299*r + 0.587*g + 0.114*b
			planes[ChannelI][i] = 0.5959*r - 0.2746*g - 0.3213*b
			planes[ChannelQ][i] = 0.2115*r - 0.5227*g + 0.3112*b
		}
	}
	return planes
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// haar2D applies the standard 2-D Haar decomposition in place: a full
// transform of every row followed by a full transform of every column.
func haar2D(data []float64, size int) {
	tmp := make([]float64, size)
	line := make([]float64, size)

	for row := range size {
		haar1D(data[row*size:(row+1)*size], tmp)
	}
	for col := range size {
		for row := range size {
			line[row] = data[row*size+col]
		}
		haar1D(line, tmp)
		for row := range size {
			data[row*size+col] = line[row]
		}
	}
}

// haar1D transforms a power-of-two length vector with orthonormal scaling.
func haar1D(v, tmp []float64) {
	for h := len(v) / 2; h >= 1; h /= 2 {
		for k := range h {
			a, b := v[2*k], v[2*k+1]
			tmp[k] = (a + b) / math.Sqrt2
			tmp[h+k] = (a - b) / math.Sqrt2
		}
		copy(v[:2*h], tmp[:2*h])
	}
}

// largestCoefs returns the signed positions of the n largest-magnitude AC
// coefficients above floor, skipping the DC term at position 0.
func largestCoefs(data []float64, n int, floor float64) []int32 {
	positions := make([]int32, 0, len(data)-1)
	for pos := 1; pos < len(data); pos++ {
		if math.Abs(data[pos]) > floor {
			positions = append(positions, int32(pos))
		}
	}

	slices.SortFunc(positions, func(a, b int32) int {
		if c := cmp.Compare(math.Abs(data[b]), math.Abs(data[a])); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	if len(positions) > n {
		positions = positions[:n]
	}
	coefs := make([]int32, len(positions))
	for i, pos := range positions {
		if data[pos] < 0 {
			coefs[i] = -pos
		} else {
			coefs[i] = pos
		}
	}
	return coefs
}
