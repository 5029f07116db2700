package search

import (
	"image"
	"image/color"
	"testing"

	"github.com/kozaktomas/photo-dupes/internal/database/mock"
	"github.com/kozaktomas/photo-dupes/internal/fingerprint"
)

func solidImage(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// sceneImage draws a gradient with a block and a disc; variant moves the
// shapes and shifts the brightness.
func sceneImage(variant int) *image.RGBA {
	const w, h = 96, 72
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	cx, cy, radius := w*2/3-variant%20, h/3+variant%10, 14
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			base := 20 + (x*120)/w + (y*60)/h + variant
			c := color.RGBA{uint8(min(base, 255)), uint8(min(base, 255)), uint8(min(base, 255)), 255}
			if x > w/8+variant%15 && x < w/3+variant%15 && y > h/2 && y < h*7/8 {
				c = color.RGBA{180, 40, 30, 255}
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy < radius*radius {
				c = color.RGBA{30, 60, 170, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func computeSignature(t *testing.T, img image.Image) *fingerprint.Signature {
	t.Helper()
	sig, err := fingerprint.DefaultCodec().Compute(img)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	return sig
}

// testCorpus stores signatures for ids 1..6:
// 1 and 2 identical scenes, 3 a brighter scene, 4 a moved scene,
// 5 solid black, 6 solid white.
func testCorpus(t *testing.T) (*mock.MockSignatureStore, map[int64]*fingerprint.Signature) {
	t.Helper()
	sigs := map[int64]*fingerprint.Signature{
		1: computeSignature(t, sceneImage(0)),
		2: computeSignature(t, sceneImage(0)),
		3: computeSignature(t, sceneImage(8)),
		4: computeSignature(t, sceneImage(37)),
		5: computeSignature(t, solidImage(color.Black)),
		6: computeSignature(t, solidImage(color.White)),
	}
	store := mock.NewMockSignatureStore()
	for id, sig := range sigs {
		store.AddSignature(id, sig)
	}
	return store, sigs
}

type recordingProgress struct {
	totals    []int
	processed []int
	onProcess func(n int)
}

func (p *recordingProgress) TotalNumberToScan(total int) {
	p.totals = append(p.totals, total)
}

func (p *recordingProgress) ProcessedNumber(n int) {
	p.processed = append(p.processed, n)
	if p.onProcess != nil {
		p.onProcess(n)
	}
}
