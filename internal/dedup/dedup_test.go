package dedup

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

// gradientFrame builds a horizontal brightness ramp; dHash is fully
// determined by such content.
func gradientFrame(w, h int) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / w)
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return frame.FromImage(img, 1, time.Now())
}

// noisyFrame is a checkered pattern substantially different from a gradient.
func noisyFrame(w, h int) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x/8+y/8)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, 255 - v, v, 255})
		}
	}
	return frame.FromImage(img, 1, time.Now())
}

func TestHashDeterministic(t *testing.T) {
	a := gradientFrame(200, 100)
	b := gradientFrame(200, 100)

	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ha != hb {
		t.Errorf("identical content produced different hashes: %x vs %x", ha, hb)
	}
}

func TestHashDistinguishesContent(t *testing.T) {
	ha, err := Hash(gradientFrame(200, 100))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	hb, err := Hash(noisyFrame(200, 100))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ha == hb {
		t.Error("substantially different content produced identical hashes")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b uint64
		want int
	}{
		{0, 0, 0},
		{0xFFFFFFFFFFFFFFFF, 0, 64},
		{0b1010, 0b0101, 4},
		{1, 0, 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%x, %x) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarityBounds(t *testing.T) {
	if got := Similarity(42, 42); got != 1.0 {
		t.Errorf("identical hashes: similarity = %v, want 1.0", got)
	}
	if got := Similarity(0, 0xFFFFFFFFFFFFFFFF); got != 0.0 {
		t.Errorf("complementary hashes: similarity = %v, want 0.0", got)
	}
	if got := Similarity(0, 1); got != 1.0-1.0/64.0 {
		t.Errorf("one-bit distance: similarity = %v", got)
	}
}

func TestShouldKeepFirstFrame(t *testing.T) {
	d := ShouldKeep(gradientFrame(200, 100), nil, 0.0)
	if !d.Keep {
		t.Error("first frame must always be kept")
	}
	if d.Hash == 0 {
		t.Error("decision should carry the computed hash")
	}
}

func TestShouldKeepDimensionMismatch(t *testing.T) {
	f := gradientFrame(200, 100)
	ref := &Reference{Width: 100, Height: 50, Hash: 0}
	if d := ShouldKeep(f, ref, 0.0); !d.Keep {
		t.Error("dimension mismatch must be kept regardless of threshold")
	}
}

func TestShouldKeepDropsIdenticalFrame(t *testing.T) {
	a := gradientFrame(200, 100)
	b := gradientFrame(200, 100)

	first := ShouldKeep(a, nil, 0.98)
	ref := NewReference(a, first.Hash)

	d := ShouldKeep(b, ref, 0.98)
	if d.Keep {
		t.Error("pixel-identical frame should be discarded at threshold 0.98")
	}
	if d.Similarity != 1.0 {
		t.Errorf("identical frames: similarity = %v, want 1.0", d.Similarity)
	}
}

func TestShouldKeepDifferentContent(t *testing.T) {
	a := gradientFrame(200, 100)
	b := noisyFrame(200, 100)

	first := ShouldKeep(a, nil, 0.98)
	ref := NewReference(a, first.Hash)

	if d := ShouldKeep(b, ref, 0.98); !d.Keep {
		t.Errorf("substantially different frame should survive, similarity=%v", d.Similarity)
	}
}

// Threshold 1.0 disables deduplication entirely: even an exact duplicate
// passes through.
func TestShouldKeepThresholdOneDisablesDedup(t *testing.T) {
	a := gradientFrame(200, 100)
	b := gradientFrame(200, 100)

	first := ShouldKeep(a, nil, 1.0)
	ref := NewReference(a, first.Hash)

	d := ShouldKeep(b, ref, 1.0)
	if !d.Keep {
		t.Error("exact duplicate must be kept at threshold 1.0")
	}
	if d.Similarity != 1.0 {
		t.Errorf("similarity = %v, want 1.0", d.Similarity)
	}
}

func TestShouldKeepThresholdZeroDiscardsAll(t *testing.T) {
	a := gradientFrame(200, 100)
	b := noisyFrame(200, 100)

	first := ShouldKeep(a, nil, 0.0)
	ref := NewReference(a, first.Hash)

	if d := ShouldKeep(b, ref, 0.0); d.Keep {
		t.Errorf("threshold 0.0 should discard everything after the first frame, similarity=%v", d.Similarity)
	}
}

// Raising the threshold can only turn a keep into a discard, never the
// reverse (below the disable point).
func TestShouldKeepThresholdMonotonic(t *testing.T) {
	a := gradientFrame(200, 100)
	b := noisyFrame(200, 100)

	first := ShouldKeep(a, nil, 0.5)
	ref := NewReference(a, first.Hash)

	prevKeep := true
	for _, threshold := range []float64{0.99, 0.9, 0.7, 0.5, 0.3, 0.1, 0.01} {
		d := ShouldKeep(b, ref, threshold)
		if d.Keep && !prevKeep {
			t.Errorf("keep flipped back on at threshold %v", threshold)
		}
		prevKeep = d.Keep
	}
}

func TestNewReference(t *testing.T) {
	f := gradientFrame(200, 100)
	ref := NewReference(f, 0xDEAD)
	if ref.Width != 200 || ref.Height != 100 || ref.Hash != 0xDEAD {
		t.Errorf("unexpected reference: %+v", ref)
	}
}
