package frame

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func TestFromImageRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{10, 20, 30, 255})

	ts := time.Now()
	f := FromImage(img, 7, ts)

	if f.Width != 4 || f.Height != 2 {
		t.Errorf("dimensions = %dx%d, want 4x2", f.Width, f.Height)
	}
	if f.DisplayID != 7 {
		t.Errorf("display id = %d, want 7", f.DisplayID)
	}
	if !f.Timestamp.Equal(ts) {
		t.Error("timestamp not preserved")
	}
	// RGBA input must be adopted without copying.
	if &f.Pixels[0] != &img.Pix[0] {
		t.Error("RGBA pixel buffer should be shared, not copied")
	}
}

func TestFromImageConvertsOtherModels(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 3))
	img.SetGray(1, 1, color.Gray{200})

	f := FromImage(img, 1, time.Now())
	if f.Width != 3 || f.Height != 3 {
		t.Fatalf("dimensions = %dx%d, want 3x3", f.Width, f.Height)
	}
	got := f.Image().RGBAAt(1, 1)
	if got.R != 200 || got.G != 200 || got.B != 200 {
		t.Errorf("converted pixel = %+v, want gray 200", got)
	}
}

func TestFromImageNormalizesOffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(10, 10, 14, 12))
	f := FromImage(img, 1, time.Now())
	if f.Width != 4 || f.Height != 2 {
		t.Errorf("dimensions = %dx%d, want 4x2", f.Width, f.Height)
	}
	if b := f.Image().Bounds(); b.Min.X != 0 || b.Min.Y != 0 {
		t.Errorf("bounds should start at origin, got %v", b)
	}
}

func TestImageZeroCopy(t *testing.T) {
	f := FromImage(image.NewRGBA(image.Rect(0, 0, 2, 2)), 1, time.Now())
	view := f.Image()
	view.Set(0, 0, color.RGBA{255, 0, 0, 255})
	if f.Pixels[0] != 255 {
		t.Error("Image() should be a view over the frame's pixel buffer")
	}
}

func TestByteSize(t *testing.T) {
	f := FromImage(image.NewRGBA(image.Rect(0, 0, 10, 5)), 1, time.Now())
	if got := f.ByteSize(); got != 10*5*4 {
		t.Errorf("ByteSize = %d, want %d", got, 10*5*4)
	}
}

func TestMetadataHasApp(t *testing.T) {
	var nilMeta *Metadata
	if nilMeta.HasApp() {
		t.Error("nil metadata has no app")
	}
	if (&Metadata{WindowTitle: "untitled"}).HasApp() {
		t.Error("title alone is not an app")
	}
	if !(&Metadata{AppBundleID: "com.apple.Safari"}).HasApp() {
		t.Error("bundle id means an app was resolved")
	}
}
