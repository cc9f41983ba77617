// Package frame defines the data types flowing through the capture pipeline.
package frame

import (
	"image"
	"time"
)

// Metadata is the window/application context attached to a frame during
// enrichment. A nil *Metadata on a frame means nothing could be resolved
// for its display (e.g. an empty desktop).
type Metadata struct {
	AppBundleID string
	AppName     string
	WindowTitle string
	BrowserURL  string // empty when not resolved or not a browser
	DisplayID   uint32 // stable display id, see internal/display
	IsFocused   bool
}

// HasApp reports whether an owning application was resolved.
func (m *Metadata) HasApp() bool {
	return m != nil && m.AppBundleID != ""
}

// Frame is one rasterized display snapshot. Pixels is an RGBA buffer with
// the given Stride; it is owned by the frame and must not be mutated after
// the frame is handed to the pipeline.
type Frame struct {
	Timestamp time.Time // canonical capture-cycle timestamp once normalized
	DisplayID uint32    // stable display id
	Width     int
	Height    int
	Stride    int
	Pixels    []byte
	Meta      *Metadata
}

// Image returns a zero-copy image.RGBA view over the pixel buffer.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pixels,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// ByteSize returns the size of the pixel buffer in bytes.
func (f *Frame) ByteSize() int {
	return len(f.Pixels)
}

// FromImage builds a frame from a decoded image, converting to RGBA when the
// decoder produced another color model.
func FromImage(img image.Image, displayID uint32, ts time.Time) *Frame {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
			}
		}
	}
	return &Frame{
		Timestamp: ts,
		DisplayID: displayID,
		Width:     rgba.Rect.Dx(),
		Height:    rgba.Rect.Dy(),
		Stride:    rgba.Stride,
		Pixels:    rgba.Pix,
	}
}

// Display describes one connected display as reported by the OS.
type Display struct {
	RuntimeID uint32 // volatile OS handle, valid for this session only
	StableID  uint32 // hardware-derived id, see internal/display
	Name      string
	Bounds    image.Rectangle // pixel bounds in global desktop coordinates
}

// WindowSnapshot is one entry of the on-screen window list, front-to-back
// ordered as delivered by the OS.
type WindowSnapshot struct {
	OwnerPID int
	Title    string
	Bounds   image.Rectangle
	Alpha    float64
}
