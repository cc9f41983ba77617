package dedup

import (
	"log/slog"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

// Reference is the last kept frame for one display, reduced to what the
// duplicate decision needs. The caller owns reference lifetime: it replaces
// the reference whenever a frame is kept.
type Reference struct {
	Width  int
	Height int
	Hash   uint64
}

// Decision is the outcome of evaluating one candidate frame.
type Decision struct {
	Keep       bool
	Hash       uint64
	Similarity float64 // -1 when no comparison was made
}

// ShouldKeep decides whether candidate survives deduplication against ref.
//
//   - ref == nil (first frame for a display): always keep.
//   - dimension mismatch: always keep, a resolution change is never a
//     duplicate.
//   - threshold >= 1.0 disables deduplication: even a bit-identical frame
//     passes.
//   - otherwise keep iff similarity < threshold.
//
// Hash failures fail open: a frame we cannot hash is kept.
func ShouldKeep(candidate *frame.Frame, ref *Reference, threshold float64) Decision {
	h, err := Hash(candidate)
	if err != nil {
		slog.Warn("frame hash failed, keeping frame", "display", candidate.DisplayID, "error", err)
		return Decision{Keep: true, Similarity: -1}
	}

	if ref == nil {
		return Decision{Keep: true, Hash: h, Similarity: -1}
	}
	if candidate.Width != ref.Width || candidate.Height != ref.Height {
		return Decision{Keep: true, Hash: h, Similarity: -1}
	}

	sim := Similarity(h, ref.Hash)
	if threshold >= 1.0 {
		return Decision{Keep: true, Hash: h, Similarity: sim}
	}
	return Decision{Keep: sim < threshold, Hash: h, Similarity: sim}
}

// NewReference builds the stored reference for a kept frame.
func NewReference(f *frame.Frame, hash uint64) *Reference {
	return &Reference{Width: f.Width, Height: f.Height, Hash: hash}
}
