// Package dedup implements perceptual-hash based near-duplicate detection
// for captured frames.
package dedup

import (
	"math/bits"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

// HashBits is the width of the difference hash.
const HashBits = 64

// Hash computes the 64-bit difference hash of a frame: the image is
// downscaled to a 9x8 grayscale grid and each bit records the brightness
// relation of two horizontally adjacent pixels. Identical input always
// yields the identical hash.
func Hash(f *frame.Frame) (uint64, error) {
	h, err := goimagehash.DifferenceHash(f.Image())
	if err != nil {
		return 0, err
	}
	return h.GetHash(), nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similarity maps the Hamming distance of two hashes into [0,1], where 1.0
// means bit-identical hashes.
func Similarity(a, b uint64) float64 {
	return 1.0 - float64(Distance(a, b))/float64(HashBits)
}
