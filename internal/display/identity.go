// Package display derives stable identifiers for physical displays.
//
// The OS hands out volatile runtime display handles that change across
// reboots and hot-plug events. Persisted data needs an id that follows the
// monitor hardware instead, so we fingerprint the panel's EDID identity and
// hash it.
package display

import (
	"fmt"
	"hash/fnv"
)

// HardwareID is the EDID identity triple reported for a display. All three
// fields zero means the OS could not read any hardware identity.
type HardwareID struct {
	Vendor uint32
	Model  uint32
	Serial uint32
}

// StableID maps a display to a deterministic 31-bit identifier, never 0.
//
// Fingerprint selection:
//   - full hardware identity with a serial: "vendor:model:serial"
//   - serial reported as zero (common on cheap panels): fall back to
//     "vendor:model:WxH" to keep identical-model displays apart
//   - no hardware identity at all: fingerprint the runtime handle; the id is
//     then only stable for the current session, which is a documented
//     limitation of such displays
//
// The fingerprint is hashed with 32-bit FNV-1a, masked to 31 bits so it fits
// signed 32-bit storage columns, and 0 is remapped to 1 because 0 is
// reserved as "unknown".
func StableID(hw HardwareID, pixelWidth, pixelHeight int, runtimeID uint32) uint32 {
	var fingerprint string
	switch {
	case hw.Vendor == 0 && hw.Model == 0 && hw.Serial == 0:
		fingerprint = fmt.Sprintf("runtime:%d", runtimeID)
	case hw.Serial != 0:
		fingerprint = fmt.Sprintf("%d:%d:%d", hw.Vendor, hw.Model, hw.Serial)
	default:
		fingerprint = fmt.Sprintf("%d:%d:%dx%d", hw.Vendor, hw.Model, pixelWidth, pixelHeight)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(fingerprint))
	id := h.Sum32() & 0x7FFFFFFF
	if id == 0 {
		id = 1
	}
	return id
}
