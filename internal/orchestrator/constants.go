// Package orchestrator coordinates capture sources, deduplication, and
// metadata enrichment into a single frame stream.
package orchestrator

import "time"

// Orchestrator configuration defaults
const (
	// DefaultInterval between scheduled captures per display.
	DefaultInterval = 1 * time.Second

	// DefaultDedupThreshold is the similarity cutoff above which a frame is
	// discarded as a near-duplicate.
	DefaultDedupThreshold = 0.98

	// DefaultBatchWindow groups near-simultaneous multi-display captures
	// into one cycle. Chosen to exceed inter-display polling jitter without
	// bleeding into the next tick.
	DefaultBatchWindow = 350 * time.Millisecond

	// DefaultDebounce suppresses rapid repeated window-change captures.
	DefaultDebounce = 200 * time.Millisecond

	// Window-activation settle loop bounds.
	DefaultSettleDelay    = 120 * time.Millisecond
	DefaultSettleInterval = 40 * time.Millisecond
	DefaultSettleTimeout  = 450 * time.Millisecond

	// Channel buffer sizes
	RawChannelBuffer     = 16
	OutputChannelBuffer  = 64
	CommandChannelBuffer = 8
)
