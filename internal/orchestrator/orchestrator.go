package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/dedup"
	"github.com/GriffinCanCode/framewatch/internal/frame"
	"github.com/GriffinCanCode/framewatch/internal/metadata"
	"github.com/GriffinCanCode/framewatch/internal/resilience"
	"github.com/GriffinCanCode/framewatch/internal/screen"
	"github.com/GriffinCanCode/framewatch/internal/trace"
)

var (
	// ErrAlreadyCapturing is returned by Start while a session is running.
	ErrAlreadyCapturing = errors.New("already capturing")
	// ErrNotCapturing is returned by operations that need a running session.
	ErrNotCapturing = errors.New("not capturing")
	// ErrNoDisplays is returned when startup finds nothing to capture.
	ErrNoDisplays = errors.New("no displays connected")
)

// Config is the runtime capture policy. The zero value is filled in by
// withDefaults; callers only set what they care about.
type Config struct {
	Interval              time.Duration
	DedupEnabled          bool
	DedupThreshold        float64
	ExcludedApps          []string // bundle ids never forwarded
	AllDisplays           bool     // capture every display vs the active one
	MaxDimension          int      // downscale cap in pixels, 0 = none
	CaptureOnWindowChange bool
	IncludeBrowserURL     bool
	BatchWindow           time.Duration // multi-display cycle window
	Debounce              time.Duration // window-change trigger debounce
	SettleDelay           time.Duration // wait before settle polling starts
	SettleInterval        time.Duration
	SettleTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = DefaultDedupThreshold
	}
	if c.BatchWindow <= 0 {
		c.BatchWindow = DefaultBatchWindow
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.SettleInterval <= 0 {
		c.SettleInterval = DefaultSettleInterval
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = DefaultSettleTimeout
	}
	return c
}

// Callbacks are hooks into the hosting layer.
type Callbacks struct {
	// OnPermissionWarning fires at most once per session when an
	// accessibility query is denied at runtime.
	OnPermissionWarning func()
	// OnStoppedUnexpectedly fires when the OS capture mechanism stopped
	// outside of Stop.
	OnStoppedUnexpectedly func()
}

// Orchestrator owns the capture sources, merges their raw frames, assigns
// canonical cycle timestamps, enriches metadata, deduplicates per display,
// and republishes surviving frames on a single ordered stream.
type Orchestrator struct {
	platform  screen.Platform
	resolver  *metadata.Resolver
	callbacks Callbacks
	stats     *statsTracker

	mu  sync.Mutex
	cur *session
}

// New wires an orchestrator with its OS collaborators injected.
func New(platform screen.Platform, resolver *metadata.Resolver, callbacks Callbacks) *Orchestrator {
	return &Orchestrator{
		platform:  platform,
		resolver:  resolver,
		callbacks: callbacks,
		stats:     newStatsTracker(),
	}
}

// session is the state of one capturing period. All fields below the
// channels are owned by the run goroutine; nothing else touches them.
type session struct {
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc
	multi  bool // immutable for the session lifetime

	raw    chan *frame.Frame
	out    chan *frame.Frame
	cmds   chan func()
	events <-chan screen.Event
	unsub  func()

	wg       sync.WaitGroup
	stopOnce sync.Once

	// run-loop state
	cfg              Config
	sources          map[uint32]*Source
	dedupRefs        map[uint32]*dedup.Reference
	batcher          *cycleBatcher
	focusedDisplay   uint32
	lastTitle        string
	lastBundle       string
	lastTriggerAt    time.Time
	permissionWarned bool
	switching        bool
}

// Start verifies permission, spins up one source per display (or one for the
// active display in single-display mode), and begins processing. It fails
// fast: no sources are left running on error.
func (o *Orchestrator) Start(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur != nil {
		return ErrAlreadyCapturing
	}
	if !o.platform.Permissions.HasCapturePermission() {
		return screen.ErrPermissionDenied
	}

	displays, err := o.startupDisplays(ctx, cfg)
	if err != nil {
		return err
	}
	if len(displays) == 0 {
		return ErrNoDisplays
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		o:         o,
		ctx:       sctx,
		cancel:    cancel,
		multi:     cfg.AllDisplays,
		cfg:       cfg,
		raw:       make(chan *frame.Frame, RawChannelBuffer),
		out:       make(chan *frame.Frame, OutputChannelBuffer),
		cmds:      make(chan func(), CommandChannelBuffer),
		sources:   make(map[uint32]*Source, len(displays)),
		dedupRefs: make(map[uint32]*dedup.Reference),
		batcher:   newCycleBatcher(cfg.BatchWindow),
	}
	s.events, s.unsub = o.platform.Notifier.Subscribe()

	for _, d := range displays {
		src := NewSource(d, o.platform.Capturer, s.raw)
		src.Start(sctx, cfg.Interval, cfg.MaxDimension)
		s.sources[d.StableID] = src
	}
	s.focusedDisplay = displays[0].StableID
	if cfg.AllDisplays {
		if d, err := o.platform.Displays.ActiveFocused(ctx); err == nil {
			s.focusedDisplay = d.StableID
		}
	}

	o.stats.reset()
	s.wg.Add(1)
	go s.run()
	o.cur = s
	return nil
}

func (o *Orchestrator) startupDisplays(ctx context.Context, cfg Config) ([]frame.Display, error) {
	if cfg.AllDisplays {
		displays, err := o.platform.Displays.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerating displays: %w", err)
		}
		return displays, nil
	}
	d, err := o.platform.Displays.ActiveFocused(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving active display: %w", err)
	}
	return []frame.Display{d}, nil
}

// Stop shuts the session down: all sources, observation, and per-display
// state; the output stream is closed. No-op when already stopped.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	s := o.cur
	o.cur = nil
	o.mu.Unlock()
	if s == nil {
		return
	}
	s.shutdown()
	s.wg.Wait()
}

// UpdateConfig applies a new policy to the running session. A display-mode
// change cannot be applied in place and performs a full stop-then-restart.
func (o *Orchestrator) UpdateConfig(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()

	o.mu.Lock()
	s := o.cur
	o.mu.Unlock()
	if s == nil {
		return ErrNotCapturing
	}

	if cfg.AllDisplays != s.multi {
		o.Stop()
		return o.Start(ctx, cfg)
	}

	done := make(chan struct{})
	select {
	case s.cmds <- func() {
		s.applyConfig(cfg)
		close(done)
	}:
	case <-s.ctx.Done():
		return ErrNotCapturing
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return ErrNotCapturing
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frames returns the output stream of the current session. It is closed on
// stop; call after Start.
func (o *Orchestrator) Frames() <-chan *frame.Frame {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cur == nil {
		return nil
	}
	return o.cur.out
}

// IsCapturing reports whether a session is running.
func (o *Orchestrator) IsCapturing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cur != nil
}

// Statistics returns a snapshot of the running counters.
func (o *Orchestrator) Statistics() Stats {
	return o.stats.snapshot()
}

// AvailableDisplays enumerates currently connected displays.
func (o *Orchestrator) AvailableDisplays(ctx context.Context) ([]frame.Display, error) {
	return o.platform.Displays.List(ctx)
}

// detach clears o.cur if it still points at s; used by the
// stopped-externally path, which may race a concurrent Stop.
func (o *Orchestrator) detach(s *session) {
	o.mu.Lock()
	if o.cur == s {
		o.cur = nil
	}
	o.mu.Unlock()
}

// shutdown stops sources and observation exactly once; safe to call from
// both Stop and the run loop.
func (s *session) shutdown() {
	s.stopOnce.Do(func() {
		for _, src := range s.sources {
			src.Stop()
		}
		s.unsub()
		s.cancel()
	})
}

// run is the single writer for all pipeline state: frames, platform events,
// and commands are serialized through this loop in arrival order.
func (s *session) run() {
	defer s.wg.Done()
	defer close(s.out)

	log := trace.Logger(s.ctx)
	log.Info("capture started", "displays", len(s.sources), "all_displays", s.multi)

	for {
		select {
		case <-s.ctx.Done():
			log.Info("capture stopped")
			return
		case f := <-s.raw:
			s.processFrame(f)
		case ev, ok := <-s.events:
			if !ok {
				s.events = nil
				continue
			}
			s.handleEvent(ev)
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

func (s *session) applyConfig(cfg Config) {
	s.cfg = cfg
	s.batcher.setWindow(cfg.BatchWindow)
	for _, src := range s.sources {
		src.UpdateConfig(cfg.Interval, cfg.MaxDimension)
	}
}

// processFrame runs the per-frame pipeline: timestamp normalization,
// metadata enrichment, app exclusion, deduplication, forwarding.
func (s *session) processFrame(f *frame.Frame) {
	arrival := time.Now()
	s.o.stats.frameSeen(f.ByteSize())

	if s.multi {
		f.Timestamp = s.batcher.canonical(f.DisplayID, arrival)
	}

	s.enrich(f)

	if s.isExcluded(f.Meta) {
		s.o.stats.excluded()
		return
	}

	if s.cfg.DedupEnabled {
		key := s.dedupKey(f)
		d := dedup.ShouldKeep(f, s.dedupRefs[key], s.cfg.DedupThreshold)
		if !d.Keep {
			s.o.stats.deduped()
			trace.Logger(s.ctx).Debug("frame deduplicated",
				"display", f.DisplayID, "similarity", d.Similarity)
			return
		}
		s.dedupRefs[key] = dedup.NewReference(f, d.Hash)
	}

	select {
	case s.out <- f:
		s.o.stats.forwarded(f.Timestamp)
	case <-s.ctx.Done():
	}
}

// dedupKey is the stable display id in multi-display mode and a single
// global slot otherwise.
func (s *session) dedupKey(f *frame.Frame) uint32 {
	if s.multi {
		return f.DisplayID
	}
	return 0
}

func (s *session) isExcluded(m *frame.Metadata) bool {
	return m.HasApp() && slices.Contains(s.cfg.ExcludedApps, m.AppBundleID)
}

// enrich attaches window/app context. Single-display mode always asks the
// frontmost query and is always focused; multi-display mode uses the cached
// per-display window map, falling back to the frontmost query only for an
// empty focused display.
func (s *session) enrich(f *frame.Frame) {
	if !s.multi {
		meta := s.frontmostMeta()
		if meta == nil {
			meta = &frame.Metadata{}
		}
		meta.DisplayID = f.DisplayID
		meta.IsFocused = true
		f.Meta = meta
		return
	}

	byDisplay, err := s.o.resolver.TopWindowPerDisplay(s.ctx)
	if err != nil {
		s.maybePermissionWarning(err)
	}

	focused := f.DisplayID == s.focusedDisplay
	var meta *frame.Metadata
	if cached := byDisplay[f.DisplayID]; cached != nil {
		cp := *cached // the resolver cache is shared; never mutate it
		meta = &cp
	} else if focused {
		meta = s.frontmostMeta()
	}
	if meta == nil {
		meta = &frame.Metadata{}
	}
	meta.DisplayID = f.DisplayID
	meta.IsFocused = focused
	f.Meta = meta
}

func (s *session) frontmostMeta() *frame.Metadata {
	meta, err := s.o.platform.Frontmost.AppInfo(s.ctx, s.cfg.IncludeBrowserURL)
	if err != nil {
		s.maybePermissionWarning(err)
		return nil
	}
	return meta
}

// maybePermissionWarning surfaces an accessibility denial once per session;
// everything else is just logged.
func (s *session) maybePermissionWarning(err error) {
	if errors.Is(err, screen.ErrAccessibilityDenied) {
		if !s.permissionWarned {
			s.permissionWarned = true
			trace.Logger(s.ctx).Warn("accessibility permission denied, metadata degraded")
			if cb := s.o.callbacks.OnPermissionWarning; cb != nil {
				go cb()
			}
		}
		return
	}
	trace.Logger(s.ctx).Debug("metadata query failed", "error", err)
}

func (s *session) handleEvent(ev screen.Event) {
	switch ev.Kind {
	case screen.EventTopologyChanged:
		if s.multi {
			s.reconcileDisplays()
		}
	case screen.EventDisplayFocusChanged:
		s.handleFocusChange(ev.Display)
	case screen.EventWindowChanged:
		s.handleWindowChange()
	case screen.EventCaptureStopped:
		trace.Logger(s.ctx).Warn("capture mechanism stopped externally")
		s.o.detach(s)
		s.shutdown()
		if cb := s.o.callbacks.OnStoppedUnexpectedly; cb != nil {
			go cb()
		}
	}
}

// reconcileDisplays handles hot-plug: start sources for new displays, tear
// down state for removed ones. Per-display failures are logged, never fatal.
func (s *session) reconcileDisplays() {
	log := trace.Logger(s.ctx)
	displays, err := s.o.platform.Displays.List(s.ctx)
	if err != nil {
		log.Warn("display re-enumeration failed", "error", err)
		return
	}

	present := make(map[uint32]struct{}, len(displays))
	for _, d := range displays {
		present[d.StableID] = struct{}{}
		if _, ok := s.sources[d.StableID]; !ok {
			src := NewSource(d, s.o.platform.Capturer, s.raw)
			src.Start(s.ctx, s.cfg.Interval, s.cfg.MaxDimension)
			s.sources[d.StableID] = src
			log.Info("display attached", "display", d.StableID, "name", d.Name)
		}
	}

	for id, src := range s.sources {
		if _, ok := present[id]; !ok {
			src.Stop()
			delete(s.sources, id)
			delete(s.dedupRefs, id)
			s.batcher.dropDisplay(id)
			log.Info("display detached", "display", id)
		}
	}

	s.o.resolver.Invalidate()
}

// handleFocusChange updates the focused-display flag in multi-display mode;
// in single-display mode it rebinds the sole source to the new display,
// reusing the same output channel.
func (s *session) handleFocusChange(d frame.Display) {
	if s.multi {
		s.focusedDisplay = d.StableID
		return
	}
	if s.switching {
		return
	}
	s.switching = true
	defer func() { s.switching = false }()

	old, ok := s.sources[s.focusedDisplay]
	if ok && old.Display().StableID == d.StableID {
		return
	}
	if ok {
		old.Stop()
		delete(s.sources, s.focusedDisplay)
	}

	src := NewSource(d, s.o.platform.Capturer, s.raw)
	src.Start(s.ctx, s.cfg.Interval, s.cfg.MaxDimension)
	s.sources[d.StableID] = src
	s.focusedDisplay = d.StableID
	trace.Logger(s.ctx).Info("switched capture display", "display", d.StableID, "name", d.Name)
}

// handleWindowChange is the fast path: a foreground window change can
// warrant a fresher frame than the next scheduled tick.
func (s *session) handleWindowChange() {
	if !s.cfg.CaptureOnWindowChange {
		return
	}
	info := s.frontmostMeta()
	if info == nil {
		return
	}
	if s.relatedTitle(info) {
		return
	}
	if time.Since(s.lastTriggerAt) < s.cfg.Debounce {
		return
	}

	// Record the trigger before settling so the debounce window is measured
	// between decisions, not between captures.
	s.lastTriggerAt = time.Now()
	s.lastTitle = info.WindowTitle
	s.lastBundle = info.AppBundleID

	s.settleWindow()
	for _, src := range s.sources {
		src.CaptureNow()
	}
}

// relatedTitle suppresses cosmetic title changes: same app, and the titles
// contain each other once an unread-count style " (...)" suffix is stripped,
// so "Inbox (3)" -> "Inbox (4)" does not re-capture.
func (s *session) relatedTitle(info *frame.Metadata) bool {
	if info.AppBundleID == "" || info.AppBundleID != s.lastBundle {
		return false
	}
	a, b := trimCountSuffix(info.WindowTitle), trimCountSuffix(s.lastTitle)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func trimCountSuffix(title string) string {
	t := strings.TrimSpace(title)
	if strings.HasSuffix(t, ")") {
		if i := strings.LastIndex(t, " ("); i > 0 {
			t = t[:i]
		}
	}
	return t
}

// settleWindow waits for the window-activation transition to finish: poll
// the frontmost window until two consecutive reads agree or the bounded
// window elapses.
func (s *session) settleWindow() {
	var last string
	_ = resilience.Poll(s.ctx, resilience.PollConfig{
		InitialDelay: s.cfg.SettleDelay,
		Interval:     s.cfg.SettleInterval,
		Timeout:      s.cfg.SettleTimeout,
	}, func() (bool, error) {
		meta, err := s.o.platform.Frontmost.AppInfo(s.ctx, false)
		if err != nil || meta == nil {
			return true, nil // settle is best effort
		}
		key := meta.AppBundleID + "\x00" + meta.WindowTitle
		if key == last {
			return true, nil
		}
		last = key
		return false, nil
	})
}
