package metadata

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

type fakeDisplays struct {
	displays []frame.Display
	calls    int
}

func (f *fakeDisplays) List(ctx context.Context) ([]frame.Display, error) {
	f.calls++
	return f.displays, nil
}

func (f *fakeDisplays) ActiveFocused(ctx context.Context) (frame.Display, error) {
	if len(f.displays) == 0 {
		return frame.Display{}, errors.New("no displays")
	}
	return f.displays[0], nil
}

type fakeWindows struct {
	windows []frame.WindowSnapshot
	owners  map[int][2]string // pid -> bundle, name
	err     error
	calls   int
}

func (f *fakeWindows) ListOnScreen(ctx context.Context) ([]frame.WindowSnapshot, error) {
	f.calls++
	return f.windows, f.err
}

func (f *fakeWindows) OwnerInfo(ctx context.Context, pid int) (string, string, error) {
	o, ok := f.owners[pid]
	if !ok {
		return "", "", errors.New("unknown pid")
	}
	return o[0], o[1], nil
}

var (
	displayA = frame.Display{StableID: 101, Name: "A", Bounds: image.Rect(0, 0, 1920, 1080)}
	displayB = frame.Display{StableID: 202, Name: "B", Bounds: image.Rect(1920, 0, 3840, 1080)}
)

func newTestResolver(d *fakeDisplays, w *fakeWindows) *Resolver {
	return NewResolver(d, w, time.Hour) // long TTL; tests control time explicitly
}

func TestTopWindowPerDisplayAssignsByOverlap(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA, displayB}}
	w := &fakeWindows{
		windows: []frame.WindowSnapshot{
			{OwnerPID: 10, Title: "Editor", Bounds: image.Rect(100, 100, 1000, 800), Alpha: 1},
			{OwnerPID: 20, Title: "Browser", Bounds: image.Rect(2000, 100, 3000, 800), Alpha: 1},
		},
		owners: map[int][2]string{
			10: {"com.example.editor", "Editor"},
			20: {"com.example.browser", "Browser"},
		},
	}

	got, err := newTestResolver(d, w).TopWindowPerDisplay(context.Background())
	if err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	if m := got[101]; m == nil || m.AppBundleID != "com.example.editor" {
		t.Errorf("display A got %+v, want editor", got[101])
	}
	if m := got[202]; m == nil || m.AppBundleID != "com.example.browser" {
		t.Errorf("display B got %+v, want browser", got[202])
	}
}

func TestTopWindowPerDisplayFrontWindowWins(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA}}
	// Front-to-back ordering: the first window covering the display is its
	// topmost one.
	w := &fakeWindows{
		windows: []frame.WindowSnapshot{
			{OwnerPID: 1, Title: "Front", Bounds: image.Rect(0, 0, 800, 600), Alpha: 1},
			{OwnerPID: 2, Title: "Behind", Bounds: image.Rect(0, 0, 1920, 1080), Alpha: 1},
		},
		owners: map[int][2]string{1: {"com.front", "Front"}, 2: {"com.behind", "Behind"}},
	}

	got, err := newTestResolver(d, w).TopWindowPerDisplay(context.Background())
	if err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	if m := got[101]; m == nil || m.WindowTitle != "Front" {
		t.Errorf("got %+v, want the frontmost window", got[101])
	}
}

func TestTopWindowPerDisplaySkipsOverlaysAndTinyWindows(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA}}
	w := &fakeWindows{
		windows: []frame.WindowSnapshot{
			{OwnerPID: 1, Title: "Ghost", Bounds: image.Rect(0, 0, 800, 600), Alpha: 0.01},
			{OwnerPID: 2, Title: "Tooltip", Bounds: image.Rect(0, 0, 60, 30), Alpha: 1},
			{OwnerPID: 3, Title: "Real", Bounds: image.Rect(0, 0, 800, 600), Alpha: 1},
		},
		owners: map[int][2]string{3: {"com.real", "Real"}},
	}

	got, err := newTestResolver(d, w).TopWindowPerDisplay(context.Background())
	if err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	if m := got[101]; m == nil || m.WindowTitle != "Real" {
		t.Errorf("got %+v, want the first visible full-size window", got[101])
	}
}

func TestTopWindowPerDisplayOwnerFailureKeepsTitle(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA}}
	w := &fakeWindows{
		windows: []frame.WindowSnapshot{
			{OwnerPID: 99, Title: "Orphan", Bounds: image.Rect(0, 0, 800, 600), Alpha: 1},
		},
	}

	got, err := newTestResolver(d, w).TopWindowPerDisplay(context.Background())
	if err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	m := got[101]
	if m == nil || m.WindowTitle != "Orphan" {
		t.Fatalf("got %+v, want title-only metadata", m)
	}
	if m.AppBundleID != "" {
		t.Error("owner lookup failed; bundle id should be empty")
	}
}

func TestTopWindowPerDisplayCaches(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA}}
	w := &fakeWindows{
		windows: []frame.WindowSnapshot{
			{OwnerPID: 1, Title: "X", Bounds: image.Rect(0, 0, 800, 600), Alpha: 1},
		},
		owners: map[int][2]string{1: {"com.x", "X"}},
	}
	r := NewResolver(d, w, 100*time.Millisecond)

	now := time.Now()
	r.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if _, err := r.TopWindowPerDisplay(context.Background()); err != nil {
			t.Fatalf("TopWindowPerDisplay: %v", err)
		}
	}
	if w.calls != 1 {
		t.Errorf("window enumerations = %d, want 1 within TTL", w.calls)
	}

	now = now.Add(150 * time.Millisecond)
	if _, err := r.TopWindowPerDisplay(context.Background()); err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	if w.calls != 2 {
		t.Errorf("window enumerations = %d, want 2 after TTL expiry", w.calls)
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA}}
	w := &fakeWindows{}
	r := newTestResolver(d, w)

	if _, err := r.TopWindowPerDisplay(context.Background()); err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	r.Invalidate()
	if _, err := r.TopWindowPerDisplay(context.Background()); err != nil {
		t.Fatalf("TopWindowPerDisplay: %v", err)
	}
	if w.calls != 2 {
		t.Errorf("window enumerations = %d, want 2 after Invalidate", w.calls)
	}
}

func TestTopWindowPerDisplayPropagatesError(t *testing.T) {
	d := &fakeDisplays{displays: []frame.Display{displayA}}
	w := &fakeWindows{err: errors.New("denied")}
	if _, err := newTestResolver(d, w).TopWindowPerDisplay(context.Background()); err == nil {
		t.Error("expected enumeration error to propagate")
	}
}

func TestBestOverlapTieAndMiss(t *testing.T) {
	displays := []frame.Display{displayA, displayB}

	if _, ok := bestOverlap(image.Rect(5000, 0, 5100, 100), displays); ok {
		t.Error("off-screen window should match no display")
	}

	// Straddling window: larger share on B.
	d, ok := bestOverlap(image.Rect(1800, 0, 2400, 600), displays)
	if !ok || d.StableID != 202 {
		t.Errorf("straddling window assigned to %v, want display B", d.StableID)
	}
}
