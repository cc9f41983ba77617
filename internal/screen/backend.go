package screen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // decoder for backends emitting JPEG
	_ "image/png"  // decoder for backends emitting PNG
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

// shotBackend is the platform-specific half of the exec-based capturer: it
// builds the screenshot command for one display.
type shotBackend interface {
	captureCmd(d frame.Display, outFile string) *exec.Cmd
}

// execCapturer shells out to the platform screenshot tool and decodes the
// result into a raw frame.
type execCapturer struct {
	shotBackend
	tempDir string
}

func newExecCapturer(b shotBackend) *execCapturer {
	tmpDir, err := os.MkdirTemp("", "framewatch-shot-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return &execCapturer{shotBackend: b, tempDir: tmpDir}
}

func (c *execCapturer) CaptureDisplay(ctx context.Context, d frame.Display) (*frame.Frame, error) {
	outFile := fmt.Sprintf("%s/shot-%d.png", c.tempDir, d.RuntimeID)
	cmd := c.captureCmd(d, outFile)
	if cmd == nil {
		return nil, fmt.Errorf("%w: no screenshot tool available", ErrCaptureFailed)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v (%s)", ErrCaptureFailed, err, stderr.String())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading screenshot: %v", ErrCaptureFailed, err)
	}
	os.Remove(outFile)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding screenshot: %v", ErrCaptureFailed, err)
	}
	return frame.FromImage(img, d.StableID, time.Now()), nil
}

// Close removes the temp directory.
func (c *execCapturer) Close() {
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

// pollNotifier synthesizes platform events by diffing periodic snapshots of
// the display list, the focused display, and the frontmost window. Platforms
// with native notification APIs can replace it; the engine only sees the
// Notifier interface.
type pollNotifier struct {
	displays  Displays
	frontmost Frontmost
	interval  time.Duration
}

func newPollNotifier(displays Displays, frontmost Frontmost, interval time.Duration) *pollNotifier {
	return &pollNotifier{displays: displays, frontmost: frontmost, interval: interval}
}

func (n *pollNotifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	done := make(chan struct{})

	go n.loop(ch, done)

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }
	return ch, cancel
}

func (n *pollNotifier) loop(ch chan<- Event, done <-chan struct{}) {
	defer close(ch)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	ctx := context.Background()
	var lastCount int
	var lastFocused uint32
	var lastWindow string

	if ds, err := n.displays.List(ctx); err == nil {
		lastCount = len(ds)
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		if ds, err := n.displays.List(ctx); err == nil && len(ds) != lastCount {
			lastCount = len(ds)
			n.emit(ch, Event{Kind: EventTopologyChanged})
		}

		if d, err := n.displays.ActiveFocused(ctx); err == nil && d.StableID != lastFocused {
			if lastFocused != 0 {
				n.emit(ch, Event{Kind: EventDisplayFocusChanged, Display: d})
			}
			lastFocused = d.StableID
		}

		if meta, err := n.frontmost.AppInfo(ctx, false); err == nil && meta != nil {
			key := meta.AppBundleID + "\x00" + meta.WindowTitle
			if key != lastWindow {
				if lastWindow != "" {
					n.emit(ch, Event{Kind: EventWindowChanged})
				}
				lastWindow = key
			}
		}
	}
}

func (n *pollNotifier) emit(ch chan<- Event, ev Event) {
	select {
	case ch <- ev:
	default:
		slog.Debug("platform event dropped, subscriber slow", "kind", ev.Kind)
	}
}
