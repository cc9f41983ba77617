//go:build darwin

package screen

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/display"
	"github.com/GriffinCanCode/framewatch/internal/frame"
)

type darwinShot struct{}

func (darwinShot) captureCmd(d frame.Display, outFile string) *exec.Cmd {
	// -x: no sound, -D: display number (1-based)
	return exec.Command("screencapture", "-x", "-t", "png", "-D", strconv.Itoa(int(d.RuntimeID)), outFile)
}

type darwinDisplays struct{}

// spDisplays is the subset of `system_profiler SPDisplaysDataType -json`
// output we read.
type spDisplays struct {
	SPDisplaysDataType []struct {
		Ndrvs []struct {
			Name   string `json:"_name"`
			Pixels string `json:"_spdisplays_pixels"` // "2560 x 1440"
			Main   string `json:"spdisplays_main"`
		} `json:"spdisplays_ndrvs"`
	} `json:"SPDisplaysDataType"`
}

func (darwinDisplays) List(ctx context.Context) ([]frame.Display, error) {
	out, err := exec.CommandContext(ctx, "system_profiler", "SPDisplaysDataType", "-json").Output()
	if err != nil {
		return nil, fmt.Errorf("display enumeration: %w", err)
	}
	var sp spDisplays
	if err := json.Unmarshal(out, &sp); err != nil {
		return nil, fmt.Errorf("display enumeration: %w", err)
	}

	var displays []frame.Display
	var offset int
	for _, gpu := range sp.SPDisplaysDataType {
		for _, d := range gpu.Ndrvs {
			w, h := parsePixels(d.Pixels)
			runtimeID := uint32(len(displays) + 1) // screencapture -D is 1-based
			displays = append(displays, frame.Display{
				RuntimeID: runtimeID,
				// system_profiler does not expose the EDID triple, so ids
				// degrade to the session-scoped fallback here.
				StableID: display.StableID(display.HardwareID{}, w, h, runtimeID),
				Name:     d.Name,
				Bounds:   image.Rect(offset, 0, offset+w, h),
			})
			offset += w
		}
	}
	return displays, nil
}

func (dd darwinDisplays) ActiveFocused(ctx context.Context) (frame.Display, error) {
	displays, err := dd.List(ctx)
	if err != nil {
		return frame.Display{}, err
	}
	if len(displays) == 0 {
		return frame.Display{}, fmt.Errorf("no displays connected")
	}
	return displays[0], nil
}

func parsePixels(s string) (int, int) {
	parts := strings.SplitN(s, " x ", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	w, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, _ := strconv.Atoi(strings.TrimSpace(parts[1]))
	return w, h
}

type darwinWindows struct{}

func (darwinWindows) ListOnScreen(ctx context.Context) ([]frame.WindowSnapshot, error) {
	script := `tell application "System Events"
  set out to ""
  repeat with p in (processes whose visible is true)
    repeat with w in windows of p
      set {x, y} to position of w
      set {ww, wh} to size of w
      set out to out & (unix id of p) & "|" & (name of w) & "|" & x & "|" & y & "|" & ww & "|" & wh & linefeed
    end repeat
  end repeat
end tell
return out`
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessibilityDenied, err)
	}

	var snaps []frame.WindowSnapshot
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Split(line, "|")
		if len(fields) != 6 {
			continue
		}
		pid, _ := strconv.Atoi(fields[0])
		x, _ := strconv.Atoi(fields[2])
		y, _ := strconv.Atoi(fields[3])
		w, _ := strconv.Atoi(fields[4])
		h, _ := strconv.Atoi(fields[5])
		snaps = append(snaps, frame.WindowSnapshot{
			OwnerPID: pid,
			Title:    fields[1],
			Bounds:   image.Rect(x, y, x+w, y+h),
			Alpha:    1.0, // System Events does not report window alpha
		})
	}
	return snaps, nil
}

func (darwinWindows) OwnerInfo(ctx context.Context, pid int) (string, string, error) {
	script := fmt.Sprintf(`tell application "System Events" to get {bundle identifier, name} of first process whose unix id is %d`, pid)
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrAccessibilityDenied, err)
	}
	parts := strings.SplitN(strings.TrimSpace(string(out)), ", ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unexpected owner info: %q", out)
	}
	return parts[0], parts[1], nil
}

type darwinFrontmost struct{}

func (darwinFrontmost) AppInfo(ctx context.Context, includeBrowserURL bool) (*frame.Metadata, error) {
	script := `tell application "System Events"
  set p to first process whose frontmost is true
  set t to ""
  try
    set t to name of window 1 of p
  end try
  return (bundle identifier of p) & "|" & (name of p) & "|" & t
end tell`
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessibilityDenied, err)
	}
	fields := strings.SplitN(strings.TrimSpace(string(out)), "|", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("unexpected frontmost info: %q", out)
	}

	meta := &frame.Metadata{
		AppBundleID: fields[0],
		AppName:     fields[1],
		WindowTitle: fields[2],
	}
	if includeBrowserURL {
		meta.BrowserURL = browserURL(ctx, meta.AppBundleID)
	}
	return meta, nil
}

// browserURL asks known browsers for their active tab URL. Best effort.
func browserURL(ctx context.Context, bundleID string) string {
	var script string
	switch bundleID {
	case "com.apple.Safari":
		script = `tell application "Safari" to get URL of current tab of window 1`
	case "com.google.Chrome":
		script = `tell application "Google Chrome" to get URL of active tab of window 1`
	default:
		return ""
	}
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// darwinPermissions probes capture permission once by attempting a real
// capture; screencapture fails without screen-recording access.
type darwinPermissions struct {
	once    sync.Once
	granted bool
}

func (p *darwinPermissions) HasCapturePermission() bool {
	p.once.Do(func() {
		probe := filepath.Join(os.TempDir(), "framewatch-permission-probe.png")
		defer os.Remove(probe)
		if err := exec.Command("screencapture", "-x", "-t", "png", probe).Run(); err != nil {
			slog.Warn("capture permission probe failed", "error", err)
			return
		}
		p.granted = true
	})
	return p.granted
}

// NewPlatform assembles the macOS collaborator set.
func NewPlatform() Platform {
	displays := darwinDisplays{}
	frontmost := darwinFrontmost{}
	return Platform{
		Capturer:    newExecCapturer(darwinShot{}),
		Displays:    displays,
		Windows:     darwinWindows{},
		Frontmost:   frontmost,
		Permissions: &darwinPermissions{},
		Notifier:    newPollNotifier(displays, frontmost, 200*time.Millisecond),
	}
}
