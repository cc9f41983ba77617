// Package screen abstracts the OS primitives the capture engine depends on:
// display rasterization, display and window enumeration, the frontmost-app
// query, permission checks, and asynchronous display/window notifications.
//
// The engine only ever talks to these interfaces; platform backends live in
// the build-tagged files of this package and tests substitute fakes.
package screen

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

var (
	// ErrPermissionDenied means screen-capture permission is not granted.
	ErrPermissionDenied = errors.New("screen capture permission denied")
	// ErrAccessibilityDenied means the window list or frontmost-app query is
	// blocked by a missing accessibility permission.
	ErrAccessibilityDenied = errors.New("accessibility permission denied")
	// ErrCaptureFailed wraps a single failed rasterization tick.
	ErrCaptureFailed = errors.New("display capture failed")
)

// Capturer rasterizes one display into a raw frame. A tick may legitimately
// fail without being fatal; callers log and skip.
type Capturer interface {
	CaptureDisplay(ctx context.Context, d frame.Display) (*frame.Frame, error)
}

// Displays enumerates connected displays.
type Displays interface {
	List(ctx context.Context) ([]frame.Display, error)
	// ActiveFocused returns the display currently hosting the focused window.
	ActiveFocused(ctx context.Context) (frame.Display, error)
}

// Windows enumerates on-screen windows (front-to-back) and resolves window
// owners to application identity.
type Windows interface {
	ListOnScreen(ctx context.Context) ([]frame.WindowSnapshot, error)
	// OwnerInfo resolves a window owner pid to bundle id and display name.
	OwnerInfo(ctx context.Context, pid int) (bundleID, name string, err error)
}

// Frontmost answers the "what is the user looking at right now" query.
type Frontmost interface {
	AppInfo(ctx context.Context, includeBrowserURL bool) (*frame.Metadata, error)
}

// Permissions reports capture-related permission state.
type Permissions interface {
	HasCapturePermission() bool
}

// EventKind tags asynchronous platform notifications.
type EventKind int

const (
	// EventTopologyChanged fires when displays were connected or removed.
	EventTopologyChanged EventKind = iota
	// EventDisplayFocusChanged fires when the focused display changed;
	// Event.Display carries the newly focused display.
	EventDisplayFocusChanged
	// EventWindowChanged fires when the foreground window or app changed.
	EventWindowChanged
	// EventCaptureStopped fires when the OS capture mechanism stopped on its
	// own, outside of an explicit Stop call.
	EventCaptureStopped
)

// Event is one asynchronous platform notification.
type Event struct {
	Kind    EventKind
	Display frame.Display // set for EventDisplayFocusChanged
}

// Notifier delivers platform events. Subscribe returns the event channel and
// a cancel function; after cancel the channel is closed and no further
// events are delivered.
type Notifier interface {
	Subscribe() (<-chan Event, func())
}

// Platform bundles every OS collaborator a capture session needs.
type Platform struct {
	Capturer    Capturer
	Displays    Displays
	Windows     Windows
	Frontmost   Frontmost
	Permissions Permissions
	Notifier    Notifier
}
