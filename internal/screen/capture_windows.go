//go:build windows

package screen

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/GriffinCanCode/framewatch/internal/frame"
)

type windowsShot struct{}

func (windowsShot) captureCmd(d frame.Display, outFile string) *exec.Cmd {
	// TODO: replace with a GDI/DXGI capture path instead of PowerShell
	script := fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms,System.Drawing
$b = New-Object Drawing.Bitmap([Windows.Forms.SystemInformation]::VirtualScreen.Width, [Windows.Forms.SystemInformation]::VirtualScreen.Height)
$g = [Drawing.Graphics]::FromImage($b)
$g.CopyFromScreen(0, 0, 0, 0, $b.Size)
$b.Save('%s')`, outFile)
	return exec.Command("powershell", "-NoProfile", "-Command", script)
}

type windowsDisplays struct{}

func (windowsDisplays) List(ctx context.Context) ([]frame.Display, error) {
	return nil, fmt.Errorf("display enumeration not implemented on windows")
}

func (windowsDisplays) ActiveFocused(ctx context.Context) (frame.Display, error) {
	return frame.Display{}, fmt.Errorf("display enumeration not implemented on windows")
}

type windowsWindows struct{}

func (windowsWindows) ListOnScreen(ctx context.Context) ([]frame.WindowSnapshot, error) {
	return nil, fmt.Errorf("window enumeration not implemented on windows")
}

func (windowsWindows) OwnerInfo(ctx context.Context, pid int) (string, string, error) {
	return "", "", fmt.Errorf("window enumeration not implemented on windows")
}

type windowsFrontmost struct{}

func (windowsFrontmost) AppInfo(ctx context.Context, includeBrowserURL bool) (*frame.Metadata, error) {
	return nil, fmt.Errorf("frontmost query not implemented on windows")
}

type windowsPermissions struct{}

func (windowsPermissions) HasCapturePermission() bool { return true }

// NewPlatform assembles the Windows collaborator set. Capture works through
// PowerShell; enumeration paths are not implemented yet.
func NewPlatform() Platform {
	displays := windowsDisplays{}
	frontmost := windowsFrontmost{}
	return Platform{
		Capturer:    newExecCapturer(windowsShot{}),
		Displays:    displays,
		Windows:     windowsWindows{},
		Frontmost:   frontmost,
		Permissions: windowsPermissions{},
		Notifier:    newPollNotifier(displays, frontmost, 200*time.Millisecond),
	}
}
