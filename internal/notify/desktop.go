package notify

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// Desktop sends native desktop notifications through the platform's own
// notifier command.
type Desktop struct{}

func NewDesktop() *Desktop {
	return &Desktop{}
}

// Granted reports whether the platform notifier is available. There is no
// permission prompt on any of these paths; availability is the permission.
func (d *Desktop) Granted() bool {
	switch runtime.GOOS {
	case "linux":
		_, err := exec.LookPath("notify-send")
		return err == nil
	case "darwin", "windows":
		return true
	default:
		return false
	}
}

func (d *Desktop) Notify(title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("notify-send", title, body)
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.Command("osascript", "-e", script)
	case "windows":
		script := fmt.Sprintf(
			`[void][System.Reflection.Assembly]::LoadWithPartialName('System.Windows.Forms');`+
				`$n=New-Object System.Windows.Forms.NotifyIcon;`+
				`$n.Icon=[System.Drawing.SystemIcons]::Information;`+
				`$n.Visible=$true;$n.ShowBalloonTip(5000,%q,%q,'Info')`,
			title, body)
		cmd = exec.Command("powershell", "-NoProfile", "-Command", script)
	default:
		return errors.New("unsupported platform")
	}
	return cmd.Start()
}
