//go:build unix

package playback

import (
	"os/exec"
	"syscall"
)

// detach keeps terminal Ctrl+C away from the player so the interrupt
// stages are decided here.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
