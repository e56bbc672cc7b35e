//go:build !unix

package playback

import "os/exec"

func detach(cmd *exec.Cmd) {}
