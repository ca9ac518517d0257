//go:build !unix

package command

import "os/exec"

// setProcessGroup falls back to killing only the direct child.
func setProcessGroup(_ *exec.Cmd) {}
