package command

import "os"

// RootChecker abstracts privilege checking for testability.
type RootChecker interface {
	// IsRoot returns true if the current process has root privileges.
	IsRoot() bool
}

type realRootChecker struct{}

// NewRootChecker returns a RootChecker that checks the real process UID.
func NewRootChecker() RootChecker {
	return realRootChecker{}
}

func (realRootChecker) IsRoot() bool {
	return os.Getuid() == 0
}
