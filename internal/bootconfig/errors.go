package bootconfig

import "fmt"

// ConfigWriteError reports a failed backup, read, or write of a
// configuration file. On a write failure the original file is untouched.
type ConfigWriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("bootconfig: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }

// Detail returns the underlying cause for result reporting.
func (e *ConfigWriteError) Detail() string {
	return e.Err.Error()
}
