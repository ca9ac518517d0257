package command

// truncationSuffix is appended to output that exceeded MaxOutputBytes.
const truncationSuffix = "\n...[truncated]"

// limitedWriter is an io.Writer that discards bytes beyond a maximum limit,
// so a chatty process cannot grow memory without bound.
type limitedWriter struct {
	buf     []byte
	max     int64
	dropped bool
}

func newLimitedWriter(max int64) *limitedWriter {
	return &limitedWriter{max: max}
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	n := w.max - int64(len(w.buf))
	if n < 0 {
		n = 0
	}
	if n > int64(len(p)) {
		n = int64(len(p))
	}
	w.buf = append(w.buf, p[:n]...)
	if n < int64(len(p)) {
		w.dropped = true
	}
	// Always report all bytes as written so the process doesn't stall.
	return len(p), nil
}

func (w *limitedWriter) truncated() bool {
	return w.dropped
}

// String returns the captured content with a truncation marker when the
// limit was reached.
func (w *limitedWriter) String() string {
	if w.truncated() {
		return string(w.buf) + truncationSuffix
	}
	return string(w.buf)
}
