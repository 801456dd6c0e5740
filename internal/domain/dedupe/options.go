package dedupe

// Option applies a configuration option to the window.
type Option func(*window)

// WithWindow sets how many recent IDs are remembered. Values below 1 are
// ignored.
func WithWindow(size int) Option {
	return func(w *window) {
		if size > 0 {
			w.ring = make([]string, size)
		}
	}
}
