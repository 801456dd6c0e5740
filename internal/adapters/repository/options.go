package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxFrames caps how many frames are kept. Zero or negative means no cap.
func WithMaxFrames(n int) Option {
	return func(s *MemoryStore) {
		s.maxFrames = n
	}
}
