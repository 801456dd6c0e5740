package sensor

// Granter is any feed that can tell whether motion data is flowing.
type Granter interface {
	Granted() bool
}

// AnyGranted is granted when at least one feed is.
type AnyGranted []Granter

// Granted implements startup.Grants.
func (a AnyGranted) Granted() bool {
	for _, g := range a {
		if g != nil && g.Granted() {
			return true
		}
	}
	return false
}
