package timebank

// Gate is a dual-confirmation latch: two independent flags keyed by role.
// Flags are monotonic; a role confirming twice is a no-op. The guarded
// transition fires the instant both flags are set, and only then.
type Gate struct {
	Provider bool `json:"provider"`
	Consumer bool `json:"consumer"`
}

// Set records a confirmation for the given role. It returns true if the flag
// actually changed, false if that role had already confirmed.
func (g *Gate) Set(r Role) bool {
	switch r {
	case RoleProvider:
		if g.Provider {
			return false
		}
		g.Provider = true
	case RoleConsumer:
		if g.Consumer {
			return false
		}
		g.Consumer = true
	}
	return true
}

// Has reports whether the given role has confirmed.
func (g Gate) Has(r Role) bool {
	if r == RoleProvider {
		return g.Provider
	}
	return g.Consumer
}

// Both reports whether both parties have confirmed.
func (g Gate) Both() bool { return g.Provider && g.Consumer }

// Reset clears both flags. Used when a joint guard fails after the second
// confirmation, so neither party is left half-committed.
func (g *Gate) Reset() {
	g.Provider = false
	g.Consumer = false
}
