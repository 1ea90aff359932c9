package testutil

// DefaultSessionID is the ID a FixedSessionGenerator created without one
// returns.
const DefaultSessionID = "test-session"

// FixedSessionGenerator returns the same session ID every time.
//
// Scenarios that instantiate more than once still produce identical traces,
// which keeps golden files stable. engine.FixedGenerator, by contrast, hands
// out a list of IDs in order and panics when it runs out.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id.
// If id is empty, Generate returns DefaultSessionID.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate implements engine.IDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
