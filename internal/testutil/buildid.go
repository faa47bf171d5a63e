package testutil

// FixedBuildID returns the same build id every time.
//
// Harness runs stamp every logged row with the build id; a constant id keeps
// golden snapshots byte-identical across runs. Unlike
// generator.FixedGenerator, which hands out ids in sequence, this never runs
// out.
//
// Thread-safety: FixedBuildID is stateless and safe for concurrent use.
type FixedBuildID struct {
	id string
}

// NewFixedBuildID creates a fixed build id generator.
//
// If id is empty, Generate() returns "test-build-default".
func NewFixedBuildID(id string) *FixedBuildID {
	if id == "" {
		id = "test-build-default"
	}
	return &FixedBuildID{id: id}
}

// Generate returns the fixed id.
func (g *FixedBuildID) Generate() string {
	return g.id
}
