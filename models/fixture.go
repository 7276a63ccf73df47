package models

// Fixture is one node of the single-elimination bracket tree. A leaf
// (BlueID == GoldID == nil) carries a pre-assigned immutable winner; a
// non-leaf fixture's winner, when set, must equal the winner of exactly one
// of its children. Exactly one fixture per tree has Root set.
type Fixture struct {
	ID     int  `json:"id"`
	Root   bool `json:"root"`
	Winner *int `json:"winner"`
	BlueID *int `json:"blue,omitempty"`
	GoldID *int `json:"gold,omitempty"`

	// Matches lists the ids of matches played for this fixture. Maintained by
	// the match table's fixture_id column; cleared by the database when the
	// bracket is deleted.
	Matches []int `json:"matches"`
}

// Leaf reports whether the fixture is a bye slot with a pre-seeded winner.
func (f *Fixture) Leaf() bool {
	return f.BlueID == nil && f.GoldID == nil
}

// FixtureUpdate is the wire shape of a winner change request.
type FixtureUpdate struct {
	ID     int  `json:"id"`
	Winner *int `json:"winner"`
}
