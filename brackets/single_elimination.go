// Package brackets builds and maintains the single-elimination alliance
// bracket. Build is pure; UpdateWinner works against a Store so each node
// read/write stays atomic in the persistence layer.
package brackets

import "errors"

var ErrNoAlliances = errors.New("cannot build a bracket with zero alliances")

// Node is one fixture of the in-memory bracket tree produced by Build. A leaf
// carries a pre-seeded winner; interior nodes start with no winner.
type Node struct {
	Winner *int
	Blue   *Node
	Gold   *Node
	Root   bool
}

// Build turns a seed-ordered list of alliance ids into a balanced
// single-elimination tree. When the alliance count is not a power of two, the
// lowest seeds play preliminary pairings (mirrored first-with-last within the
// trimmed group) while the top seeds receive byes, converging the field to a
// power of two before full pairing resumes.
func Build(allianceIDs []int) (*Node, error) {
	if len(allianceIDs) == 0 {
		return nil, ErrNoAlliances
	}

	nodes := make([]*Node, len(allianceIDs))
	for i, id := range allianceIDs {
		id := id
		nodes[i] = &Node{Winner: &id}
	}

	for len(nodes) > 1 {
		k := 1
		for k*2 <= len(nodes) {
			k *= 2
		}
		byes := len(nodes) - k

		if byes > 0 {
			group := nodes[len(nodes)-2*byes:]
			nodes = nodes[:len(nodes)-2*byes]
			for i := 0; i < byes; i++ {
				nodes = append(nodes, &Node{Blue: group[i], Gold: group[len(group)-1-i]})
			}
			continue
		}

		next := make([]*Node, 0, len(nodes)/2)
		for i := 0; i < len(nodes)/2; i++ {
			next = append(next, &Node{Blue: nodes[i], Gold: nodes[len(nodes)-1-i]})
		}
		nodes = next
	}

	nodes[0].Root = true
	return nodes[0], nil
}
