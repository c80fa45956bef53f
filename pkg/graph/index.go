package graph

import (
	"fmt"

	"github.com/mlmd/pairnet/pkg/system"
)

// NodeIndex is a dense 0-based graph node id. Node n is the atom with
// tag n+1; every ghost copy of that atom shares the node.
type NodeIndex int

// NodeMap resolves the three atom identities of one step against each
// other: stable tags, dense node indices, and host storage slots.
type NodeMap struct {
	toLocal []system.LocalIndex
}

// BuildNodeMap validates the snapshot's tags and records, for every node,
// the slot of its local (canonical) copy. Local tags must form a bijection
// onto [1, LocalCount]; ghost tags must resolve to a local atom.
func BuildNodeMap(snap *system.Snapshot) (*NodeMap, error) {
	n := snap.LocalCount
	m := &NodeMap{toLocal: make([]system.LocalIndex, n)}
	seen := make([]bool, n)

	for slot := 0; slot < n; slot++ {
		tag := snap.Tags[slot]
		if tag < 1 || tag > system.Tag(n) {
			return nil, fmt.Errorf("%w: tag %d with %d local atoms", ErrTagRange, tag, n)
		}
		node := int(tag) - 1
		if seen[node] {
			return nil, fmt.Errorf("%w: tag %d", ErrTagDuplicate, tag)
		}
		seen[node] = true
		m.toLocal[node] = system.LocalIndex(slot)
	}

	for slot := n; slot < snap.TotalCount(); slot++ {
		tag := snap.Tags[slot]
		if tag < 1 || tag > system.Tag(n) {
			return nil, fmt.Errorf("%w: ghost slot %d carries tag %d", ErrGhostOrphan, slot, tag)
		}
	}

	return m, nil
}

// Len returns the node count, equal to the snapshot's LocalCount.
func (m *NodeMap) Len() int {
	return len(m.toLocal)
}

// Node returns the dense node index for a tag.
func (m *NodeMap) Node(tag system.Tag) NodeIndex {
	return NodeIndex(tag - 1)
}

// Local returns the slot of the node's canonical (wrapped) copy.
func (m *NodeMap) Local(node NodeIndex) system.LocalIndex {
	return m.toLocal[node]
}
