// Package system defines the data contract between a neighbor-list MD host
// and the marshaling pipeline. All quantities are host-side float64; narrowing
// to the model's float32 happens at tensor assembly.
package system

// Tag is a stable 1-based atom identity. Every ghost copy of an atom carries
// the tag of its parent, so tags are the only identity that survives image
// replication.
type Tag int64

// LocalIndex is a per-step storage slot in the host's atom arrays.
// Slots [0, LocalCount) hold local atoms, [LocalCount, TotalCount) hold ghosts.
type LocalIndex int

// Snapshot is the host's view of one timestep. Positions of local atoms are
// canonically wrapped into the primary cell; ghost positions are unwrapped
// periodic images. Forces (and Energies, when per-atom energy is requested)
// are scatter targets owned by the host.
type Snapshot struct {
	LocalCount int
	GhostCount int

	Positions [][3]float64
	Tags      []Tag
	Types     []int // 1-based host numeric types

	Forces   [][3]float64
	Energies []float64
}

func (s *Snapshot) TotalCount() int {
	return s.LocalCount + s.GhostCount
}

// Box is the host's simulation cell: an orthogonal lo/hi extent plus
// triclinic tilt factors (xy, xz, yz).
type Box struct {
	Lo   [3]float64
	Hi   [3]float64
	Tilt [3]float64
}

// NeighborList is a full (both directions present) candidate pair list.
// Neighbors[k] holds the candidate slots for center Centers[k]; candidates
// may lie beyond the interaction cutoff and are filtered during edge
// construction.
type NeighborList struct {
	Centers   []LocalIndex
	Neighbors [][]LocalIndex
}

// PairCapacity returns the total candidate count, the pessimistic upper
// bound on the number of edges a step can produce.
func (n *NeighborList) PairCapacity() int {
	total := 0
	for _, neigh := range n.Neighbors {
		total += len(neigh)
	}
	return total
}

// StepFlags records what the host asked for on this step beyond forces.
type StepFlags struct {
	Energy        bool
	PerAtomEnergy bool
	Virial        bool
	PerAtomVirial bool
}

// StepResult reports the global quantities of one evaluation. Virial
// components are ordered xx, yy, zz, xy, xz, yz.
type StepResult struct {
	PotentialEnergy float64

	Virial    [6]float64
	HasVirial bool

	Nodes int
	Edges int
}
