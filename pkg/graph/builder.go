package graph

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/lattice"
	"github.com/mlmd/pairnet/pkg/system"
)

// Builder turns the host's candidate neighbor list into the model's directed
// edge list. Scratch buffers are sized to the pessimistic candidate count and
// grow on a high-water mark; they are reused across steps and never shrink.
type Builder struct {
	cutoff float64

	src    []int64
	dst    []int64
	shifts []float32
}

func NewBuilder(cutoff float64) *Builder {
	return &Builder{cutoff: cutoff}
}

// EdgeSet is one step's directed edges. The slices are views into the
// builder's scratch and stay valid only until the next Build call.
type EdgeSet struct {
	Count int

	// Src and Dst hold node indices; Src[k] is the center of edge k.
	Src []int64
	Dst []int64

	// Shifts holds one integer image shift per edge, row-major [Count][3].
	// The destination's image position is canonical(dst) + shift·C.
	Shifts []float32
}

// Build filters candidates against the cutoff and resolves each surviving
// pair into (source node, destination node, periodic shift). Both directions
// of a bond arrive separately from the full candidate list; a pair of an atom
// with its own periodic image is a legal edge. Zero surviving edges is fatal.
func (b *Builder) Build(snap *system.Snapshot, neigh *system.NeighborList, nodes *NodeMap, cell *lattice.Cell) (EdgeSet, error) {
	b.ensurePairs(neigh.PairCapacity())
	cutsq := b.cutoff * b.cutoff
	count := 0

	for k, center := range neigh.Centers {
		xi := snap.Positions[center]
		inode := nodes.Node(snap.Tags[center])

		for _, j := range neigh.Neighbors[k] {
			xj := snap.Positions[j]
			dx := xj[0] - xi[0]
			dy := xj[1] - xi[1]
			dz := xj[2] - xi[2]
			if dx*dx+dy*dy+dz*dz >= cutsq {
				continue
			}

			jnode := nodes.Node(snap.Tags[j])
			canonical := snap.Positions[nodes.Local(jnode)]
			s := cell.Fractional([3]float64{
				xj[0] - canonical[0],
				xj[1] - canonical[1],
				xj[2] - canonical[2],
			})

			b.src[count] = int64(inode)
			b.dst[count] = int64(jnode)
			b.shifts[3*count+0] = float32(math.Round(s[0]))
			b.shifts[3*count+1] = float32(math.Round(s[1]))
			b.shifts[3*count+2] = float32(math.Round(s[2]))
			count++
		}
	}

	if count == 0 {
		return EdgeSet{}, fmt.Errorf("%w: %d centers, cutoff %g", ErrNoEdges, len(neigh.Centers), b.cutoff)
	}

	set := EdgeSet{
		Count:  count,
		Src:    b.src[:count],
		Dst:    b.dst[:count],
		Shifts: b.shifts[:3*count],
	}

	if klog.V(3).Enabled() {
		b.dumpEdges(snap, nodes, cell, set)
	}

	return set, nil
}

func (b *Builder) ensurePairs(n int) {
	if n <= cap(b.src) {
		b.src = b.src[:n]
		b.dst = b.dst[:n]
		b.shifts = b.shifts[:3*n]
		return
	}
	b.src = make([]int64, n)
	b.dst = make([]int64, n)
	b.shifts = make([]float32, 3*n)
}

func (b *Builder) dumpEdges(snap *system.Snapshot, nodes *NodeMap, cell *lattice.Cell, set EdgeSet) {
	klog.V(3).Infof("edge list: %d directed edges, cutoff %g", set.Count, b.cutoff)
	for k := 0; k < set.Count; k++ {
		xs := snap.Positions[nodes.Local(NodeIndex(set.Src[k]))]
		xd := snap.Positions[nodes.Local(NodeIndex(set.Dst[k]))]
		shift := cell.Cartesian([3]float64{
			float64(set.Shifts[3*k]),
			float64(set.Shifts[3*k+1]),
			float64(set.Shifts[3*k+2]),
		})
		dx := xd[0] + shift[0] - xs[0]
		dy := xd[1] + shift[1] - xs[1]
		dz := xd[2] + shift[2] - xs[2]
		klog.V(3).Infof("edge %d: %d -> %d shift (%g %g %g) r %.6f",
			k, set.Src[k], set.Dst[k], set.Shifts[3*k], set.Shifts[3*k+1], set.Shifts[3*k+2],
			math.Sqrt(dx*dx+dy*dy+dz*dz))
	}
}
