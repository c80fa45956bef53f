package graph

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/lattice"
	"github.com/mlmd/pairnet/pkg/species"
	"github.com/mlmd/pairnet/pkg/system"
)

// Wire names of the input tensors.
const (
	KeyPositions = "pos"
	KeyAtomTypes = "atom_types"
	KeyEdgeIndex = "edge_index"
	KeyEdgeShift = "edge_cell_shift"
	KeyCell      = "cell"
)

// Input is the named tensor bundle handed to the model backend. Node order
// is dense node index order; this is the only place host float64 narrows to
// the model's float32.
type Input struct {
	Positions *tensor.Dense // [N,3] float32
	AtomTypes *tensor.Dense // [N]   int64
	EdgeIndex *tensor.Dense // [2,E] int64, row 0 sources, row 1 destinations
	EdgeShift *tensor.Dense // [E,3] float32
	Cell      *tensor.Dense // [3,3] float32 row-major

	Nodes int
	Edges int
}

// Named returns the bundle keyed by wire name.
func (in *Input) Named() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{
		KeyPositions: in.Positions,
		KeyAtomTypes: in.AtomTypes,
		KeyEdgeIndex: in.EdgeIndex,
		KeyEdgeShift: in.EdgeShift,
		KeyCell:      in.Cell,
	}
}

// Assembler owns the backing buffers of the input tensors. Like the edge
// builder it grows on a high-water mark and reuses across steps, so the
// tensors returned by Assemble stay valid only until the next call.
type Assembler struct {
	pos       []float32
	types     []int64
	edgeIndex []int64
	edgeShift []float32
	cell      []float32
}

func NewAssembler() *Assembler {
	return &Assembler{cell: make([]float32, 9)}
}

// Assemble packs the step into the named tensor schema. Every node's host
// type must map to a model species; an unmapped type is fatal here rather
// than a silent placeholder in the tensor.
func (a *Assembler) Assemble(snap *system.Snapshot, nodes *NodeMap, mapper *species.Mapper, edges EdgeSet, cell *lattice.Cell) (*Input, error) {
	n := nodes.Len()
	e := edges.Count
	a.ensureNodes(n)
	a.ensureEdges(e)

	for node := 0; node < n; node++ {
		slot := nodes.Local(NodeIndex(node))
		p := snap.Positions[slot]
		a.pos[3*node+0] = float32(p[0])
		a.pos[3*node+1] = float32(p[1])
		a.pos[3*node+2] = float32(p[2])

		hostType := snap.Types[slot]
		modelType := mapper.ModelType(hostType)
		if modelType == species.Unmapped {
			return nil, fmt.Errorf("%w: host type %d (tag %d)", ErrUnmappedType, hostType, snap.Tags[slot])
		}
		a.types[node] = int64(modelType)
	}

	copy(a.edgeIndex[:e], edges.Src)
	copy(a.edgeIndex[e:2*e], edges.Dst)
	copy(a.edgeShift[:3*e], edges.Shifts)

	rows := cell.Vectors()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a.cell[3*i+j] = float32(rows[i][j])
		}
	}

	return &Input{
		Positions: tensor.New(tensor.WithShape(n, 3), tensor.WithBacking(a.pos[:3*n])),
		AtomTypes: tensor.New(tensor.WithShape(n), tensor.WithBacking(a.types[:n])),
		EdgeIndex: tensor.New(tensor.WithShape(2, e), tensor.WithBacking(a.edgeIndex[:2*e])),
		EdgeShift: tensor.New(tensor.WithShape(e, 3), tensor.WithBacking(a.edgeShift[:3*e])),
		Cell:      tensor.New(tensor.WithShape(3, 3), tensor.WithBacking(a.cell)),
		Nodes:     n,
		Edges:     e,
	}, nil
}

func (a *Assembler) ensureNodes(n int) {
	if 3*n <= cap(a.pos) {
		a.pos = a.pos[:3*n]
		a.types = a.types[:n]
		return
	}
	a.pos = make([]float32, 3*n)
	a.types = make([]int64, n)
}

func (a *Assembler) ensureEdges(e int) {
	if 2*e <= cap(a.edgeIndex) {
		a.edgeIndex = a.edgeIndex[:2*e]
		a.edgeShift = a.edgeShift[:3*e]
		return
	}
	a.edgeIndex = make([]int64, 2*e)
	a.edgeShift = make([]float32, 3*e)
}
