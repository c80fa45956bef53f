package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/lattice"
	"github.com/mlmd/pairnet/pkg/species"
	"github.com/mlmd/pairnet/pkg/system"
)

// Slots deliberately out of tag order: node rows must follow tags, not slots.
func assemblyFixture(t *testing.T) (*system.Snapshot, *NodeMap, *lattice.Cell, EdgeSet) {
	t.Helper()

	box := system.Box{
		Hi:   [3]float64{10, 12, 14},
		Tilt: [3]float64{2, 1, 0.5},
	}
	snap := &system.Snapshot{
		LocalCount: 2,
		GhostCount: 1,
		Positions: [][3]float64{
			{9, 5, 5},  // tag 2
			{1, 5, 5},  // tag 1
			{-1, 5, 5}, // ghost of tag 2
		},
		Tags:  []system.Tag{2, 1, 2},
		Types: []int{2, 1, 2},
	}

	cell, err := lattice.FromBox(box)
	require.NoError(t, err)
	nodes, err := BuildNodeMap(snap)
	require.NoError(t, err)

	neigh := &system.NeighborList{
		Centers:   []system.LocalIndex{0, 1},
		Neighbors: [][]system.LocalIndex{{1}, {2}},
	}
	set, err := NewBuilder(9.0).Build(snap, neigh, nodes, cell)
	require.NoError(t, err)
	require.Equal(t, 2, set.Count)

	return snap, nodes, cell, set
}

func TestAssembleSchema(t *testing.T) {
	snap, nodes, cell, set := assemblyFixture(t)
	mapper := species.NewMapper([]string{"H", "O"}, []string{"H", "O"})

	in, err := NewAssembler().Assemble(snap, nodes, mapper, set, cell)
	require.NoError(t, err)
	require.Equal(t, 2, in.Nodes)
	require.Equal(t, 2, in.Edges)

	require.Equal(t, tensor.Shape{2, 3}, in.Positions.Shape())
	require.Equal(t, tensor.Float32, in.Positions.Dtype())
	pos := in.Positions.Data().([]float32)
	assert.Equal(t, []float32{1, 5, 5, 9, 5, 5}, pos)

	require.Equal(t, tensor.Shape{2}, in.AtomTypes.Shape())
	require.Equal(t, tensor.Int64, in.AtomTypes.Dtype())
	assert.Equal(t, []int64{0, 1}, in.AtomTypes.Data().([]int64))

	// Row 0 carries the sources, row 1 the destinations.
	require.Equal(t, tensor.Shape{2, 2}, in.EdgeIndex.Shape())
	require.Equal(t, tensor.Int64, in.EdgeIndex.Dtype())
	edgeIndex := in.EdgeIndex.Data().([]int64)
	assert.Equal(t, set.Src, edgeIndex[:2])
	assert.Equal(t, set.Dst, edgeIndex[2:])

	require.Equal(t, tensor.Shape{2, 3}, in.EdgeShift.Shape())
	require.Equal(t, tensor.Float32, in.EdgeShift.Dtype())
	assert.Equal(t, set.Shifts, in.EdgeShift.Data().([]float32))

	require.Equal(t, tensor.Shape{3, 3}, in.Cell.Shape())
	require.Equal(t, tensor.Float32, in.Cell.Dtype())
	assert.Equal(t, []float32{10, 0, 0, 2, 12, 0, 1, 0.5, 14}, in.Cell.Data().([]float32))
}

func TestAssembleNamedCoversSchema(t *testing.T) {
	snap, nodes, cell, set := assemblyFixture(t)
	mapper := species.NewMapper([]string{"H", "O"}, []string{"H", "O"})

	in, err := NewAssembler().Assemble(snap, nodes, mapper, set, cell)
	require.NoError(t, err)

	named := in.Named()
	require.Len(t, named, 5)
	assert.Same(t, in.Positions, named[KeyPositions])
	assert.Same(t, in.AtomTypes, named[KeyAtomTypes])
	assert.Same(t, in.EdgeIndex, named[KeyEdgeIndex])
	assert.Same(t, in.EdgeShift, named[KeyEdgeShift])
	assert.Same(t, in.Cell, named[KeyCell])
}

func TestAssembleUnmappedType(t *testing.T) {
	snap, nodes, cell, set := assemblyFixture(t)
	// Host type 2 ("O") has no model species.
	mapper := species.NewMapper([]string{"H", "O"}, []string{"H"})

	_, err := NewAssembler().Assemble(snap, nodes, mapper, set, cell)
	require.ErrorIs(t, err, ErrUnmappedType)
	assert.Contains(t, err.Error(), "host type 2")
}

func TestAssembleScratchReuse(t *testing.T) {
	snap, nodes, cell, set := assemblyFixture(t)
	mapper := species.NewMapper([]string{"H", "O"}, []string{"H", "O"})
	asm := NewAssembler()

	first, err := asm.Assemble(snap, nodes, mapper, set, cell)
	require.NoError(t, err)
	second, err := asm.Assemble(snap, nodes, mapper, set, cell)
	require.NoError(t, err)

	firstPos := first.Positions.Data().([]float32)
	secondPos := second.Positions.Data().([]float32)
	assert.Same(t, &firstPos[0], &secondPos[0])
}
