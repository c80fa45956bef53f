package harmonic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/graph"
	"github.com/mlmd/pairnet/pkg/model"
)

func testMetadata() *model.Metadata {
	return &model.Metadata{
		Name:       "spring",
		Backend:    BackendName,
		Cutoff:     3.0,
		NumSpecies: 1,
		TypeNames:  []string{"H"},
	}
}

// denseInput builds a bundle directly, bypassing the assembler, so backend
// behavior is pinned independently of edge construction.
func denseInput(pos []float32, src, dst []int64, shifts []float32, cell []float32) *graph.Input {
	n := len(pos) / 3
	e := len(src)
	edgeIndex := make([]int64, 0, 2*e)
	edgeIndex = append(edgeIndex, src...)
	edgeIndex = append(edgeIndex, dst...)
	return &graph.Input{
		Positions: tensor.New(tensor.WithShape(n, 3), tensor.WithBacking(pos)),
		AtomTypes: tensor.New(tensor.WithShape(n), tensor.WithBacking(make([]int64, n))),
		EdgeIndex: tensor.New(tensor.WithShape(2, e), tensor.WithBacking(edgeIndex)),
		EdgeShift: tensor.New(tensor.WithShape(e, 3), tensor.WithBacking(shifts)),
		Cell:      tensor.New(tensor.WithShape(3, 3), tensor.WithBacking(cell)),
		Nodes:     n,
		Edges:     e,
	}
}

func orthoCell(l float32) []float32 {
	return []float32{l, 0, 0, 0, l, 0, 0, 0, l}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Params{K: 1, R0: 1})
	require.ErrorIs(t, err, model.ErrMetadata)

	_, err = New(testMetadata(), Params{K: 0, R0: 1})
	require.ErrorIs(t, err, model.ErrMetadata)

	_, err = New(testMetadata(), Params{K: 1, R0: -0.5})
	require.ErrorIs(t, err, model.ErrMetadata)
}

func TestFromArtifact(t *testing.T) {
	meta := testMetadata()
	dir := t.TempDir()

	path := filepath.Join(dir, "spring.gpot")
	require.NoError(t, model.WriteArtifact(path, meta.KV(), []byte(`{"k": 3.0, "r0": 1.5}`)))
	art, err := model.ReadArtifact(path)
	require.NoError(t, err)

	m, err := FromArtifact(art)
	require.NoError(t, err)
	assert.Equal(t, 3.0, m.params.K)
	assert.Equal(t, 1.5, m.params.R0)
	assert.Equal(t, BackendName, m.Metadata().Backend)
}

func TestFromArtifactWrongBackend(t *testing.T) {
	meta := testMetadata()
	meta.Backend = "torchscript"
	path := filepath.Join(t.TempDir(), "other.gpot")
	require.NoError(t, model.WriteArtifact(path, meta.KV(), nil))
	art, err := model.ReadArtifact(path)
	require.NoError(t, err)

	_, err = FromArtifact(art)
	require.ErrorIs(t, err, model.ErrMetadata)
}

func TestFromArtifactBadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gpot")
	require.NoError(t, model.WriteArtifact(path, testMetadata().KV(), []byte("not json")))
	art, err := model.ReadArtifact(path)
	require.NoError(t, err)

	_, err = FromArtifact(art)
	require.ErrorIs(t, err, model.ErrArtifactFormat)
}

// A bond stretched past its rest length pulls the endpoints together; the
// closed form pins forces, halved energy split, and the virial sign.
func TestForwardStretchedBond(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 3.0, R0: 1.5})
	require.NoError(t, err)

	in := denseInput(
		[]float32{0, 0, 0, 2, 0, 0},
		[]int64{0, 1}, []int64{1, 0},
		[]float32{0, 0, 0, 0, 0, 0},
		orthoCell(10),
	)

	out, err := m.Forward(context.Background(), &model.Request{Inputs: in, WantVirial: true})
	require.NoError(t, err)
	res, err := model.DecodeResults(out, 2, true, true, nil)
	require.NoError(t, err)

	// r=2, diff=0.5: E = 1/2 k diff^2 = 0.375, split 0.1875 per atom.
	assert.InDelta(t, 0.375, res.TotalEnergy, 1e-6)
	assert.InDelta(t, 0.1875, res.AtomicEnergy[0], 1e-6)
	assert.InDelta(t, 0.1875, res.AtomicEnergy[1], 1e-6)

	// F = k diff / r * d = 1.5 along the bond, opposite signs.
	expected := []float64{1.5, 0, 0, -1.5, 0, 0}
	for i, want := range expected {
		assert.InDelta(t, want, float64(res.Forces[i]), 1e-6, "force component %d", i)
	}

	// Tension: -0.5 coeff d⊗d per directed edge gives W_xx = -3.
	assert.InDelta(t, -3.0, float64(res.Virial[0]), 1e-6)
	for i := 1; i < 9; i++ {
		assert.InDelta(t, 0, float64(res.Virial[i]), 1e-6, "virial component %d", i)
	}
}

// A self edge through the periodic boundary must displace the destination by
// the cell shift; the mirrored image edge cancels the net force.
func TestForwardSelfImageEdges(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 4.0, R0: 2.0})
	require.NoError(t, err)

	in := denseInput(
		[]float32{1, 1, 1},
		[]int64{0, 0}, []int64{0, 0},
		[]float32{1, 0, 0, -1, 0, 0},
		orthoCell(2.5),
	)

	out, err := m.Forward(context.Background(), &model.Request{Inputs: in, WantVirial: true})
	require.NoError(t, err)
	res, err := model.DecodeResults(out, 1, true, true, nil)
	require.NoError(t, err)

	// r=2.5, diff=0.5, two directed edges.
	assert.InDelta(t, 0.5, res.TotalEnergy, 1e-6)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0, float64(res.Forces[i]), 1e-6)
	}
	assert.InDelta(t, -5.0, float64(res.Virial[0]), 1e-5)
}

func TestForwardUncertainty(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 1.0, R0: 1.8})
	require.NoError(t, err)

	// Chain 0-1-2 with bond lengths 2 and 1; node 3 is isolated from the
	// edge list on purpose.
	in := denseInput(
		[]float32{0, 0, 0, 2, 0, 0, 3, 0, 0, 10, 0, 0},
		[]int64{0, 1, 1, 2}, []int64{1, 0, 2, 1},
		make([]float32, 12),
		orthoCell(100),
	)

	out, err := m.Forward(context.Background(), &model.Request{
		Inputs:       in,
		ExtraOutputs: []string{Uncertainty},
	})
	require.NoError(t, err)
	res, err := model.DecodeResults(out, 4, false, false, []string{Uncertainty})
	require.NoError(t, err)

	unc := res.Extras[Uncertainty]
	require.Len(t, unc, 4)
	assert.InDelta(t, 0.2, float64(unc[0]), 1e-6) // |2-1.8|
	assert.InDelta(t, 0.5, float64(unc[1]), 1e-6) // mean of 0.2 and 0.8
	assert.InDelta(t, 0.8, float64(unc[2]), 1e-6) // |1-1.8|
	assert.InDelta(t, 0, float64(unc[3]), 1e-6)   // no outgoing edges
}

func TestForwardRejectsUnknownExtra(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 1.0, R0: 1.0})
	require.NoError(t, err)

	in := denseInput(
		[]float32{0, 0, 0, 1, 0, 0},
		[]int64{0}, []int64{1},
		[]float32{0, 0, 0},
		orthoCell(10),
	)
	_, err = m.Forward(context.Background(), &model.Request{
		Inputs:       in,
		ExtraOutputs: []string{"charge"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge")
}

func TestForwardZeroLengthEdge(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 1.0, R0: 1.0})
	require.NoError(t, err)

	in := denseInput(
		[]float32{1, 1, 1, 1, 1, 1},
		[]int64{0}, []int64{1},
		[]float32{0, 0, 0},
		orthoCell(10),
	)
	_, err = m.Forward(context.Background(), &model.Request{Inputs: in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero-length")
}

func TestForwardNodeOutOfRange(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 1.0, R0: 1.0})
	require.NoError(t, err)

	in := denseInput(
		[]float32{0, 0, 0, 1, 0, 0},
		[]int64{0}, []int64{5},
		[]float32{0, 0, 0},
		orthoCell(10),
	)
	in.Nodes = 2
	_, err = m.Forward(context.Background(), &model.Request{Inputs: in})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside")
}

func TestForwardCancelledContext(t *testing.T) {
	m, err := New(testMetadata(), Params{K: 1.0, R0: 1.0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := denseInput(
		[]float32{0, 0, 0, 1, 0, 0},
		[]int64{0}, []int64{1},
		[]float32{0, 0, 0},
		orthoCell(10),
	)
	_, err = m.Forward(ctx, &model.Request{Inputs: in})
	require.ErrorIs(t, err, context.Canceled)
}
