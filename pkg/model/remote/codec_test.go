package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/graph"
)

func TestTensorWireRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   *tensor.Dense
	}{
		{"float32 matrix", tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{1, 2, 3, 4, 5, 6}))},
		{"int64 vector", tensor.New(tensor.WithShape(4), tensor.WithBacking([]int64{9, 8, 7, 6}))},
		{"single float32", tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{-2.5}))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := encodeTensor(tc.in)
			require.NoError(t, err)
			back, err := decodeTensor(w)
			require.NoError(t, err)

			assert.Equal(t, tc.in.Shape(), back.Shape())
			assert.Equal(t, tc.in.Dtype(), back.Dtype())
			assert.Equal(t, tc.in.Data(), back.Data())
		})
	}
}

func TestDecodeTensorErrors(t *testing.T) {
	cases := []struct {
		name string
		wire tensorWire
	}{
		{"size mismatch", tensorWire{Shape: []int{2, 2}, Dtype: "float32", F32: []float32{1, 2}}},
		{"zero dimension", tensorWire{Shape: []int{0}, Dtype: "float32"}},
		{"unknown dtype", tensorWire{Shape: []int{1}, Dtype: "float16", F32: []float32{1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeTensor(tc.wire)
			require.Error(t, err)
		})
	}
}

func wireInputs() map[string]tensorWire {
	return map[string]tensorWire{
		graph.KeyPositions: {Shape: []int{2, 3}, Dtype: "float32", F32: []float32{0, 0, 0, 2, 0, 0}},
		graph.KeyAtomTypes: {Shape: []int{2}, Dtype: "int64", I64: []int64{0, 0}},
		graph.KeyEdgeIndex: {Shape: []int{2, 2}, Dtype: "int64", I64: []int64{0, 1, 1, 0}},
		graph.KeyEdgeShift: {Shape: []int{2, 3}, Dtype: "float32", F32: make([]float32, 6)},
		graph.KeyCell:      {Shape: []int{3, 3}, Dtype: "float32", F32: []float32{10, 0, 0, 0, 10, 0, 0, 0, 10}},
	}
}

func TestInputFromWire(t *testing.T) {
	in, err := inputFromWire(wireInputs())
	require.NoError(t, err)
	assert.Equal(t, 2, in.Nodes)
	assert.Equal(t, 2, in.Edges)
}

func TestInputFromWireErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]tensorWire)
	}{
		{"missing tensor", func(m map[string]tensorWire) { delete(m, graph.KeyCell) }},
		{"node count mismatch", func(m map[string]tensorWire) {
			m[graph.KeyAtomTypes] = tensorWire{Shape: []int{3}, Dtype: "int64", I64: []int64{0, 0, 0}}
		}},
		{"edge count mismatch", func(m map[string]tensorWire) {
			m[graph.KeyEdgeShift] = tensorWire{Shape: []int{1, 3}, Dtype: "float32", F32: make([]float32, 3)}
		}},
		{"positions dtype", func(m map[string]tensorWire) {
			m[graph.KeyPositions] = tensorWire{Shape: []int{2, 3}, Dtype: "int64", I64: make([]int64, 6)}
		}},
		{"cell shape", func(m map[string]tensorWire) {
			m[graph.KeyCell] = tensorWire{Shape: []int{9}, Dtype: "float32", F32: make([]float32, 9)}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wires := wireInputs()
			tc.mutate(wires)
			_, err := inputFromWire(wires)
			require.Error(t, err)
		})
	}
}
