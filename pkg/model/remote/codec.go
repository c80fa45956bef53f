// Package remote evaluates the forward contract against an HTTP inference
// endpoint, and provides the matching server handler so any in-process
// backend can be exposed over the same wire.
package remote

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/graph"
)

type tensorWire struct {
	Shape []int     `json:"shape"`
	Dtype string    `json:"dtype"`
	F32   []float32 `json:"f32,omitempty"`
	I64   []int64   `json:"i64,omitempty"`
}

type forwardRequest struct {
	Model        string                `json:"model,omitempty"`
	WantVirial   bool                  `json:"want_virial,omitempty"`
	ExtraOutputs []string              `json:"extra_outputs,omitempty"`
	Inputs       map[string]tensorWire `json:"inputs"`
}

type forwardResponse struct {
	Outputs map[string]tensorWire `json:"outputs"`
}

func encodeTensor(t *tensor.Dense) (tensorWire, error) {
	w := tensorWire{Shape: append([]int(nil), t.Shape()...)}
	switch data := t.Data().(type) {
	case []float32:
		w.Dtype = "float32"
		w.F32 = data
	case float32:
		w.Dtype = "float32"
		w.F32 = []float32{data}
	case []int64:
		w.Dtype = "int64"
		w.I64 = data
	case int64:
		w.Dtype = "int64"
		w.I64 = []int64{data}
	default:
		return tensorWire{}, fmt.Errorf("unsupported tensor storage %T", data)
	}
	return w, nil
}

func decodeTensor(w tensorWire) (*tensor.Dense, error) {
	size := 1
	for _, dim := range w.Shape {
		if dim <= 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", dim, w.Shape)
		}
		size *= dim
	}

	switch w.Dtype {
	case "float32":
		if len(w.F32) != size {
			return nil, fmt.Errorf("%d float32 values for shape %v", len(w.F32), w.Shape)
		}
		return tensor.New(tensor.WithShape(w.Shape...), tensor.WithBacking(w.F32)), nil
	case "int64":
		if len(w.I64) != size {
			return nil, fmt.Errorf("%d int64 values for shape %v", len(w.I64), w.Shape)
		}
		return tensor.New(tensor.WithShape(w.Shape...), tensor.WithBacking(w.I64)), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", w.Dtype)
	}
}

// inputFromWire reassembles the named input bundle on the server side,
// checking the schema before anything reaches the backend.
func inputFromWire(wires map[string]tensorWire) (*graph.Input, error) {
	decoded := make(map[string]*tensor.Dense, len(wires))
	for _, name := range []string{graph.KeyPositions, graph.KeyAtomTypes, graph.KeyEdgeIndex, graph.KeyEdgeShift, graph.KeyCell} {
		w, ok := wires[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
		t, err := decodeTensor(w)
		if err != nil {
			return nil, fmt.Errorf("decoding input %q: %w", name, err)
		}
		decoded[name] = t
	}

	pos := decoded[graph.KeyPositions]
	if len(pos.Shape()) != 2 || pos.Shape()[1] != 3 || pos.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("input %q has shape %v dtype %v", graph.KeyPositions, pos.Shape(), pos.Dtype())
	}
	n := pos.Shape()[0]

	types := decoded[graph.KeyAtomTypes]
	if len(types.Shape()) != 1 || types.Shape()[0] != n || types.Dtype() != tensor.Int64 {
		return nil, fmt.Errorf("input %q has shape %v dtype %v, want [%d] int64", graph.KeyAtomTypes, types.Shape(), types.Dtype(), n)
	}

	edgeIndex := decoded[graph.KeyEdgeIndex]
	if len(edgeIndex.Shape()) != 2 || edgeIndex.Shape()[0] != 2 || edgeIndex.Dtype() != tensor.Int64 {
		return nil, fmt.Errorf("input %q has shape %v dtype %v", graph.KeyEdgeIndex, edgeIndex.Shape(), edgeIndex.Dtype())
	}
	e := edgeIndex.Shape()[1]

	edgeShift := decoded[graph.KeyEdgeShift]
	if len(edgeShift.Shape()) != 2 || edgeShift.Shape()[0] != e || edgeShift.Shape()[1] != 3 || edgeShift.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("input %q has shape %v dtype %v, want [%d 3] float32", graph.KeyEdgeShift, edgeShift.Shape(), edgeShift.Dtype(), e)
	}

	cell := decoded[graph.KeyCell]
	if len(cell.Shape()) != 2 || cell.Shape()[0] != 3 || cell.Shape()[1] != 3 || cell.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("input %q has shape %v dtype %v, want [3 3] float32", graph.KeyCell, cell.Shape(), cell.Dtype())
	}

	return &graph.Input{
		Positions: pos,
		AtomTypes: types,
		EdgeIndex: edgeIndex,
		EdgeShift: edgeShift,
		Cell:      cell,
		Nodes:     n,
		Edges:     e,
	}, nil
}
