package model

import (
	"context"
	"fmt"
	"io"

	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/graph"
)

// Wire names of the output tensors.
const (
	KeyForces       = "forces"
	KeyTotalEnergy  = "total_energy"
	KeyAtomicEnergy = "atomic_energy"
	KeyVirial       = "virial"
)

// Request is one forward evaluation. ExtraOutputs names optional per-node
// quantities the backend should include, e.g. "uncertainty".
type Request struct {
	Inputs       *graph.Input
	WantVirial   bool
	ExtraOutputs []string
}

// Output is the backend's raw named tensor bundle. Callers should not
// consume it directly; DecodeResults validates it into a Results.
type Output map[string]*tensor.Dense

// Invoker is an opaque potential backend. Implementations own any device or
// connection state and release it on Close.
type Invoker interface {
	Forward(ctx context.Context, req *Request) (Output, error)
	Metadata() *Metadata
	io.Closer
}

// Results is the validated, flattened view of an Output. Slices are
// row-major views of the backend tensors.
type Results struct {
	TotalEnergy float64

	Forces       []float32            // [N*3]
	AtomicEnergy []float32            // [N], nil when absent
	Virial       []float32            // [9], nil when not requested
	Extras       map[string][]float32 // name -> [N]
}

// DecodeResults checks the bundle against the schema for a step of n nodes.
// forces and total_energy are always required; atomic_energy is required
// when the host asked for per-atom energy (decoded opportunistically
// otherwise); virial is required exactly when requested; every extra is
// required at [n,1].
func DecodeResults(out Output, n int, wantVirial, wantAtomicEnergy bool, extras []string) (*Results, error) {
	res := &Results{}

	forces, err := denseFloat32(out, KeyForces, true, n, 3)
	if err != nil {
		return nil, err
	}
	res.Forces = forces

	energy, err := denseFloat32(out, KeyTotalEnergy, true, 1)
	if err != nil {
		return nil, err
	}
	res.TotalEnergy = float64(energy[0])

	atomic, err := denseFloat32(out, KeyAtomicEnergy, wantAtomicEnergy, n, 1)
	if err != nil {
		return nil, err
	}
	res.AtomicEnergy = atomic

	if wantVirial {
		virial, err := denseFloat32(out, KeyVirial, true, 1, 3, 3)
		if err != nil {
			return nil, err
		}
		res.Virial = virial
	}

	if len(extras) > 0 {
		res.Extras = make(map[string][]float32, len(extras))
		for _, name := range extras {
			values, err := denseFloat32(out, name, true, n, 1)
			if err != nil {
				return nil, err
			}
			res.Extras[name] = values
		}
	}

	return res, nil
}

// denseFloat32 extracts a float32 tensor of the exact shape. A missing
// optional tensor decodes to nil.
func denseFloat32(out Output, name string, required bool, shape ...int) ([]float32, error) {
	t, ok := out[name]
	if !ok || t == nil {
		if required {
			return nil, fmt.Errorf("%w: %q", ErrMissingOutput, name)
		}
		return nil, nil
	}

	if t.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("%w: %q has dtype %v, want float32", ErrOutputShape, name, t.Dtype())
	}

	got := t.Shape()
	if len(got) != len(shape) {
		return nil, fmt.Errorf("%w: %q has shape %v, want %v", ErrOutputShape, name, got, shape)
	}
	size := 1
	for i, dim := range shape {
		if got[i] != dim {
			return nil, fmt.Errorf("%w: %q has shape %v, want %v", ErrOutputShape, name, got, shape)
		}
		size *= dim
	}

	switch data := t.Data().(type) {
	case []float32:
		if len(data) != size {
			return nil, fmt.Errorf("%w: %q has %d values for shape %v", ErrOutputShape, name, len(data), got)
		}
		return data, nil
	case float32:
		// Single-element tensors surface as a bare scalar.
		if size != 1 {
			return nil, fmt.Errorf("%w: %q is scalar, want shape %v", ErrOutputShape, name, shape)
		}
		return []float32{data}, nil
	default:
		return nil, fmt.Errorf("%w: %q has unexpected storage %T", ErrOutputShape, name, data)
	}
}
