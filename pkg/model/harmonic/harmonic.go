// Package harmonic is the in-process reference backend: a pair-spring
// potential over the directed edge list. It exists so the marshaling layer
// can be exercised and validated without an external model runtime, and it
// defines the backend conventions (energy split, virial sign) real backends
// are expected to follow.
package harmonic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gorgonia.org/tensor"

	"github.com/mlmd/pairnet/pkg/model"
)

const BackendName = "harmonic"

// Uncertainty is the optional per-node output: mean |r - r0| over a node's
// outgoing edges.
const Uncertainty = "uncertainty"

// Params are the spring parameters carried in the artifact payload.
type Params struct {
	K  float64 `json:"k"`
	R0 float64 `json:"r0"`
}

// Model evaluates E = 1/2 k (r - r0)^2 per bond. The directed edge list
// visits every bond twice, so per-edge contributions are halved: energy
// splits evenly between the endpoints and each edge pushes only its source
// node.
type Model struct {
	meta   *model.Metadata
	params Params
}

var _ model.Invoker = (*Model)(nil)

func New(meta *model.Metadata, params Params) (*Model, error) {
	if meta == nil {
		return nil, fmt.Errorf("%w: nil metadata", model.ErrMetadata)
	}
	if params.K <= 0 {
		return nil, fmt.Errorf("%w: spring constant must be positive, got %g", model.ErrMetadata, params.K)
	}
	if params.R0 < 0 {
		return nil, fmt.Errorf("%w: rest length must be non-negative, got %g", model.ErrMetadata, params.R0)
	}
	return &Model{meta: meta, params: params}, nil
}

// FromArtifact opens an artifact whose payload is the JSON-encoded Params.
func FromArtifact(a *model.Artifact) (*Model, error) {
	meta := a.Metadata()
	if meta.Backend != BackendName {
		return nil, fmt.Errorf("%w: artifact backend %q, want %q", model.ErrMetadata, meta.Backend, BackendName)
	}
	var params Params
	if err := json.Unmarshal(a.Payload, &params); err != nil {
		return nil, fmt.Errorf("%w: decoding parameters: %v", model.ErrArtifactFormat, err)
	}
	return New(meta, params)
}

func (m *Model) Metadata() *model.Metadata {
	return m.meta
}

func (m *Model) Close() error {
	return nil
}

func (m *Model) Forward(ctx context.Context, req *model.Request) (model.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wantUncertainty := false
	for _, name := range req.ExtraOutputs {
		switch name {
		case Uncertainty:
			wantUncertainty = true
		default:
			return nil, fmt.Errorf("unsupported output %q", name)
		}
	}

	in := req.Inputs
	pos, ok := in.Positions.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("positions: unexpected storage %T", in.Positions.Data())
	}
	edgeIndex, ok := in.EdgeIndex.Data().([]int64)
	if !ok {
		return nil, fmt.Errorf("edge_index: unexpected storage %T", in.EdgeIndex.Data())
	}
	shifts, ok := in.EdgeShift.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("edge_cell_shift: unexpected storage %T", in.EdgeShift.Data())
	}
	cellData, ok := in.Cell.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("cell: unexpected storage %T", in.Cell.Data())
	}

	n := in.Nodes
	e := in.Edges
	srcs := edgeIndex[:e]
	dsts := edgeIndex[e : 2*e]

	var rows [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rows[i][j] = float64(cellData[3*i+j])
		}
	}

	forces := make([]float64, 3*n)
	atomic := make([]float64, n)
	var total float64
	var virial [9]float64
	var uncSum []float64
	var uncCount []int
	if wantUncertainty {
		uncSum = make([]float64, n)
		uncCount = make([]int, n)
	}

	for k := 0; k < e; k++ {
		s := int(srcs[k])
		t := int(dsts[k])
		if s < 0 || s >= n || t < 0 || t >= n {
			return nil, fmt.Errorf("edge %d references node outside [0,%d): %d -> %d", k, n, s, t)
		}

		// Displacement from the source to the destination's image.
		var d [3]float64
		for a := 0; a < 3; a++ {
			d[a] = float64(pos[3*t+a]) - float64(pos[3*s+a])
			for c := 0; c < 3; c++ {
				d[a] += float64(shifts[3*k+c]) * rows[c][a]
			}
		}
		r := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
		if r == 0 {
			return nil, fmt.Errorf("zero-length edge %d (%d -> %d)", k, s, t)
		}

		diff := r - m.params.R0
		coeff := m.params.K * diff / r

		for a := 0; a < 3; a++ {
			forces[3*s+a] += coeff * d[a]
		}

		half := 0.25 * m.params.K * diff * diff
		atomic[s] += half
		total += half

		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				virial[3*a+b] -= 0.5 * coeff * d[a] * d[b]
			}
		}

		if wantUncertainty {
			uncSum[s] += math.Abs(diff)
			uncCount[s]++
		}
	}

	out := model.Output{
		model.KeyForces:       tensor.New(tensor.WithShape(n, 3), tensor.WithBacking(toFloat32(forces))),
		model.KeyTotalEnergy:  tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{float32(total)})),
		model.KeyAtomicEnergy: tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(toFloat32(atomic))),
	}
	if req.WantVirial {
		out[model.KeyVirial] = tensor.New(tensor.WithShape(1, 3, 3), tensor.WithBacking(toFloat32(virial[:])))
	}
	if wantUncertainty {
		means := make([]float32, n)
		for node := 0; node < n; node++ {
			if uncCount[node] > 0 {
				means[node] = float32(uncSum[node] / float64(uncCount[node]))
			}
		}
		out[Uncertainty] = tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(means))
	}

	return out, nil
}

func toFloat32(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = float32(x)
	}
	return out
}
