package pair

import (
	"context"
	"fmt"

	"github.com/mlmd/pairnet/pkg/graph"
	"github.com/mlmd/pairnet/pkg/model"
	"github.com/mlmd/pairnet/pkg/system"
)

// Probe evaluates the model outside the force loop to extract a single
// named per-atom quantity, e.g. a diagnostic pass sampling uncertainty
// every few hundred steps. It runs the same marshaling pipeline as a force
// step but scatters nothing into host arrays.
type Probe struct {
	pair     *Pair
	quantity string
}

func NewProbe(settings Settings, invoker model.Invoker, elements []string, quantity string) (*Probe, error) {
	if quantity == "" {
		return nil, fmt.Errorf("%w: probe quantity must be named", model.ErrMetadata)
	}
	p, err := New(settings, invoker, elements, WithExtraOutput(quantity))
	if err != nil {
		return nil, err
	}
	return &Probe{pair: p, quantity: quantity}, nil
}

func (pr *Probe) Cutoff() float64 {
	return pr.pair.Cutoff()
}

// Evaluate returns the quantity per local slot. The returned slice is owned
// by the caller.
func (pr *Probe) Evaluate(ctx context.Context, snap *system.Snapshot, neigh *system.NeighborList, box system.Box) ([]float64, error) {
	input, nodes, err := pr.pair.buildInput(snap, neigh, box)
	if err != nil {
		return nil, err
	}

	req := &model.Request{
		Inputs:       input,
		ExtraOutputs: []string{pr.quantity},
	}
	out, err := pr.pair.invoker.Forward(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrForward, err)
	}

	res, err := model.DecodeResults(out, nodes.Len(), false, false, []string{pr.quantity})
	if err != nil {
		return nil, fmt.Errorf("decoding model outputs: %w", err)
	}

	values := make([]float64, snap.LocalCount)
	quantity := res.Extras[pr.quantity]
	for node := 0; node < nodes.Len(); node++ {
		values[nodes.Local(graph.NodeIndex(node))] = float64(quantity[node])
	}
	return values, nil
}
