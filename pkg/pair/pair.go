// Package pair orchestrates one interaction style on top of a host MD
// engine: it marshals each step's neighbor list into the model's graph
// tensors, invokes the backend, and scatters the results back into host
// arrays. Every failure is fatal to the step; nothing here retries.
package pair

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/graph"
	"github.com/mlmd/pairnet/pkg/lattice"
	"github.com/mlmd/pairnet/pkg/model"
	"github.com/mlmd/pairnet/pkg/species"
	"github.com/mlmd/pairnet/pkg/system"
)

// Settings are host engine facts fixed at style setup.
type Settings struct {
	// TagsEnabled reports whether the host assigns stable atom tags.
	// Without tags ghosts cannot be folded onto their parents.
	TagsEnabled bool

	// NewtonPair reports whether the host reverse-communicates ghost
	// forces. The full directed edge list already accounts for both bond
	// directions, so it must be off.
	NewtonPair bool

	// TypeCount is the number of numeric atom types the host defines.
	TypeCount int
}

type Option func(*Pair)

// WithExtraOutput requests a named per-atom model quantity on every step,
// retrievable afterwards via PerAtom.
func WithExtraOutput(name string) Option {
	return func(p *Pair) {
		p.extras = append(p.extras, name)
	}
}

// Pair is one configured style instance. It is not safe for concurrent
// steps: scratch buffers and aux arrays are reused across calls.
type Pair struct {
	invoker model.Invoker
	meta    *model.Metadata
	mapper  *species.Mapper

	builder   *graph.Builder
	assembler *graph.Assembler

	extras []string
	aux    map[string][]float64
}

// New validates the host configuration against the model and prepares the
// per-step machinery. The element list assigns a model species name to each
// host type 1..TypeCount.
func New(settings Settings, invoker model.Invoker, elements []string, opts ...Option) (*Pair, error) {
	if !settings.TagsEnabled {
		return nil, ErrTagsRequired
	}
	if settings.NewtonPair {
		return nil, ErrNewtonPair
	}
	if len(elements) != settings.TypeCount {
		return nil, fmt.Errorf("%w: %d elements for %d types", ErrElementCount, len(elements), settings.TypeCount)
	}

	meta := invoker.Metadata()
	if meta == nil {
		return nil, fmt.Errorf("%w: backend reports no metadata", model.ErrMetadata)
	}

	mapper := species.NewMapper(elements, meta.TypeNames)
	for hostType := 1; hostType <= settings.TypeCount; hostType++ {
		if mapped := mapper.ModelType(hostType); mapped != species.Unmapped {
			klog.V(1).Infof("host type %d (%s) -> model species %d", hostType, mapper.Element(hostType), mapped)
		} else {
			klog.V(1).Infof("host type %d (%s) unmapped", hostType, mapper.Element(hostType))
		}
	}

	p := &Pair{
		invoker:   invoker,
		meta:      meta,
		mapper:    mapper,
		builder:   graph.NewBuilder(meta.Cutoff),
		assembler: graph.NewAssembler(),
		aux:       map[string][]float64{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Cutoff is the model's interaction radius; the host must deliver every
// pair within it.
func (p *Pair) Cutoff() float64 {
	return p.meta.Cutoff
}

func (p *Pair) Metadata() *model.Metadata {
	return p.meta
}

// Covered reports whether this style handles the host type pair (i, j).
func (p *Pair) Covered(i, j int) bool {
	return p.mapper.Covered(i, j)
}

// PerAtom returns the last step's values of a named extra output, indexed
// by host slot (locals filled, ghost slots zero).
func (p *Pair) PerAtom(name string) ([]float64, bool) {
	values, ok := p.aux[name]
	return values, ok
}

// ComputeStep runs the full pipeline for one timestep: resolve the cell,
// index nodes, build edges, assemble tensors, invoke the backend, and
// scatter outputs into the snapshot's host arrays.
func (p *Pair) ComputeStep(ctx context.Context, snap *system.Snapshot, neigh *system.NeighborList, box system.Box, flags system.StepFlags) (*system.StepResult, error) {
	log := klog.FromContext(ctx)

	if flags.PerAtomVirial {
		return nil, ErrPerAtomVirial
	}

	input, nodes, err := p.buildInput(snap, neigh, box)
	if err != nil {
		return nil, err
	}

	req := &model.Request{
		Inputs:       input,
		WantVirial:   flags.Virial,
		ExtraOutputs: p.extras,
	}
	out, err := p.invoker.Forward(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrForward, err)
	}

	res, err := model.DecodeResults(out, nodes.Len(), flags.Virial, flags.PerAtomEnergy, p.extras)
	if err != nil {
		return nil, fmt.Errorf("decoding model outputs: %w", err)
	}

	result, err := p.scatter(snap, nodes, res, flags)
	if err != nil {
		return nil, err
	}
	result.Nodes = input.Nodes
	result.Edges = input.Edges

	log.V(2).Info("step evaluated",
		"nodes", result.Nodes, "edges", result.Edges,
		"energy", result.PotentialEnergy, "virial", flags.Virial)

	return result, nil
}

// buildInput marshals the host side of one step. Shared by ComputeStep and
// the diagnostic probe.
func (p *Pair) buildInput(snap *system.Snapshot, neigh *system.NeighborList, box system.Box) (*graph.Input, *graph.NodeMap, error) {
	cell, err := lattice.FromBox(box)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving cell: %w", err)
	}

	nodes, err := graph.BuildNodeMap(snap)
	if err != nil {
		return nil, nil, fmt.Errorf("indexing atoms: %w", err)
	}

	edges, err := p.builder.Build(snap, neigh, nodes, cell)
	if err != nil {
		return nil, nil, fmt.Errorf("building edges: %w", err)
	}

	input, err := p.assembler.Assemble(snap, nodes, p.mapper, edges, cell)
	if err != nil {
		return nil, nil, fmt.Errorf("assembling tensors: %w", err)
	}

	return input, nodes, nil
}
