package pair

import (
	"github.com/mlmd/pairnet/pkg/graph"
	"github.com/mlmd/pairnet/pkg/model"
	"github.com/mlmd/pairnet/pkg/system"
)

// scatter routes decoded model outputs back to host storage. Forces land on
// each node's local slot; ghost rows are left untouched since newton pair is
// off and the host does no reverse communication.
func (p *Pair) scatter(snap *system.Snapshot, nodes *graph.NodeMap, res *model.Results, flags system.StepFlags) (*system.StepResult, error) {
	n := nodes.Len()

	p.ensureAux(snap.TotalCount())

	for node := 0; node < n; node++ {
		slot := nodes.Local(graph.NodeIndex(node))

		snap.Forces[slot][0] = float64(res.Forces[3*node+0])
		snap.Forces[slot][1] = float64(res.Forces[3*node+1])
		snap.Forces[slot][2] = float64(res.Forces[3*node+2])

		if flags.PerAtomEnergy {
			snap.Energies[slot] = float64(res.AtomicEnergy[node])
		}

		for name, values := range res.Extras {
			p.aux[name][slot] = float64(values[node])
		}
	}

	result := &system.StepResult{
		PotentialEnergy: res.TotalEnergy,
	}
	if flags.Virial {
		result.Virial = flattenVirial(res.Virial)
		result.HasVirial = true
	}

	return result, nil
}

// flattenVirial reorders the model's row-major [1,3,3] tensor into the
// host's 6-vector convention (xx, yy, zz, xy, xz, yz).
func flattenVirial(v []float32) [6]float64 {
	return [6]float64{
		float64(v[0]), // xx
		float64(v[4]), // yy
		float64(v[8]), // zz
		float64(v[1]), // xy
		float64(v[2]), // xz
		float64(v[5]), // yz
	}
}

// ensureAux grows the per-atom extra buffers on the host's total-count
// high-water mark, mirroring how hosts manage their own per-atom arrays.
func (p *Pair) ensureAux(total int) {
	for _, name := range p.extras {
		buf := p.aux[name]
		if cap(buf) < total {
			buf = make([]float64, total)
		} else {
			buf = buf[:total]
			for i := range buf {
				buf[i] = 0
			}
		}
		p.aux[name] = buf
	}
}
