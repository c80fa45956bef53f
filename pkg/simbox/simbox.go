// Package simbox is a minimal in-process host used by tests and the CLI
// evaluator: it canonicalizes positions, replicates periodic ghost images,
// and builds brute-force candidate lists. It is a test rig, not a neighbor
// search engine.
package simbox

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/lattice"
	"github.com/mlmd/pairnet/pkg/system"
)

// Replicate copies the snapshot and appends ghost images of every local
// atom over the image shell needed to cover the cutoff. Shell ranges derive
// from the perpendicular plane separations, so a cutoff larger than the box
// itself stays covered, tilted or not.
func Replicate(snap *system.Snapshot, box system.Box, cutoff float64) (*system.Snapshot, error) {
	if cutoff <= 0 {
		return nil, fmt.Errorf("cutoff must be positive, got %g", cutoff)
	}
	cell, err := lattice.FromBox(box)
	if err != nil {
		return nil, err
	}
	ranges := imageRanges(cell, cutoff)

	out := &system.Snapshot{
		LocalCount: snap.LocalCount,
		Positions:  append([][3]float64(nil), snap.Positions[:snap.LocalCount]...),
		Tags:       append([]system.Tag(nil), snap.Tags[:snap.LocalCount]...),
		Types:      append([]int(nil), snap.Types[:snap.LocalCount]...),
	}

	for n0 := -ranges[0]; n0 <= ranges[0]; n0++ {
		for n1 := -ranges[1]; n1 <= ranges[1]; n1++ {
			for n2 := -ranges[2]; n2 <= ranges[2]; n2++ {
				if n0 == 0 && n1 == 0 && n2 == 0 {
					continue
				}
				shift := cell.Cartesian([3]float64{float64(n0), float64(n1), float64(n2)})
				for i := 0; i < snap.LocalCount; i++ {
					p := snap.Positions[i]
					out.Positions = append(out.Positions, [3]float64{p[0] + shift[0], p[1] + shift[1], p[2] + shift[2]})
					out.Tags = append(out.Tags, snap.Tags[i])
					out.Types = append(out.Types, snap.Types[i])
				}
			}
		}
	}

	out.GhostCount = len(out.Positions) - out.LocalCount
	out.Forces = make([][3]float64, len(out.Positions))
	out.Energies = make([]float64, out.LocalCount)

	klog.V(2).Infof("replicated %d locals into %d ghosts (image ranges %v)", out.LocalCount, out.GhostCount, ranges)

	return out, nil
}

// Neighbors builds the full candidate list over local centers. skin widens
// the capture radius the way a host's neighbor skin does; candidates beyond
// the true cutoff are filtered again during edge construction.
func Neighbors(snap *system.Snapshot, cutoff, skin float64) *system.NeighborList {
	capture := cutoff + skin
	capsq := capture * capture
	total := snap.TotalCount()

	list := &system.NeighborList{
		Centers:   make([]system.LocalIndex, snap.LocalCount),
		Neighbors: make([][]system.LocalIndex, snap.LocalCount),
	}
	for i := 0; i < snap.LocalCount; i++ {
		list.Centers[i] = system.LocalIndex(i)
		xi := snap.Positions[i]
		var neigh []system.LocalIndex
		for j := 0; j < total; j++ {
			if j == i {
				continue
			}
			xj := snap.Positions[j]
			dx := xj[0] - xi[0]
			dy := xj[1] - xi[1]
			dz := xj[2] - xi[2]
			if dx*dx+dy*dy+dz*dz <= capsq {
				neigh = append(neigh, system.LocalIndex(j))
			}
		}
		list.Neighbors[i] = neigh
	}
	return list
}

// imageRanges bounds the integer images that can reach into the cutoff:
// along each axis, the cell repeats at its perpendicular plane separation.
func imageRanges(cell *lattice.Cell, cutoff float64) [3]int {
	rows := cell.Vectors()
	var ranges [3]int
	for k := 0; k < 3; k++ {
		area := cross(rows[(k+1)%3], rows[(k+2)%3])
		volume := math.Abs(dot(rows[k], area))
		height := volume / norm(area)
		ranges[k] = int(math.Ceil(cutoff/height)) + 1
	}
	return ranges
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm(v [3]float64) float64 {
	return math.Sqrt(dot(v, v))
}
