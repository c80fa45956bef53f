package simbox

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mlmd/pairnet/pkg/lattice"
	"github.com/mlmd/pairnet/pkg/system"
)

// Atom is one atom of a scenario. Type takes precedence when set; otherwise
// Element is resolved against the scenario's element list. A zero Tag means
// "assign sequentially".
type Atom struct {
	Element string     `yaml:"element,omitempty"`
	Type    int        `yaml:"type,omitempty"`
	Pos     [3]float64 `yaml:"pos,flow"`
	Tag     int64      `yaml:"tag,omitempty"`
}

// Scenario is the YAML description of a small periodic system.
type Scenario struct {
	Name     string     `yaml:"name,omitempty"`
	BoxLo    [3]float64 `yaml:"box_lo,flow,omitempty"`
	BoxHi    [3]float64 `yaml:"box_hi,flow"`
	Tilt     [3]float64 `yaml:"tilt,flow,omitempty"`
	Elements []string   `yaml:"elements"`
	Atoms    []Atom     `yaml:"atoms"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if len(sc.Elements) == 0 {
		return nil, fmt.Errorf("scenario defines no elements")
	}
	if len(sc.Atoms) == 0 {
		return nil, fmt.Errorf("scenario defines no atoms")
	}
	return &sc, nil
}

func (sc *Scenario) Box() system.Box {
	return system.Box{Lo: sc.BoxLo, Hi: sc.BoxHi, Tilt: sc.Tilt}
}

// Snapshot builds the local atoms: element symbols resolve to 1-based host
// types, positions wrap into the primary cell, and missing tags are
// assigned in order.
func (sc *Scenario) Snapshot() (*system.Snapshot, error) {
	cell, err := lattice.FromBox(sc.Box())
	if err != nil {
		return nil, err
	}

	n := len(sc.Atoms)
	snap := &system.Snapshot{
		LocalCount: n,
		Positions:  make([][3]float64, 0, n),
		Tags:       make([]system.Tag, 0, n),
		Types:      make([]int, 0, n),
		Forces:     make([][3]float64, n),
		Energies:   make([]float64, n),
	}

	for i, atom := range sc.Atoms {
		hostType := atom.Type
		if hostType == 0 {
			for idx, element := range sc.Elements {
				if element == atom.Element {
					hostType = idx + 1
					break
				}
			}
			if hostType == 0 {
				return nil, fmt.Errorf("atom %d: element %q not in element list", i, atom.Element)
			}
		}
		if hostType < 1 || hostType > len(sc.Elements) {
			return nil, fmt.Errorf("atom %d: type %d outside [1,%d]", i, hostType, len(sc.Elements))
		}

		tag := system.Tag(atom.Tag)
		if tag == 0 {
			tag = system.Tag(i + 1)
		}

		snap.Positions = append(snap.Positions, wrapPosition(cell, sc.BoxLo, atom.Pos))
		snap.Tags = append(snap.Tags, tag)
		snap.Types = append(snap.Types, hostType)
	}

	return snap, nil
}

// wrapPosition folds a position into the primary cell via fractional
// coordinates, keeping each component in [0,1).
func wrapPosition(cell *lattice.Cell, lo [3]float64, x [3]float64) [3]float64 {
	s := cell.Fractional([3]float64{x[0] - lo[0], x[1] - lo[1], x[2] - lo[2]})
	for k := 0; k < 3; k++ {
		s[k] -= math.Floor(s[k])
	}
	d := cell.Cartesian(s)
	return [3]float64{lo[0] + d[0], lo[1] + d[1], lo[2] + d[2]}
}
