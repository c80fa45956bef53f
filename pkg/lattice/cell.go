// Package lattice resolves the host's simulation box into the row-vector
// cell matrix and the fractional-coordinate projector used for periodic
// image arithmetic.
package lattice

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mlmd/pairnet/pkg/system"
)

var ErrNonPositiveAxis = errors.New("lattice: cell axis length must be positive")

// Cell is a triclinic simulation cell. Row k of the matrix is the k-th
// lattice vector: row 0 = (Lx, 0, 0), row 1 = (xy, Ly, 0),
// row 2 = (xz, yz, Lz).
type Cell struct {
	rows [3][3]float64
	inv  [3][3]float64 // (Cᵀ)⁻¹, computed once per step
}

// FromBox builds the cell for one step. The box must have positive extent
// on every axis; tilt factors may be zero.
func FromBox(b system.Box) (*Cell, error) {
	lx := b.Hi[0] - b.Lo[0]
	ly := b.Hi[1] - b.Lo[1]
	lz := b.Hi[2] - b.Lo[2]
	if lx <= 0 || ly <= 0 || lz <= 0 {
		return nil, fmt.Errorf("%w: box extents (%g, %g, %g)", ErrNonPositiveAxis, lx, ly, lz)
	}

	c := &Cell{
		rows: [3][3]float64{
			{lx, 0, 0},
			{b.Tilt[0], ly, 0},
			{b.Tilt[1], b.Tilt[2], lz},
		},
	}

	m := c.Matrix()
	var inv mat.Dense
	if err := inv.Inverse(m.T()); err != nil {
		return nil, fmt.Errorf("lattice: inverting cell matrix: %w", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c.inv[i][j] = inv.At(i, j)
		}
	}

	return c, nil
}

// Matrix returns a fresh copy of the cell matrix.
func (c *Cell) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		c.rows[0][0], c.rows[0][1], c.rows[0][2],
		c.rows[1][0], c.rows[1][1], c.rows[1][2],
		c.rows[2][0], c.rows[2][1], c.rows[2][2],
	})
}

// Vectors returns the lattice vectors as rows.
func (c *Cell) Vectors() [3][3]float64 {
	return c.rows
}

// Fractional projects a Cartesian displacement onto lattice coordinates:
// for d = s·C (integer image combination s), Fractional(d) recovers s.
func (c *Cell) Fractional(d [3]float64) [3]float64 {
	var s [3]float64
	for i := 0; i < 3; i++ {
		s[i] = c.inv[i][0]*d[0] + c.inv[i][1]*d[1] + c.inv[i][2]*d[2]
	}
	return s
}

// Cartesian maps lattice coordinates back to a Cartesian displacement,
// s·C = s0·row0 + s1·row1 + s2·row2.
func (c *Cell) Cartesian(s [3]float64) [3]float64 {
	var d [3]float64
	for k := 0; k < 3; k++ {
		d[0] += s[k] * c.rows[k][0]
		d[1] += s[k] * c.rows[k][1]
		d[2] += s[k] * c.rows[k][2]
	}
	return d
}
