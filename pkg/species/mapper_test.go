package species

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapperMatchesByName(t *testing.T) {
	m := NewMapper([]string{"Si", "O", "H"}, []string{"H", "O", "Si"})

	assert.Equal(t, 2, m.ModelType(1))
	assert.Equal(t, 1, m.ModelType(2))
	assert.Equal(t, 0, m.ModelType(3))
}

func TestMapperUnmatchedAndOutOfRange(t *testing.T) {
	m := NewMapper([]string{"Si", "Xx"}, []string{"Si", "O"})

	assert.Equal(t, 0, m.ModelType(1))
	assert.Equal(t, Unmapped, m.ModelType(2))
	assert.Equal(t, Unmapped, m.ModelType(0))
	assert.Equal(t, Unmapped, m.ModelType(3))
}

func TestMapperCovered(t *testing.T) {
	m := NewMapper([]string{"Si", "Xx", "O"}, []string{"Si", "O"})

	assert.True(t, m.Covered(1, 3))
	assert.True(t, m.Covered(1, 1))
	assert.False(t, m.Covered(1, 2))
	assert.False(t, m.Covered(2, 2))
}

func TestMapperDuplicateElementsShareSpecies(t *testing.T) {
	m := NewMapper([]string{"C", "C"}, []string{"C"})

	assert.Equal(t, 0, m.ModelType(1))
	assert.Equal(t, 0, m.ModelType(2))
}
