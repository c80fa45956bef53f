// Package species maps the host's numeric atom types onto the model's
// species vocabulary.
package species

// Unmapped marks a host type with no species assignment.
const Unmapped = -1

// Mapper translates 1-based host types to 0-based model species indices.
// elements[i] names host type i+1; names are matched exactly against the
// model's ordered type vocabulary.
type Mapper struct {
	table    []int
	elements []string
	names    []string
}

func NewMapper(elements []string, typeNames []string) *Mapper {
	m := &Mapper{
		table:    make([]int, len(elements)),
		elements: append([]string(nil), elements...),
		names:    append([]string(nil), typeNames...),
	}
	for i, element := range elements {
		m.table[i] = Unmapped
		for speciesIdx, name := range typeNames {
			if element == name {
				m.table[i] = speciesIdx
				break
			}
		}
	}
	return m
}

// ModelType returns the species index for a host type, or Unmapped when the
// type has no assignment or lies outside the configured range.
func (m *Mapper) ModelType(hostType int) int {
	if hostType < 1 || hostType > len(m.table) {
		return Unmapped
	}
	return m.table[hostType-1]
}

// Covered reports whether both host types are mapped. Hosts use this to
// mark which type pairs this style handles.
func (m *Mapper) Covered(i, j int) bool {
	return m.ModelType(i) != Unmapped && m.ModelType(j) != Unmapped
}

// Element returns the configured element name for a host type, "" when out
// of range.
func (m *Mapper) Element(hostType int) string {
	if hostType < 1 || hostType > len(m.elements) {
		return ""
	}
	return m.elements[hostType-1]
}

// Species returns the model's ordered type vocabulary.
func (m *Mapper) Species() []string {
	return append([]string(nil), m.names...)
}

// TypeCount returns the number of configured host types.
func (m *Mapper) TypeCount() int {
	return len(m.table)
}
