// Package model defines the boundary to a learned potential backend: the
// artifact container a potential ships in, its typed metadata, and the
// named-tensor forward contract every backend implements.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys in the artifact's KV section.
const (
	KeyName       = "name"
	KeyVersion    = "version"
	KeyBackend    = "backend"
	KeyCutoff     = "r_max"
	KeyNumSpecies = "n_species"
	KeyTypeNames  = "type_names"
	KeyAllowTF32  = "allow_tf32"
)

// Metadata is the typed view of an artifact's KV section. Cutoff doubles as
// the marshaling cutoff: the host must hand over every pair within it.
type Metadata struct {
	Name    string
	Version string
	Backend string

	Cutoff     float64
	NumSpecies int
	TypeNames  []string
	AllowTF32  bool

	// Extra carries unrecognized keys through to the backend untouched.
	Extra map[string]string
}

// ParseMetadata validates the KV section into a Metadata. r_max, n_species
// and type_names are required; the rest default.
func ParseMetadata(kv map[string]string) (*Metadata, error) {
	meta := &Metadata{Extra: map[string]string{}}

	for _, key := range []string{KeyCutoff, KeyNumSpecies, KeyTypeNames} {
		if _, ok := kv[key]; !ok {
			return nil, fmt.Errorf("%w: missing required key %q", ErrMetadata, key)
		}
	}

	for key, value := range kv {
		switch key {
		case KeyName:
			meta.Name = value
		case KeyVersion:
			meta.Version = value
		case KeyBackend:
			meta.Backend = value
		case KeyCutoff:
			cutoff, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing %s %q: %v", ErrMetadata, KeyCutoff, value, err)
			}
			if cutoff <= 0 {
				return nil, fmt.Errorf("%w: %s must be positive, got %g", ErrMetadata, KeyCutoff, cutoff)
			}
			meta.Cutoff = cutoff
		case KeyNumSpecies:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing %s %q: %v", ErrMetadata, KeyNumSpecies, value, err)
			}
			if n <= 0 {
				return nil, fmt.Errorf("%w: %s must be positive, got %d", ErrMetadata, KeyNumSpecies, n)
			}
			meta.NumSpecies = n
		case KeyTypeNames:
			meta.TypeNames = strings.Fields(value)
		case KeyAllowTF32:
			allow, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing %s %q: %v", ErrMetadata, KeyAllowTF32, value, err)
			}
			meta.AllowTF32 = allow
		default:
			meta.Extra[key] = value
		}
	}

	if len(meta.TypeNames) != meta.NumSpecies {
		return nil, fmt.Errorf("%w: %d type names for %d species", ErrMetadata, len(meta.TypeNames), meta.NumSpecies)
	}

	return meta, nil
}
