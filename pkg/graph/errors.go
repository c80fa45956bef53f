package graph

import "errors"

var (
	ErrNoEdges      = errors.New("graph: no edges within cutoff")
	ErrTagRange     = errors.New("graph: atom tag outside [1, local count]")
	ErrTagDuplicate = errors.New("graph: duplicate atom tag among locals")
	ErrGhostOrphan  = errors.New("graph: ghost tag has no local atom")
	ErrUnmappedType = errors.New("graph: atom type has no species mapping")
)
