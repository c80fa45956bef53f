package model

import "errors"

var (
	ErrMetadata       = errors.New("model: invalid metadata")
	ErrArtifactFormat = errors.New("model: malformed artifact")
	ErrForward        = errors.New("model: forward pass failed")
	ErrMissingOutput  = errors.New("model: required output missing")
	ErrOutputShape    = errors.New("model: output has wrong shape or dtype")
)
