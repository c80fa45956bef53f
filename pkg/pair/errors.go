package pair

import "errors"

var (
	ErrTagsRequired  = errors.New("pair: host must provide stable atom tags")
	ErrNewtonPair    = errors.New("pair: newton pair must be disabled")
	ErrElementCount  = errors.New("pair: element list does not match host type count")
	ErrPerAtomVirial = errors.New("pair: per-atom virial is not supported")
)
