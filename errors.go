package xrmodel

import "errors"

var (
	ErrEmptyHierarchy      = errors.New("xrmodel: hierarchy has no geometry")
	ErrDegenerateBounds    = errors.New("xrmodel: bounding box has no vertical extent")
	ErrAlreadyNormalized   = errors.New("xrmodel: model is already normalized")
	ErrInvalidTargetHeight = errors.New("xrmodel: target height must be positive and finite")
	ErrUnsupportedFormat   = errors.New("xrmodel: unsupported model format")
	ErrSimplifyFactor      = errors.New("xrmodel: simplify factor must be in (0, 1]")
)
