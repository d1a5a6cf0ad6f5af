package xrmodel

import (
	"math"

	"go.uber.org/zap"
)

const DefaultTargetHeight = 3.0

// DefaultOrientation compensates the export orientation of the bundled
// asset: 90° about X, then 180° about Y.
var DefaultOrientation = EulerDegrees(90, 180, 0)

type NormalizeOptions struct {
	TargetHeight float64
	Orientation  Euler
	Logger       *zap.Logger
}

func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		TargetHeight: DefaultTargetHeight,
		Orientation:  DefaultOrientation,
	}
}

// Normalized is the result of a successful Normalize.
type Normalized struct {
	Model *Model
	// Scale is the uniform factor applied to the root.
	Scale float64
	// Bounds is the world-space box after normalization.
	Bounds Box
}

// Normalize reorients, scales, centers and floor-aligns a copy of m so that
// its box is TargetHeight tall, centered on x = z = 0 and resting on y = 0.
// Every leaf with a material becomes double-sided and casts and receives
// shadows. m itself is left untouched.
//
// A model returned by Normalize cannot be normalized again: repeating the
// transform would rescale and offset it a second time.
func Normalize(m *Model, opts NormalizeOptions) (*Normalized, error) {
	if m == nil || m.Root == nil {
		return nil, ErrEmptyHierarchy
	}
	if m.normalized {
		return nil, ErrAlreadyNormalized
	}
	h := opts.TargetHeight
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return nil, ErrInvalidTargetHeight
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	out := m.Clone()
	root := out.Root

	root.Rotation = opts.Orientation

	box := ComputeBounds(root)
	if box.IsEmpty() {
		return nil, ErrEmptyHierarchy
	}
	size := box.Size()
	scale := h / size[1]
	if !(size[1] > 0) || math.IsInf(scale, 0) || math.IsNaN(scale) {
		log.Warn("degenerate model bounds",
			zap.String("source", m.Source),
			zap.Float64s("size", size[:]))
		return nil, ErrDegenerateBounds
	}
	root.Scale[0], root.Scale[1], root.Scale[2] = scale, scale, scale

	box = ComputeBounds(root)
	center := box.Center()
	root.Position[0] -= center[0]
	root.Position[2] -= center[2]

	box = ComputeBounds(root)
	root.Position[1] -= box.Min[1]

	ApplySurfaceFlags(root)

	out.normalized = true
	res := &Normalized{Model: out, Scale: scale, Bounds: ComputeBounds(root)}

	log.Debug("model normalized",
		zap.String("source", m.Source),
		zap.Float64s("native_size", size[:]),
		zap.Float64("scale", scale),
		zap.Float64s("position", root.Position[:]),
		zap.Float64s("bounds", res.Bounds.Array()[:]))
	return res, nil
}

// ApplySurfaceFlags makes every leaf under root that has a material
// double-sided and marks it as shadow caster and receiver. Leaves without
// a material are not modified. Applying it twice is a no-op.
func ApplySurfaceFlags(root *Node) {
	root.Traverse(func(n *Node) {
		if !n.IsMesh() || n.Material == nil {
			return
		}
		n.Material.Side = DoubleSide
		n.CastShadow = true
		n.ReceiveShadow = true
	})
}
