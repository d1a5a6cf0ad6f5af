package xrmodel

import (
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// Box is an axis-aligned bounding box. An empty box has Min > Max.
type Box struct {
	dvec3.Box
}

func EmptyBox() Box {
	return Box{Box: dvec3.Box{
		Min: dvec3.T{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: dvec3.T{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}}
}

func NewBox(min, max dvec3.T) Box {
	return Box{Box: dvec3.Box{Min: min, Max: max}}
}

func (b *Box) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

func (b *Box) ExpandByPoint(p *dvec3.T) {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
}

func (b *Box) Size() dvec3.T {
	if b.IsEmpty() {
		return dvec3.Zero
	}
	return dvec3.Sub(&b.Max, &b.Min)
}

func (b *Box) Center() dvec3.T {
	if b.IsEmpty() {
		return dvec3.Zero
	}
	c := dvec3.Add(&b.Min, &b.Max)
	return *c.Scale(0.5)
}

// Array returns min x,y,z followed by max x,y,z.
func (b *Box) Array() *[6]float64 {
	return &[6]float64{b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2]}
}

// ComputeBounds returns the world-space box of every geometry vertex under
// root, root's own transform included. It is recomputed on each call.
func ComputeBounds(root *Node) Box {
	bx := EmptyBox()
	walkWorld(root, &dmat.Ident, func(n *Node, world *dmat.T) {
		if !n.IsMesh() {
			return
		}
		for i := range n.Geometry.Positions {
			p := world.MulVec3(&n.Geometry.Positions[i])
			bx.ExpandByPoint(&p)
		}
	})
	return bx
}
