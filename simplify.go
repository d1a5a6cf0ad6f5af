package xrmodel

import (
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/fogleman/simplify"
)

// Simplify returns a copy of m whose leaves are decimated to roughly factor
// of their triangles by quadric edge collapse. The collapse only tracks
// positions, so simplified leaves lose their normals and UVs. A leaf that
// would collapse to nothing keeps its original geometry.
func Simplify(m *Model, factor float64) (*Model, error) {
	if m == nil || m.Root == nil {
		return nil, ErrEmptyHierarchy
	}
	if !(factor > 0 && factor <= 1) {
		return nil, ErrSimplifyFactor
	}
	out := m.Clone()
	if factor == 1 {
		return out, nil
	}
	out.Root.Traverse(func(n *Node) {
		if n.Geometry.TriangleCount() == 0 {
			return
		}
		if g := simplifyGeometry(n.Geometry, factor); g != nil {
			n.Geometry = g
		}
	})
	return out, nil
}

func simplifyGeometry(g *Geometry, factor float64) *Geometry {
	vec := func(i uint32) simplify.Vector {
		p := g.Positions[i]
		return simplify.Vector{X: p[0], Y: p[1], Z: p[2]}
	}
	n := uint32(len(g.Positions))
	var tris []*simplify.Triangle
	if len(g.Indices) == 0 {
		for i := uint32(0); i+2 < n; i += 3 {
			tris = append(tris, simplify.NewTriangle(vec(i), vec(i+1), vec(i+2)))
		}
	} else {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			a, b, c := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
			if a >= n || b >= n || c >= n {
				continue
			}
			tris = append(tris, simplify.NewTriangle(vec(a), vec(b), vec(c)))
		}
	}
	if len(tris) == 0 {
		return nil
	}

	res := simplify.NewMesh(tris).Simplify(factor)
	if len(res.Triangles) == 0 {
		return nil
	}
	out := &Geometry{}
	idx := make(map[simplify.Vector]uint32)
	add := func(v simplify.Vector) {
		i, ok := idx[v]
		if !ok {
			i = uint32(len(out.Positions))
			out.Positions = append(out.Positions, dvec3.T{v.X, v.Y, v.Z})
			idx[v] = i
		}
		out.Indices = append(out.Indices, i)
	}
	for _, t := range res.Triangles {
		add(t.V1)
		add(t.V2)
		add(t.V3)
	}
	return out
}
