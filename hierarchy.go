package xrmodel

import (
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// Side selects which faces of a surface are rasterized.
type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

func (s Side) String() string {
	switch s {
	case BackSide:
		return "back"
	case DoubleSide:
		return "double"
	default:
		return "front"
	}
}

// Material is the surface description attached to a renderable leaf.
type Material struct {
	Name      string
	Side      Side
	Color     [4]float64
	Metallic  float64
	Roughness float64
	// Texture and NormalTexture are resolved file paths, empty when unset.
	Texture       string
	NormalTexture string
}

func NewMaterial(name string) *Material {
	return &Material{Name: name, Color: [4]float64{1, 1, 1, 1}, Roughness: 1}
}

// Geometry holds triangle data in the local space of its node.
type Geometry struct {
	Positions []dvec3.T
	Normals   []dvec3.T
	UVs       [][2]float64
	Indices   []uint32
}

func (g *Geometry) TriangleCount() int {
	if g == nil {
		return 0
	}
	if len(g.Indices) == 0 {
		return len(g.Positions) / 3
	}
	return len(g.Indices) / 3
}

func (g *Geometry) clone() *Geometry {
	if g == nil {
		return nil
	}
	c := &Geometry{
		Positions: append([]dvec3.T(nil), g.Positions...),
		Normals:   append([]dvec3.T(nil), g.Normals...),
		UVs:       append([][2]float64(nil), g.UVs...),
		Indices:   append([]uint32(nil), g.Indices...),
	}
	return c
}

// Node is one element of a mesh hierarchy. A node with Geometry is a
// renderable leaf.
type Node struct {
	Name     string
	Position dvec3.T
	Rotation Euler
	Scale    dvec3.T
	Children []*Node

	Geometry *Geometry
	Material *Material

	CastShadow    bool
	ReceiveShadow bool
}

func NewNode(name string) *Node {
	return &Node{Name: name, Scale: dvec3.T{1, 1, 1}}
}

func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

func (n *Node) IsMesh() bool {
	return n.Geometry != nil
}

// Traverse visits n and every descendant depth first, parents before
// children.
func (n *Node) Traverse(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Traverse(fn)
	}
}

// clone deep copies the subtree. Materials shared between nodes stay
// shared in the copy.
func (n *Node) clone(mtls map[*Material]*Material) *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Geometry = n.Geometry.clone()
	if n.Material != nil {
		mc, ok := mtls[n.Material]
		if !ok {
			cp := *n.Material
			mc = &cp
			mtls[n.Material] = mc
		}
		c.Material = mc
	}
	c.Children = make([]*Node, 0, len(n.Children))
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.clone(mtls))
	}
	return &c
}

// Model is an imported asset: a root node plus where it came from.
type Model struct {
	Root   *Node
	Source string

	normalized bool
}

func NewModel(source string, root *Node) *Model {
	return &Model{Root: root, Source: source}
}

// Normalized reports whether m was produced by Normalize.
func (m *Model) Normalized() bool {
	return m != nil && m.normalized
}

// Clone returns a deep copy of m, including the normalized marker.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	return &Model{Root: m.Root.clone(make(map[*Material]*Material)), Source: m.Source, normalized: m.normalized}
}

// Stats counts nodes, renderable leaves, triangles and materials.
type Stats struct {
	Nodes     int
	Meshes    int
	Triangles int
	Materials int
}

func (m *Model) Stats() Stats {
	var st Stats
	if m == nil {
		return st
	}
	seen := make(map[*Material]bool)
	m.Root.Traverse(func(n *Node) {
		st.Nodes++
		if n.IsMesh() {
			st.Meshes++
			st.Triangles += n.Geometry.TriangleCount()
		}
		if n.Material != nil && !seen[n.Material] {
			seen[n.Material] = true
			st.Materials++
		}
	})
	return st
}
