package xrmodel

import (
	"errors"
	"testing"

	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// gridLeaf builds an n x n quad grid on the XZ plane with a gentle bump.
func gridLeaf(n int) *Node {
	g := &Geometry{}
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			y := 0.0
			if x == n/2 && z == n/2 {
				y = 1
			}
			g.Positions = append(g.Positions, dvec3.T{float64(x), y, float64(z)})
			g.UVs = append(g.UVs, [2]float64{float64(x) / float64(n), float64(z) / float64(n)})
		}
	}
	row := uint32(n + 1)
	for z := uint32(0); z < uint32(n); z++ {
		for x := uint32(0); x < uint32(n); x++ {
			a := z*row + x
			g.Indices = append(g.Indices, a, a+row, a+1, a+1, a+row, a+row+1)
		}
	}
	leaf := NewNode("grid")
	leaf.Geometry = g
	leaf.Material = NewMaterial("ground")
	return leaf
}

func TestSimplify(t *testing.T) {
	leaf := gridLeaf(16)
	m := NewModel("grid", NewNode("root").Add(leaf))
	before := m.Stats().Triangles

	out, err := Simplify(m, 0.25)
	if err != nil {
		t.Fatalf("Simplify: %v", err)
	}
	got := out.Stats()
	if got.Triangles == 0 || got.Triangles >= before {
		t.Errorf("expected fewer triangles than %d, got %d", before, got.Triangles)
	}
	sl := out.Root.Children[0]
	if sl.Material == nil || sl.Material.Name != "ground" {
		t.Error("material lost")
	}
	if sl.Geometry.UVs != nil || sl.Geometry.Normals != nil {
		t.Error("simplified leaf kept stale attributes")
	}
	for _, i := range sl.Geometry.Indices {
		if int(i) >= len(sl.Geometry.Positions) {
			t.Fatalf("index %d out of range", i)
		}
	}
	if m.Stats().Triangles != before || leaf.Geometry.UVs == nil {
		t.Error("input modified")
	}
}

func TestSimplifyFactorOne(t *testing.T) {
	m := NewModel("grid", NewNode("root").Add(gridLeaf(4)))
	out, err := Simplify(m, 1)
	if err != nil {
		t.Fatalf("Simplify: %v", err)
	}
	if out == m || out.Stats() != m.Stats() {
		t.Error("factor 1 must return an unchanged copy")
	}
}

func TestSimplifyInvalid(t *testing.T) {
	m := NewModel("grid", NewNode("root").Add(gridLeaf(2)))
	for _, f := range []float64{0, -0.5, 1.5} {
		if _, err := Simplify(m, f); !errors.Is(err, ErrSimplifyFactor) {
			t.Errorf("factor %g: expected ErrSimplifyFactor, got %v", f, err)
		}
	}
	if _, err := Simplify(nil, 0.5); !errors.Is(err, ErrEmptyHierarchy) {
		t.Errorf("expected ErrEmptyHierarchy, got %v", err)
	}
}
