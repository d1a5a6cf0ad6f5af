package xrmodel

import (
	"path/filepath"
	"testing"

	dvec3 "github.com/flywave/go3d/float64/vec3"
)

func TestBatchFaces(t *testing.T) {
	mtx := fbxMatrix([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 10, 1})
	src := &fbxVertices{
		positions: []dvec3.T{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		normals:   []dvec3.T{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		matrix:    mtx,
	}
	faces := [][]int{
		{0, 1, 99},
		{1, 3, 2},
		{0, 1, 3, 2},
	}
	batches := []int{0, 0}

	calls := make(map[int]int)
	material := func(id int) *Material {
		calls[id]++
		return NewMaterial("m")
	}

	group := batchFaces("chair", faces, batches, src, material)
	if len(group.Children) != 1 {
		t.Fatalf("missing batch ids should fall back to 0, got %d leaves", len(group.Children))
	}
	if calls[0] != 1 {
		t.Errorf("material requested %d times for one batch", calls[0])
	}

	leaf := group.Children[0]
	if leaf.Name != "chair#0" {
		t.Errorf("leaf name = %q", leaf.Name)
	}
	geo := leaf.Geometry
	if len(geo.Indices) != 9 {
		t.Fatalf("expected 3 triangles, got indices %v", geo.Indices)
	}
	for _, idx := range geo.Indices {
		if int(idx) >= len(geo.Positions) {
			t.Fatalf("index %d out of %d positions", idx, len(geo.Positions))
		}
	}
	if len(geo.Normals) != len(geo.Positions) {
		t.Errorf("normals = %d, positions = %d", len(geo.Normals), len(geo.Positions))
	}
	if geo.UVs != nil {
		t.Errorf("uvs should be dropped when absent")
	}
	for _, p := range geo.Positions {
		if p[2] != 10 {
			t.Errorf("position %v not baked with the mesh matrix", p)
		}
	}
}

func TestFbxMaterial(t *testing.T) {
	texDir := filepath.Join("models", "fbx")
	m := fbxMaterial("leather", [3]float64{0.5, 0.25, 0}, `D:\work\maps\leather.jpg`, "normals/leather_n.png", texDir)
	if m.Name != "leather" || m.Color != [4]float64{0.5, 0.25, 0, 1} {
		t.Errorf("unexpected material %+v", m)
	}
	if want := filepath.Join(texDir, "leather.jpg"); m.Texture != want {
		t.Errorf("texture = %q, want %q", m.Texture, want)
	}
	if want := filepath.Join(texDir, "leather_n.png"); m.NormalTexture != want {
		t.Errorf("normal texture = %q, want %q", m.NormalTexture, want)
	}

	bare := fbxMaterial("bare", [3]float64{1, 1, 1}, "", "", texDir)
	if bare.Texture != "" || bare.NormalTexture != "" {
		t.Errorf("untextured material got %q %q", bare.Texture, bare.NormalTexture)
	}

	if (&FbxLoader{}).convertMaterial(nil) != nil {
		t.Error("nil fbx material should convert to nil")
	}
}

func TestIndicesInRange(t *testing.T) {
	tests := []struct {
		face []int
		want bool
	}{
		{[]int{0, 1, 2}, true},
		{[]int{0, 1, 4}, false},
		{[]int{-1, 1, 2}, false},
		{nil, true},
	}
	for _, tt := range tests {
		if got := indicesInRange(tt.face, 4); got != tt.want {
			t.Errorf("indicesInRange(%v) = %v, want %v", tt.face, got, tt.want)
		}
	}
}
