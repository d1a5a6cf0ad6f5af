package xrmodel

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	gobj "github.com/flywave/go-obj"
)

const twoMaterialObj = `mtllib scene.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
usemtl wood
f 1 2 3
f 1 3 4
usemtl steel
f 1 2 6 5
`

const twoMaterialMtl = `newmtl wood
Kd 0.6 0.4 0.2
map_Kd maps/wood.png

newmtl steel
Kd 0.5 0.5 0.5
`

func writeObjFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scene.obj")
	if err := os.WriteFile(path, []byte(twoMaterialObj), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scene.mtl"), []byte(twoMaterialMtl), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func objLeaves(m *Model) map[string]*Node {
	out := make(map[string]*Node)
	m.Root.Traverse(func(n *Node) {
		if n.IsMesh() {
			out[n.Name] = n
		}
	})
	return out
}

func TestObjLoadMaterials(t *testing.T) {
	dir := t.TempDir()
	path := writeObjFixture(t, dir)
	resDir := filepath.Join(dir, "textures")

	tests := []struct {
		resourceDir string
		wantTex     string
	}{
		{"", filepath.Join(dir, "wood.png")},
		{resDir, filepath.Join(resDir, "wood.png")},
	}
	for _, tt := range tests {
		m, err := (&ObjLoader{ResourceDir: tt.resourceDir}).Load(context.Background(), path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		leaves := objLeaves(m)
		if len(leaves) != 2 {
			t.Fatalf("expected one leaf per material, got %d", len(leaves))
		}

		wood, steel := leaves["wood"], leaves["steel"]
		if wood == nil || steel == nil {
			t.Fatalf("leaves not named by material: %v", leaves)
		}
		if got := wood.Geometry.TriangleCount(); got != 2 {
			t.Errorf("wood: expected 2 triangles, got %d", got)
		}
		if got := steel.Geometry.TriangleCount(); got != 2 {
			t.Errorf("steel: quad should give 2 triangles, got %d", got)
		}
		if wood.Material == nil || wood.Material.Texture != tt.wantTex {
			t.Fatalf("ResourceDir %q: wood texture = %+v, want %q", tt.resourceDir, wood.Material, tt.wantTex)
		}
		if math.Abs(wood.Material.Color[0]-0.6) > 1e-6 || math.Abs(wood.Material.Color[2]-0.2) > 1e-6 {
			t.Errorf("wood color = %v", wood.Material.Color)
		}
		if steel.Material == nil || steel.Material.Texture != "" {
			t.Errorf("steel material = %+v", steel.Material)
		}
	}
}

func TestObjLoaderReuse(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	ld := &ObjLoader{}
	for _, dir := range []string{first, second} {
		m, err := ld.Load(context.Background(), writeObjFixture(t, dir))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		wood := objLeaves(m)["wood"]
		if wood == nil || wood.Material == nil {
			t.Fatalf("%s: no wood material", dir)
		}
		if want := filepath.Join(dir, "wood.png"); wood.Material.Texture != want {
			t.Errorf("texture = %q, want %q", wood.Material.Texture, want)
		}
	}
	if ld.ResourceDir != "" {
		t.Errorf("ResourceDir changed to %q", ld.ResourceDir)
	}
}

func TestCornersInRange(t *testing.T) {
	corners := []gobj.FaceCorner{
		{VertexIndex: 0, TexCoordIndex: -1, NormalIndex: -1},
		{VertexIndex: 1, TexCoordIndex: -1, NormalIndex: -1},
		{VertexIndex: 98, TexCoordIndex: -1, NormalIndex: -1},
		{VertexIndex: 2, TexCoordIndex: -1, NormalIndex: -1},
	}
	tests := []struct {
		tri  [3]int
		want bool
	}{
		{[3]int{0, 1, 3}, true},
		{[3]int{0, 1, 2}, false},
		{[3]int{2, 3, 0}, false},
	}
	for _, tt := range tests {
		if got := cornersInRange(corners, tt.tri, 4); got != tt.want {
			t.Errorf("cornersInRange(%v) = %v, want %v", tt.tri, got, tt.want)
		}
	}
}
