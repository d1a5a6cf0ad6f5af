package xrmodel

import (
	"path/filepath"
	"testing"

	tds "github.com/flywave/go-3ds"
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

func TestThreeDsConvertMesh(t *testing.T) {
	texDir := filepath.Join("assets", "ship")
	ld := &ThreeDsLoader{texDir: texDir, mtlMap: make(map[int32]*Material)}

	var hull tds.Material
	hull.Diffuse = [3]float32{0, 0, 1}
	copy(hull.Texture1Map.Name[:], `C:\paint\hull.png`)

	mesh := &tds.Mesh{
		Name: "hull",
		Matrix: [4][4]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{2, 0, 0, 1},
		},
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		Faces: []tds.Face{
			{Index: [3]uint16{0, 1, 99}},
			{Index: [3]uint16{1, 3, 2}},
			{Index: [3]uint16{0, 1, 2}, Material: 5},
		},
	}

	group := ld.convertMesh(mesh, []tds.Material{hull})
	if group == nil || len(group.Children) != 2 {
		t.Fatalf("expected one leaf per face material, got %+v", group)
	}

	painted := group.Children[0]
	geo := painted.Geometry
	if len(geo.Indices) != 3 {
		t.Fatalf("bad face must be dropped whole, got indices %v", geo.Indices)
	}
	for _, idx := range geo.Indices {
		if int(idx) >= len(geo.Positions) {
			t.Fatalf("index %d out of %d positions", idx, len(geo.Positions))
		}
	}
	if p := geo.Positions[geo.Indices[0]]; !vecNear(p, dvec3.T{3, 0, 0}, 1e-9) {
		t.Errorf("first corner = %v, want translated (3,0,0)", p)
	}

	if painted.Material == nil || painted.Material.Color != [4]float64{0, 0, 1, 1} {
		t.Errorf("material = %+v", painted.Material)
	}
	if want := filepath.Join(texDir, "hull.png"); painted.Material.Texture != want {
		t.Errorf("texture = %q, want %q", painted.Material.Texture, want)
	}
	if group.Children[1].Material != nil {
		t.Errorf("out of range material id should leave the leaf bare")
	}
}

func TestCString(t *testing.T) {
	var b [8]byte
	copy(b[:], "abc")
	if got := cString(b[:]); got != "abc" {
		t.Errorf("cString = %q", got)
	}
	if got := cString([]byte("full")); got != "full" {
		t.Errorf("cString without terminator = %q", got)
	}
}
