package xrmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gobj "github.com/flywave/go-obj"
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// ObjLoader imports Wavefront OBJ files with their MTL library. Faces are
// grouped into one leaf per material name.
type ObjLoader struct {
	ResourceDir string

	currentPath string
	texDir      string
}

type objCornerKey struct {
	v, vt, vn int
}

func (ld *ObjLoader) Load(ctx context.Context, path string) (*Model, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	ld.currentPath = path
	ld.texDir = ld.ResourceDir
	if ld.texDir == "" {
		ld.texDir = filepath.Dir(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj %s: %w", path, err)
	}
	defer file.Close()

	reader := &gobj.ObjReader{}
	if err := reader.Read(file); err != nil {
		return nil, fmt.Errorf("parse obj %s: %w", path, err)
	}

	mtls := ld.readMaterials(reader)
	root := NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	leaves := make(map[string]*Node)
	remap := make(map[string]map[objCornerKey]uint32)
	var order []string

	pts := make([]dvec3.T, len(reader.V))
	for i, v := range reader.V {
		pts[i] = dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])}
	}

	for _, face := range reader.F {
		if len(face.Corners) < 3 {
			continue
		}
		name := face.Material
		if name == "" {
			name = "default"
		}
		leaf, ok := leaves[name]
		if !ok {
			leaf = NewNode(name)
			leaf.Geometry = &Geometry{}
			leaf.Material = mtls[face.Material]
			leaves[name] = leaf
			remap[name] = make(map[objCornerKey]uint32)
			order = append(order, name)
		}
		geo := leaf.Geometry
		idx := remap[name]

		slots, local := faceCorners(face.Corners, pts)
		for _, tri := range triangulate(slots, local) {
			if !cornersInRange(face.Corners, tri, len(pts)) {
				continue
			}
			for _, si := range tri {
				c := face.Corners[si]
				key := objCornerKey{c.VertexIndex, c.TexCoordIndex, c.NormalIndex}
				ni, ok := idx[key]
				if !ok {
					ni = uint32(len(geo.Positions))
					geo.Positions = append(geo.Positions, pts[c.VertexIndex])
					if c.NormalIndex >= 0 && c.NormalIndex < len(reader.VN) {
						n := reader.VN[c.NormalIndex]
						geo.Normals = append(geo.Normals, dvec3.T{float64(n[0]), float64(n[1]), float64(n[2])})
					}
					if c.TexCoordIndex >= 0 && c.TexCoordIndex < len(reader.VT) {
						t := reader.VT[c.TexCoordIndex]
						geo.UVs = append(geo.UVs, [2]float64{float64(t[0]), float64(t[1])})
					}
					idx[key] = ni
				}
				geo.Indices = append(geo.Indices, ni)
			}
		}
	}

	for _, name := range order {
		leaf := leaves[name]
		if len(leaf.Geometry.Normals) != len(leaf.Geometry.Positions) {
			leaf.Geometry.Normals = nil
		}
		if len(leaf.Geometry.UVs) != len(leaf.Geometry.Positions) {
			leaf.Geometry.UVs = nil
		}
		root.Add(leaf)
	}
	return NewModel(path, root), nil
}

// faceCorners returns corner slots 0..n-1 and the corner positions, so a
// triangulation of the slots maps straight back to face.Corners.
func faceCorners(corners []gobj.FaceCorner, pts []dvec3.T) ([]int, []dvec3.T) {
	slots := make([]int, len(corners))
	local := make([]dvec3.T, len(corners))
	for i, c := range corners {
		slots[i] = i
		if c.VertexIndex >= 0 && c.VertexIndex < len(pts) {
			local[i] = pts[c.VertexIndex]
		}
	}
	return slots, local
}

func cornersInRange(corners []gobj.FaceCorner, tri [3]int, n int) bool {
	for _, si := range tri {
		if vi := corners[si].VertexIndex; vi < 0 || vi >= n {
			return false
		}
	}
	return true
}

func (ld *ObjLoader) readMaterials(reader *gobj.ObjReader) map[string]*Material {
	out := make(map[string]*Material)
	if reader.MTL == "" {
		return out
	}
	mtlPath := reader.MTL
	if !filepath.IsAbs(mtlPath) {
		mtlPath = filepath.Join(filepath.Dir(ld.currentPath), reader.MTL)
	}
	loaded, err := gobj.ReadMaterials(mtlPath)
	if err != nil {
		return out
	}
	for name, om := range loaded {
		if om == nil {
			continue
		}
		m := NewMaterial(name)
		if d := om.Diffuse; len(d) >= 3 {
			m.Color = [4]float64{float64(d[0]), float64(d[1]), float64(d[2]), 1}
		}
		m.Metallic = float64(om.Metallic)
		if om.Roughness > 0 {
			m.Roughness = float64(om.Roughness)
		}
		if om.DiffuseTexture != "" {
			m.Texture = ResolveTexturePath(ld.texDir, om.DiffuseTexture)
		}
		if om.BumpTexture != "" {
			m.NormalTexture = ResolveTexturePath(ld.texDir, om.BumpTexture)
		}
		out[name] = m
	}
	return out
}
