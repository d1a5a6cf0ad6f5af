package xrmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tds "github.com/flywave/go-3ds"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
)

// ThreeDsLoader imports Autodesk 3DS files. Each mesh is split into one
// leaf per face material; vertices are baked with the mesh matrix.
type ThreeDsLoader struct {
	ResourceDir string

	texDir string
	mtlMap map[int32]*Material
}

func (ld *ThreeDsLoader) Load(ctx context.Context, path string) (model *Model, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open 3ds %s: %w", path, err)
	}
	// malformed chunks surface as parser panics
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("parse 3ds %s: %v", path, r)
		}
	}()

	f := tds.OpenFile(path)
	ld.texDir = ld.ResourceDir
	if ld.texDir == "" {
		ld.texDir = filepath.Dir(path)
	}
	ld.mtlMap = make(map[int32]*Material)

	mtls := f.GetMaterials()
	root := NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, m := range f.GetMeshs() {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		if nd := ld.convertMesh(&m, mtls); nd != nil {
			root.Add(nd)
		}
	}
	return NewModel(path, root), nil
}

func (ld *ThreeDsLoader) convertMesh(m *tds.Mesh, mtls []tds.Material) *Node {
	if len(m.Faces) == 0 {
		return nil
	}
	mat := dmat.Ident
	for i, r := range m.Matrix {
		mat[i] = dvec4.T{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
	}

	pts := make([]dvec3.T, len(m.Vertices))
	for i, v := range m.Vertices {
		pts[i] = mat.MulVec3(&dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
	}
	hasUV := len(m.Texcos) == len(m.Vertices)

	group := NewNode(m.Name)
	leaves := make(map[int32]*Node)
	remap := make(map[int32]map[int]uint32)
	var order []int32

	for _, face := range m.Faces {
		leaf, ok := leaves[face.Material]
		if !ok {
			leaf = NewNode(fmt.Sprintf("%s#%d", m.Name, face.Material))
			leaf.Geometry = &Geometry{}
			if face.Material >= 0 && int(face.Material) < len(mtls) {
				leaf.Material = ld.convertMaterial(face.Material, &mtls[face.Material])
			}
			leaves[face.Material] = leaf
			remap[face.Material] = make(map[int]uint32)
			order = append(order, face.Material)
		}
		geo := leaf.Geometry
		idx := remap[face.Material]
		if int(face.Index[0]) >= len(pts) || int(face.Index[1]) >= len(pts) || int(face.Index[2]) >= len(pts) {
			continue
		}
		for _, fi := range face.Index {
			vi := int(fi)
			ni, ok := idx[vi]
			if !ok {
				ni = uint32(len(geo.Positions))
				geo.Positions = append(geo.Positions, pts[vi])
				if hasUV {
					uv := m.Texcos[vi]
					geo.UVs = append(geo.UVs, [2]float64{float64(uv[0]), float64(uv[1])})
				}
				idx[vi] = ni
			}
			geo.Indices = append(geo.Indices, ni)
		}
	}

	for _, id := range order {
		group.Add(leaves[id])
	}
	return group
}

func (ld *ThreeDsLoader) convertMaterial(id int32, tm *tds.Material) *Material {
	if m, ok := ld.mtlMap[id]; ok {
		return m
	}
	m := NewMaterial(fmt.Sprintf("material%d", id))
	m.Color = [4]float64{
		float64(tm.Diffuse[0]), float64(tm.Diffuse[1]), float64(tm.Diffuse[2]),
		1 - float64(tm.Transparency),
	}
	if tex := cString(tm.Texture1Map.Name[:]); tex != "" {
		m.Texture = ResolveTexturePath(ld.texDir, tex)
	}
	ld.mtlMap[id] = m
	return m
}

// cString cuts a fixed-size, NUL-terminated name.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
