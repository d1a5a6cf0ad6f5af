package xrmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
	fbx "github.com/flywave/ofbx"
)

// FbxLoader imports FBX files. Every FBX mesh becomes a group node with one
// leaf per material batch; vertices are baked with the mesh's global
// matrix so all node transforms start as identity.
type FbxLoader struct {
	// ResourceDir is where texture references are looked up. Empty means
	// the directory of the model file.
	ResourceDir string

	texDir string
	mtlMap map[*fbx.Material]*Material
}

func (ld *FbxLoader) Load(ctx context.Context, path string) (*Model, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fbx %s: %w", path, err)
	}
	defer f.Close()

	scene, err := fbx.Load(f)
	if err != nil {
		return nil, fmt.Errorf("parse fbx %s: %w", path, err)
	}
	ld.texDir = ld.ResourceDir
	if ld.texDir == "" {
		ld.texDir = filepath.Dir(path)
	}
	ld.mtlMap = make(map[*fbx.Material]*Material)

	root := NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, mh := range scene.Meshes {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		if nd := ld.convertMesh(mh); nd != nil {
			root.Add(nd)
		}
	}
	return NewModel(path, root), nil
}

func (ld *FbxLoader) convertMesh(mh *fbx.Mesh) *Node {
	g := mh.Geometry
	if g == nil || len(g.Faces) == 0 {
		return nil
	}
	mtx := fbx.GetGlobalMatrix(mh)

	src := &fbxVertices{
		positions: make([]dvec3.T, len(g.Vertices)),
		matrix:    fbxMatrix(mtx.ToArray()),
	}
	for i, v := range g.Vertices {
		src.positions[i] = dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])}
	}
	for _, n := range g.Normals {
		src.normals = append(src.normals, dvec3.T{float64(n[0]), float64(n[1]), float64(n[2])})
	}
	for _, uv := range g.UVs[0] {
		src.uvs = append(src.uvs, [2]float64{float64(uv[0]), float64(uv[1])})
	}

	material := func(batchId int) *Material {
		if batchId >= 0 && batchId < len(mh.Materials) {
			return ld.convertMaterial(mh.Materials[batchId])
		}
		return nil
	}
	return batchFaces(mh.Name(), g.Faces, g.Materials, src, material)
}

// fbxVertices is the control point data of one FBX mesh. Positions are
// baked with matrix when emitted.
type fbxVertices struct {
	positions []dvec3.T
	normals   []dvec3.T
	uvs       [][2]float64
	matrix    dmat.T
}

// batchFaces groups faces by their batch id into one leaf each under a
// group named name. batches may be shorter than faces; missing ids are 0.
// Triangles with a corner outside positions are dropped whole.
func batchFaces(name string, faces [][]int, batches []int, src *fbxVertices, material func(int) *Material) *Node {
	group := NewNode(name)
	leaves := make(map[int]*Node)
	remap := make(map[int]map[int]uint32)
	var order []int
	pts := src.positions

	for i, face := range faces {
		batchId := 0
		if i < len(batches) {
			batchId = batches[i]
		}
		leaf, ok := leaves[batchId]
		if !ok {
			leaf = NewNode(fmt.Sprintf("%s#%d", name, batchId))
			leaf.Geometry = &Geometry{}
			leaf.Material = material(batchId)
			leaves[batchId] = leaf
			remap[batchId] = make(map[int]uint32)
			order = append(order, batchId)
		}
		geo := leaf.Geometry
		idx := remap[batchId]

		for _, tri := range triangulate(face, pts) {
			if !indicesInRange(tri[:], len(pts)) {
				continue
			}
			for _, vi := range tri {
				ni, ok := idx[vi]
				if !ok {
					ni = uint32(len(geo.Positions))
					geo.Positions = append(geo.Positions, src.matrix.MulVec3(&pts[vi]))
					if vi < len(src.normals) {
						geo.Normals = append(geo.Normals, src.normals[vi])
					}
					if vi < len(src.uvs) {
						geo.UVs = append(geo.UVs, src.uvs[vi])
					}
					idx[vi] = ni
				}
				geo.Indices = append(geo.Indices, ni)
			}
		}
	}

	for _, id := range order {
		leaf := leaves[id]
		// partial attribute streams cannot be indexed consistently
		if len(leaf.Geometry.Normals) != len(leaf.Geometry.Positions) {
			leaf.Geometry.Normals = nil
		}
		if len(leaf.Geometry.UVs) != len(leaf.Geometry.Positions) {
			leaf.Geometry.UVs = nil
		}
		group.Add(leaf)
	}
	return group
}

func (ld *FbxLoader) convertMaterial(mt *fbx.Material) *Material {
	if mt == nil {
		return nil
	}
	if m, ok := ld.mtlMap[mt]; ok {
		return m
	}
	var diffuse, normal string
	if mt.Textures[0] != nil {
		diffuse = mt.Textures[0].GetRelativeFileName().String()
	}
	if mt.Textures[1] != nil {
		normal = mt.Textures[1].GetRelativeFileName().String()
	}
	cl := mt.DiffuseColor
	m := fbxMaterial(mt.Name(), [3]float64{float64(cl.R), float64(cl.G), float64(cl.B)}, diffuse, normal, ld.texDir)
	ld.mtlMap[mt] = m
	return m
}

// fbxMaterial builds an opaque material; texture references are resolved
// flat against texDir.
func fbxMaterial(name string, diffuse [3]float64, diffuseTex, normalTex, texDir string) *Material {
	m := NewMaterial(name)
	m.Color = [4]float64{diffuse[0], diffuse[1], diffuse[2], 1}
	if diffuseTex != "" {
		m.Texture = ResolveTexturePath(texDir, diffuseTex)
	}
	if normalTex != "" {
		m.NormalTexture = ResolveTexturePath(texDir, normalTex)
	}
	return m
}

func fbxMatrix(a [16]float64) dmat.T {
	return dmat.T{
		dvec4.T{a[0], a[1], a[2], a[3]},
		dvec4.T{a[4], a[5], a[6], a[7]},
		dvec4.T{a[8], a[9], a[10], a[11]},
		dvec4.T{a[12], a[13], a[14], a[15]},
	}
}

// triangulate splits a polygon into triangles. Quads are cut along the
// shorter diagonal, larger polygons are fanned from the first corner.
func triangulate(face []int, vertices []dvec3.T) [][3]int {
	switch n := len(face); {
	case n < 3:
		return nil
	case n == 3:
		return [][3]int{{face[0], face[1], face[2]}}
	case n == 4 && indicesInRange(face, len(vertices)):
		d02 := dvec3.Sub(&vertices[face[0]], &vertices[face[2]])
		d13 := dvec3.Sub(&vertices[face[1]], &vertices[face[3]])
		if d02.Length() <= d13.Length() {
			return [][3]int{{face[0], face[1], face[2]}, {face[0], face[2], face[3]}}
		}
		return [][3]int{{face[0], face[1], face[3]}, {face[1], face[2], face[3]}}
	default:
		tris := make([][3]int, 0, n-2)
		for i := 1; i < n-1; i++ {
			tris = append(tris, [3]int{face[0], face[i], face[i+1]})
		}
		return tris
	}
}

// indicesInRange reports whether every index addresses one of n vertices.
func indicesInRange(face []int, n int) bool {
	for _, f := range face {
		if f < 0 || f >= n {
			return false
		}
	}
	return true
}
