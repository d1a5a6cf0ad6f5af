package xrmodel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// GltfLoader imports .gltf and .glb files, keeping the node tree and its
// TRS transforms. Each primitive becomes a leaf under its node.
type GltfLoader struct {
	doc    *gltf.Document
	dir    string
	mtlMap map[uint32]*Material
}

func (ld *GltfLoader) Load(ctx context.Context, path string) (*Model, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf %s: %w", path, err)
	}
	ld.doc = doc
	ld.dir = filepath.Dir(path)
	ld.mtlMap = make(map[uint32]*Material)

	root := NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, idx := range ld.sceneRoots() {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		nd, err := ld.convertNode(idx, 0)
		if err != nil {
			return nil, fmt.Errorf("gltf %s: %w", path, err)
		}
		root.Add(nd)
	}
	return NewModel(path, root), nil
}

func (ld *GltfLoader) sceneRoots() []uint32 {
	doc := ld.doc
	if len(doc.Scenes) > 0 {
		sc := uint32(0)
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			sc = *doc.Scene
		}
		return doc.Scenes[sc].Nodes
	}
	// no scene: every node that is nobody's child
	child := make(map[uint32]bool)
	for _, nd := range doc.Nodes {
		for _, c := range nd.Children {
			child[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !child[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

// maxGltfNodeDepth guards against cyclic child references in malformed files.
const maxGltfNodeDepth = 256

func (ld *GltfLoader) convertNode(idx uint32, depth int) (*Node, error) {
	if depth > maxGltfNodeDepth {
		return nil, fmt.Errorf("node hierarchy deeper than %d", maxGltfNodeDepth)
	}
	if int(idx) >= len(ld.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	gn := ld.doc.Nodes[idx]
	nd := NewNode(gn.Name)

	if hasMatrix(gn) {
		var m [16]float64
		for i := range m {
			m[i] = float64(gn.Matrix[i])
		}
		nd.Position, nd.Rotation, nd.Scale = decomposeMatrix(m)
	} else {
		nd.Position = dvec3.T{float64(gn.Translation[0]), float64(gn.Translation[1]), float64(gn.Translation[2])}
		nd.Rotation = EulerFromQuaternion(quaternion.T{
			float64(gn.Rotation[0]), float64(gn.Rotation[1]), float64(gn.Rotation[2]), float64(gn.Rotation[3]),
		})
		nd.Scale = dvec3.T{float64(gn.Scale[0]), float64(gn.Scale[1]), float64(gn.Scale[2])}
	}

	if gn.Mesh != nil {
		if int(*gn.Mesh) >= len(ld.doc.Meshes) {
			return nil, fmt.Errorf("mesh index %d out of range", *gn.Mesh)
		}
		mh := ld.doc.Meshes[*gn.Mesh]
		cast, receive := shadowExtras(gn.Extras)
		var leaves []*Node
		for i, ps := range mh.Primitives {
			leaf, err := ld.convertPrimitive(ps)
			if err != nil {
				return nil, err
			}
			if leaf == nil {
				continue
			}
			leaf.Name = fmt.Sprintf("%s#%d", mh.Name, i)
			leaves = append(leaves, leaf)
		}
		// a single primitive lives on the node itself, as GltfExporter writes it
		if len(leaves) == 1 {
			nd.Geometry, nd.Material = leaves[0].Geometry, leaves[0].Material
			nd.CastShadow, nd.ReceiveShadow = cast, receive
		} else {
			for _, leaf := range leaves {
				leaf.CastShadow, leaf.ReceiveShadow = cast, receive
				nd.Add(leaf)
			}
		}
	}

	for _, c := range gn.Children {
		ch, err := ld.convertNode(c, depth+1)
		if err != nil {
			return nil, err
		}
		nd.Add(ch)
	}
	return nd, nil
}

// shadowExtras reads the castShadow / receiveShadow node extras written by
// GltfExporter.
func shadowExtras(extras interface{}) (cast, receive bool) {
	m, ok := extras.(map[string]interface{})
	if !ok {
		return false, false
	}
	cast, _ = m["castShadow"].(bool)
	receive, _ = m["receiveShadow"].(bool)
	return cast, receive
}

func hasMatrix(gn *gltf.Node) bool {
	ident, zero := true, true
	for i, v := range gn.Matrix {
		if v != 0 {
			zero = false
		}
		want := float32(0)
		if i%5 == 0 {
			want = 1
		}
		if v != want {
			ident = false
		}
	}
	return !ident && !zero
}

func (ld *GltfLoader) convertPrimitive(ps *gltf.Primitive) (*Node, error) {
	if ps.Mode != gltf.PrimitiveTriangles {
		return nil, nil
	}
	posIdx, ok := ps.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}
	doc := ld.doc
	acc, err := ld.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(doc, acc, nil)
	if err != nil {
		return nil, err
	}

	geo := &Geometry{Positions: make([]dvec3.T, len(positions))}
	for i, p := range positions {
		geo.Positions[i] = dvec3.T{float64(p[0]), float64(p[1]), float64(p[2])}
	}

	if idx, ok := ps.Attributes[gltf.NORMAL]; ok {
		acc, err := ld.accessor(idx)
		if err != nil {
			return nil, err
		}
		normals, err := modeler.ReadNormal(doc, acc, nil)
		if err != nil {
			return nil, err
		}
		if len(normals) == len(positions) {
			for _, n := range normals {
				geo.Normals = append(geo.Normals, dvec3.T{float64(n[0]), float64(n[1]), float64(n[2])})
			}
		}
	}

	if idx, ok := ps.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := ld.accessor(idx)
		if err != nil {
			return nil, err
		}
		uvs, err := modeler.ReadTextureCoord(doc, acc, nil)
		if err != nil {
			return nil, err
		}
		if len(uvs) == len(positions) {
			for _, uv := range uvs {
				geo.UVs = append(geo.UVs, [2]float64{float64(uv[0]), float64(uv[1])})
			}
		}
	}

	if ps.Indices != nil {
		acc, err := ld.accessor(*ps.Indices)
		if err != nil {
			return nil, err
		}
		geo.Indices, err = modeler.ReadIndices(doc, acc, nil)
		if err != nil {
			return nil, err
		}
	} else {
		geo.Indices = make([]uint32, len(positions))
		for i := range geo.Indices {
			geo.Indices[i] = uint32(i)
		}
	}

	leaf := NewNode("")
	leaf.Geometry = geo
	if ps.Material != nil {
		leaf.Material = ld.convertMaterial(*ps.Material)
	}
	return leaf, nil
}

func (ld *GltfLoader) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(ld.doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", idx)
	}
	return ld.doc.Accessors[idx], nil
}

func (ld *GltfLoader) convertMaterial(id uint32) *Material {
	if m, ok := ld.mtlMap[id]; ok {
		return m
	}
	if int(id) >= len(ld.doc.Materials) {
		return nil
	}
	mt := ld.doc.Materials[id]
	m := NewMaterial(mt.Name)
	if mt.DoubleSided {
		m.Side = DoubleSide
	}
	if pbr := mt.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			for i := 0; i < 4; i++ {
				m.Color[i] = float64(pbr.BaseColorFactor[i])
			}
		}
		if pbr.MetallicFactor != nil {
			m.Metallic = float64(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			m.Roughness = float64(*pbr.RoughnessFactor)
		}
		if pbr.BaseColorTexture != nil {
			m.Texture = ld.texturePath(pbr.BaseColorTexture.Index)
		}
	}
	if mt.NormalTexture != nil && mt.NormalTexture.Index != nil {
		m.NormalTexture = ld.texturePath(*mt.NormalTexture.Index)
	}
	ld.mtlMap[id] = m
	return m
}

// texturePath resolves an external image reference. Images embedded in
// buffers or data URIs have no file and yield "".
func (ld *GltfLoader) texturePath(texIdx uint32) string {
	doc := ld.doc
	if int(texIdx) >= len(doc.Textures) || doc.Textures[texIdx].Source == nil {
		return ""
	}
	src := *doc.Textures[texIdx].Source
	if int(src) >= len(doc.Images) {
		return ""
	}
	img := doc.Images[src]
	if img.URI == "" || img.IsEmbeddedResource() {
		return ""
	}
	return filepath.Join(ld.dir, filepath.FromSlash(img.URI))
}
