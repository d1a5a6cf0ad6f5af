package xrmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsbin "github.com/flywave/go-3jsbin"
	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// ThreejsBinLoader imports legacy three.js binary models.
type ThreejsBinLoader struct{}

func (ld *ThreejsBinLoader) Load(ctx context.Context, path string) (model *Model, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open three.js binary %s: %w", path, err)
	}
	// a missing or malformed bin buffer surfaces as a parser panic
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("parse three.js binary %s: %v", path, r)
		}
	}()
	mh, err := jsbin.ThreejsBin2Mst(path)
	if err != nil {
		return nil, fmt.Errorf("parse three.js binary %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewModel(path, modelFromMst(name, mh)), nil
}

// modelFromMst turns an MST mesh into a hierarchy: one group per mesh node
// and one leaf per face group.
func modelFromMst(name string, mh *mst.Mesh) *Node {
	root := NewNode(name)
	mtls := make(map[int32]*Material)
	for i, nd := range mh.Nodes {
		group := NewNode(fmt.Sprintf("%s#%d", name, i))
		hasNormals := len(nd.Normals) == len(nd.Vertices)
		hasUVs := len(nd.TexCoords) == len(nd.Vertices)

		for _, fg := range nd.FaceGroup {
			leaf := NewNode(fmt.Sprintf("%s#%d.%d", name, i, fg.Batchid))
			geo := &Geometry{}
			remap := make(map[uint32]uint32)
			for _, f := range fg.Faces {
				if f == nil || !faceInRange(f.Vertex, len(nd.Vertices)) {
					continue
				}
				for _, vi := range f.Vertex {
					ni, ok := remap[vi]
					if !ok {
						v := nd.Vertices[vi]
						ni = uint32(len(geo.Positions))
						geo.Positions = append(geo.Positions, dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
						if hasNormals {
							n := nd.Normals[vi]
							geo.Normals = append(geo.Normals, dvec3.T{float64(n[0]), float64(n[1]), float64(n[2])})
						}
						if hasUVs {
							t := nd.TexCoords[vi]
							geo.UVs = append(geo.UVs, [2]float64{float64(t[0]), float64(t[1])})
						}
						remap[vi] = ni
					}
					geo.Indices = append(geo.Indices, ni)
				}
			}
			leaf.Geometry = geo

			if m, ok := mtls[fg.Batchid]; ok {
				leaf.Material = m
			} else if fg.Batchid >= 0 && int(fg.Batchid) < len(mh.Materials) {
				m := materialFromMst(fmt.Sprintf("material%d", fg.Batchid), mh.Materials[fg.Batchid])
				mtls[fg.Batchid] = m
				leaf.Material = m
			}
			group.Add(leaf)
		}
		root.Add(group)
	}
	return root
}

func faceInRange(f [3]uint32, n int) bool {
	return int(f[0]) < n && int(f[1]) < n && int(f[2]) < n
}

func materialFromMst(name string, mm mst.MeshMaterial) *Material {
	var color [3]byte
	var transparency float32
	switch mt := mm.(type) {
	case *mst.BaseMaterial:
		color, transparency = mt.Color, mt.Transparency
	case *mst.TextureMaterial:
		color, transparency = mt.Color, mt.Transparency
	case *mst.LambertMaterial:
		color, transparency = mt.Color, mt.Transparency
	case *mst.PhongMaterial:
		color, transparency = mt.Color, mt.Transparency
	case *mst.PbrMaterial:
		m := NewMaterial(name)
		m.Color = byteColor(mt.Color, mt.Transparency)
		m.Metallic = float64(mt.Metallic)
		m.Roughness = float64(mt.Roughness)
		return m
	default:
		return nil
	}
	m := NewMaterial(name)
	m.Color = byteColor(color, transparency)
	return m
}

func byteColor(c [3]byte, transparency float32) [4]float64 {
	return [4]float64{
		float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255,
		1 - float64(transparency),
	}
}
