package xrmodel

import (
	"fmt"
	"os"
	"path/filepath"

	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"go.uber.org/zap"
)

// DefaultMaxTextureSize bounds embedded MST textures on either side.
const DefaultMaxTextureSize = 2048

// MstExporter flattens a hierarchy into an MST mesh with world transforms
// baked into the vertices, one mesh node per leaf. Textures are embedded
// and shrunk to MaxTextureSize; zero keeps them at full size.
type MstExporter struct {
	Logger         *zap.Logger
	MaxTextureSize int
}

func NewMstExporter(log *zap.Logger) *MstExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &MstExporter{Logger: log, MaxTextureSize: DefaultMaxTextureSize}
}

// ToMst is a shortcut for NewMstExporter(log).Convert(m).
func ToMst(m *Model, log *zap.Logger) (*mst.Mesh, *[6]float64, error) {
	return NewMstExporter(log).Convert(m)
}

// WriteMST is a shortcut for NewMstExporter(log).Export(m, path).
func WriteMST(m *Model, path string, log *zap.Logger) error {
	return NewMstExporter(log).Export(m, path)
}

// Convert returns the baked mesh and its world bounds as min xyz, max xyz.
func (ex *MstExporter) Convert(m *Model) (*mst.Mesh, *[6]float64, error) {
	if m == nil || m.Root == nil {
		return nil, nil, ErrEmptyHierarchy
	}
	log := ex.Logger
	if log == nil {
		log = zap.NewNop()
	}
	mesh := mst.NewMesh()
	bbx := EmptyBox()
	mtlIdx := make(map[*Material]int32)
	texId := 0

	convertMaterial := func(mt *Material) int32 {
		if idx, ok := mtlIdx[mt]; ok {
			return idx
		}
		idx := int32(len(mesh.Materials))
		mtl := &mst.PbrMaterial{Metallic: float32(mt.Metallic), Roughness: float32(mt.Roughness)}
		mtl.Color = [3]byte{colorByte(mt.Color[0]), colorByte(mt.Color[1]), colorByte(mt.Color[2])}
		mtl.Transparency = float32(1 - mt.Color[3])
		if mt.Texture != "" {
			if tex, err := convertTex(mt.Texture, texId, ex.MaxTextureSize); err == nil {
				mtl.Texture = tex
				texId++
			} else {
				log.Warn("texture skipped", zap.String("texture", mt.Texture), zap.Error(err))
			}
		}
		if mt.NormalTexture != "" {
			if tex, err := convertTex(mt.NormalTexture, texId, ex.MaxTextureSize); err == nil {
				mtl.Normal = tex
				texId++
			} else {
				log.Warn("texture skipped", zap.String("texture", mt.NormalTexture), zap.Error(err))
			}
		}
		mesh.Materials = append(mesh.Materials, mtl)
		mtlIdx[mt] = idx
		return idx
	}
	// leaves without a material share a white default
	var defaultMtl *Material

	walkWorld(m.Root, &dmat.Ident, func(n *Node, world *dmat.T) {
		if !n.IsMesh() || n.Geometry.TriangleCount() == 0 {
			return
		}
		g := n.Geometry
		mhNode := &mst.MeshNode{}
		for i := range g.Positions {
			p := world.MulVec3(&g.Positions[i])
			bbx.ExpandByPoint(&p)
			mhNode.Vertices = append(mhNode.Vertices, vec3.T{float32(p[0]), float32(p[1]), float32(p[2])})
		}
		if len(g.UVs) == len(g.Positions) {
			for _, uv := range g.UVs {
				mhNode.TexCoords = append(mhNode.TexCoords, vec2.T{float32(uv[0]), float32(uv[1])})
			}
		}

		mt := n.Material
		if mt == nil {
			if defaultMtl == nil {
				defaultMtl = NewMaterial("default")
			}
			mt = defaultMtl
		}
		gp := &mst.MeshTriangle{Batchid: convertMaterial(mt)}
		indices := g.Indices
		if len(indices) == 0 {
			for i := 0; i+2 < len(g.Positions); i += 3 {
				indices = append(indices, uint32(i), uint32(i+1), uint32(i+2))
			}
		}
		for i := 0; i+2 < len(indices); i += 3 {
			gp.Faces = append(gp.Faces, &mst.Face{Vertex: [3]uint32{indices[i], indices[i+1], indices[i+2]}})
		}
		mhNode.FaceGroup = append(mhNode.FaceGroup, gp)
		mhNode.ReComputeNormal()
		mesh.Nodes = append(mesh.Nodes, mhNode)
	})

	if len(mesh.Nodes) == 0 {
		return nil, nil, ErrEmptyHierarchy
	}
	return mesh, bbx.Array(), nil
}

// Export writes the baked mesh of m to path.
func (ex *MstExporter) Export(m *Model, path string) error {
	mesh, _, err := ex.Convert(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write mst %s: %w", path, err)
	}
	mst.MeshMarshal(f, mesh)
	return f.Close()
}

func colorByte(c float64) byte {
	switch {
	case c <= 0:
		return 0
	case c >= 1:
		return 255
	}
	return byte(c*255 + 0.5)
}
