package xrmodel

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
)

const generator = "go-xrmodel"

// GltfExporter writes a hierarchy as a binary glTF file. Node transforms
// are kept as TRS, materials carry doubleSided and shadow flags travel in
// node extras as castShadow / receiveShadow. Texture files are copied next
// to the output and referenced by base name.
type GltfExporter struct {
	Logger *zap.Logger

	doc    *gltf.Document
	outDir string
	mtlIdx map[*Material]uint32
	texIdx map[string]uint32
}

func NewGltfExporter(log *zap.Logger) *GltfExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &GltfExporter{Logger: log}
}

// WriteGLB is a shortcut for NewGltfExporter(log).Export(m, path).
func WriteGLB(m *Model, path string, log *zap.Logger) error {
	return NewGltfExporter(log).Export(m, path)
}

func (ex *GltfExporter) Export(m *Model, path string) error {
	if m == nil || m.Root == nil {
		return ErrEmptyHierarchy
	}
	if ex.Logger == nil {
		ex.Logger = zap.NewNop()
	}
	ex.outDir = filepath.Dir(path)
	if err := os.MkdirAll(ex.outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", ex.outDir, err)
	}
	ex.doc = gltf.NewDocument()
	ex.doc.Asset.Generator = generator
	ex.mtlIdx = make(map[*Material]uint32)
	ex.texIdx = make(map[string]uint32)

	rootIdx := ex.addNode(m.Root)
	ex.doc.Scenes[0].Nodes = append(ex.doc.Scenes[0].Nodes, rootIdx)

	if err := gltf.SaveBinary(ex.doc, path); err != nil {
		return fmt.Errorf("write glb %s: %w", path, err)
	}
	ex.Logger.Debug("glb written",
		zap.String("path", path),
		zap.Int("nodes", len(ex.doc.Nodes)),
		zap.Int("meshes", len(ex.doc.Meshes)),
		zap.Int("materials", len(ex.doc.Materials)))
	return nil
}

func (ex *GltfExporter) addNode(n *Node) uint32 {
	q := n.Rotation.Quaternion()
	gn := &gltf.Node{
		Name:        n.Name,
		Translation: [3]float32{float32(n.Position[0]), float32(n.Position[1]), float32(n.Position[2])},
		Rotation:    [4]float32{float32(q[0]), float32(q[1]), float32(q[2]), float32(q[3])},
		Scale:       [3]float32{float32(n.Scale[0]), float32(n.Scale[1]), float32(n.Scale[2])},
	}
	if n.CastShadow || n.ReceiveShadow {
		gn.Extras = map[string]interface{}{
			"castShadow":    n.CastShadow,
			"receiveShadow": n.ReceiveShadow,
		}
	}
	ex.doc.Nodes = append(ex.doc.Nodes, gn)
	idx := uint32(len(ex.doc.Nodes) - 1)

	if n.IsMesh() && n.Geometry.TriangleCount() > 0 {
		gn.Mesh = gltf.Index(ex.addMesh(n))
	}
	for _, c := range n.Children {
		gn.Children = append(gn.Children, ex.addNode(c))
	}
	return idx
}

func (ex *GltfExporter) addMesh(n *Node) uint32 {
	g := n.Geometry
	doc := ex.doc

	positions := make([][3]float32, len(g.Positions))
	for i, p := range g.Positions {
		positions[i] = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
	}
	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: modeler.WritePosition(doc, positions),
		},
	}
	if len(g.Normals) == len(g.Positions) {
		normals := make([][3]float32, len(g.Normals))
		for i, v := range g.Normals {
			normals[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
		}
		prim.Attributes[gltf.NORMAL] = modeler.WriteNormal(doc, normals)
	}
	if len(g.UVs) == len(g.Positions) {
		uvs := make([][2]float32, len(g.UVs))
		for i, v := range g.UVs {
			uvs[i] = [2]float32{float32(v[0]), float32(v[1])}
		}
		prim.Attributes[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(doc, uvs)
	}

	indices := g.Indices
	if len(indices) == 0 {
		indices = make([]uint32, len(g.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	prim.Indices = gltf.Index(modeler.WriteIndices(doc, indices))

	if n.Material != nil {
		prim.Material = gltf.Index(ex.addMaterial(n.Material))
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: n.Name, Primitives: []*gltf.Primitive{prim}})
	return uint32(len(doc.Meshes) - 1)
}

func (ex *GltfExporter) addMaterial(m *Material) uint32 {
	if idx, ok := ex.mtlIdx[m]; ok {
		return idx
	}
	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float32{float32(m.Color[0]), float32(m.Color[1]), float32(m.Color[2]), float32(m.Color[3])},
		MetallicFactor:  gltf.Float(float32(m.Metallic)),
		RoughnessFactor: gltf.Float(float32(m.Roughness)),
	}
	mt := &gltf.Material{
		Name:                 m.Name,
		DoubleSided:          m.Side == DoubleSide,
		AlphaMode:            gltf.AlphaOpaque,
		PBRMetallicRoughness: pbr,
	}
	if m.Color[3] < 1 {
		mt.AlphaMode = gltf.AlphaBlend
	}
	if ti, ok := ex.addTexture(m.Texture); ok {
		pbr.BaseColorTexture = &gltf.TextureInfo{Index: ti}
	}
	if ti, ok := ex.addTexture(m.NormalTexture); ok {
		mt.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(ti)}
	}
	ex.doc.Materials = append(ex.doc.Materials, mt)
	idx := uint32(len(ex.doc.Materials) - 1)
	ex.mtlIdx[m] = idx
	return idx
}

// addTexture copies src beside the output file. Missing files are logged
// and skipped; the material keeps its color.
func (ex *GltfExporter) addTexture(src string) (uint32, bool) {
	if src == "" {
		return 0, false
	}
	if idx, ok := ex.texIdx[src]; ok {
		return idx, true
	}
	name := filepath.Base(src)
	if filepath.Clean(filepath.Dir(src)) != filepath.Clean(ex.outDir) {
		var err error
		name, err = copyTexture(src, ex.outDir)
		if err != nil {
			ex.Logger.Warn("texture skipped", zap.String("texture", src), zap.Error(err))
			return 0, false
		}
	} else if _, err := os.Stat(src); err != nil {
		ex.Logger.Warn("texture skipped", zap.String("texture", src), zap.Error(err))
		return 0, false
	}
	doc := ex.doc
	doc.Images = append(doc.Images, &gltf.Image{Name: name, URI: name, MimeType: mimeFromPath(name)})
	doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(uint32(len(doc.Images) - 1))})
	idx := uint32(len(doc.Textures) - 1)
	ex.texIdx[src] = idx
	return idx, true
}
