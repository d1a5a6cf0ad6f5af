package xrmodel

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	dae "github.com/flywave/go-collada"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
)

// maxDaeInstanceDepth bounds instance_node expansion.
const maxDaeInstanceDepth = 32

// DaeLoader imports COLLADA documents. Every visual scene node becomes a
// group carrying the node transform, with one leaf per triangle or polygon
// list. Child nodes nest; instance_node references are expanded in place.
type DaeLoader struct {
	ResourceDir string

	texDir  string
	images  map[string]string
	mtls    map[string]*dae.Material
	effects map[string]*dae.Effect
	geos    map[string]*dae.Geometry
	nodes   map[string]*dae.Node
	mtlMap  map[string]*Material
}

func (ld *DaeLoader) Load(ctx context.Context, path string) (model *Model, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dae %s: %w", path, err)
	}
	defer file.Close()

	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("parse dae %s: %v", path, r)
		}
	}()

	doc, err := dae.LoadDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("parse dae %s: %w", path, err)
	}
	ld.texDir = ld.ResourceDir
	if ld.texDir == "" {
		ld.texDir = filepath.Dir(path)
	}
	ld.index(doc)

	root := NewNode(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, lib := range doc.LibraryVisualScenes {
		for _, vs := range lib.VisualScene {
			for _, nd := range vs.Node {
				if err := checkContext(ctx); err != nil {
					return nil, err
				}
				root.Add(ld.convertNode(nd, 0))
			}
		}
	}
	return NewModel(path, root), nil
}

func (ld *DaeLoader) index(doc *dae.Collada) {
	ld.images = make(map[string]string)
	for _, lib := range doc.LibraryImages {
		for _, img := range lib.Image {
			if img.InitFrom == nil || img.InitFrom.Ref.Ref == "" {
				continue
			}
			ld.images[string(img.Id)] = ResolveTexturePath(ld.texDir, img.InitFrom.Ref.Ref)
		}
	}
	ld.mtls = make(map[string]*dae.Material)
	for _, lib := range doc.LibraryMaterials {
		for _, mt := range lib.Material {
			ld.mtls[string(mt.Id)] = mt
		}
	}
	ld.effects = make(map[string]*dae.Effect)
	for _, lib := range doc.LibraryEffects {
		for _, e := range lib.Effect {
			ld.effects[string(e.Id)] = e
		}
	}
	ld.geos = make(map[string]*dae.Geometry)
	for _, lib := range doc.LibraryGeometries {
		for _, g := range lib.Geometry {
			ld.geos[string(g.Id)] = g
		}
	}
	ld.nodes = make(map[string]*dae.Node)
	for _, lib := range doc.LibraryVisualScenes {
		for _, vs := range lib.VisualScene {
			for _, nd := range vs.Node {
				ld.indexNode(nd, 0)
			}
		}
	}
	ld.mtlMap = make(map[string]*Material)
}

func (ld *DaeLoader) indexNode(nd *dae.Node, depth int) {
	if nd.Id != "" {
		ld.nodes[string(nd.Id)] = nd
	}
	if depth < maxDaeInstanceDepth {
		for _, c := range nd.Node {
			ld.indexNode(c, depth+1)
		}
	}
}

func (ld *DaeLoader) convertNode(nd *dae.Node, depth int) *Node {
	name := nd.Name
	if name == "" {
		name = string(nd.Id)
	}
	group := NewNode(name)
	m := daeNodeMatrix(nd)
	group.Position, group.Rotation, group.Scale = decomposeMatrix(matrixArray(&m))

	for _, ig := range nd.InstanceGeometry {
		geo, ok := ld.geos[ig.Url.GetId()]
		if !ok || geo == nil || geo.Mesh == nil {
			continue
		}
		for _, leaf := range ld.convertGeometry(geo) {
			group.Add(leaf)
		}
	}
	if depth < maxDaeInstanceDepth {
		for _, c := range nd.Node {
			group.Add(ld.convertNode(c, depth+1))
		}
		for _, in := range nd.InstanceNode {
			if ref, ok := ld.nodes[in.Url.GetId()]; ok && ref != nd {
				group.Add(ld.convertNode(ref, depth+1))
			}
		}
	}
	return group
}

// daeSources resolves the position source behind the VERTEX input and
// parses every float source of the mesh.
type daeSources struct {
	floats    map[string][]float64
	strides   map[string]int
	positions string
	normals   string
}

func (s *daeSources) vec3(id string, i int) (dvec3.T, bool) {
	a, stride := s.floats[id], s.strides[id]
	if stride < 3 || i < 0 || (i+1)*stride > len(a) {
		return dvec3.T{}, false
	}
	return dvec3.T{a[i*stride], a[i*stride+1], a[i*stride+2]}, true
}

func (s *daeSources) vec2(id string, i int) ([2]float64, bool) {
	a, stride := s.floats[id], s.strides[id]
	if stride < 2 || i < 0 || (i+1)*stride > len(a) {
		return [2]float64{}, false
	}
	return [2]float64{a[i*stride], a[i*stride+1]}, true
}

type daeInput struct {
	semantic string
	source   string
	offset   int
}

type daeCorner struct {
	v, n, t int
}

func (ld *DaeLoader) convertGeometry(geo *dae.Geometry) []*Node {
	mh := geo.Mesh
	src := &daeSources{floats: make(map[string][]float64), strides: make(map[string]int)}
	for _, s := range mh.Source {
		if s.FloatArray == nil {
			continue
		}
		src.floats[string(s.Id)] = parseFloats(s.FloatArray.ToSlice())
		src.strides[string(s.Id)] = s.TechniqueCommon.Accessor.Stride
	}
	for _, in := range mh.Vertices.Input {
		switch in.Semantic {
		case "POSITION":
			src.positions = in.Source.GetId()
		case "NORMAL":
			src.normals = in.Source.GetId()
		}
	}

	var leaves []*Node
	for i, pl := range mh.Polylist {
		var inputs []daeInput
		for _, in := range pl.Input {
			inputs = append(inputs, daeInput{in.Semantic, in.Source.GetId(), int(in.Offset)})
		}
		if pl.VCount == nil || pl.P == nil {
			continue
		}
		counts := parseInts(pl.VCount.ToSlice())
		leaf := ld.buildLeaf(fmt.Sprintf("%s#%d", geo.Id, i), src, inputs, counts, parseInts(pl.P.ToSlice()))
		leaf.Material = ld.convertMaterial(pl.Material)
		leaves = append(leaves, leaf)
	}
	for i, tr := range mh.Triangles {
		var inputs []daeInput
		for _, in := range tr.GetSharedInput() {
			inputs = append(inputs, daeInput{in.Semantic, in.Source.GetId(), int(in.Offset)})
		}
		if tr.GetP() == nil {
			continue
		}
		counts := make([]int, tr.GetCount())
		for j := range counts {
			counts[j] = 3
		}
		leaf := ld.buildLeaf(fmt.Sprintf("%s#t%d", geo.Id, i), src, inputs, counts, parseInts(tr.GetP().ToSlice()))
		leaf.Material = ld.convertMaterial(tr.GetMaterial())
		leaves = append(leaves, leaf)
	}
	return leaves
}

// buildLeaf walks the index stream polygon by polygon. counts holds the
// corner count of each polygon.
func (ld *DaeLoader) buildLeaf(name string, src *daeSources, inputs []daeInput, counts, p []int) *Node {
	stride := 0
	vOff, nOff, tOff := -1, -1, -1
	normalSrc, uvSrc := src.normals, ""
	for _, in := range inputs {
		if in.offset+1 > stride {
			stride = in.offset + 1
		}
		switch in.semantic {
		case "VERTEX":
			vOff = in.offset
		case "NORMAL":
			nOff, normalSrc = in.offset, in.source
		case "TEXCOORD":
			if tOff < 0 {
				tOff, uvSrc = in.offset, in.source
			}
		}
	}

	leaf := NewNode(name)
	geo := &Geometry{}
	leaf.Geometry = geo
	if vOff < 0 || stride == 0 {
		return leaf
	}

	remap := make(map[daeCorner]uint32)
	hasNormals, hasUVs := normalSrc != "", uvSrc != ""
	pos := 0
	for _, n := range counts {
		if n < 3 || (pos+n)*stride > len(p) {
			pos += n
			continue
		}
		corners := make([]daeCorner, n)
		local := make([]dvec3.T, n)
		slots := make([]int, n)
		valid := true
		for k := 0; k < n; k++ {
			base := (pos + k) * stride
			c := daeCorner{v: p[base+vOff], n: -1, t: -1}
			if nOff >= 0 {
				c.n = p[base+nOff]
			} else if hasNormals {
				c.n = c.v
			}
			if tOff >= 0 {
				c.t = p[base+tOff]
			}
			corners[k] = c
			var ok bool
			if local[k], ok = src.vec3(src.positions, c.v); !ok {
				valid = false
			}
			slots[k] = k
		}
		pos += n
		if !valid {
			continue
		}

		for _, tri := range triangulate(slots, local) {
			for _, k := range tri {
				c := corners[k]
				idx, ok := remap[c]
				if !ok {
					idx = uint32(len(geo.Positions))
					geo.Positions = append(geo.Positions, local[k])
					if nv, ok := src.vec3(normalSrc, c.n); ok {
						geo.Normals = append(geo.Normals, nv)
					} else {
						hasNormals = false
					}
					if uv, ok := src.vec2(uvSrc, c.t); ok {
						geo.UVs = append(geo.UVs, uv)
					} else {
						hasUVs = false
					}
					remap[c] = idx
				}
				geo.Indices = append(geo.Indices, idx)
			}
		}
	}
	if !hasNormals || len(geo.Normals) != len(geo.Positions) {
		geo.Normals = nil
	}
	if !hasUVs || len(geo.UVs) != len(geo.Positions) {
		geo.UVs = nil
	}
	return leaf
}

func (ld *DaeLoader) convertMaterial(id string) *Material {
	if m, ok := ld.mtlMap[id]; ok {
		return m
	}
	dm, ok := ld.mtls[id]
	if !ok || dm == nil {
		return nil
	}
	m := NewMaterial(id)
	ld.mtlMap[id] = m

	effect, ok := ld.effects[dm.InstanceEffect.Url.GetId()]
	if !ok || effect == nil || effect.ProfileCommon == nil {
		return m
	}
	common := effect.ProfileCommon
	for _, param := range common.Newparam {
		if param.Semantic != nil && param.Semantic.Value == "DIFFUSECOLOR" && param.Float3 != nil {
			if c := parseFloats(param.Float3.ToSlice()); len(c) >= 3 {
				m.Color[0], m.Color[1], m.Color[2] = c[0], c[1], c[2]
			}
		} else if param.Sampler2D != nil && param.Sampler2D.Source != nil {
			if tex, ok := ld.images[param.Sampler2D.Source.Texture]; ok {
				m.Texture = tex
			}
		}
	}
	if common.TechniqueFx != nil && common.TechniqueFx.Phone != nil {
		phg := common.TechniqueFx.Phone
		if phg.Diffuse != nil {
			if phg.Diffuse.Texture != nil {
				if tex, ok := ld.images[phg.Diffuse.Texture.Texture]; ok {
					m.Texture = tex
				}
			} else if phg.Diffuse.Color != nil {
				if c := parseFloats(phg.Diffuse.Color.Float3.ToSlice()); len(c) >= 3 {
					m.Color[0], m.Color[1], m.Color[2] = c[0], c[1], c[2]
				}
			}
		}
		if phg.Shininess != nil && phg.Shininess.Float != nil {
			// Phong exponent to roughness, 0..1
			if sh := phg.Shininess.Float.Value; sh >= 0 {
				m.Roughness = math.Sqrt(2 / (sh + 2))
			}
		}
		if phg.Transparency != nil && phg.Transparency.Float != nil {
			if a := phg.Transparency.Float.Value; a >= 0 && a <= 1 {
				m.Color[3] = a
			}
		}
	}
	return m
}

// daeNodeMatrix returns the node transform. A <matrix> wins; otherwise
// translate, rotate (document order) and scale are composed as T·R·S.
func daeNodeMatrix(nd *dae.Node) dmat.T {
	if len(nd.Matrix) > 0 {
		v := parseFloats(nd.Matrix[0].ToSlice())
		if len(v) < 16 {
			return dmat.Ident
		}
		// row-major in the document
		var m dmat.T
		for c := 0; c < 4; c++ {
			m[c] = dvec4.T{v[c], v[4+c], v[8+c], v[12+c]}
		}
		return m
	}

	m := dmat.Ident
	for _, t := range nd.Translate {
		if v := parseFloats(t.ToSlice()); len(v) >= 3 {
			tr := composeMatrix(dvec3.T{v[0], v[1], v[2]}, Euler{}, dvec3.T{1, 1, 1})
			m = mulMatrix(&m, &tr)
		}
	}
	for _, r := range nd.Rotate {
		if v := parseFloats(r.ToSlice()); len(v) >= 4 {
			rot := axisAngleMatrix(dvec3.T{v[0], v[1], v[2]}, v[3]*math.Pi/180)
			m = mulMatrix(&m, &rot)
		}
	}
	if len(nd.Scale) > 0 {
		if v := parseFloats(nd.Scale[0].ToSlice()); len(v) >= 3 {
			sc := composeMatrix(dvec3.T{}, Euler{}, dvec3.T{v[0], v[1], v[2]})
			m = mulMatrix(&m, &sc)
		}
	}
	return m
}

func mulMatrix(a, b *dmat.T) dmat.T {
	var out dmat.T
	out.AssignMul(a, b)
	return out
}

// axisAngleMatrix is the rotation by angle radians about axis.
func axisAngleMatrix(axis dvec3.T, angle float64) dmat.T {
	l := axis.Length()
	if l == 0 {
		return dmat.Ident
	}
	x, y, z := axis[0]/l, axis[1]/l, axis[2]/l
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return dmat.T{
		dvec4.T{t*x*x + c, t*x*y + s*z, t*x*z - s*y, 0},
		dvec4.T{t*x*y - s*z, t*y*y + c, t*y*z + s*x, 0},
		dvec4.T{t*x*z + s*y, t*y*z - s*x, t*z*z + c, 0},
		dvec4.T{0, 0, 0, 1},
	}
}

func matrixArray(m *dmat.T) [16]float64 {
	var a [16]float64
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			a[c*4+r] = m[c][r]
		}
	}
	return a
}

// parseFloats converts whitespace separated tokens, skipping blanks.
func parseFloats(tokens []string) []float64 {
	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		for _, f := range strings.Fields(tok) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				v = 0
			}
			out = append(out, v)
		}
	}
	return out
}

func parseInts(tokens []string) []int {
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		for _, f := range strings.Fields(tok) {
			v, err := strconv.Atoi(f)
			if err != nil {
				v = 0
			}
			out = append(out, v)
		}
	}
	return out
}
