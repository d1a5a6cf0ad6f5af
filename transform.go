package xrmodel

import (
	"math"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
)

// Euler is a rotation in radians applied in XYZ order, R = Rx·Ry·Rz.
type Euler struct {
	X, Y, Z float64
}

func EulerDegrees(x, y, z float64) Euler {
	return Euler{X: x * math.Pi / 180, Y: y * math.Pi / 180, Z: z * math.Pi / 180}
}

func (e Euler) Degrees() [3]float64 {
	return [3]float64{e.X * 180 / math.Pi, e.Y * 180 / math.Pi, e.Z * 180 / math.Pi}
}

// basis returns the columns of the rotation matrix.
func (e Euler) basis() (c0, c1, c2 dvec3.T) {
	a, b := math.Cos(e.X), math.Sin(e.X)
	c, d := math.Cos(e.Y), math.Sin(e.Y)
	ce, f := math.Cos(e.Z), math.Sin(e.Z)

	ae, af, be, bf := a*ce, a*f, b*ce, b*f

	c0 = dvec3.T{c * ce, af + be*d, bf - ae*d}
	c1 = dvec3.T{-c * f, ae - bf*d, be + af*d}
	c2 = dvec3.T{d, -b * c, a * c}
	return
}

// Quaternion returns the unit quaternion (x, y, z, w) equivalent to e.
func (e Euler) Quaternion() quaternion.T {
	c1, s1 := math.Cos(e.X/2), math.Sin(e.X/2)
	c2, s2 := math.Cos(e.Y/2), math.Sin(e.Y/2)
	c3, s3 := math.Cos(e.Z/2), math.Sin(e.Z/2)

	return quaternion.T{
		s1*c2*c3 + c1*s2*s3,
		c1*s2*c3 - s1*c2*s3,
		c1*c2*s3 + s1*s2*c3,
		c1*c2*c3 - s1*s2*s3,
	}
}

// EulerFromQuaternion converts a (not necessarily normalized) quaternion
// in (x, y, z, w) order.
func EulerFromQuaternion(q quaternion.T) Euler {
	l := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if l == 0 {
		return Euler{}
	}
	x, y, z, w := q[0]/l, q[1]/l, q[2]/l, q[3]/l

	c0 := dvec3.T{1 - 2*(y*y+z*z), 2 * (x*y + z*w), 2 * (x*z - y*w)}
	c1 := dvec3.T{2 * (x*y - z*w), 1 - 2*(x*x+z*z), 2 * (y*z + x*w)}
	c2 := dvec3.T{2 * (x*z + y*w), 2 * (y*z - x*w), 1 - 2*(x*x+y*y)}
	return eulerFromBasis(c0, c1, c2)
}

// eulerFromBasis expects orthonormal rotation columns.
func eulerFromBasis(c0, c1, c2 dvec3.T) Euler {
	m11, m12, m13 := c0[0], c1[0], c2[0]
	m22, m23 := c1[1], c2[1]
	m32, m33 := c1[2], c2[2]

	var e Euler
	e.Y = math.Asin(math.Max(-1, math.Min(1, m13)))
	if math.Abs(m13) < 0.9999999 {
		e.X = math.Atan2(-m23, m33)
		e.Z = math.Atan2(-m12, m11)
	} else {
		e.X = math.Atan2(m32, m22)
	}
	return e
}

func composeMatrix(pos dvec3.T, rot Euler, scl dvec3.T) dmat.T {
	c0, c1, c2 := rot.basis()
	return dmat.T{
		dvec4.T{c0[0] * scl[0], c0[1] * scl[0], c0[2] * scl[0], 0},
		dvec4.T{c1[0] * scl[1], c1[1] * scl[1], c1[2] * scl[1], 0},
		dvec4.T{c2[0] * scl[2], c2[1] * scl[2], c2[2] * scl[2], 0},
		dvec4.T{pos[0], pos[1], pos[2], 1},
	}
}

// decomposeMatrix splits a column-major affine matrix into translation,
// rotation and per-axis scale. Shear is dropped.
func decomposeMatrix(m [16]float64) (pos dvec3.T, rot Euler, scl dvec3.T) {
	c0 := dvec3.T{m[0], m[1], m[2]}
	c1 := dvec3.T{m[4], m[5], m[6]}
	c2 := dvec3.T{m[8], m[9], m[10]}
	pos = dvec3.T{m[12], m[13], m[14]}

	scl = dvec3.T{c0.Length(), c1.Length(), c2.Length()}
	// a mirrored basis is folded into the X scale
	if dvec3.Dot(&c0, ptr(dvec3.Cross(&c1, &c2))) < 0 {
		scl[0] = -scl[0]
	}
	for i, c := range []*dvec3.T{&c0, &c1, &c2} {
		if scl[i] != 0 {
			c.Scale(1 / scl[i])
		}
	}
	rot = eulerFromBasis(c0, c1, c2)
	return
}

func ptr(v dvec3.T) *dvec3.T {
	return &v
}

// LocalMatrix is T·R·S of the node's own transform.
func (n *Node) LocalMatrix() dmat.T {
	return composeMatrix(n.Position, n.Rotation, n.Scale)
}

// walkWorld calls fn for n and every descendant with its world matrix.
func walkWorld(n *Node, parent *dmat.T, fn func(*Node, *dmat.T)) {
	if n == nil {
		return
	}
	local := n.LocalMatrix()
	world := dmat.Ident
	world.AssignMul(parent, &local)
	fn(n, &world)
	for _, c := range n.Children {
		walkWorld(c, &world, fn)
	}
}

// WorldMatrix returns the world matrix of target inside the tree rooted at
// root, or false when target is not part of that tree.
func WorldMatrix(root, target *Node) (dmat.T, bool) {
	var out dmat.T
	found := false
	walkWorld(root, &dmat.Ident, func(n *Node, m *dmat.T) {
		if n == target {
			out = *m
			found = true
		}
	})
	return out, found
}
