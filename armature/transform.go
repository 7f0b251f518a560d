package armature

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// gimbalEpsilon matches the single precision threshold used by DCC tools
// when deciding whether an XYZ decomposition is in gimbal lock.
const gimbalEpsilon = 16 * 1.1920928955078125e-07

// Transform represents a location, rotation and scale in 3D space
type Transform struct {
	Location mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Location: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// Mat4 composes translation · rotation · scale
func (t Transform) Mat4() mgl64.Mat4 {
	return mgl64.Translate3D(t.Location.X(), t.Location.Y(), t.Location.Z()).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl64.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// TransformFromMat4 decomposes an affine matrix without shear
func TransformFromMat4(m mgl64.Mat4) Transform {
	return Transform{
		Location: Translation(m),
		Rotation: RotationQuat(m),
		Scale: mgl64.Vec3{
			m.Col(0).Vec3().Len(),
			m.Col(1).Vec3().Len(),
			m.Col(2).Vec3().Len(),
		},
	}
}

// Translation returns the translation column of m
func Translation(m mgl64.Mat4) mgl64.Vec3 {
	return m.Col(3).Vec3()
}

// RotationMat4 returns the rotation part of m with scale and translation removed
func RotationMat4(m mgl64.Mat4) mgl64.Mat4 {
	r := mgl64.Ident4()
	for c := 0; c < 3; c++ {
		axis := m.Col(c).Vec3()
		if l := axis.Len(); l > 0 {
			axis = axis.Mul(1.0 / l)
		}
		r.SetCol(c, axis.Vec4(0))
	}
	return r
}

// RotationQuat returns the normalized rotation of m
func RotationQuat(m mgl64.Mat4) mgl64.Quat {
	return mgl64.Mat4ToQuat(RotationMat4(m)).Normalize()
}

// EulerXYZMat4 builds the rotation Rz · Ry · Rx from XYZ euler angles in radians
func EulerXYZMat4(angles mgl64.Vec3) mgl64.Mat4 {
	return mgl64.HomogRotate3DZ(angles.Z()).
		Mul4(mgl64.HomogRotate3DY(angles.Y())).
		Mul4(mgl64.HomogRotate3DX(angles.X()))
}

// EulerXYZ extracts XYZ euler angles (radians) from the rotation of m.
// Of the two equivalent decompositions, the one with the smallest total
// magnitude is returned.
func EulerXYZ(m mgl64.Mat4) mgl64.Vec3 {
	n := RotationMat4(m)

	cy := math.Hypot(n.At(0, 0), n.At(1, 0))
	if cy <= gimbalEpsilon {
		return mgl64.Vec3{
			math.Atan2(-n.At(1, 2), n.At(1, 1)),
			math.Atan2(-n.At(2, 0), cy),
			0,
		}
	}

	e1 := mgl64.Vec3{
		math.Atan2(n.At(2, 1), n.At(2, 2)),
		math.Atan2(-n.At(2, 0), cy),
		math.Atan2(n.At(1, 0), n.At(0, 0)),
	}
	e2 := mgl64.Vec3{
		math.Atan2(-n.At(2, 1), -n.At(2, 2)),
		math.Atan2(-n.At(2, 0), -cy),
		math.Atan2(-n.At(1, 0), -n.At(0, 0)),
	}

	if absSum(e1) > absSum(e2) {
		return e2
	}
	return e1
}

func absSum(v mgl64.Vec3) float64 {
	return math.Abs(v.X()) + math.Abs(v.Y()) + math.Abs(v.Z())
}

// ScaleAlong returns a matrix scaling by factor along a single axis
func ScaleAlong(factor float64, axis mgl64.Vec3) mgl64.Mat4 {
	a := axis.Normalize()
	m := mgl64.Ident4()
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			m.Set(r, c, m.At(r, c)+(factor-1)*a[r]*a[c])
		}
	}
	return m
}

// RelativeVector returns the offset from the origin of m2 to the origin of m1,
// expressed in the orientation of m1.
func RelativeVector(m1, m2 mgl64.Mat4) mgl64.Vec3 {
	rel := m2.Inv().Mul4(m1)
	rot := RotationMat4(rel.Inv())
	return rot.Mul4x1(Translation(rel).Vec4(1)).Vec3()
}
