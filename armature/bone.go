package armature

import (
	"github.com/akmonengine/wiggle/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// Params are the per-bone jiggle tunables
type Params struct {
	Stiffness   float64 `json:"stiffness"`   // 0-1, how quickly the bone returns to its keyed pose
	Dampen      float64 `json:"dampen"`      // 0-1, tension lost per frame
	Amplitude   float64 `json:"amplitude"`   // rotation multiplier
	Translation float64 `json:"translation"` // translation multiplier, disconnected bones only
	Stretch     float64 `json:"stretch"`     // 0-1, stretch along the bone length axis
	Gravity     float64 `json:"gravity"`     // gravity strength
}

// DefaultParams returns the tunables a bone starts with
func DefaultParams() Params {
	return Params{
		Stiffness:   0.2,
		Dampen:      0.2,
		Amplitude:   30,
		Translation: 0.5,
		Stretch:     0.5,
		Gravity:     0.5,
	}
}

// JiggleSettings are the jiggle properties the host stores on each bone
type JiggleSettings struct {
	// Enabled makes the bone part of the jiggle tree
	Enabled bool
	// Active can be animated to temporarily suspend jiggle on an enabled bone
	Active bool
	Params Params
}

// Bone is a pose bone of a Skeleton.
// Location, Rotation and Scale are the pose channels (the basis) relative to
// the rest matrix. Matrix is only refreshed when the scene evaluates the pose,
// so writes through SetMatrix are not visible to Matrix until then.
type Bone struct {
	Name   string
	Parent *Bone
	// Rest is the armature space rest matrix
	Rest mgl64.Mat4
	// Connected bones have their head locked to the parent's tail
	Connected bool

	Location mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3

	Constraints []constraint.Constraint
	Jiggle      JiggleSettings

	skeleton *Skeleton
	matrix   mgl64.Mat4
	keyed    Transform
}

// NewBone creates a bone in its rest pose. Jiggle is disabled but active.
func NewBone(name string, parent *Bone, rest mgl64.Mat4) *Bone {
	b := &Bone{
		Name:     name,
		Parent:   parent,
		Rest:     rest,
		Location: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
		Jiggle: JiggleSettings{
			Active: true,
			Params: DefaultParams(),
		},
	}
	b.keyed = b.Pose()
	b.matrix = b.parentRelative()
	return b
}

func (b *Bone) Skeleton() *Skeleton {
	return b.skeleton
}

// Pose returns the pose channels
func (b *Bone) Pose() Transform {
	return Transform{Location: b.Location, Rotation: b.Rotation, Scale: b.Scale}
}

// SetPose overwrites the pose channels
func (b *Bone) SetPose(t Transform) {
	b.Location = t.Location
	b.Rotation = t.Rotation
	b.Scale = t.Scale
}

// Basis returns the pose channels as a matrix
func (b *Bone) Basis() mgl64.Mat4 {
	return b.Pose().Mat4()
}

// KeyedPose returns the pose channels as they were right after the last
// animation evaluation, before any frame-change handler modified them.
func (b *Bone) KeyedPose() Transform {
	return b.keyed
}

// Matrix returns the evaluated armature space pose matrix, constraints included
func (b *Bone) Matrix() mgl64.Mat4 {
	return b.matrix
}

// World returns the evaluated world matrix
func (b *Bone) World() mgl64.Mat4 {
	if b.skeleton == nil {
		return b.matrix
	}
	return b.skeleton.World().Mul4(b.matrix)
}

// SetMatrix sets the pose channels so that, with the parent as currently
// evaluated, the bone's armature space matrix becomes m. Constraints are
// ignored, like any pose matrix setter.
func (b *Bone) SetMatrix(m mgl64.Mat4) {
	b.SetPose(TransformFromMat4(b.parentRelative().Inv().Mul4(m)))
}

// Unconstrained returns the armature space matrix the pose channels give
// before constraints, against the parent as currently evaluated
func (b *Bone) Unconstrained() mgl64.Mat4 {
	return b.parentRelative().Mul4(b.Basis())
}

// VisualPose returns the pose channels that would reproduce the evaluated
// matrix without constraints
func (b *Bone) VisualPose() Transform {
	return TransformFromMat4(b.parentRelative().Inv().Mul4(b.matrix))
}

// parentRelative is the armature space matrix of the bone with an identity basis
func (b *Bone) parentRelative() mgl64.Mat4 {
	if b.Parent == nil {
		return b.Rest
	}
	return b.Parent.matrix.Mul4(b.Parent.Rest.Inv()).Mul4(b.Rest)
}

// evaluate refreshes the pose matrix from the channels. Parents must be
// evaluated first.
func (b *Bone) evaluate() {
	m := b.Unconstrained()
	if len(b.Constraints) == 0 {
		b.matrix = m
		return
	}

	objectWorld := mgl64.Ident4()
	if b.skeleton != nil {
		objectWorld = b.skeleton.World()
	}
	world := objectWorld.Mul4(m)
	for _, c := range b.Constraints {
		world = c.Apply(world)
	}
	b.matrix = objectWorld.Inv().Mul4(world)
}
