package wiggle

import (
	"fmt"

	"github.com/akmonengine/wiggle/armature"
	"github.com/go-gl/mathgl/mgl64"
)

// BoneID identifies a bone across tree rebuilds
type BoneID struct {
	Skeleton string `json:"skeleton"`
	Bone     string `json:"bone"`
}

func (id BoneID) String() string {
	return fmt.Sprintf("%s/%s", id.Skeleton, id.Bone)
}

// RestPose is the pre-jiggle pose captured when jiggle is (re)enabled
type RestPose struct {
	Location mgl64.Vec3 `json:"location"`
	Rotation mgl64.Quat `json:"rotation"`
	Scale    mgl64.Vec3 `json:"scale"`
	Captured bool       `json:"captured"`
}

// BoneSimState is the physics state of one bone, carried from frame to frame
type BoneSimState struct {
	// PrevWorldMatrix is the jiggled world matrix of the previous step
	PrevWorldMatrix mgl64.Mat4 `json:"prev_world_matrix"`
	Rest            RestPose   `json:"rest"`

	// RotAccum1 and WorldTransform1 track the keyed motion only, without jiggle
	RotAccum1          mgl64.Quat `json:"rot_accum1"`
	HasRotAccum1       bool       `json:"has_rot_accum1"`
	WorldTransform1    mgl64.Mat4 `json:"world_transform1"`
	HasWorldTransform1 bool       `json:"has_world_transform1"`

	// Rotational spring, one small-angle offset per axis
	SpringRot   mgl64.Vec3 `json:"spring_rot"`
	VelocityRot mgl64.Vec3 `json:"velocity_rot"`
	// Translational spring, world space
	SpringTrans   mgl64.Vec3 `json:"spring_trans"`
	VelocityTrans mgl64.Vec3 `json:"velocity_trans"`
}

func NewBoneSimState() *BoneSimState {
	return &BoneSimState{
		PrevWorldMatrix: mgl64.Ident4(),
		Rest: RestPose{
			Rotation: mgl64.QuatIdent(),
			Scale:    mgl64.Vec3{1, 1, 1},
		},
		RotAccum1:       mgl64.QuatIdent(),
		WorldTransform1: mgl64.Ident4(),
	}
}

// CaptureRest stores the bone's current pose channels as its rest pose
func (st *BoneSimState) CaptureRest(b *armature.Bone) {
	st.Rest = RestPose{
		Location: b.Location,
		Rotation: b.Rotation,
		Scale:    b.Scale,
		Captured: true,
	}
}

// ResetSprings zeroes both springs and both velocities
func (st *BoneSimState) ResetSprings() {
	st.SpringRot = mgl64.Vec3{}
	st.VelocityRot = mgl64.Vec3{}
	st.SpringTrans = mgl64.Vec3{}
	st.VelocityTrans = mgl64.Vec3{}
}

// IsAtRest reports whether every accumulator is zero
func (st *BoneSimState) IsAtRest() bool {
	zero := mgl64.Vec3{}
	return st.SpringRot == zero && st.VelocityRot == zero &&
		st.SpringTrans == zero && st.VelocityTrans == zero
}
