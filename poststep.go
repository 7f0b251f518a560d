package wiggle

import (
	"errors"

	"github.com/akmonengine/wiggle/armature"
	"github.com/akmonengine/wiggle/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// gravityScale converts scene gravity into spring units
	gravityScale = 0.01
	// rotationInputScale damps the keyed rotation fed into the spring
	rotationInputScale = 4.0
)

// lengthAxis is the bone's local head to tail axis
var lengthAxis = mgl64.Vec3{0, 1, 0}

// PostStep runs after the host evaluated the keyed animation of a frame.
// Bones are integrated depth-first, each parent before its children, so
// that a child follows its parent's jiggled pose.
func (s *Simulation) PostStep() error {
	defer s.Events.flush()

	if !s.Config.Enabled {
		return nil
	}
	if err := s.ensureTree(); err != nil {
		if errors.Is(err, ErrStaleTree) {
			return nil
		}
		return err
	}

	s.Config.Rate = s.rate()

	for _, sk := range s.Tree.Roots {
		if err := s.postSkeleton(sk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) postSkeleton(n *SkeletonNode) error {
	for _, bn := range n.Bones {
		if err := s.postBone(bn, nil, mgl64.Ident4()); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := s.postSkeleton(c); err != nil {
			return err
		}
	}
	return nil
}

// postBone integrates a bone then its children. parent is the pre-jiggle
// parent bone and parentCarry its jiggled matrix, both armature space.
func (s *Simulation) postBone(bn *BoneNode, parent *armature.Bone, parentCarry mgl64.Mat4) error {
	b, err := bn.resolve(s.Scene)
	if err != nil {
		return err
	}
	st := s.State(bn.ID())

	// carry the parent's jiggle over to this bone
	carried := b.Matrix()
	if parent != nil {
		diff := b.Matrix().Inv().Mul4(parent.Matrix()).Inv()
		carried = parentCarry.Mul4(diff)
	}

	carry := s.integrate(b, st, carried)

	for _, c := range bn.Children {
		if err := s.postBone(c, b, carry); err != nil {
			return err
		}
	}

	if s.resetFrame() || !b.Jiggle.Enabled {
		st.PrevWorldMatrix = b.World()
	}
	return nil
}

// integrate advances the springs of one bone, writes its jiggled pose and
// returns the carry matrix handed to its children. carried is the bone's
// armature space matrix including the parent's jiggle.
func (s *Simulation) integrate(b *armature.Bone, st *BoneSimState, carried mgl64.Mat4) mgl64.Mat4 {
	rate := s.Config.Rate
	p := b.Jiggle.Params
	objectWorld := b.Skeleton().World()
	carriedWorld := objectWorld.Mul4(carried)

	// translation since last step, in the previous jiggled orientation.
	// Y runs along the bone and must not swing it.
	vec := armature.RelativeVector(st.PrevWorldMatrix, carriedWorld).Mul(-1)
	vec[1] = 0

	// a bone that joined the tree during a skipped pass has no keyed history yet
	if !st.HasWorldTransform1 {
		st.WorldTransform1 = carriedWorld
		st.HasWorldTransform1 = true
	}
	if !st.HasRotAccum1 {
		st.RotAccum1 = armature.RotationQuat(b.World())
		st.HasRotAccum1 = true
	}

	// keyed translation since last step, world space
	t := armature.Translation(carriedWorld).Sub(armature.Translation(st.WorldTransform1))
	st.WorldTransform1 = carriedWorld

	// keyed rotation since last step
	rot := armature.RotationQuat(b.World())
	delta := armature.EulerXYZ(rot.Mat4().Inv().Mul4(st.RotAccum1.Mat4()))
	deltaRot := mgl64.Vec3{delta.Z(), -delta.Y(), -delta.X()}.Mul(1 / rotationInputScale)
	st.RotAccum1 = rot

	// gravity in the previous orientation
	g := s.Scene.Gravity.Mul(gravityScale * p.Gravity)
	gvec := armature.RelativeVector(armature.RotationMat4(st.PrevWorldMatrix), mgl64.Translate3D(g.X(), g.Y(), g.Z()))
	gvec[1] = 0

	st.SpringRot = st.SpringRot.Add(vec).Add(deltaRot)
	st.VelocityRot = st.VelocityRot.Mul(1 - p.Dampen).
		Sub(st.SpringRot.Mul(p.Stiffness)).
		Add(gvec.Mul(1 - p.Stiffness))
	st.SpringRot = st.SpringRot.Add(st.VelocityRot.Mul(1 / rate))

	tension := st.SpringTrans.Sub(t)
	st.VelocityTrans = st.VelocityTrans.Mul(1 - p.Dampen).Sub(tension.Mul(p.Stiffness))
	st.SpringTrans = tension.Add(st.VelocityTrans.Mul(1 / rate))
	localSpring := armature.RotationQuat(carriedWorld).Inverse().Rotate(st.SpringTrans)

	// first frame or inactive: no memory of previous frames, keyed pose untouched
	if s.resetFrame() || !b.Jiggle.Active {
		st.ResetSprings()
		st.PrevWorldMatrix = carriedWorld
		return carried
	}

	amplitude := p.Amplitude * rate
	euler := mgl64.Vec3{
		mgl64.DegToRad(st.SpringRot.Z() * -amplitude),
		mgl64.DegToRad(st.SpringRot.Y() * -amplitude),
		mgl64.DegToRad(st.SpringRot.X() * amplitude),
	}

	translation := mgl64.Ident4()
	if !b.Connected {
		offset := localSpring.Mul(p.Translation)
		translation = mgl64.Translate3D(offset.X(), offset.Y(), offset.Z())
	}
	stretch := armature.ScaleAlong(1+localSpring.Y()*p.Stretch, lengthAxis)

	jiggle := translation.Mul4(armature.EulerXYZMat4(euler)).Mul4(stretch)

	matrix := b.Matrix().Mul4(jiggle)
	if _, ok := constraint.FirstActive(b.Constraints, constraint.TypeChildOf); ok {
		// jiggle on top of the constrained pose rather than in place of it
		matrix = b.Unconstrained().Mul4(b.Matrix().Inv()).Mul4(matrix)
	}
	b.SetMatrix(matrix)

	carry := carried.Mul4(jiggle)
	st.PrevWorldMatrix = objectWorld.Mul4(carry)
	return carry
}
