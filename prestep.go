package wiggle

import (
	"errors"

	"github.com/akmonengine/wiggle/armature"
)

// PreStep runs before the host evaluates the keyed animation of a frame.
// It restores every jiggle bone to its rest pose so that jiggle written on the
// previous frame does not accumulate into channels the animation leaves alone.
// A stale tree is rebuilt and the pass skipped.
func (s *Simulation) PreStep() error {
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

	return s.Tree.Walk(func(n Node, _ Node) error {
		bn, ok := n.(*BoneNode)
		if !ok {
			return nil
		}
		b, err := bn.resolve(s.Scene)
		if err != nil {
			return err
		}
		preBone(b, s.State(bn.ID()))
		return nil
	})
}

func preBone(b *armature.Bone, st *BoneSimState) {
	if !st.Rest.Captured {
		st.CaptureRest(b)
	}

	b.Rotation = st.Rest.Rotation
	if b.Jiggle.Params.Translation != 0 {
		b.Location = st.Rest.Location
	}
	b.Scale = st.Rest.Scale

	if !st.HasRotAccum1 {
		st.RotAccum1 = armature.RotationQuat(b.World())
		st.HasRotAccum1 = true
	}
	if !st.HasWorldTransform1 {
		st.WorldTransform1 = b.World()
		st.HasWorldTransform1 = true
	}
}
