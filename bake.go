package wiggle

import (
	"fmt"

	"github.com/akmonengine/wiggle/armature"
	"github.com/go-gl/mathgl/mgl64"
)

// BakeOptions configure Bake
type BakeOptions struct {
	Skeleton *armature.Skeleton
	// Bones to key. DisableBones disables exactly these.
	Bones      []*armature.Bone
	FrameStart int
	FrameEnd   int
	// Additive pushes the current action to a track and keys the jiggle as
	// an offset layer on top of it
	Additive bool
	Scope    DisableScope
}

// BakeOptionsFor returns options baking every jiggle bone of sk over the
// scene's frame range, with the scene's bake settings
func (s *Simulation) BakeOptionsFor(sk *armature.Skeleton) BakeOptions {
	return BakeOptions{
		Skeleton:   sk,
		Bones:      s.SelectBones(sk),
		FrameStart: s.Scene.FrameStart,
		FrameEnd:   s.Scene.FrameEnd,
		Additive:   s.Config.BakeAdditive,
		Scope:      s.Config.DisableScope,
	}
}

// Bake plays the frame range and keys the visual pose of the bones into a new
// action that becomes the skeleton's active action. Jiggle is then disabled
// at opts.Scope so the baked motion is not simulated twice. An unsupported
// scope is reported after baking: the returned action is valid either way.
func (s *Simulation) Bake(opts BakeOptions) (*armature.Action, error) {
	defer s.Events.flush()

	sk := opts.Skeleton
	if sk == nil {
		return nil, fmt.Errorf("bake: no skeleton")
	}
	if !s.attached {
		s.Attach()
		defer s.Detach()
	}

	anim := &sk.Animation
	if opts.Additive {
		anim.PushDown()
		anim.BlendType = armature.BlendAdd
	} else {
		anim.BlendType = armature.BlendReplace
	}

	if !s.Config.ResetOnLoop {
		// let the transients settle before keying
		for frame := opts.FrameStart; frame < opts.FrameEnd; frame++ {
			s.Scene.SetFrame(frame)
			if frame == opts.FrameStart {
				if err := s.Reset(); err != nil {
					return nil, err
				}
			}
		}
	}

	action := armature.NewAction(sk.Name + "Action.wiggle")
	for frame := opts.FrameStart; frame <= opts.FrameEnd; frame++ {
		s.Scene.SetFrame(frame)
		for _, b := range opts.Bones {
			pose := b.VisualPose()
			if opts.Additive {
				pose = offsetPose(b.KeyedPose(), pose)
			}
			action.Insert(b.Name, armature.ChannelAll, frame, pose, nil)
		}
	}
	anim.Action = action

	s.Events.emit(BakeCompleteEvent{
		Skeleton:   sk.Name,
		Action:     action,
		FrameStart: opts.FrameStart,
		FrameEnd:   opts.FrameEnd,
	})

	switch opts.Scope {
	case DisableBones:
		for _, b := range opts.Bones {
			b.Jiggle.Enabled = false
		}
	case DisableSkeleton:
		sk.JiggleEnabled = false
	case DisableScene:
		s.Config.Enabled = false
	default:
		return action, fmt.Errorf("%w: %v", ErrInvalidDisableScope, opts.Scope)
	}
	s.Rebuild()

	return action, nil
}

// offsetPose returns the additive layer turning keyed into visual
func offsetPose(keyed, visual armature.Transform) armature.Transform {
	return armature.Transform{
		Location: visual.Location.Sub(keyed.Location),
		Rotation: keyed.Rotation.Inverse().Mul(visual.Rotation).Normalize(),
		Scale: mgl64.Vec3{
			ratio(visual.Scale.X(), keyed.Scale.X()),
			ratio(visual.Scale.Y(), keyed.Scale.Y()),
			ratio(visual.Scale.Z(), keyed.Scale.Z()),
		},
	}
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	return a / b
}
