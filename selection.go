package wiggle

import (
	"errors"
	"fmt"

	"github.com/akmonengine/wiggle/armature"
)

// Param names a per-bone tunable
type Param uint8

const (
	ParamStiffness Param = iota
	ParamDampen
	ParamAmplitude
	ParamTranslation
	ParamStretch
	ParamGravity
)

func (p Param) String() string {
	switch p {
	case ParamStiffness:
		return "stiffness"
	case ParamDampen:
		return "dampen"
	case ParamAmplitude:
		return "amplitude"
	case ParamTranslation:
		return "translation"
	case ParamStretch:
		return "stretch"
	case ParamGravity:
		return "gravity"
	default:
		return "unknown"
	}
}

// ParseParam returns the Param named s
func ParseParam(s string) (Param, error) {
	for p := ParamStiffness; p <= ParamGravity; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParam, s)
}

// ApplyToSelection sets one tunable on every target bone
func ApplyToSelection(param Param, value float64, targets []*armature.Bone) error {
	for _, b := range targets {
		p := &b.Jiggle.Params
		switch param {
		case ParamStiffness:
			p.Stiffness = value
		case ParamDampen:
			p.Dampen = value
		case ParamAmplitude:
			p.Amplitude = value
		case ParamTranslation:
			p.Translation = value
		case ParamStretch:
			p.Stretch = value
		case ParamGravity:
			p.Gravity = value
		default:
			return fmt.Errorf("%w: %v", ErrUnknownParam, param)
		}
	}
	return nil
}

// SetActive sets the animatable active flag on every target bone
func SetActive(targets []*armature.Bone, active bool) {
	for _, b := range targets {
		b.Jiggle.Active = active
	}
}

// SetEnabled toggles jiggle on the target bones. Enabled bones take their
// current pose as rest pose. The tree is rebuilt.
func (s *Simulation) SetEnabled(targets []*armature.Bone, enabled bool) {
	for _, b := range targets {
		b.Jiggle.Enabled = enabled
		if enabled && b.Skeleton() != nil {
			s.State(BoneID{Skeleton: b.Skeleton().Name, Bone: b.Name}).CaptureRest(b)
		}
	}
	s.Rebuild()
}

// SetSkeletonEnabled toggles jiggle for a whole skeleton and rebuilds the tree
func (s *Simulation) SetSkeletonEnabled(sk *armature.Skeleton, enabled bool) {
	sk.JiggleEnabled = enabled
	s.Rebuild()
}

// SetSceneEnabled toggles jiggle globally and rebuilds the tree
func (s *Simulation) SetSceneEnabled(enabled bool) {
	s.Config.Enabled = enabled
	s.Rebuild()
}

// SelectBones returns the jiggle bones of sk, parents before children
func (s *Simulation) SelectBones(sk *armature.Skeleton) []*armature.Bone {
	if err := s.ensureTree(); err != nil && !errors.Is(err, ErrStaleTree) {
		return nil
	}
	node, ok := s.Tree.Skeleton(sk.Name)
	if !ok {
		return nil
	}

	var bones []*armature.Bone
	var visit func(nodes []*BoneNode)
	visit = func(nodes []*BoneNode) {
		for _, bn := range nodes {
			if b, ok := sk.Bone(bn.Name); ok {
				bones = append(bones, b)
			}
			visit(bn.Children)
		}
	}
	visit(node.Bones)
	return bones
}
