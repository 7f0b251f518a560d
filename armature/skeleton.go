package armature

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Skeleton is an animated object owning a bone hierarchy
type Skeleton struct {
	Name string
	// Parent is the object this skeleton is parented to in the scene
	Parent    *Skeleton
	Transform Transform
	// JiggleEnabled toggles jiggle for every bone of the skeleton
	JiggleEnabled bool
	Animation     AnimationData

	bones  []*Bone
	byName map[string]*Bone
}

// NewSkeleton creates an empty skeleton at the origin with jiggle enabled
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{
		Name:          name,
		Transform:     NewTransform(),
		JiggleEnabled: true,
		byName:        make(map[string]*Bone),
	}
}

// AddBone appends a bone. Parents must be added before their children.
// A bone with the same name is replaced.
func (s *Skeleton) AddBone(b *Bone) *Bone {
	b.skeleton = s
	if old, ok := s.byName[b.Name]; ok {
		for i, existing := range s.bones {
			if existing == old {
				s.bones[i] = b
			}
		}
	} else {
		s.bones = append(s.bones, b)
	}
	s.byName[b.Name] = b
	b.evaluate()
	return b
}

// RemoveBone removes a bone; its children are reparented to its parent
func (s *Skeleton) RemoveBone(name string) {
	b, ok := s.byName[name]
	if !ok {
		return
	}
	delete(s.byName, name)

	k := -1
	for i, other := range s.bones {
		if other == b {
			k = i
		}
		if other.Parent == b {
			other.Parent = b.Parent
		}
	}
	if k != -1 {
		s.bones = append(s.bones[:k], s.bones[k+1:]...)
	}
	b.skeleton = nil
}

// Bones returns the bones in evaluation order
func (s *Skeleton) Bones() []*Bone {
	return s.bones
}

func (s *Skeleton) Bone(name string) (*Bone, bool) {
	b, ok := s.byName[name]
	return b, ok
}

// World returns the object's world matrix. A cyclic parent chain is cut
// where it loops back.
func (s *Skeleton) World() mgl64.Mat4 {
	world := s.Transform.Mat4()
	visited := map[*Skeleton]bool{s: true}
	for p := s.Parent; p != nil && !visited[p]; p = p.Parent {
		visited[p] = true
		world = p.Transform.Mat4().Mul4(world)
	}
	return world
}

// evaluatePose refreshes every bone matrix from its channels
func (s *Skeleton) evaluatePose() {
	for _, b := range s.bones {
		b.evaluate()
	}
}
