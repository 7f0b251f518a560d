package constraint

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Type identifies the kind of a bone constraint
type Type uint8

const (
	// TypeChildOf makes the owner follow a target as if parented to it
	TypeChildOf Type = iota
	// TypeCopyLocation snaps the owner's world location to the target's
	TypeCopyLocation
)

func (t Type) String() string {
	switch t {
	case TypeChildOf:
		return "CHILD_OF"
	case TypeCopyLocation:
		return "COPY_LOCATION"
	default:
		return "UNKNOWN"
	}
}

// Target is anything exposing a world matrix: a bone or a skeleton
type Target interface {
	World() mgl64.Mat4
}

// Constraint is evaluated by the host after the owner's pose channels,
// in world space.
type Constraint interface {
	Type() Type
	Enabled() bool
	Apply(owner mgl64.Mat4) mgl64.Mat4
}

// ChildOf parents the owner to Target. Inverse is the inverse of the target's
// world matrix at the time the constraint was set, so that the owner does not
// jump when the constraint is created.
type ChildOf struct {
	Target  Target
	Inverse mgl64.Mat4
	Mute    bool
}

// NewChildOf creates a child-of constraint whose inverse is taken from the
// target's current world matrix
func NewChildOf(target Target) *ChildOf {
	return &ChildOf{
		Target:  target,
		Inverse: target.World().Inv(),
	}
}

func (c *ChildOf) Type() Type { return TypeChildOf }

func (c *ChildOf) Enabled() bool { return !c.Mute && c.Target != nil }

func (c *ChildOf) Apply(owner mgl64.Mat4) mgl64.Mat4 {
	if !c.Enabled() {
		return owner
	}
	return c.Target.World().Mul4(c.Inverse).Mul4(owner)
}

// CopyLocation replaces the owner's world location by the target's plus Offset
type CopyLocation struct {
	Target Target
	Offset mgl64.Vec3
	Mute   bool
}

func (c *CopyLocation) Type() Type { return TypeCopyLocation }

func (c *CopyLocation) Enabled() bool { return !c.Mute && c.Target != nil }

func (c *CopyLocation) Apply(owner mgl64.Mat4) mgl64.Mat4 {
	if !c.Enabled() {
		return owner
	}
	location := c.Target.World().Col(3).Vec3().Add(c.Offset)
	owner.SetCol(3, location.Vec4(1))
	return owner
}

// FirstActive returns the first enabled constraint of the given type
func FirstActive(constraints []Constraint, t Type) (Constraint, bool) {
	for _, c := range constraints {
		if c.Type() == t && c.Enabled() {
			return c, true
		}
	}
	return nil, false
}
