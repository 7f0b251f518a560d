package armature

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

// Channel is a bit set of pose channels
type Channel uint8

const (
	ChannelLocation Channel = 1 << iota
	ChannelRotation
	ChannelScale

	ChannelAll = ChannelLocation | ChannelRotation | ChannelScale
)

// Keyframe is a keyed pose. Ease shapes the segment starting at this key,
// nil means linear.
type Keyframe struct {
	Frame int
	Pose  Transform
	Ease  ease.TweenFunc
}

// Curve holds the keyframes of one bone, sorted by frame
type Curve struct {
	Channels Channel
	Keys     []Keyframe
}

// Sample evaluates the curve at frame. Frames outside the keyed range hold
// the first or last key.
func (c *Curve) Sample(frame float64) Transform {
	keys := c.Keys
	if len(keys) == 0 {
		return NewTransform()
	}
	if frame <= float64(keys[0].Frame) {
		return keys[0].Pose
	}
	last := keys[len(keys)-1]
	if frame >= float64(last.Frame) {
		return last.Pose
	}

	i := sort.Search(len(keys), func(i int) bool { return float64(keys[i].Frame) > frame })
	k0, k1 := keys[i-1], keys[i]

	fn := k0.Ease
	if fn == nil {
		fn = ease.Linear
	}
	duration := float32(k1.Frame - k0.Frame)
	u := float64(fn(float32(frame-float64(k0.Frame)), 0, 1, duration))

	q0, q1 := k0.Pose.Rotation, k1.Pose.Rotation
	if q0.Dot(q1) < 0 {
		q1 = q1.Scale(-1)
	}

	return Transform{
		Location: lerp(k0.Pose.Location, k1.Pose.Location, u),
		Rotation: mgl64.QuatSlerp(q0, q1, u).Normalize(),
		Scale:    lerp(k0.Pose.Scale, k1.Pose.Scale, u),
	}
}

func lerp(a, b mgl64.Vec3, u float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(u))
}

// Action is a named set of bone curves
type Action struct {
	Name   string
	Curves map[string]*Curve
}

func NewAction(name string) *Action {
	return &Action{
		Name:   name,
		Curves: make(map[string]*Curve),
	}
}

// Insert keys the given channels of a bone at frame, replacing an existing
// key on the same frame
func (a *Action) Insert(bone string, channels Channel, frame int, pose Transform, fn ease.TweenFunc) {
	c, ok := a.Curves[bone]
	if !ok {
		c = &Curve{}
		a.Curves[bone] = c
	}
	c.Channels |= channels

	key := Keyframe{Frame: frame, Pose: pose, Ease: fn}
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Frame >= frame })
	if i < len(c.Keys) && c.Keys[i].Frame == frame {
		c.Keys[i] = key
		return
	}
	c.Keys = append(c.Keys, Keyframe{})
	copy(c.Keys[i+1:], c.Keys[i:])
	c.Keys[i] = key
}

// FrameRange returns the first and last keyed frames over all curves
func (a *Action) FrameRange() (start, end int, ok bool) {
	start, end = math.MaxInt, math.MinInt
	for _, c := range a.Curves {
		if len(c.Keys) == 0 {
			continue
		}
		start = min(start, c.Keys[0].Frame)
		end = max(end, c.Keys[len(c.Keys)-1].Frame)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// BlendType controls how the active action combines with the NLA tracks
type BlendType uint8

const (
	// BlendReplace overwrites the keyed channels
	BlendReplace BlendType = iota
	// BlendAdd adds locations and multiplies rotations and scales
	BlendAdd
)

// Strip places an action on a track, its first keyed frame at Start
type Strip struct {
	Action *Action
	Start  int
}

// Track is a non-destructive animation layer
type Track struct {
	Name   string
	Strips []Strip
	Mute   bool
}

// AnimationData is the animation stack of a skeleton: NLA tracks evaluated
// bottom-up, then the active action blended on top.
type AnimationData struct {
	Action    *Action
	BlendType BlendType
	Tracks    []*Track
}

// PushDown moves the active action into a new track and clears it
func (d *AnimationData) PushDown() *Track {
	if d.Action == nil {
		return nil
	}
	start, _, _ := d.Action.FrameRange()
	track := &Track{
		Name:   d.Action.Name,
		Strips: []Strip{{Action: d.Action, Start: start}},
	}
	d.Tracks = append(d.Tracks, track)
	d.Action = nil
	return track
}

func (d *AnimationData) empty() bool {
	return d.Action == nil && len(d.Tracks) == 0
}

// evaluate writes the animated channels of the skeleton's bones for frame.
// Channels animated anywhere in the stack start from their identity value.
func (d *AnimationData) evaluate(s *Skeleton, frame int) {
	if d.empty() {
		return
	}

	poses := make(map[string]Transform)
	masks := make(map[string]Channel)

	apply := func(action *Action, local float64, blend BlendType) {
		for name, curve := range action.Curves {
			pose, ok := poses[name]
			if !ok {
				pose = NewTransform()
			}
			poses[name] = blendPose(pose, curve.Sample(local), curve.Channels, blend)
			masks[name] |= curve.Channels
		}
	}

	for _, track := range d.Tracks {
		if track.Mute {
			continue
		}
		for _, strip := range track.Strips {
			actionStart, _, ok := strip.Action.FrameRange()
			if !ok {
				continue
			}
			apply(strip.Action, float64(frame-strip.Start+actionStart), BlendReplace)
		}
	}
	if d.Action != nil {
		apply(d.Action, float64(frame), d.BlendType)
	}

	for name, pose := range poses {
		b, ok := s.Bone(name)
		if !ok {
			continue
		}
		mask := masks[name]
		if mask&ChannelLocation != 0 {
			b.Location = pose.Location
		}
		if mask&ChannelRotation != 0 {
			b.Rotation = pose.Rotation
		}
		if mask&ChannelScale != 0 {
			b.Scale = pose.Scale
		}
	}
}

func blendPose(base, layer Transform, channels Channel, blend BlendType) Transform {
	out := base
	switch blend {
	case BlendAdd:
		if channels&ChannelLocation != 0 {
			out.Location = base.Location.Add(layer.Location)
		}
		if channels&ChannelRotation != 0 {
			out.Rotation = base.Rotation.Mul(layer.Rotation).Normalize()
		}
		if channels&ChannelScale != 0 {
			out.Scale = mgl64.Vec3{
				base.Scale.X() * layer.Scale.X(),
				base.Scale.Y() * layer.Scale.Y(),
				base.Scale.Z() * layer.Scale.Z(),
			}
		}
	default:
		if channels&ChannelLocation != 0 {
			out.Location = layer.Location
		}
		if channels&ChannelRotation != 0 {
			out.Rotation = layer.Rotation
		}
		if channels&ChannelScale != 0 {
			out.Scale = layer.Scale
		}
	}
	return out
}
