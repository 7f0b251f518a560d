package armature

import (
	"github.com/go-gl/mathgl/mgl64"
)

// FrameHandler is called on every frame change
type FrameHandler func(scene *Scene)

// HandlerID identifies a registered FrameHandler
type HandlerID int

type handler struct {
	id HandlerID
	fn FrameHandler
}

// Scene holds the skeletons and the playback state
type Scene struct {
	// Gravity acceleration (m/s²)
	Gravity      mgl64.Vec3
	FrameStart   int
	FrameEnd     int
	FrameCurrent int
	FPS          float64
	FPSBase      float64

	skeletons []*Skeleton
	pre       []handler
	post      []handler
	nextID    HandlerID
}

// NewScene creates an empty scene playing frames 1 to 250 at 24 fps
func NewScene() *Scene {
	return &Scene{
		Gravity:      mgl64.Vec3{0, 0, -9.81},
		FrameStart:   1,
		FrameEnd:     250,
		FrameCurrent: 1,
		FPS:          24,
		FPSBase:      1,
	}
}

// AddSkeleton adds a skeleton to the scene
func (s *Scene) AddSkeleton(sk *Skeleton) *Skeleton {
	s.skeletons = append(s.skeletons, sk)
	return sk
}

// RemoveSkeleton removes a skeleton from the scene; its children lose their parent
func (s *Scene) RemoveSkeleton(name string) {
	k := -1
	for i, sk := range s.skeletons {
		if sk.Name == name {
			k = i
		}
	}
	if k == -1 {
		return
	}
	removed := s.skeletons[k]
	s.skeletons = append(s.skeletons[:k], s.skeletons[k+1:]...)
	for _, sk := range s.skeletons {
		if sk.Parent == removed {
			sk.Parent = nil
		}
	}
}

// Skeletons returns the skeletons in scene order
func (s *Scene) Skeletons() []*Skeleton {
	return s.skeletons
}

func (s *Scene) Skeleton(name string) (*Skeleton, bool) {
	for _, sk := range s.skeletons {
		if sk.Name == name {
			return sk, true
		}
	}
	return nil, false
}

// FrameRate is the effective playback rate in frames per second
func (s *Scene) FrameRate() float64 {
	if s.FPSBase == 0 {
		return s.FPS
	}
	return s.FPS / s.FPSBase
}

// OnFramePre registers a handler called before animation is evaluated
func (s *Scene) OnFramePre(fn FrameHandler) HandlerID {
	s.nextID++
	s.pre = append(s.pre, handler{id: s.nextID, fn: fn})
	return s.nextID
}

// OnFramePost registers a handler called after animation is evaluated
func (s *Scene) OnFramePost(fn FrameHandler) HandlerID {
	s.nextID++
	s.post = append(s.post, handler{id: s.nextID, fn: fn})
	return s.nextID
}

// RemoveHandler unregisters a pre or post handler
func (s *Scene) RemoveHandler(id HandlerID) {
	s.pre = removeHandler(s.pre, id)
	s.post = removeHandler(s.post, id)
}

func removeHandler(handlers []handler, id HandlerID) []handler {
	n := 0
	for _, h := range handlers {
		if h.id != id {
			handlers[n] = h
			n++
		}
	}
	return handlers[:n]
}

// SetFrame advances playback to frame:
// pre handlers, animation, pose evaluation, post handlers, pose evaluation.
func (s *Scene) SetFrame(frame int) {
	s.FrameCurrent = frame

	for _, h := range s.pre {
		h.fn(s)
	}

	for _, sk := range s.skeletons {
		sk.Animation.evaluate(sk, frame)
		for _, b := range sk.bones {
			b.keyed = b.Pose()
		}
	}
	s.Update()

	for _, h := range s.post {
		h.fn(s)
	}
	s.Update()
}

// Update re-evaluates every pose matrix from the current channels without
// touching animation
func (s *Scene) Update() {
	for _, sk := range s.skeletons {
		sk.evaluatePose()
	}
}
