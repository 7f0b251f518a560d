package wiggle

import (
	"errors"
	"log"
	"os"

	"github.com/akmonengine/wiggle/armature"
)

var (
	// ErrStaleTree reports a jiggle tree that no longer matches the scene
	ErrStaleTree = errors.New("stale jiggle tree")
	// ErrInvalidDisableScope reports an unsupported post-bake disable scope
	ErrInvalidDisableScope = errors.New("invalid disable scope")
	// ErrUnknownParam reports an unsupported tunable
	ErrUnknownParam = errors.New("unknown jiggle parameter")
)

// DisableScope selects what gets its jiggle disabled once a bake completes
type DisableScope uint8

const (
	DisableBones DisableScope = iota
	DisableSkeleton
	DisableScene
)

func (d DisableScope) String() string {
	switch d {
	case DisableBones:
		return "BONES"
	case DisableSkeleton:
		return "SKELETON"
	case DisableScene:
		return "SCENE"
	default:
		return "UNKNOWN"
	}
}

// Config holds the scene wide jiggle settings
type Config struct {
	// Enabled is the global toggle for all jiggle bones
	Enabled bool `json:"enabled"`
	// ResetOnLoop resets the physics on the scene's first frame
	ResetOnLoop bool `json:"reset_on_loop"`
	// UseFrameRateScale scales the physics rate with the scene frame rate
	UseFrameRateScale bool    `json:"use_frame_rate_scale"`
	BaseFrameRate     float64 `json:"base_frame_rate"`
	// Rate is computed on every post step
	Rate float64 `json:"rate"`

	BakeAdditive bool         `json:"bake_additive"`
	DisableScope DisableScope `json:"disable_scope"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		ResetOnLoop:   true,
		BaseFrameRate: 24,
		Rate:          1,
		BakeAdditive:  true,
		DisableScope:  DisableBones,
	}
}

// Simulation owns the jiggle tree and the per-bone physics state of a scene
type Simulation struct {
	Scene  *armature.Scene
	Config Config
	// Tree is rebuilt lazily when nil
	Tree   *Forest
	Events Events
	Logger *log.Logger

	states map[BoneID]*BoneSimState

	preHandler  armature.HandlerID
	postHandler armature.HandlerID
	attached    bool
}

// New creates a simulation for scene. Call Attach to run it on frame changes.
func New(scene *armature.Scene, config Config) *Simulation {
	return &Simulation{
		Scene:  scene,
		Config: config,
		Events: NewEvents(),
		Logger: log.New(os.Stderr, "wiggle: ", log.LstdFlags),
		states: make(map[BoneID]*BoneSimState),
	}
}

// Attach registers PreStep and PostStep as the scene's frame change handlers
func (s *Simulation) Attach() {
	if s.attached {
		return
	}
	s.preHandler = s.Scene.OnFramePre(func(*armature.Scene) {
		if err := s.PreStep(); err != nil {
			s.Logger.Printf("pre step: %v", err)
		}
	})
	s.postHandler = s.Scene.OnFramePost(func(*armature.Scene) {
		if err := s.PostStep(); err != nil {
			s.Logger.Printf("post step: %v", err)
		}
	})
	s.attached = true
}

// Detach removes the frame change handlers
func (s *Simulation) Detach() {
	if !s.attached {
		return
	}
	s.Scene.RemoveHandler(s.preHandler)
	s.Scene.RemoveHandler(s.postHandler)
	s.attached = false
}

// Step plays frame through the scene, running the attached handlers
func (s *Simulation) Step(frame int) {
	s.Scene.SetFrame(frame)
}

// State returns the physics state of a bone, creating it on first use
func (s *Simulation) State(id BoneID) *BoneSimState {
	st, ok := s.states[id]
	if !ok {
		st = NewBoneSimState()
		s.states[id] = st
	}
	return st
}

// Lookup returns the physics state of a bone if it exists
func (s *Simulation) Lookup(id BoneID) (*BoneSimState, bool) {
	st, ok := s.states[id]
	return st, ok
}

// Rebuild regenerates the jiggle tree from the scene and seeds the previous
// world matrix of every bone in it. Bones without a rest pose take their
// current pose. Bones joining an existing tree start from still springs and
// reseed their keyed trackers on the next step.
func (s *Simulation) Rebuild() *Forest {
	var previous map[BoneID]bool
	if s.Tree != nil {
		previous = make(map[BoneID]bool)
		for _, id := range s.Tree.BoneIDs() {
			previous[id] = true
		}
	}

	s.Tree = Build(s.Scene)
	_ = s.Tree.Walk(func(n Node, _ Node) error {
		bn, ok := n.(*BoneNode)
		if !ok {
			return nil
		}
		b, err := bn.resolve(s.Scene)
		if err != nil {
			return nil
		}
		st := s.State(bn.ID())
		if !st.Rest.Captured {
			st.CaptureRest(b)
		}
		if previous != nil && !previous[bn.ID()] {
			st.ResetSprings()
			st.HasRotAccum1 = false
			st.HasWorldTransform1 = false
		}
		st.PrevWorldMatrix = b.World()
		return nil
	})
	s.Events.emit(TreeRebuiltEvent{Tree: s.Tree})
	return s.Tree
}

// ensureTree builds a missing tree and validates it. A stale tree is rebuilt
// and reported so that the caller can skip the current pass.
func (s *Simulation) ensureTree() error {
	if s.Tree == nil {
		s.Rebuild()
	}
	err := s.Tree.Validate(s.Scene)
	if errors.Is(err, ErrStaleTree) {
		s.Logger.Printf("%v, rebuilding", err)
		s.Events.emit(StaleTreeEvent{Err: err})
		s.Rebuild()
	}
	return err
}

// rate is the physics rate relative to the base frame rate
func (s *Simulation) rate() float64 {
	if !s.Config.UseFrameRateScale || s.Config.BaseFrameRate <= 0 {
		return 1.0
	}
	r := s.Scene.FrameRate() / s.Config.BaseFrameRate
	if r <= 0 {
		return 1.0
	}
	return r
}

// resetFrame reports whether the current frame restarts the simulation
func (s *Simulation) resetFrame() bool {
	return s.Config.ResetOnLoop && s.Scene.FrameCurrent == s.Scene.FrameStart
}
