package wiggle

import (
	"math"
	"testing"

	"github.com/akmonengine/wiggle/armature"
	"github.com/akmonengine/wiggle/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// steadySpring is the rotational spring a still bone settles at under gravity
func steadySpring(sim *Simulation, b *armature.Bone, st *BoneSimState) mgl64.Vec3 {
	p := b.Jiggle.Params
	g := sim.Scene.Gravity.Mul(gravityScale * p.Gravity)
	gvec := armature.RelativeVector(armature.RotationMat4(st.PrevWorldMatrix), mgl64.Translate3D(g.X(), g.Y(), g.Z()))
	gvec[1] = 0
	return gvec.Mul((1 - p.Stiffness) / p.Stiffness)
}

// =============================================================================
// Inactive and Reset Tests
// =============================================================================

func TestPostStep_InactiveBoneKeepsKeyedPose(t *testing.T) {
	scene, sk := createChainScene(3)
	swingRoot(sk, 64)
	SetActive(sk.Bones(), false)
	sim := createSimulation(scene, DefaultConfig())

	for frame := 1; frame <= 40; frame++ {
		sim.Step(frame)
		for _, b := range sk.Bones() {
			if b.Pose() != b.KeyedPose() {
				t.Fatalf("frame %d: %s pose %+v, want keyed %+v", frame, b.Name, b.Pose(), b.KeyedPose())
			}
			if st := sim.State(boneID(sk, b.Name)); !st.IsAtRest() {
				t.Fatalf("frame %d: %s springs not at rest: %+v", frame, b.Name, st)
			}
		}
	}
}

func TestPostStep_ResetFrameZeroesState(t *testing.T) {
	scene, sk := createChainScene(3)
	swingRoot(sk, 64)
	sim := createSimulation(scene, DefaultConfig())

	for frame := 1; frame <= 20; frame++ {
		sim.Step(frame)
	}
	moving := false
	for _, b := range sk.Bones() {
		if !sim.State(boneID(sk, b.Name)).IsAtRest() {
			moving = true
		}
	}
	if !moving {
		t.Fatal("bones should be jiggling before the loop")
	}

	sim.Step(scene.FrameStart)
	for _, b := range sk.Bones() {
		st := sim.State(boneID(sk, b.Name))
		if !st.IsAtRest() {
			t.Errorf("%s springs = %+v, want at rest on the first frame", b.Name, st)
		}
		if b.Pose() != b.KeyedPose() {
			t.Errorf("%s pose %+v, want keyed %+v on the first frame", b.Name, b.Pose(), b.KeyedPose())
		}
	}
}

func TestPostStep_NoResetWhenLoopResetOff(t *testing.T) {
	scene, sk := createChainScene(1)
	config := DefaultConfig()
	config.ResetOnLoop = false
	sim := createSimulation(scene, config)

	for frame := 1; frame <= 5; frame++ {
		sim.Step(frame)
	}
	sim.Step(scene.FrameStart)

	if sim.State(boneID(sk, "bone.000")).IsAtRest() {
		t.Error("springs should carry over the loop when reset on loop is off")
	}
}

// =============================================================================
// Gravity Tests
// =============================================================================

func TestPostStep_GravityOnly(t *testing.T) {
	tests := []struct {
		name string
		fps  float64
		want mgl64.Vec3
	}{
		{"base rate", 24, mgl64.Vec3{0, 0, 0.0981}},
		{"double rate halves the step", 48, mgl64.Vec3{0, 0, 0.0981 / 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene, sk := createChainScene(1)
			scene.FPS = tt.fps
			b := sk.Bones()[0]
			b.Jiggle.Params = armature.Params{Stiffness: 0, Dampen: 0, Amplitude: 1, Gravity: 1}

			config := DefaultConfig()
			config.ResetOnLoop = false
			config.UseFrameRateScale = true
			sim := createSimulation(scene, config)

			sim.Step(2)

			st := sim.State(boneID(sk, b.Name))
			if !vec3AlmostEqual(st.VelocityRot, mgl64.Vec3{0, 0, 0.0981}, 1e-12) {
				t.Errorf("VelocityRot = %v, want gravity (0, 0, 0.0981)", st.VelocityRot)
			}
			if !vec3AlmostEqual(st.SpringRot, tt.want, 1e-12) {
				t.Errorf("SpringRot = %v, want %v", st.SpringRot, tt.want)
			}
			if st.SpringTrans != (mgl64.Vec3{}) {
				t.Errorf("SpringTrans = %v, want zero", st.SpringTrans)
			}
			// the tail sags towards gravity
			if tail := b.Matrix().Col(1); tail.Z() >= 0 {
				t.Errorf("tail axis = %v, want it pointing down", tail)
			}
		})
	}
}

func TestPostStep_GravityAlongBoneIgnored(t *testing.T) {
	scene := armature.NewScene()
	sk := scene.AddSkeleton(armature.NewSkeleton("Armature"))
	// the bone hangs straight down
	b := armature.NewBone("hanging", nil, mgl64.HomogRotate3DX(-math.Pi/2))
	b.Jiggle.Enabled = true
	sk.AddBone(b)

	config := DefaultConfig()
	config.ResetOnLoop = false
	sim := createSimulation(scene, config)
	for frame := 2; frame <= 10; frame++ {
		sim.Step(frame)
	}

	st := sim.State(boneID(sk, b.Name))
	if !vec3AlmostEqual(st.SpringRot, mgl64.Vec3{}, 1e-12) {
		t.Errorf("SpringRot = %v, want zero for gravity along the bone", st.SpringRot)
	}
}

// =============================================================================
// Convergence Tests
// =============================================================================

func TestPostStep_ConvergesUnderGravity(t *testing.T) {
	scene, sk := createChainScene(1)
	b := sk.Bones()[0]
	sim := createSimulation(scene, DefaultConfig())
	st := sim.State(boneID(sk, b.Name))

	distance := func() float64 {
		ds := st.SpringRot.Sub(steadySpring(sim, b, st))
		return math.Hypot(ds.Len(), st.VelocityRot.Len())
	}

	sim.Step(1)
	if !st.IsAtRest() {
		t.Fatalf("first frame springs = %+v, want at rest", st)
	}
	sim.Step(2)
	if st.SpringRot.Len() == 0 {
		t.Fatal("gravity should move the spring on the second frame")
	}

	var early float64
	for frame := 3; frame <= 200; frame++ {
		sim.Step(frame)
		if frame == 10 {
			early = distance()
		}
	}

	late := distance()
	if late >= early {
		t.Errorf("distance to steady state grew from %v to %v", early, late)
	}
	if late > 1e-6 {
		t.Errorf("distance to steady state = %v after 200 frames, want < 1e-6", late)
	}
	if want := steadySpring(sim, b, st); !vec3AlmostEqual(st.SpringRot, want, 1e-6) {
		t.Errorf("SpringRot = %v, want gravity·(1-k)/k = %v", st.SpringRot, want)
	}
}

func TestPostStep_OutOfRangeStiffnessDiverges(t *testing.T) {
	scene, sk := createChainScene(1)
	b := sk.Bones()[0]
	b.Jiggle.Params.Stiffness = 5
	b.Jiggle.Params.Dampen = 0
	sim := createSimulation(scene, DefaultConfig())

	for frame := 1; frame <= 20; frame++ {
		sim.Step(frame)
	}

	// gains are not clamped: stiffness above 1 is unstable
	spring := sim.State(boneID(sk, b.Name)).SpringRot.Len()
	if math.IsNaN(spring) || spring < 1e3 {
		t.Errorf("|SpringRot| = %v, want a large finite value", spring)
	}
}

func TestPostStep_Deterministic(t *testing.T) {
	run := func() []BoneSimState {
		scene, sk := createChainScene(3)
		swingRoot(sk, 64)
		sim := createSimulation(scene, DefaultConfig())
		for frame := 1; frame <= 30; frame++ {
			sim.Step(frame)
		}
		var states []BoneSimState
		for _, b := range sk.Bones() {
			states = append(states, *sim.State(boneID(sk, b.Name)))
		}
		return states
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("bone %d state differs between identical runs", i)
		}
	}
}

func TestPostStep_SeedsUnsetKeyedTrackers(t *testing.T) {
	scene, sk := createChainScene(1)
	sk.Transform.Location = mgl64.Vec3{0, 0, 3}
	scene.Update()
	b := sk.Bones()[0]

	config := DefaultConfig()
	config.ResetOnLoop = false
	sim := createDetachedSimulation(scene, config)
	sim.Rebuild()

	// no pre-step ran: the trackers are only seeded by the integrator
	if err := sim.PostStep(); err != nil {
		t.Fatalf("PostStep = %v", err)
	}
	st := sim.State(boneID(sk, b.Name))
	if !st.HasWorldTransform1 || !st.HasRotAccum1 {
		t.Fatal("keyed trackers should be seeded")
	}
	if !vec3AlmostEqual(st.SpringTrans, mgl64.Vec3{}, 1e-12) {
		t.Errorf("SpringTrans = %v, want no kick from the skeleton offset", st.SpringTrans)
	}
}

func TestPostStep_BoneEnabledMidPlayback(t *testing.T) {
	const frames = 200
	run := func(enableAt int) (*Simulation, *armature.Skeleton) {
		scene, sk := createChainScene(2)
		late := sk.Bones()[1]
		late.Location = mgl64.Vec3{0, 0, 5}
		late.Jiggle.Enabled = enableAt <= 1
		sim := createSimulation(scene, DefaultConfig())

		for frame := 1; frame <= frames; frame++ {
			if frame == enableAt {
				late.Jiggle.Enabled = true
			}
			sim.Step(frame)
			if frame == enableAt && enableAt > 1 {
				// the pass that notices the flag is skipped; the bone then
				// joins from where it stands
				st := sim.State(boneID(sk, late.Name))
				if !vec3AlmostEqual(st.SpringTrans, mgl64.Vec3{}, 1e-12) ||
					!vec3AlmostEqual(st.VelocityTrans, mgl64.Vec3{}, 1e-12) {
					t.Errorf("translation spring kicked on entry: %+v", st)
				}
			}
		}
		return sim, sk
	}

	sim, sk := run(6)
	_, refSk := run(1)

	late, refLate := sk.Bones()[1], refSk.Bones()[1]
	rest := sim.State(boneID(sk, late.Name)).Rest
	if !rest.Captured || rest.Location != (mgl64.Vec3{0, 0, 5}) {
		t.Errorf("Rest = %+v, want the pose before enabling", rest)
	}
	if !vec3AlmostEqual(late.Location, refLate.Location, 1e-6) {
		t.Errorf("Location = %v, want %v as when enabled from the start", late.Location, refLate.Location)
	}
}

// =============================================================================
// Hierarchy Tests
// =============================================================================

func TestPostStep_ChildFollowsJiggledParent(t *testing.T) {
	scene, sk := createChainScene(2)
	swingRoot(sk, 64)
	parent, child := sk.Bones()[0], sk.Bones()[1]
	child.Jiggle.Params.Amplitude = 0
	child.Jiggle.Params.Translation = 0
	child.Jiggle.Params.Stretch = 0

	sim := createDetachedSimulation(scene, DefaultConfig())
	var parentPre, childPre mgl64.Mat4
	scene.OnFramePost(func(*armature.Scene) {
		parentPre, childPre = parent.World(), child.World()
	})
	sim.Attach()

	jiggled := false
	for frame := 1; frame <= 24; frame++ {
		sim.Step(frame)

		want := parent.World().Mul4(parentPre.Inv()).Mul4(childPre)
		if !mat4AlmostEqual(child.World(), want, 1e-9) {
			t.Fatalf("frame %d: child world = %v, want %v", frame, child.World(), want)
		}
		st := sim.State(boneID(sk, child.Name))
		if !mat4AlmostEqual(st.PrevWorldMatrix, child.World(), 1e-9) {
			t.Fatalf("frame %d: child previous world = %v, want %v", frame, st.PrevWorldMatrix, child.World())
		}
		if !mat4AlmostEqual(parent.World(), parentPre, 1e-4) {
			jiggled = true
		}
	}
	if !jiggled {
		t.Error("parent never jiggled")
	}
}

func TestPostStep_ConnectedBoneIgnoresTranslation(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		wantMoved bool
	}{
		{"disconnected", false, true},
		{"connected", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene, sk := createChainScene(1)
			b := sk.Bones()[0]
			b.Connected = tt.connected

			action := armature.NewAction("Slide")
			start, end := armature.NewTransform(), armature.NewTransform()
			end.Location = mgl64.Vec3{5, 0, 0}
			action.Insert(b.Name, armature.ChannelLocation, 1, start, nil)
			action.Insert(b.Name, armature.ChannelLocation, 10, end, nil)
			sk.Animation.Action = action

			sim := createSimulation(scene, DefaultConfig())
			sim.Step(1)
			sim.Step(2)

			head := armature.Translation(b.Matrix())
			moved := !vec3AlmostEqual(head, b.KeyedPose().Location, 1e-9)
			if moved != tt.wantMoved {
				t.Errorf("head = %v keyed %v, moved %v, want %v", head, b.KeyedPose().Location, moved, tt.wantMoved)
			}
		})
	}
}

func TestPostStep_ChildOfConstraint(t *testing.T) {
	scene, sk := createChainScene(1)
	b := sk.Bones()[0]
	target := armature.NewSkeleton("Target")
	b.Constraints = []constraint.Constraint{constraint.NewChildOf(target)}
	target.Transform.Location = mgl64.Vec3{0, 0, 5}
	scene.Update()

	sim := createSimulation(scene, DefaultConfig())
	sim.Step(1)
	sim.Step(2)

	// the jiggle is layered on top of the constraint, not applied twice
	if head := armature.Translation(b.World()); !vec3AlmostEqual(head, mgl64.Vec3{0, 0, 5}, 1e-9) {
		t.Errorf("head = %v, want (0, 0, 5)", head)
	}
	if tail := b.World().Col(1); tail.Z() >= 0 {
		t.Errorf("tail axis = %v, want the jiggle to sag it", tail)
	}
	st := sim.State(boneID(sk, b.Name))
	if !mat4AlmostEqual(st.PrevWorldMatrix, b.World(), 1e-9) {
		t.Errorf("previous world = %v, want the final world %v", st.PrevWorldMatrix, b.World())
	}
}

func TestPostStep_Disabled(t *testing.T) {
	scene, sk := createChainScene(1)
	config := DefaultConfig()
	config.Enabled = false
	sim := createSimulation(scene, config)

	for frame := 1; frame <= 5; frame++ {
		sim.Step(frame)
	}
	if _, ok := sim.Lookup(boneID(sk, "bone.000")); ok {
		t.Error("disabled simulation should not create bone state")
	}
}
