package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/akmonengine/wiggle"
	"github.com/akmonengine/wiggle/armature"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/tanema/gween/ease"
	"gonum.org/v1/gonum/floats"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

// SetupScene creates a rig whose root swings side to side, dragging a
// three bone tail behind it
func SetupScene(frames int) (*armature.Scene, *armature.Skeleton) {
	scene := armature.NewScene()
	scene.FrameEnd = frames

	rig := scene.AddSkeleton(armature.NewSkeleton("Rig"))
	root := rig.AddBone(armature.NewBone("root", nil, mgl64.Ident4()))

	parent := root
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("tail.%03d", i)
		b := armature.NewBone(name, parent, mgl64.Translate3D(0, float64(i), 0))
		b.Connected = true
		b.Jiggle.Enabled = true
		rig.AddBone(b)
		parent = b
	}

	swing := armature.NewAction("Swing")
	for i, frame := range []int{1, 12, 24, 36, 48} {
		angle := mgl64.DegToRad(30)
		if i%2 == 1 {
			angle = -angle
		}
		if i == 0 || i == 4 {
			angle = 0
		}
		pose := armature.NewTransform()
		pose.Rotation = mgl64.QuatRotate(angle, mgl64.Vec3{0, 0, 1})
		swing.Insert("root", armature.ChannelRotation, frame, pose, ease.InOutSine)
	}
	rig.Animation.Action = swing

	return scene, rig
}

func main() {
	frames := flag.Int("frames", 96, "number of frames to simulate")
	bake := flag.Bool("bake", false, "bake the jiggle into an action afterwards")
	additive := flag.Bool("additive", true, "bake as an additive layer")
	fpsScale := flag.Bool("fps-scale", false, "scale the physics rate with the frame rate")
	save := flag.String("save", "", "write the simulation state as JSON to this file")
	flag.Parse()

	scene, rig := SetupScene(*frames)

	config := wiggle.DefaultConfig()
	config.UseFrameRateScale = *fpsScale
	config.BakeAdditive = *additive
	sim := wiggle.New(scene, config)
	sim.Attach()

	tip := wiggle.BoneID{Skeleton: rig.Name, Bone: "tail.003"}
	springs := make([]float64, 0, *frames)
	for frame := scene.FrameStart; frame <= scene.FrameEnd; frame++ {
		sim.Step(frame)
		springs = append(springs, sim.State(tip).SpringRot.Len())
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("wiggle: tail follow-through") + "\n")
	b.WriteString(row("frames", fmt.Sprintf("%d", len(springs))))
	b.WriteString(row("jiggle bones", fmt.Sprintf("%d", len(sim.SelectBones(rig)))))
	b.WriteString(row("rate", fmt.Sprintf("%.3f", sim.Config.Rate)))
	b.WriteString(row("peak spring", fmt.Sprintf("%.5f", floats.Max(springs))))
	b.WriteString(row("mean spring", fmt.Sprintf("%.5f", floats.Sum(springs)/float64(len(springs)))))
	b.WriteString(graphStyle.Render(asciigraph.Plot(springs,
		asciigraph.Height(12),
		asciigraph.Width(72),
		asciigraph.Caption("tail.003 rotational spring magnitude per frame"),
	)) + "\n")
	fmt.Print(b.String())

	if *bake {
		sim.Detach()
		action, err := sim.Bake(sim.BakeOptionsFor(rig))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		start, end, _ := action.FrameRange()
		fmt.Print(row("baked action", action.Name))
		fmt.Print(row("baked range", fmt.Sprintf("%d-%d", start, end)))
	}

	if *save != "" {
		f, err := os.Create(*save)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := sim.Save(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value)) + "\n"
}
