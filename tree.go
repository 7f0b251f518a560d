package wiggle

import (
	"fmt"

	"github.com/akmonengine/wiggle/armature"
)

// Node is either a *SkeletonNode or a *BoneNode
type Node interface {
	NodeName() string
	node()
}

// SkeletonNode is a jiggle enabled skeleton
type SkeletonNode struct {
	Name string
	// Bones are the root bones of the skeleton's jiggle forest
	Bones []*BoneNode
	// Children are jiggle enabled skeletons parented to this one
	Children []*SkeletonNode
}

func (n *SkeletonNode) NodeName() string { return n.Name }
func (n *SkeletonNode) node()            {}

// BoneNode is a jiggle enabled bone. Children are the nearest enabled
// descendants: disabled bones in between are skipped.
type BoneNode struct {
	Name     string
	Skeleton *SkeletonNode
	Children []*BoneNode
}

func (n *BoneNode) NodeName() string { return n.Name }
func (n *BoneNode) node()            {}

func (n *BoneNode) ID() BoneID {
	return BoneID{Skeleton: n.Skeleton.Name, Bone: n.Name}
}

func (n *BoneNode) resolve(scene *armature.Scene) (*armature.Bone, error) {
	sk, ok := scene.Skeleton(n.Skeleton.Name)
	if !ok {
		return nil, fmt.Errorf("%w: skeleton %q not found", ErrStaleTree, n.Skeleton.Name)
	}
	b, ok := sk.Bone(n.Name)
	if !ok {
		return nil, fmt.Errorf("%w: bone %q not found in %q", ErrStaleTree, n.Name, sk.Name)
	}
	return b, nil
}

// Forest is the jiggle tree: skeletons mirroring scene parenting, each with
// its bone forest, restricted to enabled nodes
type Forest struct {
	Roots []*SkeletonNode
}

// Build scans the scene and returns its jiggle forest. Order follows the
// scene's skeleton and bone order, so equal scenes give equal forests.
func Build(scene *armature.Scene) *Forest {
	nodes := make(map[*armature.Skeleton]*SkeletonNode)
	var order []*armature.Skeleton
	for _, sk := range scene.Skeletons() {
		if !sk.JiggleEnabled {
			continue
		}
		nodes[sk] = buildSkeleton(sk)
		order = append(order, sk)
	}

	parents := link(order,
		func(sk *armature.Skeleton) *armature.Skeleton { return sk.Parent },
		func(sk *armature.Skeleton) bool { return nodes[sk] != nil },
	)

	forest := &Forest{}
	for _, sk := range order {
		if parent := parents[sk]; parent != nil {
			nodes[parent].Children = append(nodes[parent].Children, nodes[sk])
		} else {
			forest.Roots = append(forest.Roots, nodes[sk])
		}
	}
	return forest
}

func buildSkeleton(sk *armature.Skeleton) *SkeletonNode {
	skNode := &SkeletonNode{Name: sk.Name}

	nodes := make(map[*armature.Bone]*BoneNode)
	var order []*armature.Bone
	for _, b := range sk.Bones() {
		if !b.Jiggle.Enabled {
			continue
		}
		nodes[b] = &BoneNode{Name: b.Name, Skeleton: skNode}
		order = append(order, b)
	}

	parents := link(order,
		func(b *armature.Bone) *armature.Bone { return b.Parent },
		func(b *armature.Bone) bool { return nodes[b] != nil },
	)

	for _, b := range order {
		if parent := parents[b]; parent != nil {
			nodes[parent].Children = append(nodes[parent].Children, nodes[b])
		} else {
			skNode.Bones = append(skNode.Bones, nodes[b])
		}
	}
	return skNode
}

// link maps every node of order to its nearest ancestor accepted by in, or
// to the zero value. A node closing a parent cycle becomes a root.
func link[T comparable](order []T, parent func(T) T, in func(T) bool) map[T]T {
	var none T
	parents := make(map[T]T, len(order))
	for _, n := range order {
		parents[n] = nearest(n, parent, in)
	}

	for _, n := range order {
		visited := make(map[T]bool)
		for p := parents[n]; p != none && !visited[p]; p = parents[p] {
			if p == n {
				parents[n] = none
				break
			}
			visited[p] = true
		}
	}
	return parents
}

// nearest walks up the parent chain of n to the first node accepted by in,
// skipping the others
func nearest[T comparable](n T, parent func(T) T, in func(T) bool) T {
	var none T
	visited := map[T]bool{n: true}
	for p := parent(n); p != none && !visited[p]; p = parent(p) {
		if in(p) {
			return p
		}
		visited[p] = true
	}
	return none
}

// Walk visits the forest depth-first: a skeleton, its bones parent first,
// then its child skeletons. parent is nil for roots, a *SkeletonNode for root
// bones and child skeletons, a *BoneNode otherwise. A non-nil error from fn
// stops the walk.
func (f *Forest) Walk(fn func(n Node, parent Node) error) error {
	for _, sk := range f.Roots {
		if err := walk(sk, nil, fn); err != nil {
			return err
		}
	}
	return nil
}

func walk(n Node, parent Node, fn func(n Node, parent Node) error) error {
	if err := fn(n, parent); err != nil {
		return err
	}

	switch n := n.(type) {
	case *SkeletonNode:
		for _, b := range n.Bones {
			if err := walk(b, n, fn); err != nil {
				return err
			}
		}
		for _, c := range n.Children {
			if err := walk(c, n, fn); err != nil {
				return err
			}
		}
	case *BoneNode:
		for _, c := range n.Children {
			if err := walk(c, n, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Skeleton returns the node of a skeleton anywhere in the forest
func (f *Forest) Skeleton(name string) (*SkeletonNode, bool) {
	var found *SkeletonNode
	_ = f.Walk(func(n Node, _ Node) error {
		if sk, ok := n.(*SkeletonNode); ok && sk.Name == name && found == nil {
			found = sk
		}
		return nil
	})
	return found, found != nil
}

// BoneIDs lists every bone of the forest in walk order
func (f *Forest) BoneIDs() []BoneID {
	var ids []BoneID
	_ = f.Walk(func(n Node, _ Node) error {
		if bn, ok := n.(*BoneNode); ok {
			ids = append(ids, bn.ID())
		}
		return nil
	})
	return ids
}

// Validate checks the forest against the live scene. It returns an error
// wrapping ErrStaleTree when a node no longer exists or lost its enable flag,
// when an enabled bone or skeleton is missing from the forest, or when a node
// was reparented.
func (f *Forest) Validate(scene *armature.Scene) error {
	skeletons, bones := 0, 0
	err := f.Walk(func(n Node, _ Node) error {
		switch n := n.(type) {
		case *SkeletonNode:
			skeletons++
			sk, ok := scene.Skeleton(n.Name)
			if !ok {
				return fmt.Errorf("%w: skeleton %q not found", ErrStaleTree, n.Name)
			}
			if !sk.JiggleEnabled {
				return fmt.Errorf("%w: skeleton %q is disabled", ErrStaleTree, n.Name)
			}
		case *BoneNode:
			bones++
			b, err := n.resolve(scene)
			if err != nil {
				return err
			}
			if !b.Jiggle.Enabled {
				return fmt.Errorf("%w: bone %q is disabled", ErrStaleTree, n.ID())
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	wantSkeletons, wantBones := 0, 0
	for _, sk := range scene.Skeletons() {
		if !sk.JiggleEnabled {
			continue
		}
		wantSkeletons++
		for _, b := range sk.Bones() {
			if b.Jiggle.Enabled {
				wantBones++
			}
		}
	}
	if wantSkeletons != skeletons || wantBones != bones {
		return fmt.Errorf("%w: %d skeletons and %d bones enabled, tree has %d and %d",
			ErrStaleTree, wantSkeletons, wantBones, skeletons, bones)
	}

	live := Build(scene).parents()
	for n, parent := range f.parents() {
		if live[n] != parent {
			return fmt.Errorf("%w: %s moved from %s to %s", ErrStaleTree, n, parent, live[n])
		}
	}
	return nil
}

// nodeKey names a node of the forest. Bone is empty for skeleton nodes.
type nodeKey struct {
	Skeleton string
	Bone     string
}

func (k nodeKey) String() string {
	if k.Skeleton == "" {
		return "root"
	}
	if k.Bone == "" {
		return k.Skeleton
	}
	return k.Skeleton + "/" + k.Bone
}

func keyOf(n Node) nodeKey {
	switch n := n.(type) {
	case *SkeletonNode:
		return nodeKey{Skeleton: n.Name}
	case *BoneNode:
		return nodeKey{Skeleton: n.Skeleton.Name, Bone: n.Name}
	}
	return nodeKey{}
}

// parents maps every node to its parent in the forest
func (f *Forest) parents() map[nodeKey]nodeKey {
	parents := make(map[nodeKey]nodeKey)
	_ = f.Walk(func(n Node, parent Node) error {
		parents[keyOf(n)] = keyOf(parent)
		return nil
	})
	return parents
}
