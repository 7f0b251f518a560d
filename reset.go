package wiggle

import "errors"

// Reset zeroes the springs and velocities of every bone in the jiggle tree,
// then re-evaluates the current frame so the reset shows immediately.
// Calling it twice leaves the same state as calling it once.
func (s *Simulation) Reset() error {
	defer s.Events.flush()

	if !s.Config.Enabled {
		return nil
	}
	// a stale tree is rebuilt and reset right away
	if err := s.ensureTree(); err != nil && !errors.Is(err, ErrStaleTree) {
		return err
	}

	err := s.Tree.Walk(func(n Node, _ Node) error {
		bn, ok := n.(*BoneNode)
		if !ok {
			return nil
		}
		s.State(bn.ID()).ResetSprings()
		s.Events.emit(BoneResetEvent{Bone: bn.ID()})
		return nil
	})
	if err != nil {
		return err
	}

	s.Scene.SetFrame(s.Scene.FrameCurrent)
	return nil
}
