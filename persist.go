package wiggle

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/akmonengine/wiggle/armature"
)

type document struct {
	Config    Config         `json:"config"`
	Skeletons []skeletonJSON `json:"skeletons"`
}

type skeletonJSON struct {
	Name          string     `json:"name"`
	JiggleEnabled bool       `json:"jiggle_enabled"`
	Bones         []boneJSON `json:"bones"`
}

type boneJSON struct {
	Name    string          `json:"name"`
	Enabled bool            `json:"enabled"`
	Active  bool            `json:"active"`
	Params  armature.Params `json:"params"`
	State   *BoneSimState   `json:"state,omitempty"`
}

// Save writes the configuration, every bone's jiggle settings and every
// bone's physics state as JSON. The tree is not saved: it is rebuilt lazily.
func (s *Simulation) Save(w io.Writer) error {
	doc := document{Config: s.Config}
	for _, sk := range s.Scene.Skeletons() {
		skDoc := skeletonJSON{Name: sk.Name, JiggleEnabled: sk.JiggleEnabled}
		for _, b := range sk.Bones() {
			bDoc := boneJSON{
				Name:    b.Name,
				Enabled: b.Jiggle.Enabled,
				Active:  b.Jiggle.Active,
				Params:  b.Jiggle.Params,
			}
			if st, ok := s.Lookup(BoneID{Skeleton: sk.Name, Bone: b.Name}); ok {
				bDoc.State = st
			}
			skDoc.Bones = append(skDoc.Bones, bDoc)
		}
		doc.Skeletons = append(doc.Skeletons, skDoc)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Load restores what Save wrote onto the scene, matching skeletons and bones
// by name. Unknown names are skipped. The tree is dropped and rebuilt on the
// next step.
func (s *Simulation) Load(r io.Reader) error {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	s.Config = doc.Config
	for _, skDoc := range doc.Skeletons {
		sk, ok := s.Scene.Skeleton(skDoc.Name)
		if !ok {
			s.Logger.Printf("load: skeleton %q not in scene, skipped", skDoc.Name)
			continue
		}
		sk.JiggleEnabled = skDoc.JiggleEnabled
		for _, bDoc := range skDoc.Bones {
			b, ok := sk.Bone(bDoc.Name)
			if !ok {
				s.Logger.Printf("load: bone %q not in %q, skipped", bDoc.Name, sk.Name)
				continue
			}
			b.Jiggle = armature.JiggleSettings{
				Enabled: bDoc.Enabled,
				Active:  bDoc.Active,
				Params:  bDoc.Params,
			}
			id := BoneID{Skeleton: sk.Name, Bone: b.Name}
			if bDoc.State != nil {
				s.states[id] = bDoc.State
			} else {
				delete(s.states, id)
			}
		}
	}
	s.Tree = nil
	return nil
}
