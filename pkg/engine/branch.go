package engine

import (
	"fmt"

	"multipass/pkg/effects"
	"multipass/pkg/scene"
)

// Branch renders a view of the shared scene and runs its effect chain
type Branch struct {
	Name    string
	View    *scene.View
	Effects []effects.Effect
}

// NewBranch creates a branch
func NewBranch(name string, view *scene.View, chain []effects.Effect) *Branch {
	return &Branch{Name: name, View: view, Effects: chain}
}

// Render draws the view into pair.Out and applies every enabled effect,
// ping-ponging between the two targets. The result always ends in pair.Out.
func (b *Branch) Render(dev Device, pair TargetPair) error {
	if !sameSize(pair.Out, pair.Scratch) {
		return fmt.Errorf("branch %s: output and scratch targets differ in size", b.Name)
	}
	if err := dev.DrawView(pair.Out, b.View); err != nil {
		return fmt.Errorf("branch %s: draw: %w", b.Name, err)
	}

	cur, next := pair.Out, pair.Scratch
	for _, fx := range b.Effects {
		if !fx.Enabled() {
			continue
		}
		if err := dev.ApplyEffect(fx, cur, next); err != nil {
			return fmt.Errorf("branch %s: %s: %w", b.Name, fx.Name(), err)
		}
		cur, next = next, cur
	}

	if cur != pair.Out {
		if err := dev.Copy(cur, pair.Out); err != nil {
			return fmt.Errorf("branch %s: copy: %w", b.Name, err)
		}
	}
	return nil
}

// Effect returns the first effect with the given name
func (b *Branch) Effect(name string) (effects.Effect, bool) {
	for _, fx := range b.Effects {
		if fx.Name() == name {
			return fx, true
		}
	}
	return nil, false
}
