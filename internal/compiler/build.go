package compiler

import (
	"fmt"

	"github.com/roach88/fxparams/internal/ir"
	"github.com/roach88/fxparams/internal/params"
)

// BuildStore creates a store from compiled layers. layers[0] fills the base
// layer; each further layer is pushed on top in order.
func BuildStore(name string, layers []LayerSpec) (*params.Store, error) {
	if err := ValidateLayers(layers); err != nil {
		return nil, err
	}
	s := params.New(name)
	for i, l := range layers {
		if i > 0 {
			s.Push(l.Name)
		}
		for _, p := range l.Params {
			if err := s.SetAt(s.Top(), p.Key, p.Value); err != nil {
				return nil, fmt.Errorf("layer %s: %w", l.Name, err)
			}
		}
	}
	return s, nil
}

// ApplyLayers brings an existing store in line with reloaded layers and
// returns the number of parameter writes it made.
//
// Only differences are written, so counters move only for parameters whose
// value actually changed. Override layers are matched by position and name:
// the longest matching prefix is diffed in place, everything above it is
// popped and the remaining layers are pushed fresh. A key dropped from the
// base layer is set to null, since base keys cannot be unset.
//
// Layers are validated before anything is written; a rejected reload leaves
// the store untouched. Errors after validation mean the store itself is
// inconsistent.
func ApplyLayers(s *params.Store, layers []LayerSpec) (int, error) {
	if err := ValidateLayers(layers); err != nil {
		return 0, err
	}

	var base LayerSpec
	if len(layers) > 0 {
		base = layers[0]
	}

	writes, err := applyLayer(s, params.BaseLayer, base)
	if err != nil {
		return writes, err
	}

	chain := s.Layers()
	keep := 0
	for keep+1 < len(chain) && keep+1 < len(layers) && chain[keep+1].Name == layers[keep+1].Name {
		keep++
	}

	for s.Depth() > keep {
		defined, err := s.Defined(s.Top())
		if err != nil {
			return writes, err
		}
		if _, err := s.Pop(); err != nil {
			return writes, err
		}
		writes += len(defined)
	}

	for i := 1; i <= keep; i++ {
		n, err := applyLayer(s, chain[i].ID, layers[i])
		writes += n
		if err != nil {
			return writes, err
		}
	}

	for _, l := range layers[min(keep+1, len(layers)):] {
		id := s.Push(l.Name)
		for _, p := range l.Params {
			if err := s.SetAt(id, p.Key, p.Value); err != nil {
				return writes, fmt.Errorf("layer %s: %w", l.Name, err)
			}
			writes++
		}
	}

	return writes, nil
}

// ValidateLayers checks that layers can be written to a store: every layer
// has a unique name, and every parameter a non-empty key that appears once
// per layer.
func ValidateLayers(layers []LayerSpec) error {
	names := make(map[string]bool, len(layers))
	for i, l := range layers {
		if l.Name == "" {
			return &CompileError{Field: fmt.Sprintf("layers[%d].name", i), Message: "name is required"}
		}
		if names[l.Name] {
			return &CompileError{Field: fmt.Sprintf("layers[%d].name", i), Message: fmt.Sprintf("duplicate layer name %q", l.Name)}
		}
		names[l.Name] = true

		keys := make(map[ir.Key]bool, len(l.Params))
		for j, p := range l.Params {
			field := fmt.Sprintf("layers[%d].values[%d]", i, j)
			if p.Key.Name == "" {
				return &CompileError{Field: field, Message: "parameter key is empty"}
			}
			if keys[p.Key] {
				return &CompileError{Field: field, Message: fmt.Sprintf("duplicate parameter %q in layer %s", p.Key.Name, l.Name)}
			}
			keys[p.Key] = true
		}
	}
	return nil
}

func applyLayer(s *params.Store, id params.LayerID, spec LayerSpec) (int, error) {
	writes := 0
	wanted := make(map[ir.Key]bool, len(spec.Params))

	for _, p := range spec.Params {
		wanted[p.Key] = true
		if cur, ok := s.LayerValue(id, p.Key); ok && ir.Equal(cur, p.Value) {
			continue
		}
		if err := s.SetAt(id, p.Key, p.Value); err != nil {
			return writes, fmt.Errorf("layer %s: %w", spec.Name, err)
		}
		writes++
	}

	defined, err := s.Defined(id)
	if err != nil {
		return writes, err
	}
	for _, k := range defined {
		if wanted[k] {
			continue
		}
		if id == params.BaseLayer {
			if cur, _ := s.LayerValue(id, k); ir.Equal(cur, ir.Null{}) {
				continue
			}
			if err := s.SetAt(id, k, ir.Null{}); err != nil {
				return writes, err
			}
		} else if err := s.UnsetAt(id, k); err != nil {
			return writes, err
		}
		writes++
	}

	return writes, nil
}
