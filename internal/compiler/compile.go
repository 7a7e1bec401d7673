package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/fxparams/internal/engine"
	"github.com/roach88/fxparams/internal/ir"
)

// Param is one parameter assignment in a layer.
type Param struct {
	Key   ir.Key
	Value ir.Value
}

// LayerSpec is a compiled layer: a name and its assignments in declaration
// order. The first layer of a project is the base layer.
type LayerSpec struct {
	Name   string
	Params []Param
}

// EffectSpec is a compiled effect declaration.
type EffectSpec struct {
	Name     string
	Reads    []ir.Key
	Permutes []ir.Key
}

// Effect converts the declaration into an engine effect with no id.
func (s *EffectSpec) Effect() *engine.Effect {
	return &engine.Effect{Name: s.Name, Reads: s.Reads, Permutes: s.Permutes}
}

// Project is everything a parameter directory declares.
type Project struct {
	Layers  []LayerSpec
	Effects []EffectSpec
}

// CompileProject reads the top-level `layers` list and `effect` struct.
//
//	layers: [
//		{name: "base", values: {"Light.Count": 2}},
//		{name: "scene", values: {"Light.Count": 3}},
//	]
//	effect: Forward: {reads: ["Light.Count"], permutes: ["Light.Count"]}
func CompileProject(v cue.Value) (*Project, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Project{}

	if layersVal := v.LookupPath(cue.ParsePath("layers")); layersVal.Exists() {
		layers, err := CompileLayers(layersVal)
		if err != nil {
			return nil, err
		}
		p.Layers = layers
	}

	if effectsVal := v.LookupPath(cue.ParsePath("effect")); effectsVal.Exists() {
		iter, err := effectsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := CompileEffect(iter.Value())
			if err != nil {
				return nil, err
			}
			p.Effects = append(p.Effects, *spec)
		}
	}

	return p, nil
}

// CompileLayers parses a CUE list of {name, values} structs.
// Layer names must be unique.
func CompileLayers(v cue.Value) ([]LayerSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "layers", Message: "layers must be a list", Pos: v.Pos()}
	}

	var layers []LayerSpec
	seen := make(map[string]bool)
	for i := 0; iter.Next(); i++ {
		layer, err := compileLayer(i, iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[layer.Name] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("layers[%d].name", i),
				Message: fmt.Sprintf("duplicate layer name %q", layer.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[layer.Name] = true
		layers = append(layers, layer)
	}

	return layers, nil
}

func compileLayer(i int, v cue.Value) (LayerSpec, error) {
	field := fmt.Sprintf("layers[%d]", i)

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return LayerSpec{}, &CompileError{Field: field + ".name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return LayerSpec{}, formatCUEError(err)
	}
	if name == "" {
		return LayerSpec{}, &CompileError{Field: field + ".name", Message: "name must not be empty", Pos: nameVal.Pos()}
	}

	layer := LayerSpec{Name: name}

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !valuesVal.Exists() {
		return layer, nil
	}

	iter, err := valuesVal.Fields()
	if err != nil {
		return LayerSpec{}, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		key, err := ir.ParseKey(label)
		if err != nil {
			return LayerSpec{}, &CompileError{Field: field + ".values", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		val, err := compileValue(label, iter.Value())
		if err != nil {
			return LayerSpec{}, err
		}
		layer.Params = append(layer.Params, Param{Key: key, Value: val})
	}

	return layer, nil
}

// CompileEffect parses an effect struct. The effect name is the last path
// selector, e.g. `Forward` for `effect: Forward: {...}`.
//
// reads is required and permutes, if present, must name a subset of reads.
func CompileEffect(v cue.Value) (*EffectSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &EffectSpec{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	readsVal := v.LookupPath(cue.ParsePath("reads"))
	if !readsVal.Exists() {
		return nil, &CompileError{Field: "reads", Message: "reads is required", Pos: v.Pos()}
	}
	reads, err := compileKeyList("reads", readsVal)
	if err != nil {
		return nil, err
	}
	spec.Reads = reads

	if permVal := v.LookupPath(cue.ParsePath("permutes")); permVal.Exists() {
		permutes, err := compileKeyList("permutes", permVal)
		if err != nil {
			return nil, err
		}
		readSet := make(map[ir.Key]bool, len(reads))
		for _, k := range reads {
			readSet[k] = true
		}
		for _, k := range permutes {
			if !readSet[k] {
				return nil, &CompileError{
					Field:   "permutes",
					Message: fmt.Sprintf("%q is not listed in reads", k.Name),
					Pos:     permVal.Pos(),
				}
			}
		}
		spec.Permutes = permutes
	}

	return spec, nil
}

func compileKeyList(field string, v cue.Value) ([]ir.Key, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of parameter names", Pos: v.Pos()}
	}

	var keys []ir.Key
	seen := make(map[ir.Key]bool)
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "parameter names must be strings", Pos: iter.Value().Pos()}
		}
		key, err := ir.ParseKey(name)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
