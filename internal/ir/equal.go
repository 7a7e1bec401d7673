package ir

import "math"

// Equal reports whether two values are structurally equal.
//
// Rules:
//   - nil and Null{} are equal to each other
//   - Int and Float never compare equal, even for the same number
//   - NaN equals NaN, so a NaN parameter does not read as changed every frame
//   - List equality is element-wise and ordered; Object equality ignores order
//
// Equal does not allocate.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		return math.IsNaN(float64(av)) && math.IsNaN(float64(bv))
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, present := bv[k]
			if !present || !Equal(ae, be) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
