// Package harness runs change-detection scenarios described in YAML.
//
// A scenario seeds the base layer of a fresh store, then executes steps that
// mutate the store (set, unset, push, pop) or drive the detector on named
// binding definitions (bind, compute_levels, update_counters, resync,
// check). Every step appends one line to a textual trace:
//
//	scenario base_overwrite policy=verify
//	base A=1 B=2
//	001 bind u keys=[A B]
//	002 set B = 3 @base counter=1 level=0
//	003 check u changed at B
//
// Checks carry an expectation; a mismatch marks the result failed and is
// flagged in the trace with FAIL. RunWithGolden compares the trace with
// testdata/golden/<name>.golden through goldie, so any change to counter or
// level bookkeeping shows up as a golden diff.
package harness
