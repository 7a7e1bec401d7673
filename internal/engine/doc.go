// Package engine manages the use-sites of a live parameter store.
//
// An Effect names the parameters a computation reads and the subset whose
// values select a compiled permutation. Once per frame the engine runs the
// change detector over every bound effect and decides what to do:
//
//	no binding yet            -> compile, bind            (bound)
//	nothing changed           -> keep                     (stable)
//	changed, same permutation -> refresh counters, levels (resynced)
//	changed, new permutation  -> compile, bind            (rebound)
//
// Frames are single-threaded and evaluate effects in registration order, so
// the journal written from one run is reproducible from the same inputs.
// A failed compile is logged and reported for that effect only; the rest of
// the frame still runs and the failed effect is retried next frame.
package engine
