// Package detect implements change detection for bound units.
//
// Each frame, for each use-site, the engine asks a Detector whether any
// parameter a unit reads has diverged from the value the unit was compiled
// from. The common, unchanged case costs one level and one counter comparison
// per key and performs no allocation:
//
//   - counters are version stamps; equal counters imply equal values
//   - a changed dirty level means an override layer was added or removed, so
//     the counter is no proof and values are compared
//   - only a real value difference reports a change; an override that
//     restates the same value does not
//
// VerifyBase, the default Policy, checks every key. TrustBase skips keys
// defined only by the base layer and is safe only when the base is never
// written after binding.
package detect
