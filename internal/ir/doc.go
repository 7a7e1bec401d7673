// Package ir provides the value model shared by every fxparams package.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Keys are built by NewKey, which NFC-normalizes the name and precomputes
//     its hash; two keys with the same normalized name are equal
//   - Value is sealed: only Null, Bool, Int, Float, String, List and Object
//     implement it
//   - Int and Float are distinct kinds; Int(1) never equals Float(1)
//   - Canonical JSON (MarshalCanonical) is the only serialization used for
//     hashing and for journal columns
package ir
