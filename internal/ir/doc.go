// Package ir provides the structured value types that travel inside actions.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed: payloads are built from Null, String, Int, Float,
//     Bool, Array and Object only
//   - A nil Value means "absent"; Null means "present and null"
//   - Object iteration for output always goes through SortedKeys (RFC 8785)
//   - Canonical JSON is the only serialization used for digests and goldens
package ir
