// Package native is the in-process operation library that the bridge calls into.
//
// It plays the role a C image library plays for a scripting-language binding:
//   - Refcounted objects (images) whose lifetime is shared with callers
//   - A small type system: scalar kinds, enums and flags with symbolic nicks,
//     refcounted strings, blobs with free callbacks, typed arrays, images
//   - Operations that describe their parameters (name, direction, required-ness,
//     construct/deprecated/modify flags, type) in a fixed declaration order
//   - A registry that looks operations up by name and builds them through a
//     cache keyed by their bound input arguments
//   - A process-wide style error buffer (per registry)
//
// The bridge only depends on the introspection and build contract. Operation
// bodies live in the ops_*.go files and are never called directly by callers.
//
// # Ownership
//
// Value follows GValue rules: setting a Value onto an Operation copies it
// (taking new references), Get returns a copy the caller must Unset, and
// Unset drops exactly the references the Value holds. Images start with one
// reference owned by whoever created them.
//
// Pixels are stored as float64 samples, band-interleaved. The image Format
// decides clipping and rounding whenever an operation writes samples.
package native
