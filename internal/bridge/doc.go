// Package bridge calls native image operations by name with dynamic
// arguments.
//
// The bridge knows nothing about individual operations. For each call it:
//
//  1. Looks the operation up by name in the Registry
//  2. Walks the declared parameters, binding the instance and positional
//     arguments to required inputs and the options map to optional ones
//  3. Coerces each dynamic value to the declared native type (ToNative),
//     turning constants into images where an image is expected
//  4. Builds through Registry.BuildOrFetch, the operation cache
//  5. Reads the declared outputs back into dynamic values (FromNative)
//
// Every failure is a *CallError with a code; HasCode and CodeOf classify
// them. The operation is released on every path.
//
// Ownership: handles in a Result hold one native reference each and must
// be closed. Handles passed in as arguments are borrowed for the length of
// the call.
package bridge
