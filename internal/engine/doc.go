// Package engine runs recipes: named sequences of bridged calls whose
// arguments may refer to the results of earlier steps.
//
// Execution model:
//
// Steps run strictly in declaration order on the calling goroutine. Each
// operation step is one top-level bridge call, so the call journal lists a
// recipe's calls in step order and replaying the recipe against a fresh
// clock reproduces the same seq numbers.
//
// References:
//
//	"$step"        the step's single output, or all of its outputs as a map
//	"$step.field"  one named output
//	"$input"       the instance a nested recipe was called with
//	"$$text"       the literal string "$text"
//
// A step that names a recipe instead of an operation runs that recipe with
// the step's instance as "$input" and yields the outputs of its last step.
// Calls made by a nested recipe are journaled with the source
// "outer/inner".
//
// Termination:
// Recursion is rejected when a recipe is entered while already on the
// stack, and a quota bounds the total number of calls one run may make.
//
// Ownership:
// An Execution owns every handle produced by its steps until Close.
package engine
