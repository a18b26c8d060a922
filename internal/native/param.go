package native

import "strings"

// ArgFlags describe one operation argument.
type ArgFlags uint

const (
	ArgRequired ArgFlags = 1 << iota
	ArgConstruct
	ArgSetOnce
	ArgInput
	ArgOutput
	ArgDeprecated
	ArgModify
)

var argFlagNames = []struct {
	flag ArgFlags
	name string
}{
	{ArgRequired, "REQUIRED"},
	{ArgConstruct, "CONSTRUCT"},
	{ArgSetOnce, "SET_ONCE"},
	{ArgInput, "INPUT"},
	{ArgOutput, "OUTPUT"},
	{ArgDeprecated, "DEPRECATED"},
	{ArgModify, "MODIFY"},
}

// Has reports whether all bits of f are set.
func (a ArgFlags) Has(f ArgFlags) bool { return a&f == f }

// Names lists the set flags, in declaration order.
func (a ArgFlags) Names() []string {
	var out []string
	for _, fn := range argFlagNames {
		if a.Has(fn.flag) {
			out = append(out, fn.name)
		}
	}
	return out
}

func (a ArgFlags) String() string { return strings.Join(a.Names(), "|") }

// ParamSpec is the read-only description of one operation argument.
type ParamSpec struct {
	Name     string
	Blurb    string
	Flags    ArgFlags
	Type     Type
	Priority int
}

// Input reports whether the argument is an input.
func (p ParamSpec) Input() bool { return p.Flags.Has(ArgInput) }

// Output reports whether the argument is an output.
func (p ParamSpec) Output() bool { return p.Flags.Has(ArgOutput) }

// Required reports whether the argument must be set.
func (p ParamSpec) Required() bool { return p.Flags.Has(ArgRequired) }

// Construct reports whether the argument is set at construct time.
func (p ParamSpec) Construct() bool { return p.Flags.Has(ArgConstruct) }

// Deprecated reports whether the argument is deprecated.
func (p ParamSpec) Deprecated() bool { return p.Flags.Has(ArgDeprecated) }

// Modify reports whether the operation draws into the argument.
func (p ParamSpec) Modify() bool { return p.Flags.Has(ArgModify) }

// Shorthand flag sets used by the operation tables.
const (
	requiredInput  = ArgRequired | ArgConstruct | ArgInput
	optionalInput  = ArgConstruct | ArgInput
	requiredOutput = ArgRequired | ArgConstruct | ArgOutput
	optionalOutput = ArgConstruct | ArgOutput
)

// canonicalName maps '-' separated argument names onto the '_' form used in
// the declarations.
func canonicalName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
