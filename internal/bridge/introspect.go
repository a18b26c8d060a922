package bridge

import (
	"strings"

	"github.com/roach88/pixbridge/internal/native"
)

// Introspection summarizes an operation's declared arguments, grouped the
// way the call path consumes them. Names use underscores.
type Introspection struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamInfo `json:"params"`

	RequiredInput  []string `json:"required_input"`
	OptionalInput  []string `json:"optional_input"`
	RequiredOutput []string `json:"required_output"`
	OptionalOutput []string `json:"optional_output"`

	// MemberThis is the first required image input, the slot an instance fills.
	MemberThis string `json:"member_this,omitempty"`

	// MethodArgs are the required inputs other than MemberThis.
	MethodArgs []string `json:"method_args"`
}

// ParamInfo describes one argument.
type ParamInfo struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Flags []string `json:"flags"`
	Blurb string   `json:"blurb,omitempty"`
	Nicks []string `json:"nicks,omitempty"`
}

// IsOptionalOutput reports whether name is an optional output.
func (in *Introspection) IsOptionalOutput(name string) bool {
	name = underscore(name)
	for _, n := range in.OptionalOutput {
		if n == name {
			return true
		}
	}
	return false
}

func introspect(op *native.Operation) *Introspection {
	in := &Introspection{
		Name:           op.Name(),
		Description:    op.Description(),
		RequiredInput:  []string{},
		OptionalInput:  []string{},
		RequiredOutput: []string{},
		OptionalOutput: []string{},
		MethodArgs:     []string{},
	}
	for _, p := range op.Params() {
		name := underscore(p.Name)
		info := ParamInfo{
			Name:  name,
			Type:  p.Type.Name(),
			Flags: p.Flags.Names(),
			Blurb: p.Blurb,
		}
		switch {
		case p.Type.Kind == native.KindEnum && p.Type.Enum != nil:
			info.Nicks = p.Type.Enum.Nicks()
		case p.Type.Kind == native.KindFlags && p.Type.Flags != nil:
			info.Nicks = p.Type.Flags.Nicks()
		}
		in.Params = append(in.Params, info)

		if p.Deprecated() || !p.Construct() {
			continue
		}
		switch {
		case p.Required() && p.Input():
			in.RequiredInput = append(in.RequiredInput, name)
			if p.Type.Kind == native.KindImage && in.MemberThis == "" {
				in.MemberThis = name
			} else {
				in.MethodArgs = append(in.MethodArgs, name)
			}
			if p.Modify() {
				in.RequiredOutput = append(in.RequiredOutput, name)
			}
		case !p.Required() && p.Input():
			in.OptionalInput = append(in.OptionalInput, name)
		case p.Required() && p.Output():
			in.RequiredOutput = append(in.RequiredOutput, name)
		case !p.Required() && p.Output():
			in.OptionalOutput = append(in.OptionalOutput, name)
		}
	}
	return in
}

func underscore(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
