package ir

import (
	"regexp"
	"strings"
)

// StepRef is a reference from a recipe argument to an earlier step's result.
// "$blur" names the step's single output; "$stats.x" names one output.
type StepRef struct {
	Step  string
	Field string
}

var refPattern = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)(?:\.([A-Za-z_][A-Za-z0-9_]*))?$`)

// ParseRef recognizes a step reference. "$$" escapes a literal dollar.
func ParseRef(s string) (StepRef, bool) {
	m := refPattern.FindStringSubmatch(s)
	if m == nil {
		return StepRef{}, false
	}
	return StepRef{Step: m[1], Field: m[2]}, true
}

// Unescape removes the "$$" escape from a literal string.
func Unescape(s string) string {
	if strings.HasPrefix(s, "$$") {
		return s[1:]
	}
	return s
}

func (r StepRef) String() string {
	if r.Field == "" {
		return "$" + r.Step
	}
	return "$" + r.Step + "." + r.Field
}

// CollectRefs returns every step reference inside v, in traversal order.
func CollectRefs(v IRValue) []StepRef {
	var refs []StepRef
	var walk func(IRValue)
	walk = func(v IRValue) {
		switch val := v.(type) {
		case IRString:
			if ref, ok := ParseRef(string(val)); ok {
				refs = append(refs, ref)
			}
		case IRArray:
			for _, elem := range val {
				walk(elem)
			}
		case IRObject:
			for _, k := range val.SortedKeys() {
				walk(val[k])
			}
		}
	}
	walk(v)
	return refs
}
