package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospect(t *testing.T) {
	b, _ := newTestBridge(t)

	tests := []struct {
		op             string
		memberThis     string
		methodArgs     []string
		optionalInput  []string
		requiredOutput []string
		optionalOutput []string
	}{
		{"invert", "in", []string{}, []string{}, []string{"out"}, []string{}},
		{"black", "", []string{"width", "height"}, []string{"bands"}, []string{"out"}, []string{}},
		{"embed", "in", []string{"x", "y", "width", "height"}, []string{"extend", "background"}, []string{"out"}, []string{}},
		{"add", "left", []string{"right"}, []string{}, []string{"out"}, []string{}},
		{"min", "in", []string{}, []string{}, []string{"out"}, []string{"x", "y"}},
		{"resize", "in", []string{"scale"}, []string{"vscale", "interpolate", "interpolator"}, []string{"out"}, []string{}},
		{"draw_rect", "image", []string{"ink", "left", "top", "width", "height"}, []string{"fill"}, []string{"image"}, []string{}},
		{"bandjoin", "", []string{"in"}, []string{}, []string{"out"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			in, err := b.Introspect(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.op, in.Name)
			assert.NotEmpty(t, in.Description)
			assert.Equal(t, tt.memberThis, in.MemberThis)
			assert.Equal(t, tt.methodArgs, in.MethodArgs)
			assert.Equal(t, tt.optionalInput, in.OptionalInput)
			assert.Equal(t, tt.requiredOutput, in.RequiredOutput)
			assert.Equal(t, tt.optionalOutput, in.OptionalOutput)
		})
	}
}

func TestIntrospect_ParamsIncludeDeprecatedAndNicks(t *testing.T) {
	b, _ := newTestBridge(t)
	in, err := b.Introspect("resize")
	require.NoError(t, err)

	byName := map[string]ParamInfo{}
	for _, p := range in.Params {
		byName[p.Name] = p
	}
	assert.Contains(t, byName["kernel"].Flags, "DEPRECATED")
	assert.NotContains(t, in.OptionalInput, "kernel")
	assert.Equal(t, []string{"nearest", "bilinear"}, byName["interpolate"].Nicks)
	assert.Equal(t, "gdouble", byName["scale"].Type)
}

func TestIntrospect_Cached(t *testing.T) {
	b, _ := newTestBridge(t)
	a, err := b.Introspect("avg")
	require.NoError(t, err)
	c, err := b.Introspect("avg")
	require.NoError(t, err)
	assert.Same(t, a, c)

	_, err = b.Introspect("nothing")
	assert.True(t, HasCode(err, ErrCodeOperationNotFound))
}
