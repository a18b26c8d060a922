package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsInt(t *testing.T) {
	tests := []struct {
		name    string
		in      IRValue
		want    int64
		wantErr bool
	}{
		{"int", IRInt(7), 7, false},
		{"float truncates", IRFloat(2.9), 2, false},
		{"negative float truncates", IRFloat(-2.9), -2, false},
		{"numeric string", IRString(" 12 "), 12, false},
		{"float string", IRString("3.5"), 3, false},
		{"bool", IRBool(true), 1, false},
		{"null", IRNull{}, 0, false},
		{"word", IRString("twelve"), 0, true},
		{"array", IRArray{IRInt(1)}, 0, true},
		{"huge", IRFloat(1e30), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AsInt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAsFloat(t *testing.T) {
	f, err := AsFloat(IRInt(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	f, err = AsFloat(IRString("1e2"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, f)

	_, err = AsFloat(IRObject{})
	assert.Error(t, err)
}

func TestAsString(t *testing.T) {
	tests := []struct {
		in   IRValue
		want string
	}{
		{IRString("x"), "x"},
		{IRInt(-4), "-4"},
		{IRFloat(0.5), "0.5"},
		{IRBool(true), "1"},
		{IRBool(false), ""},
		{IRBytes("raw"), "raw"},
		{IRNull{}, ""},
	}
	for _, tt := range tests {
		got, err := AsString(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := AsString(IRArray{})
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	truthy := []IRValue{IRBool(true), IRInt(-1), IRFloat(0.1), IRString("a"), IRArray{IRNull{}}, IRObject{"a": IRNull{}}}
	falsy := []IRValue{nil, IRNull{}, IRBool(false), IRInt(0), IRFloat(0), IRString(""), IRString("0"), IRArray{}, IRObject{}}

	for _, v := range truthy {
		assert.True(t, Truthy(v), "%#v", v)
	}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%#v", v)
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric(IRInt(1)))
	assert.True(t, IsNumeric(IRFloat(1)))
	assert.True(t, IsNumeric(IRString("2.5")))
	assert.False(t, IsNumeric(IRString("two")))
	assert.False(t, IsNumeric(IRBool(true)))
}

func TestFromAnyToAny(t *testing.T) {
	in := map[string]any{
		"n":     42,
		"f":     1.5,
		"s":     "x",
		"b":     true,
		"nil":   nil,
		"list":  []any{1, "two"},
		"bytes": map[string]any{"$bytes": "aGk="},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"n":     IRInt(42),
		"f":     IRFloat(1.5),
		"s":     IRString("x"),
		"b":     IRBool(true),
		"nil":   IRNull{},
		"list":  IRArray{IRInt(1), IRString("two")},
		"bytes": IRBytes("hi"),
	}, v)

	out := ToAny(v).(map[string]any)
	assert.Equal(t, int64(42), out["n"])
	assert.Equal(t, []byte("hi"), out["bytes"])
	assert.Nil(t, out["nil"])

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}
