package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
	"github.com/roach88/pixbridge/internal/testutil"
)

func TestCall_Invert(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 2, 1, 1, native.FormatUchar, 0, 200)

	res := call(t, b, "invert", in)

	assert.Equal(t, []string{"out"}, res.Names())
	out := outImage(t, res)
	assert.Equal(t, []float64{255, 55}, out.Samples())
	assert.Equal(t, []float64{0, 200}, in.Image().Samples(), "input untouched")
}

func TestCall_InstanceOrPositional(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Uniform(t, 2, 2, 1, native.FormatUchar, 10)

	method := call(t, b, "linear", in, ir.IRInt(2), ir.IRInt(1))
	static := call(t, b, "linear", nil, in, ir.IRInt(2), ir.IRInt(1))

	assert.Same(t, outImage(t, method), outImage(t, static), "same bound arguments, same cached result")
	assert.Equal(t, 21.0, outImage(t, method).At(0, 0, 0))
}

func TestCall_UnknownOperation(t *testing.T) {
	b, reg := newTestBridge(t)
	liveBefore := native.LiveImages()

	_, err := b.Call(context.Background(), "sharpen_everything", nil, nil, nil)
	require.Error(t, err)

	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrCodeOperationNotFound, ce.Code)
	assert.Contains(t, ce.Native, `class "sharpen_everything" not found`)
	assert.Empty(t, reg.LastError(), "error buffer is cleared")
	assert.Equal(t, liveBefore, native.LiveImages())
	assert.Zero(t, reg.CacheSize())
}

func TestCall_Arity(t *testing.T) {
	tests := []struct {
		name     string
		args     func(h *ir.Handle) []ir.IRValue
		wantCode ErrorCode
	}{
		{
			name: "exact count",
			args: func(h *ir.Handle) []ir.IRValue {
				return []ir.IRValue{h, ir.IRInt(1), ir.IRInt(2), ir.IRInt(4), ir.IRInt(4)}
			},
		},
		{
			name: "trailing map",
			args: func(h *ir.Handle) []ir.IRValue {
				return []ir.IRValue{h, ir.IRInt(1), ir.IRInt(2), ir.IRInt(4), ir.IRInt(4), ir.IRObject{"extend": ir.IRString("copy")}}
			},
		},
		{
			name: "trailing non-map",
			args: func(h *ir.Handle) []ir.IRValue {
				return []ir.IRValue{h, ir.IRInt(1), ir.IRInt(2), ir.IRInt(4), ir.IRInt(4), ir.IRInt(9)}
			},
			wantCode: ErrCodeArityMismatch,
		},
		{
			name: "two extra",
			args: func(h *ir.Handle) []ir.IRValue {
				return []ir.IRValue{h, ir.IRInt(1), ir.IRInt(2), ir.IRInt(4), ir.IRInt(4), ir.IRObject{}, ir.IRObject{}}
			},
			wantCode: ErrCodeArityMismatch,
		},
		{
			name:     "too few",
			args:     func(h *ir.Handle) []ir.IRValue { return []ir.IRValue{h, ir.IRInt(1)} },
			wantCode: ErrCodeArityMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBridge(t)
			h := testutil.Handle(t, 2, 2, 1, native.FormatUchar)

			res, err := b.Call(context.Background(), "embed", nil, tt.args(h), nil)
			if tt.wantCode == "" {
				require.NoError(t, err)
				res.Close()
				return
			}
			require.Error(t, err)
			assert.True(t, HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestCall_ArityErrorReportsCounts(t *testing.T) {
	b, _ := newTestBridge(t)
	h := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	_, err := b.Call(context.Background(), "invert", nil, []ir.IRValue{h, ir.IRInt(3)}, nil)
	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "1", ce.Details["required"])
	assert.Equal(t, "2", ce.Details["supplied"])
}

func TestCall_ConstantNeedsReference(t *testing.T) {
	b, _ := newTestBridge(t)

	_, err := b.Call(context.Background(), "invert", nil, []ir.IRValue{ir.IRInt(128)}, nil)
	assert.True(t, HasCode(err, ErrCodeMissingReference))
}

func TestCall_ConstantMatchesTheOtherImage(t *testing.T) {
	b, _ := newTestBridge(t)
	left := testutil.Uniform(t, 3, 2, 1, native.FormatUshort, 1000)

	res := call(t, b, "add", left, ir.IRInt(5))
	out := outImage(t, res)
	assert.Equal(t, 3, out.Width)
	assert.Equal(t, 2, out.Height)
	assert.Equal(t, 1005.0, out.At(2, 1, 0))
}

func TestCall_ReferenceFoundInsideArrays(t *testing.T) {
	b, _ := newTestBridge(t)
	img := testutil.Uniform(t, 2, 2, 1, native.FormatUchar, 9)

	res := call(t, b, "bandjoin", nil, ir.IRArray{img, ir.IRInt(4)})
	out := outImage(t, res)
	assert.Equal(t, 2, out.Bands)
	px, err := out.Pixel(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 4}, px)
}

func TestCall_OptionalArguments(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 2, 1, 1, native.FormatUchar, 1, 2)

	res, err := b.Call(context.Background(), "embed", in,
		[]ir.IRValue{ir.IRInt(0), ir.IRInt(0), ir.IRInt(4), ir.IRInt(1)},
		ir.IRObject{"extend": ir.IRString("copy")})
	require.NoError(t, err)
	defer res.Close()

	out, err := res.Image("out")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 2}, out.Image().Samples())
}

func TestCall_ExplicitOptionsWinOverTrailingMap(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar, 5)

	res, err := b.Call(context.Background(), "embed", in,
		[]ir.IRValue{ir.IRInt(0), ir.IRInt(0), ir.IRInt(2), ir.IRInt(1), ir.IRObject{"extend": ir.IRString("black")}},
		ir.IRObject{"extend": ir.IRString("white")})
	require.NoError(t, err)
	defer res.Close()

	out, err := res.Image("out")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 255}, out.Image().Samples())
}

// toggleClass declares a required bool, an optional int and an int output
// that echoes n, or -1 when n was never set.
func toggleClass() *native.OperationClass {
	return &native.OperationClass{
		Name: "toggle",
		Params: []native.ParamSpec{
			{Name: "on", Type: native.TypeBool, Flags: native.ArgRequired | native.ArgConstruct | native.ArgInput},
			{Name: "n", Type: native.TypeInt, Flags: native.ArgConstruct | native.ArgInput},
			{Name: "out", Type: native.TypeInt, Flags: native.ArgRequired | native.ArgConstruct | native.ArgOutput},
		},
		Build: func(op *native.Operation) error {
			out := int32(-1)
			if v, err := op.Get("n"); err == nil {
				out = v.Int()
				v.Unset()
			}
			return op.SetOutput("out", native.IntValue(out))
		},
	}
}

func TestCall_TrailingMapOnlyWhenLeftOver(t *testing.T) {
	reg := native.NewStandardRegistry()
	testutil.NoLeaks(t, reg)
	require.NoError(t, reg.Register(toggleClass()))
	b := New(reg, WithLogger(quietLogger()))

	tests := []struct {
		name string
		args []ir.IRValue
		want ir.IRValue
	}{
		{"map fills the required slot", []ir.IRValue{ir.IRObject{"n": ir.IRInt(5)}}, ir.IRInt(-1)},
		{"map left over after binding", []ir.IRValue{ir.IRBool(true), ir.IRObject{"n": ir.IRInt(5)}}, ir.IRInt(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.Call(context.Background(), "toggle", nil, tt.args, nil)
			require.NoError(t, err)
			defer res.Close()
			assert.Equal(t, tt.want, res.Single())
		})
	}
}

func TestCall_TrailingMapOptionStrings(t *testing.T) {
	reg := native.NewStandardRegistry()
	testutil.NoLeaks(t, reg)
	require.NoError(t, reg.Register(toggleClass()))
	b := New(reg, WithLogger(quietLogger()))

	res, err := b.Call(context.Background(), "toggle", nil,
		[]ir.IRValue{ir.IRBool(true), ir.IRObject{"string_options": ir.IRString("n=7")}}, nil)
	require.NoError(t, err)
	defer res.Close()
	assert.Equal(t, ir.IRInt(7), res.Single())
}

func TestCall_OnlyConstructInputsBindPositionally(t *testing.T) {
	reg := native.NewStandardRegistry()
	testutil.NoLeaks(t, reg)
	class := echoClass("late_echo", native.TypeInt)
	class.Params = append(class.Params, native.ParamSpec{
		Name: "late", Type: native.TypeInt, Flags: native.ArgRequired | native.ArgInput,
	})
	require.NoError(t, reg.Register(class))
	b := New(reg, WithLogger(quietLogger()))

	res := call(t, b, "late_echo", nil, ir.IRInt(3))
	assert.Equal(t, ir.IRInt(3), res.Single())

	_, err := b.Call(context.Background(), "late_echo", nil, []ir.IRValue{ir.IRInt(3), ir.IRInt(4)}, nil)
	assert.True(t, HasCode(err, ErrCodeArityMismatch))

	intro, err := b.Introspect("late_echo")
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, intro.RequiredInput)
}

func TestCall_OptionErrors(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		options ir.IRObject
		code    ErrorCode
	}{
		{"unknown key", "invert", ir.IRObject{"sigma": ir.IRFloat(1)}, ErrCodeUnknownParameter},
		{"required input as option", "linear", ir.IRObject{"a": ir.IRInt(1)}, ErrCodeNotBindable},
		{"required output as option", "invert", ir.IRObject{"out": ir.IRInt(1)}, ErrCodeNotBindable},
		{"deprecated option", "resize", ir.IRObject{"kernel": ir.IRString("lanczos3")}, ErrCodeNotBindable},
		{"bad enum nick", "resize", ir.IRObject{"interpolate": ir.IRString("bicubic")}, ErrCodeUnknownEnumNick},
		{"no coercion rule", "resize", ir.IRObject{"interpolator": ir.IRString("nohalo")}, ErrCodeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBridge(t)
			in := testutil.Handle(t, 2, 2, 1, native.FormatUchar)

			args := map[string][]ir.IRValue{
				"invert": nil,
				"linear": {ir.IRInt(1), ir.IRInt(0)},
				"resize": {ir.IRFloat(2)},
			}[tt.op]
			_, err := b.Call(context.Background(), tt.op, in, args, tt.options)
			require.Error(t, err)
			assert.True(t, HasCode(err, tt.code), "got %v", err)

			var ce *CallError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.op, ce.Operation)
			assert.NotEmpty(t, ce.Parameter)
		})
	}
}

func TestCall_InterpolateNick(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 2, 1, 1, native.FormatUchar, 0, 100)

	nearest, err := b.Call(context.Background(), "resize", in, []ir.IRValue{ir.IRFloat(2)},
		ir.IRObject{"interpolate": ir.IRString("nearest")})
	require.NoError(t, err)
	defer nearest.Close()
	bilinear, err := b.Call(context.Background(), "resize", in, []ir.IRValue{ir.IRFloat(2)},
		ir.IRObject{"interpolate": ir.IRString("bilinear")})
	require.NoError(t, err)
	defer bilinear.Close()

	n, _ := nearest.Image("out")
	l, _ := bilinear.Image("out")
	assert.Equal(t, 4, n.Image().Width)
	assert.NotEqual(t, n.Image().Samples(), l.Image().Samples())
	for _, v := range n.Image().Samples() {
		assert.Contains(t, []float64{0, 100}, v, "nearest never blends")
	}
}

func TestCall_OptionalOutputs(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 3, 2, 1, native.FormatUchar, 9, 8, 7, 6, 1, 5)

	plain := call(t, b, "min", in)
	assert.Equal(t, []string{"out"}, plain.Names())
	assert.Equal(t, ir.IRFloat(1), plain.Single())

	res, err := b.Call(context.Background(), "min", in, nil, ir.IRObject{"x": ir.IRBool(true), "y": ir.IRNull{}})
	require.NoError(t, err)
	defer res.Close()
	assert.Equal(t, []string{"out", "x", "y"}, res.Names())
	x, _ := res.Get("x")
	y, _ := res.Get("y")
	assert.Equal(t, ir.IRInt(1), x)
	assert.Equal(t, ir.IRInt(1), y)
	assert.Equal(t, ir.IRObject{"out": ir.IRFloat(1), "x": ir.IRInt(1), "y": ir.IRInt(1)}, res.Single())
}

func TestCall_OptionStringsApplyFirst(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar, 200)

	res, err := b.Call(context.Background(), "embed", in,
		[]ir.IRValue{ir.IRInt(0), ir.IRInt(0), ir.IRInt(2), ir.IRInt(1)},
		ir.IRObject{"string_options": ir.IRString("[extend=white]")})
	require.NoError(t, err)
	defer res.Close()
	out, _ := res.Image("out")
	assert.Equal(t, []float64{200, 255}, out.Image().Samples())

	viaOpts, err := b.CallWith(context.Background(), "linear", in,
		[]ir.IRValue{ir.IRInt(1), ir.IRInt(0)},
		CallOptions{OptionString: "uchar"})
	require.NoError(t, err)
	defer viaOpts.Close()
	lin, _ := viaOpts.Image("out")
	assert.Equal(t, native.FormatUchar, lin.Image().Format)
}

func TestCall_OptionStringFillsRequiredSlot(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 2, 2, 1, native.FormatUchar)

	res, err := b.CallWith(context.Background(), "cast", in, nil, CallOptions{OptionString: "format=float"})
	require.NoError(t, err)
	defer res.Close()
	out, _ := res.Image("out")
	assert.Equal(t, native.FormatFloat, out.Image().Format)

	_, err = b.CallWith(context.Background(), "cast", in, nil, CallOptions{OptionString: "format=rainbow"})
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}

func TestCall_BuildFailureCarriesNativeText(t *testing.T) {
	b, reg := newTestBridge(t)
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	_, err := b.Call(context.Background(), "getstring", in, []ir.IRValue{ir.IRString("exif-copyright")}, nil)
	require.Error(t, err)

	var ce *CallError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrCodeBuildFailed, ce.Code)
	assert.Contains(t, ce.Native, `no metadata item "exif-copyright"`)
	assert.Empty(t, reg.LastError())
	assert.Zero(t, reg.CacheSize(), "failed builds are not cached")
}

func TestCall_MetadataRoundTrip(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	tagged := call(t, b, "setstring", in, ir.IRString("comment"), ir.IRString("hello"))
	out, err := tagged.Image("out")
	require.NoError(t, err)

	got := call(t, b, "getstring", out, ir.IRString("comment"))
	assert.Equal(t, ir.IRString("hello"), got.Single())
}

func TestCall_ModifyCopiesTheInput(t *testing.T) {
	b, _ := newTestBridge(t)
	canvas := testutil.Uniform(t, 3, 3, 1, native.FormatUchar, 0)

	res := call(t, b, "draw_rect", canvas,
		ir.IRArray{ir.IRInt(255)}, ir.IRInt(0), ir.IRInt(0), ir.IRInt(3), ir.IRInt(3))

	assert.Equal(t, []string{"image"}, res.Names(), "modified inputs come back as outputs")
	drawn, err := res.Image("image")
	require.NoError(t, err)
	assert.False(t, drawn.SameObject(canvas))
	assert.Equal(t, 255.0, drawn.Image().At(0, 0, 0))
	assert.Equal(t, 0.0, drawn.Image().At(1, 1, 0), "outline only")
	for _, v := range canvas.Image().Samples() {
		assert.Equal(t, 0.0, v, "caller's image untouched")
	}
}

func TestCall_BlobsAndFlags(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 2, 1, 1, native.FormatUchar, 7, 9)

	saved, err := b.Call(context.Background(), "rawsave_buffer", in, nil,
		ir.IRObject{"keep": ir.IRString("none"), "length": ir.IRBool(true)})
	require.NoError(t, err)
	defer saved.Close()
	buf, _ := saved.Get("buffer")
	length, _ := saved.Get("length")
	assert.Equal(t, ir.IRBytes{7, 9}, buf)
	assert.Equal(t, ir.IRInt(2), length)

	loaded := call(t, b, "rawload_buffer", nil, buf, ir.IRInt(2), ir.IRInt(1), ir.IRInt(1))
	assert.Equal(t, []float64{7, 9}, outImage(t, loaded).Samples())
}

func TestCall_RepeatedCallsHitTheCache(t *testing.T) {
	b, reg := newTestBridge(t)
	in := testutil.Handle(t, 2, 2, 1, native.FormatUchar)

	first := call(t, b, "invert", in)
	size := reg.CacheSize()
	second := call(t, b, "invert", in)

	assert.Equal(t, size, reg.CacheSize())
	assert.Same(t, outImage(t, first), outImage(t, second))
}

func TestCall_CancelledContext(t *testing.T) {
	b, reg := newTestBridge(t)
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Call(ctx, "invert", in, nil, nil)
	assert.True(t, HasCode(err, ErrCodeBuildFailed))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, reg.CacheSize())
}

func TestCall_UnreadableOutputIsEvicted(t *testing.T) {
	reg := native.NewStandardRegistry()
	testutil.NoLeaks(t, reg)
	require.NoError(t, reg.Register(&native.OperationClass{
		Name: "forgetful",
		Params: []native.ParamSpec{
			{Name: "in", Type: native.TypeImage, Flags: native.ArgRequired | native.ArgConstruct | native.ArgInput},
			{Name: "out", Type: native.TypeImage, Flags: native.ArgRequired | native.ArgConstruct | native.ArgOutput},
		},
		Build: func(*native.Operation) error { return nil },
	}))
	b := New(reg, WithLogger(quietLogger()))
	in := testutil.Handle(t, 1, 1, 1, native.FormatUchar)

	_, err := b.Call(context.Background(), "forgetful", in, nil, nil)
	assert.True(t, HasCode(err, ErrCodeOutputReadFailed))
	assert.Zero(t, reg.CacheSize(), "the operation is dropped from the cache")
}

func TestCall_EchoRoundTrip(t *testing.T) {
	reg := native.NewStandardRegistry()
	testutil.NoLeaks(t, reg)
	require.NoError(t, reg.Register(echoClass("echo_keep", native.TypeKeep)))
	require.NoError(t, reg.Register(echoClass("echo_ints", native.TypeArrayInt)))
	require.NoError(t, reg.Register(echoClass("echo_images", native.TypeArrayImage)))
	b := New(reg, WithLogger(quietLogger()))

	keep := call(t, b, "echo_keep", nil, ir.IRString("exif|icc"))
	assert.Equal(t, ir.IRInt(native.KeepExif|native.KeepICC), keep.Single())

	ints := call(t, b, "echo_ints", nil, ir.IRArray{ir.IRInt(3), ir.IRFloat(4.7)})
	assert.Equal(t, ir.IRArray{ir.IRInt(3), ir.IRInt(4)}, ints.Single())

	h := testutil.Handle(t, 1, 1, 1, native.FormatUchar)
	images := call(t, b, "echo_images", nil, ir.IRArray{h, h})
	arr := images.Single().(ir.IRArray)
	require.Len(t, arr, 2)
	assert.True(t, arr[0].(*ir.Handle).SameObject(h))
	assert.True(t, arr[1].(*ir.Handle).SameObject(h))
}

func TestCall_NoLeaksOnAnyPath(t *testing.T) {
	b, _ := newTestBridge(t)
	in := testutil.Handle(t, 2, 2, 1, native.FormatUchar)

	calls := []struct {
		op      string
		args    []ir.IRValue
		options ir.IRObject
	}{
		{"add", []ir.IRValue{ir.IRInt(3)}, nil},
		{"add", []ir.IRValue{ir.IRInt(3)}, ir.IRObject{"bogus": ir.IRInt(1)}},
		{"add", []ir.IRValue{ir.IRString("nope")}, nil},
		{"embed", []ir.IRValue{ir.IRInt(0), ir.IRInt(0), ir.IRInt(-1), ir.IRInt(2)}, nil},
		{"getpoint", []ir.IRValue{ir.IRInt(5), ir.IRInt(5)}, nil},
	}
	for _, c := range calls {
		res, err := b.Call(context.Background(), c.op, in, c.args, c.options)
		if err == nil {
			res.Close()
		}
	}
	// NoLeaks checks the live image count at cleanup.
}
