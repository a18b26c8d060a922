package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
	"github.com/roach88/pixbridge/internal/testutil"
)

func TestIs2D(t *testing.T) {
	row := func(vals ...int64) ir.IRArray {
		out := ir.IRArray{}
		for _, v := range vals {
			out = append(out, ir.IRInt(v))
		}
		return out
	}
	tests := []struct {
		name string
		in   ir.IRValue
		want bool
	}{
		{"scalar", ir.IRInt(1), false},
		{"1-D", row(1, 2, 3), false},
		{"rectangular", ir.IRArray{row(1, 2), row(3, 4), row(5, 6)}, true},
		{"single row", ir.IRArray{row(1, 2)}, true},
		{"jagged", ir.IRArray{row(1, 2), row(3)}, false},
		{"mixed", ir.IRArray{row(1), ir.IRInt(2)}, false},
		{"empty", ir.IRArray{}, false},
		{"empty rows", ir.IRArray{row(), row()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is2D(tt.in))
		})
	}
}

func TestMaterialize_ScalarBroadcast(t *testing.T) {
	formats := []native.BandFormat{native.FormatUchar, native.FormatShort, native.FormatFloat, native.FormatDouble}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			b, _ := newTestBridge(t)
			ref := testutil.Image(t, 5, 3, 1, f)
			ref.Xres, ref.Yres = 2.5, 4
			ref.Xoffset, ref.Yoffset = 7, -1
			ref.Interpretation = native.InterpretationSRGB

			im, err := b.Materialize(context.Background(), ref, ir.IRInt(12))
			require.NoError(t, err)
			defer im.Unref()

			assert.Equal(t, 5, im.Width)
			assert.Equal(t, 3, im.Height)
			assert.Equal(t, 1, im.Bands)
			assert.Equal(t, f, im.Format)
			assert.Equal(t, native.InterpretationSRGB, im.Interpretation)
			assert.Equal(t, 2.5, im.Xres)
			assert.Equal(t, 4.0, im.Yres)
			assert.Equal(t, 7, im.Xoffset)
			assert.Equal(t, -1, im.Yoffset)
			for _, v := range im.Samples() {
				assert.Equal(t, 12.0, v)
			}
		})
	}
}

func TestMaterialize_VectorBroadcastIsOneBandPerElement(t *testing.T) {
	b, _ := newTestBridge(t)
	ref := testutil.Image(t, 2, 2, 3, native.FormatUchar)

	im, err := b.Materialize(context.Background(), ref, ir.IRArray{ir.IRInt(1), ir.IRFloat(2), ir.IRString("300")})
	require.NoError(t, err)
	defer im.Unref()

	assert.Equal(t, 3, im.Bands)
	px, err := im.Pixel(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 255}, px, "cast clips to the reference format")
}

func TestMaterialize_Matrix(t *testing.T) {
	b, _ := newTestBridge(t)
	rows := ir.IRArray{
		ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)},
		ir.IRArray{ir.IRFloat(4.5), ir.IRInt(5), ir.IRInt(6)},
	}

	im, err := b.Materialize(context.Background(), nil, rows)
	require.NoError(t, err)
	defer im.Unref()

	assert.Equal(t, 3, im.Width, "width is the row length")
	assert.Equal(t, 2, im.Height, "height is the row count")
	assert.Equal(t, native.FormatDouble, im.Format)
	assert.Equal(t, native.InterpretationMatrix, im.Interpretation)
	assert.Equal(t, 1.0, im.Scale)
	assert.Equal(t, 0.0, im.Offset)
	assert.Equal(t, []float64{1, 2, 3, 4.5, 5, 6}, im.Samples())
}

func TestMaterialize_JaggedFallsBackToBroadcast(t *testing.T) {
	b, _ := newTestBridge(t)
	ref := testutil.Image(t, 4, 4, 1, native.FormatUchar)
	jagged := ir.IRArray{ir.IRArray{ir.IRInt(1), ir.IRInt(2)}, ir.IRArray{ir.IRInt(3)}}

	_, err := b.Materialize(context.Background(), ref, jagged)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeTypeMismatch), "rows are not constants, never a truncated matrix")
}

func TestMaterialize_Errors(t *testing.T) {
	b, _ := newTestBridge(t)
	ref := testutil.Image(t, 1, 1, 1, native.FormatUchar)

	_, err := b.Materialize(context.Background(), nil, ir.IRInt(128))
	assert.True(t, HasCode(err, ErrCodeMissingReference))

	_, err = b.Materialize(context.Background(), ref, ir.IRString("bright"))
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))

	_, err = b.Materialize(context.Background(), ref, ir.IRBool(true))
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))

	_, err = b.Materialize(context.Background(), ref, ir.IRArray{})
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))

	_, err = b.Materialize(context.Background(), nil, ir.IRArray{ir.IRArray{ir.IRString("x")}})
	assert.True(t, HasCode(err, ErrCodeTypeMismatch))
}

func TestMaterialize_GoesThroughTheCache(t *testing.T) {
	b, reg := newTestBridge(t)
	ref := testutil.Image(t, 3, 3, 1, native.FormatUchar)

	first, err := b.Materialize(context.Background(), ref, ir.IRInt(9))
	require.NoError(t, err)
	defer first.Unref()
	cached := reg.CacheSize()
	assert.Equal(t, 5, cached, "black, linear, cast, embed, copy")

	second, err := b.Materialize(context.Background(), ref, ir.IRInt(9))
	require.NoError(t, err)
	defer second.Unref()
	assert.Same(t, first, second, "equivalent chains are served from the cache")
	assert.Equal(t, cached, reg.CacheSize())
}
