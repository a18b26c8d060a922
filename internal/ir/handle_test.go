package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/native"
)

func newImage(t *testing.T) *native.Image {
	t.Helper()
	im, err := native.NewImage(2, 1, 1, native.FormatUchar)
	require.NoError(t, err)
	return im
}

func TestHandle_TakesAndReleasesOneReference(t *testing.T) {
	im := newImage(t)
	defer im.Unref()

	h := NewHandle(im)
	assert.Equal(t, int32(2), im.RefCount())
	assert.Same(t, im, h.Image())
	assert.Equal(t, "VipsImage", h.TypeName())

	require.NoError(t, h.Close())
	assert.Equal(t, int32(1), im.RefCount())
	assert.True(t, h.Closed())
	assert.Nil(t, h.Image())

	require.NoError(t, h.Close())
	assert.Equal(t, int32(1), im.RefCount(), "second close is a no-op")
	assert.Equal(t, "VipsImage", h.TypeName(), "type survives close")
}

func TestHandle_RepeatedWrapsCountSeparately(t *testing.T) {
	im := newImage(t)
	defer im.Unref()

	a := NewHandle(im)
	b := NewHandle(im)
	assert.Equal(t, int32(3), im.RefCount())
	assert.True(t, a.SameObject(b))
	assert.NotSame(t, a, b)

	a.Close()
	assert.False(t, a.SameObject(b), "closed handle has no object")
	b.Close()
	assert.Equal(t, int32(1), im.RefCount())
}

func TestHandle_NonImageObject(t *testing.T) {
	ref := native.NewRefString("text")
	defer ref.Unref()

	h := NewHandle(ref)
	defer h.Close()
	assert.Nil(t, h.Image())
	assert.Equal(t, "VipsRefString", h.TypeName())
	assert.Equal(t, IRObject{"type": IRString("VipsRefString")}, h.Describe())
}

func TestHandle_DescribeAndJSON(t *testing.T) {
	im := newImage(t)
	defer im.Unref()
	h := NewHandle(im)

	desc := h.Describe()
	assert.Equal(t, IRInt(2), desc["width"])
	assert.Equal(t, IRInt(1), desc["height"])
	assert.Equal(t, IRString("uchar"), desc["format"])
	assert.Equal(t, IRString("b-w"), desc["interpretation"])
	assert.Len(t, string(desc["digest"].(IRString)), 16)

	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"$handle":{"bands":1`)

	h.Close()
	assert.Equal(t, IRBool(true), h.Describe()["closed"])
	assert.Contains(t, h.String(), "closed")
}

func TestImageDigest_ContentAddressed(t *testing.T) {
	a := newImage(t)
	b := newImage(t)
	defer a.Unref()
	defer b.Unref()
	assert.Equal(t, ImageDigest(a), ImageDigest(b), "equal images digest alike")

	c, err := native.NewMatrixFromArray(2, 1, []float64{0, 1})
	require.NoError(t, err)
	defer c.Unref()
	assert.NotEqual(t, ImageDigest(a), ImageDigest(c))
}
