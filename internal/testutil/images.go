package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pixbridge/internal/ir"
	"github.com/roach88/pixbridge/internal/native"
)

// Image builds an image from band-interleaved samples. The test owns one
// reference, dropped at cleanup.
func Image(t testing.TB, width, height, bands int, format native.BandFormat, samples ...float64) *native.Image {
	t.Helper()
	if len(samples) == 0 {
		samples = make([]float64, width*height*bands)
	}
	im, err := native.NewImageFromMemory(width, height, bands, format, samples)
	require.NoError(t, err)
	t.Cleanup(im.Unref)
	return im
}

// Handle wraps a fresh image in a handle that is closed at cleanup.
func Handle(t testing.TB, width, height, bands int, format native.BandFormat, samples ...float64) *ir.Handle {
	t.Helper()
	im, err := native.NewImageFromMemory(width, height, bands, format, fill(width*height*bands, samples))
	require.NoError(t, err)
	h := ir.NewHandle(im)
	im.Unref()
	t.Cleanup(func() { h.Close() })
	return h
}

// Uniform is a Handle with every sample set to v.
func Uniform(t testing.TB, width, height, bands int, format native.BandFormat, v float64) *ir.Handle {
	t.Helper()
	samples := make([]float64, width*height*bands)
	for i := range samples {
		samples[i] = v
	}
	return Handle(t, width, height, bands, format, samples...)
}

// NoLeaks fails the test if images allocated during it are still alive once
// reg's cache has been emptied. Register it before creating any fixtures so
// it runs after their cleanups.
func NoLeaks(t testing.TB, reg *native.Registry) {
	t.Helper()
	before := native.LiveImages()
	t.Cleanup(func() {
		reg.DropAll()
		assert.Equal(t, before, native.LiveImages(), "live images after test")
	})
}

func fill(n int, samples []float64) []float64 {
	if len(samples) == 0 {
		return make([]float64, n)
	}
	return samples
}
