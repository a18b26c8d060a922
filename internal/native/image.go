package native

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"sync/atomic"
)

var nextImageID atomic.Uint64

// liveImages counts images that have not been disposed. Tests use it to
// check that every reference taken by a call is given back.
var liveImages atomic.Int64

// LiveImages returns the number of images still holding references.
func LiveImages() int64 { return liveImages.Load() }

// Image is a refcounted, in-memory image.
//
// Images are immutable once an operation has produced them, with one
// exception: operations with MODIFY arguments draw into a private copy made
// by the caller (see CopyMemory).
type Image struct {
	refcount

	id             uint64
	Width          int
	Height         int
	Bands          int
	Format         BandFormat
	Interpretation Interpretation
	Xres           float64
	Yres           float64
	Xoffset        int
	Yoffset        int

	// Scale and Offset are only meaningful for matrix images.
	Scale  float64
	Offset float64

	pixels []float64
	meta   map[string]string
}

// NewImage allocates a black image holding one reference.
func NewImage(width, height, bands int, format BandFormat) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("image size %dx%d is not positive", width, height)
	}
	if bands < 1 {
		return nil, fmt.Errorf("image must have at least one band, got %d", bands)
	}
	if !BandFormatEnum.Valid(int(format)) {
		return nil, fmt.Errorf("bad band format %d", int(format))
	}

	interp := InterpretationMultiband
	if bands == 1 {
		interp = InterpretationBW
	}

	im := &Image{
		id:             nextImageID.Add(1),
		Width:          width,
		Height:         height,
		Bands:          bands,
		Format:         format,
		Interpretation: interp,
		Xres:           1,
		Yres:           1,
		Scale:          1,
		pixels:         make([]float64, width*height*bands),
	}
	im.init(func() {
		im.pixels = nil
		liveImages.Add(-1)
	})
	liveImages.Add(1)
	return im, nil
}

// NewImageFromMemory builds an image from band-interleaved samples, clipped
// to format.
func NewImageFromMemory(width, height, bands int, format BandFormat, samples []float64) (*Image, error) {
	if len(samples) != width*height*bands {
		return nil, fmt.Errorf("image needs %d samples, got %d", width*height*bands, len(samples))
	}
	im, err := NewImage(width, height, bands, format)
	if err != nil {
		return nil, err
	}
	for i, v := range samples {
		im.pixels[i] = Clip(format, v)
	}
	return im, nil
}

// NewMatrixFromArray builds a one-band double matrix image from row-major
// cells.
func NewMatrixFromArray(width, height int, cells []float64) (*Image, error) {
	if len(cells) != width*height {
		return nil, fmt.Errorf("matrix needs %d cells, got %d", width*height, len(cells))
	}
	im, err := NewImage(width, height, 1, FormatDouble)
	if err != nil {
		return nil, err
	}
	copy(im.pixels, cells)
	im.Interpretation = InterpretationMatrix
	im.Scale = 1
	im.Offset = 0
	return im, nil
}

// TypeName implements Object.
func (im *Image) TypeName() string { return "VipsImage" }

// ID is a process-unique identity used for cache keys.
func (im *Image) ID() uint64 { return im.id }

func (im *Image) String() string {
	return fmt.Sprintf("image(%dx%dx%d %s %s)", im.Width, im.Height, im.Bands, im.Format, im.Interpretation)
}

func (im *Image) index(x, y, b int) int {
	return (y*im.Width+x)*im.Bands + b
}

// At returns one sample.
func (im *Image) At(x, y, b int) float64 {
	return im.pixels[im.index(x, y, b)]
}

// set writes one sample, clipped to the image format.
func (im *Image) set(x, y, b int, v float64) {
	im.pixels[im.index(x, y, b)] = Clip(im.Format, v)
}

// Pixel returns all bands at (x, y).
func (im *Image) Pixel(x, y int) ([]float64, error) {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return nil, fmt.Errorf("point (%d, %d) outside %dx%d image", x, y, im.Width, im.Height)
	}
	out := make([]float64, im.Bands)
	copy(out, im.pixels[im.index(x, y, 0):im.index(x, y, 0)+im.Bands])
	return out, nil
}

// Samples returns a copy of all samples, band-interleaved.
func (im *Image) Samples() []float64 {
	out := make([]float64, len(im.pixels))
	copy(out, im.pixels)
	return out
}

// Meta returns a string metadata item.
func (im *Image) Meta(field string) (string, bool) {
	v, ok := im.meta[field]
	return v, ok
}

// MetaFields lists metadata names in sorted order.
func (im *Image) MetaFields() []string {
	keys := make([]string, 0, len(im.meta))
	for k := range im.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SameGeometry reports whether two images share size, bands and format.
func (im *Image) SameGeometry(other *Image) bool {
	return im.Width == other.Width &&
		im.Height == other.Height &&
		im.Bands == other.Bands &&
		im.Format == other.Format
}

// CopyMemory returns a private copy holding one reference. Used for MODIFY
// arguments so drawing never touches a shared image.
func (im *Image) CopyMemory() *Image {
	out, _ := NewImage(im.Width, im.Height, im.Bands, im.Format)
	out.copyHeader(im)
	copy(out.pixels, im.pixels)
	return out
}

// newLike allocates an image with im's header and a new shape and format.
func (im *Image) newLike(width, height, bands int, format BandFormat) (*Image, error) {
	out, err := NewImage(width, height, bands, format)
	if err != nil {
		return nil, err
	}
	out.copyHeader(im)
	if bands != im.Bands {
		if bands == 1 {
			out.Interpretation = InterpretationBW
		} else if im.Bands == 1 {
			out.Interpretation = InterpretationMultiband
		}
	}
	return out, nil
}

func (im *Image) copyHeader(from *Image) {
	im.Interpretation = from.Interpretation
	im.Xres = from.Xres
	im.Yres = from.Yres
	im.Xoffset = from.Xoffset
	im.Yoffset = from.Yoffset
	im.Scale = from.Scale
	im.Offset = from.Offset
	if len(from.meta) > 0 {
		im.meta = maps.Clone(from.meta)
	}
}

func (im *Image) setMeta(field, value string) {
	if im.meta == nil {
		im.meta = make(map[string]string)
	}
	im.meta[field] = value
}

// Clip rounds and clamps v to what format can store.
func Clip(format BandFormat, v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := format.Range()
	if format.IsInt() {
		v = math.Round(v)
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	if format == FormatFloat {
		return float64(float32(v))
	}
	return v
}

// formatRank orders formats for promotion: the result of combining two
// images takes the higher ranked format.
func formatRank(f BandFormat) int {
	switch f {
	case FormatUchar:
		return 0
	case FormatChar:
		return 1
	case FormatUshort:
		return 2
	case FormatShort:
		return 3
	case FormatUint:
		return 4
	case FormatInt:
		return 5
	case FormatFloat:
		return 6
	default:
		return 7
	}
}

// maxFormat returns the wider of two formats.
func maxFormat(a, b BandFormat) BandFormat {
	if formatRank(a) >= formatRank(b) {
		return a
	}
	return b
}
