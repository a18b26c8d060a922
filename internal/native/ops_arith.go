package native

import "fmt"

func buildBlack(op *Operation) error {
	width := op.intOr("width", 0)
	height := op.intOr("height", 0)
	bands := op.intOr("bands", 1)
	im, err := NewImage(width, height, bands, FormatUchar)
	if err != nil {
		return fmt.Errorf("black: %w", err)
	}
	op.setOutputImage("out", im)
	return nil
}

// vectorize checks constant vectors against an image's band count and
// returns the output band count: 1-band images widen to the vector length.
func vectorize(name string, bands int, vectors ...[]float64) (int, error) {
	n := bands
	for _, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("%s: constant vector is empty", name)
		}
		if len(v) > 1 && n == 1 {
			n = len(v)
		}
	}
	for _, v := range vectors {
		if len(v) != 1 && len(v) != n {
			return 0, fmt.Errorf("%s: vector of length %d does not match %d bands", name, len(v), n)
		}
	}
	if bands != 1 && bands != n {
		return 0, fmt.Errorf("%s: image has %d bands, constant needs %d", name, bands, n)
	}
	return n, nil
}

func pick(v []float64, b int) float64 {
	if len(v) == 1 {
		return v[0]
	}
	return v[b]
}

func buildLinear(op *Operation) error {
	in := op.image("in")
	a := op.doubles("a")
	b := op.doubles("b")
	bands, err := vectorize("linear", in.Bands, a, b)
	if err != nil {
		return err
	}

	format := FormatFloat
	if in.Format == FormatDouble {
		format = FormatDouble
	}
	if op.boolOr("uchar", false) {
		format = FormatUchar
	}

	out, err := in.newLike(in.Width, in.Height, bands, format)
	if err != nil {
		return fmt.Errorf("linear: %w", err)
	}
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			for band := 0; band < bands; band++ {
				src := in.At(x, y, min(band, in.Bands-1))
				out.set(x, y, band, pick(a, band)*src+pick(b, band))
			}
		}
	}
	op.setOutputImage("out", out)
	return nil
}

func buildInvert(op *Operation) error {
	in := op.image("in")
	out, err := in.newLike(in.Width, in.Height, in.Bands, in.Format)
	if err != nil {
		return fmt.Errorf("invert: %w", err)
	}
	for i, v := range in.pixels {
		if in.Format.IsUnsigned() {
			out.pixels[i] = Clip(in.Format, in.Format.Max()-v)
		} else {
			out.pixels[i] = Clip(in.Format, -v)
		}
	}
	op.setOutputImage("out", out)
	return nil
}

type arithKind int

const (
	arithAdd arithKind = iota
	arithSubtract
	arithMultiply
)

// arithFormat widens the input format so that results do not overflow.
func arithFormat(kind arithKind, f BandFormat) BandFormat {
	switch f {
	case FormatUchar:
		if kind == arithSubtract {
			return FormatShort
		}
		return FormatUshort
	case FormatChar:
		return FormatShort
	case FormatUshort:
		if kind == arithSubtract {
			return FormatInt
		}
		return FormatUint
	case FormatShort, FormatInt:
		return FormatInt
	case FormatUint:
		if kind == arithSubtract {
			return FormatInt
		}
		return FormatUint
	default:
		return f
	}
}

func buildArithmetic(kind arithKind) BuildFunc {
	return func(op *Operation) error {
		left := op.image("left")
		right := op.image("right")
		name := op.Name()
		if left.Width != right.Width || left.Height != right.Height {
			return fmt.Errorf("%s: images must match in size, %dx%d vs %dx%d",
				name, left.Width, left.Height, right.Width, right.Height)
		}
		bands := max(left.Bands, right.Bands)
		if (left.Bands != 1 && left.Bands != bands) || (right.Bands != 1 && right.Bands != bands) {
			return fmt.Errorf("%s: images must have the same number of bands, or one band", name)
		}

		format := arithFormat(kind, maxFormat(left.Format, right.Format))
		out, err := left.newLike(left.Width, left.Height, bands, format)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for y := 0; y < left.Height; y++ {
			for x := 0; x < left.Width; x++ {
				for b := 0; b < bands; b++ {
					l := left.At(x, y, min(b, left.Bands-1))
					r := right.At(x, y, min(b, right.Bands-1))
					var v float64
					switch kind {
					case arithAdd:
						v = l + r
					case arithSubtract:
						v = l - r
					case arithMultiply:
						v = l * r
					}
					out.set(x, y, b, v)
				}
			}
		}
		op.setOutputImage("out", out)
		return nil
	}
}
