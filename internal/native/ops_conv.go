package native

import (
	"fmt"
	"math"
)

func buildCast(op *Operation) error {
	in := op.image("in")
	format := BandFormat(op.intOr("format", int(FormatUchar)))
	shift := op.boolOr("shift", false)

	out, err := in.newLike(in.Width, in.Height, in.Bands, format)
	if err != nil {
		return fmt.Errorf("cast: %w", err)
	}
	scale := 1.0
	if shift && in.Format.IsInt() && format.IsInt() {
		scale = math.Ldexp(1, format.Bits()-in.Format.Bits())
	}
	for i, v := range in.pixels {
		out.pixels[i] = Clip(format, v*scale)
	}
	op.setOutputImage("out", out)
	return nil
}

func buildEmbed(op *Operation) error {
	in := op.image("in")
	x := op.intOr("x", 0)
	y := op.intOr("y", 0)
	width := op.intOr("width", 1)
	height := op.intOr("height", 1)
	extend := Extend(op.intOr("extend", int(ExtendBlack)))
	background := op.doubles("background")
	if background == nil {
		background = []float64{0}
	}
	if _, err := vectorize("embed", in.Bands, background); err != nil {
		return err
	}

	out, err := in.newLike(width, height, in.Bands, in.Format)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	for oy := 0; oy < height; oy++ {
		for ox := 0; ox < width; ox++ {
			sx, sy := ox-x, oy-y
			inside := sx >= 0 && sy >= 0 && sx < in.Width && sy < in.Height
			for b := 0; b < in.Bands; b++ {
				var v float64
				switch {
				case inside:
					v = in.At(sx, sy, b)
				case extend == ExtendCopy:
					v = in.At(clampInt(sx, 0, in.Width-1), clampInt(sy, 0, in.Height-1), b)
				case extend == ExtendRepeat:
					v = in.At(wrap(sx, in.Width), wrap(sy, in.Height), b)
				case extend == ExtendMirror:
					v = in.At(mirror(sx, in.Width), mirror(sy, in.Height), b)
				case extend == ExtendWhite:
					v = in.Format.Max()
				case extend == ExtendBackground:
					v = pick(background, b)
				default:
					v = 0
				}
				out.set(ox, oy, b, v)
			}
		}
	}
	op.setOutputImage("out", out)
	return nil
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func mirror(v, n int) int {
	period := 2 * n
	v = wrap(v, period)
	if v >= n {
		v = period - 1 - v
	}
	return v
}

func buildCopy(op *Operation) error {
	in := op.image("in")
	out := in.CopyMemory()
	if v, ok := op.value("interpretation"); ok {
		out.Interpretation = Interpretation(v.Enum())
	}
	out.Xres = op.doubleOr("xres", in.Xres)
	out.Yres = op.doubleOr("yres", in.Yres)
	out.Xoffset = op.intOr("xoffset", in.Xoffset)
	out.Yoffset = op.intOr("yoffset", in.Yoffset)
	op.setOutputImage("out", out)
	return nil
}

func buildResize(op *Operation) error {
	in := op.image("in")
	hscale := op.doubleOr("scale", 1)
	vscale := op.doubleOr("vscale", hscale)
	if hscale <= 0 || vscale <= 0 {
		return fmt.Errorf("resize: scale factors must be positive")
	}
	interp := Interpolate(op.intOr("interpolate", int(InterpolateBilinear)))

	width := max(1, int(math.Round(float64(in.Width)*hscale)))
	height := max(1, int(math.Round(float64(in.Height)*vscale)))
	out, err := in.newLike(width, height, in.Bands, in.Format)
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	out.Xres = in.Xres * hscale
	out.Yres = in.Yres * vscale

	for oy := 0; oy < height; oy++ {
		fy := (float64(oy)+0.5)/vscale - 0.5
		for ox := 0; ox < width; ox++ {
			fx := (float64(ox)+0.5)/hscale - 0.5
			for b := 0; b < in.Bands; b++ {
				out.set(ox, oy, b, sample(in, fx, fy, b, interp))
			}
		}
	}
	op.setOutputImage("out", out)
	return nil
}

func sample(in *Image, fx, fy float64, b int, interp Interpolate) float64 {
	if interp == InterpolateNearest {
		x := clampInt(int(math.Round(fx)), 0, in.Width-1)
		y := clampInt(int(math.Round(fy)), 0, in.Height-1)
		return in.At(x, y, b)
	}

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	dx := fx - float64(x0)
	dy := fy - float64(y0)
	at := func(x, y int) float64 {
		return in.At(clampInt(x, 0, in.Width-1), clampInt(y, 0, in.Height-1), b)
	}
	top := at(x0, y0)*(1-dx) + at(x0+1, y0)*dx
	bottom := at(x0, y0+1)*(1-dx) + at(x0+1, y0+1)*dx
	return top*(1-dy) + bottom*dy
}

func buildBandjoin(op *Operation) error {
	images := op.images("in")
	if len(images) == 0 {
		return fmt.Errorf("bandjoin: no input images")
	}
	first := images[0]
	bands := 0
	format := first.Format
	for _, im := range images {
		if im.Width != first.Width || im.Height != first.Height {
			return fmt.Errorf("bandjoin: images must match in size")
		}
		bands += im.Bands
		format = maxFormat(format, im.Format)
	}

	out, err := first.newLike(first.Width, first.Height, bands, format)
	if err != nil {
		return fmt.Errorf("bandjoin: %w", err)
	}
	if bands > 1 && first.Interpretation == InterpretationBW {
		out.Interpretation = InterpretationMultiband
	}
	for y := 0; y < first.Height; y++ {
		for x := 0; x < first.Width; x++ {
			ob := 0
			for _, im := range images {
				for b := 0; b < im.Bands; b++ {
					out.set(x, y, ob, im.At(x, y, b))
					ob++
				}
			}
		}
	}
	op.setOutputImage("out", out)
	return nil
}
