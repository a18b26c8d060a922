package native

import (
	"fmt"
	"math"
)

func buildAvg(op *Operation) error {
	in := op.image("in")
	sum := 0.0
	for _, v := range in.pixels {
		sum += v
	}
	op.setOutput("out", DoubleValue(sum/float64(len(in.pixels))))
	return nil
}

// buildExtreme finds the minimum or maximum sample and where it first occurs.
func buildExtreme(findMax bool) BuildFunc {
	return func(op *Operation) error {
		in := op.image("in")
		best := math.Inf(1)
		if findMax {
			best = math.Inf(-1)
		}
		bx, by := 0, 0
		for y := 0; y < in.Height; y++ {
			for x := 0; x < in.Width; x++ {
				for b := 0; b < in.Bands; b++ {
					v := in.At(x, y, b)
					if (findMax && v > best) || (!findMax && v < best) {
						best, bx, by = v, x, y
					}
				}
			}
		}
		op.setOutput("out", DoubleValue(best))
		op.setOutput("x", IntValue(int32(bx)))
		op.setOutput("y", IntValue(int32(by)))
		return nil
	}
}

func buildGetpoint(op *Operation) error {
	in := op.image("in")
	x := op.intOr("x", 0)
	y := op.intOr("y", 0)
	px, err := in.Pixel(x, y)
	if err != nil {
		return fmt.Errorf("getpoint: %w", err)
	}
	op.setOutput("out_array", ArrayDoubleValue(px))
	return nil
}
