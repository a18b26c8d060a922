package native

import "fmt"

func buildSetstring(op *Operation) error {
	in := op.image("in")
	field := op.textOr("field", "")
	if field == "" {
		return fmt.Errorf("setstring: field name is empty")
	}
	out := in.CopyMemory()
	out.setMeta(field, op.textOr("value", ""))
	op.setOutputImage("out", out)
	return nil
}

func buildGetstring(op *Operation) error {
	in := op.image("in")
	field := op.textOr("field", "")
	text, ok := in.Meta(field)
	if !ok {
		return fmt.Errorf("getstring: no metadata item %q", field)
	}
	op.setOutput("value", RefStringValue(text))
	return nil
}

// buildDrawRect paints into the "image" argument in place. Callers must pass
// a private copy, since MODIFY arguments are written to.
func buildDrawRect(op *Operation) error {
	im := op.image("image")
	ink := op.doubles("ink")
	if _, err := vectorize("draw_rect", im.Bands, ink); err != nil {
		return err
	}
	left := op.intOr("left", 0)
	top := op.intOr("top", 0)
	width := op.intOr("width", 0)
	height := op.intOr("height", 0)
	fill := op.boolOr("fill", false)

	for y := max(top, 0); y < min(top+height, im.Height); y++ {
		for x := max(left, 0); x < min(left+width, im.Width); x++ {
			edge := x == left || x == left+width-1 || y == top || y == top+height-1
			if !fill && !edge {
				continue
			}
			for b := 0; b < im.Bands; b++ {
				im.set(x, y, b, pick(ink, b))
			}
		}
	}
	return nil
}
