package native

// Declaration helpers for the operation tables.

func in(name string, t Type, blurb string) ParamSpec {
	return ParamSpec{Name: name, Type: t, Flags: requiredInput, Blurb: blurb}
}

func opt(name string, t Type, blurb string) ParamSpec {
	return ParamSpec{Name: name, Type: t, Flags: optionalInput, Blurb: blurb}
}

func out(name string, t Type, blurb string) ParamSpec {
	return ParamSpec{Name: name, Type: t, Flags: requiredOutput, Blurb: blurb}
}

func optOut(name string, t Type, blurb string) ParamSpec {
	return ParamSpec{Name: name, Type: t, Flags: optionalOutput, Blurb: blurb}
}

func deprecated(p ParamSpec) ParamSpec {
	p.Flags |= ArgDeprecated
	return p
}

func modify(p ParamSpec) ParamSpec {
	p.Flags |= ArgModify
	return p
}

// standardOperations lists the built-in operation classes.
func standardOperations() []*OperationClass {
	return []*OperationClass{
		{
			Name:        "black",
			Description: "make a black image",
			Params: []ParamSpec{
				out("out", TypeImage, "Output image"),
				in("width", TypeInt, "Image width in pixels"),
				in("height", TypeInt, "Image height in pixels"),
				opt("bands", TypeInt, "Number of bands in image"),
			},
			Build: buildBlack,
		},
		{
			Name:        "linear",
			Description: "calculate (a * in + b)",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
				in("a", TypeArrayDouble, "Multiply by this"),
				in("b", TypeArrayDouble, "Add this"),
				opt("uchar", TypeBool, "Output should be uchar"),
			},
			Build: buildLinear,
		},
		{
			Name:        "cast",
			Description: "cast an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
				in("format", TypeBandFormat, "Format to cast to"),
				opt("shift", TypeBool, "Shift integer values up and down"),
			},
			Build: buildCast,
		},
		{
			Name:        "embed",
			Description: "embed an image in a larger image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
				in("x", TypeInt, "Left edge of input in output"),
				in("y", TypeInt, "Top edge of input in output"),
				in("width", TypeInt, "Image width in pixels"),
				in("height", TypeInt, "Image height in pixels"),
				opt("extend", TypeExtend, "How to generate the extra pixels"),
				opt("background", TypeArrayDouble, "Color for background pixels"),
			},
			Build: buildEmbed,
		},
		{
			Name:        "copy",
			Description: "copy an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
				opt("interpretation", TypeInterpretation, "Pixel interpretation"),
				opt("xres", TypeDouble, "Horizontal resolution in pixels/mm"),
				opt("yres", TypeDouble, "Vertical resolution in pixels/mm"),
				opt("xoffset", TypeInt, "Horizontal offset of origin"),
				opt("yoffset", TypeInt, "Vertical offset of origin"),
			},
			Build: buildCopy,
		},
		{
			Name:        "invert",
			Description: "invert an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
			},
			Build: buildInvert,
		},
		{
			Name:        "add",
			Description: "add two images",
			Params:      binaryParams(),
			Build:       buildArithmetic(arithAdd),
		},
		{
			Name:        "subtract",
			Description: "subtract two images",
			Params:      binaryParams(),
			Build:       buildArithmetic(arithSubtract),
		},
		{
			Name:        "multiply",
			Description: "multiply two images",
			Params:      binaryParams(),
			Build:       buildArithmetic(arithMultiply),
		},
		{
			Name:        "avg",
			Description: "find image average",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeDouble, "Output value"),
			},
			Build: buildAvg,
		},
		{
			Name:        "min",
			Description: "find image minimum",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeDouble, "Output value"),
				optOut("x", TypeInt, "Horizontal position of minimum"),
				optOut("y", TypeInt, "Vertical position of minimum"),
			},
			Build: buildExtreme(false),
		},
		{
			Name:        "max",
			Description: "find image maximum",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeDouble, "Output value"),
				optOut("x", TypeInt, "Horizontal position of maximum"),
				optOut("y", TypeInt, "Vertical position of maximum"),
			},
			Build: buildExtreme(true),
		},
		{
			Name:        "getpoint",
			Description: "read a point from an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out_array", TypeArrayDouble, "Array of output values"),
				in("x", TypeInt, "Point to read"),
				in("y", TypeInt, "Point to read"),
			},
			Build: buildGetpoint,
		},
		{
			Name:        "bandjoin",
			Description: "bandwise join a set of images",
			Params: []ParamSpec{
				in("in", TypeArrayImage, "Array of input images"),
				out("out", TypeImage, "Output image"),
			},
			Build: buildBandjoin,
		},
		{
			Name:        "resize",
			Description: "resize an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
				in("scale", TypeDouble, "Scale image by this factor"),
				opt("vscale", TypeDouble, "Vertical scale image by this factor"),
				opt("interpolate", TypeInterpolate, "Interpolate pixels with this"),
				opt("interpolator", TypeInterpolator, "Interpolator object"),
				deprecated(opt("kernel", TypeString, "Resampling kernel")),
			},
			Build: buildResize,
		},
		{
			Name:        "rawsave_buffer",
			Description: "write raw image to buffer",
			Params: []ParamSpec{
				in("in", TypeImage, "Image to save"),
				out("buffer", TypeBlob, "Buffer to save to"),
				opt("keep", TypeKeep, "Which metadata to retain"),
				optOut("length", TypeUint64, "Number of bytes written"),
			},
			Build: buildRawsaveBuffer,
		},
		{
			Name:        "rawload_buffer",
			Description: "load raw data from a buffer",
			Params: []ParamSpec{
				in("buffer", TypeBlob, "Buffer to load from"),
				out("out", TypeImage, "Output image"),
				in("width", TypeInt, "Image width in pixels"),
				in("height", TypeInt, "Image height in pixels"),
				in("bands", TypeInt, "Number of bands in image"),
				opt("format", TypeBandFormat, "Pixel format in file"),
			},
			Build: buildRawloadBuffer,
		},
		{
			Name:        "setstring",
			Description: "attach a string to an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				out("out", TypeImage, "Output image"),
				in("field", TypeString, "Name of the metadata item"),
				in("value", TypeRefString, "Text to attach"),
			},
			Build: buildSetstring,
		},
		{
			Name:        "getstring",
			Description: "read a string attached to an image",
			Params: []ParamSpec{
				in("in", TypeImage, "Input image"),
				in("field", TypeString, "Name of the metadata item"),
				out("value", TypeRefString, "Attached text"),
			},
			Build: buildGetstring,
		},
		{
			Name:        "draw_rect",
			Description: "paint a rectangle on an image",
			Params: []ParamSpec{
				modify(in("image", TypeImage, "Image to draw on")),
				in("ink", TypeArrayDouble, "Color for pixels"),
				in("left", TypeInt, "Rect to fill"),
				in("top", TypeInt, "Rect to fill"),
				in("width", TypeInt, "Rect to fill"),
				in("height", TypeInt, "Rect to fill"),
				opt("fill", TypeBool, "Draw a solid object"),
			},
			Build:   buildDrawRect,
			NoCache: true,
		},
	}
}

func binaryParams() []ParamSpec {
	return []ParamSpec{
		in("left", TypeImage, "Left-hand image argument"),
		in("right", TypeImage, "Right-hand image argument"),
		out("out", TypeImage, "Output image"),
	}
}
