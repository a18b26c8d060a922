package native

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Raw buffers hold samples in the image format, little-endian,
// band-interleaved. When metadata is kept, "field=value\n" lines follow the
// samples; rawload_buffer ignores anything after the samples.

func buildRawsaveBuffer(op *Operation) error {
	in := op.image("in")
	keep := op.intOr("keep", KeepAll)

	var buf bytes.Buffer
	for _, v := range in.pixels {
		if err := writeSample(&buf, in.Format, v); err != nil {
			return fmt.Errorf("rawsave_buffer: %w", err)
		}
	}
	if keep&KeepOther != 0 {
		for _, field := range in.MetaFields() {
			fmt.Fprintf(&buf, "%s=%s\n", field, in.meta[field])
		}
	}

	data := buf.Bytes()
	op.setOutput("buffer", BlobValue(data, nil))
	op.setOutput("length", Uint64Value(uint64(len(data))))
	return nil
}

func buildRawloadBuffer(op *Operation) error {
	blob := op.blob("buffer")
	width := op.intOr("width", 0)
	height := op.intOr("height", 0)
	bands := op.intOr("bands", 1)
	format := BandFormat(op.intOr("format", int(FormatUchar)))

	out, err := NewImage(width, height, bands, format)
	if err != nil {
		return fmt.Errorf("rawload_buffer: %w", err)
	}
	size := format.Bits() / 8
	need := len(out.pixels) * size
	if blob.Len() < need {
		out.Unref()
		return fmt.Errorf("rawload_buffer: buffer holds %d bytes, image needs %d", blob.Len(), need)
	}
	data := blob.Bytes()
	for i := range out.pixels {
		out.pixels[i] = readSample(data[i*size:], format)
	}
	op.setOutputImage("out", out)
	return nil
}

func writeSample(buf *bytes.Buffer, format BandFormat, v float64) error {
	switch format {
	case FormatUchar:
		return buf.WriteByte(uint8(v))
	case FormatChar:
		return buf.WriteByte(byte(int8(v)))
	case FormatUshort:
		return binary.Write(buf, binary.LittleEndian, uint16(v))
	case FormatShort:
		return binary.Write(buf, binary.LittleEndian, int16(v))
	case FormatUint:
		return binary.Write(buf, binary.LittleEndian, uint32(v))
	case FormatInt:
		return binary.Write(buf, binary.LittleEndian, int32(v))
	case FormatFloat:
		return binary.Write(buf, binary.LittleEndian, math.Float32bits(float32(v)))
	case FormatDouble:
		return binary.Write(buf, binary.LittleEndian, math.Float64bits(v))
	default:
		return fmt.Errorf("bad band format %d", int(format))
	}
}

func readSample(b []byte, format BandFormat) float64 {
	le := binary.LittleEndian
	switch format {
	case FormatUchar:
		return float64(b[0])
	case FormatChar:
		return float64(int8(b[0]))
	case FormatUshort:
		return float64(le.Uint16(b))
	case FormatShort:
		return float64(int16(le.Uint16(b)))
	case FormatUint:
		return float64(le.Uint32(b))
	case FormatInt:
		return float64(int32(le.Uint32(b)))
	case FormatFloat:
		return float64(math.Float32frombits(le.Uint32(b)))
	default:
		return math.Float64frombits(le.Uint64(b))
	}
}
