package gpu

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/marlinedit/marlin/media"
)

// readPixel decodes one pixel at byte offset off to normalized float
// components.
func readPixel(format media.PixelFormat, data []byte, off int) (r, g, b, a float32) {
	switch format {
	case media.FormatRGBA8:
		return float32(data[off]) / 255, float32(data[off+1]) / 255,
			float32(data[off+2]) / 255, float32(data[off+3]) / 255
	case media.FormatBGRA8:
		return float32(data[off+2]) / 255, float32(data[off+1]) / 255,
			float32(data[off]) / 255, float32(data[off+3]) / 255
	case media.FormatRGBA16F:
		return halfToFloat(binary.LittleEndian.Uint16(data[off:])),
			halfToFloat(binary.LittleEndian.Uint16(data[off+2:])),
			halfToFloat(binary.LittleEndian.Uint16(data[off+4:])),
			halfToFloat(binary.LittleEndian.Uint16(data[off+6:]))
	case media.FormatRGBA32F:
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:]))
	}
	return 0, 0, 0, 0
}

// writePixel encodes normalized float components at byte offset off.
// Integer formats clamp; float formats keep out-of-range values.
func writePixel(format media.PixelFormat, data []byte, off int, r, g, b, a float32) {
	switch format {
	case media.FormatRGBA8:
		data[off] = clampByte(r)
		data[off+1] = clampByte(g)
		data[off+2] = clampByte(b)
		data[off+3] = clampByte(a)
	case media.FormatBGRA8:
		data[off] = clampByte(b)
		data[off+1] = clampByte(g)
		data[off+2] = clampByte(r)
		data[off+3] = clampByte(a)
	case media.FormatRGBA16F:
		binary.LittleEndian.PutUint16(data[off:], floatToHalf(r))
		binary.LittleEndian.PutUint16(data[off+2:], floatToHalf(g))
		binary.LittleEndian.PutUint16(data[off+4:], floatToHalf(b))
		binary.LittleEndian.PutUint16(data[off+6:], floatToHalf(a))
	case media.FormatRGBA32F:
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(r))
		binary.LittleEndian.PutUint32(data[off+4:], math.Float32bits(g))
		binary.LittleEndian.PutUint32(data[off+8:], math.Float32bits(b))
		binary.LittleEndian.PutUint32(data[off+12:], math.Float32bits(a))
	}
}

func clampByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// halfToFloat expands an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF
	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: renormalize.
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3FF
		return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
	case 0x1F:
		return math.Float32frombits(sign | 0xFF<<23 | mant<<13)
	default:
		return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
	}
}

// floatToHalf narrows to IEEE 754 binary16 with round-to-nearest-even.
func floatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	if exp >= 0x1F {
		if int32(bits>>23&0xFF) == 0xFF && mant != 0 {
			return sign | 0x7C00 | uint16(mant>>13) | 1 // NaN, keep payload bit
		}
		return sign | 0x7C00 // overflow to infinity
	}
	if exp <= 0 {
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if mant>>(shift-1)&1 != 0 {
			half++
		}
		return sign | half
	}

	half := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		half++
	}
	return half
}

// linearizeSRGB mirrors the sRGB shader curve for the CPU stub.
func linearizeSRGB(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow((float64(v)+0.055)/1.055, 2.4))
}

// linearizeRec709 mirrors the Rec.709 shader curve for the CPU stub.
func linearizeRec709(v float32) float32 {
	if v < 0.081 {
		return v / 4.5
	}
	return float32(math.Pow((float64(v)+0.099)/1.099, 1/0.45))
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
