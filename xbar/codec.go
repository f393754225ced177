// codec.go - Binaerformate fuer exportierte Bit-Ebenen
// Zellwerte sind Ganzzahlen (< 2^weight_bit). f16 haelt sie bis 2048 exakt,
// bf16 nur bis 256; breitere Zellen werden abgelehnt statt gerundet.
package xbar

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/mnsim/xbarsim/ml"
)

// Encoding is the element format of an encoded plane.
type Encoding int

const (
	EncodingF32 Encoding = iota
	EncodingF16
	EncodingBF16
)

func (e Encoding) String() string {
	switch e {
	case EncodingF32:
		return "f32"
	case EncodingF16:
		return "f16"
	case EncodingBF16:
		return "bf16"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding accepts f32, f16 and bf16.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "f32", "":
		return EncodingF32, nil
	case "f16":
		return EncodingF16, nil
	case "bf16":
		return EncodingBF16, nil
	}
	return 0, fmt.Errorf("not support plane encoding %q%s: %w", s, suggest(s, "f32", "f16", "bf16"), ErrConfiguration)
}

// ElementSize returns the encoded byte size of one value.
func (e Encoding) ElementSize() int {
	if e == EncodingF32 {
		return 4
	}
	return 2
}

// MaxExact returns the largest integer up to which every integer is exactly
// representable in the encoding.
func (e Encoding) MaxExact() float64 {
	switch e {
	case EncodingF32:
		return 1 << 24
	case EncodingF16:
		return 1 << 11
	case EncodingBF16:
		return 1 << 8
	default:
		return 0
	}
}

// CheckCellBit reports whether cells of cellBit bits survive the encoding
// unchanged.
func (e Encoding) CheckCellBit(cellBit int) error {
	if need := math.Exp2(float64(cellBit)) - 1; need > e.MaxExact() {
		return fmt.Errorf("%s holds integers up to %g exactly, %d-bit cells reach %g: %w",
			e, e.MaxExact(), cellBit, need, ErrConfiguration)
	}
	return nil
}

// EncodePlane serializes the cell values of t little-endian in the given
// encoding. Values that are not integers within MaxExact are rejected.
func EncodePlane(t *ml.Tensor, e Encoding) ([]byte, error) {
	f32 := make([]float32, t.Len())
	for i, v := range t.Floats() {
		if v != 0 && (v != math.Trunc(v) || math.Abs(v) > e.MaxExact()) {
			return nil, fmt.Errorf("cell value %g not exact in %s: %w", v, e, ErrConfiguration)
		}
		f32[i] = float32(v)
	}

	switch e {
	case EncodingF32:
		b := make([]byte, 4*len(f32))
		for i, v := range f32 {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
		}
		return b, nil
	case EncodingF16:
		b := make([]byte, 2*len(f32))
		for i, v := range f32 {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(v).Bits())
		}
		return b, nil
	case EncodingBF16:
		return bfloat16.EncodeFloat32(f32), nil
	default:
		return nil, fmt.Errorf("not support %s: %w", e, ErrConfiguration)
	}
}

// DecodePlane is the inverse of EncodePlane.
func DecodePlane(b []byte, e Encoding, shape ...int) (*ml.Tensor, error) {
	out := ml.New(shape...)
	if len(b) != out.Len()*e.ElementSize() {
		return nil, fmt.Errorf("%d bytes for %v %s values: %w", len(b), shape, e, ErrPlaneMismatch)
	}

	dst := out.Floats()
	switch e {
	case EncodingF32:
		for i := range dst {
			dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
	case EncodingF16:
		for i := range dst {
			dst[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32())
		}
	case EncodingBF16:
		for i, v := range bfloat16.DecodeFloat32(b) {
			dst[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("not support %s: %w", e, ErrConfiguration)
	}
	return out, nil
}
