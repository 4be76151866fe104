package chunk

import "math"

// Format mirrors the original's LogFormat: the base of the number
// system (2, 10 or 16) and the minimum digit count to zero-fill to.
// Fill of 0 means no zero-fill.
type Format struct {
	Base uint8
	Fill uint8
}

var (
	FormatNone    = Format{0, 0}
	FormatDefault = Format{10, 0}
	FormatB8      = Format{2, 8}
	FormatB16     = Format{2, 16}
	FormatB24     = Format{2, 24}
	FormatB32     = Format{2, 32}
	FormatD2      = Format{10, 2}
	FormatD3      = Format{10, 3}
	FormatD4      = Format{10, 4}
	FormatD5      = Format{10, 5}
	FormatD6      = Format{10, 6}
	FormatD7      = Format{10, 7}
	FormatD8      = Format{10, 8}
	FormatX2      = Format{16, 2}
	FormatX4      = Format{16, 4}
	FormatX6      = Format{16, 6}
	FormatX8      = Format{16, 8}
)

const (
	numericError = '#'
	numericFill  = '0'
)

var digit2char = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

// Formats bundles the per-type default formats the original's
// LogConfig carries (int8Format ... doubleFormat, alignSigned,
// appendBasePrefix). Consumers of AppendInt/AppendUint/AppendFloat
// that don't need a one-off Format pass these defaults.
type Formats struct {
	Int8   Format
	Int16  Format
	Int32  Format
	Uint8  Format
	Uint16 Format
	Uint32 Format
	Float  Format
	Double Format
	TaskID Format
	Tick   Format

	AlignSigned      bool
	AppendBasePrefix bool
}

// DefaultFormats mirrors LogConfig's defaults: decimal for integers,
// 5/8 significant digits for float/double, hex width-2 for task ids,
// decimal width-5 ticks.
func DefaultFormats() Formats {
	return Formats{
		Int8: FormatDefault, Int16: FormatDefault, Int32: FormatDefault,
		Uint8: FormatDefault, Uint16: FormatDefault, Uint32: FormatDefault,
		Float: FormatD5, Double: FormatD8,
		TaskID: FormatX2, Tick: FormatD5,
	}
}

// AppendUint writes value in the given base, zero-filled to fill
// digits, prefixed with 0b/0x if requested. It mirrors the original's
// template append(T value, T base, uint8_t fill).
func (b *ChunkBuilder) AppendUint(value uint32, f Format, basePrefix bool) {
	if f.Base != 2 && f.Base != 10 && f.Base != 16 {
		b.Push(numericError)
		return
	}
	if basePrefix && f.Base == 2 {
		b.Push('0')
		b.Push('b')
	}
	if basePrefix && f.Base == 16 {
		b.Push('0')
		b.Push('x')
	}
	var tmp [34]byte
	where := 0
	v := value
	base := uint32(f.Base)
	for {
		tmp[where] = digit2char[v%base]
		where++
		v /= base
		if v == 0 {
			break
		}
	}
	fill := int(f.Fill)
	if fill > where {
		for i := 0; i < fill-where; i++ {
			b.Push(numericFill)
		}
	}
	for i := where - 1; i >= 0; i-- {
		b.Push(tmp[i])
	}
}

// AppendInt is AppendUint's signed counterpart, matching the
// original's sign handling (leading '-' or an aligning space).
func (b *ChunkBuilder) AppendInt(value int32, f Format, basePrefix bool, alignSigned bool) {
	if f.Base != 2 && f.Base != 10 && f.Base != 16 {
		b.Push(numericError)
		return
	}
	if basePrefix && f.Base == 2 {
		b.Push('0')
		b.Push('b')
	}
	if basePrefix && f.Base == 16 {
		b.Push('0')
		b.Push('x')
	}
	negative := value < 0
	v := value
	var tmp [34]byte
	where := 0
	base := int32(f.Base)
	for {
		mod := v % base
		if mod < 0 {
			mod = -mod
		}
		tmp[where] = digit2char[mod]
		where++
		v /= base
		if v == 0 {
			break
		}
	}
	if negative {
		b.Push('-')
	} else if alignSigned && f.Fill > 0 {
		b.Push(' ')
	}
	fill := int(f.Fill)
	if fill > where {
		for i := 0; i < fill-where; i++ {
			b.Push(numericFill)
		}
	}
	for i := where - 1; i >= 0; i-- {
		b.Push(tmp[i])
	}
}

// AppendBool writes "true"/"false".
func (b *ChunkBuilder) AppendBool(v bool) {
	if v {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
}

// AppendFloat renders value in the original's scientific-notation
// style: [sign]d[.ddd]e[+-]exp, with digitsNeeded significant digits.
func (b *ChunkBuilder) AppendFloat(value float64, digitsNeeded uint8, alignSigned bool) {
	switch {
	case math.IsNaN(value):
		b.WriteString("nan")
		return
	case math.IsInf(value, 0):
		b.WriteString("inf")
		return
	case value == 0.0:
		b.Push('0')
		return
	}
	v := value
	if v < 0 {
		v = -v
		b.Push('-')
	} else if alignSigned {
		b.Push(' ')
	}
	mantissa := math.Floor(math.Log10(v))
	normalized := v / math.Pow(10.0, mantissa)
	var firstDigit int
	for i := uint8(1); i < digitsNeeded; i++ {
		firstDigit = int(normalized)
		if firstDigit > 9 {
			firstDigit = 9
		}
		b.Push(digit2char[firstDigit])
		normalized = 10.0 * (normalized - float64(firstDigit))
		if i == 1 {
			b.Push('.')
		}
	}
	firstDigit = int(math.Round(normalized))
	if firstDigit > 9 {
		firstDigit = 9
	}
	b.Push(digit2char[firstDigit])
	b.Push('e')
	if mantissa >= 0 {
		b.Push('+')
	}
	b.AppendInt(int32(mantissa), Format{10, 0}, false, false)
}
