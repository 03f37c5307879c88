package value

import (
	"fmt"
	"strconv"
)

// String renders v for display: decimal for unsigned/signed tags, 0x-hex
// for the X tags (their only difference from the unsigned twins), %g for
// FLT, the raw string for STR.
func (v Value) String() string {
	switch v.Tag {
	case EMPTY:
		return "(empty)"
	case U8, U16, U32:
		return strconv.FormatUint(uint64(v.raw32()), 10)
	case I8:
		n, _ := v.AsI8()
		return strconv.FormatInt(int64(n), 10)
	case I16:
		n, _ := v.AsI16()
		return strconv.FormatInt(int64(n), 10)
	case I32:
		n, _ := v.AsI32()
		return strconv.FormatInt(int64(n), 10)
	case X8:
		return fmt.Sprintf("0x%02X", uint8(v.raw32()))
	case X16:
		return fmt.Sprintf("0x%04X", uint16(v.raw32()))
	case X32:
		return fmt.Sprintf("0x%08X", v.raw32())
	case FLT:
		f, _ := v.AsFloat32()
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	case STR:
		return v.Str
	default:
		return "(unknown)"
	}
}

// Parse converts text to a Value of the given tag. Integers accept
// decimal, 0x-hex, and 0-octal prefixes via strconv's base-0 mode.
func Parse(tag Tag, s string) (Value, error) {
	switch tag {
	case U8, X8:
		n, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as %s: %w", s, TypeString(tag), err)
		}
		return scalar(tag, uint32(n)), nil
	case I8:
		n, err := strconv.ParseInt(s, 0, 8)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as I8: %w", s, err)
		}
		return FromI8(int8(n)), nil
	case U16, X16:
		n, err := strconv.ParseUint(s, 0, 16)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as %s: %w", s, TypeString(tag), err)
		}
		return scalar(tag, uint32(n)), nil
	case I16:
		n, err := strconv.ParseInt(s, 0, 16)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as I16: %w", s, err)
		}
		return FromI16(int16(n)), nil
	case U32, X32:
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as %s: %w", s, TypeString(tag), err)
		}
		return scalar(tag, uint32(n)), nil
	case I32:
		n, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as I32: %w", s, err)
		}
		return FromI32(int32(n)), nil
	case FLT:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, fmt.Errorf("value: parsing %q as FLT: %w", s, err)
		}
		return FromFloat32(float32(f)), nil
	case STR:
		return FromString(s), nil
	default:
		return Value{}, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, byte(tag))
	}
}
