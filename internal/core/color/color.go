// Package color handles packed 32-bit ARGB outline colours.
package color

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrInvalidColor = errors.New("invalid color")

// ARGB is a colour packed as 0xAARRGGBB.
type ARGB uint32

const (
	White ARGB = 0xFFFFFFFF
	Black ARGB = 0xFF000000

	// Default is the colour given to a kind selected without an explicit colour.
	Default = White
)

// FromRGBA packs the channels. Out of range channels are masked to 8 bits.
func FromRGBA(r, g, b, a int) ARGB {
	return ARGB(uint32(a&0xFF)<<24 | uint32(r&0xFF)<<16 | uint32(g&0xFF)<<8 | uint32(b&0xFF))
}

// FromRGB packs an opaque colour.
func FromRGB(r, g, b int) ARGB {
	return FromRGBA(r, g, b, 0xFF)
}

func (c ARGB) Alpha() uint8 { return uint8(c >> 24) }
func (c ARGB) Red() uint8   { return uint8(c >> 16) }
func (c ARGB) Green() uint8 { return uint8(c >> 8) }
func (c ARGB) Blue() uint8  { return uint8(c) }

// Outline returns the channels to hand to the outline buffer. Colours stored
// without alpha (plain 0xRRGGBB) are drawn fully opaque.
func (c ARGB) Outline() (r, g, b, a uint8) {
	a = c.Alpha()
	if a == 0 {
		a = 0xFF
	}
	return c.Red(), c.Green(), c.Blue(), a
}

// Opaque is c with a zero alpha promoted to 0xFF.
func (c ARGB) Opaque() ARGB {
	if c.Alpha() == 0 {
		return c | 0xFF000000
	}
	return c
}

// RGB drops the alpha channel.
func (c ARGB) RGB() uint32 {
	return uint32(c) & 0xFFFFFF
}

func (c ARGB) Hex() string {
	return fmt.Sprintf("#%08X", uint32(c))
}

func (c ARGB) String() string {
	return c.Hex()
}

// MarshalJSON writes the colour as a signed 32-bit integer, so opaque white
// is stored as -1.
func (c ARGB) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(int32(c)), 10), nil
}

// UnmarshalJSON accepts signed or unsigned 32-bit integers.
func (c *ARGB) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil || f != math.Trunc(f) {
			return fmt.Errorf("%w: %s", ErrInvalidColor, data)
		}
		v = int64(f)
	}
	if v < math.MinInt32 || v > math.MaxUint32 {
		return fmt.Errorf("%w: %d out of range", ErrInvalidColor, v)
	}
	*c = ARGB(uint32(v))
	return nil
}
