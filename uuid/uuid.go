// Package uuid implements the 128-bit universally unique identifier used to
// name runtime nodes.
//
// The canonical text form is the RFC 4122 layout of 8-4-4-4-12 hexadecimal
// digits. Parsing accepts upper and lower case digits but only the values
// that carry a recognized variant and version (or the nil UUID); formatting
// always emits lower case.
package uuid

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Size is the length of a UUID in bytes.
const Size = 16

// textLen is the length of the canonical text form.
const textLen = 36

// ErrInvalidArgument is returned for any text that is not a well-formed UUID,
// including well-formed hex with an unrecognized variant or version.
var ErrInvalidArgument = errors.New("invalid argument")

// UUID is a 128-bit identifier. The zero value is the nil UUID.
type UUID [Size]byte

// Nil is the all-zero UUID.
var Nil UUID

// Version identifies the generation scheme of an RFC 4122 UUID. The value
// mirrors the high nibble of byte 6 shifted into the top of a 16-bit word,
// i.e. the time_hi_and_version field with the timestamp bits masked out.
type Version uint16

const (
	TimeBased     Version = 0x1000
	DCECompatible Version = 0x2000
	NameBasedMD5  Version = 0x3000
	Randomized    Version = 0x4000
	NameBasedSHA1 Version = 0x5000
)

// String returns the string representation of Version.
func (v Version) String() string {
	switch v {
	case TimeBased:
		return "time_based"
	case DCECompatible:
		return "dce_compatible"
	case NameBasedMD5:
		return "name_based_md5"
	case Randomized:
		return "randomized"
	case NameBasedSHA1:
		return "name_based_sha1"
	default:
		return "unknown"
	}
}

// Variant identifies the layout family of a UUID, encoded in the top bits of
// byte 8.
type Variant uint8

const (
	// VariantNCS is the reserved NCS backward compatible layout (0xx).
	VariantNCS Variant = iota

	// VariantRFC4122 is the layout described by RFC 4122 (10x).
	VariantRFC4122

	// VariantMicrosoft is the reserved Microsoft layout (110).
	VariantMicrosoft

	// VariantFuture is reserved for future definition (111).
	VariantFuture
)

// String returns the string representation of Variant.
func (v Variant) String() string {
	switch v {
	case VariantNCS:
		return "ncs"
	case VariantRFC4122:
		return "rfc4122"
	case VariantMicrosoft:
		return "microsoft"
	default:
		return "future"
	}
}

// FromBytes copies b into a UUID. It fails unless b is exactly Size bytes.
func FromBytes(b []byte) (UUID, error) {
	var u UUID
	if len(b) != Size {
		return Nil, errors.Wrapf(ErrInvalidArgument, "uuid: expected %d bytes, got %d", Size, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// IsNil reports whether all 128 bits are zero.
func (u UUID) IsNil() bool {
	return u == Nil
}

// Bytes returns a copy of the raw bytes.
func (u UUID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, u[:])
	return b
}

// Version extracts the version field. No validation is performed.
func (u UUID) Version() Version {
	return Version(u[6]&0xF0) << 8
}

// Variant extracts the variant field. No validation is performed.
func (u UUID) Variant() Variant {
	x := u[8] >> 5
	switch {
	case x&0b100 == 0:
		return VariantNCS
	case x&0b010 == 0:
		return VariantRFC4122
	case x&0b001 == 0:
		return VariantMicrosoft
	default:
		return VariantFuture
	}
}

// Timestamp reassembles the 60-bit timestamp of a time-based UUID from the
// time_low, time_mid and time_hi fields. The result is meaningless for other
// versions.
func (u UUID) Timestamp() uint64 {
	low := uint64(binary.BigEndian.Uint32(u[0:4]))
	mid := uint64(binary.BigEndian.Uint16(u[4:6]))
	hi := uint64(binary.BigEndian.Uint16(u[6:8]) & 0x0FFF)
	return low | mid<<32 | hi<<48
}

// ClockSequence returns the 14-bit clock sequence of a time-based UUID.
func (u UUID) ClockSequence() uint16 {
	return binary.BigEndian.Uint16(u[8:10]) & 0x3FFF
}

// Node returns the 48-bit node field of a time-based UUID.
func (u UUID) Node() uint64 {
	var buf [8]byte
	copy(buf[2:], u[10:16])
	return binary.BigEndian.Uint64(buf[:])
}

// Valid reports whether u is the nil UUID or carries the RFC 4122 variant
// together with one of the versions 1 through 5. Only valid UUIDs can be
// parsed from text.
func (u UUID) Valid() bool {
	if u.IsNil() {
		return true
	}
	if u.Variant() != VariantRFC4122 {
		return false
	}
	switch u.Version() {
	case TimeBased, DCECompatible, NameBasedMD5, Randomized, NameBasedSHA1:
		return true
	default:
		return false
	}
}

// Compare returns -1, 0 or 1 by byte-wise comparison.
func Compare(a, b UUID) int {
	return bytes.Compare(a[:], b[:])
}

// String returns the canonical lower case 8-4-4-4-12 form.
func (u UUID) String() string {
	var buf [textLen]byte
	encodeHex(buf[:], u)
	return string(buf[:])
}

func encodeHex(dst []byte, u UUID) {
	hex.Encode(dst[0:8], u[0:4])
	dst[8] = '-'
	hex.Encode(dst[9:13], u[4:6])
	dst[13] = '-'
	hex.Encode(dst[14:18], u[6:8])
	dst[18] = '-'
	hex.Encode(dst[19:23], u[8:10])
	dst[23] = '-'
	hex.Encode(dst[24:], u[10:])
}

// byte offsets of each hex pair in the canonical text form
var pairOffsets = [Size]int{0, 2, 4, 6, 9, 11, 14, 16, 19, 21, 24, 26, 28, 30, 32, 34}

// Parse decodes the canonical text form.
func Parse(s string) (UUID, error) {
	var u UUID
	if len(s) != textLen {
		return Nil, errors.Wrapf(ErrInvalidArgument, "uuid: invalid length %d", len(s))
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return Nil, errors.Wrapf(ErrInvalidArgument, "uuid: misplaced hyphen in %q", s)
	}
	for i, off := range pairOffsets {
		hi, ok1 := fromHexChar(s[off])
		lo, ok2 := fromHexChar(s[off+1])
		if !ok1 || !ok2 {
			return Nil, errors.Wrapf(ErrInvalidArgument, "uuid: invalid hex digit in %q", s)
		}
		u[i] = hi<<4 | lo
	}
	if !u.Valid() {
		return Nil, errors.Wrapf(ErrInvalidArgument, "uuid: unsupported variant or version in %q", s)
	}
	return u, nil
}

// MustParse is like Parse but panics on malformed input. It is intended for
// constants and tests.
func MustParse(s string) UUID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// CanParse reports whether Parse would succeed on s.
func CanParse(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
