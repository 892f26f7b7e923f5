package uuid

import (
	"io"

	guuid "github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

// New returns a random (version 4) UUID.
func New() (UUID, error) {
	g, err := guuid.NewRandom()
	if err != nil {
		return Nil, errors.Wrap(err, "uuid: generate random")
	}
	return UUID(g), nil
}

// NewTimeBased returns a time-based (version 1) UUID built from the current
// time, a clock sequence and the node interface address.
func NewTimeBased() (UUID, error) {
	g, err := guuid.NewUUID()
	if err != nil {
		return Nil, errors.Wrap(err, "uuid: generate time based")
	}
	return UUID(g), nil
}

// Hash returns a deterministic 64-bit hash of the 16 bytes.
func (u UUID) Hash() uint64 {
	return xxh3.Hash(u[:])
}

// MarshalBinary returns the 16 raw bytes.
func (u UUID) MarshalBinary() ([]byte, error) {
	return u.Bytes(), nil
}

// UnmarshalBinary copies exactly 16 raw bytes into u.
func (u *UUID) UnmarshalBinary(data []byte) error {
	v, err := FromBytes(data)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// WriteBinary writes the 16 raw bytes to w without any framing.
func (u UUID) WriteBinary(w io.Writer) error {
	if _, err := w.Write(u[:]); err != nil {
		return errors.Wrap(err, "uuid: write")
	}
	return nil
}

// ReadBinary reads exactly 16 raw bytes from r.
func ReadBinary(r io.Reader) (UUID, error) {
	var u UUID
	if _, err := io.ReadFull(r, u[:]); err != nil {
		return Nil, errors.Wrap(err, "uuid: read")
	}
	return u, nil
}

// MarshalText returns the canonical text form. encoding/json renders it as a
// quoted string.
func (u UUID) MarshalText() ([]byte, error) {
	buf := make([]byte, textLen)
	encodeHex(buf, u)
	return buf, nil
}

// UnmarshalText parses the canonical text form with the rules of Parse.
func (u *UUID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// MarshalYAML renders the UUID as a plain YAML string.
func (u UUID) MarshalYAML() (interface{}, error) {
	return u.String(), nil
}

// UnmarshalYAML parses a YAML scalar with the rules of Parse.
func (u *UUID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Wrapf(ErrInvalidArgument, "uuid: expected scalar at line %d", value.Line)
	}
	return u.UnmarshalText([]byte(value.Value))
}
