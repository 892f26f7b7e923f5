// Package node identifies runtime instances.
//
// An ID combines a host UUID with the process identifier of the runtime. It
// is the "home" tag of every actor: two actors with the same actor ID but
// different node IDs are different actors.
package node

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/najoast/actorcore/uuid"
)

// BinarySize is the length of the binary form: 16 host bytes followed by a
// big-endian 32-bit process id.
const BinarySize = uuid.Size + 4

// ErrInvalidNodeID is returned when a node ID cannot be decoded.
var ErrInvalidNodeID = errors.New("invalid node id")

// ID is a location-aware runtime identity. The zero value is the nil node.
type ID struct {
	Host    uuid.UUID
	Process uint32
}

// New returns the node ID for host and process.
func New(host uuid.UUID, process uint32) ID {
	return ID{Host: host, Process: process}
}

var (
	localOnce sync.Once
	localID   ID
	localErr  error
)

// Local returns the identity of this process. The host part is a time-based
// UUID generated on first use; the result is stable for the process lifetime.
func Local() (ID, error) {
	localOnce.Do(func() {
		host, err := uuid.NewTimeBased()
		if err != nil {
			localErr = errors.Wrap(err, "node: generate host id")
			return
		}
		localID = ID{Host: host, Process: uint32(os.Getpid())}
	})
	return localID, localErr
}

// IsNil reports whether id is the zero node.
func (id ID) IsNil() bool {
	return id.Host.IsNil() && id.Process == 0
}

// String returns "<host>#<process>".
func (id ID) String() string {
	return id.Host.String() + "#" + strconv.FormatUint(uint64(id.Process), 10)
}

// Parse decodes the text form produced by String.
func Parse(s string) (ID, error) {
	host, pid, ok := strings.Cut(s, "#")
	if !ok {
		return ID{}, errors.Wrapf(ErrInvalidNodeID, "missing '#' in %q", s)
	}
	u, err := uuid.Parse(host)
	if err != nil {
		return ID{}, errors.Wrapf(ErrInvalidNodeID, "host %q: %v", host, err)
	}
	p, err := strconv.ParseUint(pid, 10, 32)
	if err != nil {
		return ID{}, errors.Wrapf(ErrInvalidNodeID, "process %q", pid)
	}
	return ID{Host: u, Process: uint32(p)}, nil
}

// Hash returns a deterministic hash over the binary form.
func (id ID) Hash() uint64 {
	var buf [BinarySize]byte
	id.put(buf[:])
	return xxh3.Hash(buf[:])
}

// Compare orders node IDs by host, then by process.
func Compare(a, b ID) int {
	if c := uuid.Compare(a.Host, b.Host); c != 0 {
		return c
	}
	switch {
	case a.Process < b.Process:
		return -1
	case a.Process > b.Process:
		return 1
	default:
		return 0
	}
}

func (id ID) put(b []byte) {
	copy(b[:uuid.Size], id.Host[:])
	binary.BigEndian.PutUint32(b[uuid.Size:], id.Process)
}

// MarshalBinary returns the 20-byte binary form.
func (id ID) MarshalBinary() ([]byte, error) {
	b := make([]byte, BinarySize)
	id.put(b)
	return b, nil
}

// UnmarshalBinary decodes the 20-byte binary form.
func (id *ID) UnmarshalBinary(data []byte) error {
	if len(data) != BinarySize {
		return errors.Wrapf(ErrInvalidNodeID, "expected %d bytes, got %d", BinarySize, len(data))
	}
	copy(id.Host[:], data[:uuid.Size])
	id.Process = binary.BigEndian.Uint32(data[uuid.Size:])
	return nil
}

// WriteBinary writes the binary form to w.
func (id ID) WriteBinary(w io.Writer) error {
	var buf [BinarySize]byte
	id.put(buf[:])
	if _, err := w.Write(buf[:]); err != nil {
		return errors.Wrap(err, "node: write")
	}
	return nil
}

// ReadBinary reads the binary form from r.
func ReadBinary(r io.Reader) (ID, error) {
	var buf [BinarySize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ID{}, errors.Wrap(err, "node: read")
	}
	var id ID
	err := id.UnmarshalBinary(buf[:])
	return id, err
}

// MarshalText returns the String form.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the String form.
func (id *ID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// MarshalYAML renders the node ID as a YAML string.
func (id ID) MarshalYAML() (interface{}, error) {
	return id.String(), nil
}

// UnmarshalYAML parses a YAML scalar.
func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Wrapf(ErrInvalidNodeID, "expected scalar at line %d", value.Line)
	}
	return id.UnmarshalText([]byte(value.Value))
}
