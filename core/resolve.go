package core

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/najoast/actorcore/node"
)

// Errors reported by Load and Save.
var (
	// ErrNoContext means the hook was called without a host context.
	ErrNoContext = errors.New("no host context")

	// ErrNoSuchActor means the (id, node) pair does not resolve to an actor.
	ErrNoSuchActor = errors.New("no such actor")

	// ErrNoProxyRegistry means a remote actor was requested but the runtime
	// has no proxy registry.
	ErrNoProxyRegistry = errors.New("no proxy registry")
)

// Load resolves an actor reference received from a peer. Local actors are
// looked up in the runtime registry; remote actors are represented by a
// proxy from the host's proxy registry. A zero aid yields the empty handle.
func Load(host HostContext, aid ActorID, nid node.ID) (*StrongRef, error) {
	if aid == 0 {
		return nil, nil
	}
	if host == nil || host.System() == nil {
		return nil, ErrNoContext
	}
	sys := host.System()
	if nid == sys.Node() {
		ref := sys.Registry().Get(aid)
		if ref == nil {
			return nil, errors.Wrapf(ErrNoSuchActor, "local actor %d", aid)
		}
		return ref, nil
	}
	if nid.IsNil() {
		return nil, errors.Wrapf(ErrNoSuchActor, "actor %d without node", aid)
	}
	proxies := host.ProxyRegistry()
	if proxies == nil {
		return nil, errors.Wrapf(ErrNoProxyRegistry, "actor %d@%s", aid, nid)
	}
	ref := proxies.GetOrPut(nid, aid)
	if ref == nil {
		return nil, errors.Wrapf(ErrNoSuchActor, "remote actor %d@%s", aid, nid)
	}
	return ref, nil
}

// Save extracts the (id, node) pair of ref for transmission. Local actors
// are registered with the runtime so that a later Load can find them while
// they are alive. The empty handle saves as (0, nil node).
func Save(host HostContext, ref *StrongRef) (ActorID, node.ID, error) {
	cb := ref.ControlBlock()
	if cb == nil {
		return 0, node.ID{}, nil
	}
	if host == nil || host.System() == nil {
		return 0, node.ID{}, ErrNoContext
	}
	sys := host.System()
	if cb.Node() == sys.Node() {
		if err := sys.Registry().Put(cb.ID(), ref); err != nil {
			return 0, node.ID{}, errors.Wrap(err, "save actor")
		}
	}
	return cb.ID(), cb.Node(), nil
}

// RefWire is the structured wire form of an actor reference.
type RefWire struct {
	ID   ActorID `json:"id" yaml:"id"`
	Node node.ID `json:"node" yaml:"node"`
}

// SaveWire converts ref to its wire form, see Save.
func SaveWire(host HostContext, ref *StrongRef) (RefWire, error) {
	aid, nid, err := Save(host, ref)
	if err != nil {
		return RefWire{}, err
	}
	return RefWire{ID: aid, Node: nid}, nil
}

// Load resolves the wire form, see Load.
func (w RefWire) Load(host HostContext) (*StrongRef, error) {
	return Load(host, w.ID, w.Node)
}

// MarshalRef encodes ref as a JSON object with the fields "id" and "node".
func MarshalRef(host HostContext, ref *StrongRef) ([]byte, error) {
	w, err := SaveWire(host, ref)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalRef decodes a JSON object produced by MarshalRef and resolves it.
func UnmarshalRef(host HostContext, data []byte) (*StrongRef, error) {
	var w RefWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "decode actor reference")
	}
	return w.Load(host)
}

// MarshalWeakRef encodes a weak reference by locking it first. An expired
// reference encodes as the empty handle.
func MarshalWeakRef(host HostContext, w *WeakRef) ([]byte, error) {
	ref := w.Lock()
	defer ref.Release()
	return MarshalRef(host, ref)
}

// UnmarshalWeakRef decodes a reference and returns a weak handle to it.
func UnmarshalWeakRef(host HostContext, data []byte) (*WeakRef, error) {
	ref, err := UnmarshalRef(host, data)
	if err != nil {
		return nil, err
	}
	defer ref.Release()
	return ref.Downgrade(), nil
}

// WriteRef writes the binary form of ref: the actor ID as a big-endian
// uint64 followed by the binary node ID.
func WriteRef(w io.Writer, host HostContext, ref *StrongRef) error {
	aid, nid, err := Save(host, ref)
	if err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(aid))
	if _, err := w.Write(buf[:]); err != nil {
		return errors.Wrap(err, "write actor id")
	}
	return nid.WriteBinary(w)
}

// ReadRef reads the binary form written by WriteRef and resolves it.
func ReadRef(r io.Reader, host HostContext) (*StrongRef, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, errors.Wrap(err, "read actor id")
	}
	nid, err := node.ReadBinary(r)
	if err != nil {
		return nil, err
	}
	return Load(host, ActorID(binary.BigEndian.Uint64(buf[:])), nid)
}
