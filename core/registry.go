package core

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrAlreadyRegistered is returned by Put when a different actor already
// occupies the ID.
var ErrAlreadyRegistered = errors.New("actor already registered")

// Registry maps actor IDs to local actors. ID entries hold weak
// references, so registering an actor does not extend its lifetime; named
// entries hold strong references. Safe for concurrent use.
type Registry struct {
	// Map of Actor ID to *WeakRef
	actors sync.Map

	running atomic.Int64

	// Named entries, e.g. well-known services
	namesMu sync.RWMutex
	names   map[string]*StrongRef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]*StrongRef),
	}
}

// Put registers ref under id. Registering the same actor twice is a no-op,
// and an expired entry is replaced.
func (r *Registry) Put(id ActorID, ref *StrongRef) error {
	if id == 0 {
		return errors.New("cannot register actor with ID 0")
	}
	weak := ref.Downgrade()
	if weak == nil {
		return errors.Errorf("cannot register empty reference as actor %d", id)
	}
	for {
		existing, loaded := r.actors.LoadOrStore(id, weak)
		if !loaded {
			r.running.Inc()
			return nil
		}
		old := existing.(*WeakRef)
		if old.ControlBlock() == weak.ControlBlock() {
			weak.Release()
			return nil
		}
		if !old.Expired() {
			weak.Release()
			return errors.Wrapf(ErrAlreadyRegistered, "actor %d", id)
		}
		if r.actors.CompareAndSwap(id, old, weak) {
			old.Release()
			return nil
		}
	}
}

// Get returns a new strong reference to the actor registered under id, or
// nil if there is none or it has expired.
func (r *Registry) Get(id ActorID) *StrongRef {
	if v, ok := r.actors.Load(id); ok {
		return v.(*WeakRef).Lock()
	}
	return nil
}

// Erase removes id and releases the registry's reference.
func (r *Registry) Erase(id ActorID) bool {
	v, ok := r.actors.LoadAndDelete(id)
	if !ok {
		return false
	}
	r.running.Dec()
	v.(*WeakRef).Release()
	return true
}

// Running returns the number of registered IDs.
func (r *Registry) Running() int {
	return int(r.running.Load())
}

// List returns all registered actor IDs in ascending order.
func (r *Registry) List() []ActorID {
	var ids []ActorID

	r.actors.Range(func(key, value interface{}) bool {
		ids = append(ids, key.(ActorID))
		return true
	})

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PutNamed registers ref under name, replacing any previous entry. An
// empty ref removes the entry.
func (r *Registry) PutNamed(name string, ref *StrongRef) error {
	if name == "" {
		return errors.New("cannot register actor with empty name")
	}
	clone := ref.Clone()

	r.namesMu.Lock()
	old := r.names[name]
	if clone == nil {
		delete(r.names, name)
	} else {
		r.names[name] = clone
	}
	r.namesMu.Unlock()

	old.Release()
	return nil
}

// GetNamed returns a new strong reference to the actor registered under
// name, or nil.
func (r *Registry) GetNamed(name string) *StrongRef {
	r.namesMu.RLock()
	defer r.namesMu.RUnlock()
	return r.names[name].Clone()
}

// EraseNamed removes name and releases the registry's reference.
func (r *Registry) EraseNamed(name string) bool {
	r.namesMu.Lock()
	ref, ok := r.names[name]
	delete(r.names, name)
	r.namesMu.Unlock()

	ref.Release()
	return ok
}

// Names returns all registered names in ascending order.
func (r *Registry) Names() []string {
	r.namesMu.RLock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	r.namesMu.RUnlock()

	sort.Strings(names)
	return names
}

// Clear erases every entry, named ones included.
func (r *Registry) Clear() {
	for _, id := range r.List() {
		r.Erase(id)
	}
	for _, name := range r.Names() {
		r.EraseNamed(name)
	}
}
