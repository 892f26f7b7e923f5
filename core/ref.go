package core

import (
	"go.uber.org/atomic"

	"github.com/najoast/actorcore/node"
)

const emptyRef = "<empty>"

// StrongRef is an owning handle to an actor. The actor data stays alive
// until every StrongRef pointing to it has been released.
//
// A nil *StrongRef is the empty handle; all methods accept it. Release is
// idempotent for a given handle, so `defer ref.Release()` is always safe.
// A single handle must not be released concurrently with other calls on it;
// use Clone to give each goroutine its own handle.
type StrongRef struct {
	cb       *ControlBlock
	released atomic.Bool
}

// Adopt wraps cb without incrementing the strong count. It takes over the
// initial reference of a freshly created control block or a reference that
// was acquired by UpgradeWeak.
func Adopt(cb *ControlBlock) *StrongRef {
	if cb == nil {
		return nil
	}
	return &StrongRef{cb: cb}
}

// NewStrongRef adds a strong reference to cb. The caller must already hold
// one.
func NewStrongRef(cb *ControlBlock) *StrongRef {
	if cb == nil {
		return nil
	}
	cb.RetainStrong()
	return &StrongRef{cb: cb}
}

// ControlBlock returns the referenced control block, or nil for an empty or
// released handle.
func (r *StrongRef) ControlBlock() *ControlBlock {
	if r == nil || r.released.Load() {
		return nil
	}
	return r.cb
}

// Valid reports whether the handle refers to an actor.
func (r *StrongRef) Valid() bool {
	return r.ControlBlock() != nil
}

// ID returns the actor ID, or 0 for an empty handle.
func (r *StrongRef) ID() ActorID {
	if cb := r.ControlBlock(); cb != nil {
		return cb.ID()
	}
	return 0
}

// Node returns the home node of the actor, or the nil node.
func (r *StrongRef) Node() node.ID {
	if cb := r.ControlBlock(); cb != nil {
		return cb.Node()
	}
	return node.ID{}
}

// Get returns the actor data, or nil for an empty handle.
func (r *StrongRef) Get() AbstractActor {
	if cb := r.ControlBlock(); cb != nil {
		return cb.Get()
	}
	return nil
}

// Clone returns a new handle to the same actor.
func (r *StrongRef) Clone() *StrongRef {
	return NewStrongRef(r.ControlBlock())
}

// Release gives up the reference held by this handle.
func (r *StrongRef) Release() {
	if r == nil || r.cb == nil {
		return
	}
	if r.released.CompareAndSwap(false, true) {
		r.cb.ReleaseStrong()
	}
}

// Downgrade returns a weak handle to the same actor.
func (r *StrongRef) Downgrade() *WeakRef {
	return NewWeakRef(r.ControlBlock())
}

// Equal reports whether both handles refer to the same control block.
// Two empty handles are equal.
func (r *StrongRef) Equal(other *StrongRef) bool {
	return r.ControlBlock() == other.ControlBlock()
}

// Is reports whether the handle owns the given actor data. Identity is
// decided by the control block, not by the content of the data.
func (r *StrongRef) Is(a AbstractActor) bool {
	cb := r.ControlBlock()
	if cb == nil || a == nil {
		return cb == nil && a == nil
	}
	return cb.Get() == a
}

// Hash returns the actor ID, or 0 for an empty handle.
func (r *StrongRef) Hash() uint64 {
	return uint64(r.ID())
}

// String returns the actor address, or "<empty>".
func (r *StrongRef) String() string {
	if cb := r.ControlBlock(); cb != nil {
		return cb.Address()
	}
	return emptyRef
}

// Enqueue sends a message to the referenced actor. It returns false for an
// empty handle or when the actor rejects the message.
func (r *StrongRef) Enqueue(sender *StrongRef, mid MessageID, content *Message, host HostContext) bool {
	cb := r.ControlBlock()
	if cb == nil {
		sender.Release()
		return false
	}
	return cb.Enqueue(sender, mid, content, host)
}

// WeakRef is a non-owning handle. It keeps the control block alive but not
// the actor data; use Lock to obtain a StrongRef before talking to the
// actor.
//
// A nil *WeakRef is the empty handle. The concurrency rules of StrongRef
// apply.
type WeakRef struct {
	cb       *ControlBlock
	released atomic.Bool
}

// NewWeakRef adds a weak reference to cb.
func NewWeakRef(cb *ControlBlock) *WeakRef {
	if cb == nil {
		return nil
	}
	cb.RetainWeak()
	return &WeakRef{cb: cb}
}

// ControlBlock returns the referenced control block, or nil for an empty or
// released handle. The actor data may already be destroyed.
func (w *WeakRef) ControlBlock() *ControlBlock {
	if w == nil || w.released.Load() {
		return nil
	}
	return w.cb
}

// ID returns the actor ID, or 0 for an empty handle. It stays valid after
// the actor has expired.
func (w *WeakRef) ID() ActorID {
	if cb := w.ControlBlock(); cb != nil {
		return cb.ID()
	}
	return 0
}

// Node returns the home node of the actor, or the nil node.
func (w *WeakRef) Node() node.ID {
	if cb := w.ControlBlock(); cb != nil {
		return cb.Node()
	}
	return node.ID{}
}

// Expired reports whether the actor data is gone.
func (w *WeakRef) Expired() bool {
	cb := w.ControlBlock()
	return cb == nil || cb.StrongCount() == 0
}

// Lock returns a strong handle, or nil if the actor has expired.
func (w *WeakRef) Lock() *StrongRef {
	cb := w.ControlBlock()
	if cb == nil || !cb.UpgradeWeak() {
		return nil
	}
	return Adopt(cb)
}

// Do runs fn with a strong handle that is released when fn returns, even if
// it panics. It reports false without calling fn if the actor has expired.
func (w *WeakRef) Do(fn func(ref *StrongRef)) bool {
	ref := w.Lock()
	if ref == nil {
		return false
	}
	defer ref.Release()
	fn(ref)
	return true
}

// Clone returns a new weak handle to the same control block.
func (w *WeakRef) Clone() *WeakRef {
	return NewWeakRef(w.ControlBlock())
}

// Release gives up the weak reference held by this handle.
func (w *WeakRef) Release() {
	if w == nil || w.cb == nil {
		return
	}
	if w.released.CompareAndSwap(false, true) {
		w.cb.ReleaseWeak()
	}
}

// Equal reports whether both handles refer to the same control block.
func (w *WeakRef) Equal(other *WeakRef) bool {
	return w.ControlBlock() == other.ControlBlock()
}

// Hash returns the actor ID, or 0 for an empty handle.
func (w *WeakRef) Hash() uint64 {
	return uint64(w.ID())
}

// String returns the actor address, or "<empty>".
func (w *WeakRef) String() string {
	if cb := w.ControlBlock(); cb != nil {
		return cb.Address()
	}
	return emptyRef
}
