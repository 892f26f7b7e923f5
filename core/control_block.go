package core

import (
	"fmt"
	"math"

	"go.uber.org/atomic"

	"github.com/najoast/actorcore/node"
)

// DataDestructor runs once when the strong count of a control block drops
// to zero.
type DataDestructor func(data AbstractActor)

// BlockDestructor runs once when the weak count of a control block drops to
// zero. Nothing may touch the control block afterwards.
type BlockDestructor func(cb *ControlBlock)

// ControlBlock stores identity and reference counts of one actor together
// with the actor data.
//
// A control block starts with one strong and one weak reference. The strong
// reference is handed to the first StrongRef (see Adopt); the weak one is
// held implicitly by the strong side and released when the strong count
// reaches zero. The data destructor runs when the last strong reference
// expires, the block destructor when the last weak reference expires.
//
// All counter updates go through sync/atomic operations, which are
// sequentially consistent in Go; no locks are taken.
type ControlBlock struct {
	strong atomic.Uint64
	weak   atomic.Uint64

	aid       ActorID
	nid       node.ID
	home      Runtime
	data      AbstractActor
	dataDtor  DataDestructor
	blockDtor BlockDestructor
}

// NewControlBlock allocates a control block owning data. A nil dataDtor
// calls Destroy on data if it implements Destroyable. A nil blockDtor does
// nothing.
func NewControlBlock(aid ActorID, nid node.ID, home Runtime, data AbstractActor,
	dataDtor DataDestructor, blockDtor BlockDestructor) *ControlBlock {
	if data == nil {
		panic("core: control block without actor data")
	}
	if dataDtor == nil {
		dataDtor = destroyData
	}
	cb := &ControlBlock{
		aid:       aid,
		nid:       nid,
		home:      home,
		data:      data,
		dataDtor:  dataDtor,
		blockDtor: blockDtor,
	}
	cb.strong.Store(1)
	cb.weak.Store(1)
	return cb
}

func destroyData(data AbstractActor) {
	if d, ok := data.(Destroyable); ok {
		d.Destroy()
	}
}

// ID returns the actor ID. Valid for the whole lifetime of the block.
func (cb *ControlBlock) ID() ActorID {
	return cb.aid
}

// Node returns the home node of the actor.
func (cb *ControlBlock) Node() node.ID {
	return cb.nid
}

// Home returns the runtime hosting this control block.
func (cb *ControlBlock) Home() Runtime {
	return cb.home
}

// Get returns the actor data. Callers must hold a strong reference.
func (cb *ControlBlock) Get() AbstractActor {
	return cb.data
}

// Address returns "<id>@<node>".
func (cb *ControlBlock) Address() string {
	return fmt.Sprintf("%d@%s", cb.aid, cb.nid)
}

// StrongCount returns a snapshot of the strong reference count.
func (cb *ControlBlock) StrongCount() uint64 {
	return cb.strong.Load()
}

// WeakCount returns a snapshot of the weak reference count.
func (cb *ControlBlock) WeakCount() uint64 {
	return cb.weak.Load()
}

// RetainStrong adds a strong reference. The caller must already hold one.
func (cb *ControlBlock) RetainStrong() {
	if cb.strong.Inc() == 1 {
		panic(fmt.Sprintf("core: strong retain on expired actor %s", cb.Address()))
	}
}

// ReleaseStrong drops a strong reference. The last release destroys the
// actor data and then gives up the implicit weak reference.
func (cb *ControlBlock) ReleaseStrong() {
	switch cb.strong.Dec() {
	case 0:
		cb.dataDtor(cb.data)
		cb.ReleaseWeak()
	case math.MaxUint64:
		panic(fmt.Sprintf("core: strong release on expired actor %s", cb.Address()))
	}
}

// RetainWeak adds a weak reference. The caller must already hold a strong
// or weak reference.
func (cb *ControlBlock) RetainWeak() {
	if cb.weak.Inc() == 1 {
		panic(fmt.Sprintf("core: weak retain on released control block %s", cb.Address()))
	}
}

// ReleaseWeak drops a weak reference. The last release runs the block
// destructor.
func (cb *ControlBlock) ReleaseWeak() {
	switch cb.weak.Dec() {
	case 0:
		if cb.blockDtor != nil {
			cb.blockDtor(cb)
		}
	case math.MaxUint64:
		panic(fmt.Sprintf("core: weak release on released control block %s", cb.Address()))
	}
}

// UpgradeWeak tries to add a strong reference on behalf of a weak holder.
// It fails once the strong count has reached zero and never resurrects an
// expired actor.
func (cb *ControlBlock) UpgradeWeak() bool {
	for {
		n := cb.strong.Load()
		if n == 0 {
			return false
		}
		if cb.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Enqueue wraps the message into a mailbox element and hands it to the
// actor. Ownership of sender passes to the element; it is released if the
// actor rejects the message.
func (cb *ControlBlock) Enqueue(sender *StrongRef, mid MessageID, content *Message, host HostContext) bool {
	return cb.EnqueueElement(NewMailboxElement(sender, mid, content), host)
}

// EnqueueElement hands a prebuilt element to the actor. A rejected element
// is released.
func (cb *ControlBlock) EnqueueElement(elem *MailboxElement, host HostContext) bool {
	if elem == nil {
		return false
	}
	if cb.data.Enqueue(elem, host) {
		return true
	}
	elem.Release()
	return false
}
