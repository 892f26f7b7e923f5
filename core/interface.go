package core

import (
	"context"
	"log/slog"

	"github.com/najoast/actorcore/node"
)

// MessageHandler processes incoming messages for an Actor.
type MessageHandler interface {
	// HandleMessage processes a single message.
	// It should return an error if processing fails.
	HandleMessage(ctx context.Context, elem *MailboxElement) error
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(ctx context.Context, elem *MailboxElement) error

// HandleMessage calls f(ctx, elem).
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, elem *MailboxElement) error {
	return f(ctx, elem)
}

// AbstractActor is the actor data owned by a ControlBlock.
type AbstractActor interface {
	// Enqueue hands elem to the actor's mailbox. It returns false if the
	// actor can no longer accept messages; the caller then still owns elem.
	Enqueue(elem *MailboxElement, host HostContext) bool
}

// Destroyable is implemented by actor data that needs to run cleanup when
// the last strong reference goes away.
type Destroyable interface {
	Destroy()
}

// Runtime is the hosting actor system as seen from a control block.
type Runtime interface {
	// Node returns the identity of this runtime.
	Node() node.ID

	// Registry returns the runtime-wide registry of local actors.
	Registry() *Registry

	// Logger returns the runtime logger.
	Logger() *slog.Logger
}

// HostContext is the execution context handed to enqueue and to the
// serialization hooks.
type HostContext interface {
	// System returns the runtime the context belongs to.
	System() Runtime

	// ProxyRegistry returns the registry for remote actors, or nil if the
	// runtime is not connected to other nodes.
	ProxyRegistry() ProxyRegistry
}

// ProxyRegistry creates and caches local representatives of remote actors.
type ProxyRegistry interface {
	// GetOrPut returns a strong reference to the proxy for aid on nid,
	// creating the proxy if needed. It returns nil if no proxy can be made.
	GetOrPut(nid node.ID, aid ActorID) *StrongRef
}
