// Package core implements actor identity and lifetime for the runtime.
//
// Every actor is owned by a ControlBlock holding its actor ID, its home node,
// a back reference to the hosting runtime and two reference counters. Strong
// references (StrongRef) keep the actor data alive; weak references (WeakRef)
// keep only the control block alive and must be upgraded with Lock before
// the actor can be used. When actor references cross process boundaries they
// travel as an (id, node) pair, see Save and Load.
package core
