package cluster

import (
	"log/slog"

	"go.uber.org/atomic"

	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
)

// Proxy stands in for an actor on another node. Messages enqueued to a
// proxy are forwarded through the transport until the proxy is killed.
type Proxy struct {
	nid       node.ID
	aid       core.ActorID
	transport Transport
	logger    *slog.Logger

	killed    atomic.Bool
	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

func newProxy(nid node.ID, aid core.ActorID, transport Transport, logger *slog.Logger) *Proxy {
	return &Proxy{
		nid:       nid,
		aid:       aid,
		transport: transport,
		logger:    logger,
	}
}

// Node returns the node hosting the real actor.
func (p *Proxy) Node() node.ID {
	return p.nid
}

// ID returns the ID of the real actor.
func (p *Proxy) ID() core.ActorID {
	return p.aid
}

// Enqueue forwards elem to the remote actor.
func (p *Proxy) Enqueue(elem *core.MailboxElement, _ core.HostContext) bool {
	if p.killed.Load() || p.transport == nil {
		p.dropped.Inc()
		return false
	}
	if !p.transport.Forward(p.nid, p.aid, elem) {
		p.dropped.Inc()
		p.logger.Debug("proxy dropped message", "actor", p.aid, "node", p.nid.String(), "mid", elem.MID)
		return false
	}
	p.forwarded.Inc()
	return true
}

// Kill stops forwarding. It is called when the remote node goes away and
// when the last strong reference to the proxy is released.
func (p *Proxy) Kill() {
	if p.killed.CompareAndSwap(false, true) {
		p.logger.Debug("proxy killed", "actor", p.aid, "node", p.nid.String(),
			"forwarded", p.forwarded.Load(), "dropped", p.dropped.Load())
	}
}

// Killed reports whether the proxy stopped forwarding.
func (p *Proxy) Killed() bool {
	return p.killed.Load()
}

// Destroy implements core.Destroyable.
func (p *Proxy) Destroy() {
	p.Kill()
}

// Forwarded returns the number of messages handed to the transport.
func (p *Proxy) Forwarded() uint64 {
	return p.forwarded.Load()
}
