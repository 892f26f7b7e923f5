package cluster

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
)

// Loopback connects actor systems living in the same process. Each message
// crosses the boundary the way it would cross a network: the sender is
// saved on the source host and loaded on the destination host, so the
// receiver sees a proxy for it.
type Loopback struct {
	logger *slog.Logger

	hostsMu sync.RWMutex
	hosts   map[node.ID]core.HostContext

	listenersMu sync.RWMutex
	listeners   []func(Event)

	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

// NewLoopback creates an empty Loopback.
func NewLoopback(logger *slog.Logger) *Loopback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loopback{
		logger: logger.With("component", "loopback"),
		hosts:  make(map[node.ID]core.HostContext),
	}
}

// Attach makes host reachable under its node ID.
func (l *Loopback) Attach(host core.HostContext) error {
	nid := host.System().Node()
	if nid.IsNil() {
		return ErrNilNode
	}

	l.hostsMu.Lock()
	if _, ok := l.hosts[nid]; ok {
		l.hostsMu.Unlock()
		return errors.Wrapf(ErrNodeAttached, "node %s", nid)
	}
	l.hosts[nid] = host
	l.hostsMu.Unlock()

	l.logger.Info("node attached", "node", nid.String())
	l.emit(Event{Type: EventNodeJoined, Node: nid, Timestamp: time.Now()})
	return nil
}

// Detach removes the node. Listeners are told that it left.
func (l *Loopback) Detach(nid node.ID) bool {
	l.hostsMu.Lock()
	_, ok := l.hosts[nid]
	delete(l.hosts, nid)
	l.hostsMu.Unlock()

	if ok {
		l.logger.Info("node detached", "node", nid.String())
		l.emit(Event{Type: EventNodeLeft, Node: nid, Timestamp: time.Now()})
	}
	return ok
}

// AddEventListener registers fn for membership events.
func (l *Loopback) AddEventListener(fn func(Event)) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *Loopback) emit(ev Event) {
	l.listenersMu.RLock()
	listeners := append([]func(Event){}, l.listeners...)
	l.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

func (l *Loopback) host(nid node.ID) core.HostContext {
	l.hostsMu.RLock()
	defer l.hostsMu.RUnlock()
	return l.hosts[nid]
}

// Transport returns the Transport used by proxies living on from.
func (l *Loopback) Transport(from core.HostContext) Transport {
	return TransportFunc(func(nid node.ID, aid core.ActorID, elem *core.MailboxElement) bool {
		if l.forward(from, nid, aid, elem) {
			l.forwarded.Inc()
			return true
		}
		l.dropped.Inc()
		return false
	})
}

func (l *Loopback) forward(from core.HostContext, nid node.ID, aid core.ActorID, elem *core.MailboxElement) bool {
	dst := l.host(nid)
	if dst == nil {
		l.logger.Debug("unknown destination node", "node", nid.String(), "actor", aid)
		return false
	}

	sid, snid, err := core.Save(from, elem.Sender)
	if err != nil {
		l.logger.Warn("cannot save sender", "sender", elem.Sender.String(), "error", err)
		return false
	}

	target, err := core.Load(dst, aid, nid)
	if err != nil {
		l.logger.Debug("cannot resolve destination", "node", nid.String(), "actor", aid, "error", err)
		return false
	}
	defer target.Release()

	sender, err := core.Load(dst, sid, snid)
	if err != nil {
		l.logger.Warn("cannot resolve sender on destination", "sender", elem.Sender.String(), "error", err)
		return false
	}

	var content *core.Message
	if elem.Content != nil {
		copied := *elem.Content
		copied.Data = append([]byte(nil), elem.Content.Data...)
		content = &copied
	}
	if !target.Enqueue(sender, elem.MID, content, dst) {
		return false
	}
	elem.Release()
	return true
}

// Statistics returns transport counters.
func (l *Loopback) Statistics() TransportStatistics {
	l.hostsMu.RLock()
	n := len(l.hosts)
	l.hostsMu.RUnlock()

	return TransportStatistics{
		MessagesForwarded: l.forwarded.Load(),
		MessagesDropped:   l.dropped.Load(),
		NodesAttached:     n,
	}
}

// Connect attaches sys to l and installs a proxy registry that forwards
// through l. Proxies of departing nodes are erased.
func Connect(l *Loopback, sys *core.System) (*ProxyRegistry, error) {
	proxies := NewProxyRegistry(sys, l.Transport(sys), sys.Logger())
	if err := l.Attach(sys); err != nil {
		return nil, err
	}
	sys.SetProxyRegistry(proxies)
	l.AddEventListener(proxies.HandleEvent)
	return proxies, nil
}
