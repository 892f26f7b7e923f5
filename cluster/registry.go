package cluster

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
)

// ProxyRegistry creates and caches proxies for remote actors, one per
// (node, actor ID) pair. It holds a strong reference to every cached proxy
// until the entry is erased.
type ProxyRegistry struct {
	home      core.Runtime
	transport Transport
	logger    *slog.Logger

	mu      sync.Mutex
	proxies map[node.ID]map[core.ActorID]*core.StrongRef
}

var _ core.ProxyRegistry = (*ProxyRegistry)(nil)

// NewProxyRegistry creates a registry whose proxies belong to home and
// forward through transport.
func NewProxyRegistry(home core.Runtime, transport Transport, logger *slog.Logger) *ProxyRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyRegistry{
		home:      home,
		transport: transport,
		logger:    logger.With("component", "proxy_registry"),
		proxies:   make(map[node.ID]map[core.ActorID]*core.StrongRef),
	}
}

// GetOrPut returns a strong reference to the proxy for aid on nid, creating
// it on first use. It returns nil for a zero aid, the nil node or the home
// node, none of which can be proxied.
func (r *ProxyRegistry) GetOrPut(nid node.ID, aid core.ActorID) *core.StrongRef {
	if aid == 0 || nid.IsNil() {
		return nil
	}
	if r.home != nil && nid == r.home.Node() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	submap := r.proxies[nid]
	if ref, ok := submap[aid]; ok {
		return ref.Clone()
	}
	if submap == nil {
		submap = make(map[core.ActorID]*core.StrongRef)
		r.proxies[nid] = submap
	}

	proxy := newProxy(nid, aid, r.transport, r.logger)
	ref := core.Adopt(core.NewControlBlock(aid, nid, r.home, proxy, nil, nil))
	submap[aid] = ref
	r.logger.Debug("proxy created", "actor", aid, "node", nid.String())

	return ref.Clone()
}

// Get returns the cached proxy for aid on nid, or nil.
func (r *ProxyRegistry) Get(nid node.ID, aid core.ActorID) *core.StrongRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proxies[nid][aid].Clone()
}

// EraseActor drops the cached proxy for aid on nid. The proxy stays usable
// by whoever still holds a reference to it.
func (r *ProxyRegistry) EraseActor(nid node.ID, aid core.ActorID) bool {
	r.mu.Lock()
	ref, ok := r.proxies[nid][aid]
	if ok {
		delete(r.proxies[nid], aid)
		if len(r.proxies[nid]) == 0 {
			delete(r.proxies, nid)
		}
	}
	r.mu.Unlock()

	ref.Release()
	return ok
}

// Erase kills and drops every proxy for nid, e.g. after losing the
// connection to that node. It returns the number of proxies removed.
func (r *ProxyRegistry) Erase(nid node.ID) int {
	r.mu.Lock()
	submap := r.proxies[nid]
	delete(r.proxies, nid)
	r.mu.Unlock()

	for _, ref := range submap {
		if p, ok := ref.Get().(*Proxy); ok {
			p.Kill()
		}
		ref.Release()
	}
	if len(submap) > 0 {
		r.logger.Info("proxies erased", "node", nid.String(), "count", len(submap))
	}
	return len(submap)
}

// Count returns the number of cached proxies for nid.
func (r *ProxyRegistry) Count(nid node.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies[nid])
}

// Nodes returns all nodes with cached proxies, ordered by node.Compare.
func (r *ProxyRegistry) Nodes() []node.ID {
	r.mu.Lock()
	nodes := make([]node.ID, 0, len(r.proxies))
	for nid := range r.proxies {
		nodes = append(nodes, nid)
	}
	r.mu.Unlock()

	sort.Slice(nodes, func(i, j int) bool { return node.Compare(nodes[i], nodes[j]) < 0 })
	return nodes
}

// Clear erases all nodes.
func (r *ProxyRegistry) Clear() {
	for _, nid := range r.Nodes() {
		r.Erase(nid)
	}
}

// HandleEvent erases the proxies of nodes that left or failed.
func (r *ProxyRegistry) HandleEvent(ev Event) {
	switch ev.Type {
	case EventNodeLeft, EventNodeFailed:
		r.Erase(ev.Node)
	}
}
