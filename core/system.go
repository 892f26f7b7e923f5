package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/najoast/actorcore/node"
)

var (
	// ErrSystemShutdown is returned when spawning on a system that is
	// shutting down.
	ErrSystemShutdown = errors.New("actor system is shutting down")

	// ErrActorLimit is returned when spawning would exceed the configured
	// number of live actors.
	ErrActorLimit = errors.New("actor limit reached")
)

// System hosts local actors. It is the Runtime of every control block it
// creates and serves as its own HostContext.
type System struct {
	node     node.ID
	registry *Registry
	logger   *slog.Logger

	proxyMu sync.RWMutex
	proxies ProxyRegistry

	idCounter atomic.Uint64
	maxActors int

	// Live actors by ID; entries leave when their data is destroyed
	actors sync.Map // map[ActorID]*MailboxActor

	// Actors whose data is not destroyed yet, including reserved slots
	live      atomic.Uint64
	spawned   atomic.Uint64
	destroyed atomic.Uint64
	released  atomic.Uint64

	// System shutdown context
	ctx    context.Context
	cancel context.CancelFunc
}

// SystemOption configures a System.
type SystemOption func(*System)

// WithLogger sets the system logger.
func WithLogger(logger *slog.Logger) SystemOption {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProxyRegistry sets the registry used to resolve remote actors.
func WithProxyRegistry(p ProxyRegistry) SystemOption {
	return func(s *System) {
		s.proxies = p
	}
}

// WithMaxActors limits the number of live actors; n <= 0 means no limit.
func WithMaxActors(n int) SystemOption {
	return func(s *System) {
		s.maxActors = n
	}
}

// NewSystem creates a System for the given node.
func NewSystem(nid node.ID, opts ...SystemOption) *System {
	ctx, cancel := context.WithCancel(context.Background())

	s := &System{
		node:     nid,
		registry: NewRegistry(),
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("node", nid.String())
	return s
}

// Node returns the identity of this system.
func (s *System) Node() node.ID {
	return s.node
}

// Registry returns the registry of local actors.
func (s *System) Registry() *Registry {
	return s.registry
}

// Logger returns the system logger.
func (s *System) Logger() *slog.Logger {
	return s.logger
}

// System returns s; a System is its own host context.
func (s *System) System() Runtime {
	return s
}

// ProxyRegistry returns the proxy registry, or nil.
func (s *System) ProxyRegistry() ProxyRegistry {
	s.proxyMu.RLock()
	defer s.proxyMu.RUnlock()
	return s.proxies
}

// SetProxyRegistry installs the registry used to resolve remote actors. The
// proxy registry usually needs the system as its home runtime, so it is set
// after construction.
func (s *System) SetProxyRegistry(p ProxyRegistry) {
	s.proxyMu.Lock()
	defer s.proxyMu.Unlock()
	s.proxies = p
}

// NextID generates the next available Actor ID.
func (s *System) NextID() ActorID {
	return ActorID(s.idCounter.Inc())
}

// Spawn creates and starts an actor. The returned reference holds the
// actor's initial strong count; the actor terminates once it and all its
// clones have been released.
func (s *System) Spawn(handler MessageHandler, opts ActorOptions) (*StrongRef, error) {
	if handler == nil {
		return nil, errors.New("cannot spawn actor without handler")
	}
	select {
	case <-s.ctx.Done():
		return nil, ErrSystemShutdown
	default:
	}
	if !s.reserve() {
		return nil, errors.Wrapf(ErrActorLimit, "%d live actors", s.live.Load())
	}

	id := s.NextID()
	actor := NewMailboxActor(id, handler, opts, s.logger)
	cb := NewControlBlock(id, s.node, s, actor, s.destroyActor, s.releaseBlock)
	ref := Adopt(cb)

	s.actors.Store(id, actor)
	s.spawned.Inc()
	if err := actor.Start(s.ctx); err != nil {
		ref.Release()
		return nil, errors.Wrapf(err, "start actor %d", id)
	}
	s.logger.Debug("actor spawned", "actor", id, "name", opts.Name)

	return ref, nil
}

// reserve takes a live slot unless the actor limit is reached.
func (s *System) reserve() bool {
	for {
		n := s.live.Load()
		if s.maxActors > 0 && n >= uint64(s.maxActors) {
			return false
		}
		if s.live.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *System) destroyActor(data AbstractActor) {
	actor := data.(*MailboxActor)
	s.actors.Delete(actor.ID())
	s.registry.Erase(actor.ID())
	actor.Destroy()
	s.destroyed.Inc()
	s.live.Dec()
	s.logger.Debug("actor data destroyed", "actor", actor.ID())
}

func (s *System) releaseBlock(cb *ControlBlock) {
	s.released.Inc()
	s.logger.Debug("actor storage released", "actor", cb.ID())
}

// Shutdown empties the registry, stops all running actors and waits for
// their loops to end or for ctx to expire.
func (s *System) Shutdown(ctx context.Context) error {
	s.cancel()
	s.registry.Clear()

	var actors []*MailboxActor
	s.actors.Range(func(key, value interface{}) bool {
		actors = append(actors, value.(*MailboxActor))
		return true
	})

	done := make(chan struct{})
	go func() {
		for _, a := range actors {
			a.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("actor system stopped", "spawned", s.spawned.Load(), "destroyed", s.destroyed.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemStats summarizes actor lifetimes.
type SystemStats struct {
	Spawned   uint64
	Destroyed uint64
	Released  uint64

	// Running counts actors whose data is alive
	Running int

	// Registered counts IDs in the registry
	Registered int
}

// Stats returns lifetime counters of the system.
func (s *System) Stats() SystemStats {
	return SystemStats{
		Spawned:    s.spawned.Load(),
		Destroyed:  s.destroyed.Load(),
		Released:   s.released.Load(),
		Running:    int(s.live.Load()),
		Registered: s.registry.Running(),
	}
}

// ActorStats returns statistics for all live actors, ordered by ID.
func (s *System) ActorStats() []ActorStats {
	var stats []ActorStats

	s.actors.Range(func(key, value interface{}) bool {
		stats = append(stats, value.(*MailboxActor).Stats())
		return true
	})

	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}
