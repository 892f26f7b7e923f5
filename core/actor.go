package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// MailboxActor is an AbstractActor that processes messages sequentially in
// its own goroutine.
type MailboxActor struct {
	id      ActorID
	name    string
	handler MessageHandler
	logger  *slog.Logger

	// Channel for receiving messages; guarded by mu against the final drain
	mailbox chan *MailboxElement
	mu      sync.RWMutex
	closed  bool

	// Context for controlling the Actor lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for graceful shutdown
	wg      sync.WaitGroup
	started atomic.Bool

	// Atomic counters for statistics
	state             atomic.Int32 // ActorState
	messagesProcessed atomic.Uint64
	createdAt         time.Time
	lastMessageAt     atomic.Int64 // Unix timestamp

	// Actor options
	opts ActorOptions
}

// NewMailboxActor creates an actor that is not yet running. Messages
// enqueued before Start are buffered.
func NewMailboxActor(id ActorID, handler MessageHandler, opts ActorOptions, logger *slog.Logger) *MailboxActor {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultActorOptions().MailboxSize
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultActorOptions().ProcessTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &MailboxActor{
		id:        id,
		name:      opts.Name,
		handler:   handler,
		logger:    logger.With("actor", id),
		mailbox:   make(chan *MailboxElement, opts.MailboxSize),
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
		opts:      opts,
	}
	a.state.Store(int32(ActorStateIdle))
	return a
}

// ID returns the actor ID.
func (a *MailboxActor) ID() ActorID {
	return a.id
}

// Start begins the message processing loop. The loop ends when parent is
// cancelled or the actor is destroyed.
func (a *MailboxActor) Start(parent context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.Errorf("actor %d is already started (state: %s)", a.id, a.State())
	}
	if ActorState(a.state.Load()) != ActorStateIdle {
		return errors.Errorf("actor %d cannot start from state %s", a.id, a.State())
	}

	a.wg.Add(1)
	go a.messageLoop(parent)

	return nil
}

// Enqueue puts elem into the mailbox. It returns false when the actor is
// stopping, stopped or its mailbox is full.
func (a *MailboxActor) Enqueue(elem *MailboxElement, _ HostContext) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return false
	}
	switch a.State() {
	case ActorStateStopping, ActorStateStopped:
		return false
	}

	select {
	case a.mailbox <- elem:
		return true
	default:
		a.logger.Warn("mailbox full, rejecting message", "capacity", cap(a.mailbox))
		return false
	}
}

// Destroy signals the loop to terminate without waiting for it. It runs as
// the data destructor and may be called from the actor's own goroutine.
func (a *MailboxActor) Destroy() {
	a.state.CompareAndSwap(int32(ActorStateIdle), int32(ActorStateStopping))
	a.state.CompareAndSwap(int32(ActorStateRunning), int32(ActorStateStopping))
	a.cancel()
	if !a.started.Load() {
		a.close()
	}
}

// Stop terminates the actor and waits for the loop to finish. It must not
// be called from within a message handler.
func (a *MailboxActor) Stop() {
	a.Destroy()
	a.wg.Wait()
}

// State returns the current lifecycle state.
func (a *MailboxActor) State() ActorState {
	return ActorState(a.state.Load())
}

// Stats returns current runtime statistics for this Actor.
func (a *MailboxActor) Stats() ActorStats {
	lastMsg := a.lastMessageAt.Load()
	var lastMessageAt time.Time
	if lastMsg > 0 {
		lastMessageAt = time.Unix(lastMsg, 0)
	}

	return ActorStats{
		ID:                a.id,
		Name:              a.name,
		State:             a.State(),
		MessagesProcessed: a.messagesProcessed.Load(),
		MailboxSize:       len(a.mailbox),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}

// messageLoop is the main processing loop for the Actor.
func (a *MailboxActor) messageLoop(parent context.Context) {
	defer a.wg.Done()
	defer a.close()

	for {
		select {
		case elem := <-a.mailbox:
			if elem == nil {
				continue
			}
			a.processMessage(elem)

		case <-a.ctx.Done():
			return

		case <-parent.Done():
			a.Destroy()
			return
		}
	}
}

// processMessage handles a single message.
func (a *MailboxActor) processMessage(elem *MailboxElement) {
	defer elem.Release()

	a.state.CompareAndSwap(int32(ActorStateIdle), int32(ActorStateRunning))
	defer a.state.CompareAndSwap(int32(ActorStateRunning), int32(ActorStateIdle))

	// Update statistics
	a.messagesProcessed.Inc()
	a.lastMessageAt.Store(time.Now().Unix())

	ctx, cancel := context.WithTimeout(a.ctx, a.opts.ProcessTimeout)
	defer cancel()

	if err := a.handler.HandleMessage(ctx, elem); err != nil {
		a.logger.Warn("message handler failed", "mid", elem.MID, "sender", elem.Sender.String(), "error", err)
	}
}

// close rejects further messages and releases everything still queued.
func (a *MailboxActor) close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.state.Store(int32(ActorStateStopped))

	var pending []*MailboxElement
	for drained := false; !drained; {
		select {
		case elem := <-a.mailbox:
			pending = append(pending, elem)
		default:
			drained = true
		}
	}
	a.mu.Unlock()

	// Releasing a sender may destroy another actor; do it outside the lock.
	for _, elem := range pending {
		elem.Release()
	}
}
