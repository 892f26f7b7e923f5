package core

import (
	"time"
)

// ActorID is the numeric identifier of an actor, unique within its node.
// Zero never names an actor.
type ActorID uint64

// MessageID correlates requests and responses.
type MessageID uint64

// MessageType defines the type of message being sent.
type MessageType uint8

// Message represents communication data between Actors.
type Message struct {
	// Type indicates the message category
	Type MessageType

	// Data contains the actual message payload
	Data []byte

	// Timestamp when the message was created
	Timestamp time.Time
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, data []byte) *Message {
	return &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// MailboxElement is a message together with its addressing information.
// The element owns its Sender reference.
type MailboxElement struct {
	Sender  *StrongRef
	MID     MessageID
	Content *Message
}

// NewMailboxElement takes ownership of sender.
func NewMailboxElement(sender *StrongRef, mid MessageID, content *Message) *MailboxElement {
	return &MailboxElement{
		Sender:  sender,
		MID:     mid,
		Content: content,
	}
}

// Release gives up the sender reference. Safe to call more than once.
func (e *MailboxElement) Release() {
	if e == nil {
		return
	}
	e.Sender.Release()
}

// ActorState represents the current state of an Actor.
type ActorState int32

const (
	// ActorStateIdle means the Actor is waiting for messages
	ActorStateIdle ActorState = iota

	// ActorStateRunning means the Actor is processing a message
	ActorStateRunning

	// ActorStateStopping means the Actor is shutting down
	ActorStateStopping

	// ActorStateStopped means the Actor has been stopped
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateRunning:
		return "running"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MessageTypes define various message categories.
const (
	// MessageTypeText for plain text messages
	MessageTypeText MessageType = iota

	// MessageTypeResponse for response messages
	MessageTypeResponse

	// MessageTypeRequest for request messages
	MessageTypeRequest

	// MessageTypeSystem for system control messages
	MessageTypeSystem

	// MessageTypeError for error notifications
	MessageTypeError
)

// String returns the string representation of MessageType.
func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "text"
	case MessageTypeResponse:
		return "response"
	case MessageTypeRequest:
		return "request"
	case MessageTypeSystem:
		return "system"
	case MessageTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// ActorOptions contains configuration options for creating an Actor.
type ActorOptions struct {
	// MailboxSize sets the size of the Actor's message queue
	MailboxSize int

	// Name is a human-readable name for the Actor
	Name string

	// Timeout for message processing
	ProcessTimeout time.Duration
}

// DefaultActorOptions returns sensible default options.
func DefaultActorOptions() ActorOptions {
	return ActorOptions{
		MailboxSize:    1000,
		Name:           "",
		ProcessTimeout: 30 * time.Second,
	}
}

// ActorStats contains runtime statistics for an Actor.
type ActorStats struct {
	// ID of the Actor
	ID ActorID

	// Name of the Actor
	Name string

	// Current state
	State ActorState

	// Total messages processed
	MessagesProcessed uint64

	// Messages currently in mailbox
	MailboxSize int

	// Time when Actor was created
	CreatedAt time.Time

	// Last message processing time
	LastMessageAt time.Time
}
