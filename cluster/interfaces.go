// Package cluster connects actor systems running on different nodes. Remote
// actors are represented locally by proxies that forward messages through a
// Transport.
package cluster

import (
	"time"

	"github.com/pkg/errors"

	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
)

var (
	// ErrNodeAttached is returned when a node joins a transport twice.
	ErrNodeAttached = errors.New("node already attached")

	// ErrNilNode is returned when a host reports the nil node as identity.
	ErrNilNode = errors.New("nil node")
)

// Transport delivers mailbox elements to actors on other nodes.
type Transport interface {
	// Forward hands elem to actor aid on node nid. On success the transport
	// owns elem; on failure the caller still does.
	Forward(nid node.ID, aid core.ActorID, elem *core.MailboxElement) bool
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(nid node.ID, aid core.ActorID, elem *core.MailboxElement) bool

// Forward calls f(nid, aid, elem).
func (f TransportFunc) Forward(nid node.ID, aid core.ActorID, elem *core.MailboxElement) bool {
	return f(nid, aid, elem)
}

// EventType represents the type of cluster event
type EventType string

const (
	EventNodeJoined EventType = "node_joined"
	EventNodeLeft   EventType = "node_left"
	EventNodeFailed EventType = "node_failed"
)

// Event represents a membership change in the cluster
type Event struct {
	Type      EventType `json:"type"`
	Node      node.ID   `json:"node"`
	Timestamp time.Time `json:"timestamp"`
}

// TransportStatistics contains transport layer statistics
type TransportStatistics struct {
	MessagesForwarded uint64 `json:"messages_forwarded"`
	MessagesDropped   uint64 `json:"messages_dropped"`
	NodesAttached     int    `json:"nodes_attached"`
}
