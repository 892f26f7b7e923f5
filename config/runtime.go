package config

import (
	"github.com/pkg/errors"

	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
)

// ID returns the node identity. Fields left at zero are taken from
// node.Local.
func (c NodeConfig) ID() (node.ID, error) {
	id := node.New(c.Host, c.Process)
	if !c.Host.IsNil() && c.Process != 0 {
		return id, nil
	}

	local, err := node.Local()
	if err != nil {
		return node.ID{}, errors.Wrap(err, "local node id")
	}
	if c.Host.IsNil() {
		id.Host = local.Host
	}
	if c.Process == 0 {
		id.Process = local.Process
	}
	return id, nil
}

// Options returns actor options for an actor called name.
func (c ActorConfig) Options(name string) core.ActorOptions {
	opts := core.DefaultActorOptions()
	opts.Name = name
	if c.DefaultMailboxSize > 0 {
		opts.MailboxSize = c.DefaultMailboxSize
	}
	if c.ProcessTimeout > 0 {
		opts.ProcessTimeout = c.ProcessTimeout
	}
	return opts
}

// SystemOptions returns the options for a core.System built from c.
func (c ActorConfig) SystemOptions() []core.SystemOption {
	return []core.SystemOption{core.WithMaxActors(c.MaxActors)}
}
