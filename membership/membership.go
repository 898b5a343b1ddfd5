// Package membership keeps a ringhash.Ring in sync with a memberlist cluster.
// Members joining the cluster are added to the ring and members leaving are
// removed from it.
package membership

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/ringhash"
	"github.com/hashicorp/memberlist"
)

// Delegate implements memberlist.EventDelegate by updating a Ring.
type Delegate struct {
	ring *ringhash.Ring
	log  log.Logger
}

var _ memberlist.EventDelegate = (*Delegate)(nil)

// New returns a Delegate updating r. l may be nil.
func New(r *ringhash.Ring, l log.Logger) *Delegate {
	if l == nil {
		l = log.NewNopLogger()
	}
	return &Delegate{ring: r, log: l}
}

// Configure sets the event delegate and log output of mlc so that r follows
// the cluster membership.
func Configure(mlc *memberlist.Config, r *ringhash.Ring, l log.Logger) *Delegate {
	d := New(r, l)
	mlc.Events = d
	mlc.LogOutput = NewLogOutput(d.log)
	return d
}

// NotifyJoin implements memberlist.EventDelegate. Joins for members already in
// the ring are ignored.
func (d *Delegate) NotifyJoin(node *memberlist.Node) {
	n, err := ringhash.NewNode(node.Name)
	if err != nil {
		level.Error(d.log).Log("msg", "ignoring member with invalid name", "addr", node.Address(), "err", err)
		return
	}

	err = d.ring.AddNode(n)
	switch {
	case errors.Is(err, ringhash.ErrDuplicateNode):
		level.Debug(d.log).Log("msg", "member already in ring", "node", node.Name)
	case err != nil:
		level.Error(d.log).Log("msg", "failed to add member to ring", "node", node.Name, "err", err)
	default:
		level.Info(d.log).Log("msg", "member joined ring", "node", node.Name, "addr", node.Address())
	}
}

// NotifyLeave implements memberlist.EventDelegate.
func (d *Delegate) NotifyLeave(node *memberlist.Node) {
	err := d.ring.RemoveNode(node.Name)
	switch {
	case errors.Is(err, ringhash.ErrUnknownNode):
		level.Debug(d.log).Log("msg", "member not in ring", "node", node.Name)
	case err != nil:
		level.Error(d.log).Log("msg", "failed to remove member from ring", "node", node.Name, "err", err)
	default:
		level.Info(d.log).Log("msg", "member left ring", "node", node.Name)
	}
}

// NotifyUpdate implements memberlist.EventDelegate. Ownership only depends on
// member names, so updates don't change the ring.
func (d *Delegate) NotifyUpdate(node *memberlist.Node) {}
