package ringhash

import (
	"fmt"

	"github.com/grafana/ringhash/hash"
	"github.com/grafana/ringhash/internal/snapshot"
)

// Snapshot encodes the membership of r. Pass the result to Restore to rebuild
// an identical Ring.
func (r *Ring) Snapshot() ([]byte, error) {
	s := r.load()

	snap := snapshot.Ring{
		Hash:     r.opts.Hash.Name(),
		Replicas: r.opts.Replicas,
		Nodes:    make([]string, len(s.nodes)),
	}
	for i, n := range s.nodes {
		snap.Nodes[i] = n.id
	}
	return snapshot.Encode(snap)
}

// Restore creates a new Ring from a snapshot produced by Snapshot. If
// opts.Hash or opts.Replicas are unset, the values from the snapshot are
// used. An error is returned if they are set and disagree with the
// snapshot, since the restored ring would place nodes differently.
func Restore(raw []byte, opts Options) (*Ring, error) {
	snap, err := snapshot.Decode(raw)
	if err != nil {
		return nil, err
	}

	switch {
	case opts.Hash == nil:
		opts.Hash, err = hash.ByName(snap.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to restore snapshot: %w", err)
		}
	case opts.Hash.Name() != snap.Hash:
		return nil, fmt.Errorf("snapshot uses hash %q, ring configured with %q", snap.Hash, opts.Hash.Name())
	}

	switch {
	case opts.Replicas == 0:
		opts.Replicas = snap.Replicas
	case opts.Replicas != snap.Replicas:
		return nil, fmt.Errorf("snapshot uses %d replicas, ring configured with %d", snap.Replicas, opts.Replicas)
	}

	nodes := make([]*Node, len(snap.Nodes))
	for i, id := range snap.Nodes {
		if nodes[i], err = NewNode(id); err != nil {
			return nil, fmt.Errorf("failed to restore snapshot: %w", err)
		}
	}

	r, err := NewRing(opts)
	if err != nil {
		return nil, err
	}
	if err := r.AddNodes(nodes...); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return r, nil
}
