package ringhash

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/ringhash/hash"
	"github.com/grafana/ringhash/internal/successor"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// DefaultReplicas is the number of virtual nodes created per node when
// Options.Replicas is 0.
const DefaultReplicas = 5

// Options configures a Ring.
type Options struct {
	// Number of virtual nodes to create for each node. 0 means
	// DefaultReplicas. Fixed for the lifetime of the Ring.
	Replicas int

	// Hash function used for both placing virtual nodes and looking up keys.
	// Defaults to hash.MD5.
	Hash hash.Func

	// Optional logger to use.
	Log log.Logger

	// Optional registerer. When set, the Ring's metrics are registered on
	// creation and unregistered by Close.
	Registerer prometheus.Registerer
}

// DefaultOptions holds default options for creating rings.
var DefaultOptions = Options{
	Replicas: DefaultReplicas,
	Hash:     hash.MD5(),
}

func (o *Options) validate() error {
	if o.Replicas < 0 {
		return fmt.Errorf("Replicas must be greater or equal to 0")
	}
	if o.Replicas == 0 {
		o.Replicas = DefaultReplicas
	}
	if o.Hash == nil {
		o.Hash = hash.MD5()
	}
	if o.Log == nil {
		o.Log = log.NewNopLogger()
	}
	return nil
}

// Ring is a consistent hashing ring. Ring is goroutine safe.
type Ring struct {
	log  log.Logger
	opts Options
	m    *metrics

	// mut serializes writers. Readers only load state.
	mut       sync.Mutex
	observers []Observer
	state     atomic.Value // *state
	closed    atomic.Bool
}

// state is an immutable view of the ring. A new state is built for every
// change.
type state struct {
	vnodes []VirtualNode    // Sorted by byVirtualNode at all times.
	nodes  []*Node          // Nodes in insertion order.
	byID   map[string]*Node // Lookup for nodes by identifier.
}

// NewRing creates an empty Ring. An error will be returned if the options are
// invalid or the metrics could not be registered.
func NewRing(opts Options) (*Ring, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	r := &Ring{
		log:  opts.Log,
		opts: opts,
		m:    newMetrics(opts),
	}
	r.state.Store(&state{byID: map[string]*Node{}})

	if opts.Registerer != nil {
		if err := opts.Registerer.Register(r.m); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return r, nil
}

func (r *Ring) load() *state { return r.state.Load().(*state) }

// Replicas returns the number of virtual nodes created per node.
func (r *Ring) Replicas() int { return r.opts.Replicas }

// HashName returns the name of the hash function used by r.
func (r *Ring) HashName() string { return r.opts.Hash.Name() }

// Metrics returns metrics for the Ring.
func (r *Ring) Metrics() prometheus.Collector { return r.m }

// Observe registers o to be notified about changes to the ring.
func (r *Ring) Observe(o Observer) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.observers = append(r.observers, o)
}

// AddNode adds n to the ring, creating Replicas virtual nodes for it. An
// error wrapping ErrInvalidArgument is returned if n is nil, and
// ErrDuplicateNode if a node with the same identifier was already added. The
// ring is left unchanged on error.
func (r *Ring) AddNode(n *Node) error { return r.AddNodes(n) }

// AddNodes adds a batch of nodes to the ring with a single rebuild. Every node
// is validated first; if any node is invalid, no node is added and the
// returned error lists every problem. A single problem is returned unwrapped.
func (r *Ring) AddNodes(nodes ...*Node) error {
	r.mut.Lock()
	defer r.mut.Unlock()

	cur := r.load()

	var (
		errs  *multierror.Error
		batch = make(map[string]struct{}, len(nodes))
	)
	for _, n := range nodes {
		if n == nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: node must not be nil", ErrInvalidArgument))
			continue
		}
		_, inRing := cur.byID[n.id]
		_, inBatch := batch[n.id]
		if inRing || inBatch {
			errs = multierror.Append(errs, fmt.Errorf("%w %q", ErrDuplicateNode, n.id))
			continue
		}
		batch[n.id] = struct{}{}
	}
	if errs != nil {
		level.Warn(r.log).Log("msg", "rejected nodes", "err", errs)
		if len(errs.Errors) == 1 {
			return errs.Errors[0]
		}
		return errs
	}
	if len(nodes) == 0 {
		return nil
	}

	start := time.Now()

	next := &state{
		vnodes: make([]VirtualNode, len(cur.vnodes), len(cur.vnodes)+len(nodes)*r.opts.Replicas),
		nodes:  make([]*Node, len(cur.nodes), len(cur.nodes)+len(nodes)),
		byID:   make(map[string]*Node, len(cur.byID)+len(nodes)),
	}
	copy(next.vnodes, cur.vnodes)
	copy(next.nodes, cur.nodes)
	for id, n := range cur.byID {
		next.byID[id] = n
	}

	for _, n := range nodes {
		for i := 0; i < r.opts.Replicas; i++ {
			next.vnodes = append(next.vnodes, newVirtualNode(n, i, r.opts.Hash))
		}
		next.nodes = append(next.nodes, n)
		next.byID[n.id] = n
	}
	sort.Sort(byVirtualNode(next.vnodes))

	r.publish(next, start)
	for _, n := range nodes {
		level.Debug(r.log).Log("msg", "added node", "node", n.id, "vnodes", r.opts.Replicas)
	}
	return nil
}

// RemoveNode removes the node with the given identifier and all of its
// virtual nodes. ErrUnknownNode is returned if no such node exists.
func (r *Ring) RemoveNode(identifier string) error {
	r.mut.Lock()
	defer r.mut.Unlock()

	cur := r.load()
	if _, ok := cur.byID[identifier]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownNode, identifier)
	}

	start := time.Now()

	next := &state{
		vnodes: make([]VirtualNode, 0, len(cur.vnodes)-r.opts.Replicas),
		nodes:  make([]*Node, 0, len(cur.nodes)-1),
		byID:   make(map[string]*Node, len(cur.byID)-1),
	}
	// Filtering keeps the remaining virtual nodes in sorted order.
	for _, vn := range cur.vnodes {
		if vn.node.id != identifier {
			next.vnodes = append(next.vnodes, vn)
		}
	}
	for _, n := range cur.nodes {
		if n.id != identifier {
			next.nodes = append(next.nodes, n)
			next.byID[n.id] = n
		}
	}

	r.publish(next, start)
	level.Debug(r.log).Log("msg", "removed node", "node", identifier)
	return nil
}

// publish must be called with mut held.
func (r *Ring) publish(next *state, start time.Time) {
	r.state.Store(next)
	r.m.rebuildLatency.Observe(time.Since(start).Seconds())
	r.m.observeState(next)

	for _, o := range r.observers {
		o.NotifyRingChanged(next.nodes)
	}
}

// AssignNode returns the Node owning key: the owner of the first virtual node
// whose hash is greater than or equal to the hash of key, wrapping around to
// the smallest hash. An error wrapping ErrPreconditionFailed is returned if
// the ring is empty.
func (r *Ring) AssignNode(key string) (*Node, error) {
	return r.AssignHash(hash.String(r.opts.Hash, key))
}

// AssignHash is like AssignNode, but accepts an already computed hash. target
// must have been computed with the same hash function as the Ring.
func (r *Ring) AssignHash(target hash.Value) (*Node, error) {
	s := r.load()

	idx, ok := search(s.vnodes, target)
	if !ok {
		r.m.assignments.WithLabelValues("error_empty").Inc()
		return nil, fmt.Errorf("%w: ring has no nodes", ErrPreconditionFailed)
	}

	r.m.assignments.WithLabelValues("success").Inc()
	return s.vnodes[idx].node, nil
}

// Lookup returns the n distinct Nodes responsible for key, in order of
// preference. The first Node is always the one returned by AssignNode. An
// error wrapping ErrNotEnoughNodes is returned if the ring holds fewer than n
// Nodes.
func (r *Ring) Lookup(key string, n int) ([]*Node, error) {
	s := r.load()

	if n < 0 {
		return nil, fmt.Errorf("%w: n must not be negative", ErrInvalidArgument)
	} else if n > len(s.nodes) {
		return nil, fmt.Errorf("%w: need at least %d, have %d", ErrNotEnoughNodes, n, len(s.nodes))
	} else if n == 0 {
		return []*Node{}, nil
	}

	idx, _ := search(s.vnodes, hash.String(r.opts.Hash, key))

	var (
		res  = make([]*Node, 0, n)
		seen = make(map[string]struct{}, n)
	)
	for len(res) < n {
		owner := s.vnodes[idx].node
		if _, found := seen[owner.id]; !found {
			res = append(res, owner)
			seen[owner.id] = struct{}{}
		}

		// Increment idx with wraparound.
		idx = (idx + 1) % len(s.vnodes)
	}
	return res, nil
}

func search(vnodes []VirtualNode, target hash.Value) (int, bool) {
	return successor.Search(len(vnodes), func(i int) int {
		return vnodes[i].hash.Compare(target)
	})
}

// VirtualNodes returns a copy of the virtual nodes in the ring, sorted by
// hash.
func (r *Ring) VirtualNodes() []VirtualNode {
	s := r.load()
	res := make([]VirtualNode, len(s.vnodes))
	copy(res, s.vnodes)
	return res
}

// Nodes returns the nodes in the ring in the order they were added.
func (r *Ring) Nodes() []*Node {
	s := r.load()
	res := make([]*Node, len(s.nodes))
	copy(res, s.nodes)
	return res
}

// NodeCount returns the number of nodes in the ring.
func (r *Ring) NodeCount() int { return len(r.load().nodes) }

// Close releases resources held by r. The Ring remains usable for lookups
// after Close; Close only unregisters metrics. Close may be called more than
// once.
func (r *Ring) Close() error {
	if !r.closed.CAS(false, true) {
		return nil
	}
	if r.opts.Registerer != nil {
		r.opts.Registerer.Unregister(r.m)
	}
	return nil
}
