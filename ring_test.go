package ringhash

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/grafana/ringhash/hash"
	"github.com/grafana/ringhash/internal/testlogger"
	"github.com/stretchr/testify/require"
)

func newTestRing(t testing.TB, opts Options, ids ...string) *Ring {
	t.Helper()

	if opts.Log == nil {
		opts.Log = testlogger.New(t)
	}
	r, err := NewRing(opts)
	require.NoError(t, err)

	for _, id := range ids {
		require.NoError(t, r.AddNode(mustNode(t, id)))
	}
	return r
}

func mustNode(t testing.TB, id string) *Node {
	t.Helper()

	n, err := NewNode(id)
	require.NoError(t, err)
	return n
}

func requireSorted(t *testing.T, vnodes []VirtualNode) {
	t.Helper()

	require.True(t, sort.IsSorted(byVirtualNode(vnodes)), "virtual nodes not sorted")
	for i := 1; i < len(vnodes); i++ {
		require.LessOrEqual(t, string(vnodes[i-1].Hash()), string(vnodes[i].Hash()))
	}
}

func TestNewRing_Options(t *testing.T) {
	r, err := NewRing(Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultReplicas, r.Replicas())
	require.Equal(t, hash.NameMD5, r.HashName())

	r, err = NewRing(Options{Replicas: 3, Hash: hash.XXHash()})
	require.NoError(t, err)
	require.Equal(t, 3, r.Replicas())
	require.Equal(t, hash.NameXXHash, r.HashName())

	_, err = NewRing(Options{Replicas: -1})
	require.EqualError(t, err, "Replicas must be greater or equal to 0")
}

func TestRing_AddNode(t *testing.T) {
	r := newTestRing(t, DefaultOptions, "1", "4")

	vnodes := r.VirtualNodes()
	require.Len(t, vnodes, 10)
	requireSorted(t, vnodes)

	perNode := map[string][]int{}
	for _, vn := range vnodes {
		id := vn.Node().Identifier()
		require.Contains(t, []string{"1", "4"}, id)
		require.Equal(t, hash.String(hash.MD5(), fmt.Sprintf("%s-%d", id, vn.Replica())), vn.Hash())
		perNode[id] = append(perNode[id], vn.Replica())
	}
	for _, id := range []string{"1", "4"} {
		sort.Ints(perNode[id])
		require.Equal(t, []int{0, 1, 2, 3, 4}, perNode[id], "replicas for node %s", id)
	}

	require.Equal(t, 2, r.NodeCount())

	owner, err := r.AssignNode("-1")
	require.NoError(t, err)
	require.Contains(t, []string{"1", "4"}, owner.Identifier())

	again, err := r.AssignNode("-1")
	require.NoError(t, err)
	require.Equal(t, owner.Identifier(), again.Identifier())
}

func TestRing_AddNode_SortedAfterEveryAdd(t *testing.T) {
	r := newTestRing(t, Options{Replicas: 16})

	for i := 0; i < 20; i++ {
		require.NoError(t, r.AddNode(mustNode(t, fmt.Sprintf("node-%d", i))))

		vnodes := r.VirtualNodes()
		require.Len(t, vnodes, (i+1)*16)
		requireSorted(t, vnodes)
	}
}

func TestRing_AddNode_Invalid(t *testing.T) {
	r := newTestRing(t, DefaultOptions, "node-a")
	before := r.VirtualNodes()

	err := r.AddNode(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.EqualError(t, err, "invalid argument: node must not be nil")

	err = r.AddNode(mustNode(t, "node-a"))
	require.ErrorIs(t, err, ErrDuplicateNode)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.EqualError(t, err, `invalid argument: duplicate node "node-a"`)

	require.Equal(t, before, r.VirtualNodes(), "failed AddNode must not change the ring")
	require.Equal(t, 1, r.NodeCount())
}

func TestRing_AddNodes(t *testing.T) {
	r := newTestRing(t, DefaultOptions, "node-a")

	err := r.AddNodes(mustNode(t, "node-b"), nil, mustNode(t, "node-a"), mustNode(t, "node-c"), mustNode(t, "node-c"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, err, ErrDuplicateNode)
	require.Contains(t, err.Error(), "3 errors occurred")
	require.Equal(t, 1, r.NodeCount(), "no node should be added when the batch is invalid")

	require.NoError(t, r.AddNodes(mustNode(t, "node-b"), mustNode(t, "node-c")))
	require.Equal(t, 3, r.NodeCount())
	require.Len(t, r.VirtualNodes(), 3*DefaultReplicas)
	requireSorted(t, r.VirtualNodes())

	require.NoError(t, r.AddNodes())
	require.Equal(t, 3, r.NodeCount())
}

func TestRing_AddNodes_MatchesSequentialAdds(t *testing.T) {
	ids := []string{"node-a", "node-b", "node-c", "node-d"}

	sequential := newTestRing(t, DefaultOptions, ids...)

	batch := newTestRing(t, DefaultOptions)
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = mustNode(t, id)
	}
	require.NoError(t, batch.AddNodes(nodes...))

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i)
		a, err := sequential.AssignNode(key)
		require.NoError(t, err)
		b, err := batch.AssignNode(key)
		require.NoError(t, err)
		require.Equal(t, a.Identifier(), b.Identifier(), "owner mismatch for %s", key)
	}
}

func TestRing_AssignNode_Empty(t *testing.T) {
	r := newTestRing(t, DefaultOptions)

	_, err := r.AssignNode("any-key")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.EqualError(t, err, "precondition failed: ring has no nodes")
}

func TestRing_AssignNode_SingleOwner(t *testing.T) {
	r := newTestRing(t, Options{Replicas: 1}, "A")

	for _, key := range []string{"", "-1", "a", "zzzz", strings.Repeat("x", 1024)} {
		owner, err := r.AssignNode(key)
		require.NoError(t, err)
		require.Equal(t, "A", owner.Identifier())
	}
}

func TestRing_AssignHash_Laws(t *testing.T) {
	for _, f := range []hash.Func{hash.MD5(), hash.XXHash()} {
		t.Run(f.Name(), func(t *testing.T) {
			r := newTestRing(t, Options{Hash: f}, "node-a", "node-b", "node-c")

			var (
				vnodes = r.VirtualNodes()
				first  = vnodes[0]
				width  = len(string(first.Hash()))
			)

			t.Run("below minimum", func(t *testing.T) {
				owner, err := r.AssignHash(hash.Value(strings.Repeat("\x00", width)))
				require.NoError(t, err)
				require.Same(t, first.Node(), owner)
			})

			t.Run("above maximum wraps around", func(t *testing.T) {
				owner, err := r.AssignHash(hash.Value(strings.Repeat("\xff", width)))
				require.NoError(t, err)
				require.Same(t, first.Node(), owner)
			})

			t.Run("exact match", func(t *testing.T) {
				for _, vn := range vnodes {
					owner, err := r.AssignHash(vn.Hash())
					require.NoError(t, err)
					require.Same(t, vn.Node(), owner)
				}
			})

			t.Run("between virtual nodes", func(t *testing.T) {
				for i := 1; i < len(vnodes); i++ {
					// Append a byte to the previous hash; the result sorts after it
					// and before the next virtual node.
					target := vnodes[i-1].Hash() + "\x00"
					owner, err := r.AssignHash(target)
					require.NoError(t, err)
					require.Same(t, vnodes[i].Node(), owner)
				}
			})
		})
	}
}

func TestRing_AssignNode_Deterministic(t *testing.T) {
	var (
		ids   = []string{"node1", "node2", "node3"}
		ring1 = newTestRing(t, DefaultOptions, ids...)
		ring2 = newTestRing(t, DefaultOptions, ids...)
	)

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)

		a, err := ring1.AssignNode(key)
		require.NoError(t, err)
		b, err := ring1.AssignNode(key)
		require.NoError(t, err)
		c, err := ring2.AssignNode(key)
		require.NoError(t, err)

		require.Same(t, a, b)
		require.Equal(t, a.Identifier(), c.Identifier())
	}
}

func TestRing_RemoveNode(t *testing.T) {
	r := newTestRing(t, DefaultOptions, "node1", "node2", "node3")

	require.NoError(t, r.RemoveNode("node2"))
	require.Equal(t, 2, r.NodeCount())

	vnodes := r.VirtualNodes()
	require.Len(t, vnodes, 2*DefaultReplicas)
	requireSorted(t, vnodes)
	for _, vn := range vnodes {
		require.NotEqual(t, "node2", vn.Node().Identifier())
	}

	for i := 0; i < 100; i++ {
		owner, err := r.AssignNode(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.NotEqual(t, "node2", owner.Identifier())
	}

	err := r.RemoveNode("node2")
	require.ErrorIs(t, err, ErrUnknownNode)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.EqualError(t, err, `invalid argument: unknown node "node2"`)

	// A removed node may be added again.
	require.NoError(t, r.AddNode(mustNode(t, "node2")))
	require.Equal(t, 3, r.NodeCount())
}

func TestRing_RemoveNode_Last(t *testing.T) {
	r := newTestRing(t, DefaultOptions, "node1")
	require.NoError(t, r.RemoveNode("node1"))

	_, err := r.AssignNode("key")
	require.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestRing_Nodes(t *testing.T) {
	r := newTestRing(t, DefaultOptions, "c", "a", "b")

	var ids []string
	for _, n := range r.Nodes() {
		ids = append(ids, n.Identifier())
	}
	require.Equal(t, []string{"c", "a", "b"}, ids, "nodes should be in insertion order")
}

func TestRing_Lookup(t *testing.T) {
	r := newTestRing(t, Options{Replicas: 64}, "node1", "node2", "node3")

	owners, err := r.Lookup("test-key", 3)
	require.NoError(t, err)
	require.Len(t, owners, 3)

	seen := map[string]bool{}
	for _, n := range owners {
		require.False(t, seen[n.Identifier()], "duplicate node %s", n)
		seen[n.Identifier()] = true
	}

	primary, err := r.AssignNode("test-key")
	require.NoError(t, err)
	require.Same(t, primary, owners[0])

	owners, err = r.Lookup("test-key", 0)
	require.NoError(t, err)
	require.Empty(t, owners)

	_, err = r.Lookup("test-key", 4)
	require.ErrorIs(t, err, ErrNotEnoughNodes)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.EqualError(t, err, "precondition failed: not enough nodes: need at least 4, have 3")

	_, err = r.Lookup("test-key", -1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRing_Concurrent(t *testing.T) {
	r := newTestRing(t, Options{Replicas: 32}, "seed")

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				n, err := NewNode(fmt.Sprintf("node-%d-%d", g, i))
				if err == nil {
					err = r.AddNode(n)
				}
				if err != nil {
					t.Error(err)
				}
			}
		}(g)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			if _, err := r.AssignNode(fmt.Sprintf("key-%d", i)); err != nil {
				t.Error(err)
			}
			vnodes := r.VirtualNodes()
			if !sort.IsSorted(byVirtualNode(vnodes)) {
				t.Error("observed unsorted ring")
			}
			if len(vnodes)%32 != 0 {
				t.Errorf("observed partial batch of %d virtual nodes", len(vnodes))
			}
		}
	}()

	wg.Wait()
	<-done

	require.Equal(t, 41, r.NodeCount())
	require.Len(t, r.VirtualNodes(), 41*32)
}

func TestByVirtualNode_TieBreak(t *testing.T) {
	var (
		a = &Node{id: "a"}
		b = &Node{id: "b"}
	)
	vnodes := []VirtualNode{
		{node: b, replica: 0, hash: "\x01"},
		{node: a, replica: 1, hash: "\x01"},
		{node: a, replica: 0, hash: "\x01"},
		{node: b, replica: 0, hash: "\x00"},
	}
	sort.Sort(byVirtualNode(vnodes))

	require.Equal(t, []VirtualNode{
		{node: b, replica: 0, hash: "\x00"},
		{node: a, replica: 0, hash: "\x01"},
		{node: a, replica: 1, hash: "\x01"},
		{node: b, replica: 0, hash: "\x01"},
	}, vnodes)

	r := newTestRing(t, DefaultOptions)
	r.state.Store(&state{vnodes: vnodes, nodes: []*Node{a, b}, byID: map[string]*Node{"a": a, "b": b}})

	owner, err := r.AssignHash("\x01")
	require.NoError(t, err)
	require.Same(t, a, owner, "equal hashes should resolve to the lowest tie-break")
}

func BenchmarkRing_AssignNode(b *testing.B) {
	counts := []int{1, 10, 100, 1000}
	for _, count := range counts {
		b.Run(fmt.Sprintf("%d nodes", count), func(b *testing.B) {
			b.StopTimer()
			r, err := NewRing(Options{Replicas: 256})
			require.NoError(b, err)
			for n := 0; n < count; n++ {
				require.NoError(b, r.AddNode(mustNode(b, fmt.Sprintf("node_%d", n+1))))
			}
			b.StartTimer()

			for n := 0; n < b.N; n++ {
				_, _ = r.AssignNode(fmt.Sprintf("key-%d", n))
			}
		})
	}
}
