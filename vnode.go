package ringhash

import (
	"fmt"

	"github.com/grafana/ringhash/hash"
)

// VirtualNode is a single point on the ring owned by a Node.
type VirtualNode struct {
	node    *Node
	replica int
	hash    hash.Value
}

func newVirtualNode(n *Node, replica int, f hash.Func) VirtualNode {
	return VirtualNode{
		node:    n,
		replica: replica,
		hash:    hash.String(f, hash.VirtualKey(n.id, replica)),
	}
}

// Node returns the owner of vn.
func (vn VirtualNode) Node() *Node { return vn.node }

// Replica returns the replica index of vn within its owner, starting at 0.
func (vn VirtualNode) Replica() int { return vn.replica }

// Hash returns the position of vn on the ring.
func (vn VirtualNode) Hash() hash.Value { return vn.hash }

// String returns a human-readable representation of vn.
func (vn VirtualNode) String() string {
	return fmt.Sprintf("%s-%d@%s", vn.node.id, vn.replica, vn.hash)
}

// byVirtualNode sorts virtual nodes by hash. Equal hashes are ordered by owner
// identifier and then by replica so the ring order is always reproducible.
type byVirtualNode []VirtualNode

func (b byVirtualNode) Len() int      { return len(b) }
func (b byVirtualNode) Swap(i, j int) { b[i], b[j] = b[j], b[i] }

func (b byVirtualNode) Less(i, j int) bool {
	if b[i].hash != b[j].hash {
		return b[i].hash < b[j].hash
	}
	if b[i].node.id != b[j].node.id {
		return b[i].node.id < b[j].node.id
	}
	return b[i].replica < b[j].replica
}
