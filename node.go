package ringhash

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node is a real entity that owns keys on a ring. Nodes are immutable and are
// compared by identifier.
type Node struct {
	id string
}

// NewNode creates a Node. identifier must not be empty or only whitespace.
func NewNode(identifier string) (*Node, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("%w: node identifier must not be empty", ErrInvalidArgument)
	}
	return &Node{id: identifier}, nil
}

// Identifier returns the identifier of n.
func (n *Node) Identifier() string { return n.id }

// String returns the identifier of n.
func (n *Node) String() string { return n.id }

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	type nodeJSON struct {
		Identifier string `json:"identifier"`
	}
	return json.Marshal(&nodeJSON{Identifier: n.id})
}
