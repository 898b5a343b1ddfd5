// Package ringhash implements a consistent hashing ring. Keys are mapped to
// the Node owning the nearest virtual node clockwise from the key's hash, so
// adding or removing a Node only remaps the keys that fall between its
// virtual nodes and their predecessors.
//
// Each Node is placed on the ring as a fixed number of virtual nodes. The
// position of virtual node i of a Node is the hash of "<identifier>-<i>".
//
// A Ring is goroutine safe. Mutations build a new sorted copy of the ring and
// publish it atomically, so lookups never observe a partially updated ring.
package ringhash
