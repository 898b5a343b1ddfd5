package hash

import "strconv"

// VirtualKey returns the key used to place replica number replica of the node
// identified by identifier. Keys have the form "<identifier>-<replica>".
func VirtualKey(identifier string, replica int) string {
	return identifier + "-" + strconv.Itoa(replica)
}
