// Package snapshot encodes and decodes the membership of a ring so it can be
// rebuilt later.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-msgpack/codec"
)

// magicHeader is added at the start of every snapshot.
const magicHeader uint16 = 0x52c6

// Version of the snapshot format. Encoded after the magic header.
const Version uint8 = 1

// headerSize is the size of the magic header plus the version byte.
const headerSize = 3

// Ring is the encoded form of a ring. Only the inputs needed to rebuild the
// ring are stored; virtual node positions are recomputed on restore.
type Ring struct {
	// Name of the hash function used to place virtual nodes.
	Hash string
	// Number of virtual nodes per node.
	Replicas int
	// Node identifiers in insertion order.
	Nodes []string
}

// String returns a summary of r.
func (r Ring) String() string {
	return fmt.Sprintf("%s x%d: %d nodes", r.Hash, r.Replicas, len(r.Nodes))
}

// Encode encodes r. Msgpack is used for encoding the body.
func Encode(r Ring) ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	// Write magic header and version
	_ = binary.Write(buf, binary.BigEndian, magicHeader)
	buf.WriteByte(Version)

	var handle codec.MsgpackHandle
	enc := codec.NewEncoder(buf, &handle)
	if err := enc.Encode(&r); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse validates the header of an encoded snapshot and returns the body to
// pass to Decode.
func Parse(raw []byte) (buf []byte, err error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("payload too small for snapshot")
	}

	magic := binary.BigEndian.Uint16(raw[0:2])
	if magic != magicHeader {
		return nil, fmt.Errorf("invalid magic header %x", magic)
	}

	if v := raw[2]; v != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}
	return raw[headerSize:], nil
}

// Decode parses and decodes an encoded snapshot.
func Decode(raw []byte) (Ring, error) {
	buf, err := Parse(raw)
	if err != nil {
		return Ring{}, err
	}

	var (
		r      Ring
		handle codec.MsgpackHandle
	)
	dec := codec.NewDecoder(bytes.NewReader(buf), &handle)
	if err := dec.Decode(&r); err != nil {
		return Ring{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return r, nil
}
