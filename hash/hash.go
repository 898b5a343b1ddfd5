// Package hash provides the digest functions used to place virtual nodes and
// keys on a ring.
package hash

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Value is a position on the ring. It holds the raw digest bytes, so values
// produced by the same Func have a fixed width and compare
// lexicographically, the same as comparing their hexadecimal forms.
type Value string

// String returns the lowercase hexadecimal representation of v.
func (v Value) String() string { return hex.EncodeToString([]byte(v)) }

// Compare returns -1, 0, or +1 depending on whether v is less than, equal to,
// or greater than o.
func (v Value) Compare(o Value) int { return strings.Compare(string(v), string(o)) }

// Func is a deterministic digest. Implementations of Func must be stateless
// and goroutine safe.
type Func interface {
	// Name returns the unique name of the Func.
	Name() string

	// Sum returns the digest of data.
	Sum(data []byte) Value
}

// Names of the built-in funcs.
const (
	NameMD5    = "md5"
	NameXXHash = "xxhash"
)

// MD5 returns a Func computing 16-byte MD5 digests.
func MD5() Func { return md5Func{} }

type md5Func struct{}

func (md5Func) Name() string { return NameMD5 }

func (md5Func) Sum(data []byte) Value {
	sum := md5.Sum(data)
	return Value(sum[:])
}

// XXHash returns a Func computing 8-byte xxhash64 digests. Digests are stored
// big-endian so byte order matches numeric order.
func XXHash() Func { return xxhashFunc{} }

type xxhashFunc struct{}

func (xxhashFunc) Name() string { return NameXXHash }

func (xxhashFunc) Sum(data []byte) Value {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64(data))
	return Value(buf[:])
}

// ByName returns the built-in Func registered under name.
func ByName(name string) (Func, error) {
	switch name {
	case NameMD5:
		return MD5(), nil
	case NameXXHash:
		return XXHash(), nil
	default:
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
}

// String hashes s with f.
func String(f Func, s string) Value { return f.Sum([]byte(s)) }
